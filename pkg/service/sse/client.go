package sse

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/scenes/pkg/types"
)

/*
Client follows the /events stream of a scenes server, reconnecting with
backoff when the connection drops.
*/
type Client struct {
	URL        string
	Headers    map[string]string
	MaxRetries int
	baseDelay  time.Duration
	http       *http.Client
}

/*
NewClient watches the events of requestKey on the server at base, or
every event when requestKey is empty.
*/
func NewClient(base, requestKey string) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(base, "/") + "/events")

	if err != nil {
		return nil, err
	}

	if requestKey != "" {
		u.RawQuery = url.Values{"requestKey": {requestKey}}.Encode()
	}

	return &Client{
		URL:        u.String(),
		Headers:    make(map[string]string),
		MaxRetries: 3,
		baseDelay:  time.Second,
		http:       &http.Client{},
	}, nil
}

/*
Watch calls handler for every event until ctx is done, the handler
returns an error, or the retries run out.
*/
func (client *Client) Watch(ctx context.Context, handler func(types.AiSceneResponse) error) error {
	retries := 0

	for {
		resp, err := client.connect(ctx)

		if err == nil {
			retries = 0
			err = client.read(resp.Body, handler)
			resp.Body.Close()
		}

		if ctx.Err() != nil {
			return nil
		}

		if stop, ok := err.(handlerError); ok {
			return stop.err
		}

		if retries >= client.MaxRetries {
			return fmt.Errorf("max retries exceeded: %w", err)
		}

		delay := client.baseDelay * time.Duration(1<<retries)
		retries++
		log.Warn("event stream dropped, reconnecting", "error", err, "delay", delay)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

type handlerError struct{ err error }

func (e handlerError) Error() string { return e.err.Error() }

func (client *Client) connect(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, client.URL, nil)

	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	for k, v := range client.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.http.Do(req)

	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	return resp, nil
}

/*
read decodes data lines until the stream ends. Comments, which the
broker sends as heartbeats, are skipped.
*/
func (client *Client) read(body io.Reader, handler func(types.AiSceneResponse) error) error {
	reader := bufio.NewReader(body)
	var data strings.Builder

	for {
		line, err := reader.ReadString('\n')

		if err != nil {
			return err
		}

		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "":
			if data.Len() == 0 {
				continue
			}

			var event types.AiSceneResponse

			if err := json.Unmarshal([]byte(data.String()), &event); err != nil {
				return handlerError{fmt.Errorf("failed to decode event: %w", err)}
			}

			data.Reset()

			if err := handler(event); err != nil {
				return handlerError{err}
			}
		case strings.HasPrefix(line, ":"):
			continue
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteString("\n")
			}

			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
}
