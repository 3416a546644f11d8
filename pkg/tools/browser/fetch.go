package browser

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	jsoniter "github.com/json-iterator/go"
	"github.com/theapemachine/scenes/pkg/tools"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Result captures the page data returned by Fetch.
type Result struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Text     string `json:"text"`
	Duration int64  `json:"duration_ms"`
}

const maxTextLen = 4 * 1024

/*
Fetch opens pageURL in a headless browser, waits for the load event and
returns the visible text of selector, or of the body when it is empty.
*/
func Fetch(ctx context.Context, pageURL, selector string) (*Result, error) {
	u, err := url.Parse(pageURL)

	if err != nil {
		return nil, err
	}

	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "data" {
		return nil, errors.New("unsupported URL scheme (allowed: http, https, data)")
	}

	wsURL, err := launcher.New().Context(ctx).Headless(true).Leakless(true).Launch()

	if err != nil {
		return nil, err
	}

	browser := rod.New().ControlURL(wsURL).Context(ctx)

	if err = browser.Connect(); err != nil {
		return nil, err
	}

	defer browser.Close()

	start := time.Now()
	page, err := browser.Page(proto.TargetCreateTarget{URL: pageURL})

	if err != nil {
		return nil, err
	}

	if err = page.WaitLoad(); err != nil {
		return nil, err
	}

	if selector == "" {
		selector = "body"
	}

	el, err := page.Timeout(2 * time.Second).Element(selector)

	if err != nil {
		return nil, err
	}

	txt, err := el.Text()

	if err != nil {
		return nil, err
	}

	if len(txt) > maxTextLen {
		txt = txt[:maxTextLen]
	}

	info, err := page.Info()

	if err != nil {
		return nil, err
	}

	return &Result{
		Title:    info.Title,
		URL:      info.URL,
		Text:     strings.TrimSpace(txt),
		Duration: time.Since(start).Milliseconds(),
	}, nil
}

/*
Service exposes Fetch as a local service. It takes a url argument and an
optional selector.
*/
func Service() tools.ServiceFunc {
	return func(ctx context.Context, arguments tools.Arguments) (string, error) {
		pageURL := arguments["url"].String()

		if pageURL == "" {
			return "", errors.New("url is required")
		}

		result, err := Fetch(ctx, pageURL, arguments["selector"].String())

		if err != nil {
			return "", err
		}

		buf, err := json.Marshal(result)
		return string(buf), err
	}
}
