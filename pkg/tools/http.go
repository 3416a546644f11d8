package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v3/client"
	"github.com/theapemachine/scenes/pkg/registry"
)

/*
HTTPCaller performs the HTTP calls of functions with an HTTP target.
*/
type HTTPCaller struct {
	client *client.Client
}

func NewHTTPCaller() *HTTPCaller {
	return &HTTPCaller{
		client: client.New(),
	}
}

/*
Call fills the URL placeholders from the arguments and sends the rest as
query parameters for GET, HEAD and DELETE, or as a JSON body otherwise.
Any status outside 2xx is an error.
*/
func (caller *HTTPCaller) Call(
	ctx context.Context, target *registry.HTTPTarget, arguments Arguments,
) (string, error) {
	method := strings.ToUpper(target.Method)

	if method == "" {
		method = http.MethodGet
	}

	address, remaining := caller.expand(target, arguments)

	cfg := client.Config{
		Ctx:    ctx,
		Header: target.Headers,
	}

	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		cfg.Param = make(map[string]string, len(remaining))

		for _, name := range remaining {
			if arguments[name].IsNull() {
				continue
			}

			cfg.Param[name] = mutate(target, name, arguments[name])
		}
	default:
		body := make(map[string]any, len(remaining))
		values := arguments.Values()

		for _, name := range remaining {
			if _, ok := target.Mutators[name]; ok {
				body[name] = mutate(target, name, arguments[name])
				continue
			}

			body[name] = values[name]
		}

		cfg.Body = body
	}

	var (
		res *client.Response
		err error
	)

	switch method {
	case http.MethodGet:
		res, err = caller.client.Get(address, cfg)
	case http.MethodHead:
		res, err = caller.client.Head(address, cfg)
	case http.MethodDelete:
		res, err = caller.client.Delete(address, cfg)
	case http.MethodPost:
		res, err = caller.client.Post(address, cfg)
	case http.MethodPut:
		res, err = caller.client.Put(address, cfg)
	case http.MethodPatch:
		res, err = caller.client.Patch(address, cfg)
	default:
		return "", fmt.Errorf("unsupported method %s", method)
	}

	if err != nil {
		return "", err
	}

	defer res.Close()

	body := string(res.Body())

	if res.StatusCode() < 200 || res.StatusCode() >= 300 {
		return "", fmt.Errorf("unexpected status %d: %s", res.StatusCode(), body)
	}

	return body, nil
}

/*
expand replaces {name} placeholders and returns the names that were not
consumed by the URL.
*/
func (caller *HTTPCaller) expand(
	target *registry.HTTPTarget, arguments Arguments,
) (string, []string) {
	address := target.URL
	remaining := make([]string, 0, len(arguments))

	for _, name := range arguments.Names() {
		placeholder := "{" + name + "}"

		if !strings.Contains(address, placeholder) {
			remaining = append(remaining, name)
			continue
		}

		address = strings.ReplaceAll(
			address, placeholder, url.PathEscape(mutate(target, name, arguments[name])),
		)
	}

	return address, remaining
}

func mutate(target *registry.HTTPTarget, name string, argument Argument) string {
	value := argument.String()

	if mutator, ok := target.Mutators[name]; ok && mutator != nil {
		return mutator(value)
	}

	return value
}
