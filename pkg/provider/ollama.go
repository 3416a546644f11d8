package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/charmbracelet/log"
	"github.com/ollama/ollama/api"
)

/*
OllamaProvider is a provider for a local or remote Ollama daemon.
*/
type OllamaProvider struct {
	client   *api.Client
	settings *Settings
	err      error
}

func NewOllamaProvider(settings *Settings) *OllamaProvider {
	prvdr := &OllamaProvider{settings: settings}

	if settings.BaseURL != "" {
		base, err := url.Parse(settings.BaseURL)

		if err != nil {
			prvdr.err = fmt.Errorf("invalid ollama base url: %w", err)
			return prvdr
		}

		prvdr.client = api.NewClient(base, http.DefaultClient)
		return prvdr
	}

	prvdr.client, prvdr.err = api.ClientFromEnvironment()

	return prvdr
}

func (prvdr *OllamaProvider) Complete(ctx context.Context, request Request) (*Response, error) {
	if prvdr.err != nil {
		return nil, prvdr.err
	}

	messages, err := prvdr.convertMessages(request.Messages)

	if err != nil {
		return nil, err
	}

	tools, err := prvdr.convertTools(request.Tools)

	if err != nil {
		return nil, err
	}

	stream := false

	req := &api.ChatRequest{
		Model:    prvdr.settings.Model,
		Messages: messages,
		Tools:    tools,
		Stream:   &stream,
	}

	response := &Response{}

	respFunc := func(resp api.ChatResponse) error {
		response.Content += resp.Message.Content

		for _, toolCall := range resp.Message.ToolCalls {
			response.ToolCalls = append(response.ToolCalls, ToolCall{
				ID:        fmt.Sprintf("%s-%d", toolCall.Function.Name, len(response.ToolCalls)),
				Name:      toolCall.Function.Name,
				Arguments: toolCall.Function.Arguments.String(),
			})
		}

		return nil
	}

	if err := prvdr.client.Chat(ctx, req, respFunc); err != nil {
		log.Error("ollama completion failed", "error", err)
		return nil, err
	}

	return response, nil
}

func (prvdr *OllamaProvider) convertMessages(messages []Message) ([]api.Message, error) {
	out := make([]api.Message, 0, len(messages))

	for _, msg := range messages {
		converted := api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		}

		for _, toolCall := range msg.ToolCalls {
			arguments := api.ToolCallFunctionArguments{}

			if toolCall.Arguments != "" {
				if err := json.Unmarshal([]byte(toolCall.Arguments), &arguments); err != nil {
					return nil, fmt.Errorf("invalid arguments for %s: %w", toolCall.Name, err)
				}
			}

			converted.ToolCalls = append(converted.ToolCalls, api.ToolCall{
				Function: api.ToolCallFunction{
					Name:      toolCall.Name,
					Arguments: arguments,
				},
			})
		}

		out = append(out, converted)
	}

	return out, nil
}

/*
convertTools goes through JSON so the schema maps onto the nested
anonymous structs of api.Tool without spelling them out.
*/
func (prvdr *OllamaProvider) convertTools(tools []Tool) (api.Tools, error) {
	out := make(api.Tools, 0, len(tools))

	for _, tool := range tools {
		raw, err := json.Marshal(map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  schemaOrEmpty(tool.Parameters),
			},
		})

		if err != nil {
			return nil, err
		}

		var converted api.Tool

		if err := json.Unmarshal(raw, &converted); err != nil {
			return nil, fmt.Errorf("invalid schema for %s: %w", tool.Name, err)
		}

		out = append(out, converted)
	}

	return out, nil
}
