package provider

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/theapemachine/scenes/pkg/errors"
)

/*
OpenAIProvider talks to the OpenAI chat completions API, or to any API
that speaks the same dialect when a base URL is configured.
*/
type OpenAIProvider struct {
	client   *openai.Client
	settings *Settings
}

func NewOpenAIProvider(settings *Settings) *OpenAIProvider {
	key := settings.APIKey

	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}

	options := []option.RequestOption{option.WithAPIKey(key)}

	if settings.BaseURL != "" {
		options = append(options, option.WithBaseURL(settings.BaseURL))
	}

	client := openai.NewClient(options...)

	return &OpenAIProvider{
		client:   &client,
		settings: settings,
	}
}

func (prvdr *OpenAIProvider) Complete(ctx context.Context, request Request) (*Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(prvdr.settings.Model),
		Messages: prvdr.convertMessages(request.Messages),
	}

	if tools := prvdr.convertTools(request.Tools); len(tools) > 0 {
		params.Tools = tools
	}

	if prvdr.settings.MaxTokens > 0 {
		params.MaxTokens = openai.Int(prvdr.settings.MaxTokens)
	}

	completion, err := prvdr.client.Chat.Completions.New(ctx, params)

	if err != nil {
		log.Error("openai completion failed", "error", err)
		return nil, err
	}

	if len(completion.Choices) == 0 {
		return nil, errors.New("openai completion returned no choices")
	}

	message := completion.Choices[0].Message
	response := &Response{Content: message.Content}

	for _, toolCall := range message.ToolCalls {
		response.ToolCalls = append(response.ToolCalls, ToolCall{
			ID:        toolCall.ID,
			Name:      toolCall.Function.Name,
			Arguments: toolCall.Function.Arguments,
		})
	}

	return response, nil
}

func (prvdr *OpenAIProvider) convertMessages(
	messages []Message,
) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(msg.Content))
		case RoleUser:
			out = append(out, openai.UserMessage(msg.Content))
		case RoleTool:
			out = append(out, openai.ToolMessage(msg.Content, msg.ToolCallID))
		case RoleAssistant:
			if len(msg.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(msg.Content))
				continue
			}

			assistant := openai.ChatCompletionAssistantMessageParam{}

			if msg.Content != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}

			for _, toolCall := range msg.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: toolCall.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      toolCall.Name,
						Arguments: toolCall.Arguments,
					},
				})
			}

			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
		}
	}

	return out
}

func (prvdr *OpenAIProvider) convertTools(
	tools []Tool,
) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(tools))

	for _, tool := range tools {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        tool.Name,
				Description: openai.String(tool.Description),
				Parameters:  openai.FunctionParameters(schemaOrEmpty(tool.Parameters)),
			},
		})
	}

	return out
}

/*
schemaOrEmpty guarantees an object schema, which every backend requires
even for functions that take no arguments.
*/
func schemaOrEmpty(schema map[string]any) map[string]any {
	if len(schema) == 0 {
		return map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}

	return schema
}
