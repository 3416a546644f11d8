package provider

import (
	"context"
	"encoding/json"
	"os"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/charmbracelet/log"
)

/*
AnthropicProvider is a provider for the Anthropic messages API.
*/
type AnthropicProvider struct {
	client   *anthropic.Client
	settings *Settings
}

func NewAnthropicProvider(settings *Settings) *AnthropicProvider {
	key := settings.APIKey

	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}

	options := []option.RequestOption{option.WithAPIKey(key)}

	if settings.BaseURL != "" {
		options = append(options, option.WithBaseURL(settings.BaseURL))
	}

	client := anthropic.NewClient(options...)

	return &AnthropicProvider{
		client:   &client,
		settings: settings,
	}
}

func (prvdr *AnthropicProvider) Complete(ctx context.Context, request Request) (*Response, error) {
	maxTokens := prvdr.settings.MaxTokens

	if maxTokens <= 0 {
		maxTokens = 2048
	}

	system, messages := prvdr.convertMessages(request.Messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(prvdr.settings.Model),
		System:    system,
		Messages:  messages,
		MaxTokens: maxTokens,
	}

	if tools := prvdr.convertTools(request.Tools); len(tools) > 0 {
		params.Tools = tools
	}

	llmResponse, err := prvdr.client.Messages.New(ctx, params)

	if err != nil {
		log.Error("anthropic completion failed", "error", err)
		return nil, err
	}

	response := &Response{}

	for _, block := range llmResponse.Content {
		switch contentBlock := block.AsAny().(type) {
		case anthropic.TextBlock:
			response.Content += contentBlock.Text
		case anthropic.ToolUseBlock:
			response.ToolCalls = append(response.ToolCalls, ToolCall{
				ID:        contentBlock.ID,
				Name:      contentBlock.Name,
				Arguments: string(contentBlock.Input),
			})
		}
	}

	return response, nil
}

/*
convertMessages splits out the system turns, which Anthropic takes as a
separate parameter, and folds consecutive tool results into one user turn.
*/
func (prvdr *AnthropicProvider) convertMessages(
	messages []Message,
) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var (
		system  []anthropic.TextBlockParam
		out     = make([]anthropic.MessageParam, 0, len(messages))
		results []anthropic.ContentBlockParamUnion
	)

	flush := func() {
		if len(results) > 0 {
			out = append(out, anthropic.NewUserMessage(results...))
			results = nil
		}
	}

	for _, msg := range messages {
		if msg.Role == RoleTool {
			results = append(results, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
			continue
		}

		flush()

		switch msg.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolCalls)+1)

			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}

			for _, toolCall := range msg.ToolCalls {
				input := json.RawMessage(toolCall.Arguments)

				if !json.Valid(input) {
					input = json.RawMessage("{}")
				}

				blocks = append(blocks, anthropic.NewToolUseBlock(toolCall.ID, input, toolCall.Name))
			}

			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		}
	}

	flush()

	return system, out
}

func (prvdr *AnthropicProvider) convertTools(
	tools []Tool,
) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))

	for _, tool := range tools {
		schema := schemaOrEmpty(tool.Parameters)

		toolParam := anthropic.ToolParam{
			Name:        tool.Name,
			Description: anthropic.String(tool.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema["properties"],
				Required:   requiredFields(schema),
			},
		}

		out = append(out, anthropic.ToolUnionParam{OfTool: &toolParam})
	}

	return out
}

/*
requiredFields reads the schema's required list, which arrives as []string
from code and as []any once it has been through JSON.
*/
func requiredFields(schema map[string]any) []string {
	switch required := schema["required"].(type) {
	case []string:
		return append([]string(nil), required...)
	case []any:
		out := make([]string, 0, len(required))

		for _, field := range required {
			if name, ok := field.(string); ok {
				out = append(out, name)
			}
		}

		return out
	}

	return nil
}
