package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

/*
CohereProvider is a provider for the Cohere chat API. Cohere takes a
single message plus a preamble, so the conversation is flattened into
text before it is sent.
*/
type CohereProvider struct {
	client   *cohereclient.Client
	settings *Settings
}

func NewCohereProvider(settings *Settings) *CohereProvider {
	key := settings.APIKey

	if key == "" {
		key = os.Getenv("COHERE_API_KEY")
	}

	return &CohereProvider{
		client:   cohereclient.NewClient(cohereclient.WithToken(key)),
		settings: settings,
	}
}

func (prvdr *CohereProvider) Complete(ctx context.Context, request Request) (*Response, error) {
	preamble, message := prvdr.convertMessages(request.Messages)

	params := &cohere.ChatRequest{Message: message}

	if tools := prvdr.convertTools(request.Tools); len(tools) > 0 {
		params.Tools = tools
	}

	if prvdr.settings.Model != "" {
		model := prvdr.settings.Model
		params.Model = &model
	}

	if preamble != "" {
		params.Preamble = &preamble
	}

	if prvdr.settings.MaxTokens > 0 {
		maxTokens := int(prvdr.settings.MaxTokens)
		params.MaxTokens = &maxTokens
	}

	resp, err := prvdr.client.Chat(ctx, params)

	if err != nil {
		log.Error("cohere completion failed", "error", err)
		return nil, err
	}

	return prvdr.convertResponse(resp)
}

func (prvdr *CohereProvider) convertResponse(resp *cohere.NonStreamedChatResponse) (*Response, error) {
	response := &Response{Content: resp.GetText()}

	for _, toolCall := range resp.GetToolCalls() {
		arguments, err := json.Marshal(toolCall.Parameters)

		if err != nil {
			return nil, fmt.Errorf("invalid parameters for %s: %w", toolCall.Name, err)
		}

		response.ToolCalls = append(response.ToolCalls, ToolCall{
			ID:        fmt.Sprintf("%s-%d", toolCall.Name, len(response.ToolCalls)),
			Name:      toolCall.Name,
			Arguments: string(arguments),
		})
	}

	return response, nil
}

/*
convertMessages joins system turns into the preamble and renders every
other turn as a line of the message.
*/
func (prvdr *CohereProvider) convertMessages(messages []Message) (string, string) {
	var preamble, message strings.Builder

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			preamble.WriteString(msg.Content + "\n")
		case RoleTool:
			fmt.Fprintf(&message, "%s returned: %s\n", msg.Name, msg.Content)
		case RoleAssistant:
			if msg.Content != "" {
				message.WriteString("assistant: " + msg.Content + "\n")
			}

			for _, toolCall := range msg.ToolCalls {
				fmt.Fprintf(&message, "assistant called %s(%s)\n", toolCall.Name, toolCall.Arguments)
			}
		default:
			message.WriteString("user: " + msg.Content + "\n")
		}
	}

	return strings.TrimSpace(preamble.String()), strings.TrimSpace(message.String())
}

func (prvdr *CohereProvider) convertTools(tools []Tool) []*cohere.Tool {
	out := make([]*cohere.Tool, 0, len(tools))

	for _, tool := range tools {
		schema := schemaOrEmpty(tool.Parameters)
		required := requiredFields(schema)
		properties, _ := schema["properties"].(map[string]any)
		definitions := make(map[string]*cohere.ToolParameterDefinitionsValue, len(properties))

		for name, prop := range properties {
			propMap, _ := prop.(map[string]any)
			kind, _ := propMap["type"].(string)

			if kind == "" {
				kind = "string"
			}

			definition := &cohere.ToolParameterDefinitionsValue{Type: kind}

			if desc, ok := propMap["description"].(string); ok {
				definition.Description = &desc
			}

			for _, field := range required {
				if field == name {
					isRequired := true
					definition.Required = &isRequired
				}
			}

			definitions[name] = definition
		}

		out = append(out, &cohere.Tool{
			Name:                 tool.Name,
			Description:          tool.Description,
			ParameterDefinitions: definitions,
		})
	}

	return out
}
