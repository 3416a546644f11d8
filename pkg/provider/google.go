package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"google.golang.org/genai"
)

/*
GoogleProvider is a provider for the Gemini API.
*/
type GoogleProvider struct {
	client   *genai.Client
	settings *Settings
	err      error
}

func NewGoogleProvider(settings *Settings) *GoogleProvider {
	key := settings.APIKey

	if key == "" {
		key = os.Getenv("GOOGLE_API_KEY")
	}

	config := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}

	if settings.BaseURL != "" {
		config.HTTPOptions = genai.HTTPOptions{BaseURL: settings.BaseURL}
	}

	prvdr := &GoogleProvider{settings: settings}
	prvdr.client, prvdr.err = genai.NewClient(context.Background(), config)

	return prvdr
}

func (prvdr *GoogleProvider) Complete(ctx context.Context, request Request) (*Response, error) {
	if prvdr.err != nil {
		return nil, prvdr.err
	}

	system, contents := prvdr.convertMessages(request.Messages)

	config := &genai.GenerateContentConfig{
		SystemInstruction: system,
	}

	if tools := prvdr.convertTools(request.Tools); len(tools) > 0 {
		config.Tools = tools
	}

	if prvdr.settings.MaxTokens > 0 {
		config.MaxOutputTokens = int32(prvdr.settings.MaxTokens)
	}

	resp, err := prvdr.client.Models.GenerateContent(ctx, prvdr.settings.Model, contents, config)

	if err != nil {
		log.Error("google completion failed", "error", err)
		return nil, err
	}

	return prvdr.convertResponse(resp)
}

func (prvdr *GoogleProvider) convertResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("google returned no content")
	}

	response := &Response{}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.FunctionCall == nil {
			response.Content += part.Text
			continue
		}

		arguments, err := json.Marshal(part.FunctionCall.Args)

		if err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", part.FunctionCall.Name, err)
		}

		id := part.FunctionCall.ID

		if id == "" {
			id = fmt.Sprintf("%s-%d", part.FunctionCall.Name, len(response.ToolCalls))
		}

		response.ToolCalls = append(response.ToolCalls, ToolCall{
			ID:        id,
			Name:      part.FunctionCall.Name,
			Arguments: string(arguments),
		})
	}

	return response, nil
}

/*
convertMessages moves system turns into the system instruction. Tool
results that follow each other share one user turn, which is how Gemini
expects answers to parallel function calls.
*/
func (prvdr *GoogleProvider) convertMessages(messages []Message) (*genai.Content, []*genai.Content) {
	var system *genai.Content

	out := make([]*genai.Content, 0, len(messages))
	lastWasTool := false

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			if system == nil {
				system = &genai.Content{}
			}

			system.Parts = append(system.Parts, &genai.Part{Text: msg.Content})
			lastWasTool = false
		case RoleTool:
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       msg.ToolCallID,
				Name:     msg.Name,
				Response: map[string]any{"content": msg.Content},
			}}

			if lastWasTool {
				last := out[len(out)-1]
				last.Parts = append(last.Parts, part)
				continue
			}

			out = append(out, &genai.Content{Role: "user", Parts: []*genai.Part{part}})
			lastWasTool = true
		case RoleAssistant:
			content := &genai.Content{Role: "model"}

			if msg.Content != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
			}

			for _, toolCall := range msg.ToolCalls {
				content.Parts = append(content.Parts, &genai.Part{FunctionCall: &genai.FunctionCall{
					ID:   toolCall.ID,
					Name: toolCall.Name,
					Args: decodeArguments(toolCall.Arguments),
				}})
			}

			if len(content.Parts) > 0 {
				out = append(out, content)
			}

			lastWasTool = false
		default:
			out = append(out, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: msg.Content}}})
			lastWasTool = false
		}
	}

	return system, out
}

func (prvdr *GoogleProvider) convertTools(tools []Tool) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, 0, len(tools))

	for _, tool := range tools {
		declarations = append(declarations, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  convertSchema(schemaOrEmpty(tool.Parameters)),
		})
	}

	if len(declarations) == 0 {
		return nil
	}

	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

var schemaTypes = map[string]genai.Type{
	"string":  genai.TypeString,
	"number":  genai.TypeNumber,
	"integer": genai.TypeInteger,
	"boolean": genai.TypeBoolean,
	"array":   genai.TypeArray,
	"object":  genai.TypeObject,
}

func convertSchema(schema map[string]any) *genai.Schema {
	converted := &genai.Schema{Type: genai.TypeString}

	if kind, ok := schemaTypes[fmt.Sprint(schema["type"])]; ok {
		converted.Type = kind
	}

	if desc, ok := schema["description"].(string); ok {
		converted.Description = desc
	}

	if properties, ok := schema["properties"].(map[string]any); ok {
		converted.Properties = make(map[string]*genai.Schema, len(properties))

		for name, prop := range properties {
			if propMap, ok := prop.(map[string]any); ok {
				converted.Properties[name] = convertSchema(propMap)
			}
		}
	}

	if items, ok := schema["items"].(map[string]any); ok {
		converted.Items = convertSchema(items)
	}

	converted.Required = requiredFields(schema)

	return converted
}

/*
decodeArguments turns a stored payload back into the object Gemini wants.
A payload that is not an object travels under "input".
*/
func decodeArguments(payload string) map[string]any {
	if payload == "" {
		return map[string]any{}
	}

	var object map[string]any

	if err := json.Unmarshal([]byte(payload), &object); err == nil && object != nil {
		return object
	}

	var value any

	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		value = payload
	}

	return map[string]any{"input": value}
}
