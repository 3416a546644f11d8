package provider

import (
	"context"
	"fmt"
	"os"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

/*
Role of a turn in the conversation sent to a chat model.
*/
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

/*
ToolCall is one tool invocation requested by the model. Arguments is the
opaque payload exactly as the model produced it.
*/
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

/*
Message is a single conversation turn. ToolCalls is only set on assistant
turns that requested tools, ToolCallID only on tool-result turns.
*/
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
}

/*
Tool is the schema of a function offered to the model.
*/
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type Request struct {
	Messages []Message
	Tools    []Tool
}

/*
Response is the first choice of a completion: either a plain message or
a list of tool calls.
*/
type Response struct {
	Content   string
	ToolCalls []ToolCall
}

func (response *Response) HasToolCalls() bool {
	return response != nil && len(response.ToolCalls) > 0
}

/*
Interface is the narrow contract every chat-completion backend satisfies.
*/
type Interface interface {
	Complete(ctx context.Context, request Request) (*Response, error)
}

/*
Factory creates a fresh client, one per scene round.
*/
type Factory func() Interface

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

func ToolMessage(toolCallID, name, content string) Message {
	return Message{Role: RoleTool, ToolCallID: toolCallID, Name: name, Content: content}
}

/*
New builds a factory for the named backend. Every call to the factory
returns a new client configured with the same model.
*/
func New(name, model string, options ...Option) (Factory, error) {
	settings := &Settings{Model: model}

	for _, option := range options {
		option(settings)
	}

	switch name {
	case "openai":
		return func() Interface { return NewOpenAIProvider(settings) }, nil
	case "anthropic":
		return func() Interface { return NewAnthropicProvider(settings) }, nil
	case "ollama":
		return func() Interface { return NewOllamaProvider(settings) }, nil
	case "cohere":
		return func() Interface { return NewCohereProvider(settings) }, nil
	case "google":
		return func() Interface { return NewGoogleProvider(settings) }, nil
	case "deepseek":
		if settings.BaseURL == "" {
			settings.BaseURL = deepseekBaseURL
		}

		if settings.APIKey == "" {
			settings.APIKey = os.Getenv("DEEPSEEK_API_KEY")
		}

		return func() Interface { return NewOpenAIProvider(settings) }, nil
	}

	return nil, fmt.Errorf("unknown provider: %s", name)
}

/*
Settings holds what the backend adapters share.
*/
type Settings struct {
	Model     string
	APIKey    string
	BaseURL   string
	MaxTokens int64
}

type Option func(*Settings)

func WithAPIKey(key string) Option {
	return func(settings *Settings) {
		settings.APIKey = key
	}
}

func WithBaseURL(url string) Option {
	return func(settings *Settings) {
		settings.BaseURL = url
	}
}

func WithMaxTokens(maxTokens int64) Option {
	return func(settings *Settings) {
		settings.MaxTokens = maxTokens
	}
}
