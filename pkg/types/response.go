package types

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
)

/*
Status enumerates the step an AiSceneResponse reports. The Finished*
values are terminal for the scene round that produced them.
*/
type Status string

const (
	StatusStarting              Status = "starting"
	StatusRunning               Status = "running"
	StatusFunctionStreamRequest Status = "function-stream-request"
	StatusFunctionRequest       Status = "function-request"
	StatusFinishedOk            Status = "finished-ok"
	StatusFinishedNoTool        Status = "finished-no-tool"
	StatusFinishedWarning       Status = "finished-warning"
	StatusFinishedError         Status = "finished-error"
)

/*
IsTerminal reports whether the status closes a scene round.
*/
func (status Status) IsTerminal() bool {
	switch status {
	case StatusFinishedOk, StatusFinishedNoTool, StatusFinishedWarning, StatusFinishedError:
		return true
	}

	return false
}

/*
AiSceneResponse is one event in the response timeline of a request.
The full ordered sequence for a request is what gets cached and summarized.
*/
type AiSceneResponse struct {
	RequestKey   string    `json:"requestKey"`
	ID           string    `json:"id"`
	SceneName    string    `json:"sceneName,omitempty"`
	FunctionName string    `json:"functionName,omitempty"`
	Message      string    `json:"message,omitempty"`
	Arguments    string    `json:"arguments,omitempty"`
	ToolResult   string    `json:"toolResult,omitempty"`
	Status       Status    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
}

/*
ResponseOption customises a response while it is being created.
*/
type ResponseOption func(*AiSceneResponse)

/*
NewAiSceneResponse creates a response with a fresh id and the current
time, which is stored in UTC so it survives a cache round-trip unchanged.
*/
func NewAiSceneResponse(requestKey string, status Status, opts ...ResponseOption) AiSceneResponse {
	response := AiSceneResponse{
		RequestKey: requestKey,
		ID:         uuid.NewString(),
		Status:     status,
		Timestamp:  time.Now().UTC(),
	}

	for _, opt := range opts {
		opt(&response)
	}

	return response
}

func WithScene(name string) ResponseOption {
	return func(response *AiSceneResponse) {
		response.SceneName = name
	}
}

func WithFunction(name, arguments string) ResponseOption {
	return func(response *AiSceneResponse) {
		response.FunctionName = name
		response.Arguments = arguments
	}
}

func WithMessage(message string) ResponseOption {
	return func(response *AiSceneResponse) {
		response.Message = message
	}
}

func WithToolResult(result string) ResponseOption {
	return func(response *AiSceneResponse) {
		response.ToolResult = result
	}
}

/*
LastMessage returns the most recent non-empty message in the history,
which is the last thing the assistant said to the user.
*/
func LastMessage(responses []AiSceneResponse) (string, bool) {
	for idx := len(responses) - 1; idx >= 0; idx-- {
		if responses[idx].Message != "" {
			return responses[idx].Message, true
		}
	}

	return "", false
}

func (response AiSceneResponse) String() string {
	var sb strings.Builder

	statusStyle := lipgloss.NewStyle().Bold(true).Foreground(statusColor(response.Status))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	sb.WriteString(statusStyle.Render("["+string(response.Status)+"]"))

	if response.SceneName != "" {
		sb.WriteString(" " + labelStyle.Render("scene: ") + valueStyle.Render(response.SceneName))
	}

	if response.FunctionName != "" {
		sb.WriteString(" " + labelStyle.Render("function: ") + valueStyle.Render(response.FunctionName))
	}

	if response.Arguments != "" {
		sb.WriteString(" " + labelStyle.Render("args: ") + valueStyle.Render(response.Arguments))
	}

	if response.ToolResult != "" {
		sb.WriteString("\n│ " + valueStyle.Render(response.ToolResult))
	}

	if response.Message != "" {
		sb.WriteString("\n│ " + valueStyle.Render(response.Message))
	}

	return sb.String()
}

func statusColor(status Status) lipgloss.Color {
	switch status {
	case StatusFinishedOk:
		return lipgloss.Color("10")
	case StatusFinishedNoTool:
		return lipgloss.Color("12")
	case StatusFinishedWarning:
		return lipgloss.Color("11")
	case StatusFinishedError:
		return lipgloss.Color("9")
	case StatusFunctionRequest, StatusFunctionStreamRequest:
		return lipgloss.Color("99")
	default:
		return lipgloss.Color("245")
	}
}
