package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pkoukk/tiktoken-go"
	"github.com/theapemachine/scenes/pkg/errors"
	"github.com/theapemachine/scenes/pkg/provider"
	"github.com/theapemachine/scenes/pkg/types"
)

const instruction = `You condense the history of an ongoing conversation between a user and
an assistant that calls tools. Keep every fact the assistant learned, every tool result that
is still relevant, and what the user originally asked. Answer with the summary only.`

/*
Summarizer decides when a response history has grown too large and
condenses it into a single narrative turn.
*/
type Summarizer struct {
	factory      provider.Factory
	maxResponses int
	maxTokens    int
	encoding     *tiktoken.Tiktoken
}

type SummarizerOption func(*Summarizer)

func NewSummarizer(factory provider.Factory, options ...SummarizerOption) (*Summarizer, error) {
	if factory == nil {
		return nil, errors.NewError(errors.ErrMissingProvider, "summarizer needs a provider")
	}

	summarizer := &Summarizer{
		factory:      factory,
		maxResponses: 24,
		maxTokens:    3000,
	}

	for _, option := range options {
		option(summarizer)
	}

	return summarizer, nil
}

/*
ShouldSummarize is true once the history holds more responses, or
more tokens, than the configured thresholds.
*/
func (summarizer *Summarizer) ShouldSummarize(responses []types.AiSceneResponse) bool {
	if summarizer.maxResponses > 0 && len(responses) > summarizer.maxResponses {
		return true
	}

	return summarizer.maxTokens > 0 && summarizer.tokens(Render(responses)) > summarizer.maxTokens
}

func (summarizer *Summarizer) tokens(text string) int {
	if summarizer.encoding != nil {
		return len(summarizer.encoding.Encode(text, nil, nil))
	}

	// Roughly four characters per token for English text.
	return len(text) / 4
}

/*
Summarize asks the model for a condensed version of the history.
*/
func (summarizer *Summarizer) Summarize(
	ctx context.Context, responses []types.AiSceneResponse,
) (string, error) {
	if len(responses) == 0 {
		return "", nil
	}

	response, err := summarizer.factory().Complete(ctx, provider.Request{
		Messages: []provider.Message{
			provider.SystemMessage(instruction),
			provider.UserMessage(Render(responses)),
		},
	})

	if err != nil {
		log.Error("failed to summarize history", "responses", len(responses), "error", err)
		return "", err
	}

	log.Debug("summarized history", "responses", len(responses), "length", len(response.Content))
	return strings.TrimSpace(response.Content), nil
}

/*
Render prints the history as one line per response.
*/
func Render(responses []types.AiSceneResponse) string {
	var sb strings.Builder

	for _, response := range responses {
		sb.WriteString("[" + string(response.Status) + "]")

		if response.SceneName != "" {
			sb.WriteString(" scene=" + response.SceneName)
		}

		if response.FunctionName != "" {
			sb.WriteString(fmt.Sprintf(" function=%s(%s)", response.FunctionName, response.Arguments))
		}

		if response.ToolResult != "" {
			sb.WriteString(" result=" + response.ToolResult)
		}

		if response.Message != "" {
			sb.WriteString(" message=" + response.Message)
		}

		sb.WriteString("\n")
	}

	return sb.String()
}

/*
WithThresholds sets the response count and token count limits. Zero
disables a limit.
*/
func WithThresholds(maxResponses, maxTokens int) SummarizerOption {
	return func(summarizer *Summarizer) {
		summarizer.maxResponses = maxResponses
		summarizer.maxTokens = maxTokens
	}
}

/*
WithTokenizer counts tokens with the encoding of the model. When the
encoding cannot be loaded the character estimate is kept.
*/
func WithTokenizer(model string) SummarizerOption {
	return func(summarizer *Summarizer) {
		encoding, err := tiktoken.EncodingForModel(model)

		if err != nil {
			log.Warn("no tokenizer for model, estimating", "model", model, "error", err)
			return
		}

		summarizer.encoding = encoding
	}
}
