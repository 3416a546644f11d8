package ai

import (
	"context"
	"slices"

	"github.com/theapemachine/scenes/pkg/metrics"
	"github.com/theapemachine/scenes/pkg/provider"
	"github.com/theapemachine/scenes/pkg/types"
)

/*
SceneContext is the mutable state of one request. It belongs to a single
run of the loop and is never shared.
*/
type SceneContext struct {
	Settings  types.RequestSettings
	Responses []types.AiSceneResponse
	Summary   string
	Factory   provider.Factory

	ctx    context.Context
	stream *Stream
	used   []string
	cut    []string
}

func newSceneContext(
	ctx context.Context,
	settings types.RequestSettings,
	history []types.AiSceneResponse,
	factory provider.Factory,
	stream *Stream,
) *SceneContext {
	sc := &SceneContext{
		Settings:  settings,
		Responses: history,
		Factory:   factory,
		ctx:       ctx,
		stream:    stream,
	}

	// A resumed request keeps the scenes its earlier rounds already ran.
	for _, response := range history {
		if response.Status.IsTerminal() && response.SceneName != "" {
			sc.markUsed(response.SceneName)
		}
	}

	return sc
}

/*
emit records the event and hands it to the consumer. It blocks while the
buffer is full and gives up, returning false, once the request has been
cancelled.
*/
func (sc *SceneContext) emit(status types.Status, opts ...types.ResponseOption) bool {
	if sc.ctx.Err() != nil {
		return false
	}

	response := types.NewAiSceneResponse(sc.Settings.RequestKey, status, opts...)

	select {
	case <-sc.ctx.Done():
		return false
	case sc.stream.events <- response:
	}

	sc.Responses = append(sc.Responses, response)
	metrics.ObserveEvent(string(status))

	return true
}

func (sc *SceneContext) markUsed(scene string) {
	if !slices.Contains(sc.used, scene) {
		sc.used = append(sc.used, scene)
	}
}

func (sc *SceneContext) cutScenes(scenes []string) {
	for _, scene := range scenes {
		if !slices.Contains(sc.cut, scene) {
			sc.cut = append(sc.cut, scene)
		}
	}
}

/*
avoid is every scene the planner must not offer again.
*/
func (sc *SceneContext) avoid() []string {
	out := append([]string{}, sc.used...)

	for _, scene := range sc.cut {
		if !slices.Contains(out, scene) {
			out = append(out, scene)
		}
	}

	return out
}

/*
Used returns the scenes that have run a round, in order.
*/
func (sc *SceneContext) Used() []string {
	return append([]string{}, sc.used...)
}

/*
history turns the past into conversation turns: the summary when there
is one, otherwise the messages and tool results recorded so far.
*/
func (sc *SceneContext) history() []provider.Message {
	if sc.Summary != "" {
		return []provider.Message{
			provider.SystemMessage("Summary of the conversation so far:\n" + sc.Summary),
		}
	}

	out := make([]provider.Message, 0)

	for _, response := range sc.Responses {
		switch {
		case response.ToolResult != "" && response.FunctionName != "":
			out = append(out, provider.SystemMessage(
				response.FunctionName+"("+response.Arguments+") returned: "+response.ToolResult,
			))
		case response.Message != "" && response.Status.IsTerminal() && response.Status != types.StatusFinishedError:
			out = append(out, provider.AssistantMessage(response.Message))
		}
	}

	return out
}
