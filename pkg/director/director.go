package director

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/scenes/pkg/errors"
	"github.com/theapemachine/scenes/pkg/provider"
	"github.com/theapemachine/scenes/pkg/registry"
	"github.com/theapemachine/scenes/pkg/types"
)

const instruction = `You judge whether the assistant's last answer fully satisfies the
user's request. Answer with a single word: "yes" when it does, "no" when more work is still
needed from one of the capabilities listed below.`

/*
Director decides after each round whether the request needs another one.
*/
type Director struct {
	scenes  *registry.Scenes
	factory provider.Factory
}

func NewDirector(scenes *registry.Scenes, factory provider.Factory) (*Director, error) {
	var errs []any

	if scenes == nil {
		errs = append(errs, errors.ErrMissingRegistry)
	}

	if factory == nil {
		errs = append(errs, errors.ErrMissingProvider)
	}

	if len(errs) > 0 {
		return nil, errors.NewError(append(errs, "director is missing collaborators")...)
	}

	return &Director{scenes: scenes, factory: factory}, nil
}

/*
Direct judges the history. Without a previous assistant message there is
nothing to judge and no call is made. CutScenes always carries every
used scene, whatever the verdict.
*/
func (director *Director) Direct(
	ctx context.Context,
	settings types.RequestSettings,
	responses []types.AiSceneResponse,
	used []string,
) types.DirectorResponse {
	verdict := types.DirectorResponse{
		CutScenes: append([]string{}, used...),
	}

	last, ok := types.LastMessage(responses)

	if !ok {
		return verdict
	}

	messages := []provider.Message{provider.SystemMessage(instruction)}

	for _, scene := range director.scenes.Available(append(append([]string{}, used...), settings.AvoidScenes...)) {
		messages = append(messages, provider.SystemMessage(
			fmt.Sprintf("Available capability %s: %s", scene.Name, scene.Description),
		))
	}

	messages = append(messages,
		provider.AssistantMessage(last),
		provider.UserMessage(settings.Message),
	)

	response, err := director.factory().Complete(ctx, provider.Request{Messages: messages})

	if err != nil {
		log.Error("director failed, stopping", "requestKey", settings.RequestKey, "error", err)
		return verdict
	}

	verdict.ExecuteAgain = parseVerdict(response.Content)
	log.Info("directed", "requestKey", settings.RequestKey, "executeAgain", verdict.ExecuteAgain)

	return verdict
}

/*
parseVerdict only continues on an exact "no". Anything else stops.
*/
func parseVerdict(content string) bool {
	return strings.ToLower(strings.TrimSpace(content)) == "no"
}
