package planner

import (
	"context"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/scenes/pkg/errors"
	"github.com/theapemachine/scenes/pkg/provider"
	"github.com/theapemachine/scenes/pkg/registry"
	"github.com/theapemachine/scenes/pkg/types"
)

const instruction = `You route a user request to the capabilities that can answer it.
Every tool you are given is one capability. Call each tool whose capability is needed to
answer the request, most important first. Do not call any tool when none of them applies.`

/*
Planner picks the scenes worth trying for a request. It only reads the
scene registry.
*/
type Planner struct {
	scenes  *registry.Scenes
	factory provider.Factory
}

func NewPlanner(scenes *registry.Scenes, factory provider.Factory) (*Planner, error) {
	var errs []any

	if scenes == nil {
		errs = append(errs, errors.ErrMissingRegistry)
	}

	if factory == nil {
		errs = append(errs, errors.ErrMissingProvider)
	}

	if len(errs) > 0 {
		return nil, errors.NewError(append(errs, "planner is missing collaborators")...)
	}

	return &Planner{scenes: scenes, factory: factory}, nil
}

/*
CreatePlan asks the model which of the candidate scenes apply. avoid is
the union of the caller's exclusions and the scenes already used. The
names the model returns are kept in order, without duplicates, and only
when they are real candidates.
*/
func (planner *Planner) CreatePlan(
	ctx context.Context, settings types.RequestSettings, avoid []string,
) (types.ExecutionPlan, error) {
	excluded := union(settings.AvoidScenes, avoid)
	candidates := planner.candidates(settings, excluded)
	plan := types.ExecutionPlan{Scenes: []string{}, Excluded: excluded}

	if len(candidates) == 0 {
		log.Info("no candidate scenes", "requestKey", settings.RequestKey, "excluded", excluded)
		return plan, nil
	}

	tools := make([]provider.Tool, 0, len(candidates))

	for _, scene := range candidates {
		tools = append(tools, scene.Tool())
	}

	response, err := planner.factory().Complete(ctx, provider.Request{
		Messages: []provider.Message{
			provider.SystemMessage(instruction),
			provider.UserMessage(settings.Message),
		},
		Tools: tools,
	})

	if err != nil {
		log.Error("planning failed", "requestKey", settings.RequestKey, "error", err)
		return plan, fmt.Errorf("%w: %v", errors.ErrPlanningUnavailable, err)
	}

	for _, call := range response.ToolCalls {
		if slices.Contains(plan.Scenes, call.Name) {
			continue
		}

		if !slices.ContainsFunc(candidates, func(scene *registry.Scene) bool {
			return scene.Name == call.Name
		}) {
			log.Warn("planner chose an unknown scene", "scene", call.Name)
			continue
		}

		plan.Scenes = append(plan.Scenes, call.Name)
	}

	log.Info("planned", "requestKey", settings.RequestKey, "scenes", plan.Scenes)
	return plan, nil
}

/*
candidates narrows the registry for the request: explicit scene names
first, then scenes matching the inbound path, otherwise every scene.
*/
func (planner *Planner) candidates(settings types.RequestSettings, excluded []string) []*registry.Scene {
	available := planner.scenes.Available(excluded)

	var names []string

	switch {
	case len(settings.Scenes) > 0:
		names = settings.Scenes
	case settings.Path != "":
		names = planner.scenes.ChooseRightPath(settings.Path)
	}

	if len(names) == 0 {
		return available
	}

	return slices.DeleteFunc(available, func(scene *registry.Scene) bool {
		return !slices.Contains(names, scene.Name)
	})
}

func union(sets ...[]string) []string {
	out := make([]string, 0)

	for _, set := range sets {
		for _, name := range set {
			if !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
	}

	return out
}
