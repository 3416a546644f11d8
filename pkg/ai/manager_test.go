package ai

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/theapemachine/scenes/pkg/director"
	"github.com/theapemachine/scenes/pkg/errors"
	"github.com/theapemachine/scenes/pkg/planner"
	"github.com/theapemachine/scenes/pkg/provider"
	"github.com/theapemachine/scenes/pkg/registry"
	"github.com/theapemachine/scenes/pkg/stores"
	"github.com/theapemachine/scenes/pkg/tools"
	"github.com/theapemachine/scenes/pkg/types"
)

type fixture struct {
	scenes    *registry.Scenes
	functions *registry.Functions
	services  *tools.Services
	cache     *stores.MemoryCache
	planner   *provider.Scripted
	scene     *provider.Scripted
	director  *provider.Scripted
}

func newFixture() *fixture {
	fix := &fixture{
		scenes:    registry.NewScenes(),
		functions: registry.NewFunctions(),
		services:  tools.NewServices(),
		cache:     stores.NewMemoryCache(),
	}

	So(fix.scenes.Register(&registry.Scene{
		Name: "Weather", Description: "forecasts", Functions: []string{"getWeather"},
	}), ShouldBeNil)
	So(fix.scenes.Register(&registry.Scene{Name: "Travel", Description: "bookings"}), ShouldBeNil)
	So(fix.functions.Register(&registry.Function{
		Name:    "getWeather",
		Scenes:  []string{"Weather"},
		Service: &registry.ServiceTarget{Name: "weather"},
	}), ShouldBeNil)

	fix.services.Register("weather", tools.ServiceFunc(
		func(ctx context.Context, arguments tools.Arguments) (string, error) {
			return "22C sunny", nil
		},
	))

	return fix
}

func (fix *fixture) manager(options ...SceneManagerOption) *SceneManager {
	scenePlanner, err := planner.NewPlanner(fix.scenes, fix.planner.Factory())
	So(err, ShouldBeNil)

	sceneDirector, err := director.NewDirector(fix.scenes, fix.director.Factory())
	So(err, ShouldBeNil)

	manager, err := NewSceneManager(append([]SceneManagerOption{
		WithScenes(fix.scenes),
		WithFunctions(fix.functions),
		WithDispatcher(tools.NewDispatcher(tools.WithFunctions(fix.functions), tools.WithServices(fix.services))),
		WithProvider(fix.scene.Factory()),
		WithPlanner(scenePlanner),
		WithDirector(sceneDirector),
		WithCache(fix.cache),
	}, options...)...)
	So(err, ShouldBeNil)

	return manager
}

func statuses(events []types.AiSceneResponse) []types.Status {
	out := make([]types.Status, 0, len(events))

	for _, event := range events {
		out = append(out, event.Status)
	}

	return out
}

func count(events []types.AiSceneResponse, status types.Status) int {
	total := 0

	for _, event := range events {
		if event.Status == status {
			total++
		}
	}

	return total
}

func settings() types.RequestSettings {
	return types.RequestSettings{RequestKey: "req-1", Message: "What's the weather?"}
}

func TestNewSceneManager(t *testing.T) {
	Convey("Missing collaborators are reported together", t, func() {
		_, err := NewSceneManager()

		So(errors.Is(err, errors.ErrMissingRegistry), ShouldBeTrue)
		So(errors.Is(err, errors.ErrMissingProvider), ShouldBeTrue)
		So(errors.Is(err, errors.ErrMissingDispatcher), ShouldBeTrue)
		So(errors.Is(err, errors.ErrMissingCache), ShouldBeTrue)
	})
}

func TestWeatherScenario(t *testing.T) {
	Convey("Given a weather scene with one function", t, func() {
		fix := newFixture()
		fix.planner = provider.NewScripted(provider.CallTools(provider.ToolCall{ID: "p1", Name: "Weather"}))
		fix.scene = provider.NewScripted(
			provider.CallTools(provider.ToolCall{ID: "c1", Name: "getWeather", Arguments: "{}"}),
			provider.Reply("It's 22C and sunny"),
		)
		fix.director = provider.NewScripted(provider.Reply("yes"))

		events, err := fix.manager().Run(context.Background(), settings()).Collect()

		Convey("The request ends after a single satisfied round", func() {
			So(err, ShouldBeNil)
			So(statuses(events), ShouldResemble, []types.Status{
				types.StatusStarting,
				types.StatusFunctionRequest,
				types.StatusRunning,
				types.StatusFinishedOk,
			})
			So(count(events, types.StatusFinishedOk), ShouldEqual, 1)
			So(events[2].ToolResult, ShouldEqual, "22C sunny")
			So(events[3].Message, ShouldEqual, "It's 22C and sunny")
			So(events[3].SceneName, ShouldEqual, "Weather")
			So(fix.planner.Calls(), ShouldEqual, 1)
			So(fix.director.Calls(), ShouldEqual, 1)
		})

		Convey("The tool result is fed back as a tool turn", func() {
			second := fix.scene.Requests()[1]
			last := second.Messages[len(second.Messages)-1]

			So(last.Role, ShouldEqual, provider.RoleTool)
			So(last.ToolCallID, ShouldEqual, "c1")
			So(last.Content, ShouldEqual, "22C sunny")
		})

		Convey("The whole timeline is cached", func() {
			cached, err := fix.cache.Get(context.Background(), "req-1")

			So(err, ShouldBeNil)
			So(cached, ShouldResemble, events)
		})
	})
}

func TestSceneWithoutFunctions(t *testing.T) {
	Convey("A scene without functions still finishes without dispatching", t, func() {
		fix := newFixture()
		fix.planner = provider.NewScripted(provider.CallTools(provider.ToolCall{ID: "p1", Name: "Travel"}))
		fix.scene = provider.NewScripted(provider.Reply("Booked"))
		fix.director = provider.NewScripted(provider.Reply("yes"))

		events, err := fix.manager().Run(context.Background(), settings()).Collect()

		So(err, ShouldBeNil)
		So(statuses(events), ShouldResemble, []types.Status{types.StatusStarting, types.StatusFinishedOk})
		So(fix.scene.Requests()[0].Tools, ShouldBeEmpty)
	})
}

func TestNoScenesApply(t *testing.T) {
	Convey("An empty first plan is answered without tools", t, func() {
		fix := newFixture()
		fix.planner = provider.NewScripted(provider.Reply("nothing applies"))
		fix.scene = provider.NewScripted(provider.Reply("Hello there"))
		fix.director = provider.NewScripted(provider.Reply("yes"))

		events, err := fix.manager().Run(context.Background(), settings()).Collect()

		So(err, ShouldBeNil)
		So(statuses(events), ShouldResemble, []types.Status{types.StatusStarting, types.StatusFinishedNoTool})
		So(events[1].Message, ShouldEqual, "Hello there")
		So(fix.director.Calls(), ShouldEqual, 0)
	})
}

func TestPlanningFailure(t *testing.T) {
	Convey("A planning failure is fatal for the request", t, func() {
		fix := newFixture()
		fix.planner = provider.NewScripted(provider.Fail(errors.New("upstream down")))
		fix.scene = provider.NewScripted(provider.Reply("unused"))
		fix.director = provider.NewScripted(provider.Reply("yes"))

		events, err := fix.manager().Run(context.Background(), settings()).Collect()

		So(errors.Is(err, errors.ErrPlanningUnavailable), ShouldBeTrue)
		So(statuses(events), ShouldResemble, []types.Status{types.StatusStarting, types.StatusFinishedError})
		So(fix.scene.Calls(), ShouldEqual, 0)
	})
}

func TestToolFailure(t *testing.T) {
	Convey("A failing tool turns the round into a warning", t, func() {
		fix := newFixture()
		fix.services.Register("weather", tools.ServiceFunc(
			func(ctx context.Context, arguments tools.Arguments) (string, error) {
				return "", errors.New("station offline")
			},
		))
		fix.planner = provider.NewScripted(
			provider.CallTools(provider.ToolCall{ID: "p1", Name: "Weather"}),
			provider.CallTools(provider.ToolCall{ID: "p2", Name: "Travel"}),
		)
		fix.scene = provider.NewScripted(
			provider.CallTools(provider.ToolCall{ID: "c1", Name: "getWeather", Arguments: "{}"}),
			provider.Reply("Backup station says 22C sunny"),
			provider.Reply("Booked a flight"),
		)

		Convey("A satisfied director ends the request", func() {
			fix.director = provider.NewScripted(provider.Reply("yes"))

			events, err := fix.manager().Run(context.Background(), settings()).Collect()

			So(err, ShouldBeNil)
			So(statuses(events), ShouldResemble, []types.Status{
				types.StatusStarting,
				types.StatusFunctionRequest,
				types.StatusRunning,
				types.StatusFinishedWarning,
			})
			So(events[2].ToolResult, ShouldContainSubstring, "station offline")
			So(fix.director.Calls(), ShouldEqual, 1)
			So(fix.planner.Calls(), ShouldEqual, 1)
			So(fix.scene.Calls(), ShouldEqual, 2)

			feedback := fix.scene.Requests()[1].Messages
			So(feedback[len(feedback)-1].Content, ShouldContainSubstring, "station offline")
		})

		Convey("An unsatisfied director runs the next scene", func() {
			fix.director = provider.NewScripted(provider.Reply("no"), provider.Reply("yes"))

			events, err := fix.manager().Run(context.Background(), settings()).Collect()

			So(err, ShouldBeNil)
			last := events[len(events)-1]
			So(last.Status, ShouldEqual, types.StatusFinishedOk)
			So(last.SceneName, ShouldEqual, "Travel")
			So(fix.director.Calls(), ShouldEqual, 2)
		})
	})

	Convey("Calling a function outside the scene is a tool failure", t, func() {
		fix := newFixture()
		fix.planner = provider.NewScripted(
			provider.CallTools(provider.ToolCall{ID: "p1", Name: "Travel"}),
			provider.Reply("done"),
		)
		fix.scene = provider.NewScripted(
			provider.CallTools(provider.ToolCall{ID: "c1", Name: "getWeather", Arguments: "{}"}),
			provider.Reply("Sorry"),
		)
		fix.director = provider.NewScripted(provider.Reply("yes"))

		events, _ := fix.manager().Run(context.Background(), settings()).Collect()

		So(count(events, types.StatusFinishedWarning), ShouldEqual, 1)
		So(events[2].ToolResult, ShouldContainSubstring, "not available in scene Travel")
	})
}

func TestRoundLimit(t *testing.T) {
	Convey("A model that never stops calling tools hits the round limit", t, func() {
		fix := newFixture()
		fix.planner = provider.NewScripted(
			provider.CallTools(provider.ToolCall{ID: "p1", Name: "Weather"}),
			provider.Reply("done"),
		)
		fix.scene = provider.NewScripted(
			provider.CallTools(provider.ToolCall{ID: "c1", Name: "getWeather", Arguments: "{}"}),
		)
		fix.director = provider.NewScripted(provider.Reply("yes"))

		events, err := fix.manager(WithLimits(Limits{MaxToolIterations: 2})).
			Run(context.Background(), settings()).Collect()

		So(err, ShouldBeNil)
		So(statuses(events), ShouldResemble, []types.Status{
			types.StatusStarting,
			types.StatusFunctionRequest,
			types.StatusRunning,
			types.StatusFunctionRequest,
			types.StatusRunning,
			types.StatusFinishedError,
			types.StatusFinishedNoTool,
		})
		So(events[5].Message, ShouldContainSubstring, errors.ErrRoundLimitExceeded.Error())
		So(fix.scene.Calls(), ShouldEqual, 2)
	})
}

func TestDirectorContinues(t *testing.T) {
	Convey("When the director is not satisfied another scene runs", t, func() {
		fix := newFixture()
		fix.planner = provider.NewScripted(
			provider.CallTools(provider.ToolCall{ID: "p1", Name: "Weather"}),
			provider.CallTools(provider.ToolCall{ID: "p2", Name: "Travel"}),
		)
		fix.scene = provider.NewScripted(provider.Reply("Sunny"), provider.Reply("Booked a trip"))
		fix.director = provider.NewScripted(provider.Reply("no"), provider.Reply("yes"))

		summaries := &fakeSummarizer{summary: "the weather is sunny"}
		events, err := fix.manager(WithSummarizer(summaries)).Run(context.Background(), settings()).Collect()

		So(err, ShouldBeNil)
		So(statuses(events), ShouldResemble, []types.Status{
			types.StatusStarting,
			types.StatusFinishedOk,
			types.StatusFinishedOk,
		})
		So(events[1].SceneName, ShouldEqual, "Weather")
		So(events[2].SceneName, ShouldEqual, "Travel")

		Convey("The used scene is not offered again", func() {
			second := fix.planner.Requests()[1]
			So(len(second.Tools), ShouldEqual, 1)
			So(second.Tools[0].Name, ShouldEqual, "Travel")
		})

		Convey("The summary replaces the history", func() {
			second := fix.scene.Requests()[1].Messages
			So(second[1].Role, ShouldEqual, provider.RoleSystem)
			So(second[1].Content, ShouldContainSubstring, "the weather is sunny")
			So(len(second), ShouldEqual, 3)
		})
	})
}

func TestCancellation(t *testing.T) {
	Convey("Cancelling a request stops the stream without an error", t, func() {
		fix := newFixture()
		fix.scene = provider.NewScripted(provider.Reply("unused"))
		fix.director = provider.NewScripted(provider.Reply("yes"))

		blocked := &blockingProvider{started: make(chan struct{})}
		scenePlanner, _ := planner.NewPlanner(fix.scenes, func() provider.Interface { return blocked })
		fix.planner = provider.NewScripted(provider.Reply("unused"))

		ctx, cancel := context.WithCancel(context.Background())
		stream := fix.manager(WithPlanner(scenePlanner)).Run(ctx, settings())

		first := <-stream.Events()
		So(first.Status, ShouldEqual, types.StatusStarting)

		select {
		case <-blocked.started:
		case <-time.After(2 * time.Second):
			t.Fatal("planner was never called")
		}

		cancel()

		rest := make([]types.AiSceneResponse, 0)

		for event := range stream.Events() {
			rest = append(rest, event)
		}

		So(rest, ShouldBeEmpty)
		So(stream.Err(), ShouldBeNil)
		So(fix.scene.Calls(), ShouldEqual, 0)
	})
}

type fakeSummarizer struct {
	summary string
}

func (fake *fakeSummarizer) ShouldSummarize(responses []types.AiSceneResponse) bool {
	return len(responses) > 0
}

func (fake *fakeSummarizer) Summarize(ctx context.Context, responses []types.AiSceneResponse) (string, error) {
	return fake.summary, nil
}

type blockingProvider struct {
	started chan struct{}
}

func (blocking *blockingProvider) Complete(ctx context.Context, request provider.Request) (*provider.Response, error) {
	close(blocking.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestResumedRequest(t *testing.T) {
	Convey("Given a request key with a cached Weather round", t, func() {
		fix := newFixture()
		So(fix.cache.Set(context.Background(), "req-1", []types.AiSceneResponse{
			types.NewAiSceneResponse("req-1", types.StatusStarting),
			types.NewAiSceneResponse("req-1", types.StatusFinishedOk,
				types.WithScene("Weather"), types.WithMessage("Sunny"),
			),
		}, 0), ShouldBeNil)

		fix.planner = provider.NewScripted(provider.CallTools(provider.ToolCall{ID: "p1", Name: "Travel"}))
		fix.scene = provider.NewScripted(provider.Reply("Booked a trip"))
		fix.director = provider.NewScripted(provider.Reply("yes"))

		events, err := fix.manager().Run(context.Background(), settings()).Collect()

		So(err, ShouldBeNil)
		So(events[len(events)-1].SceneName, ShouldEqual, "Travel")

		Convey("The scene from the earlier run is not offered again", func() {
			first := fix.planner.Requests()[0]
			So(len(first.Tools), ShouldEqual, 1)
			So(first.Tools[0].Name, ShouldEqual, "Travel")
		})
	})
}
