package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/theapemachine/scenes/pkg/director"
	"github.com/theapemachine/scenes/pkg/errors"
	"github.com/theapemachine/scenes/pkg/metrics"
	"github.com/theapemachine/scenes/pkg/planner"
	"github.com/theapemachine/scenes/pkg/provider"
	"github.com/theapemachine/scenes/pkg/registry"
	"github.com/theapemachine/scenes/pkg/stores"
	"github.com/theapemachine/scenes/pkg/types"
)

/*
Planner selects the scenes for the next round.
*/
type Planner interface {
	CreatePlan(ctx context.Context, settings types.RequestSettings, avoid []string) (types.ExecutionPlan, error)
}

/*
Director judges whether the request needs another round.
*/
type Director interface {
	Direct(
		ctx context.Context,
		settings types.RequestSettings,
		responses []types.AiSceneResponse,
		used []string,
	) types.DirectorResponse
}

type Summarizer interface {
	ShouldSummarize(responses []types.AiSceneResponse) bool
	Summarize(ctx context.Context, responses []types.AiSceneResponse) (string, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, function *registry.Function, payload string) (string, error)
}

/*
Limits bound a single request.
*/
type Limits struct {
	MaxSceneRounds    int           `mapstructure:"max_scene_rounds"`
	MaxToolIterations int           `mapstructure:"max_tool_iterations"`
	Buffer            int           `mapstructure:"buffer"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxSceneRounds:    5,
		MaxToolIterations: 8,
		Buffer:            16,
		CacheTTL:          24 * time.Hour,
	}
}

/*
SceneManager runs the loop that takes a request from planning, through
scene rounds and tool calls, to a verdict.
*/
type SceneManager struct {
	scenes     *registry.Scenes
	functions  *registry.Functions
	dispatcher Dispatcher
	factory    provider.Factory
	planner    Planner
	director   Director
	summarizer Summarizer
	cache      stores.Cache
	limits     Limits
}

type SceneManagerOption func(*SceneManager)

func NewSceneManager(options ...SceneManagerOption) (*SceneManager, error) {
	manager := &SceneManager{limits: DefaultLimits()}

	for _, option := range options {
		option(manager)
	}

	var errs []any

	if manager.scenes == nil || manager.functions == nil {
		errs = append(errs, errors.ErrMissingRegistry)
	}

	if manager.factory == nil {
		errs = append(errs, errors.ErrMissingProvider)
	}

	if manager.dispatcher == nil {
		errs = append(errs, errors.ErrMissingDispatcher)
	}

	if manager.cache == nil {
		errs = append(errs, errors.ErrMissingCache)
	}

	if len(errs) > 0 {
		return nil, errors.NewError(append(errs, "scene manager is missing collaborators")...)
	}

	if manager.planner == nil {
		scenePlanner, err := planner.NewPlanner(manager.scenes, manager.factory)

		if err != nil {
			return nil, err
		}

		manager.planner = scenePlanner
	}

	if manager.director == nil {
		sceneDirector, err := director.NewDirector(manager.scenes, manager.factory)

		if err != nil {
			return nil, err
		}

		manager.director = sceneDirector
	}

	return manager, nil
}

/*
Run starts the request and returns its event stream straight away. The
loop runs until a terminal event, a fatal error or ctx is cancelled.
*/
func (manager *SceneManager) Run(ctx context.Context, settings types.RequestSettings) *Stream {
	if settings.RequestKey == "" {
		settings.RequestKey = uuid.NewString()
	}

	stream := newStream(manager.limits.Buffer)

	go func() {
		defer close(stream.events)
		manager.run(ctx, settings, stream)
	}()

	return stream
}

func (manager *SceneManager) run(ctx context.Context, settings types.RequestSettings, stream *Stream) {
	history, err := manager.cache.Get(ctx, settings.RequestKey)

	if err != nil {
		log.Warn("could not load history", "requestKey", settings.RequestKey, "error", err)
	}

	sc := newSceneContext(ctx, settings, history, manager.factory, stream)

	if !sc.emit(types.StatusStarting) {
		return
	}

	defer manager.persist(sc)

	for round := 0; round < manager.limits.MaxSceneRounds; round++ {
		plan, err := manager.planner.CreatePlan(ctx, settings, sc.avoid())

		if ctx.Err() != nil {
			return
		}

		if err != nil {
			sc.emit(types.StatusFinishedError, types.WithMessage(err.Error()))
			stream.fail(err)
			return
		}

		if plan.Empty() {
			if round == 0 {
				manager.answer(sc)
				return
			}

			sc.emit(types.StatusFinishedNoTool, types.WithMessage("no further scenes apply"))
			return
		}

		scene, ok := manager.scenes.TryGet(plan.Scenes[0])

		if !ok {
			sc.emit(types.StatusFinishedError, types.WithMessage("planned scene vanished: "+plan.Scenes[0]))
			stream.fail(fmt.Errorf("%w: unknown scene %s", errors.ErrPlanningUnavailable, plan.Scenes[0]))
			return
		}

		status := manager.round(sc, scene)
		sc.markUsed(scene.Name)
		metrics.ObserveRound(scene.Name)

		if ctx.Err() != nil {
			return
		}

		manager.persist(sc)
		manager.condense(sc)

		// A failed round left no answer to judge.
		if status == types.StatusFinishedError {
			continue
		}

		verdict := manager.director.Direct(ctx, settings, sc.Responses, sc.Used())

		if !verdict.ExecuteAgain {
			return
		}

		sc.cutScenes(verdict.CutScenes)
	}

	sc.emit(types.StatusFinishedNoTool, types.WithMessage("scene round limit reached"))
}

/*
answer handles a request no scene applies to with a plain chat call.
*/
func (manager *SceneManager) answer(sc *SceneContext) {
	messages := append(sc.history(), provider.UserMessage(sc.Settings.Message))
	response, err := sc.Factory().Complete(sc.ctx, provider.Request{Messages: messages})

	if sc.ctx.Err() != nil {
		return
	}

	if err != nil {
		sc.emit(types.StatusFinishedError, types.WithMessage(err.Error()))
		return
	}

	sc.emit(types.StatusFinishedNoTool, types.WithMessage(response.Content))
}

/*
round runs one scene until the model answers in plain text. It returns the
terminal status it emitted.
*/
func (manager *SceneManager) round(sc *SceneContext, scene *registry.Scene) types.Status {
	var (
		client          = sc.Factory()
		tools, choosers = manager.functions.FunctionsChooser(scene)
		available       = make(map[string]*registry.Function)
		warned          = false
	)

	for _, function := range manager.functions.For(scene) {
		available[function.Name] = function
	}

	messages := append([]provider.Message{scene.Contribution()}, choosers...)
	messages = append(messages, sc.history()...)
	messages = append(messages, provider.UserMessage(sc.Settings.Message))

	log.Info("starting scene round", "requestKey", sc.Settings.RequestKey, "scene", scene.Name, "tools", len(tools))

	for iteration := 0; ; iteration++ {
		if iteration >= manager.limits.MaxToolIterations {
			err := fmt.Errorf("%w: scene %s after %d iterations", errors.ErrRoundLimitExceeded, scene.Name, iteration)
			log.Error("round limit exceeded", "scene", scene.Name, "iterations", iteration)
			sc.emit(types.StatusFinishedError, types.WithScene(scene.Name), types.WithMessage(err.Error()))
			return types.StatusFinishedError
		}

		response, err := client.Complete(sc.ctx, provider.Request{Messages: messages, Tools: tools})

		if sc.ctx.Err() != nil {
			return types.StatusFinishedError
		}

		if err != nil {
			log.Error("chat call failed", "scene", scene.Name, "error", err)
			sc.emit(types.StatusFinishedError, types.WithScene(scene.Name), types.WithMessage(err.Error()))
			return types.StatusFinishedError
		}

		if !response.HasToolCalls() {
			status := types.StatusFinishedOk

			if warned {
				status = types.StatusFinishedWarning
			}

			sc.emit(status, types.WithScene(scene.Name), types.WithMessage(response.Content))
			return status
		}

		messages = append(messages, provider.Message{
			Role:      provider.RoleAssistant,
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})

		for _, call := range response.ToolCalls {
			function, ok := available[call.Name]
			streaming := ok && function.Streaming
			status := types.StatusFunctionRequest

			if streaming {
				status = types.StatusFunctionStreamRequest
			}

			if !sc.emit(status, types.WithScene(scene.Name), types.WithFunction(call.Name, call.Arguments)) {
				return types.StatusFinishedError
			}

			result, err := manager.dispatch(sc.ctx, scene, function, call)

			if sc.ctx.Err() != nil {
				return types.StatusFinishedError
			}

			if err != nil {
				warned = true
				messages = append(messages, provider.ToolMessage(call.ID, call.Name, "error: "+err.Error()))
				sc.emit(types.StatusRunning,
					types.WithScene(scene.Name),
					types.WithFunction(call.Name, call.Arguments),
					types.WithToolResult("error: "+err.Error()),
				)

				continue
			}

			messages = append(messages, provider.ToolMessage(call.ID, call.Name, result))
			sc.emit(types.StatusRunning,
				types.WithScene(scene.Name),
				types.WithFunction(call.Name, call.Arguments),
				types.WithToolResult(result),
			)

			if streaming {
				sc.emit(types.StatusFinishedOk, types.WithScene(scene.Name), types.WithMessage(result))
				return types.StatusFinishedOk
			}
		}
	}
}

func (manager *SceneManager) dispatch(
	ctx context.Context, scene *registry.Scene, function *registry.Function, call provider.ToolCall,
) (string, error) {
	if function == nil {
		return "", &errors.ToolExecutionFailed{
			Tool:   call.Name,
			Target: "none",
			Err:    fmt.Errorf("function %s is not available in scene %s", call.Name, scene.Name),
		}
	}

	return manager.dispatcher.Dispatch(ctx, function, call.Arguments)
}

func (manager *SceneManager) persist(sc *SceneContext) {
	if sc.ctx.Err() != nil {
		return
	}

	if err := manager.cache.Set(sc.ctx, sc.Settings.RequestKey, sc.Responses, manager.limits.CacheTTL); err != nil {
		log.Warn("could not store history", "requestKey", sc.Settings.RequestKey, "error", err)
	}
}

/*
condense swaps the history fed to later chat calls for a summary once it
grows past the summarizer's threshold. The cached history stays complete.
*/
func (manager *SceneManager) condense(sc *SceneContext) {
	if manager.summarizer == nil || !manager.summarizer.ShouldSummarize(sc.Responses) {
		return
	}

	summary, err := manager.summarizer.Summarize(sc.ctx, sc.Responses)

	if err != nil {
		log.Warn("keeping full history", "requestKey", sc.Settings.RequestKey, "error", err)
		return
	}

	sc.Summary = summary
}

func WithScenes(scenes *registry.Scenes) SceneManagerOption {
	return func(manager *SceneManager) {
		manager.scenes = scenes
	}
}

func WithFunctions(functions *registry.Functions) SceneManagerOption {
	return func(manager *SceneManager) {
		manager.functions = functions
	}
}

func WithDispatcher(dispatcher Dispatcher) SceneManagerOption {
	return func(manager *SceneManager) {
		manager.dispatcher = dispatcher
	}
}

func WithProvider(factory provider.Factory) SceneManagerOption {
	return func(manager *SceneManager) {
		manager.factory = factory
	}
}

func WithPlanner(planner Planner) SceneManagerOption {
	return func(manager *SceneManager) {
		manager.planner = planner
	}
}

func WithDirector(director Director) SceneManagerOption {
	return func(manager *SceneManager) {
		manager.director = director
	}
}

func WithSummarizer(summarizer Summarizer) SceneManagerOption {
	return func(manager *SceneManager) {
		manager.summarizer = summarizer
	}
}

func WithCache(cache stores.Cache) SceneManagerOption {
	return func(manager *SceneManager) {
		manager.cache = cache
	}
}

/*
WithLimits overrides the defaults. Zero fields keep their default.
*/
func WithLimits(limits Limits) SceneManagerOption {
	return func(manager *SceneManager) {
		defaults := DefaultLimits()

		if limits.MaxSceneRounds <= 0 {
			limits.MaxSceneRounds = defaults.MaxSceneRounds
		}

		if limits.MaxToolIterations <= 0 {
			limits.MaxToolIterations = defaults.MaxToolIterations
		}

		if limits.Buffer <= 0 {
			limits.Buffer = defaults.Buffer
		}

		if limits.CacheTTL <= 0 {
			limits.CacheTTL = defaults.CacheTTL
		}

		manager.limits = limits
	}
}
