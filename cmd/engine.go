package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/viper"
	"github.com/theapemachine/scenes/pkg/ai"
	"github.com/theapemachine/scenes/pkg/catalog"
	"github.com/theapemachine/scenes/pkg/config"
	"github.com/theapemachine/scenes/pkg/logging"
	"github.com/theapemachine/scenes/pkg/registry"
	"github.com/theapemachine/scenes/pkg/stores"
	"github.com/theapemachine/scenes/pkg/summarizer"
	"github.com/theapemachine/scenes/pkg/tools"
	"github.com/theapemachine/scenes/pkg/tools/browser"
	"github.com/theapemachine/scenes/pkg/tools/github"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

/*
engine holds everything a command needs to run requests.
*/
type engine struct {
	cfg        *config.Config
	scenes     *registry.Scenes
	functions  *registry.Functions
	services   *tools.Services
	clients    *catalog.ClientRegistry
	servers    *catalog.ServerRegistry
	dispatcher *tools.Dispatcher
	cache      stores.Cache
	manager    *ai.SceneManager
}

/*
newEngine loads the configuration and wires the registries, the MCP
clients, the cache and the scene manager.
*/
func newEngine(ctx context.Context) (*engine, error) {
	cfg, err := config.Load(viper.GetViper())

	if err != nil {
		return nil, err
	}

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err = logging.Init(cfg.Logging); err != nil {
		return nil, err
	}

	eng := &engine{
		cfg:       cfg,
		scenes:    registry.NewScenes(),
		functions: registry.NewFunctions(),
		services:  tools.NewServices(),
		clients:   catalog.NewClientRegistry(),
		servers:   catalog.NewServerRegistry(),
	}

	if err = cfg.Apply(eng.scenes, eng.functions); err != nil {
		return nil, err
	}

	for _, exposure := range cfg.MCP.Servers {
		eng.servers.Put(exposure)
	}

	registerBuiltinServices(eng.services)

	if err = eng.connect(ctx); err != nil {
		return nil, err
	}

	if eng.cache, err = stores.NewCache(cfg.Cache); err != nil {
		return nil, err
	}

	if bucket, ok := eng.cache.(interface{ EnsureBucket(context.Context) error }); ok {
		if err = bucket.EnsureBucket(ctx); err != nil {
			return nil, err
		}
	}

	factory, err := cfg.ProviderFactory()

	if err != nil {
		return nil, err
	}

	summarizerOptions := []summarizer.SummarizerOption{
		summarizer.WithThresholds(cfg.Summarizer.MaxResponses, cfg.Summarizer.MaxTokens),
	}

	if cfg.Summarizer.Tokenizer != "" {
		summarizerOptions = append(summarizerOptions, summarizer.WithTokenizer(cfg.Summarizer.Tokenizer))
	}

	historySummarizer, err := summarizer.NewSummarizer(factory, summarizerOptions...)

	if err != nil {
		return nil, err
	}

	eng.dispatcher = tools.NewDispatcher(
		tools.WithFunctions(eng.functions),
		tools.WithServices(eng.services),
		tools.WithToolCaller(eng.clients),
	)

	eng.manager, err = ai.NewSceneManager(
		ai.WithScenes(eng.scenes),
		ai.WithFunctions(eng.functions),
		ai.WithDispatcher(eng.dispatcher),
		ai.WithProvider(factory),
		ai.WithSummarizer(historySummarizer),
		ai.WithCache(eng.cache),
		ai.WithLimits(cfg.Manager),
	)

	return eng, err
}

/*
connect registers and connects the configured MCP clients, then imports
the tools of those marked for import. A server that fails to connect is
logged and left out, the rest keep working.
*/
func (eng *engine) connect(ctx context.Context) error {
	configs := make([]catalog.ServerConfig, 0, len(eng.cfg.MCP.Clients))

	for _, client := range eng.cfg.MCP.Clients {
		configs = append(configs, client.ServerConfig)
	}

	if err := eng.clients.RegisterAll(catalog.NewClient, configs...); err != nil {
		return err
	}

	if err := eng.clients.ConnectAll(ctx); err != nil {
		for _, name := range eng.clients.Disconnected() {
			log.Error("mcp server unavailable, its tools are skipped", "server", name)
		}
	}

	for _, client := range eng.cfg.MCP.Clients {
		if !client.Import || !eng.clients.Connected(client.Name) {
			continue
		}

		imported, err := eng.clients.ImportTools(ctx, client.Name, eng.functions, client.Scenes)

		if err != nil {
			log.Error("failed to import tools", "server", client.Name, "error", err)
			continue
		}

		log.Info("imported tools", "server", client.Name, "tools", imported)
	}

	return nil
}

func (eng *engine) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := eng.clients.DisconnectAll(ctx); err != nil {
		log.Error("failed to disconnect mcp servers", "error", err)
	}

	if closer, ok := eng.cache.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Error("failed to close cache", "error", err)
		}
	}

	logging.Close()
}

/*
registerBuiltinServices adds the local services every install has.
*/
func registerBuiltinServices(services *tools.Services) {
	services.Register("echo", tools.ServiceFunc(
		func(ctx context.Context, arguments tools.Arguments) (string, error) {
			buf, err := json.Marshal(arguments.Values())
			return string(buf), err
		},
	))

	services.Register("clock", tools.ServiceFunc(
		func(ctx context.Context, arguments tools.Arguments) (string, error) {
			return time.Now().UTC().Format(time.RFC3339), nil
		},
	))

	services.Register("browse", browser.Service())

	githubClient := github.New(os.Getenv("GITHUB_TOKEN"))
	services.Register("github_pulls", githubClient.PullRequestsService())
	services.Register("github_file", githubClient.FileService())
}
