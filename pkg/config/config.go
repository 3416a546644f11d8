package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cohesivestack/valgo"
	"github.com/spf13/viper"
	"github.com/theapemachine/scenes/pkg/ai"
	"github.com/theapemachine/scenes/pkg/catalog"
	"github.com/theapemachine/scenes/pkg/logging"
	"github.com/theapemachine/scenes/pkg/provider"
	"github.com/theapemachine/scenes/pkg/registry"
	"github.com/theapemachine/scenes/pkg/stores"
	"github.com/theapemachine/scenes/pkg/types"
)

/*
Config is the typed view of ~/.scenes/config.yml.
*/
type Config struct {
	Provider   ProviderConfig     `mapstructure:"provider"`
	Manager    ai.Limits          `mapstructure:"manager"`
	Summarizer SummarizerConfig   `mapstructure:"summarizer"`
	Cache      stores.CacheConfig `mapstructure:"cache"`
	Server     ServerConfig       `mapstructure:"server"`
	Auth       AuthConfig         `mapstructure:"auth"`
	Logging    logging.Config     `mapstructure:"logging"`
	MCP        MCPConfig          `mapstructure:"mcp"`
	Scenes     []SceneConfig      `mapstructure:"scenes"`
	Functions  []FunctionConfig   `mapstructure:"functions"`
}

type ProviderConfig struct {
	Name      string `mapstructure:"name"`
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
	MaxTokens int64  `mapstructure:"max_tokens"`
}

type SummarizerConfig struct {
	MaxResponses int    `mapstructure:"max_responses"`
	MaxTokens    int    `mapstructure:"max_tokens"`
	Tokenizer    string `mapstructure:"tokenizer"`
}

type ServerConfig struct {
	Addr    string `mapstructure:"addr"`
	MCPAddr string `mapstructure:"mcp_addr"`
}

/*
AuthConfig holds the signing key for bearer policies and the per-server
rate limit, RateLimit calls per RateInterval.
*/
type AuthConfig struct {
	SigningKey   string        `mapstructure:"signing_key"`
	Issuer       string        `mapstructure:"issuer"`
	RateLimit    int64         `mapstructure:"rate_limit"`
	RateInterval time.Duration `mapstructure:"rate_interval"`
}

/*
MCPConfig lists the external servers this system calls as a client and
the exposures it serves under its own server names.
*/
type MCPConfig struct {
	Clients []ClientConfig     `mapstructure:"clients"`
	Servers []catalog.Exposure `mapstructure:"servers"`
}

/*
ClientConfig is one external MCP server. Its tools are imported as
functions of Scenes when Import is set.
*/
type ClientConfig struct {
	catalog.ServerConfig `mapstructure:",squash"`
	Import               bool     `mapstructure:"import"`
	Scenes               []string `mapstructure:"scenes"`
}

type SceneConfig struct {
	Name        string   `mapstructure:"name"`
	Description string   `mapstructure:"description"`
	Prompt      string   `mapstructure:"prompt"`
	Paths       []string `mapstructure:"paths"`
	Functions   []string `mapstructure:"functions"`
}

/*
FunctionConfig is one function. Exactly one of HTTP, Service and MCP
should be set, a function with none only contributes its chooser prompt.
*/
type FunctionConfig struct {
	Name        string         `mapstructure:"name"`
	Description string         `mapstructure:"description"`
	Parameters  map[string]any `mapstructure:"parameters"`
	Scenes      []string       `mapstructure:"scenes"`
	AllScenes   bool           `mapstructure:"all_scenes"`
	Streaming   bool           `mapstructure:"streaming"`
	Chooser     string         `mapstructure:"chooser"`
	HTTP        *HTTPConfig    `mapstructure:"http"`
	Service     string         `mapstructure:"service"`
	MCP         *MCPTarget     `mapstructure:"mcp"`
}

/*
HTTPConfig names its mutators per argument. Known mutators are lower,
upper, trim and urlencode.
*/
type HTTPConfig struct {
	Method   string            `mapstructure:"method"`
	URL      string            `mapstructure:"url"`
	Headers  map[string]string `mapstructure:"headers"`
	Mutators map[string]string `mapstructure:"mutators"`
}

type MCPTarget struct {
	Server string `mapstructure:"server"`
	Tool   string `mapstructure:"tool"`
}

var mutators = map[string]registry.Mutator{
	"lower":     strings.ToLower,
	"upper":     strings.ToUpper,
	"trim":      strings.TrimSpace,
	"urlencode": url.QueryEscape,
}

var (
	providers = []string{"openai", "anthropic", "ollama", "deepseek", "cohere", "google"}
	backends  = []string{"", "memory", "redis", "s3"}
)

/*
Load decodes the viper tree, starting from the defaults so that an
omitted section keeps working values.
*/
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return cfg, nil
}

func Default() *Config {
	return &Config{
		Provider: ProviderConfig{Name: "openai", Model: "gpt-4o-mini"},
		Manager:  ai.DefaultLimits(),
		Summarizer: SummarizerConfig{
			MaxResponses: 24,
			MaxTokens:    3000,
		},
		Cache:  stores.CacheConfig{Backend: "memory"},
		Server: ServerConfig{Addr: ":3210", MCPAddr: ":3211"},
		Auth: AuthConfig{
			Issuer:       "scenes",
			RateLimit:    60,
			RateInterval: time.Minute,
		},
		Logging: logging.Config{Level: "info"},
	}
}

/*
Validate checks the settings that would otherwise only fail once a
request is running.
*/
func (cfg *Config) Validate() error {
	validation := valgo.Is(
		valgo.String(cfg.Provider.Name, "provider.name").InSlice(providers),
	).Is(
		valgo.String(cfg.Cache.Backend, "cache.backend").InSlice(backends),
	).Is(
		valgo.Int(cfg.Manager.MaxSceneRounds, "manager.max_scene_rounds").GreaterOrEqualTo(0),
	).Is(
		valgo.Int(cfg.Manager.MaxToolIterations, "manager.max_tool_iterations").GreaterOrEqualTo(0),
	).Is(
		valgo.Int(cfg.Summarizer.MaxResponses, "summarizer.max_responses").GreaterOrEqualTo(0),
	)

	if cfg.Auth.RateLimit > 0 {
		validation.Is(valgo.Int64(int64(cfg.Auth.RateInterval), "auth.rate_interval").GreaterThan(0))
	}

	if cfg.protected() {
		validation.Is(valgo.String(cfg.Auth.SigningKey, "auth.signing_key").Not().Blank())
	}

	for idx, client := range cfg.MCP.Clients {
		validation.Is(valgo.String(client.Name, fmt.Sprintf("mcp.clients[%d].name", idx)).Not().Blank())
	}

	for idx, exposure := range cfg.MCP.Servers {
		validation.Is(valgo.String(exposure.Name, fmt.Sprintf("mcp.servers[%d].name", idx)).Not().Blank())
	}

	for idx, function := range cfg.Functions {
		if function.HTTP == nil {
			continue
		}

		for arg, name := range function.HTTP.Mutators {
			validation.Is(valgo.String(
				name, fmt.Sprintf("functions[%d].http.mutators.%s", idx, arg),
			).InSlice(mutatorNames()))
		}
	}

	if !validation.Valid() {
		return validation.Error()
	}

	return nil
}

func (cfg *Config) protected() bool {
	for _, exposure := range cfg.MCP.Servers {
		if exposure.AuthorizationPolicy != "" {
			return true
		}
	}

	return false
}

func mutatorNames() []string {
	names := make([]string, 0, len(mutators))

	for name := range mutators {
		names = append(names, name)
	}

	return names
}

/*
ProviderFactory builds the chat backend factory the configuration names.
*/
func (cfg *Config) ProviderFactory() (provider.Factory, error) {
	options := []provider.Option{}

	if cfg.Provider.BaseURL != "" {
		options = append(options, provider.WithBaseURL(cfg.Provider.BaseURL))
	}

	if cfg.Provider.MaxTokens > 0 {
		options = append(options, provider.WithMaxTokens(cfg.Provider.MaxTokens))
	}

	return provider.New(cfg.Provider.Name, cfg.Provider.Model, options...)
}

/*
Apply registers the configured scenes and functions. Path patterns are
compiled here, so a bad pattern fails startup instead of a request.
*/
func (cfg *Config) Apply(scenes *registry.Scenes, functions *registry.Functions) error {
	for _, sceneCfg := range cfg.Scenes {
		scene := &registry.Scene{
			Name:        sceneCfg.Name,
			Description: sceneCfg.Description,
			Prompt:      sceneCfg.Prompt,
			Functions:   sceneCfg.Functions,
		}

		for _, path := range sceneCfg.Paths {
			pattern, err := regexp.Compile(path)

			if err != nil {
				return fmt.Errorf("scene %s: invalid path pattern %q: %w", sceneCfg.Name, path, err)
			}

			scene.Paths = append(scene.Paths, pattern)
		}

		if err := scenes.Register(scene); err != nil {
			return fmt.Errorf("scene %s: %w", sceneCfg.Name, err)
		}
	}

	for _, functionCfg := range cfg.Functions {
		function, err := functionCfg.build()

		if err != nil {
			return err
		}

		if err := functions.Register(function); err != nil {
			return fmt.Errorf("function %s: %w", functionCfg.Name, err)
		}
	}

	log.Debug("catalogue applied", "scenes", len(cfg.Scenes), "functions", len(cfg.Functions))
	return nil
}

func (functionCfg FunctionConfig) build() (*registry.Function, error) {
	function := &registry.Function{
		Name:        functionCfg.Name,
		Description: functionCfg.Description,
		Parameters:  functionCfg.Parameters,
		Scenes:      functionCfg.Scenes,
		AllScenes:   functionCfg.AllScenes,
		Streaming:   functionCfg.Streaming,
	}

	if functionCfg.Chooser != "" {
		function.Chooser = registry.StaticChooser(functionCfg.Chooser)
	}

	if functionCfg.Service != "" {
		function.Service = &registry.ServiceTarget{Name: functionCfg.Service}
	}

	if functionCfg.MCP != nil {
		function.MCP = &types.McpToolCall{Server: functionCfg.MCP.Server, Tool: functionCfg.MCP.Tool}
	}

	if functionCfg.HTTP != nil {
		function.HTTP = &registry.HTTPTarget{
			Method:  strings.ToUpper(functionCfg.HTTP.Method),
			URL:     functionCfg.HTTP.URL,
			Headers: functionCfg.HTTP.Headers,
		}

		if function.HTTP.Method == "" {
			function.HTTP.Method = "GET"
		}

		for arg, name := range functionCfg.HTTP.Mutators {
			mutator, ok := mutators[name]

			if !ok {
				return nil, fmt.Errorf("function %s: unknown mutator %s", functionCfg.Name, name)
			}

			if function.HTTP.Mutators == nil {
				function.HTTP.Mutators = make(map[string]registry.Mutator)
			}

			function.HTTP.Mutators[arg] = mutator
		}
	}

	return function, nil
}
