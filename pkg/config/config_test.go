package config

import (
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
	"github.com/theapemachine/scenes/pkg/registry"
)

const sample = `
provider:
  name: anthropic
  model: claude-sonnet
manager:
  max_scene_rounds: 3
  cache_ttl: 1h
cache:
  backend: redis
  redis:
    addr: localhost:6379
auth:
  signing_key: secret
mcp:
  clients:
    - name: github
      transport: stdio
      command: github-mcp
      import: true
      scenes: [Code]
  servers:
    - name: weather
      scenes: [Weather]
      policy: bearer
scenes:
  - name: Weather
    description: forecasts
    paths: ["^/weather"]
    functions: [getWeather]
functions:
  - name: getWeather
    description: current weather for a city
    scenes: [Weather]
    chooser: Prefer metric units.
    http:
      method: get
      url: https://api.example.com/weather/{city}
      mutators:
        city: lower
`

func load(yml string) *Config {
	v := viper.New()
	v.SetConfigType("yaml")
	So(v.ReadConfig(strings.NewReader(yml)), ShouldBeNil)

	cfg, err := Load(v)
	So(err, ShouldBeNil)

	return cfg
}

func TestLoad(t *testing.T) {
	Convey("Given a config file", t, func() {
		cfg := load(sample)

		Convey("It decodes every section", func() {
			So(cfg.Provider.Name, ShouldEqual, "anthropic")
			So(cfg.Manager.MaxSceneRounds, ShouldEqual, 3)
			So(cfg.Manager.CacheTTL, ShouldEqual, time.Hour)
			So(cfg.Cache.Backend, ShouldEqual, "redis")
			So(cfg.Cache.Redis.Addr, ShouldEqual, "localhost:6379")
			So(cfg.MCP.Clients, ShouldHaveLength, 1)
			So(cfg.MCP.Clients[0].Command, ShouldEqual, "github-mcp")
			So(cfg.MCP.Clients[0].Import, ShouldBeTrue)
			So(cfg.MCP.Servers[0].AuthorizationPolicy, ShouldEqual, "bearer")
			So(cfg.Functions[0].HTTP.Mutators["city"], ShouldEqual, "lower")
		})

		Convey("Omitted values keep their defaults", func() {
			So(cfg.Manager.MaxToolIterations, ShouldEqual, 8)
			So(cfg.Server.Addr, ShouldEqual, ":3210")
			So(cfg.Summarizer.MaxTokens, ShouldEqual, 3000)
		})

		Convey("It validates", func() {
			So(cfg.Validate(), ShouldBeNil)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given invalid settings", t, func() {
		Convey("An unknown provider fails", func() {
			cfg := Default()
			cfg.Provider.Name = "parrot"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("An unknown cache backend fails", func() {
			cfg := Default()
			cfg.Cache.Backend = "floppy"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("A protected exposure needs a signing key", func() {
			cfg := load(sample)
			cfg.Auth.SigningKey = ""
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("An unknown mutator fails", func() {
			cfg := load(sample)
			cfg.Functions[0].HTTP.Mutators["city"] = "reverse"
			So(cfg.Validate(), ShouldNotBeNil)
		})
	})
}

func TestApply(t *testing.T) {
	Convey("Given a loaded catalogue", t, func() {
		cfg := load(sample)
		scenes := registry.NewScenes()
		functions := registry.NewFunctions()

		Convey("Apply registers scenes and functions", func() {
			So(cfg.Apply(scenes, functions), ShouldBeNil)

			scene, ok := scenes.TryGet("Weather")
			So(ok, ShouldBeTrue)
			So(scene.Matches("/weather/today"), ShouldBeTrue)
			So(scene.Matches("/travel"), ShouldBeFalse)

			function, ok := functions.TryGet("getWeather")
			So(ok, ShouldBeTrue)
			So(function.Kind(), ShouldEqual, registry.TargetHTTP)
			So(function.HTTP.Method, ShouldEqual, "GET")
			So(function.HTTP.Mutators["city"]("OSLO"), ShouldEqual, "oslo")
			So(function.Chooser(scene), ShouldHaveLength, 1)
			So(functions.For(scene), ShouldHaveLength, 1)
		})

		Convey("A bad path pattern fails", func() {
			cfg.Scenes[0].Paths = []string{"("}
			So(cfg.Apply(scenes, functions), ShouldNotBeNil)
		})

		Convey("A function with two targets fails", func() {
			cfg.Functions[0].Service = "weather"
			So(cfg.Apply(scenes, functions), ShouldNotBeNil)
		})
	})
}
