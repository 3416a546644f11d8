package service

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v3"
	fiberadaptor "github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/theapemachine/scenes/pkg/ai"
	"github.com/theapemachine/scenes/pkg/auth"
	"github.com/theapemachine/scenes/pkg/catalog"
	"github.com/theapemachine/scenes/pkg/errors"
	"github.com/theapemachine/scenes/pkg/jsonrpc"
	"github.com/theapemachine/scenes/pkg/service/sse"
	"github.com/theapemachine/scenes/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

/*
Server is the HTTP surface: the MCP exposures, the ask endpoint and its
event stream, metrics and health.
*/
type Server struct {
	app      *fiber.App
	router   *Router
	servers  *catalog.ServerRegistry
	auth     *auth.Service
	limiters *auth.Limiters
	manager  *ai.SceneManager
	broker   *sse.SSEBroker
}

type ServerOption func(*Server)

func NewServer(router *Router, servers *catalog.ServerRegistry, options ...ServerOption) *Server {
	srv := &Server{
		app: fiber.New(fiber.Config{
			AppName:      "scenes",
			ServerHeader: "Scenes-Server",
		}),
		router:  router,
		servers: servers,
		broker:  sse.NewSSEBroker(),
	}

	for _, option := range options {
		option(srv)
	}

	srv.routes()

	return srv
}

func (srv *Server) routes() {
	srv.app.Use(logger.New(logger.Config{
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/events" || c.Path() == "/metrics"
		},
	}), healthcheck.NewHealthChecker())

	srv.app.Get("/", srv.handleRoot)
	srv.app.Get("/servers", srv.handleServers)
	srv.app.Post("/mcp/:server", srv.handleMCP)
	srv.app.Post("/ask", srv.handleAsk)
	srv.app.Get("/events", srv.handleEvents)
	srv.app.Get("/metrics", fiberadaptor.HTTPHandler(promhttp.Handler()))
}

/*
App exposes the fiber app, mostly for app.Test.
*/
func (srv *Server) App() *fiber.App {
	return srv.app
}

func (srv *Server) Listen(addr string) error {
	log.Info("listening", "addr", addr)
	return srv.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (srv *Server) Shutdown() error {
	srv.broker.Close()
	return srv.app.Shutdown()
}

func (srv *Server) handleRoot(ctx fiber.Ctx) error {
	return ctx.SendString("OK")
}

func (srv *Server) handleServers(ctx fiber.Ctx) error {
	return ctx.JSON(srv.servers.All())
}

/*
handleMCP enforces the exposure's policy and rate limit, then hands the
body to the router.
*/
func (srv *Server) handleMCP(ctx fiber.Ctx) error {
	name := ctx.Params("server")
	exposure, ok := srv.servers.Get(name)

	if !ok {
		return ctx.Status(fiber.StatusNotFound).JSON(
			jsonrpc.NewErrorResponse(nil, errors.ErrServerNotFound.WithMessagef("server %s not found", name)),
		)
	}

	if srv.limiters != nil && !srv.limiters.Allow(name) {
		return ctx.Status(fiber.StatusTooManyRequests).SendString("rate limit exceeded")
	}

	if exposure.AuthorizationPolicy != auth.PolicyOpen {
		var err error = errors.ErrUnauthorized.WithMessagef("no auth service configured")

		if srv.auth != nil {
			err = srv.auth.Authorize(ctx.Get(fiber.HeaderAuthorization), exposure.AuthorizationPolicy)
		}

		if err != nil {
			log.Warn("unauthorized", "server", name, "error", err)
			return ctx.Status(fiber.StatusUnauthorized).SendString(err.Error())
		}
	}

	reply := jsonrpc.Handle(ctx.Context(), name, ctx.Body(), srv.router)

	if reply == nil {
		return ctx.SendStatus(fiber.StatusNoContent)
	}

	ctx.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return ctx.Send(reply)
}

type askResponse struct {
	RequestKey string                  `json:"requestKey"`
	Events     []types.AiSceneResponse `json:"events,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

/*
handleAsk runs one request. With stream=true it answers straight away
with the request key and broadcasts the events on /events.
*/
func (srv *Server) handleAsk(ctx fiber.Ctx) error {
	if srv.manager == nil {
		return ctx.Status(fiber.StatusServiceUnavailable).SendString("no scene manager configured")
	}

	var settings types.RequestSettings

	if err := json.Unmarshal(ctx.Body(), &settings); err != nil || settings.Message == "" {
		return ctx.Status(fiber.StatusBadRequest).SendString("a message is required")
	}

	if settings.RequestKey == "" {
		settings.RequestKey = uuid.NewString()
	}

	if ctx.Query("stream") == "true" {
		stream := srv.manager.Run(context.Background(), settings)
		go srv.forwardEventsToBroker(settings.RequestKey, stream)

		return ctx.Status(fiber.StatusAccepted).JSON(askResponse{RequestKey: settings.RequestKey})
	}

	events, err := srv.manager.Run(ctx.Context(), settings).Collect()
	response := askResponse{RequestKey: settings.RequestKey, Events: events}

	if err != nil {
		response.Error = err.Error()
	}

	return ctx.JSON(response)
}

func (srv *Server) forwardEventsToBroker(key string, stream *ai.Stream) {
	for event := range stream.Events() {
		if err := srv.broker.Broadcast(key, event); err != nil {
			log.Error("failed to broadcast event", "requestKey", key, "error", err)
		}
	}

	if err := stream.Err(); err != nil {
		log.Error("request failed", "requestKey", key, "error", err)
	}
}

func (srv *Server) handleEvents(ctx fiber.Ctx) error {
	return fiberadaptor.HTTPHandler(http.HandlerFunc(srv.broker.Subscribe))(ctx)
}

func WithAuth(service *auth.Service) ServerOption {
	return func(srv *Server) {
		srv.auth = service
	}
}

func WithLimiters(limiters *auth.Limiters) ServerOption {
	return func(srv *Server) {
		srv.limiters = limiters
	}
}

func WithManager(manager *ai.SceneManager) ServerOption {
	return func(srv *Server) {
		srv.manager = manager
	}
}

func WithBroker(broker *sse.SSEBroker) ServerOption {
	return func(srv *Server) {
		srv.broker = broker
	}
}
