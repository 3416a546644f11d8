package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/theapemachine/scenes/pkg/auth"
	"github.com/theapemachine/scenes/pkg/service"
	"github.com/theapemachine/scenes/pkg/stores"
)

var (
	addrFlag string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the scene engine over HTTP",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			eng, err := newEngine(ctx)

			if err != nil {
				return err
			}

			defer eng.Close()

			if memory, ok := eng.cache.(*stores.MemoryCache); ok {
				go memory.Run(ctx, time.Minute)
			}

			router, err := service.NewRouter(eng.servers, service.MCPMethods(eng.functions, eng.dispatcher)...)

			if err != nil {
				return err
			}

			options := []service.ServerOption{service.WithManager(eng.manager)}

			if eng.cfg.Auth.SigningKey != "" {
				options = append(options, service.WithAuth(
					auth.NewService([]byte(eng.cfg.Auth.SigningKey), eng.cfg.Auth.Issuer),
				))
			}

			if eng.cfg.Auth.RateLimit > 0 {
				options = append(options, service.WithLimiters(
					auth.NewLimiters(eng.cfg.Auth.RateLimit, eng.cfg.Auth.RateInterval),
				))
			}

			srv := service.NewServer(router, eng.servers, options...)

			addr := addrFlag

			if addr == "" {
				addr = eng.cfg.Server.Addr
			}

			errs := make(chan error, 1)
			go func() { errs <- srv.Listen(addr) }()

			select {
			case err = <-errs:
				return err
			case <-ctx.Done():
				log.Info("shutting down")
				return srv.Shutdown()
			}
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&addrFlag, "addr", "a", "", "Address to listen on, overrides server.addr")
}

var longServe = `
Serve the scene engine over HTTP.

Routes:
  POST /mcp/:server   JSON-RPC endpoint of an MCP exposure
  POST /ask           run a request, add ?stream=true to stream on /events
  GET  /events        server-sent events, filter with ?requestKey=
  GET  /metrics       Prometheus metrics

Examples:
  scenes serve --addr :8080
`
