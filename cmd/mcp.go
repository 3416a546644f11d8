package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/theapemachine/scenes/pkg/catalog"
	"github.com/theapemachine/scenes/pkg/service"
)

var (
	exposureFlag  string
	transportFlag string
	mcpAddrFlag   string

	mcpCmd = &cobra.Command{
		Use:   "mcp",
		Short: "Serve the functions as an MCP server",
		Long:  longMCP,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine(cmd.Context())

			if err != nil {
				return err
			}

			defer eng.Close()

			exposure := catalog.Exposure{Name: projectName}

			if exposureFlag != "" {
				var ok bool

				if exposure, ok = eng.servers.Get(exposureFlag); !ok {
					return fmt.Errorf("exposure %s is not configured", exposureFlag)
				}
			}

			srv, err := service.NewMCPServer(exposure, eng.functions, eng.dispatcher)

			if err != nil {
				return err
			}

			switch transportFlag {
			case "stdio":
				return service.ServeStdio(srv)
			case "sse":
				addr := mcpAddrFlag

				if addr == "" {
					addr = eng.cfg.Server.MCPAddr
				}

				return service.ServeSSE(srv, addr)
			}

			return fmt.Errorf("unknown transport: %s", transportFlag)
		},
	}
)

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().StringVarP(&exposureFlag, "server", "s", "", "Exposure to serve, all functions when empty")
	mcpCmd.Flags().StringVarP(&transportFlag, "transport", "t", "stdio", "Transport: stdio or sse")
	mcpCmd.Flags().StringVar(&mcpAddrFlag, "addr", "", "Address for the sse transport, overrides server.mcp_addr")
}

var longMCP = `
Serve the configured functions as MCP tools, over stdio or SSE.

Examples:
  # Serve every function on stdio
  scenes mcp

  # Serve the weather exposure over SSE
  scenes mcp --server weather --transport sse --addr :3211
`
