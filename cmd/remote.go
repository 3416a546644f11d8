package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/theapemachine/scenes/pkg/jsonrpc"
	"github.com/theapemachine/scenes/pkg/service/sse"
	"github.com/theapemachine/scenes/pkg/types"
)

var (
	urlFlag    string
	tokenFlag  string
	remoteFlag string
	watchFlag  string

	toolsCmd = &cobra.Command{
		Use:   "tools",
		Short: "List the tools a remote exposure serves",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := jsonrpc.NewRPCClient(
				strings.TrimSuffix(urlFlag, "/")+"/mcp/"+remoteFlag, tokenFlag,
			)

			var result struct {
				Tools []struct {
					Name        string `json:"name"`
					Description string `json:"description"`
				} `json:"tools"`
			}

			if err := client.Call(cmd.Context(), "tools/list", nil, &result); err != nil {
				return err
			}

			for _, tool := range result.Tools {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", tool.Name, tool.Description)
			}

			return nil
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Follow the events a remote server broadcasts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := sse.NewClient(urlFlag, watchFlag)

			if err != nil {
				return err
			}

			return client.Watch(cmd.Context(), func(event types.AiSceneResponse) error {
				fmt.Fprintln(cmd.OutOrStdout(), event.String())
				return nil
			})
		},
	}
)

func init() {
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(watchCmd)

	for _, command := range []*cobra.Command{toolsCmd, watchCmd} {
		command.Flags().StringVarP(&urlFlag, "url", "u", "http://localhost:3210", "Base URL of the scenes server")
	}

	toolsCmd.Flags().StringVarP(&remoteFlag, "server", "s", projectName, "Exposure to list")
	toolsCmd.Flags().StringVar(&tokenFlag, "token", "", "Bearer token for protected exposures")
	watchCmd.Flags().StringVarP(&watchFlag, "key", "k", "", "Request key to follow, every request when empty")
}
