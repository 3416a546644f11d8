package cmd

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/theapemachine/scenes/pkg/types"
	"github.com/theapemachine/scenes/pkg/ui"
)

var (
	pathFlag   string
	scenesFlag []string
	avoidFlag  []string
	keyFlag    string
	tuiFlag    bool

	askCmd = &cobra.Command{
		Use:   "ask [message]",
		Short: "Run one request locally and print its events",
		Long:  longAsk,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !tuiFlag && len(args) == 0 {
				return fmt.Errorf("a message is required unless --tui is set")
			}

			eng, err := newEngine(cmd.Context())

			if err != nil {
				return err
			}

			defer eng.Close()

			if tuiFlag {
				_, err = tea.NewProgram(ui.New(cmd.Context(), eng.manager, pathFlag), tea.WithAltScreen()).Run()
				return err
			}

			stream := eng.manager.Run(cmd.Context(), types.RequestSettings{
				RequestKey:  keyFlag,
				Message:     strings.Join(args, " "),
				Path:        pathFlag,
				Scenes:      scenesFlag,
				AvoidScenes: avoidFlag,
			})

			for event := range stream.Events() {
				fmt.Fprintln(cmd.OutOrStdout(), event.String())
			}

			return stream.Err()
		},
	}
)

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVarP(&pathFlag, "path", "p", "", "Inbound path used to select scenes")
	askCmd.Flags().StringSliceVar(&scenesFlag, "scene", nil, "Scenes to consider, skips path matching")
	askCmd.Flags().StringSliceVar(&avoidFlag, "avoid", nil, "Scenes to leave out")
	askCmd.Flags().StringVarP(&keyFlag, "key", "k", "", "Request key, reuse one to continue a conversation")
	askCmd.Flags().BoolVar(&tuiFlag, "tui", false, "Open an interactive chat")
}

var longAsk = `
Run a request through the scenes in this process.

Examples:
  scenes ask "What is the weather in Oslo?"
  scenes ask --path /weather "Will it rain tomorrow?"
  scenes ask --tui
`
