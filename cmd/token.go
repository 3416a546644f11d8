package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/scenes/pkg/auth"
)

var (
	subjectFlag string
	scopeFlag   []string
	ttlFlag     time.Duration

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for protected exposures",
		RunE: func(cmd *cobra.Command, args []string) error {
			key := viper.GetString("auth.signing_key")

			if key == "" {
				return errors.New("auth.signing_key is not configured")
			}

			issuer := viper.GetString("auth.issuer")

			if issuer == "" {
				issuer = projectName
			}

			token, err := auth.NewService([]byte(key), issuer).GenerateToken(subjectFlag, scopeFlag, ttlFlag)

			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
)

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&subjectFlag, "subject", "cli", "Subject claim")
	tokenCmd.Flags().StringSliceVar(&scopeFlag, "scope", nil, "Scopes to grant")
	tokenCmd.Flags().DurationVar(&ttlFlag, "ttl", 24*time.Hour, "Token lifetime")
}
