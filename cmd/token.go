package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"orbit/handlers/auth"
)

var (
	tokenTTL  time.Duration
	tokenName string
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a bearer token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		auth.Init(cfg.Auth.JWTSecret)
		ttl := cfg.Auth.TokenTTL
		if flagChanged(cmd, "ttl") {
			ttl = tokenTTL
		}
		token, err := auth.CreateJWT(args[0], tokenName, ttl)
		if err != nil {
			return fmt.Errorf("creating token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (defaults to ORBIT_TOKEN_TTL)")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "Display name stored in the token")
	rootCmd.AddCommand(tokenCmd)
}
