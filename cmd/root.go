package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"orbit/config"
	"orbit/logging"
)

var (
	configPath string
	logLevel   string
	logFormat  string
	userFlag   string
	apiURLFlag string

	cfg       *config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "orbit",
	Short:         "Infinite canvas of notes, tasks and media cards",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if flagChanged(cmd, "log-level") {
			loaded.Log.Level = logLevel
		}
		if flagChanged(cmd, "log-format") {
			loaded.Log.Format = logFormat
		}
		if flagChanged(cmd, "user") {
			loaded.Client.UserID = userFlag
		}
		if flagChanged(cmd, "api") {
			loaded.Client.APIURL = apiURLFlag
		}

		closer, err := logging.Setup(loaded.Log)
		if err != nil {
			return err
		}
		cfg, logCloser = loaded, closer
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser == nil {
			return nil
		}
		return logCloser.Close()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "orbit.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&userFlag, "user", "", "User whose canvas to open (overrides ORBIT_USER_ID)")
	rootCmd.PersistentFlags().StringVar(&apiURLFlag, "api", "", "Base URL of the item API (overrides ORBIT_API_URL)")
}

func flagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flag(name)
	return f != nil && f.Changed
}
