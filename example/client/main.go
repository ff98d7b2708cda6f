package main

import (
	"fmt"
	"os"

	"github.com/amitbet/vncclone/logger"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "vncclient",
		Short: "Connect to an RFB server and record the session",
		Long: `vncclient drives an RFB session and renders every framebuffer update
into an in-memory canvas. Presented frames can be recorded as video and
the raw server stream can be kept as an FBS file for later replay.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logger.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logger.SetLogLevel(level)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "trace, debug, info, warn, error or none")

	rootCmd.AddCommand(
		connectCmd(),
		replayCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
