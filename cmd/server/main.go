package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd runs the controller when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "ekran",
	Short: "Controller for a networked display device",
	Long: `ekran drives a display device over its REST API: it serializes playback
commands, polls the device for status, onboards cameras and serves an
operator API.`,
	SilenceUsage: true,
	RunE:         func(cmd *cobra.Command, args []string) error { return serve(cmd.Context()) },
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "optional YAML config file; environment variables take precedence")
	rootCmd.AddCommand(serveCmd, hashPasswordCmd, serviceCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
