package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	configPath  string
	crowdinPath string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "openlocale",
	Short: "OpenLocale - translation engine with Crowdin synchronization",
	Long: `OpenLocale loads YAML translation files per language and namespace,
resolves keys with plural and placeholder support, stores runtime-created
translations in SQLite, and keeps everything in sync with Crowdin.`,
	Version: Version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yml",
		"Path to the main configuration file")
	rootCmd.PersistentFlags().StringVar(&crowdinPath, "crowdin-config", "crowdin.yml",
		"Path to the Crowdin sync descriptor")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (debug, info, warn, error). Overrides the config file.")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

// HandleError prints the error and exits non-zero.
func HandleError(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}
