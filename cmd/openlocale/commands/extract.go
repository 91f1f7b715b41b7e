package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/openlocale/openlocale/internal/logging"
)

var (
	extractNamespace   string
	extractResourceDir string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract translatable strings from a resource directory",
	Long: `Extract translatable strings from a namespace's resource directory
(messages.yml is copied whole, inventories.yml is reduced to titles, item
names and lore) and register the namespace. Source-language files are
overwritten; other languages only receive files that do not exist yet.`,
	Run: runExtract,
}

func init() {
	extractCmd.Flags().StringVar(&extractNamespace, "namespace", "", "Namespace to register (required)")
	extractCmd.Flags().StringVar(&extractResourceDir, "resource-dir", "", "Directory holding the source YAML files (required)")
	_ = extractCmd.MarkFlagRequired("namespace")
	_ = extractCmd.MarkFlagRequired("resource-dir")
}

func runExtract(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	a, err := buildApp(ctx)
	HandleError(err, "Startup error")
	defer a.close(ctx)

	HandleError(a.api.RegisterNamespace(ctx, extractNamespace, extractResourceDir), "Extraction failed")

	stats, err := a.manager.Stats(extractNamespace)
	HandleError(err, "Extraction failed")
	logging.GetLogger("extract").Info("namespace %s registered with %d entries across %d languages",
		extractNamespace, stats.Entries, stats.Languages)
}
