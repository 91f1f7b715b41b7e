package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	exportNamespace string

	importFile      string
	importNamespace string
	importLanguage  string
	importOverwrite bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a namespace to YAML files under <data-root>/exports",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := buildApp(ctx)
		HandleError(err, "Startup error")
		defer a.close(ctx)

		written, err := a.api.ExportNamespace(exportNamespace)
		HandleError(err, "Export failed")
		for _, path := range written {
			fmt.Println(path)
		}
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a YAML file into the dynamic translation store",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := buildApp(ctx)
		HandleError(err, "Startup error")
		defer a.close(ctx)

		n, err := a.api.ImportTranslations(ctx, importFile, importNamespace, importLanguage, importOverwrite)
		HandleError(err, "Import failed")
		fmt.Printf("imported %d translations into %s (%s)\n", n, importNamespace, importLanguage)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportNamespace, "namespace", "", "Namespace to export (required)")
	_ = exportCmd.MarkFlagRequired("namespace")

	importCmd.Flags().StringVar(&importFile, "file", "", "YAML file to import (required)")
	importCmd.Flags().StringVar(&importNamespace, "namespace", "", "Target namespace (required)")
	importCmd.Flags().StringVar(&importLanguage, "language", "", "Target language code (required)")
	importCmd.Flags().BoolVar(&importOverwrite, "overwrite", false, "Overwrite existing translations")
	_ = importCmd.MarkFlagRequired("file")
	_ = importCmd.MarkFlagRequired("namespace")
	_ = importCmd.MarkFlagRequired("language")
}
