package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openlocale/openlocale/internal/models"
)

var (
	syncNamespaceFlag string
	syncTimeout       time.Duration
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize translations with Crowdin",
}

var syncUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload source translations to Crowdin",
	Run:   func(cmd *cobra.Command, args []string) { runSync(models.OpUpload) },
}

var syncDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download and merge translations from Crowdin",
	Run:   func(cmd *cobra.Command, args []string) { runSync(models.OpDownload) },
}

var syncFullCmd = &cobra.Command{
	Use:   "full",
	Short: "Upload then download every sync namespace",
	Run:   func(cmd *cobra.Command, args []string) { runSync(models.OpFull) },
}

var syncTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Validate the Crowdin credentials",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
		defer cancel()

		a, err := buildApp(ctx)
		HandleError(err, "Startup error")
		defer a.close(ctx)

		name, err := a.api.TestConnection(ctx)
		HandleError(err, "Connection test failed")
		fmt.Printf("Connected to Crowdin project %q\n", name)
	},
}

func init() {
	syncCmd.PersistentFlags().StringVar(&syncNamespaceFlag, "namespace", "",
		"Limit the operation to one namespace (default: all sync namespaces)")
	syncCmd.PersistentFlags().DurationVar(&syncTimeout, "timeout", 10*time.Minute,
		"Overall timeout for the operation")

	syncCmd.AddCommand(syncUploadCmd)
	syncCmd.AddCommand(syncDownloadCmd)
	syncCmd.AddCommand(syncFullCmd)
	syncCmd.AddCommand(syncTestCmd)
}

func runSync(op models.SyncOperation) {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	a, err := buildApp(ctx)
	HandleError(err, "Startup error")
	defer a.close(ctx)

	var results []*models.SyncResult
	switch {
	case op == models.OpFull:
		r, err := a.api.SyncAll(ctx)
		HandleError(err, "Sync failed")
		results = append(results, r)
	case syncNamespaceFlag != "":
		r, err := runNamespaceOp(ctx, a, op, syncNamespaceFlag)
		HandleError(err, "Sync failed")
		results = append(results, r)
	default:
		for _, ns := range a.engineNamespaces() {
			r, err := runNamespaceOp(ctx, a, op, ns)
			HandleError(err, "Sync failed")
			results = append(results, r)
		}
	}
	printResults(results)

	for _, r := range results {
		if r.Status == models.SyncFailed {
			os.Exit(1)
		}
	}
}

func runNamespaceOp(ctx context.Context, a *app, op models.SyncOperation, ns string) (*models.SyncResult, error) {
	if op == models.OpUpload {
		return a.api.UploadNamespace(ctx, ns)
	}
	return a.api.DownloadNamespace(ctx, ns)
}

// engineNamespaces resolves the namespace set the same way the engine
// does: the descriptor's pinned list, or everything registered.
func (a *app) engineNamespaces() []string {
	if len(a.cfg.Sync.SyncNamespaces) > 0 {
		return a.cfg.Sync.SyncNamespaces
	}
	return a.manager.Registered()
}

func printResults(results []*models.SyncResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAMESPACE\tOPERATION\tSTATUS\tUPLOADED\tDOWNLOADED\tSKIPPED\tCONFLICTS")
	for _, r := range results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.Namespace, r.Operation, r.Status, r.Uploaded, r.Downloaded, r.Skipped, r.Conflicts)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "\t\t%s\t\t\t\t\n", e)
		}
	}
	w.Flush()
}
