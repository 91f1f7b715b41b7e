package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openlocale/openlocale/internal/lifecycle"
	"github.com/openlocale/openlocale/internal/logging"
	"github.com/openlocale/openlocale/internal/metrics"
	"github.com/openlocale/openlocale/internal/namespace"
	syncengine "github.com/openlocale/openlocale/internal/sync"
	"github.com/openlocale/openlocale/internal/webhook"
)

var shutdownTimeout time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the translation engine",
	Long: `Run the engine as a long-lived process: loads all namespaces, restores
dynamic translations, and starts the webhook server, the sync scheduler
and the hot-reload watcher as configured.`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second,
		"Grace period for component shutdown")
}

func runServe(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := buildApp(ctx)
	HandleError(err, "Startup error")
	logger := logging.GetLogger("serve")
	logger.Info("OpenLocale v%s, data root %s", Version, a.cfg.DataRoot)

	manager := lifecycle.NewManager()
	HandleError(manager.Register(a.players), "Component registration error")

	observer := metrics.NewObserver(a.metrics, a.reg, a.caches, a.bus)
	HandleError(manager.Register(observer), "Component registration error")

	if a.cfg.Crowdin.HotReload {
		watcher := namespace.NewWatcher(a.manager)
		HandleError(manager.Register(watcher), "Component registration error")
	}

	if a.engine != nil {
		if interval := a.cfg.Crowdin.AutoSyncInterval; interval > 0 {
			scheduler := syncengine.NewScheduler(a.engine, time.Duration(interval)*time.Minute)
			HandleError(manager.Register(scheduler, a.players), "Component registration error")
		}
		if a.cfg.Crowdin.Webhook.Enabled {
			server := webhook.New(a.cfg.Crowdin.Webhook.Port, a.cfg.Crowdin.Webhook.Secret, a.engine, a.metrics)
			HandleError(manager.Register(server, a.players), "Component registration error")
		}
	}

	HandleError(manager.Start(ctx), "Startup error")
	logger.Info("engine started with %d namespaces, %d translations",
		len(a.manager.Registered()), a.reg.Size())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	_ = manager.Stop(stopCtx)
	a.close(stopCtx)
	logger.Info("shutdown complete")
}
