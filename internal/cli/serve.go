package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harun/mnemo/internal/tracing"
	"github.com/harun/mnemo/pkg/gateway"
	"github.com/harun/mnemo/pkg/memory"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve memories over the JSON-RPC gateway",
	Long: `Run the gateway server until interrupted. Exposes the memory store
over HTTP JSON-RPC and an authenticated WebSocket, watches the notes
directory when one is configured, and runs scheduled store maintenance.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "gateway port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.close()

	port := a.cfg.Gateway.Port
	if servePort > 0 {
		port = servePort
	}
	if a.cfg.Gateway.SharedSecret == "" {
		return fmt.Errorf("no gateway shared secret configured; set gateway.shared_secret or MNEMO_GATEWAY_SECRET")
	}

	if err := tracing.InitOpenTelemetry("mnemo"); err != nil {
		a.zl.Warn().Err(err).Msg("Failed to initialize tracing")
	}
	defer tracing.ShutdownOpenTelemetry(context.Background())

	importer := a.newImporter()

	server, err := gateway.NewServer(gateway.Config{
		Port:         port,
		SharedSecret: a.cfg.Gateway.SharedSecret,
		Service:      a.service,
		Retriever:    a.retriever,
		Importer:     importer,
		Logger:       a.zl,
	})
	if err != nil {
		return err
	}

	if err := server.Start(); err != nil {
		return err
	}

	var watcher *memory.NoteWatcher
	if importer != nil {
		// Initial sync, then keep the directory and store converged.
		if _, err := importer.Sync(context.Background()); err != nil {
			a.zl.Warn().Err(err).Msg("Initial note import failed")
		}

		watcher, err = memory.NewNoteWatcher(a.zl, func() {
			if _, err := importer.Sync(context.Background()); err != nil {
				a.zl.Warn().Err(err).Msg("Note import failed")
			}
		})
		if err != nil {
			a.zl.Warn().Err(err).Msg("Failed to start note watcher")
		} else if err := watcher.Watch(a.cfg.Import.Dir); err != nil {
			a.zl.Warn().Err(err).Str("dir", a.cfg.Import.Dir).Msg("Failed to watch notes directory")
		}
	}

	maintenance := memory.NewMaintenance(a.store, a.cfg.Maintenance.Schedule, a.zl)
	if err := maintenance.Start(); err != nil {
		a.zl.Warn().Err(err).Str("schedule", a.cfg.Maintenance.Schedule).Msg("Failed to schedule maintenance")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	a.zl.Info().Str("signal", sig.String()).Msg("Shutting down")

	maintenance.Stop()
	if watcher != nil {
		watcher.Stop()
	}
	return server.Stop()
}
