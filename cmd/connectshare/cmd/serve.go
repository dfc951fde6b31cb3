package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	connectshare "github.com/alinasr783/connect-share"
	"github.com/alinasr783/connect-share/cmd/connectshare/internal/portal"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web portal",
	Long: `Starts the clinic-rental web portal. Every visitor keeps its own session
engine; pages are routed by account type and profile changes made elsewhere
reach open browsers through the realtime channel.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend, closeBackend, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer closeBackend()

		var sink connectshare.AuditSink
		if cfg.Metrics.Audit {
			sink = connectshare.NewSlogSink(logger.With("component", "audit"))
		}

		p, err := portal.New(portal.Options{
			Backend:      backend,
			Engine:       cfg.EngineConfig(),
			Logger:       logger,
			AuditSink:    sink,
			MaxSessions:  cfg.Portal.MaxSessions,
			CookieName:   cfg.Portal.CookieName,
			CookieSecure: cfg.Portal.CookieSecure,
			PendingWait:  cfg.Portal.PendingWait,
		})
		if err != nil {
			return err
		}
		defer p.Close()

		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           p.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("portal listening", "addr", cfg.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)
		case <-ctx.Done():
			logger.Info("shutting down", "browsers", p.Sessions())
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("portal stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (env: CONNECTSHARE_ADDR)")
	serveCmd.Flags().Bool("realtime", true, "Follow profile changes over the realtime channel (env: CONNECTSHARE_REALTIME_ENABLED)")
	serveCmd.Flags().Bool("metrics", true, "Serve /metrics (env: CONNECTSHARE_METRICS_ENABLED)")
	serveCmd.Flags().Duration("stale-time", 0, "How long a fetched user stays fresh (env: CONNECTSHARE_QUERY_STALE_TIME)")
	serveCmd.Flags().Duration("gc-time", 0, "How long an unused user is kept (env: CONNECTSHARE_QUERY_GC_TIME)")
}
