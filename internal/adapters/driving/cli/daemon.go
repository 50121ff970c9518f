package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/dirsync/internal/core/domain"
	"github.com/custodia-labs/dirsync/internal/logger"
)

// minInterval is the shortest allowed time between scheduled syncs.
const minInterval = 5 * time.Minute

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Sync on a schedule until interrupted",
	Long: `Runs a sync immediately and then every sync.interval minutes (at least 5).
The interval is re-read before each wait so config changes apply without a
restart. With --metrics-addr, Prometheus metrics are served on /metrics.`,
	Args: cobra.NoArgs,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().String("metrics-addr", "", "Serve /metrics and /health on this address (e.g. :9090)")
	rootCmd.AddCommand(daemonCmd)
}

// notifyContext is replaced in tests.
var notifyContext = func(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if syncService == nil || stateService == nil {
		return fmt.Errorf("daemon: %w", errNotConfigured)
	}
	ctx, stop := notifyContext(cmd.Context())
	defer stop()

	addr, _ := cmd.Flags().GetString("metrics-addr")
	if addr == "" && settingsService != nil {
		if s, err := settingsService.Get(); err == nil {
			addr = s.MetricsAddr
		}
	}
	if addr != "" && metricsHandler != nil {
		shutdown, err := serveMetrics(ctx, addr)
		if err != nil {
			return err
		}
		defer shutdown()
		cmd.Printf("Serving metrics on %s\n", addr)
	}

	cmd.Println("Daemon started. Press Ctrl+C to stop.")
	for {
		runScheduled(ctx)

		wait := syncInterval(ctx)
		logger.Info("next sync in %s", wait)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			cmd.Println("Daemon stopped.")
			return nil
		case <-timer.C:
		}
	}
}

// runScheduled runs one cycle. Failures are logged and the loop continues.
func runScheduled(ctx context.Context) {
	result, err := syncService.Sync(ctx, false)
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		logger.Warn("sync skipped: another sync is running")
	case err != nil:
		if ctx.Err() == nil {
			logger.Error("scheduled sync failed: %v", err)
		}
	case result.Submitted:
		logger.Info("sync complete: %d groups, %d users", len(result.Groups), len(result.Users))
	default:
		logger.Info("sync complete, nothing submitted: %s", result.SkipReason)
	}
}

// syncInterval reads the configured interval, clamped to minInterval.
func syncInterval(ctx context.Context) time.Duration {
	cfg, err := stateService.SyncConfig(ctx)
	if err != nil {
		logger.Warn("read sync interval: %v", err)
		return minInterval
	}
	return max(time.Duration(cfg.Interval)*time.Minute, minInterval)
}

// serveMetrics starts the metrics server and returns its shutdown func.
func serveMetrics(ctx context.Context, addr string) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           metricsHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server: %v", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}, nil
}
