package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/audiolive/signaling/internal/config"
	"github.com/audiolive/signaling/internal/logging"
	"github.com/audiolive/signaling/internal/server"
	"github.com/audiolive/signaling/internal/signaling"
)

var (
	flagHost     string
	flagPort     int
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "signaling-server",
	Short: "WebRTC signaling relay for peer-to-peer audio/video calls",
	Long: `Relays session negotiation (offers, answers, ICE candidates) between
browsers and tracks which users are grouped into which call room. Media
never touches this server; once negotiation completes the peers talk
directly.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().StringVar(&flagHost, "host", "", "interface to listen on (overrides HOST)")
	rootCmd.Flags().IntVar(&flagPort, "port", 0, "port to listen on (overrides PORT)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Host = flagHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = flagPort
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}

	logging.Init(cfg.LogLevel)

	hub := signaling.NewHub()
	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: server.NewRouter(hub),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting signaling server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func main() {
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
