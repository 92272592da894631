// Command itemsapi runs the reference items API on its own. It reads the
// ID token signing secret from the same database as the web server, so both
// must point at the same file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erazemk/claimwildcats/internal/api"
	"github.com/erazemk/claimwildcats/internal/config"
	"github.com/erazemk/claimwildcats/internal/db"
	"github.com/erazemk/claimwildcats/internal/logging"
	"github.com/erazemk/claimwildcats/internal/store"
)

func main() {
	cfg := config.Load()
	fs := flag.NewFlagSet("itemsapi", flag.ExitOnError)
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to SQLite database file")
	addr := fs.String("addr", ":8081", "listen address")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "log file path (default: stdout/stderr only)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json")
	fs.Parse(os.Args[1:])

	closeLog, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	secret, err := store.GetSecret(context.Background(), database, store.SessionSecretKey)
	if err != nil {
		slog.Error("failed to get signing secret", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              *addr,
		Handler:           api.LoggingMiddleware(api.NewRouter(database, secret)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("items API started", "addr", *addr, "db", cfg.DBPath)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("items API stopped")
}
