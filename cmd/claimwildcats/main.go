package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/claimwildcats/internal/api"
	"github.com/erazemk/claimwildcats/internal/apiclient"
	"github.com/erazemk/claimwildcats/internal/attachment"
	"github.com/erazemk/claimwildcats/internal/auth"
	"github.com/erazemk/claimwildcats/internal/config"
	"github.com/erazemk/claimwildcats/internal/db"
	"github.com/erazemk/claimwildcats/internal/logging"
	"github.com/erazemk/claimwildcats/internal/model"
	"github.com/erazemk/claimwildcats/internal/objstore/local"
	"github.com/erazemk/claimwildcats/internal/report"
	"github.com/erazemk/claimwildcats/internal/store"
	"github.com/erazemk/claimwildcats/internal/web"
)

const usage = `Usage: claimwildcats <init|serve> [flags]

Commands:
  init    create the database and an administrator account
  serve   run the web server

Run "claimwildcats <command> -h" for the flags of a command.
`

// maintenanceInterval is how often expired drafts and revoked tokens are purged.
const maintenanceInterval = 10 * time.Minute

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		cmdInit(os.Args[2:])
	case "serve":
		cmdServe(os.Args[2:])
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n%s", os.Args[1], usage)
		os.Exit(1)
	}
}

func cmdInit(args []string) {
	cfg := config.Load()
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	dbPath := fs.String("db", cfg.DBPath, "path to SQLite database file")
	email := fs.String("email", "admin@claimwildcats.local", "administrator email")
	fs.Parse(args)

	if _, err := os.Stat(*dbPath); err == nil {
		fmt.Fprintf(os.Stderr, "Error: database file %s already exists\n", *dbPath)
		os.Exit(1)
	}

	database, password, err := initDatabase(*dbPath, *email)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	database.Close()

	printInitResult(*dbPath, *email, password)
}

func cmdServe(args []string) {
	cfg := config.Load()
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "path to SQLite database file")
	fs.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "listen address")
	fs.StringVar(&cfg.APIBaseURL, "api", cfg.APIBaseURL, "items API base URL (empty serves the built-in API)")
	fs.StringVar(&cfg.StorageDir, "storage", cfg.StorageDir, "attachment storage directory")
	fs.StringVar(&cfg.PublicURL, "public-url", cfg.PublicURL, "external URL of this server, used in download links")
	fs.StringVar(&cfg.LogFile, "log", cfg.LogFile, "log file path (default: stdout/stderr only)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: text or json")
	fs.BoolVar(&cfg.DevAPI, "dev-api", cfg.DevAPI, "mount the built-in items API under /api/")
	fs.Parse(args)

	closeLog, err := logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	// Check if DB exists, auto-init if not.
	if _, err := os.Stat(cfg.DBPath); os.IsNotExist(err) {
		email := "admin@claimwildcats.local"
		database, password, err := initDatabase(cfg.DBPath, email)
		if err != nil {
			slog.Error("failed to initialize database", "error", err)
			os.Exit(1)
		}
		database.Close()

		printInitResult(cfg.DBPath, email, password)
		fmt.Println()
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
	slog.Info("database ready", "path", cfg.DBPath)

	ctx := context.Background()
	sessionSecret, err := store.GetSecret(ctx, database, store.SessionSecretKey)
	if err != nil {
		slog.Error("failed to get session secret", "error", err)
		os.Exit(1)
	}
	storageSecret, err := store.GetSecret(ctx, database, store.StorageSecretKey)
	if err != nil {
		slog.Error("failed to get storage secret", "error", err)
		os.Exit(1)
	}

	provider := auth.NewProvider(database, sessionSecret, auth.Options{
		SessionTTL: cfg.SessionTTL,
		IDTokenTTL: cfg.IDTokenTTL,
	})

	objects, err := local.New(cfg.StorageDir, storageSecret, cfg.PublicURL, cfg.DownloadURLTTL)
	if err != nil {
		slog.Error("failed to open attachment storage", "error", err)
		os.Exit(1)
	}

	apiBase := cfg.APIBaseURL
	if apiBase == "" {
		cfg.DevAPI = true
		apiBase = loopbackURL(cfg.ListenAddr)
	}

	drafts := report.NewDrafts(cfg.DraftTTL, cfg.AttachmentLimit)
	pages, err := web.NewServer(web.Options{
		Provider:       provider,
		Items:          apiclient.New(apiBase, auth.CurrentIDToken, nil),
		Storage:        objects,
		Uploader:       attachment.NewUploader(objects, cfg.StorageBucket, slog.Default()),
		Drafts:         drafts,
		ResolverMaxAge: cfg.ResolverMaxAge,
		SecureCookies:  strings.HasPrefix(cfg.PublicURL, "https://"),
		Logger:         slog.Default(),
	})
	if err != nil {
		slog.Error("failed to set up web server", "error", err)
		os.Exit(1)
	}
	defer pages.Close()

	// API routes take priority, web routes handle the rest.
	mux := http.NewServeMux()
	if cfg.DevAPI {
		mux.Handle("/api/", api.NewRouter(database, sessionSecret))
		slog.Info("serving built-in items API", "url", apiBase)
	}
	mux.Handle("/", pages.Handler())

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	maintCtx, stopMaint := context.WithCancel(ctx)
	defer stopMaint()
	go runMaintenance(maintCtx, database, drafts)

	// Graceful shutdown on SIGINT/SIGTERM.
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

	slog.Info("server started", "addr", cfg.ListenAddr, "api", apiBase)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped, closing database")
}

// runMaintenance periodically drops expired drafts and forgets revoked
// tokens that have expired anyway.
func runMaintenance(ctx context.Context, database *sql.DB, drafts *report.Drafts) {
	ticker := time.NewTicker(maintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := drafts.Sweep(); n > 0 {
				slog.Info("expired drafts removed", "count", n)
			}
			n, err := store.PurgeExpiredTokens(ctx, database, now)
			if err != nil {
				slog.Error("failed to purge revoked tokens", "error", err)
			} else if n > 0 {
				slog.Info("expired revoked tokens purged", "count", n)
			}
		}
	}
}

// loopbackURL returns the URL under which this process reaches its own
// listener.
func loopbackURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://127.0.0.1:8080"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// initDatabase creates a new database, ensures the schema, and creates the
// administrator account.
func initDatabase(path, adminEmail string) (*sql.DB, string, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("opening database: %w", err)
	}

	if err := db.Migrate(database); err != nil {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("ensuring schema: %w", err)
	}

	password, err := generatePassword(16)
	if err != nil {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("generating password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("hashing password: %w", err)
	}

	ctx := context.Background()
	_, err = store.CreateUser(ctx, database, adminEmail, "Administrator", string(hash), model.RoleAdmin)
	if err != nil {
		database.Close()
		os.Remove(path)
		return nil, "", fmt.Errorf("creating admin user: %w", err)
	}

	return database, password, nil
}

// printInitResult prints the database initialization result to stdout.
func printInitResult(dbPath, email, password string) {
	fmt.Printf("Database created: %s\n", dbPath)
	fmt.Println("Schema initialized.")
	fmt.Println()
	fmt.Println("Administrator account created:")
	fmt.Printf("  Email:    %s\n", email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
