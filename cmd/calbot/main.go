package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"github.com/calbot/calbot/internal/api"
	"github.com/calbot/calbot/internal/bot"
	"github.com/calbot/calbot/internal/flows"
	"github.com/calbot/calbot/internal/fsm"
	"github.com/calbot/calbot/internal/lockfile"
	"github.com/calbot/calbot/internal/scheduling"
	"github.com/calbot/calbot/internal/stats"
	"github.com/calbot/calbot/internal/store"
	"github.com/calbot/calbot/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for calbot state data
	DefaultStateDir = "/var/lib/calbot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "calbot.db"
	// DefaultAPIAddr is the default admin/export API listen address
	DefaultAPIAddr = ":8080"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	if err := run(flags); err != nil {
		slog.Error("calbot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("calbot exited successfully")
}

// Config holds environment configuration
type Config struct {
	BotToken      string
	DatabaseURL   string
	StateDir      string
	APIAddr       string
	APIEnabled    bool
	ExportSecret  string
	ExportTTL     time.Duration
	ExportBaseURL string
	AdminKey      string
}

// Flags holds command line flag values
type Flags struct {
	botToken      *string
	stateDir      *string
	dbDSN         *string
	apiAddr       *string
	apiEnabled    *bool
	exportSecret  *string
	exportTTL     *time.Duration
	exportBaseURL *string
	adminKey      *string
}

// initializeLogger sets up structured logging, honoring $LOG_LEVEL.
func initializeLogger() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		BotToken:      os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		StateDir:      os.Getenv("CALBOT_STATE_DIR"),
		APIAddr:       os.Getenv("API_ADDR"),
		APIEnabled:    util.ParseBoolEnv("API_ENABLED", true),
		ExportSecret:  os.Getenv("EXPORT_SECRET"),
		ExportTTL:     util.ParseDurationEnv("EXPORT_TOKEN_TTL", api.DefaultTokenTTL),
		ExportBaseURL: os.Getenv("EXPORT_BASE_URL"),
		AdminKey:      os.Getenv("ADMIN_API_KEY"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CALBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.APIAddr == "" {
		config.APIAddr = DefaultAPIAddr
	}

	slog.Debug("environment variables loaded",
		"TELEGRAM_BOT_TOKEN_SET", config.BotToken != "",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"CALBOT_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"API_ENABLED", config.APIEnabled,
		"EXPORT_SECRET_SET", config.ExportSecret != "",
		"EXPORT_TOKEN_TTL", config.ExportTTL,
		"EXPORT_BASE_URL", config.ExportBaseURL,
		"ADMIN_API_KEY_SET", config.AdminKey != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		botToken:      flag.String("bot-token", config.BotToken, "Telegram bot token (overrides $TELEGRAM_BOT_TOKEN)"),
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for calbot data (overrides $CALBOT_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "database DSN, Postgres URL or SQLite path (overrides $DATABASE_URL)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "admin/export API listen address (overrides $API_ADDR)"),
		apiEnabled:    flag.Bool("api-enabled", config.APIEnabled, "serve the admin/export API (overrides $API_ENABLED)"),
		exportSecret:  flag.String("export-secret", config.ExportSecret, "signing secret for export tokens (overrides $EXPORT_SECRET)"),
		exportTTL:     flag.Duration("export-ttl", config.ExportTTL, "lifetime of export tokens (overrides $EXPORT_TOKEN_TTL)"),
		exportBaseURL: flag.String("export-base-url", config.ExportBaseURL, "public base URL for export links (overrides $EXPORT_BASE_URL)"),
		adminKey:      flag.String("admin-key", config.AdminKey, "key for the statistics endpoint (overrides $ADMIN_API_KEY)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"botTokenSet", *flags.botToken != "",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"apiEnabled", *flags.apiEnabled,
		"exportSecretSet", *flags.exportSecret != "",
		"exportTTL", *flags.exportTTL,
		"exportBaseURL", *flags.exportBaseURL,
		"adminKeySet", *flags.adminKey != "")

	// Move the default SQLite path along with a changed state directory.
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.dbDSN) == "sqlite3" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// openStore selects the storage backend from the DSN.
func openStore(dsn string) (store.Store, error) {
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

func run(flags Flags) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// A second instance polling the same bot token would steal updates.
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := openStore(*flags.dbDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	secret := *flags.exportSecret
	if secret == "" {
		// Without a configured secret, export links stop working on restart.
		secret, err = util.GenerateSecretHex(64)
		if err != nil {
			return err
		}
		slog.Warn("No EXPORT_SECRET configured, using an ephemeral signing secret")
	}
	tokens := api.NewTokenIssuer(secret, *flags.exportTTL)

	tg, err := tgbotapi.NewBotAPI(*flags.botToken)
	if err != nil {
		return err
	}
	slog.Info("Telegram bot authorized", "bot", tg.Self.UserName)

	handler := flows.NewHandler(flows.Dependencies{
		States:    fsm.NewInMemoryStateStore(),
		Store:     st,
		Checker:   scheduling.NewChecker(st),
		Messenger: bot.NewMessenger(tg),
		Stats:     stats.NewTracker(st),
	})

	errCh := make(chan error, 2)

	if *flags.apiEnabled {
		srv := api.NewServer(st, tokens,
			api.WithAddr(*flags.apiAddr),
			api.WithAdminKey(*flags.adminKey),
		)
		go func() { errCh <- srv.Run(ctx) }()
	}

	var botOpts []bot.Option
	if *flags.exportBaseURL != "" {
		botOpts = append(botOpts, bot.WithExportBaseURL(*flags.exportBaseURL))
	}
	b := bot.New(tg, handler, tokens, botOpts...)
	go func() { errCh <- b.Run(ctx) }()

	select {
	case <-ctx.Done():
		slog.Info("Shutdown signal received")
		// Give the components a moment to wind down.
		<-time.After(time.Second)
		return nil
	case err := <-errCh:
		if err != nil {
			cancel()
		}
		return err
	}
}
