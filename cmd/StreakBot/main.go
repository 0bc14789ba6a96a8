package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/BTreeMap/StreakBot/internal/api"
	"github.com/BTreeMap/StreakBot/internal/genai"
	"github.com/BTreeMap/StreakBot/internal/janitor"
	"github.com/BTreeMap/StreakBot/internal/lockfile"
	"github.com/BTreeMap/StreakBot/internal/store"
	"github.com/BTreeMap/StreakBot/internal/telegram"
	"github.com/BTreeMap/StreakBot/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for StreakBot state data
	DefaultStateDir = "/var/lib/streakbot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "streakbot.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()

	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// File-based storage must not be shared by two processes.
	if *flags.dbDriver != "memory" && store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		lock, err := lockfile.AcquireLock(filepath.Dir(*flags.dbDSN))
		if err != nil {
			slog.Error("Failed to acquire state directory lock", "error", err)
			os.Exit(1)
		}
		defer lock.Release()
	}

	storeOpts := buildStoreOptions(flags)
	tgOpts := buildTelegramOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	apiOpts := buildAPIOptions(flags, config)

	slog.Info("Bootstrapping StreakBot with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "telegram", len(tgOpts), "genai", len(genaiOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr, "admins", len(config.AdminIDs))
	if err := api.Run(storeOpts, tgOpts, genaiOpts, apiOpts); err != nil {
		slog.Error("StreakBot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("StreakBot exited successfully")
}

// Config holds environment configuration
type Config struct {
	BotToken        string
	TelegramProxy   string
	AdminIDs        []string
	DbDriver        string
	DatabaseURL     string
	StateDir        string
	OpenAIKey       string
	APIAddr         string
	ProcessTimeout  time.Duration
	DedupRetention  time.Duration
	JanitorSchedule string
}

// Flags holds command line flag values
type Flags struct {
	botToken  *string
	proxy     *string
	stateDir  *string
	dbDriver  *string
	dbDSN     *string
	openaiKey *string
	apiAddr   *string
}

// initializeLogger sets up structured logging; STREAKBOT_DEBUG lowers the level
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("STREAKBOT_DEBUG", false) {
		level = slog.LevelDebug
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
		BotToken:        os.Getenv("BOT_TOKEN"),
		TelegramProxy:   os.Getenv("TELEGRAM_PROXY"),
		AdminIDs:        util.ParseListEnv("ADMIN_IDS"),
		DbDriver:        os.Getenv("DB_DRIVER"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		StateDir:        os.Getenv("STREAKBOT_STATE_DIR"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		APIAddr:         os.Getenv("API_ADDR"),
		ProcessTimeout:  util.ParseDurationEnv("PROCESS_TIMEOUT", api.DefaultProcessTimeout),
		DedupRetention:  util.ParseDurationEnv("DEDUP_RETENTION", janitor.DefaultRetention),
		JanitorSchedule: os.Getenv("JANITOR_SCHEDULE"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No STREAKBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"BOT_TOKEN_SET", config.BotToken != "",
		"ADMIN_IDS", len(config.AdminIDs),
		"DB_DRIVER", config.DbDriver,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"STREAKBOT_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"API_ADDR", config.APIAddr,
		"PROCESS_TIMEOUT", config.ProcessTimeout,
		"DEDUP_RETENTION", config.DedupRetention,
		"JANITOR_SCHEDULE", config.JanitorSchedule)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		botToken:  flag.String("bot-token", config.BotToken, "Telegram bot token (overrides $BOT_TOKEN)"),
		proxy:     flag.String("telegram-proxy", config.TelegramProxy, "HTTP proxy for the Telegram Bot API (overrides $TELEGRAM_PROXY)"),
		stateDir:  flag.String("state-dir", config.StateDir, "state directory for StreakBot data (overrides $STREAKBOT_STATE_DIR)"),
		dbDriver:  flag.String("db-driver", config.DbDriver, "database driver: sqlite3, postgres, or memory (overrides $DB_DRIVER)"),
		dbDSN:     flag.String("db-dsn", config.DatabaseURL, "database DSN (overrides $DATABASE_URL)"),
		openaiKey: flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:   flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"botTokenSet", *flags.botToken != "",
		"proxySet", *flags.proxy != "",
		"stateDir", *flags.stateDir,
		"dbDriver", *flags.dbDriver,
		"dbDSN_set", *flags.dbDSN != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr)

	// Follow the state directory when the DSN was only defaulted from it.
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if *flags.dbDriver == "memory" {
		return nil
	}
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		storeOpts = append(storeOpts, store.WithDSN(*flags.dbDSN))
	}
	return storeOpts
}

// buildTelegramOptions constructs Telegram adapter configuration options
func buildTelegramOptions(flags Flags) []telegram.Option {
	var tgOpts []telegram.Option
	if *flags.botToken != "" {
		tgOpts = append(tgOpts, telegram.WithToken(*flags.botToken))
	}
	if *flags.proxy != "" {
		tgOpts = append(tgOpts, telegram.WithProxy(*flags.proxy))
	}
	return tgOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	return genaiOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags, config Config) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	driver := *flags.dbDriver
	if driver == "" && store.DetectDSNType(*flags.dbDSN) == "postgres" {
		driver = "postgres"
	}
	if driver != "" {
		apiOpts = append(apiOpts, api.WithDBDriver(driver))
	}
	if len(config.AdminIDs) > 0 {
		apiOpts = append(apiOpts, api.WithAdminIDs(config.AdminIDs))
	}
	if config.ProcessTimeout > 0 {
		apiOpts = append(apiOpts, api.WithProcessTimeout(config.ProcessTimeout))
	}
	if config.DedupRetention > 0 {
		apiOpts = append(apiOpts, api.WithDedupRetention(config.DedupRetention))
	}
	if config.JanitorSchedule != "" {
		apiOpts = append(apiOpts, api.WithJanitorSchedule(config.JanitorSchedule))
	}
	return apiOpts
}
