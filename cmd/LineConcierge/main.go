package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/BTreeMap/LineConcierge/internal/api"
	"github.com/BTreeMap/LineConcierge/internal/genai"
	"github.com/BTreeMap/LineConcierge/internal/lockfile"
	"github.com/BTreeMap/LineConcierge/internal/messaging"
	"github.com/BTreeMap/LineConcierge/internal/notify"
	"github.com/BTreeMap/LineConcierge/internal/store"
	"github.com/BTreeMap/LineConcierge/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for LineConcierge state data
	DefaultStateDir = "/var/lib/lineconcierge"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "lineconcierge.db"
)

func main() {
	os.Exit(run())
}

// run wires and serves the application, returning the process exit code
func run() int {
	initializeLogger(os.Getenv("LOG_LEVEL"))

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		return 1
	}

	if store.DetectDSNType(*flags.dbDSN) == "sqlite3" && *flags.supabaseURL == "" {
		lock, err := lockfile.AcquireLock(*flags.stateDir)
		if err != nil {
			slog.Error("Another LineConcierge instance holds the state directory", "error", err)
			return 1
		}
		defer func() {
			if err := lock.Release(); err != nil {
				slog.Warn("Failed to release lock file", "error", err)
			}
		}()
	}

	storeOpts := buildStoreOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	lineOpts := buildLineOptions(flags)
	notifyOpts := buildNotifyOptions(flags)
	apiOpts := buildAPIOptions(flags)
	appOpts := buildAppOptions(flags)

	slog.Info("Bootstrapping LineConcierge with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "genai", len(genaiOpts), "line", len(lineOpts), "notify", len(notifyOpts), "api", len(apiOpts))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := api.Run(ctx, storeOpts, genaiOpts, lineOpts, notifyOpts, apiOpts, appOpts...); err != nil {
		slog.Error("LineConcierge failed to run", "error", err)
		return 1
	}
	slog.Info("LineConcierge exited successfully")
	return 0
}

// Config holds environment configuration
type Config struct {
	ChannelSecret      string
	ChannelAccessToken string
	DatabaseURL        string
	StateDir           string
	SupabaseURL        string
	SupabaseKey        string
	SupabaseTable      string
	OpenAIKey          string
	OpenAIModel        string
	DiscordWebhookURL  string
	APIAddr            string
	CatalogFile        string
	CommunityURL       string
	DedupEnabled       bool
	PruneSchedule      string
	DedupRetention     time.Duration
}

// Flags holds command line flag values
type Flags struct {
	channelSecret      *string
	channelAccessToken *string
	stateDir           *string
	dbDSN              *string
	supabaseURL        *string
	supabaseKey        *string
	supabaseTable      *string
	openaiKey          *string
	openaiModel        *string
	discordWebhookURL  *string
	apiAddr            *string
	catalogFile        *string
	communityURL       *string
	dedup              *bool
	pruneSchedule      *string
	dedupRetention     *time.Duration
}

// parseLogLevel maps debug/info/warn/error to a slog level, defaulting to debug.
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

// initializeLogger sets up structured logging at the given level
func initializeLogger(level string) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(level)}))
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
		ChannelSecret:      os.Getenv("LINE_CHANNEL_SECRET"),
		ChannelAccessToken: os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		StateDir:           os.Getenv("CONCIERGE_STATE_DIR"),
		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseKey:        os.Getenv("SUPABASE_KEY"),
		SupabaseTable:      os.Getenv("SUPABASE_TABLE"),
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        os.Getenv("OPENAI_MODEL"),
		DiscordWebhookURL:  os.Getenv("DISCORD_WEBHOOK_URL"),
		APIAddr:            os.Getenv("API_ADDR"),
		CatalogFile:        os.Getenv("CATALOG_FILE"),
		CommunityURL:       os.Getenv("COMMUNITY_INVITE_URL"),
		DedupEnabled:       util.ParseBoolEnv("DEDUP_ENABLED", true),
		PruneSchedule:      os.Getenv("DEDUP_PRUNE_SCHEDULE"),
		DedupRetention:     util.ParseDurationEnv("DEDUP_RETENTION", 0),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No CONCIERGE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// Without a database URL, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"LINE_CHANNEL_SECRET_SET", config.ChannelSecret != "",
		"LINE_CHANNEL_ACCESS_TOKEN_SET", config.ChannelAccessToken != "",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"CONCIERGE_STATE_DIR", config.StateDir,
		"SUPABASE_URL_SET", config.SupabaseURL != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"DISCORD_WEBHOOK_URL_SET", config.DiscordWebhookURL != "",
		"API_ADDR", config.APIAddr,
		"CATALOG_FILE", config.CatalogFile,
		"DEDUP_ENABLED", config.DedupEnabled)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	return parseFlagSet(flag.CommandLine, os.Args[1:], config)
}

func parseFlagSet(fs *flag.FlagSet, args []string, config Config) Flags {
	flags := Flags{
		channelSecret:      fs.String("line-channel-secret", config.ChannelSecret, "LINE channel secret (overrides $LINE_CHANNEL_SECRET)"),
		channelAccessToken: fs.String("line-channel-access-token", config.ChannelAccessToken, "LINE channel access token (overrides $LINE_CHANNEL_ACCESS_TOKEN)"),
		stateDir:           fs.String("state-dir", config.StateDir, "state directory for LineConcierge data (overrides $CONCIERGE_STATE_DIR)"),
		dbDSN:              fs.String("db-dsn", config.DatabaseURL, "database DSN, Postgres URL or SQLite path (overrides $DATABASE_URL)"),
		supabaseURL:        fs.String("supabase-url", config.SupabaseURL, "Supabase project URL (overrides $SUPABASE_URL)"),
		supabaseKey:        fs.String("supabase-key", config.SupabaseKey, "Supabase service key (overrides $SUPABASE_KEY)"),
		supabaseTable:      fs.String("supabase-table", config.SupabaseTable, "Supabase user state table (overrides $SUPABASE_TABLE)"),
		openaiKey:          fs.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		openaiModel:        fs.String("openai-model", config.OpenAIModel, "OpenAI model for text tools (overrides $OPENAI_MODEL)"),
		discordWebhookURL:  fs.String("discord-webhook-url", config.DiscordWebhookURL, "Discord webhook for operator alerts (overrides $DISCORD_WEBHOOK_URL)"),
		apiAddr:            fs.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		catalogFile:        fs.String("catalog-file", config.CatalogFile, "YAML article catalog overrides (overrides $CATALOG_FILE)"),
		communityURL:       fs.String("community-url", config.CommunityURL, "community invite link (overrides $COMMUNITY_INVITE_URL)"),
		dedup:              fs.Bool("dedup", config.DedupEnabled, "drop redelivered webhook events (overrides $DEDUP_ENABLED)"),
		pruneSchedule:      fs.String("dedup-prune-schedule", config.PruneSchedule, "cron schedule for pruning dedup records (overrides $DEDUP_PRUNE_SCHEDULE)"),
		dedupRetention:     fs.Duration("dedup-retention", config.DedupRetention, "how long dedup records are kept (overrides $DEDUP_RETENTION)"),
	}

	if err := fs.Parse(args); err != nil {
		slog.Warn("failed to parse flags", "error", err)
	}

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"supabase", *flags.supabaseURL != "",
		"openaiKeySet", *flags.openaiKey != "",
		"apiAddr", *flags.apiAddr,
		"dedup", *flags.dedup)

	// Follow a changed state directory when the DSN is still the default SQLite path
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates the directory holding a file-based database
func ensureDirectoriesExist(flags Flags) error {
	if *flags.supabaseURL != "" || store.DetectDSNType(*flags.dbDSN) == "postgres" {
		return nil
	}
	dirs := []string{*flags.stateDir, filepath.Dir(*flags.dbDSN)}
	for _, dir := range dirs {
		slog.Debug("Creating state directory for file-based database", "state_dir", dir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create state directory %s: %w", dir, err)
		}
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.supabaseURL != "" && *flags.supabaseKey != "" {
		slog.Debug("Supabase credentials set, configuring Supabase store")
		storeOpts = append(storeOpts, store.WithSupabase(*flags.supabaseURL, *flags.supabaseKey))
		if *flags.supabaseTable != "" {
			storeOpts = append(storeOpts, store.WithSupabaseTable(*flags.supabaseTable))
		}
		return storeOpts
	}
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	return genaiOpts
}

// buildLineOptions constructs LINE reply channel options
func buildLineOptions(flags Flags) []messaging.Option {
	var lineOpts []messaging.Option
	if *flags.channelAccessToken != "" {
		lineOpts = append(lineOpts, messaging.WithChannelAccessToken(*flags.channelAccessToken))
	}
	return lineOpts
}

// buildNotifyOptions constructs operator notifier options
func buildNotifyOptions(flags Flags) []notify.Option {
	var notifyOpts []notify.Option
	if *flags.discordWebhookURL != "" {
		notifyOpts = append(notifyOpts, notify.WithWebhookURL(*flags.discordWebhookURL))
	}
	return notifyOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.channelSecret != "" {
		apiOpts = append(apiOpts, api.WithChannelSecret(*flags.channelSecret))
	}
	return apiOpts
}

// buildAppOptions constructs dispatcher-level options
func buildAppOptions(flags Flags) []api.AppOption {
	appOpts := []api.AppOption{api.WithDedupEnabled(*flags.dedup)}
	if *flags.catalogFile != "" {
		appOpts = append(appOpts, api.WithCatalogFile(*flags.catalogFile))
	}
	if *flags.communityURL != "" {
		appOpts = append(appOpts, api.WithCommunityURL(*flags.communityURL))
	}
	if *flags.pruneSchedule != "" || *flags.dedupRetention > 0 {
		appOpts = append(appOpts, api.WithDedupPruning(*flags.pruneSchedule, *flags.dedupRetention))
	}
	return appOpts
}
