// Package config defines the configuration contract and handles loading and
// validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyTelegramToken = "TELEGRAM_TOKEN"
	KeyBotAdmin      = "BOT_ADMIN"
	KeyMongoURI      = "MONGO_URI"
	KeyMongoDB       = "MONGO_DB"
	KeyGoogleAPIKey  = "GOOGLE_API_KEY"
	KeyGenAIModel    = "GENAI_MODEL"
	KeyAppEnv        = "APP_ENV"
	KeyLogLevel      = "LOG_LEVEL"
	KeyHTTPPort      = "HTTP_PORT"
	KeyDeleteTimeout = "DELETE_TIMEOUT_MINUTES"
	KeySweepInterval = "SWEEP_INTERVAL_SECONDS"

	// Sticker triggers: comma-separated SHA-256 hex digests of sticker
	// payloads that fire the command without any text.
	KeyResumoStickers   = "RESUMO_STICKER_HASHES"
	KeyAyubNewsStickers = "AYUB_NEWS_STICKER_HASHES"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Defaults for optional settings.
	DefaultAppEnv        = EnvProduction
	DefaultLogLevel      = "info"
	DefaultHTTPPort      = 8080
	DefaultGenAIModel    = "gemini-2.0-flash"
	DefaultDeleteMinutes = 1
	DefaultSweepSeconds  = 60

	// Recommended database names by environment.
	DefaultMongoDBProd = "resumo_bot"
	DefaultMongoDBDev  = "resumo_bot_dev"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyTelegramToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
	},
	{
		Key:         KeyBotAdmin,
		Example:     "123456789",
		Required:    true,
		Description: "Telegram user_id of the bot administrator; bypasses command permissions and receives error reports.",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Required:    true,
		Description: "MongoDB connection string.",
	},
	{
		Key:         KeyMongoDB,
		Example:     DefaultMongoDBProd + " / " + DefaultMongoDBDev,
		Required:    true,
		Description: "MongoDB database name.",
		Notes:       "Recommended: production=" + DefaultMongoDBProd + ", development=" + DefaultMongoDBDev + ".",
	},
	{
		Key:         KeyGoogleAPIKey,
		Example:     "AIza...",
		Required:    true,
		Description: "Google AI Studio API key for completions and transcription.",
	},
	{
		Key:         KeyGenAIModel,
		Example:     DefaultGenAIModel,
		Default:     DefaultGenAIModel,
		Description: "Default Gemini model; individual commands may override it.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Overrides default log level.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP health/diagnostics port.",
	},
	{
		Key:         KeyDeleteTimeout,
		Example:     strconv.Itoa(DefaultDeleteMinutes),
		Default:     strconv.Itoa(DefaultDeleteMinutes),
		Description: "Minutes before transient bot replies (errors, command lists) are deleted.",
	},
	{
		Key:         KeySweepInterval,
		Example:     strconv.Itoa(DefaultSweepSeconds),
		Default:     strconv.Itoa(DefaultSweepSeconds),
		Description: "Seconds between auto-delete queue sweeps.",
	},
	{
		Key:         KeyResumoStickers,
		Example:     "9f86d08...,e3b0c44...",
		Description: "Comma-separated SHA-256 digests of stickers that trigger the summary command.",
	},
	{
		Key:         KeyAyubNewsStickers,
		Example:     "9f86d08...",
		Description: "Comma-separated SHA-256 digests of stickers that trigger the news command.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	TelegramToken string
	BotAdminID    int64
	MongoURI      string
	MongoDB       string
	GoogleAPIKey  string
	GenAIModel    string
	AppEnv        string
	LogLevel      string
	HTTPPort      int
	DeleteTimeout time.Duration
	SweepInterval time.Duration
	// Sticker-trigger digests per command, empty when unconfigured.
	ResumoStickerHashes   []string
	AyubNewsStickerHashes []string
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:        firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		TelegramToken: strings.TrimSpace(os.Getenv(KeyTelegramToken)),
		MongoURI:      strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:       strings.TrimSpace(os.Getenv(KeyMongoDB)),
		GoogleAPIKey:  strings.TrimSpace(os.Getenv(KeyGoogleAPIKey)),
		GenAIModel:    firstNonEmpty(strings.TrimSpace(os.Getenv(KeyGenAIModel)), DefaultGenAIModel),
		LogLevel:      firstNonEmpty(strings.TrimSpace(os.Getenv(KeyLogLevel)), DefaultLogLevel),
		HTTPPort:      DefaultHTTPPort,
		DeleteTimeout: DefaultDeleteMinutes * time.Minute,
		SweepInterval: DefaultSweepSeconds * time.Second,
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	missing := make([]string, 0)

	if cfg.TelegramToken == "" {
		missing = append(missing, KeyTelegramToken)
	}

	adminRaw := strings.TrimSpace(os.Getenv(KeyBotAdmin))
	if adminRaw == "" {
		missing = append(missing, KeyBotAdmin)
	} else {
		adminID, parseErr := strconv.ParseInt(adminRaw, 10, 64)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyBotAdmin, parseErr)
		}
		cfg.BotAdminID = adminID
	}

	if cfg.MongoURI == "" {
		missing = append(missing, KeyMongoURI)
	} else if err := validateMongoURI(cfg.MongoURI); err != nil {
		return Config{}, err
	}

	if cfg.MongoDB == "" {
		missing = append(missing, KeyMongoDB)
	}

	if cfg.GoogleAPIKey == "" {
		missing = append(missing, KeyGoogleAPIKey)
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", strings.Join(missing, ", "))
	}

	httpPortRaw := strings.TrimSpace(os.Getenv(KeyHTTPPort))
	if httpPortRaw != "" {
		port, parseErr := strconv.Atoi(httpPortRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPPort, parseErr)
		}
		if port <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyHTTPPort)
		}
		cfg.HTTPPort = port
	}

	deleteRaw := strings.TrimSpace(os.Getenv(KeyDeleteTimeout))
	if deleteRaw != "" {
		minutes, parseErr := strconv.Atoi(deleteRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyDeleteTimeout, parseErr)
		}
		if minutes <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeyDeleteTimeout)
		}
		cfg.DeleteTimeout = time.Duration(minutes) * time.Minute
	}

	sweepRaw := strings.TrimSpace(os.Getenv(KeySweepInterval))
	if sweepRaw != "" {
		seconds, parseErr := strconv.Atoi(sweepRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeySweepInterval, parseErr)
		}
		if seconds <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than 0", KeySweepInterval)
		}
		cfg.SweepInterval = time.Duration(seconds) * time.Second
	}

	cfg.ResumoStickerHashes = splitHashes(os.Getenv(KeyResumoStickers))
	cfg.AyubNewsStickerHashes = splitHashes(os.Getenv(KeyAyubNewsStickers))

	return cfg, nil
}

// splitHashes parses a comma-separated digest list, dropping empty entries
// and normalizing to lowercase hex.
func splitHashes(raw string) []string {
	var hashes []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			hashes = append(hashes, part)
		}
	}
	return hashes
}

// FormatRedacted renders the configuration with secrets masked for logging
// and the --config-only check.
func FormatRedacted(cfg Config) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("app_env: %s\n", cfg.AppEnv))
	sb.WriteString(fmt.Sprintf("log_level: %s\n", cfg.LogLevel))
	sb.WriteString(fmt.Sprintf("telegram_token: %s\n", maskSecret(cfg.TelegramToken)))
	sb.WriteString(fmt.Sprintf("bot_admin: %d\n", cfg.BotAdminID))
	sb.WriteString(fmt.Sprintf("mongo_uri: %s\n", redactMongoURI(cfg.MongoURI)))
	sb.WriteString(fmt.Sprintf("mongo_db: %s\n", cfg.MongoDB))
	sb.WriteString(fmt.Sprintf("google_api_key: %s\n", maskSecret(cfg.GoogleAPIKey)))
	sb.WriteString(fmt.Sprintf("genai_model: %s\n", cfg.GenAIModel))
	sb.WriteString(fmt.Sprintf("http_port: %d\n", cfg.HTTPPort))
	sb.WriteString(fmt.Sprintf("delete_timeout: %s\n", cfg.DeleteTimeout))
	sb.WriteString(fmt.Sprintf("sweep_interval: %s", cfg.SweepInterval))

	return sb.String()
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func validateMongoURI(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", KeyMongoURI, err)
	}

	if parsed.Scheme != "mongodb" && parsed.Scheme != "mongodb+srv" {
		return fmt.Errorf("invalid %s: scheme must be mongodb or mongodb+srv", KeyMongoURI)
	}

	return nil
}

func maskSecret(secret string) string {
	if secret == "" {
		return "(unset)"
	}
	if len(secret) <= 4 {
		return "...redacted"
	}
	return secret[:4] + "...redacted"
}

func redactMongoURI(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "(unparseable)"
	}
	parsed.User = nil
	return parsed.String()
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
