package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	AppEnv    string
	Debug     bool
	Version   string
	BotToken  string
	SentryDSN string

	UseMongoDB            bool
	MongoDBURI            string
	MongoDBDatabase       string
	MongoDBConnectTimeout time.Duration
	DataDir               string

	AdminIDs        []int64
	ContentFile     string
	DefaultLanguage string

	LogDir      string
	LogLevel    string
	MetricsAddr string
}

// env keys; the first name of each binding wins when several are set
var bindings = map[string][]string{
	"app_env":                 {"APP_ENV"},
	"debug":                   {"DEBUG"},
	"version":                 {"VERSION"},
	"bot_token":               {"TELEGRAM_BOT_TOKEN", "BOT_TOKEN"},
	"sentry_dsn":              {"SENTRY_DSN"},
	"use_mongodb":             {"USE_MONGODB"},
	"mongodb_uri":             {"MONGODB_URI", "MONGODB_URL"},
	"mongodb_database":        {"MONGODB_DATABASE"},
	"mongodb_connect_timeout": {"MONGODB_CONNECT_TIMEOUT"},
	"data_dir":                {"DATA_DIR"},
	"admin_ids":               {"ADMIN_IDS"},
	"content_file":            {"CONTENT_FILE"},
	"default_language":        {"DEFAULT_LANGUAGE"},
	"log_dir":                 {"LOG_DIR"},
	"log_level":               {"LOG_LEVEL"},
	"metrics_addr":            {"METRICS_ADDR"},
}

// LoadConfig loads configuration from environment variables.
// It attempts to load a .env file if present but prioritizes
// actual environment variables set in the system (e.g., by Docker).
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, relying on environment variables")
	}

	v := viper.New()
	for key, names := range bindings {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	v.SetDefault("app_env", "development")
	v.SetDefault("debug", false)
	v.SetDefault("version", "dev")
	v.SetDefault("use_mongodb", false)
	v.SetDefault("mongodb_uri", "mongodb://localhost:27017")
	v.SetDefault("mongodb_database", "emergency_bot")
	v.SetDefault("mongodb_connect_timeout", "5s")
	v.SetDefault("data_dir", "data")
	v.SetDefault("default_language", "ru")
	v.SetDefault("log_dir", "logs")
	v.SetDefault("log_level", "info")

	timeout, err := time.ParseDuration(v.GetString("mongodb_connect_timeout"))
	if err != nil || timeout <= 0 {
		return nil, fmt.Errorf("invalid MONGODB_CONNECT_TIMEOUT %q", v.GetString("mongodb_connect_timeout"))
	}

	adminIDs, err := ParseAdminIDs(v.GetString("admin_ids"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:                v.GetString("app_env"),
		Debug:                 v.GetBool("debug"),
		Version:               v.GetString("version"),
		BotToken:              strings.TrimSpace(v.GetString("bot_token")),
		SentryDSN:             v.GetString("sentry_dsn"),
		UseMongoDB:            v.GetBool("use_mongodb"),
		MongoDBURI:            v.GetString("mongodb_uri"),
		MongoDBDatabase:       v.GetString("mongodb_database"),
		MongoDBConnectTimeout: timeout,
		DataDir:               v.GetString("data_dir"),
		AdminIDs:              adminIDs,
		ContentFile:           v.GetString("content_file"),
		DefaultLanguage:       v.GetString("default_language"),
		LogDir:                v.GetString("log_dir"),
		LogLevel:              v.GetString("log_level"),
		MetricsAddr:           v.GetString("metrics_addr"),
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if cfg.MongoDBDatabase == "" {
		return nil, fmt.Errorf("MONGODB_DATABASE must not be empty")
	}

	return cfg, nil
}

// ParseAdminIDs parses a comma separated list of Telegram user ids.
// Blank entries are ignored.
func ParseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_IDS entry %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
