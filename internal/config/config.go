package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port               string
	RateLimitPerMinute int
	StatementMaxBytes  int64

	// Database
	DataBackend  string
	SQLiteDBPath string

	// AMQP, optional. Statements are processed in-process when unset.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Language model
	OpenAIAPIKey string
	OpenAIModel  string

	// Chat sessions
	RedisAddr        string
	ChatSessionTTL   time.Duration
	ChatHistoryLimit int

	// Google Sheets snapshots
	GoogleSpreadsheetID string
	GoogleSnapshotSheet string

	// Worker
	WorkerBatchSize int

	// Logging
	LogLevel  string
	LogFormat string
}

var (
	validBackends   = []string{"memory", "sqlite"}
	validLogLevels  = []string{"debug", "info", "warn", "warning", "error"}
	validLogFormats = []string{"text", "json"}
)

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		StatementMaxBytes:  int64(getEnvInt("STATEMENT_MAX_BYTES", 10<<20)),

		DataBackend:  getEnv("DATA_BACKEND", "memory"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/finpilot.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finpilot"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "process_statements"),

		OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		ChatSessionTTL:   getEnvDuration("CHAT_SESSION_TTL", 24*time.Hour),
		ChatHistoryLimit: getEnvInt("CHAT_HISTORY_LIMIT", 20),

		GoogleSpreadsheetID: getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSnapshotSheet: getEnv("GOOGLE_SNAPSHOT_SHEET", "Snapshots"),

		WorkerBatchSize: getEnvInt("WORKER_BATCH_SIZE", 50),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// AIEnabled reports whether a language model key is configured.
func (c *Config) AIEnabled() bool {
	return c.OpenAIAPIKey != ""
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
		if c.DataBackend == "memory" {
			errors = append(errors, "AMQP URL requires the sqlite backend: the statement worker cannot read the in-memory store")
		}
	}

	if c.AIEnabled() && c.OpenAIModel == "" {
		errors = append(errors, "OpenAI model cannot be empty when an API key is provided")
	}

	if c.ChatSessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid chat session TTL %v: must be at least 1 minute", c.ChatSessionTTL))
	}
	if c.ChatHistoryLimit < 2 || c.ChatHistoryLimit > 200 {
		errors = append(errors, fmt.Sprintf("invalid chat history limit %d: must be between 2 and 200", c.ChatHistoryLimit))
	}

	if c.RateLimitPerMinute < 1 || c.RateLimitPerMinute > 10000 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be between 1 and 10000 per minute", c.RateLimitPerMinute))
	}
	if c.StatementMaxBytes < 1<<10 || c.StatementMaxBytes > 100<<20 {
		errors = append(errors, fmt.Sprintf("invalid statement size limit %d: must be between 1KB and 100MB", c.StatementMaxBytes))
	}

	if c.GoogleSpreadsheetID != "" && c.GoogleSnapshotSheet == "" {
		errors = append(errors, "Google snapshot sheet name is required when a spreadsheet ID is provided")
	}

	if c.WorkerBatchSize < 1 || c.WorkerBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid worker batch size %d: must be between 1 and 1000", c.WorkerBatchSize))
	}

	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLogLevels))
	}
	if !slices.Contains(validLogFormats, strings.ToLower(c.LogFormat)) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
