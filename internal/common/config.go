package common

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/invoicebot/constants"
)

// Config holds all application configuration. It is loaded once at startup
// and handed to components by value; nothing mutates it afterwards.
type Config struct {
	Database       DatabaseConfig
	Server         ServerConfig
	Pipeline       PipelineConfig
	Extraction     LLMConfig
	Categorization LLMConfig
	Accounting     AccountingConfig
	Categories     CategoriesConfig
	Inbox          InboxConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr        string
	GRPCAddr        string
	ShutdownTimeout time.Duration
	MaxUploadBytes  int
}

// PipelineConfig tunes text extraction and per-stage limits.
type PipelineConfig struct {
	Pdftotext    string
	MaxChars     int
	StageTimeout time.Duration
}

// LLMConfig configures one provider handle. Extraction and categorization
// each get their own so they can point at different vendors.
type LLMConfig struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

// AccountingConfig holds the draft-bill integration settings.
type AccountingConfig struct {
	Enabled      bool
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccessToken  string
	TenantID     string
	Timeout      time.Duration
}

// CategoriesConfig is the category vocabulary snapshot.
type CategoriesConfig struct {
	Allowed        []string          `yaml:"allowed"`
	AccountCodes   map[string]string `yaml:"account_codes"`
	CompanyContext string            `yaml:"company_context"`
}

// InboxConfig holds the directory watcher settings.
type InboxConfig struct {
	Dir        string
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
	Debounce   time.Duration
}

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory is read first when present.
func LoadConfig() *Config {
	if err := godotenv.Load(); err == nil {
		slog.Debug("config.dotenv.loaded")
	}

	cfg := &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", "sqlite://invoicebot.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
			GRPCAddr:        getEnv("GRPC_ADDR", ":9090"),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
			MaxUploadBytes:  getEnvAsInt("MAX_UPLOAD_BYTES", 20<<20),
		},
		Pipeline: PipelineConfig{
			Pdftotext:    getEnv("PDFTOTEXT_BIN", ""),
			MaxChars:     getEnvAsInt("MAX_TEXT_CHARS", 15000),
			StageTimeout: getEnvAsDuration("STAGE_TIMEOUT", 2*time.Minute),
		},
		Extraction: LLMConfig{
			Provider:    strings.ToLower(getEnv("OCR_SERVICE", "mistral")),
			Model:       getEnv("EXTRACTION_MODEL", "mistral-large-latest"),
			BaseURL:     getEnv("EXTRACTION_BASE_URL", ""),
			Temperature: getEnvAsFloat32("EXTRACTION_TEMPERATURE", 0.1),
			Timeout:     getEnvAsDuration("EXTRACTION_TIMEOUT", 60*time.Second),
		},
		Categorization: LLMConfig{
			Provider:    strings.ToLower(getEnv("CATEGORIZATION_SERVICE", "openai")),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o"),
			BaseURL:     getEnv("OPENAI_BASE_URL", ""),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.2),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
		Accounting: AccountingConfig{
			Enabled:      getEnvAsBool("XERO_ENABLED", false),
			BaseURL:      getEnv("XERO_BASE_URL", "https://api.xero.com/api.xro/2.0"),
			TokenURL:     getEnv("XERO_TOKEN_URL", "https://identity.xero.com/connect/token"),
			ClientID:     getEnv("XERO_CLIENT_ID", ""),
			ClientSecret: getEnv("XERO_CLIENT_SECRET", ""),
			RefreshToken: getEnv("XERO_REFRESH_TOKEN", ""),
			AccessToken:  getEnv("XERO_ACCESS_TOKEN", ""),
			TenantID:     getEnv("XERO_TENANT_ID", ""),
			Timeout:      getEnvAsDuration("XERO_TIMEOUT", 30*time.Second),
		},
		Categories: CategoriesConfig{
			Allowed:        parseCategoryList(os.Getenv("ALLOWED_CATEGORIES")),
			AccountCodes:   parseAccountCodes(os.Getenv("XERO_ACCOUNT_CODE_MAP")),
			CompanyContext: getEnv("COMPANY_CONTEXT", constants.DefaultCompanyContext),
		},
		Inbox: InboxConfig{
			Dir:        getEnv("INBOX_DIR", ""),
			Workers:    getEnvAsInt("INBOX_WORKERS", 4),
			QueueSize:  getEnvAsInt("INBOX_QUEUE_SIZE", 128),
			JobTimeout: getEnvAsDuration("INBOX_JOB_TIMEOUT", 3*time.Minute),
			Debounce:   getEnvAsDuration("INBOX_DEBOUNCE", 500*time.Millisecond),
		},
	}

	cfg.Extraction.APIKey = getEnv("EXTRACTION_API_KEY", os.Getenv(apiKeyEnv(cfg.Extraction.Provider)))
	cfg.Categorization.APIKey = getEnv("CATEGORIZATION_API_KEY", os.Getenv(apiKeyEnv(cfg.Categorization.Provider)))

	if path := getEnv("CATEGORIES_FILE", ""); path != "" {
		if err := cfg.Categories.MergeFile(path); err != nil {
			slog.Warn("config.categories_file.failed", "path", path, "error", err)
		}
	}
	return cfg
}

// MergeFile overlays non-empty values from a YAML categories file.
func (c *CategoriesConfig) MergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read categories file: %w", err)
	}
	var fileCfg CategoriesConfig
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return fmt.Errorf("parse categories file: %w", err)
	}
	if len(fileCfg.Allowed) > 0 {
		c.Allowed = trimAll(fileCfg.Allowed)
	}
	if len(fileCfg.AccountCodes) > 0 {
		c.AccountCodes = fileCfg.AccountCodes
	}
	if s := strings.TrimSpace(fileCfg.CompanyContext); s != "" {
		c.CompanyContext = s
	}
	return nil
}

// parseCategoryList accepts a JSON array and falls back to comma separated values.
func parseCategoryList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return append([]string(nil), constants.DefaultCategories...)
	}
	var list []any
	if err := json.Unmarshal([]byte(raw), &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			out = append(out, fmt.Sprint(item))
		}
		return trimAll(out)
	}
	slog.Warn("config.allowed_categories.not_json", "value", raw)
	return trimAll(strings.Split(raw, ","))
}

func parseAccountCodes(raw string) map[string]string {
	out := map[string]string{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return out
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		slog.Warn("config.account_code_map.invalid", "error", err)
		return out
	}
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the loaded configuration. Provider and accounting checks
// run here so a bad deployment fails at startup rather than per request.
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("ALLOWED_CATEGORIES", c.Categories.Allowed, NonEmptyList, UniqueStrings)
	v.Field("OCR_SERVICE", c.Extraction.Provider, Required)
	v.Field("CATEGORIZATION_SERVICE", c.Categorization.Provider, Required)
	v.Field(apiKeyEnv(c.Extraction.Provider), c.Extraction.APIKey, Required)
	v.Field(apiKeyEnv(c.Categorization.Provider), c.Categorization.APIKey, Required)
	if c.Accounting.Enabled {
		v.Field("XERO_TENANT_ID", c.Accounting.TenantID, Required)
		if c.Accounting.AccessToken == "" {
			v.Field("XERO_CLIENT_ID", c.Accounting.ClientID, Required)
			v.Field("XERO_CLIENT_SECRET", c.Accounting.ClientSecret, Required)
			v.Field("XERO_REFRESH_TOKEN", c.Accounting.RefreshToken, Required)
		}
	}
	if v.HasErrors() {
		return NewAppError("CONFIG_ERROR", v.ErrorMessage(), ErrInvalidInput)
	}
	return nil
}

func apiKeyEnv(provider string) string {
	switch provider {
	case "mistral":
		return "MISTRAL_API_KEY"
	default:
		return "OPENAI_API_KEY"
	}
}
