package contract

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"unicode"

	"github.com/covtrail/covtrail/schema"
)

// Default values for configuration.
const (
	DefaultBackendName = "coveralls"
	DefaultBaseURL     = "https://coveralls.io/"
	DefaultKafkaTopic  = "covtrail.items.coverage"
	DefaultLogLevel    = "warn"
)

// DateTimeFormat is the default date time representation.
const DateTimeFormat = "2006-01-02 15:04:05"

// Config holds the runtime configuration for a fetch.
// This struct remains the "final, validated" config.
type Config struct {
	// Backend selection
	BackendName string
	Repo        string
	Tag         string
	Category    schema.Category
	SSLVerify   bool
	BaseURL     string

	// Output
	Output     schema.OutputMode
	OutputFile string
	Width      int
	UseColors  bool

	// Logging
	LogLevel  string
	LogPretty bool

	// Run ledger
	RunBackend   schema.DatabaseBackend
	RunDBConnect string

	// Item publishing
	KafkaBrokers []string
	KafkaTopic   string
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// --- Positional argument ---
	Repo string

	// --- Fields from rootCmd.PersistentFlags() ---
	Output       string `mapstructure:"output"`
	OutputFile   string `mapstructure:"output-file"`
	Width        int    `mapstructure:"width"`
	Color        string `mapstructure:"color"`
	LogLevel     string `mapstructure:"log-level"`
	LogPretty    bool   `mapstructure:"log-pretty"`
	RunBackend   string `mapstructure:"run-backend"`
	RunDBConnect string `mapstructure:"run-db-connect"`

	// --- Fields from backend command flags ---
	Tag          string `mapstructure:"tag"`
	Category     string `mapstructure:"category"`
	NoSSLVerify  bool   `mapstructure:"no-ssl-verify"`
	BaseURL      string `mapstructure:"base-url"`
	KafkaBrokers string `mapstructure:"kafka-brokers"`
	KafkaTopic   string `mapstructure:"kafka-topic"`
}

// Clone returns a deep copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	clone.KafkaBrokers = slices.Clone(c.KafkaBrokers)
	return &clone
}

// ProcessAndValidate performs all parsing and validation on the raw inputs
// and updates the final Config struct. Failures match ErrConfiguration.
func ProcessAndValidate(cfg *Config, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateRunBackend(cfg, input); err != nil {
		return err
	}
	if err := processKafka(cfg, input); err != nil {
		return err
	}
	return nil
}

// ValidateRepository checks that repo can be used as an origin path.
func ValidateRepository(repo string) error {
	if strings.TrimSpace(repo) == "" {
		return NewConfigurationError("repository is required")
	}
	if strings.IndexFunc(repo, unicode.IsSpace) >= 0 {
		return NewConfigurationError("repository %q must not contain whitespace", repo)
	}
	if strings.ContainsAny(repo, "?#") {
		return NewConfigurationError("repository %q must not contain '?' or '#'", repo)
	}
	if strings.HasPrefix(repo, "/") {
		return NewConfigurationError("repository %q must not start with '/'", repo)
	}
	return nil
}

// ValidateBaseURL checks that base is an absolute http(s) URL ending in '/'.
func ValidateBaseURL(base string) error {
	u, err := url.Parse(base)
	if err != nil {
		return NewConfigurationError("invalid base URL %q: %v", base, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewConfigurationError("base URL %q must use http or https", base)
	}
	if u.Host == "" {
		return NewConfigurationError("base URL %q has no host", base)
	}
	if !strings.HasSuffix(base, "/") {
		return NewConfigurationError("base URL %q must end with '/'", base)
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return NewConfigurationError("run-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return NewConfigurationError("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return NewConfigurationError("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return NewConfigurationError("run-db-connect is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return NewConfigurationError("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return NewConfigurationError("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateSimpleInputs processes and validates the fetch and output fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	// --- 0. Transfer simple non-validated fields from input -> cfg ---
	cfg.Repo = input.Repo
	cfg.Tag = input.Tag
	cfg.SSLVerify = !input.NoSSLVerify
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.LogPretty = input.LogPretty
	if cfg.BackendName == "" {
		cfg.BackendName = DefaultBackendName
	}

	// Parse color flag
	colorStr := input.Color
	if colorStr == "" {
		colorStr = "yes"
	}
	colors, err := ParseBoolString(colorStr)
	if err != nil {
		return NewConfigurationError("invalid --color value: %v", err)
	}
	cfg.UseColors = colors

	// --- 1. Category Validation ---
	cfg.Category = schema.Category(strings.ToLower(input.Category))
	if cfg.Category == "" {
		cfg.Category = schema.TestCoverageCategory
	}

	// --- 2. Base URL Validation ---
	cfg.BaseURL = input.BaseURL
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if err := ValidateBaseURL(cfg.BaseURL); err != nil {
		return err
	}

	// --- 3. Output Validation ---
	cfg.Output = schema.OutputMode(strings.ToLower(input.Output))
	if cfg.Output == "" {
		cfg.Output = schema.JSONOut
	}
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return NewConfigurationError("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}
	if cfg.Output == schema.ParquetOut && cfg.OutputFile == "" {
		return NewConfigurationError("--output-file is required for parquet output")
	}
	if cfg.Width < 0 {
		return NewConfigurationError("width must not be negative (received %d)", cfg.Width)
	}

	// --- 4. Log Level Validation ---
	cfg.LogLevel = strings.ToLower(input.LogLevel)
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return NewConfigurationError("invalid log level '%s'. must be debug, info, warn, error", input.LogLevel)
	}

	return nil
}

// validateRunBackend validates the run ledger backend configuration.
func validateRunBackend(cfg *Config, input *ConfigRawInput) error {
	cfg.RunBackend = schema.DatabaseBackend(strings.ToLower(input.RunBackend))
	if cfg.RunBackend == "" {
		cfg.RunBackend = schema.NoneBackend
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.RunBackend]; !ok {
		return NewConfigurationError("invalid run backend '%s'. must be sqlite, mysql, postgresql, none", input.RunBackend)
	}
	cfg.RunDBConnect = input.RunDBConnect
	return ValidateDatabaseConnectionString(cfg.RunBackend, cfg.RunDBConnect)
}

// processKafka splits the broker list and applies the topic default.
func processKafka(cfg *Config, input *ConfigRawInput) error {
	cfg.KafkaBrokers = SplitCommaList(input.KafkaBrokers)
	cfg.KafkaTopic = strings.TrimSpace(input.KafkaTopic)
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = DefaultKafkaTopic
	}
	if len(cfg.KafkaBrokers) > 0 && strings.ContainsAny(cfg.KafkaTopic, " /\\") {
		return NewConfigurationError("invalid kafka topic %q", cfg.KafkaTopic)
	}
	return nil
}

// DescribeConfig returns the parameters recorded with each fetch run.
func DescribeConfig(cfg *Config) map[string]any {
	return map[string]any{
		"backend":    cfg.BackendName,
		"repo":       cfg.Repo,
		"tag":        cfg.Tag,
		"category":   string(cfg.Category),
		"ssl_verify": cfg.SSLVerify,
		"base_url":   cfg.BaseURL,
		"output":     string(cfg.Output),
		"kafka":      fmt.Sprintf("%d broker(s)", len(cfg.KafkaBrokers)),
	}
}
