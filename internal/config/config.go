package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/label-extractor/internal/extract"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"

	// Storage backends
	StoreS3    = "s3"
	StoreLocal = "local"

	// Analysis backends
	AnalyzerTextract = "textract"
	AnalyzerLocal    = "local"

	// Default values
	DefaultBucket       = "vascculogic"
	DefaultPrefix       = "pdf/"
	DefaultOutput       = "extracted_fields.xlsx"
	DefaultRegion       = "us-east-1"
	DefaultOutputPrefix = "textract_analysis/output/"
	DefaultPollInterval = 5 * time.Second
	DefaultMaxWait      = 30 * time.Minute
	DefaultPort         = 8080
	DefaultHost         = "127.0.0.1"
	DefaultLogLevel     = "info"
	DefaultMaxFileSize  = 100 * 1024 * 1024 // 100MB

	// EnvPrefix prefixes every environment variable, e.g. LABEL_BUCKET.
	EnvPrefix = "LABEL"
)

// ErrVersionRequested is returned by Load when --version is among the args.
var ErrVersionRequested = errors.New("version requested")

// Config holds all configuration for the label extraction tools
type Config struct {
	// Source documents
	Bucket    string
	Prefix    string
	Region    string
	Store     string // "s3" or "local"
	LocalRoot string

	// Document analysis
	Analyzer             string // "textract" or "local"
	AnalysisMode         string // "sync", "async" or "auto"
	AnalysisOutputBucket string
	AnalysisOutputPrefix string
	PollInterval         time.Duration
	MaxWait              time.Duration

	// Extraction
	Output       string
	RulesFile    string
	SectionStart string
	SectionEnd   string

	// MCP server configuration
	Mode string // "server" or "stdio"
	Host string
	Port int

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes

	// Args holds the positional arguments left after flag parsing.
	Args []string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Bucket:               DefaultBucket,
		Prefix:               DefaultPrefix,
		Region:               DefaultRegion,
		Store:                StoreS3,
		LocalRoot:            ".",
		Analyzer:             AnalyzerTextract,
		AnalysisMode:         "sync",
		AnalysisOutputPrefix: DefaultOutputPrefix,
		PollInterval:         DefaultPollInterval,
		MaxWait:              DefaultMaxWait,
		Output:               DefaultOutput,
		SectionStart:         extract.DefaultSectionStart,
		SectionEnd:           extract.DefaultSectionEnd,
		Mode:                 ModeStdio,
		Host:                 DefaultHost,
		Port:                 DefaultPort,
		Version:              "1.0.0",
		ServerName:           "label-extractor",
		LogLevel:             DefaultLogLevel,
		MaxFileSize:          DefaultMaxFileSize,
	}
}

// Load parses args (without the program name) on top of the environment and
// the defaults. Flags take precedence over LABEL_* variables.
func Load(name string, args []string) (*Config, error) {
	cfg := DefaultConfig()

	if err := checkVersionFlag(args); err != nil {
		return nil, err
	}

	v := viper.New()
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	setupViperEnvironment(v, cfg)
	defineCommandLineFlags(fs, cfg)
	bindFlagsToViper(v, fs)
	setupUsageMessage(fs, name)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	populateConfigFromViper(v, cfg)
	cfg.Args = fs.Args()

	// Expand paths if needed
	if cfg.Store == StoreLocal && cfg.LocalRoot != "" {
		if expandedPath, err := filepath.Abs(cfg.LocalRoot); err == nil {
			cfg.LocalRoot = expandedPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// settings maps viper keys to their flag names. Keys double as the
// environment suffix: bucket is read from LABEL_BUCKET.
var settings = map[string]string{
	"bucket":                 "bucket",
	"prefix":                 "prefix",
	"region":                 "region",
	"store":                  "store",
	"local_root":             "local-root",
	"analyzer":               "analyzer",
	"analysis_mode":          "analysis-mode",
	"analysis_output_bucket": "analysis-output-bucket",
	"analysis_output_prefix": "analysis-output-prefix",
	"poll_interval":          "poll-interval",
	"max_wait":               "max-wait",
	"output":                 "output",
	"rules":                  "rules",
	"section_start":          "section-start",
	"section_end":            "section-end",
	"mode":                   "mode",
	"host":                   "host",
	"port":                   "port",
	"log_level":              "log-level",
	"max_file_size":          "max-file-size",
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("bucket", cfg.Bucket)
	v.SetDefault("prefix", cfg.Prefix)
	v.SetDefault("region", cfg.Region)
	v.SetDefault("store", cfg.Store)
	v.SetDefault("local_root", cfg.LocalRoot)
	v.SetDefault("analyzer", cfg.Analyzer)
	v.SetDefault("analysis_mode", cfg.AnalysisMode)
	v.SetDefault("analysis_output_bucket", cfg.AnalysisOutputBucket)
	v.SetDefault("analysis_output_prefix", cfg.AnalysisOutputPrefix)
	v.SetDefault("poll_interval", cfg.PollInterval)
	v.SetDefault("max_wait", cfg.MaxWait)
	v.SetDefault("output", cfg.Output)
	v.SetDefault("rules", cfg.RulesFile)
	v.SetDefault("section_start", cfg.SectionStart)
	v.SetDefault("section_end", cfg.SectionEnd)
	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("max_file_size", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String("bucket", cfg.Bucket, "Bucket holding the label PDFs")
	fs.String("prefix", cfg.Prefix, "Key prefix of the label PDFs")
	fs.String("region", cfg.Region, "AWS region")
	fs.String("store", cfg.Store, "Object store: 's3' or 'local' (a directory with one sub-directory per bucket)")
	fs.String("local-root", cfg.LocalRoot, "Root directory of the local object store")
	fs.String("analyzer", cfg.Analyzer, "Document analysis: 'textract' or 'local' (embedded text layer)")
	fs.String("analysis-mode", cfg.AnalysisMode, "Textract API: 'sync', 'async' or 'auto'")
	fs.String("analysis-output-bucket", cfg.AnalysisOutputBucket, "Bucket for async analysis results (empty: page through the API)")
	fs.String("analysis-output-prefix", cfg.AnalysisOutputPrefix, "Key prefix for async analysis results")
	fs.Duration("poll-interval", cfg.PollInterval, "Async job poll interval")
	fs.Duration("max-wait", cfg.MaxWait, "Maximum time to wait for an async job")
	fs.StringP("output", "o", cfg.Output, "Output file (.csv or .xlsx)")
	fs.String("rules", cfg.RulesFile, "YAML rule file (empty: built-in label rules)")
	fs.String("section-start", cfg.SectionStart, "Start marker of the studies section")
	fs.String("section-end", cfg.SectionEnd, "End marker of the studies section")
	fs.String("mode", cfg.Mode, "Server mode: 'stdio' for MCP standard I/O, 'server' for SSE over HTTP")
	fs.String("host", cfg.Host, "Server host address (server mode only)")
	fs.Int("port", cfg.Port, "Server port (server mode only)")
	fs.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.Int64("max-file-size", cfg.MaxFileSize, "Maximum PDF file size in bytes")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper(v *viper.Viper, fs *pflag.FlagSet) {
	for key, flag := range settings {
		_ = v.BindPFlag(key, fs.Lookup(flag))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage(fs *pflag.FlagSet, name string) {
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", name)
		fmt.Fprintf(os.Stderr, "\nLabel extractor - pull pharmaceutical label fields out of PDFs in object storage\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  Every option can be set as %s_<OPTION>, e.g. %s_BUCKET, %s_ANALYSIS_MODE.\n",
			EnvPrefix, EnvPrefix, EnvPrefix)
		fmt.Fprintf(os.Stderr, "  A .env file in the working directory is loaded first.\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag(args []string) error {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return ErrVersionRequested
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.Bucket = v.GetString("bucket")
	cfg.Prefix = v.GetString("prefix")
	cfg.Region = v.GetString("region")
	cfg.Store = strings.ToLower(v.GetString("store"))
	cfg.LocalRoot = v.GetString("local_root")
	cfg.Analyzer = strings.ToLower(v.GetString("analyzer"))
	cfg.AnalysisMode = strings.ToLower(v.GetString("analysis_mode"))
	cfg.AnalysisOutputBucket = v.GetString("analysis_output_bucket")
	cfg.AnalysisOutputPrefix = v.GetString("analysis_output_prefix")
	cfg.PollInterval = v.GetDuration("poll_interval")
	cfg.MaxWait = v.GetDuration("max_wait")
	cfg.Output = v.GetString("output")
	cfg.RulesFile = v.GetString("rules")
	cfg.SectionStart = v.GetString("section_start")
	cfg.SectionEnd = v.GetString("section_end")
	cfg.Mode = v.GetString("mode")
	cfg.Host = v.GetString("host")
	cfg.Port = v.GetInt("port")
	cfg.LogLevel = strings.ToLower(v.GetString("log_level"))
	cfg.MaxFileSize = v.GetInt64("max_file_size")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("bucket cannot be empty")
	}

	if c.Store != StoreS3 && c.Store != StoreLocal {
		return fmt.Errorf("store must be either '%s' or '%s'", StoreS3, StoreLocal)
	}
	if c.Store == StoreLocal && c.LocalRoot == "" {
		return errors.New("local root cannot be empty for the local store")
	}

	if c.Analyzer != AnalyzerTextract && c.Analyzer != AnalyzerLocal {
		return fmt.Errorf("analyzer must be either '%s' or '%s'", AnalyzerTextract, AnalyzerLocal)
	}
	switch c.AnalysisMode {
	case "sync", "async", "auto":
	default:
		return fmt.Errorf("invalid analysis mode: %s (must be one of: sync, async, auto)", c.AnalysisMode)
	}

	if c.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if c.MaxWait < c.PollInterval {
		return errors.New("max wait must be at least one poll interval")
	}

	switch strings.ToLower(filepath.Ext(c.Output)) {
	case ".csv", ".xlsx":
	default:
		return fmt.Errorf("output must end in .csv or .xlsx: %s", c.Output)
	}

	if strings.TrimSpace(c.SectionStart) == "" {
		return errors.New("section start marker cannot be empty")
	}

	// Validate mode
	if c.Mode != ModeStdio && c.Mode != ModeServer {
		return errors.New("mode must be either 'stdio' or 'server'")
	}

	// Validate port range (only for server mode)
	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// RuleSet returns the rule file when one is configured, otherwise the
// built-in label rules. The configured section markers apply to the
// built-in rules only; a rule file carries its own.
func (c *Config) RuleSet() (extract.RuleSet, error) {
	if c.RulesFile != "" {
		return extract.LoadRuleFile(c.RulesFile)
	}
	rs := extract.DefaultRuleSet()
	rs.Section = extract.SectionMarkers{Start: c.SectionStart, End: c.SectionEnd}
	return rs, nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Bucket: %s, Prefix: %s, Store: %s, Analyzer: %s/%s, Output: %s, Mode: %s, LogLevel: %s}",
		c.Bucket, c.Prefix, c.Store, c.Analyzer, c.AnalysisMode, c.Output, c.Mode, c.LogLevel)
}

// IsServerMode returns true if the server is running in HTTP server mode
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the server is running in stdio mode
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}
