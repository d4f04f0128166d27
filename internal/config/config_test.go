package config

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/label-extractor/internal/extract"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "vascculogic", cfg.Bucket)
	assert.Equal(t, "pdf/", cfg.Prefix)
	assert.Equal(t, "extracted_fields.xlsx", cfg.Output)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, StoreS3, cfg.Store)
	assert.Equal(t, AnalyzerTextract, cfg.Analyzer)
	assert.Equal(t, "sync", cfg.AnalysisMode)
	assert.Equal(t, "textract_analysis/output/", cfg.AnalysisOutputPrefix)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 30*time.Minute, cfg.MaxWait)
	assert.Equal(t, extract.DefaultSectionStart, cfg.SectionStart)
	assert.Equal(t, extract.DefaultSectionEnd, cfg.SectionEnd)
	assert.Equal(t, ModeStdio, cfg.Mode)
	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, int64(100*1024*1024), cfg.MaxFileSize)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"empty bucket", func(c *Config) { c.Bucket = "" }, "bucket cannot be empty"},
		{"unknown store", func(c *Config) { c.Store = "gcs" }, "store must be either"},
		{"local store without root", func(c *Config) { c.Store = StoreLocal; c.LocalRoot = "" }, "local root cannot be empty"},
		{"unknown analyzer", func(c *Config) { c.Analyzer = "ocr" }, "analyzer must be either"},
		{"unknown analysis mode", func(c *Config) { c.AnalysisMode = "batch" }, "invalid analysis mode"},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }, "poll interval must be positive"},
		{"max wait below interval", func(c *Config) { c.MaxWait = time.Second }, "max wait must be at least"},
		{"json output", func(c *Config) { c.Output = "out.json" }, "output must end in .csv or .xlsx"},
		{"csv output", func(c *Config) { c.Output = "OUT.CSV" }, ""},
		{"blank section start", func(c *Config) { c.SectionStart = "  " }, "section start marker cannot be empty"},
		{"invalid mode", func(c *Config) { c.Mode = "grpc" }, "mode must be either"},
		{"server port too high", func(c *Config) { c.Mode = ModeServer; c.Port = 70000 }, "port must be between"},
		{"stdio ignores port", func(c *Config) { c.Port = 0 }, ""},
		{"zero file size", func(c *Config) { c.MaxFileSize = 0 }, "maximum file size must be positive"},
		{"invalid log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigHelpers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "0.0.0.0"
	cfg.Port = 9000

	assert.Equal(t, "0.0.0.0:9000", cfg.Address())
	assert.True(t, cfg.IsStdioMode())
	assert.False(t, cfg.IsServerMode())
	assert.False(t, cfg.IsDebug())

	cfg.Mode = ModeServer
	cfg.LogLevel = "debug"
	assert.True(t, cfg.IsServerMode())
	assert.True(t, cfg.IsDebug())
	assert.Contains(t, cfg.String(), "Bucket: vascculogic")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("label-extract", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultBucket, cfg.Bucket)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Empty(t, cfg.Args)
}

func TestLoadFlags(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load("label-extract", []string{
		"--bucket", "labels",
		"--prefix", "incoming/",
		"--store", "local",
		"--local-root", root,
		"--analyzer", "local",
		"--analysis-mode", "auto",
		"--poll-interval", "2s",
		"--max-wait", "1m",
		"-o", "out.csv",
		"--section-start", "14 CLINICAL STUDIES",
		"--log-level", "DEBUG",
		"pdf/a.pdf",
	})
	require.NoError(t, err)

	assert.Equal(t, "labels", cfg.Bucket)
	assert.Equal(t, "incoming/", cfg.Prefix)
	assert.Equal(t, StoreLocal, cfg.Store)
	assert.Equal(t, root, cfg.LocalRoot)
	assert.Equal(t, AnalyzerLocal, cfg.Analyzer)
	assert.Equal(t, "auto", cfg.AnalysisMode)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, time.Minute, cfg.MaxWait)
	assert.Equal(t, "out.csv", cfg.Output)
	assert.Equal(t, "14 CLINICAL STUDIES", cfg.SectionStart)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"pdf/a.pdf"}, cfg.Args)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("LABEL_BUCKET", "from-env")
	t.Setenv("LABEL_OUTPUT", "env.csv")
	t.Setenv("LABEL_ANALYSIS_OUTPUT_BUCKET", "results")
	t.Setenv("LABEL_MAX_WAIT", "10m")
	t.Setenv("LABEL_PORT", "9090")

	cfg, err := Load("label-extract", nil)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Bucket)
	assert.Equal(t, "env.csv", cfg.Output)
	assert.Equal(t, "results", cfg.AnalysisOutputBucket)
	assert.Equal(t, 10*time.Minute, cfg.MaxWait)
	assert.Equal(t, 9090, cfg.Port)

	// flags win over the environment
	cfg, err = Load("label-extract", []string{"--bucket", "from-flag"})
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Bucket)
	assert.Equal(t, "env.csv", cfg.Output)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("label-extract", []string{"--version"})
	assert.ErrorIs(t, err, ErrVersionRequested)

	_, err = Load("label-extract", []string{"--help"})
	assert.True(t, errors.Is(err, pflag.ErrHelp))

	_, err = Load("label-extract", []string{"--no-such-flag"})
	assert.Error(t, err)

	_, err = Load("label-extract", []string{"--output", "out.txt"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRuleSet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SectionStart = "14 CLINICAL STUDIES"
	cfg.SectionEnd = ""

	rs, err := cfg.RuleSet()
	require.NoError(t, err)
	assert.Equal(t, extract.SectionMarkers{Start: "14 CLINICAL STUDIES"}, rs.Section)
	assert.Len(t, rs.Rules, len(extract.DefaultRules()))

	cfg.RulesFile = "does-not-exist.yaml"
	_, err = cfg.RuleSet()
	assert.Error(t, err)
}
