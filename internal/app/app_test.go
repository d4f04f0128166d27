package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/label-extractor/internal/analysis"
	"github.com/a3tai/label-extractor/internal/config"
	"github.com/a3tai/label-extractor/internal/storage"
)

func localConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Store = config.StoreLocal
	cfg.LocalRoot = t.TempDir()
	cfg.Analyzer = config.AnalyzerLocal
	cfg.Output = filepath.Join(t.TempDir(), "out.csv")
	return cfg
}

func TestBuildLocal(t *testing.T) {
	cfg := localConfig(t)

	c, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, c.AWS, "no AWS configuration for local collaborators")
	assert.IsType(t, &storage.LocalStore{}, c.Store)
	assert.IsType(t, &analysis.LocalAnalyzer{}, c.Analyzer)
	assert.Equal(t, cfg.Bucket, c.Pipeline.Bucket())
	assert.Equal(t, c.Extractor, c.Pipeline.Extractor())
}

func TestBuildRuleFile(t *testing.T) {
	cfg := localConfig(t)
	cfg.RulesFile = filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(cfg.RulesFile, []byte(`
rules:
  - field: Compound
    scope: document
    pattern: 'compound\s*:\s*(.+)'
    extract: capture
`), 0o600))

	c, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"PDF Key", "Compound"}, []string(c.Extractor.Schema()))

	cfg.RulesFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = Build(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNewStoreAndAnalyzerNeedAWS(t *testing.T) {
	cfg := config.DefaultConfig()

	_, err := NewStore(cfg, nil)
	assert.Error(t, err)

	_, err = NewAnalyzer(cfg, nil, nil, nil)
	assert.Error(t, err)

	cfg.Store = "ftp"
	_, err = NewStore(cfg, nil)
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, LoadEnv(filepath.Join(dir, "absent.env")))

	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("LABEL_TEST_FROM_DOTENV=yes\n"), 0o600))
	t.Setenv("LABEL_TEST_FROM_DOTENV", "")
	require.NoError(t, os.Unsetenv("LABEL_TEST_FROM_DOTENV"))
	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "yes", os.Getenv("LABEL_TEST_FROM_DOTENV"))
}
