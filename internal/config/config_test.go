package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
site:
  title: My Docs
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "My Docs", cfg.Site.Title)
	assert.Equal(t, "/", cfg.Site.BaseURL)
	assert.Equal(t, "./docs", cfg.Source.ContentDir)
	assert.Equal(t, 300*time.Millisecond, cfg.Source.Debounce.Std())
}

func TestLoadParsesDurationString(t *testing.T) {
	path := writeConfig(t, `
source:
  debounce: 2s
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Source.Debounce.Std())
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `
source:
  debounce: soon
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfig))
}

func TestValidateRejectsEmptyContentDir(t *testing.T) {
	path := writeConfig(t, `
source:
  content_dir: ""
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestValidateNotifyRequiresURL(t *testing.T) {
	path := writeConfig(t, `
notify:
  enabled: true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestSiteRecord(t *testing.T) {
	cfg := Default()
	rec := cfg.SiteRecord()
	assert.Equal(t, "Documentation", rec["title"])
	assert.Equal(t, "/", rec["baseUrl"])
}
