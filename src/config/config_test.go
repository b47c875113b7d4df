package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("storage:\n  db_path: test.db\n"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.DBType)
	assert.Equal(t, 30, cfg.Scraper.ChunkDays)
	assert.Equal(t, 4, cfg.Scraper.ChunkWorkers)
	assert.Equal(t, 10*time.Second, cfg.WaitTimeout())
	assert.Equal(t, "E", cfg.Scraper.ExcludedPrefix)
	assert.True(t, *cfg.Scraper.PlaceholderOnEmpty)
	assert.True(t, *cfg.Pipeline.SkipZeroVolume)
	assert.Equal(t, 2014, cfg.Orchestrator.FromYear)
	assert.Equal(t, time.Now().Year(), cfg.Orchestrator.ToYear)
	assert.Equal(t, time.Date(2014, 1, 1, 0, 0, 0, 0, time.UTC), cfg.DefaultStart())
}

func TestParseKeepsExplicitFalse(t *testing.T) {
	cfg, err := Parse([]byte(`
storage:
  db_path: test.db
scraper:
  placeholder_on_empty: false
pipeline:
  skip_zero_volume: false
`))
	require.NoError(t, err)
	assert.False(t, *cfg.Scraper.PlaceholderOnEmpty)
	assert.False(t, *cfg.Pipeline.SkipZeroVolume)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"postgres without dsn": "storage:\n  db_type: postgres\n",
		"unknown db":           "storage:\n  db_type: mongo\n",
		"sqlite without path":  "storage:\n  db_type: sqlite\n",
		"bad port":             "port: 80\nstorage:\n  db_path: x.db\n",
		"bad from date":        "storage:\n  db_path: x.db\npipeline:\n  default_from_date: 01/01/2014\n",
		"bad refresh time":     "storage:\n  db_path: x.db\npipeline:\n  refresh_at: 25:00\n",
		"years inverted":       "storage:\n  db_path: x.db\norchestrator:\n  from_year: 2030\n  to_year: 2020\n",
		"negative sessions":    "storage:\n  db_path: x.db\nbrowser:\n  max_sessions: -1\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := Parse([]byte("name: roundtrip\nstorage:\n  db_path: test.db\n"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := NewConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "roundtrip", loaded.Name)
	assert.Equal(t, cfg.Scraper, loaded.Scraper)
}

func TestNewConfigMissingFile(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(unwrapAll(err)))
}

func unwrapAll(err error) error {
	for {
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		next := u.Unwrap()
		if next == nil {
			return err
		}
		err = next
	}
}
