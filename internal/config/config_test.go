package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_HasDocumentedWindowDefaults(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 600, cfg.Windows.EO.Start)
	require.NotNil(t, cfg.Windows.EO.End)
	assert.Equal(t, 659, *cfg.Windows.EO.End)
	assert.Equal(t, 2, cfg.Windows.EO.K)
	assert.Equal(t, 120, cfg.Windows.EO.Cap)

	assert.Nil(t, cfg.Windows.LP.End)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, Name: "cleanopt", User: "u", Password: "p", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 dbname=cleanopt user=u password=p sslmode=disable", d.DSN())
}

func TestLoadConfig_NoOverlayReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Phase1.MaxApts)
	assert.Empty(t, cfg.Fallbacks)
}

func TestLoadConfig_PartialOverlayRecordsFallbacks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "overlay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("phase1:\n  max_apts: 4\n  max_groups_total: 5000\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Phase1.MaxApts)
	assert.ElementsMatch(t, []string{"windows", "phase2", "phase3"}, cfg.Fallbacks)
}
