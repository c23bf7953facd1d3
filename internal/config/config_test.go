package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metacat/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FileBackend(t *testing.T) {
	path := writeConfig(t, `
[raw_metadata]
directory = "metadata"
file_type = ".json"

[database]
type = "tinydb"
location = "db.json"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.BackendFile, cfg.Database.Type)
	// Relative paths resolve against the config directory.
	assert.True(t, filepath.IsAbs(cfg.SourceDir()))
	assert.Equal(t, "metadata", filepath.Base(cfg.SourceDir()))
	assert.Equal(t, filepath.Dir(path), filepath.Dir(cfg.StorePath()))
	assert.Equal(t, 1, cfg.Build.Workers)
}

func TestLoad_MongoDefaults(t *testing.T) {
	path := writeConfig(t, `
[raw_metadata]
directory = "/data"
file_type = ".odml"

[database]
type = "mongodb"
address = "localhost"
db_name = "meta"
collection_name = "sessions"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 27017, cfg.Database.Port)
	assert.Equal(t, 500, cfg.Build.WatchDebounce)
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name, content, wantErr string
	}{
		{
			"missing directory",
			"[raw_metadata]\nfile_type = \".json\"\n[database]\ntype = \"tinydb\"\nlocation = \"x\"",
			"directory is required",
		},
		{
			"unknown file type",
			"[raw_metadata]\ndirectory = \"/d\"\nfile_type = \".yaml\"\n[database]\ntype = \"tinydb\"\nlocation = \"x\"",
			"not one of",
		},
		{
			"unknown backend",
			"[raw_metadata]\ndirectory = \"/d\"\nfile_type = \".json\"\n[database]\ntype = \"couch\"",
			"unknown type",
		},
		{
			"file backend without location",
			"[raw_metadata]\ndirectory = \"/d\"\nfile_type = \".json\"\n[database]\ntype = \"tinydb\"",
			"location is required",
		},
		{
			"mongo without db name",
			"[raw_metadata]\ndirectory = \"/d\"\nfile_type = \".json\"\n[database]\ntype = \"mongodb\"\naddress = \"h\"",
			"db_name and collection_name",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, c.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
