package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	os.Unsetenv("CLIENTFLOW_MONGO_URI")
	os.Unsetenv("CLIENTFLOW_MONGO_DB")

	cfg := LoadConfig()

	assert.Equal(t, "mongodb://localhost:27017", cfg.Storage.Mongo.URI)
	assert.Equal(t, "clientflow", cfg.Storage.Mongo.DatabaseName)
	assert.Equal(t, 8, cfg.Workflow.MaxChainDepth)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 90*24*time.Hour, cfg.Scheduler.AnalyticsRetention)
	assert.Equal(t, []int{2, 5, 10}, cfg.Scheduler.ApprovalReminderOffsets)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadConfig_EnvVars(t *testing.T) {
	os.Setenv("CLIENTFLOW_MONGO_URI", "mongodb://test:27017")
	os.Setenv("CLIENTFLOW_MONGO_DB", "testdb")
	defer func() {
		os.Unsetenv("CLIENTFLOW_MONGO_URI")
		os.Unsetenv("CLIENTFLOW_MONGO_DB")
	}()

	cfg := LoadConfig()

	assert.Equal(t, "mongodb://test:27017", cfg.Storage.Mongo.URI)
	assert.Equal(t, "testdb", cfg.Storage.Mongo.DatabaseName)
}

func TestLoadConfig_File(t *testing.T) {
	require.NoError(t, os.Mkdir("config", 0755))
	defer os.RemoveAll("config")

	yml := `
workflow:
  max_chain_depth: 3
scheduler:
  overdue_check:
    enabled: false
storage:
  mongo:
    database_name: fromfile
`
	require.NoError(t, os.WriteFile("config/config.yml", []byte(yml), 0644))

	cfg := LoadConfig()

	assert.Equal(t, 3, cfg.Workflow.MaxChainDepth)
	assert.False(t, cfg.Scheduler.OverdueCheck.Enabled)
	assert.Equal(t, "fromfile", cfg.Storage.Mongo.DatabaseName)
	// Untouched sections keep their defaults.
	assert.Equal(t, "mongodb://localhost:27017", cfg.Storage.Mongo.URI)
}

func TestLoadConfig_LocalOverridesBase(t *testing.T) {
	require.NoError(t, os.Mkdir("config", 0755))
	defer os.RemoveAll("config")

	require.NoError(t, os.WriteFile("config/config.yml",
		[]byte("storage:\n  mongo:\n    database_name: base\n"), 0644))
	require.NoError(t, os.WriteFile("config/config.local.yml",
		[]byte("storage:\n  mongo:\n    database_name: local\n"), 0644))

	cfg := LoadConfig()
	assert.Equal(t, "local", cfg.Storage.Mongo.DatabaseName)
}

func TestLoadConfig_MalformedFileKeepsDefaults(t *testing.T) {
	require.NoError(t, os.Mkdir("config", 0755))
	defer os.RemoveAll("config")

	require.NoError(t, os.WriteFile("config/config.yml", []byte("not: [valid"), 0644))

	cfg := LoadConfig()
	assert.Equal(t, "clientflow", cfg.Storage.Mongo.DatabaseName)
}
