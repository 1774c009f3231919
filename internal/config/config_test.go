package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestReadDefaults(t *testing.T) {
	cfg := Read(viper.New())

	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, "inventory", cfg.Database.DBName)
	require.Equal(t, 1, cfg.App.ImportWorkers)
	require.False(t, cfg.Cache.Enabled)
	require.Equal(t, 300, cfg.Cache.RecommendationTTLSeconds)
	require.Equal(t, "5 0 * * *", cfg.Jobs.SnapshotCron)
	require.Equal(t, "host=localhost port=5432 user=postgres password=postgres dbname=inventory sslmode=disable", cfg.Database.DSN())
}

func TestReadOverrides(t *testing.T) {
	v := viper.New()
	v.Set("DATABASE_URL", "postgres://inv:secret@db:5432/inv?sslmode=require")
	v.Set("IMPORT_WORKERS", 4)
	v.Set("CACHE_ENABLED", true)

	cfg := Read(v)

	require.Equal(t, "postgres://inv:secret@db:5432/inv?sslmode=require", cfg.Database.DSN())
	require.Equal(t, 4, cfg.App.ImportWorkers)
	require.True(t, cfg.Cache.Enabled)
}

func TestReadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("JOBS_ALERTS_CRON", "*/15 * * * *")

	v := viper.New()
	v.AutomaticEnv()
	cfg := Read(v)

	require.Equal(t, "9090", cfg.Server.Port)
	require.Equal(t, "*/15 * * * *", cfg.Jobs.AlertsCron)
}
