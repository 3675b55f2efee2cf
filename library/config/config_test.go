package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoad(t *testing.T) {
	t.Setenv("LIBRARY_HTTP_PORT", "9090")
	t.Setenv("FINE_PER_DAY", "25")
	t.Setenv("LIBRARY_TZ", "UTC")
	t.Setenv("KAFKA_ADDRS", "k1:9092,k2:9092")

	cfg, err := Load(WithLogLevel(zapcore.DebugLevel), WithWriteTimeout(time.Minute))
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	require.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	require.Equal(t, time.Minute, cfg.Server.WriteTimeout)
	require.Equal(t, zapcore.DebugLevel, cfg.Log.LogLevel)
	require.Equal(t, 25, cfg.Ledger.FinePerDay)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Addrs)
	require.Empty(t, cfg.Ledger.RepairSchedule)

	loc, err := cfg.Ledger.Location()
	require.NoError(t, err)
	require.Equal(t, time.UTC, loc)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("fine rate", func(t *testing.T) {
		t.Setenv("FINE_PER_DAY", "0")
		_, err := Load()
		require.Error(t, err)
	})
	t.Run("time zone", func(t *testing.T) {
		t.Setenv("LIBRARY_TZ", "Mars/Olympus")
		_, err := Load()
		require.Error(t, err)
	})
}

func TestOptions(t *testing.T) {
	t.Setenv("AVAILABILITY_REPAIR_SCHEDULE", "@daily")
	cfg, err := Load(WithPort(""), WithRepairSchedule(""))
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, "@daily", cfg.Ledger.RepairSchedule)

	cfg, err = Load(WithPort("7000"), WithRepairSchedule("@hourly"))
	require.NoError(t, err)
	require.Equal(t, "7000", cfg.Server.Port)
	require.Equal(t, "@hourly", cfg.Ledger.RepairSchedule)
}
