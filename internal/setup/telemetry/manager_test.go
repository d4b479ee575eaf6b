package telemetry_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/robalyx/toxguard/internal/setup/config"
	"github.com/robalyx/toxguard/internal/setup/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestManagerRotatesSessions(t *testing.T) {
	t.Parallel()

	logDir := t.TempDir()
	for _, name := range []string{"2024-01-01_00-00-00", "2024-01-02_00-00-00", "2024-01-03_00-00-00"} {
		require.NoError(t, os.Mkdir(filepath.Join(logDir, name), 0o755))
	}
	require.NoError(t, os.Mkdir(filepath.Join(logDir, "keep-me"), 0o755))

	manager := telemetry.NewManager(t.Context(), telemetry.ComponentBot, logDir,
		&config.Debug{LogLevel: "info", MaxLogsToKeep: 2, MaxLogLines: 100}, &config.Loki{}, false)
	t.Cleanup(manager.Stop)

	mainLogger, dbLogger, err := manager.GetLoggers()
	require.NoError(t, err)

	mainLogger.Info("started")
	require.NoError(t, mainLogger.Sync())
	require.NoError(t, dbLogger.Sync())

	entries, err := os.ReadDir(logDir)
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}

	session := filepath.Base(manager.GetCurrentSessionDir())
	assert.ElementsMatch(t, []string{"2024-01-03_00-00-00", "keep-me", session}, names)

	assert.FileExists(t, filepath.Join(manager.GetCurrentSessionDir(), "main.log"))
	assert.FileExists(t, filepath.Join(manager.GetCurrentSessionDir(), "database.log"))
	assert.NotEmpty(t, manager.GetInstanceID())
}

func TestManagerInvalidLevel(t *testing.T) {
	t.Parallel()

	manager := telemetry.NewManager(t.Context(), telemetry.ComponentDB, t.TempDir(),
		&config.Debug{LogLevel: "loud", MaxLogsToKeep: 1, MaxLogLines: 100}, &config.Loki{}, false)

	_, _, err := manager.GetLoggers()
	require.Error(t, err)
}

func TestErrorCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		function string
		want     string
	}{
		{"github.com/robalyx/toxguard/internal/moderation.(*Engine).alert", "moderation"},
		{"github.com/robalyx/toxguard/internal/database/models.(*OffenseModel).RecordOffense", "database"},
		{"github.com/robalyx/toxguard/internal/ai.(*ToxicityClassifier).Classify", "classifier"},
		{"github.com/robalyx/toxguard/internal/bot.(*Bot).moderate", "discord"},
		{"main.main", "application"},
	}

	for _, tt := range tests {
		ent := zapcore.Entry{Caller: zapcore.EntryCaller{Defined: true, Function: tt.function}}
		assert.Equal(t, tt.want, telemetry.ErrorCategory(ent), tt.function)
	}
}

func TestSpanAttributes(t *testing.T) {
	t.Parallel()

	attrs := telemetry.SpanAttributes(zapcore.Entry{Message: "boom", Level: zapcore.ErrorLevel}, []zapcore.Field{
		zap.String("op", "record offense"),
		zap.Int("strikes", 3),
		zap.Bool("enforced", false),
	})

	values := make(map[string]any, len(attrs))
	for _, attr := range attrs {
		values[string(attr.Key)] = attr.Value.AsInterface()
	}

	assert.Equal(t, "boom", values["log.message"])
	assert.Equal(t, "error", values["log.level"])
	assert.Equal(t, "record offense", values["op"])
	assert.Equal(t, int64(3), values["strikes"])
	assert.Equal(t, false, values["enforced"])
}
