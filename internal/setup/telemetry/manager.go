package telemetry

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/robalyx/toxguard/internal/setup/config"
	"github.com/robalyx/toxguard/internal/setup/telemetry/logger"
	"github.com/robalyx/toxguard/internal/setup/telemetry/loki"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Component identifies the binary producing logs.
type Component string

const (
	ComponentBot Component = "bot"
	ComponentDB  Component = "db"
)

// sessionLayout is the directory name format of a log session.
const sessionLayout = "2006-01-02_15-04-05"

// Manager creates the loggers of one program run.
// Every run writes into its own timestamped session directory and old
// sessions beyond the configured limit are removed.
type Manager struct {
	lokiPusher        *loki.Pusher
	instanceID        string
	component         Component
	currentSessionDir string
	logDir            string
	level             string
	maxLogsToKeep     int
	maxLogLines       int
	tracing           bool
}

// NewManager creates a new Manager instance.
// Errors are additionally recorded on OpenTelemetry spans when tracing is set.
func NewManager(
	ctx context.Context, component Component, logDir string,
	debugCfg *config.Debug, lokiCfg *config.Loki, tracing bool,
) *Manager {
	instanceID := uuid.New().String()

	manager := &Manager{
		instanceID:    instanceID,
		component:     component,
		logDir:        logDir,
		level:         debugCfg.LogLevel,
		maxLogsToKeep: max(debugCfg.MaxLogsToKeep, 1),
		maxLogLines:   debugCfg.MaxLogLines,
		tracing:       tracing,
	}

	if lokiCfg.Enabled && lokiCfg.URL != "" {
		labels := make(map[string]string, len(lokiCfg.Labels)+2)
		maps.Copy(labels, lokiCfg.Labels)

		labels["component"] = string(component)
		labels["instance_id"] = instanceID

		lokiConfig := *lokiCfg
		lokiConfig.Labels = labels
		manager.lokiPusher = loki.NewPusher(ctx, lokiConfig)
	}

	return manager
}

// Stop flushes pending Loki batches.
func (lm *Manager) Stop() {
	if lm.lokiPusher != nil {
		lm.lokiPusher.Stop()
	}
}

// GetLoggers initializes the main and database loggers.
func (lm *Manager) GetLoggers() (*zap.Logger, *zap.Logger, error) {
	if err := lm.setupLogDirectories(); err != nil {
		return nil, nil, err
	}

	mainLogger, err := lm.initLogger(filepath.Join(lm.currentSessionDir, "main.log"), zapcore.InfoLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize main logger: %w", err)
	}

	dbLogger, err := lm.initLogger(filepath.Join(lm.currentSessionDir, "database.log"), zapcore.WarnLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database logger: %w", err)
	}

	return mainLogger.With(zap.String("instance", lm.instanceID)), dbLogger, nil
}

// GetInstanceID returns the unique identifier of this program run.
func (lm *Manager) GetInstanceID() string {
	return lm.instanceID
}

// GetCurrentSessionDir returns the session directory of this run.
func (lm *Manager) GetCurrentSessionDir() string {
	return lm.currentSessionDir
}

// setupLogDirectories rotates old sessions and creates the session directory of this run.
func (lm *Manager) setupLogDirectories() error {
	if err := os.MkdirAll(lm.logDir, 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	if err := lm.rotateLogSessions(); err != nil {
		return fmt.Errorf("failed to rotate log sessions: %w", err)
	}

	lm.currentSessionDir = filepath.Join(lm.logDir, time.Now().Format(sessionLayout))
	if err := os.MkdirAll(lm.currentSessionDir, 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	return nil
}

// initLogger creates a logger writing to a line capped file, Loki and tracing.
// lokiMinLevel raises the level forwarded to Loki above the file level.
func (lm *Manager) initLogger(path string, lokiMinLevel zapcore.Level) (*zap.Logger, error) {
	zapLevel, err := zapcore.ParseLevel(lm.level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("cannot open log file %s: %w", path, err)
	}

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(logger.NewLogRotator(file, lm.maxLogLines, path)),
			zapLevel,
		),
	}

	if lm.lokiPusher != nil {
		lokiLevel := max(lokiMinLevel, zapLevel)
		cores = append(cores, loki.NewCore(lokiLevel, lm.lokiPusher))
	}

	if lm.tracing {
		cores = append(cores, NewCore(zapcore.ErrorLevel))
	}

	return zap.New(
		zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

// rotateLogSessions removes the oldest sessions so that a new one fits within maxLogsToKeep.
func (lm *Manager) rotateLogSessions() error {
	entries, err := os.ReadDir(lm.logDir)
	if err != nil {
		return err
	}

	sessions := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		if _, err := time.Parse(sessionLayout, entry.Name()); err == nil {
			sessions = append(sessions, entry.Name())
		}
	}

	if len(sessions) < lm.maxLogsToKeep {
		return nil
	}

	// Session names sort chronologically
	slices.Sort(sessions)

	for _, name := range sessions[:len(sessions)-lm.maxLogsToKeep+1] {
		if err := os.RemoveAll(filepath.Join(lm.logDir, name)); err != nil {
			return err
		}
	}

	return nil
}
