package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zapcore"
)

// Core implements zapcore.Core to record error logs as OpenTelemetry spans.
type Core struct {
	zapcore.LevelEnabler

	tracer trace.Tracer
	fields []zapcore.Field
}

// NewCore creates a new core that forwards logs to OpenTelemetry.
func NewCore(enab zapcore.LevelEnabler) *Core {
	return &Core{
		LevelEnabler: enab,
		tracer:       otel.Tracer("github.com/robalyx/toxguard/logs"),
	}
}

// With returns a core that adds fields to every span.
func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	return &Core{
		LevelEnabler: c.LevelEnabler,
		tracer:       c.tracer,
		fields:       append(c.fields[:len(c.fields):len(c.fields)], fields...),
	}
}

// Check determines whether the supplied Entry should be recorded.
func (c *Core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

// Write records the entry as a span with an error status.
func (c *Core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	_, span := c.tracer.Start(context.Background(), "error."+ErrorCategory(ent),
		trace.WithTimestamp(ent.Time))
	defer span.End()

	span.SetStatus(codes.Error, ent.Message)
	span.SetAttributes(SpanAttributes(ent, append(c.fields, fields...))...)

	return nil
}

// Sync is a no-op as spans are exported by the tracer provider.
func (c *Core) Sync() error {
	return nil
}

// SpanAttributes converts a log entry and its fields to span attributes.
func SpanAttributes(ent zapcore.Entry, fields []zapcore.Field) []attribute.KeyValue {
	enc := zapcore.NewMapObjectEncoder()
	for i := range fields {
		fields[i].AddTo(enc)
	}

	attrs := make([]attribute.KeyValue, 0, len(enc.Fields)+3)
	attrs = append(attrs,
		attribute.String("log.message", ent.Message),
		attribute.String("log.level", ent.Level.String()),
		attribute.String("log.caller", ent.Caller.TrimmedPath()),
	)

	for key, value := range enc.Fields {
		switch v := value.(type) {
		case string:
			attrs = append(attrs, attribute.String(key, v))
		case bool:
			attrs = append(attrs, attribute.Bool(key, v))
		case int64:
			attrs = append(attrs, attribute.Int64(key, v))
		case float64:
			attrs = append(attrs, attribute.Float64(key, v))
		default:
			attrs = append(attrs, attribute.String(key, fmt.Sprint(v)))
		}
	}

	return attrs
}

// ErrorCategory groups an entry by the package that logged it.
func ErrorCategory(ent zapcore.Entry) string {
	switch fn := ent.Caller.Function; {
	case strings.Contains(fn, "/internal/moderation"):
		return "moderation"
	case strings.Contains(fn, "/internal/database"):
		return "database"
	case strings.Contains(fn, "/internal/redis"):
		return "redis"
	case strings.Contains(fn, "/internal/ai"):
		return "classifier"
	case strings.Contains(fn, "/internal/discord"), strings.Contains(fn, "/internal/bot"):
		return "discord"
	case strings.Contains(fn, "/internal/setup"):
		return "setup"
	default:
		return "application"
	}
}
