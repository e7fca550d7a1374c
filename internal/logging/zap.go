package logging

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the process logger. Development mode switches to the
// human-readable console encoder.
func NewLogger(level string, development bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(parsed)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// ZapPublisher writes gameplay events through a zap logger so the event feed
// shows up in the process log stream alongside everything else.
type ZapPublisher struct {
	logger *zap.Logger
}

// NewZapPublisher wraps the provided logger. A nil logger yields a publisher
// that drops events.
func NewZapPublisher(logger *zap.Logger) *ZapPublisher {
	return &ZapPublisher{logger: logger}
}

// Publish implements Publisher.
func (p *ZapPublisher) Publish(_ context.Context, event Event) {
	if p == nil || p.logger == nil {
		return
	}
	fields := []zap.Field{
		zap.Uint64("tick", event.Tick),
		zap.String("actor", event.Actor.ID),
		zap.String("category", event.Category),
	}
	if len(event.Targets) > 0 {
		ids := make([]string, 0, len(event.Targets))
		for _, target := range event.Targets {
			ids = append(ids, target.ID)
		}
		fields = append(fields, zap.Strings("targets", ids))
	}
	if event.Payload != nil {
		fields = append(fields, zap.Any("payload", event.Payload))
	}
	msg := string(event.Type)
	switch event.Severity {
	case SeverityDebug:
		p.logger.Debug(msg, fields...)
	case SeverityWarn:
		p.logger.Warn(msg, fields...)
	case SeverityError:
		p.logger.Error(msg, fields...)
	default:
		p.logger.Info(msg, fields...)
	}
}

var _ Publisher = (*ZapPublisher)(nil)
