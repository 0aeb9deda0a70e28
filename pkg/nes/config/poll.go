package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/DJMcK/nes/pkg/nes"
)

// BuildScheduler wires every poll block onto a cron scheduler that
// issues the configured request through cl. The scheduler is returned
// stopped; call Start on it once the client is connected.
func (c *Config) BuildScheduler(cl nes.Client) (*cron.Cron, error) {
	cronParser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)

	cronObj := cron.New(
		cron.WithLogger(NewZapCronLogger(c.Logger)),
		cron.WithParser(cronParser),
	)

	for _, poll := range c.Polls {
		req, err := poll.request()
		if err != nil {
			return nil, err
		}

		name := poll.Name
		logger := c.Logger.With(zap.String("poll", name))

		if _, err := cronObj.AddFunc(poll.Schedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			resp, err := cl.Request(ctx, req)
			var statusErr *nes.StatusError
			switch {
			case errors.As(err, &statusErr):
				logger.Warn("Poll request rejected",
					zap.Int("status", statusErr.StatusCode),
					zap.String("message", statusErr.Message))
			case err != nil:
				logger.Error("Poll request failed", zap.Error(err))
			default:
				logger.Info("Poll request completed",
					zap.Int("status", resp.StatusCode),
					zap.Any("payload", resp.Payload))
			}
		}); err != nil {
			return nil, fmt.Errorf("invalid schedule %q for poll %q: %w", poll.Schedule, name, err)
		}
	}

	return cronObj, nil
}

// request translates a poll block into the nes request it issues.
func (p *PollConfig) request() (nes.Request, error) {
	req := nes.Request{
		Method: p.Method,
		Path:   p.Path,
	}

	if p.Payload != "" {
		var payload any
		if err := json.Unmarshal([]byte(p.Payload), &payload); err != nil {
			return nes.Request{}, fmt.Errorf("invalid payload for poll %q: %w", p.Name, err)
		}
		req.Payload = payload
	}

	return req, nil
}

/// ZapCronLogger

// ZapCronLogger adapts a zap.Logger to implement the cron.Logger interface
type ZapCronLogger struct {
	logger *zap.Logger
}

// NewZapCronLogger creates a new ZapCronLogger that wraps the given zap.Logger
func NewZapCronLogger(logger *zap.Logger) *ZapCronLogger {
	return &ZapCronLogger{logger: logger}
}

// Info logs informational messages about cron's operation using zap's Debug level
func (z *ZapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	// Convert keysAndValues to zap fields
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields = append(fields, zap.Any(key, keysAndValues[i+1]))
		}
	}
	z.logger.Debug(msg, fields...)
}

// Error logs error conditions using zap's Error level
func (z *ZapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	// Convert keysAndValues to zap fields and add the error
	fields := make([]zap.Field, 0, len(keysAndValues)/2+1)
	fields = append(fields, zap.Error(err))

	for i := 0; i < len(keysAndValues)-1; i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields = append(fields, zap.Any(key, keysAndValues[i+1]))
		}
	}
	z.logger.Error(msg, fields...)
}
