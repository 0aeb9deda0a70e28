package nes

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Listener receives the client's out-of-band events: the connect
// notification, broadcasts, and errors that are not tied to a specific
// pending request.
type Listener interface {
	OnConnect(ctx context.Context) error
	OnBroadcast(ctx context.Context, message any) error
	OnError(ctx context.Context, err error)
}

// Monitor receives client lifecycle events. All methods are optional
// no-ops in BaseMonitor; embed it and override what you need.
type Monitor interface {
	OnConnect(ctx context.Context, client Client)
	OnDisconnect(ctx context.Context, client Client, err error)
	OnReconnect(ctx context.Context, client Client, attempt int)
}

type BaseListener struct {
}

func (b *BaseListener) OnConnect(ctx context.Context) error {
	return nil
}

func (b *BaseListener) OnBroadcast(ctx context.Context, message any) error {
	return nil
}

func (b *BaseListener) OnError(ctx context.Context, err error) {
}

type BaseMonitor struct {
}

func (b *BaseMonitor) OnConnect(ctx context.Context, client Client) {
}

func (b *BaseMonitor) OnDisconnect(ctx context.Context, client Client, err error) {
}

func (b *BaseMonitor) OnReconnect(ctx context.Context, client Client, attempt int) {
}

// LoggingListener is a BaseListener that logs all method calls for debugging and demonstration
type LoggingListener struct {
	BaseListener
	logger   *zap.Logger
	logLevel zapcore.Level
	name     string // Optional name for identification in logs
}

// NewLoggingListener creates a new LoggingListener with the specified logger and log level
func NewLoggingListener(logger *zap.Logger, logLevel zapcore.Level) *LoggingListener {
	return &LoggingListener{
		logger:   logger,
		logLevel: logLevel,
		name:     "LoggingListener",
	}
}

// NewNamedLoggingListener creates a new LoggingListener with a custom name for identification
func NewNamedLoggingListener(logger *zap.Logger, logLevel zapcore.Level, name string) *LoggingListener {
	return &LoggingListener{
		logger:   logger,
		logLevel: logLevel,
		name:     name,
	}
}

// OnConnect logs connection notifications
func (l *LoggingListener) OnConnect(ctx context.Context) error {
	l.logger.Log(l.logLevel, "OnConnect called",
		zap.String("listener", l.name),
	)

	return l.BaseListener.OnConnect(ctx)
}

// OnBroadcast logs broadcast reception with full details
func (l *LoggingListener) OnBroadcast(ctx context.Context, message any) error {
	// Convert message to string for logging (handle various types safely)
	var messageStr string
	switch v := message.(type) {
	case string:
		messageStr = v
	case []byte:
		messageStr = string(v)
	case nil:
		messageStr = "<nil>"
	default:
		messageStr = fmt.Sprintf("%v", v)
	}

	l.logger.Log(l.logLevel, "OnBroadcast called",
		zap.String("listener", l.name),
		zap.String("message", messageStr),
	)

	return l.BaseListener.OnBroadcast(ctx, message)
}

// OnError logs errors reported through the general error hook
func (l *LoggingListener) OnError(ctx context.Context, err error) {
	l.logger.Log(l.logLevel, "OnError called",
		zap.String("listener", l.name),
		zap.Error(err),
	)

	l.BaseListener.OnError(ctx, err)
}
