// Package config loads declarative HCL configuration for the nes CLI:
// a client block describing the connection and poll blocks describing
// requests to run on cron schedules.
package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"go.uber.org/zap"

	"github.com/DJMcK/nes/pkg/nes"
	"github.com/DJMcK/nes/pkg/nes/websockets/client"
)

// ClientConfig is the decoded client block.
type ClientConfig struct {
	URL         string            `hcl:"url"`
	Token       string            `hcl:"token,optional"`
	Reconnect   *bool             `hcl:"reconnect,optional"`
	Delay       string            `hcl:"delay,optional"`
	MaxDelay    string            `hcl:"max_delay,optional"`
	DialTimeout string            `hcl:"dial_timeout,optional"`
	Headers     map[string]string `hcl:"headers,optional"`
}

// PollConfig is a decoded poll block: one request issued on a cron
// schedule for as long as the poll command runs.
type PollConfig struct {
	Name     string `hcl:"name,label"`
	Schedule string `hcl:"schedule"`
	Method   string `hcl:"method,optional"`
	Path     string `hcl:"path"`
	Payload  string `hcl:"payload,optional"` // JSON text
}

type rootConfig struct {
	Client *ClientConfig `hcl:"client,block"`
	Polls  []*PollConfig `hcl:"poll,block"`
}

type Config struct {
	Logger *zap.Logger
	Client *ClientConfig
	Polls  []*PollConfig
}

type ConfigBuilder struct {
	logger  *zap.Logger
	sources []any
}

func NewConfig() *ConfigBuilder {
	return &ConfigBuilder{
		sources: make([]any, 0),
	}
}

func (cb *ConfigBuilder) WithLogger(logger *zap.Logger) *ConfigBuilder {
	cb.logger = logger
	return cb
}

func (cb *ConfigBuilder) WithSources(sources ...any) *ConfigBuilder {
	cb.sources = append(cb.sources, sources...)
	return cb
}

func (cb *ConfigBuilder) Build() (*Config, hcl.Diagnostics) {
	if cb.logger == nil {
		cb.logger = zap.NewNop()
	}

	bodies, diags := ParseConfigFiles(cb.sources...)
	if diags.HasErrors() {
		return nil, diags
	}

	root := rootConfig{}
	diags = diags.Extend(gohcl.DecodeBody(hcl.MergeBodies(bodies), nil, &root))
	if diags.HasErrors() {
		return nil, diags
	}

	if root.Client == nil {
		diags = diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Missing client block",
			Detail:   "The configuration must contain exactly one client block.",
		})
		return nil, diags
	}

	return &Config{
		Logger: cb.logger,
		Client: root.Client,
		Polls:  root.Polls,
	}, diags
}

// BuildClient translates the client block into a connected-ready client
// builder, applying the configured listener and monitor.
func (c *Config) BuildClient(listener nes.Listener, monitor nes.Monitor) (*client.Client, error) {
	builder := client.NewClient().
		WithURL(c.Client.URL).
		WithLogger(c.Logger).
		WithListener(listener).
		WithMonitor(monitor)

	if c.Client.Token != "" {
		builder = builder.WithToken(c.Client.Token)
	}
	if c.Client.Reconnect != nil {
		builder = builder.WithReconnect(*c.Client.Reconnect)
	}

	delay, err := optionalDuration(c.Client.Delay, "delay")
	if err != nil {
		return nil, err
	}
	if delay > 0 {
		builder = builder.WithReconnectDelay(delay)
	}

	maxDelay, err := optionalDuration(c.Client.MaxDelay, "max_delay")
	if err != nil {
		return nil, err
	}
	if maxDelay > 0 {
		builder = builder.WithMaxReconnectDelay(maxDelay)
	}

	dialTimeout, err := optionalDuration(c.Client.DialTimeout, "dial_timeout")
	if err != nil {
		return nil, err
	}
	if dialTimeout > 0 {
		builder = builder.WithDialTimeout(dialTimeout)
	}

	for key, value := range c.Client.Headers {
		builder = builder.WithHeader(key, value)
	}

	return builder.Build()
}

func optionalDuration(value, attribute string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", attribute, value, err)
	}
	return d, nil
}
