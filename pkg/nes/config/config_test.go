package config

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DJMcK/nes/pkg/nes"
)

const fullConfig = `
client {
    url          = "ws://localhost:8080/ws"
    token        = "secret"
    reconnect    = true
    delay        = "2s"
    max_delay    = "30s"
    dial_timeout = "5s"

    headers = {
        "X-API-Key" = "key123"
    }
}

poll "channels" {
    schedule = "@every 1m"
    path     = "/chat/channels"
}

poll "presence" {
    schedule = "0 * * * * *"
    method   = "POST"
    path     = "/presence/ping"
    payload  = "{\"status\": \"online\"}"
}
`

func TestConfigBuild(t *testing.T) {
	t.Run("full configuration parses", func(t *testing.T) {
		cfg, diags := NewConfig().
			WithSources([]byte(fullConfig)).
			Build()
		require.False(t, diags.HasErrors(), diags.Error())

		require.NotNil(t, cfg.Client)
		assert.Equal(t, "ws://localhost:8080/ws", cfg.Client.URL)
		assert.Equal(t, "secret", cfg.Client.Token)
		require.NotNil(t, cfg.Client.Reconnect)
		assert.True(t, *cfg.Client.Reconnect)
		assert.Equal(t, "2s", cfg.Client.Delay)
		assert.Equal(t, map[string]string{"X-API-Key": "key123"}, cfg.Client.Headers)

		require.Len(t, cfg.Polls, 2)
		assert.Equal(t, "channels", cfg.Polls[0].Name)
		assert.Equal(t, "@every 1m", cfg.Polls[0].Schedule)
		assert.Equal(t, "presence", cfg.Polls[1].Name)
		assert.Equal(t, "POST", cfg.Polls[1].Method)
	})

	t.Run("minimal configuration parses", func(t *testing.T) {
		cfg, diags := NewConfig().
			WithSources([]byte(`client { url = "ws://localhost:8080/ws" }`)).
			Build()
		require.False(t, diags.HasErrors(), diags.Error())

		assert.Equal(t, "ws://localhost:8080/ws", cfg.Client.URL)
		assert.Empty(t, cfg.Client.Token)
		assert.Nil(t, cfg.Client.Reconnect)
		assert.Empty(t, cfg.Polls)
	})

	t.Run("missing client block is an error", func(t *testing.T) {
		_, diags := NewConfig().
			WithSources([]byte(`poll "p" {
    schedule = "@hourly"
    path     = "/x"
}`)).
			Build()
		require.True(t, diags.HasErrors())
		assert.Contains(t, diags.Error(), "Missing client block")
	})

	t.Run("malformed HCL is an error", func(t *testing.T) {
		_, diags := NewConfig().
			WithSources([]byte(`client {`)).
			Build()
		assert.True(t, diags.HasErrors())
	})

	t.Run("multiple sources merge", func(t *testing.T) {
		cfg, diags := NewConfig().
			WithSources(
				[]byte(`client { url = "ws://localhost:8080/ws" }`),
				[]byte(`poll "extra" {
    schedule = "@daily"
    path     = "/daily"
}`),
			).
			Build()
		require.False(t, diags.HasErrors(), diags.Error())
		require.Len(t, cfg.Polls, 1)
		assert.Equal(t, "extra", cfg.Polls[0].Name)
	})
}

func TestBuildClient(t *testing.T) {
	build := func(t *testing.T, src string) *Config {
		cfg, diags := NewConfig().WithSources([]byte(src)).Build()
		require.False(t, diags.HasErrors(), diags.Error())
		return cfg
	}

	t.Run("translates the client block", func(t *testing.T) {
		cfg := build(t, fullConfig)

		cl, err := cfg.BuildClient(&nes.BaseListener{}, nil)
		require.NoError(t, err)
		assert.NotNil(t, cl)
	})

	t.Run("invalid duration is an error", func(t *testing.T) {
		cfg := build(t, `client {
            url   = "ws://localhost:8080/ws"
            delay = "soon"
        }`)

		_, err := cfg.BuildClient(&nes.BaseListener{}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `invalid delay "soon"`)
	})
}

func TestBuildScheduler(t *testing.T) {
	build := func(t *testing.T, src string) *Config {
		cfg, diags := NewConfig().WithSources([]byte(src)).Build()
		require.False(t, diags.HasErrors(), diags.Error())
		return cfg
	}

	t.Run("valid polls produce a scheduler", func(t *testing.T) {
		cfg := build(t, fullConfig)

		scheduler, err := cfg.BuildScheduler(&stubClient{})
		require.NoError(t, err)
		require.NotNil(t, scheduler)
		assert.Len(t, scheduler.Entries(), 2)
	})

	t.Run("invalid schedule is an error", func(t *testing.T) {
		cfg := build(t, `client { url = "ws://localhost:8080/ws" }

poll "broken" {
    schedule = "often"
    path     = "/x"
}`)

		_, err := cfg.BuildScheduler(&stubClient{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `invalid schedule "often" for poll "broken"`)
	})

	t.Run("invalid poll payload is an error", func(t *testing.T) {
		cfg := build(t, `client { url = "ws://localhost:8080/ws" }

poll "bad-payload" {
    schedule = "@hourly"
    path     = "/x"
    payload  = "{not json"
}`)

		_, err := cfg.BuildScheduler(&stubClient{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `invalid payload for poll "bad-payload"`)
	})

	t.Run("scheduled poll issues the configured request", func(t *testing.T) {
		cfg := build(t, `client { url = "ws://localhost:8080/ws" }

poll "every-second" {
    schedule = "@every 1s"
    method   = "POST"
    path     = "/presence/ping"
    payload  = "{\"status\": \"online\"}"
}`)

		stub := &stubClient{}
		scheduler, err := cfg.BuildScheduler(stub)
		require.NoError(t, err)

		scheduler.Start()
		defer scheduler.Stop()

		deadline := time.Now().Add(3 * time.Second)
		for time.Now().Before(deadline) {
			if len(stub.Requests()) > 0 {
				break
			}
			time.Sleep(20 * time.Millisecond)
		}

		requests := stub.Requests()
		require.NotEmpty(t, requests)
		assert.Equal(t, "POST", requests[0].Method)
		assert.Equal(t, "/presence/ping", requests[0].Path)

		payload, ok := requests[0].Payload.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "online", payload["status"])
	})
}

func TestPollRequest(t *testing.T) {
	t.Run("empty payload yields no request payload", func(t *testing.T) {
		poll := &PollConfig{Name: "p", Schedule: "@hourly", Path: "/x"}
		req, err := poll.request()
		require.NoError(t, err)
		assert.Nil(t, req.Payload)
		assert.Equal(t, "/x", req.Path)
	})
}

// stubClient records the requests issued through it.
type stubClient struct {
	mu       sync.Mutex
	requests []nes.Request
}

func (s *stubClient) Connect(ctx context.Context) error { return nil }
func (s *stubClient) Disconnect() error                 { return nil }

func (s *stubClient) Request(ctx context.Context, req nes.Request) (*nes.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return &nes.Response{StatusCode: 200}, nil
}

func (s *stubClient) Get(ctx context.Context, path string) (*nes.Response, error) {
	return s.Request(ctx, nes.Request{Method: "GET", Path: path})
}

func (s *stubClient) Authenticate(ctx context.Context, token string) error { return nil }

func (s *stubClient) Requests() []nes.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]nes.Request(nil), s.requests...)
}
