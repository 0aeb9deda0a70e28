package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DJMcK/nes/pkg/nes"
	"github.com/DJMcK/nes/pkg/nes/otel"
	"github.com/DJMcK/nes/pkg/nes/websockets/client"
)

// requestCmd represents the request command
var requestCmd = &cobra.Command{
	Use:   "request <websocket-url> <method-and-path> [payload]",
	Short: "Send a one-shot request to a nes server",
	Long: `Send a single request to a nes server and print the response payload.

The first argument is the WebSocket URL to connect to.
The second argument is the method and path ("GET /status"); a bare path
defaults to GET.
The optional third argument is the request payload (JSON string or plain text).

Examples:
  nes request ws://localhost:8080/ws /status
  nes request ws://localhost:8080/ws "GET /users/42"
  nes request ws://localhost:8080/ws "POST /users" '{"name":"alice"}'`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runRequest,
}

var (
	requestDialTimeout time.Duration
	requestTimeout     time.Duration
	requestToken       string
)

func init() {
	rootCmd.AddCommand(requestCmd)

	requestCmd.Flags().DurationVar(&requestDialTimeout, "dial-timeout", 10*time.Second, "WebSocket dial timeout")
	requestCmd.Flags().DurationVar(&requestTimeout, "timeout", 30*time.Second, "Total operation timeout")
	requestCmd.Flags().StringVar(&requestToken, "token", "", "Credential for the authentication handshake")
}

func runRequest(cmd *cobra.Command, args []string) error {
	// Setup logger
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	wsURL := args[0]
	req := parseMethodAndPath(args[1])

	if len(args) == 3 {
		// Payload is JSON when it parses, a plain string otherwise
		var payload any
		if err := json.Unmarshal([]byte(args[2]), &payload); err != nil {
			payload = args[2]
		}
		req.Payload = payload
	}

	logger.Debug("Sending request",
		zap.String("url", wsURL),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
		zap.Duration("timeout", requestTimeout),
	)

	// Create a context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	// One-shot: no reconnection
	builder := client.NewClient().
		WithURL(wsURL).
		WithLogger(logger).
		WithDialTimeout(requestDialTimeout).
		WithReconnect(false)
	if requestToken != "" {
		builder = builder.WithToken(requestToken)
	}
	if GetOtel() {
		provider := otel.NewProvider("nes", version)
		builder = builder.WithMetricsProvider(provider).WithTracingProvider(provider)
	}

	nesClient, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	if err := nesClient.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer nesClient.Disconnect()

	resp, err := nesClient.Request(ctx, req)

	var statusErr *nes.StatusError
	if err != nil && !errors.As(err, &statusErr) {
		return err
	}

	output, marshalErr := json.MarshalIndent(resp.Payload, "", "  ")
	if marshalErr != nil {
		output = []byte(fmt.Sprintf("%v", resp.Payload))
	}
	fmt.Printf("%d\t%s\n", resp.StatusCode, output)

	if statusErr != nil {
		return fmt.Errorf("request failed: %w", statusErr)
	}

	return nil
}

// parseMethodAndPath splits "GET /status" into a request; a bare path
// defaults to GET.
func parseMethodAndPath(arg string) nes.Request {
	if method, path, found := strings.Cut(arg, " "); found {
		return nes.Request{Method: strings.ToUpper(method), Path: strings.TrimSpace(path)}
	}
	return nes.Request{Method: "GET", Path: arg}
}
