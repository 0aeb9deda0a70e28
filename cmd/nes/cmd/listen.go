package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DJMcK/nes/pkg/nes"
	"github.com/DJMcK/nes/pkg/nes/otel"
	"github.com/DJMcK/nes/pkg/nes/subutils"
	"github.com/DJMcK/nes/pkg/nes/transform"
	"github.com/DJMcK/nes/pkg/nes/websockets/client"
)

// listenCmd represents the listen command
var listenCmd = &cobra.Command{
	Use:   "listen <websocket-url>",
	Short: "Listen for broadcasts from a nes server",
	Long: `Connect to a nes server and print every broadcast to stdout.

The connection reconnects automatically with growing, capped delays until
interrupted. An optional JQ expression transforms each broadcast payload
before printing; broadcasts the expression drops are not printed.

Examples:
  nes listen ws://localhost:8080/ws
  nes listen ws://localhost:8080/ws --token secret
  nes listen ws://localhost:8080/ws --jq '.event | select(. == "deploy")'`,
	Args: cobra.ExactArgs(1),
	RunE: runListen,
}

var (
	listenDialTimeout    time.Duration
	listenToken          string
	listenJq             string
	listenReconnectDelay time.Duration
	listenMaxDelay       time.Duration
)

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().DurationVar(&listenDialTimeout, "dial-timeout", 10*time.Second, "WebSocket dial timeout")
	listenCmd.Flags().StringVar(&listenToken, "token", "", "Credential for the authentication handshake")
	listenCmd.Flags().StringVar(&listenJq, "jq", "", "JQ expression applied to each broadcast payload")
	listenCmd.Flags().DurationVar(&listenReconnectDelay, "reconnect-delay", client.DefaultReconnectDelay, "Backoff increment between reconnect attempts")
	listenCmd.Flags().DurationVar(&listenMaxDelay, "max-reconnect-delay", client.DefaultMaxReconnectDelay, "Ceiling for the reconnect backoff wait")
}

func runListen(cmd *cobra.Command, args []string) error {
	// Setup logger
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsURL := args[0]

	logger.Info("Starting listener",
		zap.String("url", wsURL),
		zap.Duration("dial-timeout", listenDialTimeout),
	)

	printer := &printingListener{logger: logger}
	if listenJq != "" {
		jq, err := transform.JqTransform(listenJq, logger)
		if err != nil {
			return err
		}
		printer.transform = jq
	}

	// Broadcasts are handed off through a queue so a slow terminal
	// cannot stall the read loop.
	listener := subutils.NewAsyncQueueingListener(printer, 1000).Start()
	defer listener.Close()

	nesBuilder := client.NewClient().
		WithURL(wsURL).
		WithLogger(logger).
		WithDialTimeout(listenDialTimeout).
		WithListener(listener).
		WithReconnectDelay(listenReconnectDelay).
		WithMaxReconnectDelay(listenMaxDelay)
	if listenToken != "" {
		nesBuilder = nesBuilder.WithToken(listenToken)
	}
	if GetOtel() {
		provider := otel.NewProvider("nes", version)
		nesBuilder = nesBuilder.WithMetricsProvider(provider).WithTracingProvider(provider)
	}

	nesClient, err := nesBuilder.Build()
	if err != nil {
		logger.Fatal("Failed to create client", zap.Error(err))
	}

	if err := nesClient.Connect(ctx); err != nil {
		logger.Fatal("Failed to connect", zap.Error(err))
	}

	logger.Info("Connected", zap.String("url", wsURL))

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Listening for broadcasts... (Press Ctrl+C to exit)")

	select {
	case sig := <-sigChan:
		logger.Debug("Signal received, exiting", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down...")
	}

	if err := nesClient.Disconnect(); err != nil {
		logger.Warn("Error during client disconnect", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}

type printingListener struct {
	nes.BaseListener
	logger    *zap.Logger
	transform transform.TransformFunc
}

func (l *printingListener) OnBroadcast(ctx context.Context, message any) error {
	if l.transform != nil {
		var ok bool
		message, ok = l.transform(message)
		if !ok {
			return nil
		}
	}

	jsonBytes, err := json.Marshal(message)
	if err != nil {
		fmt.Printf("<error marshaling JSON: %v>\n", err)
		l.logger.Warn("Failed to marshal broadcast to JSON",
			zap.Error(err),
			zap.Any("message", message))
		return nil
	}
	fmt.Printf("%s\n", string(jsonBytes))
	return nil
}

func (l *printingListener) OnError(ctx context.Context, err error) {
	l.logger.Warn("Client error", zap.Error(err))
}
