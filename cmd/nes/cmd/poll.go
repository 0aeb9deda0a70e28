package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DJMcK/nes/pkg/nes"
	"github.com/DJMcK/nes/pkg/nes/config"
)

// pollCmd represents the poll command
var pollCmd = &cobra.Command{
	Use:   "poll [config-files-or-directories...]",
	Short: "Run configured requests on cron schedules",
	Long: `Run requests against a nes server on cron schedules from HCL
configuration files or directories.

The configuration must contain one client block and any number of poll
blocks:

  client {
    url   = "ws://localhost:8080/ws"
    token = "secret"
  }

  poll "health" {
    schedule = "*/30 * * * * *"
    path     = "/health"
  }

Examples:
  nes poll nes.hcl
  nes poll ./configs/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPoll,
}

var (
	logLevel string
)

func init() {
	rootCmd.AddCommand(pollCmd)

	pollCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "log level (debug, info, warn, error)")
}

func runPoll(cmd *cobra.Command, args []string) error {
	// Setup logger
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting poller",
		zap.Strings("config-paths", args),
		zap.String("log-level", logLevel),
	)

	cfg, diags := config.NewConfig().
		WithLogger(logger).
		WithSources(stringSliceToAnySlice(args)...).
		Build()

	if diags.HasErrors() {
		logger.Error("Failed to build config", zap.Any("diags", diags))
		return diags
	}

	nesClient, err := cfg.BuildClient(nes.NewLoggingListener(logger, zap.DebugLevel), nil)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	scheduler, err := cfg.BuildScheduler(nesClient)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := nesClient.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	scheduler.Start()
	logger.Info("Poller running", zap.Int("polls", len(cfg.Polls)))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	sig := <-sigChan
	logger.Debug("Signal received, exiting", zap.String("signal", sig.String()))

	stopCtx := scheduler.Stop()
	<-stopCtx.Done()

	if err := nesClient.Disconnect(); err != nil {
		logger.Warn("Error during client disconnect", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}

func setupLogger() (*zap.Logger, error) {
	level := logLevel
	debugFlag := GetDebug()
	verboseFlag := GetVerbose()

	// Override log level based on flags
	if debugFlag {
		level = "debug"
	} else if verboseFlag && level == "info" {
		level = "debug"
	}

	var zapLevel zap.AtomicLevel
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn", "warning":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	config := zap.NewProductionConfig()
	config.Level = zapLevel
	config.Development = debugFlag

	return config.Build()
}

// Helper to convert []string to []any
func stringSliceToAnySlice(strs []string) []any {
	anys := make([]any, len(strs))
	for i, s := range strs {
		anys[i] = s
	}
	return anys
}
