package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tepan024/minerkagecoin/internal/config"
	"github.com/tepan024/minerkagecoin/internal/node"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.DefaultConfig()

	flag.StringVar(&cfg.LedgerHost, "ledger-host", cfg.LedgerHost, "ledger service host")
	flag.IntVar(&cfg.LedgerPort, "ledger-port", cfg.LedgerPort, "ledger service port")
	flag.IntVar(&cfg.Difficulty, "difficulty", cfg.Difficulty, "difficulty (leading hex zeros a block hash must have)")
	flag.IntVar(&cfg.ParallelWorkers, "workers", cfg.ParallelWorkers, "number of parallel search workers")
	flag.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "interval between mining rounds")
	flag.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "submission retry attempts after the first failure")
	flag.DurationVar(&cfg.RetryDelay, "retry-delay", cfg.RetryDelay, "fixed delay between submission retries")
	flag.IntVar(&cfg.StatusPort, "status-port", cfg.StatusPort, "status dashboard port (0 disables)")
	flag.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for persistent data")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "miner - client-side block-mining worker\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n  miner [flags] <miner_address>\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  LEDGER_HOST     Override -ledger-host\n")
		fmt.Fprintf(os.Stderr, "  LEDGER_PORT     Override -ledger-port\n")
		fmt.Fprintf(os.Stderr, "  MINER_DATA_DIR  Override -data-dir\n")
		fmt.Fprintf(os.Stderr, "  LOG_LEVEL       Override -log-level\n")
	}

	flag.Parse()

	// Environment variables override flags (for containerized deployments)
	if v := os.Getenv("LEDGER_HOST"); v != "" {
		cfg.LedgerHost = v
	}
	if v := os.Getenv("LEDGER_PORT"); v != "" {
		port := 0
		if _, err := fmt.Sscanf(v, "%d", &port); err != nil {
			return fmt.Errorf("invalid LEDGER_PORT %q", v)
		}
		cfg.LedgerPort = port
	}
	if v := os.Getenv("MINER_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// The miner address is the single required positional argument.
	minerAddress := flag.Arg(0)
	if minerAddress == "" {
		fmt.Fprintf(os.Stderr, "Error: miner address is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting mining worker",
		zap.String("miner_address", minerAddress),
		zap.String("ledger", cfg.LedgerURL()),
		zap.Int("difficulty", cfg.Difficulty),
		zap.Int("workers", cfg.ParallelWorkers),
	)

	n := node.NewNode(cfg, minerAddress, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := n.Start(ctx); err != nil {
		return fmt.Errorf("start node: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	n.Stop()
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return cfg.Build()
}
