package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Aidin1998/txreplay/internal/config"
	"github.com/Aidin1998/txreplay/internal/ingest"
	"github.com/Aidin1998/txreplay/internal/ledger"
	"github.com/Aidin1998/txreplay/internal/report"
	"github.com/Aidin1998/txreplay/pkg/logger"
	"github.com/Aidin1998/txreplay/pkg/metrics"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	fs := pflag.NewFlagSet("txreplay", pflag.ExitOnError)
	config.RegisterFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: txreplay [flags] <transactions.csv>\n\nFlags:\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.NewLogger(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	zapLogger = zapLogger.With(zap.String("run_id", uuid.NewString()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, cfg, zapLogger, fs.Arg(0), os.Stdout)
	stop()
	if err != nil {
		zapLogger.Error("Replay failed", zap.Error(err))
		_ = zapLogger.Sync()
		os.Exit(1)
	}
	_ = zapLogger.Sync()
}

// run replays the file at path and writes the account report to out
func run(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger, path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	m := metrics.NewReplay()

	var ingestOpts []ingest.Option
	if cfg.Ingest.SkipMalformed {
		ingestOpts = append(ingestOpts, ingest.WithSkipMalformed(zapLogger, m))
	}
	src, err := ingest.NewReader(f, ingestOpts...)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	processor, err := newProcessor(cfg, zapLogger, m)
	if err != nil {
		return err
	}

	zapLogger.Info("Replay started",
		zap.String("input", path),
		zap.Int("workers", cfg.Replay.Workers),
		zap.Bool("freeze_locked", cfg.Replay.FreezeLocked))

	if err := processor.Run(ctx, src); err != nil {
		return fmt.Errorf("replay of %s failed: %w", path, err)
	}

	w, err := report.NewWriter(out, report.Format(cfg.Report.Format))
	if err != nil {
		return err
	}
	if err := w.Write(processor.Accounts()); err != nil {
		return err
	}

	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return err
		}
		zapLogger.Debug("Metrics written", zap.String("path", cfg.Metrics.Textfile))
	}
	return nil
}

func newProcessor(cfg *config.Config, zapLogger *zap.Logger, m *metrics.Replay) (ledger.Processor, error) {
	policy := ledger.PolicyPermissive
	if cfg.Replay.FreezeLocked {
		policy = ledger.PolicyFreeze
	}
	opts := []ledger.Option{ledger.WithMetrics(m), ledger.WithPolicy(policy)}

	if cfg.Replay.Workers > 1 {
		return ledger.NewShardedEngine(zapLogger, cfg.Replay.Workers, cfg.Replay.QueueSize, opts...)
	}
	return ledger.NewEngine(zapLogger, opts...), nil
}
