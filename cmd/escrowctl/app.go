package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"atomicescrow/cmd/internal/passphrase"
	"atomicescrow/config"
	"atomicescrow/core/state"
	"atomicescrow/crypto"
	"atomicescrow/native/escrow"
	"atomicescrow/observability/logging"
	"atomicescrow/observability/metrics"
	telemetry "atomicescrow/observability/otel"
	"atomicescrow/storage"
)

const serviceName = "escrowctl"

// app holds the lazily opened resources shared by the subcommands.
type app struct {
	opts   globalOptions
	stdout io.Writer
	stderr io.Writer
	pass   *passphrase.Source

	cfg      *config.Config
	db       *storage.LevelDB
	ledger   *state.Manager
	shutdown telemetry.Shutdown
	metrics  *metrics.EscrowMetrics
	logger   *slog.Logger
}

func newApp(opts globalOptions, stdout, stderr io.Writer) *app {
	env := opts.passEnv
	if env == "" {
		env = passphrase.DefaultEnvVar
	}
	return &app{
		opts:   opts,
		stdout: stdout,
		stderr: stderr,
		pass:   passphrase.NewSource(env, "keystore"),
	}
}

func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load(a.opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	if strings.TrimSpace(cfg.Logging.File) != "" {
		a.logger = logging.Setup(serviceName, cfg.Logging.Env, &logging.FileSink{
			Path:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
		})
	} else {
		a.logger = logging.New(a.stderr, serviceName, cfg.Logging.Env)
	}
	return cfg, nil
}

// state opens the ledger in the configured data directory, stamping or
// checking its schema version.
func (a *app) state() (*state.Manager, error) {
	if a.ledger != nil {
		return a.ledger, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	mgr := state.NewManager(db, cfg.RentSchedule())
	if err := mgr.EnsureStateVersion(false); err != nil {
		db.Close()
		return nil, err
	}
	a.db = db
	a.ledger = mgr
	return mgr, nil
}

// processor wires the escrow program with the configured identity, pauses,
// quota and telemetry.
func (a *app) processor() (*escrow.Processor, error) {
	mgr, err := a.state()
	if err != nil {
		return nil, err
	}
	cfg := a.cfg
	program, err := cfg.Program()
	if err != nil {
		return nil, err
	}
	if a.shutdown == nil {
		shutdown, err := telemetry.Init(context.Background(), telemetry.Config{
			ServiceName: serviceName,
			Environment: cfg.Logging.Env,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
			Traces:      cfg.Telemetry.Traces,
			Metrics:     cfg.Telemetry.Metrics,
		})
		if err != nil {
			return nil, err
		}
		a.shutdown = shutdown
	}

	engine := escrow.NewEngine(program)
	engine.SetState(mgr)
	proc := escrow.NewProcessor(engine)
	proc.SetLogger(a.logger.With(slog.String("component", "escrow")))
	proc.SetPauseView(cfg.PauseView())
	proc.SetQuota(cfg.QuotaLimits())
	a.metrics = metrics.Escrow()
	proc.SetMetrics(a.metrics)
	return proc, nil
}

// signer decrypts the keystore at path and returns its key.
func (a *app) signer(path string) (*crypto.PrivateKey, error) {
	pass, err := a.pass.Get()
	if err != nil {
		return nil, err
	}
	key, err := crypto.LoadFromKeystore(path, pass)
	if err != nil {
		return nil, fmt.Errorf("load keystore %s: %w", path, err)
	}
	if a.logger != nil {
		a.logger.Debug("signer unlocked",
			slog.String("keystore", path),
			slog.String("address", key.Address().String()))
	}
	return key, nil
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.stdout, format, args...)
}

func (a *app) close() {
	if a.metrics != nil && a.cfg != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.metrics.Push(ctx, a.cfg.Telemetry.PushGateway, serviceName); err != nil && a.logger != nil {
			a.logger.Warn("metrics push failed", slog.Any("error", err))
		}
		cancel()
	}
	if a.shutdown != nil {
		if err := a.shutdown(context.Background()); err != nil && a.logger != nil {
			a.logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
