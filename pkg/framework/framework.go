package framework

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/cenkalti/backoff/v4"
	"github.com/flare-foundation/go-flare-common/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flare-foundation/checkpoint-indexer/pkg/config"
	"github.com/flare-foundation/checkpoint-indexer/pkg/database"
	"github.com/flare-foundation/checkpoint-indexer/pkg/fullnode"
	"github.com/flare-foundation/checkpoint-indexer/pkg/indexer"
)

type CLIArgs struct {
	ConfigFile string `arg:"--config,env:CONFIG_FILE" default:"config.toml"`
	EnvFile    string `arg:"--env-file,env:ENV_FILE" default:".env"`
}

// Run parses the command line and runs the indexer until SIGINT or SIGTERM.
func Run() error {
	var args CLIArgs
	arg.MustParse(&args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runWithArgs(ctx, args)
}

func runWithArgs(ctx context.Context, args CLIArgs) error {
	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}

	logger.Set(cfg.Logger)

	db, err := connectDB(ctx, &cfg.DB, cfg.Timeout.BackoffMaxElapsedTime())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := saveVersion(ctx, db, cfg); err != nil {
		return err
	}

	client, err := fullnode.Dial(ctx, cfg.Fullnode.URL, cfg.Timeout.RequestTimeout())
	if err != nil {
		return err
	}
	defer client.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ix, err := indexer.New(cfg, db, client, registry)
	if err != nil {
		return err
	}

	if cfg.Metrics.ListenAddress != "" {
		_, shutdown, err := serveMetrics(cfg.Metrics.ListenAddress, registry)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	logger.Infof("indexing checkpoints from %s", cfg.Fullnode.URL)

	return ix.Run(ctx)
}

// LoadConfig reads the TOML file over the defaults and then applies
// environment overrides, including any set in the env file.
func LoadConfig(args CLIArgs) (*config.BaseConfig, error) {
	if args.EnvFile != "" {
		if err := godotenv.Load(args.EnvFile); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "loading %s", args.EnvFile)
		}
	}

	cfg := config.DefaultBaseConfig
	if err := config.ReadFile(args.ConfigFile, &cfg); err != nil {
		return nil, errors.Wrapf(err, "reading config %s", args.ConfigFile)
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, errors.Wrap(err, "applying env overrides")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &cfg, nil
}

func connectDB(ctx context.Context, cfg *config.DB, maxElapsedTime time.Duration) (*database.DB, error) {
	var db *database.DB

	err := backoff.RetryNotify(
		func() (err error) {
			db, err = database.New(cfg)
			return err
		},
		newBackoff(ctx, maxElapsedTime),
		func(err error, d time.Duration) {
			logger.Errorf("database connection error: %v. Will retry after %v", err, d)
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to the database")
	}

	return db, nil
}

// newBackoff makes a single attempt when maxElapsedTime is not positive.
func newBackoff(ctx context.Context, maxElapsedTime time.Duration) backoff.BackOff {
	if maxElapsedTime <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}

	return backoff.WithContext(
		backoff.NewExponentialBackOff(backoff.WithMaxElapsedTime(maxElapsedTime)), ctx,
	)
}

func saveVersion(ctx context.Context, db *database.DB, cfg *config.BaseConfig) error {
	version := database.InitVersion()
	version.NodeURL = cfg.Fullnode.URL

	build, err := config.ReadBuildVersion()
	if err != nil {
		logger.Warnf("build version unavailable: %v", err)
	} else {
		version.GitTag = build.GitTag
		version.GitHash = build.GitHash
		version.BuildDate = build.BuildDate
	}

	return errors.Wrap(db.SaveVersion(ctx, version), "saving version")
}

func serveMetrics(address string, registry *prometheus.Registry) (net.Addr, func(), error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, nil, errors.Wrap(err, "metrics listener")
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server error: %v", err)
		}
	}()

	logger.Infof("serving metrics on %s", listener.Addr())

	return listener.Addr(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Warnf("metrics server shutdown: %v", err)
		}
	}, nil
}
