package config

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/flare-foundation/go-flare-common/pkg/logger"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"

	"github.com/flare-foundation/checkpoint-indexer/pkg/model"
)

// EnvPrefix is prepended to every environment override, e.g. EXPLORER_FULLNODE_URL.
const EnvPrefix = "explorer"

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func ReadFile(filepath string, cfg interface{}) error {
	_, err := toml.DecodeFile(filepath, cfg)
	return err
}

type BaseConfig struct {
	DB       DB            `toml:"db"`
	Fullnode Fullnode      `toml:"fullnode"`
	Indexer  Indexer       `toml:"indexer"`
	Timeout  TimeoutConfig `toml:"timeout"`
	Logger   logger.Config `toml:"logger" ignored:"true"`
	Metrics  Metrics       `toml:"metrics"`
}

var DefaultBaseConfig = BaseConfig{
	DB:       defaultDB,
	Fullnode: defaultFullnode,
	Indexer:  defaultIndexer,
	Timeout:  defaultTimeout,
	Logger:   defaultLogger,
}

// ApplyEnvOverrides overwrites any field that has a matching EXPLORER_* variable set.
func (c *BaseConfig) ApplyEnvOverrides() error {
	return envconfig.Process(EnvPrefix, c)
}

func (c *BaseConfig) Validate() error {
	if c.DB.Driver != DriverPostgres && c.DB.Driver != DriverSQLite {
		return errors.Errorf("unsupported db driver %q", c.DB.Driver)
	}

	if c.Fullnode.URL == "" {
		return errors.New("fullnode url must be set")
	}

	if c.Indexer.FetchIntervalSeconds == 0 {
		return errors.New("indexer fetch_interval must be positive")
	}

	if c.Indexer.StatusUpdateIntervalSeconds == 0 {
		return errors.New("indexer status_update_interval must be positive")
	}

	if c.Indexer.ChannelCapacity <= 0 {
		return errors.New("indexer channel_capacity must be positive")
	}

	if _, err := c.Indexer.Statuses(); err != nil {
		return err
	}

	return nil
}

type DB struct {
	Driver string `toml:"driver"`

	// URL is a full connection string. When set it takes precedence over the
	// individual connection fields below.
	URL string `toml:"url"`

	Host       string `toml:"host"`
	Port       int    `toml:"port"`
	Username   string `toml:"username"`
	Password   string `toml:"password"`
	DBName     string `toml:"db_name"`
	LogQueries bool   `toml:"log_queries" split_words:"true"`
}

var defaultDB = DB{
	Driver: DriverPostgres,
	Host:   "localhost",
	Port:   5432,
	DBName: "checkpoint_explorer_db",
}

type Fullnode struct {
	URL string `toml:"url"`
}

var defaultFullnode = Fullnode{
	URL: "http://localhost:58000/",
}

type Indexer struct {
	FetchIntervalSeconds        uint64   `toml:"fetch_interval" envconfig:"fetch_interval"`
	StatusUpdateIntervalSeconds uint64   `toml:"status_update_interval" envconfig:"status_update_interval"`
	ChannelCapacity             int      `toml:"channel_capacity" split_words:"true"`
	TrackedStatuses             []string `toml:"tracked_statuses" split_words:"true"`
}

var defaultIndexer = Indexer{
	FetchIntervalSeconds:        30,
	StatusUpdateIntervalSeconds: 30,
	ChannelCapacity:             100,
	TrackedStatuses:             []string{"pending", "confirmed"},
}

func (i Indexer) FetchInterval() time.Duration {
	return time.Duration(i.FetchIntervalSeconds) * time.Second
}

func (i Indexer) StatusUpdateInterval() time.Duration {
	return time.Duration(i.StatusUpdateIntervalSeconds) * time.Second
}

// Statuses parses TrackedStatuses. Finalized is terminal and cannot be tracked.
func (i Indexer) Statuses() ([]model.Status, error) {
	statuses := make([]model.Status, 0, len(i.TrackedStatuses))
	seen := make(map[model.Status]bool)

	for _, s := range i.TrackedStatuses {
		status, err := model.ParseStatus(strings.TrimSpace(s))
		if err != nil {
			return nil, errors.Wrap(err, "indexer tracked_statuses")
		}

		if status == model.StatusFinalized {
			return nil, errors.New("indexer tracked_statuses: finalized is terminal")
		}

		if seen[status] {
			continue
		}

		seen[status] = true
		statuses = append(statuses, status)
	}

	return statuses, nil
}

type TimeoutConfig struct {
	BackoffMaxElapsedTimeSeconds int `toml:"backoff_max_elapsed_time_seconds" split_words:"true"`
	RequestTimeoutMillis         int `toml:"request_timeout_millis" split_words:"true"`
}

var defaultTimeout = TimeoutConfig{
	BackoffMaxElapsedTimeSeconds: 30,
	RequestTimeoutMillis:         10000,
}

func (t TimeoutConfig) BackoffMaxElapsedTime() time.Duration {
	return time.Duration(t.BackoffMaxElapsedTimeSeconds) * time.Second
}

func (t TimeoutConfig) RequestTimeout() time.Duration {
	return time.Duration(t.RequestTimeoutMillis) * time.Millisecond
}

var defaultLogger = logger.Config{
	Level:   "INFO",
	Console: true,
}

type Metrics struct {
	// ListenAddress of the Prometheus endpoint, e.g. ":9090". Empty disables it.
	ListenAddress string `toml:"listen_address" split_words:"true"`
}
