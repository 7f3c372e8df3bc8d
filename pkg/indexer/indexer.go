package indexer

import (
	"context"
	"strings"
	"time"

	"github.com/flare-foundation/go-flare-common/pkg/logger"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/flare-foundation/checkpoint-indexer/pkg/config"
	"github.com/flare-foundation/checkpoint-indexer/pkg/model"
)

// Store is the persistence the sync loops need. *database.DB implements it.
type Store interface {
	CheckpointExists(ctx context.Context, idx uint64) (bool, error)
	InsertCheckpoint(ctx context.Context, info *model.CheckpointInfo) error
	GetCheckpoint(ctx context.Context, idx uint64) (*model.CheckpointInfo, error)
	MaxCheckpointIdx(ctx context.Context) (uint64, bool, error)
	EarliestCheckpointWithStatus(ctx context.Context, status model.Status) (uint64, bool, error)
	UpdateCheckpointStatus(
		ctx context.Context, idx uint64, from, to model.Status, commitment *model.Commitment,
	) (bool, error)

	InsertBlock(ctx context.Context, header *model.BlockHeader, checkpointIdx uint64) (bool, error)
	MaxBlockHeight(ctx context.Context) (uint64, bool, error)
	CheckpointIdxForBlockHeight(ctx context.Context, height uint64) (uint64, bool, error)
}

// FetchRequest asks the block loop to fetch the L2 blocks of a checkpoint.
type FetchRequest struct {
	CheckpointIdx uint64
}

type Indexer struct {
	db              Store
	feed            FeedClient
	fetchInterval   time.Duration
	statusInterval  time.Duration
	channelCapacity int
	trackedStatuses []model.Status
	metrics         *metrics
}

// New wraps feed with the configured retry policy. registry may be nil.
func New(
	cfg *config.BaseConfig, db Store, feed FeedClient, registry prometheus.Registerer,
) (*Indexer, error) {
	statuses, err := cfg.Indexer.Statuses()
	if err != nil {
		return nil, err
	}

	defaults := config.DefaultBaseConfig.Indexer

	channelCapacity := cfg.Indexer.ChannelCapacity
	if channelCapacity <= 0 {
		channelCapacity = defaults.ChannelCapacity
	}

	fetchInterval := cfg.Indexer.FetchInterval()
	if fetchInterval <= 0 {
		fetchInterval = defaults.FetchInterval()
	}

	statusInterval := cfg.Indexer.StatusUpdateInterval()
	if statusInterval <= 0 {
		statusInterval = defaults.StatusUpdateInterval()
	}

	return &Indexer{
		db:              db,
		feed:            newFeedWithBackoff(feed, cfg.Timeout.BackoffMaxElapsedTime(), cfg.Timeout.RequestTimeout()),
		fetchInterval:   fetchInterval,
		statusInterval:  statusInterval,
		channelCapacity: channelCapacity,
		trackedStatuses: statuses,
		metrics:         newMetrics(registry),
	}, nil
}

// Run starts the checkpoint loop, the block loop and one status tracker per
// tracked status, and blocks until ctx is cancelled or a loop fails fatally.
// Cancellation is a clean shutdown and returns nil.
func (ix *Indexer) Run(ctx context.Context) error {
	requests := make(chan FetchRequest, ix.channelCapacity)
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		defer close(requests)

		ix.runEvery(ctx, ix.fetchInterval, "checkpoint", func(ctx context.Context) error {
			return ix.syncCheckpoints(ctx, requests)
		})
		return nil
	})

	eg.Go(func() error {
		return ix.runBlockFetcher(ctx, requests)
	})

	for _, status := range ix.trackedStatuses {
		status := status
		eg.Go(func() error {
			ix.runEvery(ctx, ix.statusInterval, "status_"+strings.ToLower(status.String()), func(ctx context.Context) error {
				return ix.reconcileStatus(ctx, status)
			})
			return nil
		})
	}

	logger.Infof(
		"indexer started: fetch interval %v, status interval %v, tracking %v",
		ix.fetchInterval, ix.statusInterval, ix.trackedStatuses,
	)

	if err := eg.Wait(); err != nil {
		return errors.Wrap(err, "fatal error in indexer")
	}

	logger.Info("indexer stopped")
	return nil
}

// runEvery runs tick immediately and then once per interval until ctx is
// done. Tick errors are logged and do not stop the loop.
func (ix *Indexer) runEvery(
	ctx context.Context, interval time.Duration, loop string, tick func(context.Context) error,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := tick(ctx); err != nil && ctx.Err() == nil {
			ix.metrics.loopErrors.WithLabelValues(loop).Inc()
			logger.Errorf("%s loop error: %v", loop, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
