package indexer

import (
	"context"
	"math"

	"github.com/flare-foundation/go-flare-common/pkg/logger"
	"github.com/pkg/errors"

	"github.com/flare-foundation/checkpoint-indexer/pkg/database"
	"github.com/flare-foundation/checkpoint-indexer/pkg/fullnode"
)

// syncCheckpoints stores every checkpoint from the resume point up to the
// latest one the full node knows about and queues a block fetch for each of
// them. Requests are queued even for checkpoints that could not be stored;
// the block loop skips those.
func (ix *Indexer) syncCheckpoints(ctx context.Context, requests chan<- FetchRequest) error {
	latest, ok, err := ix.feed.LatestCheckpointIndex(ctx)
	if err != nil {
		return err
	}

	if !ok {
		logger.Info("full node has no checkpoints yet")
		return nil
	}

	ix.metrics.remoteLatestCheckpoint.Set(float64(latest))

	start, err := ix.resumePoint(ctx)
	if err != nil {
		return err
	}

	ix.metrics.resumePoint.Set(float64(start))
	logger.Debugf("syncing checkpoints %d to %d", start, latest)

	for idx := start; idx <= latest; idx++ {
		if err := ix.syncCheckpoint(ctx, idx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			ix.metrics.loopErrors.WithLabelValues("checkpoint").Inc()
			logger.Errorf("checkpoint %d: %v", idx, err)
		}

		select {
		case requests <- FetchRequest{CheckpointIdx: idx}:
		case <-ctx.Done():
			return ctx.Err()
		}

		if idx == math.MaxUint64 {
			break
		}
	}

	return nil
}

// syncCheckpoint fetches and stores idx unless it is already stored.
// A checkpoint the full node does not have yet is left for a later tick.
func (ix *Indexer) syncCheckpoint(ctx context.Context, idx uint64) error {
	exists, err := ix.db.CheckpointExists(ctx, idx)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	info, err := ix.feed.Checkpoint(ctx, idx)
	if errors.Is(err, fullnode.ErrNotFound) {
		logger.Debugf("checkpoint %d not available yet", idx)
		return nil
	}

	if err != nil {
		return err
	}

	if info.Idx != idx {
		return errors.Errorf("full node returned checkpoint %d when asked for %d", info.Idx, idx)
	}

	if err := ix.db.InsertCheckpoint(ctx, info); err != nil {
		if errors.Is(err, database.ErrContinuityViolation) {
			return errors.Wrap(err, "checkpoint not stored")
		}

		return err
	}

	ix.metrics.checkpointsInserted.Inc()
	logger.Debugf("stored checkpoint %d, L2 blocks %d-%d", info.Idx, info.L2Range.Start, info.L2Range.End)

	return nil
}
