package indexer

import (
	"context"
	"math"

	"github.com/flare-foundation/go-flare-common/pkg/logger"
	"github.com/pkg/errors"

	"github.com/flare-foundation/checkpoint-indexer/pkg/database"
)

// runBlockFetcher serves fetch requests until the channel is closed or ctx is
// done. A block continuity violation is the only error it returns.
func (ix *Indexer) runBlockFetcher(ctx context.Context, requests <-chan FetchRequest) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case req, ok := <-requests:
			if !ok {
				return nil
			}

			err := ix.fetchBlocks(ctx, req)
			if errors.Is(err, database.ErrContinuityViolation) {
				logger.Errorf("block continuity violated while serving checkpoint %d: %v", req.CheckpointIdx, err)
				return err
			}

			if err != nil && ctx.Err() == nil {
				ix.metrics.loopErrors.WithLabelValues("block").Inc()
				logger.Errorf("fetching blocks of checkpoint %d: %v", req.CheckpointIdx, err)
			}
		}
	}
}

// fetchBlocks stores the L2 blocks of one checkpoint, starting after the
// highest stored block. Heights that are already stored are never refetched,
// so serving the same request twice is harmless.
//
// When the headers of a height cannot be fetched, or the full node has none for
// it yet, the rest of the range is abandoned, and later requests wait until the
// gap is filled. The resume point brings the checkpoint owning the gap back on
// the next tick.
func (ix *Indexer) fetchBlocks(ctx context.Context, req FetchRequest) error {
	checkpoint, err := ix.db.GetCheckpoint(ctx, req.CheckpointIdx)
	if err != nil {
		return err
	}

	if checkpoint == nil {
		logger.Warnf("checkpoint %d is not stored, skipping its blocks", req.CheckpointIdx)
		return nil
	}

	start, end := checkpoint.L2Range.Start, checkpoint.L2Range.End

	lastHeight, ok, err := ix.db.MaxBlockHeight(ctx)
	if err != nil {
		return err
	}

	next := uint64(0)
	if ok {
		if lastHeight >= end {
			return nil
		}

		next = lastHeight + 1
	}

	if next < start {
		logger.Warnf(
			"checkpoint %d: blocks %d-%d are missing, waiting for their checkpoint to be served again",
			req.CheckpointIdx, next, start-1,
		)
		return nil
	}

	start = next

	for height := start; height <= end; height++ {
		headers, err := ix.feed.BlockHeaders(ctx, height)
		if err == nil && len(headers) == 0 {
			err = errors.New("full node returned no headers")
		}

		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			ix.metrics.loopErrors.WithLabelValues("block").Inc()
			logger.Errorf(
				"checkpoint %d: headers at height %d unavailable, stopping at %d of %d-%d: %v",
				req.CheckpointIdx, height, height, checkpoint.L2Range.Start, end, err,
			)
			return nil
		}

		for i := range headers {
			inserted, err := ix.db.InsertBlock(ctx, &headers[i], req.CheckpointIdx)
			if err != nil {
				return errors.Wrapf(err, "checkpoint %d", req.CheckpointIdx)
			}

			if inserted {
				ix.metrics.blocksInserted.Inc()
			}
		}

		if height == math.MaxUint64 {
			break
		}
	}

	logger.Debugf("checkpoint %d: blocks up to %d stored", req.CheckpointIdx, end)

	return nil
}
