package indexer

import (
	"context"

	"github.com/pkg/errors"
)

// resumePoint is the checkpoint index a sync tick starts from. It is the
// lower of the last stored checkpoint and the checkpoint owning the highest
// stored block, so a crash between the two loops never leaves blocks of an
// already stored checkpoint unfetched. Missing data on either side resolves
// to genesis.
func (ix *Indexer) resumePoint(ctx context.Context) (uint64, error) {
	lastCheckpoint, ok, err := ix.db.MaxCheckpointIdx(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "resume point")
	}

	if !ok {
		return 0, nil
	}

	ix.metrics.localLatestCheckpoint.Set(float64(lastCheckpoint))

	lastHeight, ok, err := ix.db.MaxBlockHeight(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "resume point")
	}

	// No blocks yet: every stored checkpoint still needs its blocks, so start
	// over instead of from the last checkpoint.
	if !ok {
		return 0, nil
	}

	ix.metrics.localLatestBlock.Set(float64(lastHeight))

	probable, ok, err := ix.db.CheckpointIdxForBlockHeight(ctx, lastHeight)
	if err != nil {
		return 0, errors.Wrap(err, "resume point")
	}

	if !ok {
		return 0, nil
	}

	return min(probable, lastCheckpoint), nil
}
