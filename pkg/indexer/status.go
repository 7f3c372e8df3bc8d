package indexer

import (
	"context"
	"math"

	"github.com/flare-foundation/go-flare-common/pkg/logger"
	"github.com/pkg/errors"

	"github.com/flare-foundation/checkpoint-indexer/pkg/fullnode"
	"github.com/flare-foundation/checkpoint-indexer/pkg/model"
)

// ErrStatusRegression is reported when the full node returns a status lower
// than the stored one. The stored status is kept.
var ErrStatusRegression = errors.New("checkpoint status regression")

// reconcileStatus walks forward from the earliest stored checkpoint with the
// given status, copying newer statuses from the full node. Checkpoints settle
// in order, so the walk stops at the first one whose status has not moved.
func (ix *Indexer) reconcileStatus(ctx context.Context, status model.Status) error {
	idx, ok, err := ix.db.EarliestCheckpointWithStatus(ctx, status)
	if err != nil {
		return err
	}

	if !ok {
		logger.Debugf("no %s checkpoints to reconcile", status)
		return nil
	}

	for {
		stored, err := ix.db.GetCheckpoint(ctx, idx)
		if err != nil {
			return err
		}

		if stored == nil {
			return nil
		}

		remote, err := ix.feed.Checkpoint(ctx, idx)
		if errors.Is(err, fullnode.ErrNotFound) {
			return nil
		}

		if err != nil {
			return err
		}

		if remote.ConfirmationStatus == nil {
			return nil
		}

		current, next := stored.Status(), *remote.ConfirmationStatus
		if next == current {
			return nil
		}

		if next < current {
			return errors.Wrapf(ErrStatusRegression, "checkpoint %d: stored %s, full node reports %s", idx, current, next)
		}

		updated, err := ix.db.UpdateCheckpointStatus(ctx, idx, current, next, remote.Commitment)
		if err != nil {
			return err
		}

		// another tracker moved it first; its answer may be newer than ours
		if !updated {
			logger.Debugf("checkpoint %d: no longer %s, stopping", idx, current)
			return nil
		}

		ix.metrics.statusUpdates.WithLabelValues(next.String()).Inc()
		logger.Infof("checkpoint %d: %s -> %s", idx, current, next)

		if idx == math.MaxUint64 {
			return nil
		}

		idx++
	}
}
