package indexer

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/flare-foundation/go-flare-common/pkg/logger"
	"github.com/pkg/errors"

	"github.com/flare-foundation/checkpoint-indexer/pkg/fullnode"
	"github.com/flare-foundation/checkpoint-indexer/pkg/model"
)

// FeedClient is the remote source of checkpoints and blocks.
type FeedClient interface {
	LatestCheckpointIndex(context.Context) (uint64, bool, error)
	Checkpoint(context.Context, uint64) (*model.CheckpointInfo, error)
	BlockHeaders(context.Context, uint64) ([]model.BlockHeader, error)
}

// feedWithBackoff retries transport failures. Missing data and malformed
// payloads are returned immediately since retrying cannot change them.
type feedWithBackoff struct {
	client         FeedClient
	maxElapsedTime time.Duration
	requestTimeout time.Duration
}

func newFeedWithBackoff(client FeedClient, maxElapsedTime, requestTimeout time.Duration) *feedWithBackoff {
	return &feedWithBackoff{
		client:         client,
		maxElapsedTime: maxElapsedTime,
		requestTimeout: requestTimeout,
	}
}

func (f *feedWithBackoff) LatestCheckpointIndex(ctx context.Context) (uint64, bool, error) {
	var (
		idx uint64
		ok  bool
	)

	err := backoff.RetryNotify(
		func() (err error) {
			ctx, cancel := f.withTimeout(ctx)
			defer cancel()

			idx, ok, err = f.client.LatestCheckpointIndex(ctx)
			return permanent(err)
		},
		f.newBackoff(ctx),
		func(err error, d time.Duration) {
			logger.Errorf("LatestCheckpointIndex error: %v. Will retry after %v", err, d)
		},
	)
	if err != nil {
		return 0, false, errors.Wrap(err, "LatestCheckpointIndex failed")
	}

	return idx, ok, nil
}

func (f *feedWithBackoff) Checkpoint(ctx context.Context, idx uint64) (*model.CheckpointInfo, error) {
	var info *model.CheckpointInfo

	err := backoff.RetryNotify(
		func() (err error) {
			ctx, cancel := f.withTimeout(ctx)
			defer cancel()

			info, err = f.client.Checkpoint(ctx, idx)
			return permanent(err)
		},
		f.newBackoff(ctx),
		func(err error, d time.Duration) {
			logger.Errorf("Checkpoint(%d) error: %v. Will retry after %v", idx, err, d)
		},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "Checkpoint(%d) failed", idx)
	}

	return info, nil
}

func (f *feedWithBackoff) BlockHeaders(ctx context.Context, height uint64) ([]model.BlockHeader, error) {
	var headers []model.BlockHeader

	err := backoff.RetryNotify(
		func() (err error) {
			ctx, cancel := f.withTimeout(ctx)
			defer cancel()

			headers, err = f.client.BlockHeaders(ctx, height)
			return permanent(err)
		},
		f.newBackoff(ctx),
		func(err error, d time.Duration) {
			logger.Errorf("BlockHeaders(%d) error: %v. Will retry after %v", height, err, d)
		},
	)
	if err != nil {
		return nil, errors.Wrapf(err, "BlockHeaders(%d) failed", height)
	}

	return headers, nil
}

func (f *feedWithBackoff) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, f.requestTimeout)
}

// newBackoff gives a single attempt when no retry window is configured.
func (f *feedWithBackoff) newBackoff(ctx context.Context) backoff.BackOff {
	if f.maxElapsedTime <= 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}

	return backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(f.maxElapsedTime),
	), ctx)
}

func permanent(err error) error {
	if errors.Is(err, fullnode.ErrNotFound) || errors.Is(err, fullnode.ErrDecode) {
		return backoff.Permanent(err)
	}

	return err
}
