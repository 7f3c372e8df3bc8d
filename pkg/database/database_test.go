package database

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/flare-foundation/checkpoint-indexer/pkg/config"
	"github.com/flare-foundation/checkpoint-indexer/pkg/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := New(&config.DB{
		Driver: config.DriverSQLite,
		URL:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })

	return db
}

func testCheckpoint(idx uint64) *model.CheckpointInfo {
	return &model.CheckpointInfo{
		Idx:       idx,
		L1Range:   model.HeightRange{Start: idx * 10, End: idx*10 + 9},
		L2Range:   model.HeightRange{Start: idx * 3, End: idx*3 + 2},
		L2BlockID: fmt.Sprintf("l2-%d", idx),
	}
}

func testHeader(height uint64) *model.BlockHeader {
	return &model.BlockHeader{
		BlockIdx:  height,
		Timestamp: 1000 + height,
		BlockID:   fmt.Sprintf("0x%064x", height),
		PrevBlock: fmt.Sprintf("0x%064x", height-1),
	}
}

func statusPtr(s model.Status) *model.Status {
	return &s
}

func TestInsertCheckpointContinuity(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	err := db.InsertCheckpoint(ctx, testCheckpoint(1))
	require.True(t, errors.Is(err, ErrContinuityViolation))

	exists, err := db.CheckpointExists(ctx, 1)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, db.InsertCheckpoint(ctx, testCheckpoint(0)))
	require.NoError(t, db.InsertCheckpoint(ctx, testCheckpoint(1)))

	// re-inserting a stored index changes nothing
	require.NoError(t, db.InsertCheckpoint(ctx, testCheckpoint(1)))

	err = db.InsertCheckpoint(ctx, testCheckpoint(3))
	require.True(t, errors.Is(err, ErrContinuityViolation))

	count, err := db.CheckpointCount(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	idx, ok, err := db.MaxCheckpointIdx(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, idx)
}

func TestGetCheckpoint(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	got, err := db.GetCheckpoint(ctx, 0)
	require.NoError(t, err)
	require.Nil(t, got)

	cp := testCheckpoint(0)
	cp.ConfirmationStatus = statusPtr(model.StatusConfirmed)
	cp.Commitment = &model.Commitment{
		Blockhash: "bh", Txid: "tx", Wtxid: "wtx", Height: 812345, Position: 3,
	}
	require.NoError(t, db.InsertCheckpoint(ctx, cp))

	got, err = db.GetCheckpoint(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, cp, got)

	require.NoError(t, db.InsertCheckpoint(ctx, testCheckpoint(1)))

	got, err = db.GetCheckpoint(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, got.ConfirmationStatus)
	require.Nil(t, got.Commitment)
	require.Equal(t, model.HeightRange{Start: 3, End: 5}, got.L2Range)
}

func TestMaxCheckpointIdxEmpty(t *testing.T) {
	_, ok, err := newTestDB(t).MaxCheckpointIdx(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCheckpointStatus(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	statuses := []model.Status{
		model.StatusFinalized, model.StatusConfirmed, model.StatusPending,
		model.StatusPending, model.StatusUnknown,
	}
	for i, s := range statuses {
		cp := testCheckpoint(uint64(i))
		if s != model.StatusUnknown {
			cp.ConfirmationStatus = statusPtr(s)
		}
		require.NoError(t, db.InsertCheckpoint(ctx, cp))
	}

	idx, ok, err := db.EarliestCheckpointWithStatus(ctx, model.StatusPending)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 2, idx)

	idx, ok, err = db.EarliestCheckpointWithStatus(ctx, model.StatusUnknown)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 4, idx)

	commitment := &model.Commitment{Blockhash: "bh2", Txid: "tx2", Wtxid: "wtx2", Height: 9, Position: 1}
	updated, err := db.UpdateCheckpointStatus(ctx, 2, model.StatusPending, model.StatusConfirmed, commitment)
	require.NoError(t, err)
	require.True(t, updated)

	got, err := db.GetCheckpoint(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, model.StatusConfirmed, got.Status())
	require.Equal(t, commitment, got.Commitment)

	idx, ok, err = db.EarliestCheckpointWithStatus(ctx, model.StatusPending)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 3, idx)

	updated, err = db.UpdateCheckpointStatus(ctx, 3, model.StatusPending, model.StatusConfirmed, nil)
	require.NoError(t, err)
	require.True(t, updated)

	_, ok, err = db.EarliestCheckpointWithStatus(ctx, model.StatusPending)
	require.NoError(t, err)
	require.False(t, ok)

	updated, err = db.UpdateCheckpointStatus(ctx, 42, model.StatusPending, model.StatusFinalized, nil)
	require.NoError(t, err)
	require.False(t, updated)
}

func TestUpdateCheckpointStatusRequiresExpectedStatus(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	cp := testCheckpoint(0)
	cp.ConfirmationStatus = statusPtr(model.StatusPending)
	require.NoError(t, db.InsertCheckpoint(ctx, cp))

	finalized := &model.Commitment{Blockhash: "bh0", Txid: "tx0", Wtxid: "wtx0", Height: 7}
	updated, err := db.UpdateCheckpointStatus(ctx, 0, model.StatusPending, model.StatusFinalized, finalized)
	require.NoError(t, err)
	require.True(t, updated)

	// a writer still holding the Pending reading must not lower the status
	updated, err = db.UpdateCheckpointStatus(ctx, 0, model.StatusPending, model.StatusConfirmed, nil)
	require.NoError(t, err)
	require.False(t, updated)

	got, err := db.GetCheckpoint(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, model.StatusFinalized, got.Status())
	require.Equal(t, finalized, got.Commitment)
}

func TestInsertBlockContinuity(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	_, ok, err := db.MaxBlockHeight(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = db.InsertBlock(ctx, testHeader(1), 0)
	require.True(t, errors.Is(err, ErrContinuityViolation))

	for h := uint64(0); h < 3; h++ {
		inserted, err := db.InsertBlock(ctx, testHeader(h), 0)
		require.NoError(t, err)
		require.True(t, inserted)
	}

	inserted, err := db.InsertBlock(ctx, testHeader(2), 0)
	require.NoError(t, err)
	require.False(t, inserted)

	// a competing header at a stored height is ignored
	fork := testHeader(2)
	fork.BlockID = "0xfork"
	inserted, err = db.InsertBlock(ctx, fork, 0)
	require.NoError(t, err)
	require.False(t, inserted)

	_, err = db.InsertBlock(ctx, testHeader(5), 1)
	require.True(t, errors.Is(err, ErrContinuityViolation))

	height, ok, err := db.MaxBlockHeight(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 2, height)
}

func TestCheckpointIdxForBlock(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	for h := uint64(0); h < 6; h++ {
		_, err := db.InsertBlock(ctx, testHeader(h), h/3)
		require.NoError(t, err)
	}

	idx, ok, err := db.CheckpointIdxForBlockHeight(ctx, 4)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 1, idx)

	_, ok, err = db.CheckpointIdxForBlockHeight(ctx, 6)
	require.NoError(t, err)
	require.False(t, ok)

	idx, ok, err = db.CheckpointIdxForBlockHash(ctx, testHeader(2).BlockID)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 0, idx)

	_, ok, err = db.CheckpointIdxForBlockHash(ctx, "0xmissing")
	require.NoError(t, err)
	require.False(t, ok)

	exists, err := db.BlockExists(ctx, 5)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestPaginatedCheckpoints(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	for i := uint64(0); i < 25; i++ {
		require.NoError(t, db.InsertCheckpoint(ctx, testCheckpoint(i)))
	}

	page, err := db.PaginatedCheckpoints(ctx, 1, 10, 1, ParseOrder(""))
	require.NoError(t, err)
	require.EqualValues(t, 1, page.CurrentPage)
	require.EqualValues(t, 3, page.TotalPages)
	require.EqualValues(t, 1, page.AbsoluteFirstPage)
	require.Len(t, page.Items, 10)
	require.EqualValues(t, 24, page.Items[0].Idx)
	require.EqualValues(t, 15, page.Items[9].Idx)

	page, err = db.PaginatedCheckpoints(ctx, 2, 10, 0, ParseOrder("asc"))
	require.NoError(t, err)
	require.Len(t, page.Items, 5)
	require.EqualValues(t, 20, page.Items[0].Idx)
	require.EqualValues(t, 24, page.Items[4].Idx)

	page, err = db.PaginatedCheckpoints(ctx, 7, 10, 0, OrderAsc)
	require.NoError(t, err)
	require.Empty(t, page.Items)

	_, err = db.PaginatedCheckpoints(ctx, 0, 10, 1, OrderAsc)
	require.True(t, errors.Is(err, ErrInvalidPage))

	_, err = db.PaginatedCheckpoints(ctx, 1, 0, 1, OrderAsc)
	require.True(t, errors.Is(err, ErrInvalidPage))

	page, err = db.PaginatedCheckpoints(ctx, 0, 1<<62, 0, OrderAsc)
	require.NoError(t, err)
	require.Len(t, page.Items, 25)
	require.EqualValues(t, 1, page.TotalPages)
}

func TestPaginatedCheckpointsOutOfRange(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	for i := uint64(0); i < 3; i++ {
		require.NoError(t, db.InsertCheckpoint(ctx, testCheckpoint(i)))
	}

	tests := []struct {
		page, pageSize, first uint64
	}{
		{page: math.MaxUint64, pageSize: 10, first: 0},
		{page: 1 << 62, pageSize: 4, first: 1},
		{page: 1, pageSize: math.MaxUint64, first: 1},
		{page: 0, pageSize: 1 << 63, first: 0},
	}

	for _, test := range tests {
		_, err := db.PaginatedCheckpoints(ctx, test.page, test.pageSize, test.first, OrderAsc)
		require.True(t, errors.Is(err, ErrInvalidPage), "page %d size %d", test.page, test.pageSize)
	}
}

func TestVersion(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	v, err := db.GetVersion(ctx)
	require.NoError(t, err)
	require.Nil(t, v)

	version := InitVersion()
	version.GitTag = "v0.1.0"
	version.NodeURL = "http://localhost:58000/"
	require.NoError(t, db.SaveVersion(ctx, version))

	v, err = db.GetVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, version, v)
}
