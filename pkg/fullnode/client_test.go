package fullnode

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/flare-foundation/checkpoint-indexer/pkg/model"
)

// fakeNode serves the strata_* namespace.
type fakeNode struct {
	latest      *uint64
	checkpoints map[uint64]*model.CheckpointInfo
	headers     map[uint64][]model.BlockHeader
}

func (n *fakeNode) GetLatestCheckpointIndex() *uint64 {
	return n.latest
}

func (n *fakeNode) GetCheckpointInfo(idx uint64) *model.CheckpointInfo {
	return n.checkpoints[idx]
}

func (n *fakeNode) GetHeadersAtIdx(idx uint64) []model.BlockHeader {
	return n.headers[idx]
}

// brokenNode answers with payloads of the wrong shape.
type brokenNode struct{}

func (brokenNode) GetLatestCheckpointIndex() string {
	return "latest"
}

func (brokenNode) GetCheckpointInfo(idx uint64) []int {
	return []int{1, 2, 3}
}

func newTestClient(t *testing.T, service interface{}) *Client {
	t.Helper()

	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("strata", service))

	c := NewClient(rpc.DialInProc(srv))
	t.Cleanup(func() {
		c.Close()
		srv.Stop()
	})

	return c
}

func TestLatestCheckpointIndex(t *testing.T) {
	ctx := context.Background()
	node := &fakeNode{}
	c := newTestClient(t, node)

	_, ok, err := c.LatestCheckpointIndex(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	latest := uint64(9)
	node.latest = &latest

	idx, ok, err := c.LatestCheckpointIndex(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.EqualValues(t, 9, idx)
}

func TestCheckpoint(t *testing.T) {
	ctx := context.Background()
	status := model.StatusPending
	want := &model.CheckpointInfo{
		Idx:                3,
		L1Range:            model.HeightRange{Start: 30, End: 39},
		L2Range:            model.HeightRange{Start: 9, End: 11},
		L2BlockID:          "0xl2",
		Commitment:         &model.Commitment{Blockhash: "bh", Txid: "tx", Wtxid: "wtx", Height: 40, Position: 1},
		ConfirmationStatus: &status,
	}
	c := newTestClient(t, &fakeNode{checkpoints: map[uint64]*model.CheckpointInfo{3: want}})

	got, err := c.Checkpoint(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = c.Checkpoint(ctx, 4)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestBlockHeaders(t *testing.T) {
	ctx := context.Background()
	headers := []model.BlockHeader{
		{BlockIdx: 5, BlockID: "0x05", PrevBlock: "0x04", Timestamp: 123},
	}
	c := newTestClient(t, &fakeNode{headers: map[uint64][]model.BlockHeader{5: headers}})

	got, err := c.BlockHeaders(ctx, 5)
	require.NoError(t, err)
	require.Equal(t, headers, got)

	_, err = c.BlockHeaders(ctx, 6)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestDecodeErrors(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t, brokenNode{})

	_, _, err := c.LatestCheckpointIndex(ctx)
	require.True(t, errors.Is(err, ErrDecode))

	_, err = c.Checkpoint(ctx, 0)
	require.True(t, errors.Is(err, ErrDecode))

	// method not served at all
	_, err = c.BlockHeaders(ctx, 0)
	require.True(t, errors.Is(err, ErrDecode))
}

// failingNode answers every call with a JSON-RPC error object.
type failingNode struct{}

func (failingNode) GetCheckpointInfo(idx uint64) (*model.CheckpointInfo, error) {
	return nil, errors.Errorf("checkpoint %d: database unavailable", idx)
}

func TestNodeErrorIsNotTransport(t *testing.T) {
	c := newTestClient(t, failingNode{})

	_, err := c.Checkpoint(context.Background(), 3)
	require.True(t, errors.Is(err, ErrDecode))
	require.False(t, errors.Is(err, ErrTransport))
	require.Contains(t, err.Error(), "database unavailable")
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(nil)
	url := srv.URL
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, url, time.Second)
	require.NoError(t, err)
	defer c.Close()

	_, _, err = c.LatestCheckpointIndex(ctx)
	require.True(t, errors.Is(err, ErrTransport))
}
