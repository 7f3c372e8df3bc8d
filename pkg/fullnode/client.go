// Package fullnode talks JSON-RPC to a Strata full node.
package fullnode

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/flare-foundation/checkpoint-indexer/pkg/model"
)

const (
	MethodLatestCheckpointIndex = "strata_getLatestCheckpointIndex"
	MethodCheckpointInfo        = "strata_getCheckpointInfo"
	MethodHeadersAtIdx          = "strata_getHeadersAtIdx"
)

var (
	// ErrNotFound means the node has no data at the index yet.
	ErrNotFound = errors.New("not found")
	// ErrTransport covers connection and HTTP level failures.
	ErrTransport = errors.New("transport error")
	// ErrDecode means the node answered with an unexpected payload or with a
	// JSON-RPC error object.
	ErrDecode = errors.New("decode error")
)

type Client struct {
	rpc *rpc.Client
}

func Dial(ctx context.Context, url string, requestTimeout time.Duration) (*Client, error) {
	c, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(&http.Client{Timeout: requestTimeout}))
	if err != nil {
		return nil, errors.Wrapf(err, "dialing full node %s", url)
	}

	return NewClient(c), nil
}

// NewClient wraps an existing RPC client, e.g. one from rpc.DialInProc.
func NewClient(c *rpc.Client) *Client {
	return &Client{rpc: c}
}

func (c *Client) Close() {
	c.rpc.Close()
}

// LatestCheckpointIndex returns ok == false while the node has not produced
// any checkpoint.
func (c *Client) LatestCheckpointIndex(ctx context.Context) (idx uint64, ok bool, err error) {
	raw, err := c.call(ctx, MethodLatestCheckpointIndex)
	if err != nil {
		return 0, false, err
	}

	if isNull(raw) {
		return 0, false, nil
	}

	if err := decode(raw, &idx); err != nil {
		return 0, false, errors.Wrapf(err, "%s", MethodLatestCheckpointIndex)
	}

	return idx, true, nil
}

func (c *Client) Checkpoint(ctx context.Context, idx uint64) (*model.CheckpointInfo, error) {
	info := new(model.CheckpointInfo)
	if err := c.fetch(ctx, MethodCheckpointInfo, idx, info); err != nil {
		return nil, err
	}

	return info, nil
}

// BlockHeaders returns every header the node knows at height.
func (c *Client) BlockHeaders(ctx context.Context, height uint64) ([]model.BlockHeader, error) {
	var headers []model.BlockHeader
	if err := c.fetch(ctx, MethodHeadersAtIdx, height, &headers); err != nil {
		return nil, err
	}

	return headers, nil
}

func (c *Client) fetch(ctx context.Context, method string, idx uint64, out interface{}) error {
	raw, err := c.call(ctx, method, idx)
	if err != nil {
		return err
	}

	if isNull(raw) {
		return errors.Wrapf(ErrNotFound, "%s(%d)", method, idx)
	}

	if err := decode(raw, out); err != nil {
		return errors.Wrapf(err, "%s(%d)", method, idx)
	}

	return nil
}

func (c *Client) call(ctx context.Context, method string, args ...interface{}) (json.RawMessage, error) {
	var raw json.RawMessage

	err := c.rpc.CallContext(ctx, &raw, method, args...)
	if errors.Is(err, rpc.ErrNoResult) {
		return nil, nil
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return nil, errors.Wrapf(ErrDecode, "%s: node error %d: %v", method, rpcErr.ErrorCode(), err)
	}
	if err != nil {
		return nil, errors.Wrapf(ErrTransport, "%s: %v", method, err)
	}

	return raw, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func decode(raw json.RawMessage, out interface{}) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(ErrDecode, "%v", err)
	}

	return nil
}
