package model

// BlockHeader is an L2 block header as returned by strata_getHeadersAtIdx.
type BlockHeader struct {
	BlockIdx        uint64 `json:"block_idx"`
	Timestamp       uint64 `json:"timestamp"`
	BlockID         string `json:"block_id"`
	PrevBlock       string `json:"prev_block"`
	L1SegmentHash   string `json:"l1_segment_hash"`
	ExecSegmentHash string `json:"exec_segment_hash"`
	StateRoot       string `json:"state_root"`
}
