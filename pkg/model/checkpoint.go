package model

import "encoding/json"

// HeightRange is an inclusive (start, end) height range. On the wire it is a
// two element array.
type HeightRange struct {
	Start uint64
	End   uint64
}

func (r HeightRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]uint64{r.Start, r.End})
}

func (r *HeightRange) UnmarshalJSON(data []byte) error {
	var pair [2]uint64
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}

	r.Start, r.End = pair[0], pair[1]
	return nil
}

// Commitment locates the L1 transaction a checkpoint was posted in.
type Commitment struct {
	Blockhash string `json:"blockhash"`
	Txid      string `json:"txid"`
	Wtxid     string `json:"wtxid"`
	Height    uint64 `json:"height"`
	Position  uint32 `json:"position"`
}

// CheckpointInfo is a checkpoint as returned by strata_getCheckpointInfo.
type CheckpointInfo struct {
	Idx        uint64      `json:"idx"`
	L1Range    HeightRange `json:"l1_range"`
	L2Range    HeightRange `json:"l2_range"`
	L2BlockID  string      `json:"l2_blockid"`
	Commitment *Commitment `json:"commitment"`

	// ConfirmationStatus is nil when the node has no status information.
	ConfirmationStatus *Status `json:"confirmation_status"`
}

func (c *CheckpointInfo) Status() Status {
	if c.ConfirmationStatus == nil {
		return StatusUnknown
	}

	return *c.ConfirmationStatus
}
