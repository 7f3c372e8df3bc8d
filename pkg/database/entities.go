package database

import (
	"github.com/flare-foundation/checkpoint-indexer/pkg/model"
)

// Checkpoint is the checkpoints table. All index and height columns hold
// values encoded with EncodeIndex.
type Checkpoint struct {
	Idx       int64        `gorm:"column:idx;primaryKey;autoIncrement:false"`
	L1Start   int64        `gorm:"column:l1_start"`
	L1End     int64        `gorm:"column:l1_end"`
	L2Start   int64        `gorm:"column:l2_start"`
	L2End     int64        `gorm:"column:l2_end"`
	L2BlockID string       `gorm:"column:l2_block_id;type:varchar(66)"`
	Status    model.Status `gorm:"column:status;type:varchar(16);not null;index"`

	// Commitment columns are NULL until the checkpoint is posted on L1.
	BatchTxid           *string `gorm:"column:batch_txid;type:varchar(66)"`
	CommitmentBlockhash *string `gorm:"column:commitment_blockhash;type:varchar(66)"`
	CommitmentWtxid     *string `gorm:"column:commitment_wtxid;type:varchar(66)"`
	CommitmentHeight    *int64  `gorm:"column:commitment_height"`
	CommitmentPosition  *int64  `gorm:"column:commitment_position"`
}

type Block struct {
	BlockHash     string `gorm:"column:block_hash;primaryKey;type:varchar(66)"`
	Height        int64  `gorm:"column:height;uniqueIndex"`
	CheckpointIdx int64  `gorm:"column:checkpoint_idx;index"`
	Timestamp     uint64 `gorm:"column:timestamp"`
	PrevBlock     string `gorm:"column:prev_block;type:varchar(66)"`
	StateRoot     string `gorm:"column:state_root;type:varchar(66)"`
}

// Version holds the build of the indexer that last started against this DB.
type Version struct {
	ID        uint64 `gorm:"primaryKey;unique"`
	GitTag    string
	GitHash   string `gorm:"type:varchar(40)"`
	BuildDate uint64
	NodeURL   string
}

const globalVersionID = 1

func InitVersion() *Version {
	return &Version{
		ID: globalVersionID,
	}
}

var entities = []interface{}{
	Checkpoint{},
	Block{},
	Version{},
}

func newCheckpoint(info *model.CheckpointInfo) *Checkpoint {
	c := &Checkpoint{
		Idx:       EncodeIndex(info.Idx),
		L1Start:   EncodeIndex(info.L1Range.Start),
		L1End:     EncodeIndex(info.L1Range.End),
		L2Start:   EncodeIndex(info.L2Range.Start),
		L2End:     EncodeIndex(info.L2Range.End),
		L2BlockID: info.L2BlockID,
		Status:    info.Status(),
	}
	c.setCommitment(info.Commitment)

	return c
}

func (c *Checkpoint) setCommitment(cm *model.Commitment) {
	if cm == nil {
		c.BatchTxid, c.CommitmentBlockhash, c.CommitmentWtxid = nil, nil, nil
		c.CommitmentHeight, c.CommitmentPosition = nil, nil
		return
	}

	height := EncodeIndex(cm.Height)
	position := int64(cm.Position)

	c.BatchTxid = &cm.Txid
	c.CommitmentBlockhash = &cm.Blockhash
	c.CommitmentWtxid = &cm.Wtxid
	c.CommitmentHeight = &height
	c.CommitmentPosition = &position
}

func (c *Checkpoint) commitment() *model.Commitment {
	if c.BatchTxid == nil {
		return nil
	}

	cm := &model.Commitment{Txid: *c.BatchTxid}
	if c.CommitmentBlockhash != nil {
		cm.Blockhash = *c.CommitmentBlockhash
	}
	if c.CommitmentWtxid != nil {
		cm.Wtxid = *c.CommitmentWtxid
	}
	if c.CommitmentHeight != nil {
		cm.Height = DecodeIndex(*c.CommitmentHeight)
	}
	if c.CommitmentPosition != nil {
		cm.Position = uint32(*c.CommitmentPosition)
	}

	return cm
}

// Info converts the row back to the protocol representation.
func (c *Checkpoint) Info() *model.CheckpointInfo {
	status := c.Status

	info := &model.CheckpointInfo{
		Idx:        DecodeIndex(c.Idx),
		L1Range:    model.HeightRange{Start: DecodeIndex(c.L1Start), End: DecodeIndex(c.L1End)},
		L2Range:    model.HeightRange{Start: DecodeIndex(c.L2Start), End: DecodeIndex(c.L2End)},
		L2BlockID:  c.L2BlockID,
		Commitment: c.commitment(),
	}
	if status != model.StatusUnknown {
		info.ConfirmationStatus = &status
	}

	return info
}

func newBlock(header *model.BlockHeader, checkpointIdx uint64) *Block {
	return &Block{
		BlockHash:     header.BlockID,
		Height:        EncodeIndex(header.BlockIdx),
		CheckpointIdx: EncodeIndex(checkpointIdx),
		Timestamp:     header.Timestamp,
		PrevBlock:     header.PrevBlock,
		StateRoot:     header.StateRoot,
	}
}
