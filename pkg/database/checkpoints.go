package database

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flare-foundation/checkpoint-indexer/pkg/model"
)

func (db *DB) CheckpointExists(ctx context.Context, idx uint64) (bool, error) {
	return checkpointExists(db.g.WithContext(ctx), EncodeIndex(idx))
}

func checkpointExists(g *gorm.DB, encIdx int64) (bool, error) {
	var count int64

	err := g.Model(&Checkpoint{}).Where("idx = ?", encIdx).Limit(1).Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// InsertCheckpoint stores a checkpoint. Every checkpoint except the genesis one
// requires its predecessor to be stored already, otherwise
// ErrContinuityViolation is returned and nothing is written. Inserting an
// already stored index is a no-op.
func (db *DB) InsertCheckpoint(ctx context.Context, info *model.CheckpointInfo) error {
	row := newCheckpoint(info)

	return db.g.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if row.Idx != GenesisSentinel {
			ok, err := checkpointExists(tx, row.Idx-1)
			if err != nil {
				return err
			}

			if !ok {
				return errors.Wrapf(
					ErrContinuityViolation,
					"checkpoint %d: previous checkpoint %d does not exist", info.Idx, info.Idx-1,
				)
			}
		}

		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
	})
}

// GetCheckpoint returns nil without an error when idx is not stored.
func (db *DB) GetCheckpoint(ctx context.Context, idx uint64) (*model.CheckpointInfo, error) {
	row := new(Checkpoint)

	err := db.g.WithContext(ctx).Where("idx = ?", EncodeIndex(idx)).First(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "fetching checkpoint %d", idx)
	}

	return row.Info(), nil
}

// MaxCheckpointIdx returns the highest stored checkpoint index. ok is false
// when the table is empty.
func (db *DB) MaxCheckpointIdx(ctx context.Context) (idx uint64, ok bool, err error) {
	row := new(Checkpoint)

	err = db.g.WithContext(ctx).Order("idx desc").First(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "fetching latest checkpoint")
	}

	return DecodeIndex(row.Idx), true, nil
}

// EarliestCheckpointWithStatus returns the lowest stored index currently
// holding status.
func (db *DB) EarliestCheckpointWithStatus(
	ctx context.Context, status model.Status,
) (idx uint64, ok bool, err error) {
	row := new(Checkpoint)

	err = db.g.WithContext(ctx).
		Where("status = ?", status).
		Order("idx asc").
		First(row).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrapf(err, "fetching earliest %s checkpoint", status)
	}

	return DecodeIndex(row.Idx), true, nil
}

// UpdateCheckpointStatus moves a checkpoint from status from to status to and
// writes its commitment, in a single row update. A nil commitment clears the
// commitment columns. updated is false when the checkpoint is missing or no
// longer holds from, in which case nothing is written.
func (db *DB) UpdateCheckpointStatus(
	ctx context.Context, idx uint64, from, to model.Status, commitment *model.Commitment,
) (updated bool, err error) {
	row := Checkpoint{Status: to}
	row.setCommitment(commitment)

	res := db.g.WithContext(ctx).
		Model(&Checkpoint{}).
		Where("idx = ? AND status = ?", EncodeIndex(idx), from).
		Updates(map[string]interface{}{
			"status":               row.Status,
			"batch_txid":           row.BatchTxid,
			"commitment_blockhash": row.CommitmentBlockhash,
			"commitment_wtxid":     row.CommitmentWtxid,
			"commitment_height":    row.CommitmentHeight,
			"commitment_position":  row.CommitmentPosition,
		})
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "updating checkpoint %d", idx)
	}

	return res.RowsAffected > 0, nil
}

func (db *DB) CheckpointCount(ctx context.Context) (uint64, error) {
	var count int64

	if err := db.g.WithContext(ctx).Model(&Checkpoint{}).Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, "counting checkpoints")
	}

	return uint64(count), nil
}
