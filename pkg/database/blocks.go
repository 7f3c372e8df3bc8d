package database

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flare-foundation/checkpoint-indexer/pkg/model"
)

func (db *DB) BlockExists(ctx context.Context, height uint64) (bool, error) {
	return blockExists(db.g.WithContext(ctx), EncodeIndex(height))
}

func blockExists(g *gorm.DB, encHeight int64) (bool, error) {
	var count int64

	err := g.Model(&Block{}).Where("height = ?", encHeight).Limit(1).Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// InsertBlock stores a block header under checkpointIdx. It returns false if a
// block at that height is already stored. A block other than genesis whose
// predecessor height is missing is rejected with ErrContinuityViolation.
func (db *DB) InsertBlock(
	ctx context.Context, header *model.BlockHeader, checkpointIdx uint64,
) (inserted bool, err error) {
	row := newBlock(header, checkpointIdx)

	err = db.g.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := blockExists(tx, row.Height)
		if err != nil {
			return err
		}

		if exists {
			return nil
		}

		if row.Height != GenesisSentinel {
			prevExists, err := blockExists(tx, row.Height-1)
			if err != nil {
				return err
			}

			if !prevExists {
				return errors.Wrapf(
					ErrContinuityViolation,
					"block %d (%s): previous block %d does not exist",
					header.BlockIdx, header.BlockID, header.BlockIdx-1,
				)
			}
		}

		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
		if res.Error != nil {
			return res.Error
		}

		inserted = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	return inserted, nil
}

// MaxBlockHeight returns the highest stored block height. ok is false when no
// block is stored.
func (db *DB) MaxBlockHeight(ctx context.Context) (height uint64, ok bool, err error) {
	row := new(Block)

	err = db.g.WithContext(ctx).Order("height desc").First(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "fetching latest block")
	}

	return DecodeIndex(row.Height), true, nil
}

func (db *DB) CheckpointIdxForBlockHeight(ctx context.Context, height uint64) (uint64, bool, error) {
	return db.checkpointIdxForBlock(ctx, "height = ?", EncodeIndex(height))
}

func (db *DB) CheckpointIdxForBlockHash(ctx context.Context, hash string) (uint64, bool, error) {
	return db.checkpointIdxForBlock(ctx, "block_hash = ?", hash)
}

func (db *DB) checkpointIdxForBlock(ctx context.Context, query string, arg interface{}) (uint64, bool, error) {
	row := new(Block)

	err := db.g.WithContext(ctx).Where(query, arg).First(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, "fetching block")
	}

	return DecodeIndex(row.CheckpointIdx), true, nil
}
