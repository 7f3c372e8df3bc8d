package database

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/flare-foundation/checkpoint-indexer/pkg/model"
)

var ErrInvalidPage = errors.New("invalid page")

type Order int

const (
	OrderDesc Order = iota
	OrderAsc
)

// ParseOrder maps "asc" to ascending; anything else sorts newest first.
func ParseOrder(s string) Order {
	if s == "asc" {
		return OrderAsc
	}

	return OrderDesc
}

func (o Order) String() string {
	if o == OrderAsc {
		return "asc"
	}

	return "desc"
}

// PaginatedPage is one page of a listing. AbsoluteFirstPage is the number of
// the first page, 0 or 1 depending on the caller's convention.
type PaginatedPage[T any] struct {
	CurrentPage       uint64 `json:"current_page"`
	TotalPages        uint64 `json:"total_pages"`
	AbsoluteFirstPage uint64 `json:"absolute_first_page"`
	Items             []T    `json:"items"`
}

func totalPages(count, pageSize uint64) uint64 {
	return (count + pageSize - 1) / pageSize
}

// pageOffset returns the row offset of a zero based page, and false if the
// offset or the page size does not fit in an int.
func pageOffset(page, pageSize uint64) (int, bool) {
	if pageSize > math.MaxInt || page > math.MaxInt/pageSize {
		return 0, false
	}

	return int(page * pageSize), true
}

func (db *DB) PaginatedCheckpoints(
	ctx context.Context, page, pageSize, absoluteFirstPage uint64, order Order,
) (*PaginatedPage[*model.CheckpointInfo], error) {
	if pageSize == 0 {
		return nil, errors.Wrap(ErrInvalidPage, "page size must be positive")
	}

	if absoluteFirstPage > 1 {
		return nil, errors.Wrapf(ErrInvalidPage, "absolute first page %d", absoluteFirstPage)
	}

	if page < absoluteFirstPage {
		return nil, errors.Wrapf(ErrInvalidPage, "page %d before first page %d", page, absoluteFirstPage)
	}

	offset, ok := pageOffset(page-absoluteFirstPage, pageSize)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidPage, "page %d of size %d out of range", page, pageSize)
	}

	count, err := db.CheckpointCount(ctx)
	if err != nil {
		return nil, err
	}

	var rows []*Checkpoint
	err = db.g.WithContext(ctx).
		Order("idx " + order.String()).
		Offset(offset).
		Limit(int(pageSize)).
		Find(&rows).
		Error
	if err != nil {
		return nil, errors.Wrap(err, "fetching checkpoint page")
	}

	items := make([]*model.CheckpointInfo, len(rows))
	for i := range rows {
		items[i] = rows[i].Info()
	}

	return &PaginatedPage[*model.CheckpointInfo]{
		CurrentPage:       page,
		TotalPages:        totalPages(count, pageSize),
		AbsoluteFirstPage: absoluteFirstPage,
		Items:             items,
	}, nil
}
