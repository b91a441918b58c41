package memory

import (
	"context"
	"sync"

	"github.com/riskibarqy/scouting-sync/internal/domain/pair"
)

type PairRepository struct {
	mu   sync.RWMutex
	rows []pair.Pair
}

// NewPairRepository keeps rows in insertion order, duplicates included, like the reference table does.
func NewPairRepository(rows []pair.Pair) *PairRepository {
	return &PairRepository{rows: append([]pair.Pair(nil), rows...)}
}

func (r *PairRepository) ListPage(ctx context.Context, filter pair.Filter, offset, limit int) ([]pair.Pair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]pair.Pair, 0, len(r.rows))
	for _, item := range r.rows {
		if filter.Season != "" && item.SeasonName != filter.Season {
			continue
		}
		if filter.Competition != "" && item.CompetitionName != filter.Competition {
			continue
		}
		matched = append(matched, item)
	}

	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []pair.Pair{}, nil
	}
	end := len(matched)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]pair.Pair, 0, end-offset)
	out = append(out, matched[offset:end]...)
	return out, nil
}

func (r *PairRepository) Append(rows ...pair.Pair) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rows = append(r.rows, rows...)
}
