package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/riskibarqy/scouting-sync/internal/domain/pair"
	"github.com/riskibarqy/scouting-sync/internal/platform/logging"
)

const defaultReferencePageSize = 1000

type PairEnumerator struct {
	repo     pair.Repository
	pageSize int
	logger   *logging.Logger
}

func NewPairEnumerator(repo pair.Repository, pageSize int, logger *logging.Logger) *PairEnumerator {
	if pageSize <= 0 {
		pageSize = defaultReferencePageSize
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PairEnumerator{repo: repo, pageSize: pageSize, logger: logger}
}

// Enumerate reads every reference page matching filter and returns one pair per key.
// When the reference data repeats a key the last occurrence wins.
func (e *PairEnumerator) Enumerate(ctx context.Context, filter pair.Filter) ([]pair.Pair, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PairEnumerator.Enumerate")
	defer span.End()

	if e.repo == nil {
		return nil, fmt.Errorf("%w: reference repository is not configured", ErrDependencyUnavailable)
	}

	filter = pair.Filter{
		Season:      strings.TrimSpace(filter.Season),
		Competition: strings.TrimSpace(filter.Competition),
	}

	byKey := make(map[pair.Key]pair.Pair)
	rows := 0
	pages := 0
	for offset := 0; ; offset += e.pageSize {
		page, err := e.repo.ListPage(ctx, filter, offset, e.pageSize)
		if err != nil {
			return nil, fmt.Errorf("list reference page offset=%d: %w", offset, err)
		}
		pages++
		rows += len(page)
		for _, item := range page {
			byKey[item.Key()] = item
		}
		if len(page) < e.pageSize {
			break
		}
	}

	out := make([]pair.Pair, 0, len(byKey))
	for _, item := range byKey {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TeamID != out[j].TeamID {
			return out[i].TeamID < out[j].TeamID
		}
		return out[i].CompetitionEditionID < out[j].CompetitionEditionID
	})

	e.logger.InfoContext(ctx, "sync pairs enumerated",
		"season", filter.Season,
		"competition", filter.Competition,
		"pages", pages,
		"rows", rows,
		"pairs", len(out),
	)
	return out, nil
}
