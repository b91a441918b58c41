package memory

import (
	"context"
	"testing"

	"github.com/riskibarqy/scouting-sync/internal/domain/pair"
)

func TestPairRepository_ListPageFiltersAndPages(t *testing.T) {
	t.Parallel()

	repo := NewPairRepository([]pair.Pair{
		{TeamID: 1, CompetitionEditionID: 10, CompetitionName: "Liga", SeasonName: "2024/2025"},
		{TeamID: 2, CompetitionEditionID: 10, CompetitionName: "Liga", SeasonName: "2024/2025"},
		{TeamID: 3, CompetitionEditionID: 11, CompetitionName: "Cup", SeasonName: "2024/2025"},
		{TeamID: 4, CompetitionEditionID: 12, CompetitionName: "Liga", SeasonName: "2023/2024"},
	})

	filter := pair.Filter{Season: "2024/2025", Competition: "Liga"}
	first, err := repo.ListPage(context.Background(), filter, 0, 1)
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(first) != 1 || first[0].TeamID != 1 {
		t.Fatalf("unexpected first page: %+v", first)
	}

	second, err := repo.ListPage(context.Background(), filter, 1, 1)
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(second) != 1 || second[0].TeamID != 2 {
		t.Fatalf("unexpected second page: %+v", second)
	}

	tail, err := repo.ListPage(context.Background(), filter, 2, 1)
	if err != nil {
		t.Fatalf("list tail page: %v", err)
	}
	if len(tail) != 0 {
		t.Fatalf("expected empty tail page, got %+v", tail)
	}

	all, err := repo.ListPage(context.Background(), pair.Filter{}, 0, 100)
	if err != nil {
		t.Fatalf("list unfiltered: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 rows, got=%d", len(all))
	}
}
