package memory

import (
	"context"
	"testing"
	"time"

	"github.com/riskibarqy/scouting-sync/internal/domain/stats"
)

func TestStatsRepository_UpsertOverwritesByNaturalKey(t *testing.T) {
	t.Parallel()

	repo := NewStatsRepository()
	target := stats.Target{
		Table:       "passing_stats",
		ConflictKey: []string{stats.ColumnPlayerID, stats.ColumnCompetitionEditionID, stats.ColumnPosition},
	}
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	first := []stats.Record{
		{PlayerID: 7, TeamID: 1, CompetitionEditionID: 10, Position: "ALL", Metrics: map[string]any{"passes": 10}, SyncedAt: now},
		{PlayerID: 8, TeamID: 1, CompetitionEditionID: 10, Position: "ALL", Metrics: map[string]any{"passes": 4}, SyncedAt: now},
	}
	if _, err := repo.UpsertRecords(context.Background(), target, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second := []stats.Record{
		{PlayerID: 7, TeamID: 2, CompetitionEditionID: 10, Position: "ALL", Metrics: map[string]any{"passes": 12}, SyncedAt: now},
	}
	if _, err := repo.UpsertRecords(context.Background(), target, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if got := repo.Count(target.Table); got != 2 {
		t.Fatalf("expected 2 rows, got=%d", got)
	}
	rows := repo.Rows(target.Table)
	if rows[0].PlayerID != 7 || rows[0].Metrics["passes"] != 12 || rows[0].TeamID != 2 {
		t.Fatalf("expected overwritten row for player 7, got %+v", rows[0])
	}
}

func TestStatsRepository_UnchangedRowKeepsSyncedAt(t *testing.T) {
	t.Parallel()

	repo := NewStatsRepository()
	target := stats.Target{
		Table:       "physical_stats",
		ConflictKey: []string{stats.ColumnPlayerID, stats.ColumnTeamID, stats.ColumnCompetitionEditionID, stats.ColumnPosition},
	}
	firstRun := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	secondRun := firstRun.Add(24 * time.Hour)
	record := func(psv float64, at time.Time) stats.Record {
		return stats.Record{PlayerID: 7, TeamID: 1, CompetitionEditionID: 10, Position: "ALL", Metrics: map[string]any{"psv99": psv}, SyncedAt: at}
	}

	if _, err := repo.UpsertRecords(context.Background(), target, []stats.Record{record(30.1, firstRun)}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if _, err := repo.UpsertRecords(context.Background(), target, []stats.Record{record(30.1, secondRun)}); err != nil {
		t.Fatalf("repeat upsert: %v", err)
	}
	if got := repo.Rows(target.Table)[0].SyncedAt; !got.Equal(firstRun) {
		t.Fatalf("expected unchanged row to keep synced_at %v, got %v", firstRun, got)
	}

	if _, err := repo.UpsertRecords(context.Background(), target, []stats.Record{record(31.4, secondRun)}); err != nil {
		t.Fatalf("changed upsert: %v", err)
	}
	if got := repo.Rows(target.Table)[0].SyncedAt; !got.Equal(secondRun) {
		t.Fatalf("expected changed row to advance synced_at to %v, got %v", secondRun, got)
	}
}

func TestStatsRepository_RejectsMissingTarget(t *testing.T) {
	t.Parallel()

	repo := NewStatsRepository()
	if _, err := repo.UpsertRecords(context.Background(), stats.Target{}, []stats.Record{{PlayerID: 1}}); err == nil {
		t.Fatalf("expected error for empty table")
	}
	if _, err := repo.UpsertRecords(context.Background(), stats.Target{Table: "physical_stats"}, []stats.Record{{PlayerID: 1}}); err == nil {
		t.Fatalf("expected error for empty conflict key")
	}
}
