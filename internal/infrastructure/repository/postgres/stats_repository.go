package postgres

import (
	"context"
	"fmt"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/scouting-sync/internal/domain/stats"
	qb "github.com/riskibarqy/scouting-sync/internal/platform/querybuilder"
)

// stampColumns keep their stored value when a re-sync delivers identical content.
var stampColumns = []string{"synced_at", "updated_at"}

type StatsRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db, now: time.Now}
}

// UpsertRecords writes records with one multi-row INSERT ... ON CONFLICT statement.
// Records repeating a conflict key collapse to the last one, as Postgres refuses to update a row twice per statement.
func (r *StatsRepository) UpsertRecords(ctx context.Context, target stats.Target, records []stats.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	query, args, err := buildUpsertRecordsQuery(target, records, r.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("build upsert %s query: %w", target.Table, err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("upsert %s: %w", target.Table, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read upsert %s rows affected: %w", target.Table, err)
	}
	return int(affected), nil
}

func buildUpsertRecordsQuery(target stats.Target, records []stats.Record, now time.Time) (string, []any, error) {
	table, err := quoteIdentifier(target.Table)
	if err != nil {
		return "", nil, err
	}

	columns, err := qb.ModelColumns(statRecordTableModel{})
	if err != nil {
		return "", nil, err
	}
	if err := validateConflictKey(target.ConflictKey, columns); err != nil {
		return "", nil, err
	}

	collapsed := collapseByKey(records, target.ConflictKey)
	models := make([]statRecordTableModel, 0, len(collapsed))
	for _, record := range collapsed {
		model, err := toStatRecordModel(record, now)
		if err != nil {
			return "", nil, fmt.Errorf("player_id=%d: %w", record.PlayerID, err)
		}
		models = append(models, model)
	}

	return qb.InsertModels(table, models, qb.OnConflictDoUpdateStamped(table, target.ConflictKey, columns, stampColumns))
}

func validateConflictKey(key []string, columns []string) error {
	if len(key) == 0 {
		return fmt.Errorf("conflict key is required")
	}
	known := make(map[string]struct{}, len(columns))
	for _, column := range columns {
		known[column] = struct{}{}
	}
	for _, column := range key {
		if _, ok := known[column]; !ok {
			return fmt.Errorf("conflict key column %q is not a record column", column)
		}
	}
	return nil
}

// collapseByKey keeps the last record of every natural key, in order of that last occurrence.
func collapseByKey(records []stats.Record, key []string) []stats.Record {
	last := make(map[string]int, len(records))
	for i, record := range records {
		last[record.NaturalKey(key)] = i
	}
	if len(last) == len(records) {
		return records
	}

	out := make([]stats.Record, 0, len(last))
	for i, record := range records {
		if last[record.NaturalKey(key)] == i {
			out = append(out, record)
		}
	}
	return out
}

func toStatRecordModel(record stats.Record, now time.Time) (statRecordTableModel, error) {
	metrics := record.Metrics
	if metrics == nil {
		metrics = map[string]any{}
	}
	encoded, err := sonic.Marshal(metrics)
	if err != nil {
		return statRecordTableModel{}, fmt.Errorf("encode metrics: %w", err)
	}

	position := record.Position
	if position == "" {
		position = stats.DefaultPosition
	}
	syncedAt := record.SyncedAt
	if syncedAt.IsZero() {
		syncedAt = now
	}

	return statRecordTableModel{
		PlayerID:             record.PlayerID,
		TeamID:               record.TeamID,
		CompetitionEditionID: record.CompetitionEditionID,
		Position:             position,
		PlayerName:           nullableString(record.PlayerName),
		PlayerShortName:      nullableString(record.ShortName),
		PlayerBirthdate:      nullableString(record.PlayerBirthdate),
		TeamName:             nullableString(record.TeamName),
		CompetitionName:      nullableString(record.CompetitionName),
		SeasonName:           nullableString(record.SeasonName),
		Metrics:              string(encoded),
		SyncedAt:             syncedAt.UTC(),
		UpdatedAt:            now,
	}, nil
}
