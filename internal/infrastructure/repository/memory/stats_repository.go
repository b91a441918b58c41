package memory

import (
	"context"
	"fmt"
	"maps"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/scouting-sync/internal/domain/stats"
)

// StatsRepository stores records per table keyed by the target's conflict columns.
type StatsRepository struct {
	mu     sync.RWMutex
	tables map[string]map[string]stats.Record
}

func NewStatsRepository() *StatsRepository {
	return &StatsRepository{tables: make(map[string]map[string]stats.Record)}
}

func (r *StatsRepository) UpsertRecords(ctx context.Context, target stats.Target, records []stats.Record) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	table := strings.TrimSpace(target.Table)
	if table == "" {
		return 0, fmt.Errorf("upsert records: table is required")
	}
	if len(target.ConflictKey) == 0 {
		return 0, fmt.Errorf("upsert records into %s: conflict key is required", table)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rows, ok := r.tables[table]
	if !ok {
		rows = make(map[string]stats.Record)
		r.tables[table] = rows
	}

	for _, record := range records {
		key := record.NaturalKey(target.ConflictKey)
		incoming := cloneRecord(record)
		if stored, ok := rows[key]; ok && sameContent(stored, incoming) {
			incoming.SyncedAt = stored.SyncedAt
		}
		rows[key] = incoming
	}
	return len(records), nil
}

// Rows returns the stored rows of table ordered by natural key.
func (r *StatsRepository) Rows(table string) []stats.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.tables[table]
	keys := make([]string, 0, len(rows))
	for key := range rows {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]stats.Record, 0, len(keys))
	for _, key := range keys {
		out = append(out, cloneRecord(rows[key]))
	}
	return out
}

func (r *StatsRepository) Count(table string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tables[table])
}

func sameContent(a, b stats.Record) bool {
	a.SyncedAt, b.SyncedAt = time.Time{}, time.Time{}
	return reflect.DeepEqual(a, b)
}

func cloneRecord(record stats.Record) stats.Record {
	if record.Metrics != nil {
		record.Metrics = maps.Clone(record.Metrics)
	}
	return record
}
