package stats

import "context"

type Repository interface {
	// UpsertRecords inserts or overwrites records by target.ConflictKey in one statement and returns rows affected.
	UpsertRecords(ctx context.Context, target Target, records []Record) (int, error)
}
