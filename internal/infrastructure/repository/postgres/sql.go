package postgres

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"
	qb "github.com/riskibarqy/scouting-sync/internal/platform/querybuilder"
)

var identifierRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// quoteIdentifier accepts only plain lower-case identifiers and returns them quoted.
func quoteIdentifier(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !identifierRegex.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return pq.QuoteIdentifier(name), nil
}

func nullableString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: trimmed, Valid: true}
}

// eqIfSet skips the filter when value is blank.
func eqIfSet(column, value string) qb.Condition {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return qb.Eq(column, value)
}
