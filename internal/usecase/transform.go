package usecase

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/riskibarqy/scouting-sync/internal/domain/pair"
	"github.com/riskibarqy/scouting-sync/internal/domain/stats"
)

// RawRecord is one upstream row as decoded from JSON.
type RawRecord map[string]any

// sharedRenames normalizes identity fields that the upstream spells differently per endpoint.
var sharedRenames = map[string]string{
	"player":                   "player_id",
	"player_birthday":          "player_birthdate",
	"birthdate":                "player_birthdate",
	"team":                     "team_id",
	"competition_edition":      "competition_edition_id",
	"position_group":           "position",
	"group":                    "position",
	"competition_edition_name": "competition_name",
	"season":                   "season_name",
}

var identityFields = map[string]struct{}{
	stats.ColumnPlayerID:             {},
	stats.ColumnTeamID:               {},
	stats.ColumnCompetitionEditionID: {},
	stats.ColumnPosition:             {},
	"player_name":                    {},
	"player_short_name":              {},
	"player_birthdate":               {},
	"team_name":                      {},
	"competition_name":               {},
	"season_name":                    {},
}

// Transform maps one upstream row to a storage record. It is pure: the same input always yields the same record.
// Identity fields missing upstream fall back to the pair; a row without a player id is ErrTransformDefect.
func Transform(spec DomainSpec, raw RawRecord, p pair.Pair, syncedAt time.Time) (stats.Record, error) {
	fields := make(map[string]any, len(raw))
	flatten("", raw, fields)

	renamed := make(map[string]any, len(fields))
	for _, key := range sortedKeys(fields) {
		target := renameField(spec, key)
		if target != key {
			if _, canonicalPresent := fields[target]; canonicalPresent {
				continue
			}
			if _, taken := renamed[target]; taken {
				continue
			}
		}
		renamed[target] = fields[key]
	}
	for _, key := range sharedExcluded {
		delete(renamed, key)
	}
	for _, key := range spec.Excluded {
		delete(renamed, key)
	}

	playerID, ok := toInt64(renamed[stats.ColumnPlayerID])
	if !ok || playerID <= 0 {
		return stats.Record{}, fmt.Errorf("%w: domain=%s record has no usable player_id (got %v)", ErrTransformDefect, spec.Name, renamed[stats.ColumnPlayerID])
	}

	record := stats.Record{
		PlayerID:             playerID,
		TeamID:               int64OrDefault(renamed[stats.ColumnTeamID], p.TeamID),
		CompetitionEditionID: int64OrDefault(renamed[stats.ColumnCompetitionEditionID], p.CompetitionEditionID),
		Position:             stats.DefaultPosition,
		PlayerName:           optionalString(renamed["player_name"]),
		ShortName:            optionalString(renamed["player_short_name"]),
		PlayerBirthdate:      optionalString(renamed["player_birthdate"]),
		TeamName:             optionalStringOrDefault(renamed["team_name"], p.TeamName),
		CompetitionName:      optionalStringOrDefault(renamed["competition_name"], p.CompetitionName),
		SeasonName:           optionalStringOrDefault(renamed["season_name"], p.SeasonName),
		Metrics:              make(map[string]any, len(renamed)),
		SyncedAt:             syncedAt.UTC(),
	}
	if position := optionalString(renamed[stats.ColumnPosition]); position != nil {
		record.Position = *position
	}

	for key, value := range renamed {
		if _, isIdentity := identityFields[key]; isIdentity {
			continue
		}
		record.Metrics[key] = normalizeMetric(value)
	}

	return record, nil
}

func renameField(spec DomainSpec, key string) string {
	if renamed, ok := spec.Renames[key]; ok {
		return renamed
	}
	if renamed, ok := sharedRenames[key]; ok {
		return renamed
	}
	return key
}

// flatten lifts nested objects into parent_child keys, e.g. {"team":{"id":1}} becomes team_id.
// The first spelling of a key in sorted order wins on collision.
func flatten(prefix string, in map[string]any, out map[string]any) {
	for _, key := range sortedKeys(in) {
		value := in[key]
		name := strings.ToLower(strings.TrimSpace(key))
		if prefix != "" {
			name = prefix + "_" + name
		}
		if nested, ok := value.(map[string]any); ok {
			flatten(name, nested, out)
			continue
		}
		if _, exists := out[name]; !exists {
			out[name] = value
		}
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func normalizeMetric(value any) any {
	switch v := value.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return v
	default:
		return v
	}
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		i, err := v.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

func int64OrDefault(value any, fallback int64) int64 {
	if v, ok := toInt64(value); ok && v > 0 {
		return v
	}
	return fallback
}

func optionalString(value any) *string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil
		}
		return &trimmed
	case json.Number:
		s := v.String()
		return &s
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s
	default:
		s := fmt.Sprint(v)
		return &s
	}
}

func optionalStringOrDefault(value any, fallback string) *string {
	if v := optionalString(value); v != nil {
		return v
	}
	return optionalString(fallback)
}
