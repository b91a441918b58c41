package stats

import (
	"strconv"
	"strings"
	"time"
)

type Domain string

const (
	DomainPhysical        Domain = "physical"
	DomainOffBallRuns     Domain = "off_ball_runs"
	DomainOnBallPressures Domain = "on_ball_pressures"
	DomainPassing         Domain = "passing"
	DomainPlayers         Domain = "players"
)

const (
	ColumnPlayerID             = "player_id"
	ColumnTeamID               = "team_id"
	ColumnCompetitionEditionID = "competition_edition_id"
	ColumnPosition             = "position"
)

// DefaultPosition is stored when the upstream row is not split by position.
const DefaultPosition = "ALL"

type Record struct {
	PlayerID             int64
	TeamID               int64
	CompetitionEditionID int64
	Position             string
	PlayerName           *string
	ShortName            *string
	PlayerBirthdate      *string
	TeamName             *string
	CompetitionName      *string
	SeasonName           *string
	Metrics              map[string]any
	SyncedAt             time.Time
}

// Target is the destination table of a domain and the columns that identify a row in it.
type Target struct {
	Table       string
	ConflictKey []string
}

// NaturalKey renders the record's values for the given key columns.
// Unknown columns render empty so a misconfigured key still groups deterministically.
func (r Record) NaturalKey(columns []string) string {
	parts := make([]string, 0, len(columns))
	for _, column := range columns {
		switch column {
		case ColumnPlayerID:
			parts = append(parts, strconv.FormatInt(r.PlayerID, 10))
		case ColumnTeamID:
			parts = append(parts, strconv.FormatInt(r.TeamID, 10))
		case ColumnCompetitionEditionID:
			parts = append(parts, strconv.FormatInt(r.CompetitionEditionID, 10))
		case ColumnPosition:
			parts = append(parts, r.Position)
		default:
			parts = append(parts, "")
		}
	}
	return strings.Join(parts, "|")
}
