package postgres

import (
	"database/sql"
	"time"
)

// statRecordTableModel is the shared row shape of every domain statistics table.
type statRecordTableModel struct {
	PlayerID             int64          `db:"player_id"`
	TeamID               int64          `db:"team_id"`
	CompetitionEditionID int64          `db:"competition_edition_id"`
	Position             string         `db:"position"`
	PlayerName           sql.NullString `db:"player_name"`
	PlayerShortName      sql.NullString `db:"player_short_name"`
	PlayerBirthdate      sql.NullString `db:"player_birthdate"`
	TeamName             sql.NullString `db:"team_name"`
	CompetitionName      sql.NullString `db:"competition_name"`
	SeasonName           sql.NullString `db:"season_name"`
	Metrics              string         `db:"metrics"`
	SyncedAt             time.Time      `db:"synced_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
}
