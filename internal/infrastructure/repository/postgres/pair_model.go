package postgres

import "database/sql"

const teamCompetitionEditionsTable = "team_competition_editions"

type teamCompetitionEditionTableModel struct {
	TeamID               int64          `db:"team_id"`
	CompetitionEditionID int64          `db:"competition_edition_id"`
	TeamName             sql.NullString `db:"team_name"`
	CompetitionName      sql.NullString `db:"competition_name"`
	SeasonName           sql.NullString `db:"season_name"`
}
