package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/scouting-sync/internal/domain/pair"
	qb "github.com/riskibarqy/scouting-sync/internal/platform/querybuilder"
)

// PairRepository reads the team/competition-edition reference table.
type PairRepository struct {
	db *sqlx.DB
}

func NewPairRepository(db *sqlx.DB) *PairRepository {
	return &PairRepository{db: db}
}

func (r *PairRepository) ListPage(ctx context.Context, filter pair.Filter, offset, limit int) ([]pair.Pair, error) {
	query, args, err := buildListPairsQuery(filter, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("build list reference pairs query: %w", err)
	}

	var rows []teamCompetitionEditionTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select reference pairs: %w", err)
	}

	out := make([]pair.Pair, 0, len(rows))
	for _, row := range rows {
		out = append(out, pair.Pair{
			TeamID:               row.TeamID,
			CompetitionEditionID: row.CompetitionEditionID,
			TeamName:             row.TeamName.String,
			CompetitionName:      row.CompetitionName.String,
			SeasonName:           row.SeasonName.String,
		})
	}
	return out, nil
}

func buildListPairsQuery(filter pair.Filter, offset, limit int) (string, []any, error) {
	if limit <= 0 {
		return "", nil, fmt.Errorf("limit must be > 0")
	}
	if offset < 0 {
		offset = 0
	}

	return qb.Select("team_id", "competition_edition_id", "team_name", "competition_name", "season_name").
		From(teamCompetitionEditionsTable).
		Where(
			eqIfSet("season_name", filter.Season),
			eqIfSet("competition_name", filter.Competition),
			qb.IsNull("deleted_at"),
		).
		OrderBy("id").
		Limit(limit).
		Offset(offset).
		ToSQL()
}
