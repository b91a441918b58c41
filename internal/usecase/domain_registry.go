package usecase

import (
	"fmt"
	"sort"
	"strings"

	"github.com/riskibarqy/scouting-sync/internal/domain/stats"
)

// DomainSpec is everything the generic cell runner needs to sync one statistic category.
type DomainSpec struct {
	Name     stats.Domain
	Endpoint string
	Paged    bool
	Target   stats.Target
	// ChunkSize splits writes into several upserts; zero writes everything at once.
	ChunkSize int
	// Renames maps flattened upstream field names to storage names, applied after the shared renames.
	Renames map[string]string
	// Excluded lists storage-side field names the schema does not retain.
	Excluded []string
}

var (
	keyWithTeam    = []string{stats.ColumnPlayerID, stats.ColumnTeamID, stats.ColumnCompetitionEditionID, stats.ColumnPosition}
	keyWithoutTeam = []string{stats.ColumnPlayerID, stats.ColumnCompetitionEditionID, stats.ColumnPosition}
)

// sharedExcluded is dropped from every domain in addition to its own list.
var sharedExcluded = []string{"id", "url", "season_id", "competition_id", "data_version"}

func DefaultDomainSpecs() []DomainSpec {
	return []DomainSpec{
		{
			Name:     stats.DomainPhysical,
			Endpoint: "/api/physical/",
			Paged:    false,
			Target:   stats.Target{Table: "physical_stats", ConflictKey: keyWithTeam},
			Renames: map[string]string{
				"psv99":                     "top_speed",
				"psv99_top5":                "top_speed_top5",
				"total_distance_full_all":   "total_distance",
				"hi_distance_full_all":      "high_intensity_distance",
				"sprint_distance_full_all":  "sprint_distance",
				"count_sprint_full_all":     "sprint_count",
				"minutes_full_all":          "minutes",
				"count_match":               "match_count",
				"running_distance_full_all": "running_distance",
			},
			Excluded: []string{"quality_check", "count_match_failed", "physical_check_passed", "third", "date"},
		},
		{
			Name:     stats.DomainOffBallRuns,
			Endpoint: "/api/in_possession/off_ball_runs/",
			Paged:    true,
			Target:   stats.Target{Table: "off_ball_run_stats", ConflictKey: keyWithoutTeam},
			Renames: map[string]string{
				"count_runs_per_match":                 "runs_per_match",
				"count_dangerous_runs_per_match":       "dangerous_runs_per_match",
				"count_runs_leading_to_goal_per_match": "runs_leading_to_goal_per_match",
				"minutes_played_per_match":             "minutes_per_match",
			},
			Excluded: []string{"third", "channel", "run_subtype", "adjusted_min_tip_per_match", "count_match"},
		},
		{
			Name:     stats.DomainOnBallPressures,
			Endpoint: "/api/in_possession/on_ball_pressures/",
			Paged:    true,
			Target:   stats.Target{Table: "on_ball_pressure_stats", ConflictKey: keyWithoutTeam},
			Renames: map[string]string{
				"count_pressures_received_per_match":  "pressures_received_per_match",
				"ball_retention_ratio_under_pressure": "retention_ratio_under_pressure",
				"minutes_played_per_match":            "minutes_per_match",
			},
			Excluded: []string{"third", "channel", "pressure_intensity", "adjusted_min_tip_per_match", "count_match"},
		},
		{
			Name:     stats.DomainPassing,
			Endpoint: "/api/in_possession/passes/",
			Paged:    true,
			Target:   stats.Target{Table: "passing_stats", ConflictKey: keyWithoutTeam},
			Renames: map[string]string{
				"count_pass_attempts_per_match":  "pass_attempts_per_match",
				"count_completed_pass_per_match": "completed_passes_per_match",
				"pass_completion_ratio":          "completion_ratio",
				"minutes_played_per_match":       "minutes_per_match",
			},
			Excluded: []string{"third", "channel", "run_subtype", "adjusted_min_tip_per_match", "count_match"},
		},
		{
			Name:      stats.DomainPlayers,
			Endpoint:  "/api/players/",
			Paged:     true,
			Target:    stats.Target{Table: "competition_players", ConflictKey: []string{stats.ColumnPlayerID, stats.ColumnTeamID, stats.ColumnCompetitionEditionID}},
			ChunkSize: 100,
			Renames: map[string]string{
				"id":         "player_id",
				"short_name": "player_short_name",
				"birthday":   "player_birthdate",
			},
			Excluded: []string{"trackable_object", "gender", "player_role", "team_role"},
		},
	}
}

// ResolveDomains returns the specs for the named domains in registry order.
// An empty list selects every domain. Unknown names fail with ErrInvalidInput.
func ResolveDomains(specs []DomainSpec, names []string) ([]DomainSpec, error) {
	if len(names) == 0 {
		return append([]DomainSpec(nil), specs...), nil
	}

	wanted := make(map[stats.Domain]struct{}, len(names))
	for _, raw := range names {
		name := stats.Domain(strings.ToLower(strings.TrimSpace(raw)))
		if name == "" {
			continue
		}
		wanted[name] = struct{}{}
	}

	out := make([]DomainSpec, 0, len(wanted))
	for _, spec := range specs {
		if _, ok := wanted[spec.Name]; ok {
			out = append(out, spec)
			delete(wanted, spec.Name)
		}
	}
	if len(wanted) > 0 {
		unknown := make([]string, 0, len(wanted))
		for name := range wanted {
			unknown = append(unknown, string(name))
		}
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: unknown domain(s) %s", ErrInvalidInput, strings.Join(unknown, ", "))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: at least one domain is required", ErrInvalidInput)
	}
	return out, nil
}

func DomainNames(specs []DomainSpec) []string {
	out := make([]string, 0, len(specs))
	for _, spec := range specs {
		out = append(out, string(spec.Name))
	}
	return out
}
