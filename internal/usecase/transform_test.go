package usecase

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/riskibarqy/scouting-sync/internal/domain/pair"
	"github.com/riskibarqy/scouting-sync/internal/domain/stats"
)

func specFor(t *testing.T, domain stats.Domain) DomainSpec {
	t.Helper()
	specs, err := ResolveDomains(DefaultDomainSpecs(), []string{string(domain)})
	if err != nil {
		t.Fatalf("resolve %s: %v", domain, err)
	}
	return specs[0]
}

func TestTransform_PhysicalRenamesAndExcludes(t *testing.T) {
	t.Parallel()

	p := pair.Pair{TeamID: 4101, CompetitionEditionID: 870, TeamName: "Persija", CompetitionName: "Liga 1", SeasonName: "2024/2025"}
	raw := RawRecord{
		"player_id":               float64(55),
		"player_name":             "Rizky Ridho",
		"player_short_name":       "R. Ridho",
		"player_birthdate":        "2001-11-21",
		"team_id":                 float64(4101),
		"position_group":          "Center Back",
		"psv99":                   31.2,
		"total_distance_full_all": 10432.5,
		"quality_check":           true,
		"third":                   "all",
		"season_id":               float64(29),
		"id":                      float64(9001),
	}

	syncedAt := time.Date(2025, 4, 12, 9, 30, 0, 0, time.FixedZone("WIB", 7*3600))
	record, err := Transform(specFor(t, stats.DomainPhysical), raw, p, syncedAt)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	if record.PlayerID != 55 || record.TeamID != 4101 || record.CompetitionEditionID != 870 {
		t.Fatalf("unexpected identity: %+v", record)
	}
	if record.Position != "Center Back" {
		t.Fatalf("expected position from position_group, got %q", record.Position)
	}
	if record.PlayerName == nil || *record.PlayerName != "Rizky Ridho" {
		t.Fatalf("unexpected player name: %v", record.PlayerName)
	}
	if record.SeasonName == nil || *record.SeasonName != "2024/2025" {
		t.Fatalf("expected season from pair, got %v", record.SeasonName)
	}
	if record.Metrics["top_speed"] != 31.2 || record.Metrics["total_distance"] != 10432.5 {
		t.Fatalf("expected renamed metrics, got %v", record.Metrics)
	}
	for _, dropped := range []string{"quality_check", "third", "season_id", "id", "psv99", "player_id", "team_id"} {
		if _, ok := record.Metrics[dropped]; ok {
			t.Fatalf("metric %q must not be retained: %v", dropped, record.Metrics)
		}
	}
	if record.SyncedAt.Location() != time.UTC {
		t.Fatalf("expected synced_at in UTC, got %s", record.SyncedAt.Location())
	}
}

func TestTransform_DefaultsFromPair(t *testing.T) {
	t.Parallel()

	p := pair.Pair{TeamID: 7, CompetitionEditionID: 99, TeamName: "Bali United", CompetitionName: "Liga 1", SeasonName: "2024/2025"}
	record, err := Transform(specFor(t, stats.DomainPassing), RawRecord{"player": json.Number("12")}, p, time.Now())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	if record.PlayerID != 12 || record.TeamID != 7 || record.CompetitionEditionID != 99 {
		t.Fatalf("unexpected identity: %+v", record)
	}
	if record.Position != stats.DefaultPosition {
		t.Fatalf("expected default position, got %q", record.Position)
	}
	if record.PlayerName != nil || record.ShortName != nil || record.PlayerBirthdate != nil {
		t.Fatalf("absent optional fields must be nil: %+v", record)
	}
	if record.TeamName == nil || *record.TeamName != "Bali United" {
		t.Fatalf("expected team name from pair, got %v", record.TeamName)
	}
	if len(record.Metrics) != 0 {
		t.Fatalf("expected no metrics, got %v", record.Metrics)
	}
}

func TestTransform_FlattensNestedObjects(t *testing.T) {
	t.Parallel()

	raw := RawRecord{
		"player": map[string]any{"id": float64(3), "name": "Marc Klok"},
		"team":   map[string]any{"id": float64(4102), "name": "Persib"},
		"count_runs_per_match": 4.5,
	}
	record, err := Transform(specFor(t, stats.DomainOffBallRuns), raw, pair.Pair{TeamID: 1, CompetitionEditionID: 2}, time.Now())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	if record.PlayerID != 3 || record.TeamID != 4102 {
		t.Fatalf("unexpected identity: %+v", record)
	}
	if record.PlayerName == nil || *record.PlayerName != "Marc Klok" {
		t.Fatalf("expected flattened player name, got %v", record.PlayerName)
	}
	if record.Metrics["runs_per_match"] != 4.5 {
		t.Fatalf("expected renamed run metric, got %v", record.Metrics)
	}
}

func TestTransform_PlayersRoster(t *testing.T) {
	t.Parallel()

	raw := RawRecord{
		"id":               float64(808),
		"short_name":       "Witan",
		"birthday":         "2001-10-09",
		"first_name":       "Witan",
		"last_name":        "Sulaeman",
		"trackable_object": float64(123),
		"gender":           "male",
	}
	record, err := Transform(specFor(t, stats.DomainPlayers), raw, pair.Pair{TeamID: 4101, CompetitionEditionID: 870}, time.Now())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	if record.PlayerID != 808 {
		t.Fatalf("expected roster id as player_id, got %d", record.PlayerID)
	}
	if record.ShortName == nil || *record.ShortName != "Witan" || record.PlayerBirthdate == nil || *record.PlayerBirthdate != "2001-10-09" {
		t.Fatalf("unexpected roster metadata: %+v", record)
	}
	if _, ok := record.Metrics["gender"]; ok {
		t.Fatalf("excluded field retained: %v", record.Metrics)
	}
	if record.Metrics["last_name"] != "Sulaeman" {
		t.Fatalf("expected unlisted fields kept as metrics, got %v", record.Metrics)
	}
}

func TestTransform_CanonicalFieldWinsOverAlias(t *testing.T) {
	t.Parallel()

	raw := RawRecord{"player_id": float64(5), "player": float64(6), "team": float64(8), "team_id": float64(9)}
	record, err := Transform(specFor(t, stats.DomainPassing), raw, pair.Pair{}, time.Now())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if record.PlayerID != 5 || record.TeamID != 9 {
		t.Fatalf("expected canonical fields to win, got %+v", record)
	}
}

func TestTransform_NonFiniteMetricsBecomeNull(t *testing.T) {
	t.Parallel()

	raw := RawRecord{"player_id": float64(5), "xpass": math.NaN(), "xthreat": math.Inf(1), "passes": json.Number("40")}
	record, err := Transform(specFor(t, stats.DomainPassing), raw, pair.Pair{}, time.Now())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if record.Metrics["xpass"] != nil || record.Metrics["xthreat"] != nil {
		t.Fatalf("expected nil for non-finite metrics, got %v", record.Metrics)
	}
	if record.Metrics["passes"] != int64(40) {
		t.Fatalf("expected json.Number normalized to int64, got %T %v", record.Metrics["passes"], record.Metrics["passes"])
	}
}

func TestTransform_LargeNumericIDsStayExact(t *testing.T) {
	t.Parallel()

	raw := RawRecord{
		"player_id":   json.Number("9007199254740993"),
		"team_id":     json.Number("9007199254740995"),
		"birthdate":   "2001-02-03",
		"xpass":       json.Number("0.35"),
		"match_count": json.Number("9007199254740997"),
	}
	record, err := Transform(specFor(t, stats.DomainPassing), raw, pair.Pair{TeamID: 1, CompetitionEditionID: 2}, time.Now())
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if record.PlayerID != 9007199254740993 || record.TeamID != 9007199254740995 {
		t.Fatalf("ids lost precision: player=%d team=%d", record.PlayerID, record.TeamID)
	}
	if record.Metrics["xpass"] != 0.35 {
		t.Fatalf("expected fractional json.Number as float64, got %T %v", record.Metrics["xpass"], record.Metrics["xpass"])
	}
	if record.Metrics["match_count"] != int64(9007199254740997) {
		t.Fatalf("expected exact int64 metric, got %T %v", record.Metrics["match_count"], record.Metrics["match_count"])
	}
}

func TestTransform_MissingPlayerIsDefect(t *testing.T) {
	t.Parallel()

	cases := []RawRecord{
		{},
		{"player_id": nil},
		{"player_id": "abc"},
		{"player_id": 12.5},
		{"player_id": float64(0)},
		{"player_id": json.Number("12.5")},
	}
	for _, raw := range cases {
		_, err := Transform(specFor(t, stats.DomainPassing), raw, pair.Pair{TeamID: 1}, time.Now())
		if !errors.Is(err, ErrTransformDefect) {
			t.Fatalf("raw %v: expected ErrTransformDefect, got %v", raw, err)
		}
	}
}

func TestTransform_IsDeterministic(t *testing.T) {
	t.Parallel()

	raw := RawRecord{"player": float64(1), "player_id": float64(1), "group": "Midfield", "position_group": "Wide", "count_match": float64(3), "pass_completion_ratio": 0.87}
	spec := specFor(t, stats.DomainPassing)
	first, err := Transform(spec, raw, pair.Pair{}, time.Unix(0, 0))
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, err := Transform(spec, raw, pair.Pair{}, time.Unix(0, 0))
		if err != nil {
			t.Fatalf("transform: %v", err)
		}
		if again.Position != first.Position || again.Metrics["completion_ratio"] != first.Metrics["completion_ratio"] {
			t.Fatalf("transform is not deterministic: %+v vs %+v", again, first)
		}
	}
	if first.Position != "Midfield" {
		t.Fatalf("expected first alias in sorted order to win, got %q", first.Position)
	}
}
