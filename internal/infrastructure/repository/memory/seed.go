package memory

import "github.com/riskibarqy/scouting-sync/internal/domain/pair"

const (
	SeasonSeed      = "2024/2025"
	CompetitionSeed = "Liga 1 Indonesia"
)

// SeedPairs is the local reference set used when no database is configured.
func SeedPairs() []pair.Pair {
	return []pair.Pair{
		{TeamID: 4101, CompetitionEditionID: 870, TeamName: "Persija Jakarta", CompetitionName: CompetitionSeed, SeasonName: SeasonSeed},
		{TeamID: 4102, CompetitionEditionID: 870, TeamName: "Persib Bandung", CompetitionName: CompetitionSeed, SeasonName: SeasonSeed},
		{TeamID: 4103, CompetitionEditionID: 870, TeamName: "Persebaya Surabaya", CompetitionName: CompetitionSeed, SeasonName: SeasonSeed},
		{TeamID: 4104, CompetitionEditionID: 870, TeamName: "Bali United", CompetitionName: CompetitionSeed, SeasonName: SeasonSeed},
	}
}
