package pair

// Pair is one (team, competition edition) combination that a sync run fetches statistics for.
type Pair struct {
	TeamID               int64
	CompetitionEditionID int64
	TeamName             string
	CompetitionName      string
	SeasonName           string
}

type Key struct {
	TeamID               int64
	CompetitionEditionID int64
}

func (p Pair) Key() Key {
	return Key{TeamID: p.TeamID, CompetitionEditionID: p.CompetitionEditionID}
}

// Filter narrows enumeration by exact season and competition name. Empty fields match everything.
type Filter struct {
	Season      string
	Competition string
}
