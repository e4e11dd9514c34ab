package match

// FinalizedEvent is emitted exactly when a discipline of a match reaches the
// finalized status. It carries everything the statistics aggregator needs so
// consumers never have to re-read match state.
type FinalizedEvent struct {
	MatchID    string     `json:"match_id"`
	LeagueID   string     `json:"league_id"`
	Discipline Discipline `json:"discipline"`
	WinnerID   string     `json:"winner_id"`
	LoserID    string     `json:"loser_id"`
	Bounty     *int64     `json:"bounty,omitempty"`
	Games      []Game     `json:"games"`
}

// DedupKey identifies the event for replay detection downstream.
func (e FinalizedEvent) DedupKey() string {
	return e.MatchID + ":" + string(e.Discipline)
}
