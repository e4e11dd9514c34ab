package postgres

import (
	"time"

	"github.com/rackside/pool-league/internal/domain/reschedule"
)

type rescheduleTableModel struct {
	ID                  string    `db:"id"`
	MatchID             string    `db:"match_id"`
	RequestedByPlayerID string    `db:"requested_by_player_id"`
	RespondingPlayerID  string    `db:"responding_player_id"`
	ProposedDate        time.Time `db:"proposed_date"`
	Status              string    `db:"status"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

func (m rescheduleTableModel) toRequest() reschedule.Request {
	return reschedule.Request{
		ID:                  m.ID,
		MatchID:             m.MatchID,
		RequestedByPlayerID: m.RequestedByPlayerID,
		RespondingPlayerID:  m.RespondingPlayerID,
		ProposedDate:        m.ProposedDate,
		Status:              reschedule.Status(m.Status),
	}
}
