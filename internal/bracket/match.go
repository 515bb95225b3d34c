package bracket

import (
	"time"

	"github.com/google/uuid"
)

type Team struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"-"`
}

type Bracket struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Name string    `db:"name" json:"name"`

	// Raw routing graph, see ParseLayout
	Layout *string `db:"bracket_layout" json:"layout,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type Match struct {
	ID        uuid.UUID `db:"id" json:"id"`
	BracketID uuid.UUID `db:"bracket_id" json:"bracketId"`

	// 1-based position in the bracket's ordered match list
	MatchNumber int `db:"match_number" json:"matchNumber"`

	// Compact team list: Team2ID is only set when Team1ID is
	Team1ID *uuid.UUID `db:"team_1_id" json:"team1Id,omitempty"`
	Team2ID *uuid.UUID `db:"team_2_id" json:"team2Id,omitempty"`

	Score1  int `db:"score_1" json:"score1"`
	Score2  int `db:"score_2" json:"score2"`
	FirstTo int `db:"first_to" json:"firstTo"`

	// A single assigned team occupies seat 1 instead of seat 2
	PlaceholderRight bool `db:"placeholder_right" json:"placeholderRight"`

	CreatedAt time.Time `db:"created_at" json:"-"`
}

func (m *Match) TeamIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, 2)
	if m.Team1ID != nil {
		ids = append(ids, *m.Team1ID)
	}
	if m.Team2ID != nil {
		ids = append(ids, *m.Team2ID)
	}
	return ids
}

func (m *Match) IsComplete() bool {
	return m.FirstTo > 0 && (m.Score1 == m.FirstTo || m.Score2 == m.FirstTo)
}

// WinnerIndex returns the team list index of the winner of a complete match.
// Score1 is checked first, so a match where both scores reached FirstTo
// counts as won by the first team.
func (m *Match) WinnerIndex() (int, bool) {
	if !m.IsComplete() {
		return 0, false
	}
	if m.Score1 == m.FirstTo {
		return 0, true
	}
	return 1, true
}
