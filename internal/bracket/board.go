package bracket

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrMatchOutOfOrder = errors.New("bracket matches are not numbered in order")

// Slot is the working copy of one match during a resolution pass.
type Slot struct {
	Match Match
	Teams []Team
}

// Board holds the slots of a bracket in match order, slot i being match i+1.
type Board struct {
	slots []*Slot
}

// NewBoard expects matches in bracket order, numbered 1..n without gaps.
// Every team a match references must be present in teams.
func NewBoard(matches []Match, teams map[uuid.UUID]Team) (*Board, error) {
	slots := make([]*Slot, 0, len(matches))
	for i, m := range matches {
		if m.MatchNumber != i+1 {
			return nil, fmt.Errorf("%w: position %d holds match %d", ErrMatchOutOfOrder, i+1, m.MatchNumber)
		}
		slot := &Slot{Match: m}
		for _, id := range m.TeamIDs() {
			team, ok := teams[id]
			if !ok {
				return nil, fmt.Errorf("match %d references unknown team %s", m.MatchNumber, id)
			}
			slot.Teams = append(slot.Teams, team)
		}
		slots = append(slots, slot)
	}
	return &Board{slots: slots}, nil
}

func (b *Board) Slot(matchNumber int) (*Slot, bool) {
	if matchNumber < 1 || matchNumber > len(b.slots) {
		return nil, false
	}
	return b.slots[matchNumber-1], true
}

func (b *Board) Len() int {
	return len(b.slots)
}

// Matches returns the current match records, including assignments made by a resolution pass.
func (b *Board) Matches() []Match {
	matches := make([]Match, len(b.slots))
	for i, s := range b.slots {
		matches[i] = s.Match
	}
	return matches
}

func (s *Slot) assign(teams []Team, placeholderRight bool) {
	s.Teams = teams
	s.Match.Team1ID, s.Match.Team2ID = nil, nil
	if len(teams) > 0 {
		id := teams[0].ID
		s.Match.Team1ID = &id
	}
	if len(teams) > 1 {
		id := teams[1].ID
		s.Match.Team2ID = &id
	}
	s.Match.PlaceholderRight = placeholderRight
}

func (s *Slot) holds(teams []Team, placeholderRight bool) bool {
	if len(s.Teams) != len(teams) || s.Match.PlaceholderRight != placeholderRight {
		return false
	}
	for i := range teams {
		if s.Teams[i].ID != teams[i].ID {
			return false
		}
	}
	return true
}
