package bracket

import (
	"log/slog"

	"github.com/google/uuid"
)

// Outcome is the team assignment a resolution pass decided for one match.
// Seats[i] is the seat (1 or 2) Teams[i] was placed in.
type Outcome struct {
	MatchNumber      int
	MatchID          uuid.UUID
	Teams            []Team
	Seats            []int
	PlaceholderRight bool
}

func (o Outcome) TeamIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(o.Teams))
	for i, t := range o.Teams {
		ids[i] = t.ID
	}
	return ids
}

type Resolver struct {
	graph  *Graph
	logger *slog.Logger
}

func NewResolver(graph *Graph, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{graph: graph, logger: logger}
}

// Resolve fills seats of undecided matches from completed feeder matches and
// returns the matches whose teams changed, in match order. The board is
// updated as the pass goes, so a match fed by one resolved earlier in the
// same pass sees its result.
func (r *Resolver) Resolve(board *Board) []Outcome {
	return r.resolveInOrder(board, r.graph.MatchNumbers())
}

// Feeders always carry smaller numbers than their targets, so a single
// ascending pass is enough.
func (r *Resolver) resolveInOrder(board *Board, numbers []int) []Outcome {
	var outcomes []Outcome
	for _, number := range numbers {
		slot, ok := board.Slot(number)
		if !ok {
			r.logger.Warn("layout references a match outside the bracket", "match", number, "matches", board.Len())
			continue
		}

		// Fully seeded matches are never touched again
		if len(slot.Teams) == 2 {
			continue
		}

		outcome, ok := r.resolveMatch(board, number, slot)
		if !ok {
			continue
		}
		if slot.holds(outcome.Teams, outcome.PlaceholderRight) {
			continue
		}

		slot.assign(outcome.Teams, outcome.PlaceholderRight)
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (r *Resolver) resolveMatch(board *Board, number int, slot *Slot) (Outcome, bool) {
	var seats [2]*Team

	if len(slot.Teams) == 1 {
		held := slot.Teams[0]
		if slot.Match.PlaceholderRight {
			seats[0] = &held
		} else {
			seats[1] = &held
		}
	}

	feeders := r.graph.FeedersOf(number)
	r.logger.Debug("resolving match", "match", number, "feeders", feeders)

	for _, feeder := range feeders {
		if feeder.Seat != 1 && feeder.Seat != 2 {
			r.logger.Warn("ignoring feeder with invalid seat", "match", number, "source", feeder.Source, "seat", feeder.Seat)
			continue
		}

		source, ok := board.Slot(feeder.Source)
		if !ok {
			continue
		}

		index, complete := source.Match.WinnerIndex()
		if !complete {
			continue
		}
		if feeder.Role == RoleLoser {
			index = 1 - index
		}

		if index >= len(source.Teams) {
			r.logger.Warn("completed feeder has no team to route", "match", number, "source", feeder.Source, "role", feeder.Role)
			continue
		}

		team := source.Teams[index]
		seats[feeder.Seat-1] = &team
	}

	outcome := Outcome{MatchNumber: number, MatchID: slot.Match.ID}
	for i, team := range seats {
		if team == nil {
			continue
		}
		outcome.Teams = append(outcome.Teams, *team)
		outcome.Seats = append(outcome.Seats, i+1)
	}

	switch len(outcome.Teams) {
	case 0:
		return Outcome{}, false
	case 1:
		outcome.PlaceholderRight = outcome.Seats[0] == 1
	}

	r.logger.Debug("resolved match", "match", number, "teams", teamCodes(outcome.Teams), "placeholder_right", outcome.PlaceholderRight)
	return outcome, true
}

func teamCodes(teams []Team) []string {
	codes := make([]string, len(teams))
	for i, t := range teams {
		codes[i] = t.Code
	}
	return codes
}
