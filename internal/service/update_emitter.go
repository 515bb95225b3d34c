package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/AdamBeresnev/bracket-resolver/internal/bracket"
	"github.com/AdamBeresnev/bracket-resolver/internal/store"
	"github.com/AdamBeresnev/bracket-resolver/internal/utils"
	"github.com/google/uuid"
)

type MatchUpdater interface {
	UpdateMatchTeams(ctx context.Context, matchID uuid.UUID, teamIDs []uuid.UUID, placeholderRight bool) error
}

var _ MatchUpdater = (*store.BracketStore)(nil)

type Summary struct {
	Updated int
	Failed  int
}

func (s Summary) HasError() bool {
	return s.Failed > 0
}

func (s Summary) Message() string {
	var parts []string
	if s.Updated > 0 {
		parts = append(parts, utils.CountOf(s.Updated, "match", "matches")+" updated")
	}
	if s.Failed > 0 {
		parts = append(parts, utils.CountOf(s.Failed, "match", "matches")+" failed to update")
	}
	if len(parts) == 0 {
		return "No matches updated"
	}
	return strings.Join(parts, ", ")
}

// UpdateEmitter writes resolution outcomes back to the store one match at a time.
type UpdateEmitter struct {
	updater MatchUpdater
	logger  *slog.Logger
}

func NewUpdateEmitter(updater MatchUpdater, logger *slog.Logger) *UpdateEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdateEmitter{updater: updater, logger: logger}
}

// Emit persists outcomes in order. A failed update is counted and does not
// stop the remaining ones.
func (e *UpdateEmitter) Emit(ctx context.Context, outcomes []bracket.Outcome) Summary {
	var summary Summary
	for _, outcome := range outcomes {
		if len(outcome.Teams) == 0 {
			continue
		}

		err := e.updater.UpdateMatchTeams(ctx, outcome.MatchID, outcome.TeamIDs(), outcome.PlaceholderRight)
		if err != nil {
			e.logger.Error("failed to update match teams", "match", outcome.MatchNumber, "match_id", outcome.MatchID, "error", err)
			summary.Failed++
			continue
		}
		summary.Updated++
	}
	return summary
}
