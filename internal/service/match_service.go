package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/bracket-resolver/internal/bracket"
	"github.com/AdamBeresnev/bracket-resolver/internal/store"
	users "github.com/AdamBeresnev/bracket-resolver/internal/user"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type MatchService struct {
	db    *sqlx.DB
	store *store.BracketStore
}

func NewMatchService(db *sqlx.DB, store *store.BracketStore) *MatchService {
	return &MatchService{db: db, store: store}
}

type MatchData struct {
	Match *bracket.Match `json:"match"`
	Team1 *bracket.Team  `json:"team1,omitempty"`
	Team2 *bracket.Team  `json:"team2,omitempty"`
}

func (s *MatchService) GetMatchViewData(ctx context.Context, matchIDStr string) (*MatchData, error) {
	match, err := s.store.GetMatch(ctx, matchIDStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}

	var team1, team2 *bracket.Team
	if match.Team1ID != nil {
		t, err := s.store.GetTeam(ctx, match.Team1ID.String())
		if err != nil {
			return nil, fmt.Errorf("failed to get team 1: %w", err)
		}
		team1 = t
	}
	if match.Team2ID != nil {
		t, err := s.store.GetTeam(ctx, match.Team2ID.String())
		if err != nil {
			return nil, fmt.Errorf("failed to get team 2: %w", err)
		}
		team2 = t
	}

	return &MatchData{
		Match: match,
		Team1: team1,
		Team2: team2,
	}, nil
}

// RecordScore sets the score of a seeded match. A match is decided once
// either score reaches its first to, and both reaching it is rejected.
func (s *MatchService) RecordScore(ctx context.Context, matchID uuid.UUID, score1, score2 int) (*bracket.Match, error) {
	if err := requireSetting(ctx, users.SettingEditAnyMatch); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := s.store.GetMatchTx(ctx, tx, matchID.String())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	if len(match.TeamIDs()) != 2 {
		return nil, ErrMatchNotReady
	}
	if score1 < 0 || score2 < 0 || score1 > match.FirstTo || score2 > match.FirstTo {
		return nil, fmt.Errorf("%w: scores must be between 0 and %d", ErrInvalidScore, match.FirstTo)
	}
	if score1 == match.FirstTo && score2 == match.FirstTo {
		return nil, fmt.Errorf("%w: only one team can reach %d", ErrInvalidScore, match.FirstTo)
	}

	match.Score1 = score1
	match.Score2 = score2

	if err := s.store.UpdateMatchScore(ctx, tx, match); err != nil {
		return nil, fmt.Errorf("failed to update match: %w", err)
	}

	return match, tx.Commit()
}
