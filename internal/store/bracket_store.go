package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/AdamBeresnev/bracket-resolver/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type BracketStore struct {
	db *sqlx.DB
}

func NewBracketStore(db *sqlx.DB) *BracketStore {
	return &BracketStore{db: db}
}

func (s *BracketStore) CreateBracket(ctx context.Context, tx *sqlx.Tx, b *bracket.Bracket) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO brackets (id, name, bracket_layout)
        VALUES (:id, :name, :bracket_layout)`, b)
	return err
}

func (s *BracketStore) CreateTeams(ctx context.Context, tx *sqlx.Tx, teams []bracket.Team) error {
	if len(teams) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO teams (id, code, name)
            VALUES (:id, :code, :name)`, teams)
	return err
}

func (s *BracketStore) CreateMatches(ctx context.Context, tx *sqlx.Tx, matches []bracket.Match) error {
	if len(matches) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, `INSERT INTO matches (id, bracket_id, match_number, team_1_id, team_2_id, score_1, score_2, first_to, placeholder_right)
		VALUES (:id, :bracket_id, :match_number, :team_1_id, :team_2_id, :score_1, :score_2, :first_to, :placeholder_right)`, matches)
	return err
}

func (s *BracketStore) GetBracket(ctx context.Context, id string) (*bracket.Bracket, error) {
	var b bracket.Bracket
	err := s.db.GetContext(ctx, &b, "SELECT * FROM brackets WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *BracketStore) ListBrackets(ctx context.Context) ([]bracket.Bracket, error) {
	var brackets []bracket.Bracket
	err := s.db.SelectContext(ctx, &brackets, "SELECT * FROM brackets ORDER BY created_at DESC")
	return brackets, err
}

// GetMatches returns the bracket's matches in bracket order.
func (s *BracketStore) GetMatches(ctx context.Context, bracketID string) ([]bracket.Match, error) {
	var matches []bracket.Match
	err := s.db.SelectContext(ctx, &matches, "SELECT * FROM matches WHERE bracket_id = ? ORDER BY match_number ASC", bracketID)
	return matches, err
}

func (s *BracketStore) GetMatch(ctx context.Context, id string) (*bracket.Match, error) {
	var m bracket.Match
	err := s.db.GetContext(ctx, &m, "SELECT * FROM matches WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *BracketStore) GetMatchTx(ctx context.Context, tx *sqlx.Tx, id string) (*bracket.Match, error) {
	var m bracket.Match
	err := tx.GetContext(ctx, &m, "SELECT * FROM matches WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *BracketStore) GetTeam(ctx context.Context, id string) (*bracket.Team, error) {
	var t bracket.Team
	err := s.db.GetContext(ctx, &t, "SELECT * FROM teams WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTeamsByIDs fetches every team in ids in one query. Unknown ids are
// simply absent from the result.
func (s *BracketStore) GetTeamsByIDs(ctx context.Context, ids []uuid.UUID) ([]bracket.Team, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]string, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}

	query, params, err := sqlx.In("SELECT * FROM teams WHERE id IN (?)", args)
	if err != nil {
		return nil, fmt.Errorf("failed to build team query: %w", err)
	}

	var teams []bracket.Team
	err = s.db.SelectContext(ctx, &teams, s.db.Rebind(query), params...)
	return teams, err
}

// UpdateMatchTeams replaces the team list of a match. It returns
// sql.ErrNoRows when the match does not exist.
func (s *BracketStore) UpdateMatchTeams(ctx context.Context, matchID uuid.UUID, teamIDs []uuid.UUID, placeholderRight bool) error {
	if len(teamIDs) > 2 {
		return fmt.Errorf("a match holds at most 2 teams, got %d", len(teamIDs))
	}

	var team1, team2 *uuid.UUID
	if len(teamIDs) > 0 {
		team1 = &teamIDs[0]
	}
	if len(teamIDs) > 1 {
		team2 = &teamIDs[1]
	}

	result, err := s.db.ExecContext(ctx, `UPDATE matches SET team_1_id = ?, team_2_id = ?, placeholder_right = ? WHERE id = ?`,
		team1, team2, placeholderRight, matchID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result)
}

func (s *BracketStore) UpdateMatchScore(ctx context.Context, tx *sqlx.Tx, m *bracket.Match) error {
	result, err := tx.NamedExecContext(ctx, `UPDATE matches SET score_1 = :score_1, score_2 = :score_2 WHERE id = :id`, m)
	if err != nil {
		return err
	}
	return checkAffectedRows(result)
}

func checkAffectedRows(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
