package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AdamBeresnev/bracket-resolver/internal/bracket"
	"github.com/AdamBeresnev/bracket-resolver/internal/store"
	users "github.com/AdamBeresnev/bracket-resolver/internal/user"
	"github.com/AdamBeresnev/bracket-resolver/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type BracketService struct {
	db     *sqlx.DB
	store  *store.BracketStore
	logger *slog.Logger
}

func NewBracketService(db *sqlx.DB, store *store.BracketStore, logger *slog.Logger) *BracketService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BracketService{db: db, store: store, logger: logger}
}

type TeamInput struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// MatchInput describes one match of a custom layout. Teams holds indices
// into CreateBracketInput.Teams.
type MatchInput struct {
	Teams   []int `json:"teams"`
	FirstTo int   `json:"firstTo"`
}

type CreateBracketInput struct {
	Name    string      `json:"name"`
	FirstTo int         `json:"firstTo"`
	Teams   []TeamInput `json:"teams"`

	// Optional. Without a layout a single elimination bracket is generated
	// from the team order, first team being the top seed.
	Layout  json.RawMessage `json:"layout,omitempty"`
	Matches []MatchInput    `json:"matches,omitempty"`
}

type BracketData struct {
	Bracket *bracket.Bracket `json:"bracket"`
	Matches []bracket.Match  `json:"matches"`
	Teams   []bracket.Team   `json:"teams"`
}

func (s *BracketService) CreateBracket(ctx context.Context, input CreateBracketInput) (uuid.UUID, error) {
	if err := requireSetting(ctx, users.SettingEditAnyMatch); err != nil {
		return uuid.Nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return uuid.Nil, fmt.Errorf("%w: name is required", ErrInvalidBracketInput)
	}

	teams := make([]bracket.Team, 0, len(input.Teams))
	for i, t := range input.Teams {
		teamName := strings.TrimSpace(t.Name)
		if teamName == "" {
			return uuid.Nil, fmt.Errorf("%w: team %d has no name", ErrInvalidBracketInput, i+1)
		}
		teams = append(teams, bracket.Team{
			ID:   uuid.New(),
			Code: utils.OrZero(utils.StringOrNil(t.Code)),
			Name: teamName,
		})
		if teams[i].Code == "" {
			teams[i].Code = teamName
		}
	}

	bracketID := uuid.New()

	var layout *bracket.Layout
	var matches []bracket.Match
	var err error
	if len(input.Layout) == 0 {
		layout, matches, err = singleElimMatches(bracketID, teams, input.FirstTo)
	} else {
		layout, matches, err = customLayoutMatches(bracketID, teams, input)
	}
	if err != nil {
		return uuid.Nil, err
	}

	// Byes are complete from the start, advance them before storing
	teamMap := make(map[uuid.UUID]bracket.Team, len(teams))
	for _, t := range teams {
		teamMap[t.ID] = t
	}
	board, err := bracket.NewBoard(matches, teamMap)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidBracketInput, err)
	}
	bracket.NewResolver(bracket.NewGraph(layout), s.logger).Resolve(board)
	matches = board.Matches()

	rawLayout, err := json.Marshal(layout)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to encode layout: %w", err)
	}

	b := &bracket.Bracket{
		ID:     bracketID,
		Name:   name,
		Layout: utils.Ptr(string(rawLayout)),
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback()

	if err := s.store.CreateBracket(ctx, tx, b); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create bracket: %w", err)
	}
	if err := s.store.CreateTeams(ctx, tx, teams); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create teams: %w", err)
	}
	if err := s.store.CreateMatches(ctx, tx, matches); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create matches: %w", err)
	}

	s.logger.Info("created bracket", "bracket", bracketID, "teams", len(teams), "matches", len(matches))
	return bracketID, tx.Commit()
}

func singleElimMatches(bracketID uuid.UUID, teams []bracket.Team, firstTo int) (*bracket.Layout, []bracket.Match, error) {
	if len(teams) < 2 {
		return nil, nil, fmt.Errorf("%w: at least 2 teams are needed", ErrInvalidBracketInput)
	}
	if firstTo < 1 {
		return nil, nil, fmt.Errorf("%w: first to must be positive", ErrInvalidBracketInput)
	}

	layout, matchCount := GenerateSingleElimLayout(len(teams))

	matches := make([]bracket.Match, matchCount)
	for i := range matches {
		matches[i] = bracket.Match{
			ID:          uuid.New(),
			BracketID:   bracketID,
			MatchNumber: i + 1,
			FirstTo:     firstTo,
		}
	}

	for i, pair := range generateRound1Pairs(calcBracketSize(len(teams))) {
		m := &matches[i]
		m.Team1ID = &teams[pair[0]].ID
		if pair[1] < len(teams) {
			m.Team2ID = &teams[pair[1]].ID
			continue
		}
		// Bye, the lone team has already won
		m.Score1 = firstTo
	}

	return layout, matches, nil
}

func customLayoutMatches(bracketID uuid.UUID, teams []bracket.Team, input CreateBracketInput) (*bracket.Layout, []bracket.Match, error) {
	layout, err := bracket.ParseLayout(string(input.Layout))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidBracketInput, err)
	}

	for _, n := range layout.MatchNumbers() {
		if n > len(input.Matches) {
			return nil, nil, fmt.Errorf("%w: layout references match %d but only %d matches were given", ErrInvalidBracketInput, n, len(input.Matches))
		}
	}

	matches := make([]bracket.Match, len(input.Matches))
	for i, mi := range input.Matches {
		m := bracket.Match{
			ID:          uuid.New(),
			BracketID:   bracketID,
			MatchNumber: i + 1,
			FirstTo:     mi.FirstTo,
		}
		if m.FirstTo == 0 {
			m.FirstTo = input.FirstTo
		}
		if m.FirstTo < 1 {
			return nil, nil, fmt.Errorf("%w: match %d has no first to", ErrInvalidBracketInput, i+1)
		}
		if len(mi.Teams) > 2 {
			return nil, nil, fmt.Errorf("%w: match %d has more than 2 teams", ErrInvalidBracketInput, i+1)
		}

		for seat, index := range mi.Teams {
			if index < 0 || index >= len(teams) {
				return nil, nil, fmt.Errorf("%w: match %d references unknown team %d", ErrInvalidBracketInput, i+1, index)
			}
			if seat == 0 {
				m.Team1ID = &teams[index].ID
			} else {
				m.Team2ID = &teams[index].ID
			}
		}
		matches[i] = m
	}

	return layout, matches, nil
}

func (s *BracketService) GetBracketData(ctx context.Context, id string) (*BracketData, error) {
	b, err := s.store.GetBracket(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketNotFound
		}
		return nil, err
	}

	matches, err := s.store.GetMatches(ctx, id)
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	for i := range matches {
		ids = append(ids, matches[i].TeamIDs()...)
	}
	teams, err := s.store.GetTeamsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	return &BracketData{
		Bracket: b,
		Matches: matches,
		Teams:   teams,
	}, nil
}

func (s *BracketService) ListBrackets(ctx context.Context) ([]bracket.Bracket, error) {
	return s.store.ListBrackets(ctx)
}
