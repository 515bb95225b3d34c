package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/AdamBeresnev/bracket-resolver/internal/bracket"
	"github.com/AdamBeresnev/bracket-resolver/internal/middleware"
	"github.com/AdamBeresnev/bracket-resolver/internal/store"
	users "github.com/AdamBeresnev/bracket-resolver/internal/user"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

type ResolveResult struct {
	HasError bool   `json:"hasError"`
	Message  string `json:"message"`
}

// ResolveNotifier is told about every resolution pass that changed at least one match.
type ResolveNotifier interface {
	NotifyResolved(bracketID uuid.UUID, outcomes []bracket.Outcome, summary Summary)
}

type ResolveService struct {
	store    *store.BracketStore
	notifier ResolveNotifier
	logger   *slog.Logger
	locks    *bracketLocks
}

func NewResolveService(store *store.BracketStore, notifier ResolveNotifier, logger *slog.Logger) *ResolveService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResolveService{
		store:    store,
		notifier: notifier,
		logger:   logger,
		locks:    newBracketLocks(),
	}
}

// ResolveEntireBracket fills in the teams of every match whose feeder
// matches have finished. Passes over the same bracket run one at a time.
func (s *ResolveService) ResolveEntireBracket(ctx context.Context, bracketID string) (*ResolveResult, error) {
	if err := requireSetting(ctx, users.SettingEditAnyMatch); err != nil {
		return nil, err
	}

	release, err := s.locks.acquire(ctx, bracketID)
	if err != nil {
		return nil, err
	}
	defer release()

	b, err := s.store.GetBracket(ctx, bracketID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketNotFound
		}
		return nil, fmt.Errorf("failed to get bracket: %w", err)
	}
	if b.Layout == nil || strings.TrimSpace(*b.Layout) == "" {
		return nil, ErrBracketUnusable
	}

	layout, err := bracket.ParseLayout(*b.Layout)
	if err != nil {
		return nil, fmt.Errorf("bracket %s: %w", b.ID, err)
	}

	matches, err := s.store.GetMatches(ctx, bracketID)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}

	board, err := s.loadBoard(ctx, matches)
	if err != nil {
		return nil, fmt.Errorf("bracket %s: %w", b.ID, err)
	}

	outcomes := bracket.NewResolver(bracket.NewGraph(layout), s.logger).Resolve(board)
	summary := NewUpdateEmitter(s.store, s.logger).Emit(ctx, outcomes)

	s.logger.Info("resolved bracket", "bracket", b.ID, "updated", summary.Updated, "failed", summary.Failed)

	if summary.Updated > 0 && s.notifier != nil {
		s.notifier.NotifyResolved(b.ID, outcomes, summary)
	}

	return &ResolveResult{
		HasError: summary.HasError(),
		Message:  summary.Message(),
	}, nil
}

func (s *ResolveService) loadBoard(ctx context.Context, matches []bracket.Match) (*bracket.Board, error) {
	var ids []uuid.UUID
	for i := range matches {
		ids = append(ids, matches[i].TeamIDs()...)
	}

	teams, err := s.store.GetTeamsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get teams: %w", err)
	}

	teamMap := make(map[uuid.UUID]bracket.Team, len(teams))
	for _, t := range teams {
		teamMap[t.ID] = t
	}

	return bracket.NewBoard(matches, teamMap)
}

func requireSetting(ctx context.Context, setting string) error {
	user := middleware.GetAuthenticatedUser(ctx)
	if !user.Can(setting) {
		return ErrPermissionDenied
	}
	return nil
}

// bracketLocks hands out one single-slot semaphore per bracket id. An entry
// lives only while some pass holds or waits for it.
type bracketLocks struct {
	mu   sync.Mutex
	sems map[string]*bracketLock
}

type bracketLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newBracketLocks() *bracketLocks {
	return &bracketLocks{sems: make(map[string]*bracketLock)}
}

func (l *bracketLocks) acquire(ctx context.Context, bracketID string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.sems[bracketID]
	if !ok {
		lock = &bracketLock{sem: semaphore.NewWeighted(1)}
		l.sems[bracketID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	if err := lock.sem.Acquire(ctx, 1); err != nil {
		l.drop(bracketID, lock)
		return nil, fmt.Errorf("waiting for bracket %s: %w", bracketID, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			lock.sem.Release(1)
			l.drop(bracketID, lock)
		})
	}, nil
}

func (l *bracketLocks) drop(bracketID string, lock *bracketLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(l.sems, bracketID)
	}
}

func (l *bracketLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sems)
}
