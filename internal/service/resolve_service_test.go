package service

import (
	"context"
	"sync"
	"testing"

	"github.com/AdamBeresnev/bracket-resolver/internal/bracket"
	"github.com/AdamBeresnev/bracket-resolver/internal/middleware"
	"github.com/AdamBeresnev/bracket-resolver/internal/store"
	users "github.com/AdamBeresnev/bracket-resolver/internal/user"
	"github.com/AdamBeresnev/bracket-resolver/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []Summary
	ids   []uuid.UUID
}

func (n *recordingNotifier) NotifyResolved(bracketID uuid.UUID, _ []bracket.Outcome, summary Summary) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ids = append(n.ids, bracketID)
	n.calls = append(n.calls, summary)
}

type resolveFixture struct {
	db          *sqlx.DB
	store       *store.BracketStore
	teams       map[string]bracket.Team
	teamsStored bool
}

func newResolveFixture(t *testing.T) *resolveFixture {
	t.Helper()

	database := setupTestDB(t)
	t.Cleanup(func() { database.Close() })

	f := &resolveFixture{
		db:    database,
		store: store.NewBracketStore(database),
		teams: make(map[string]bracket.Team),
	}
	for _, code := range []string{"A", "B", "C", "D"} {
		f.teams[code] = bracket.Team{ID: uuid.New(), Code: code, Name: "Team " + code}
	}
	return f
}

// match builds a match with the given team codes in seat order
func (f *resolveFixture) match(number, firstTo, score1, score2 int, codes ...string) bracket.Match {
	m := bracket.Match{
		ID:          uuid.New(),
		MatchNumber: number,
		FirstTo:     firstTo,
		Score1:      score1,
		Score2:      score2,
	}
	if len(codes) > 0 {
		id := f.teams[codes[0]].ID
		m.Team1ID = &id
	}
	if len(codes) > 1 {
		id := f.teams[codes[1]].ID
		m.Team2ID = &id
	}
	return m
}

func (f *resolveFixture) insert(t *testing.T, layout *string, matches ...bracket.Match) uuid.UUID {
	t.Helper()

	b := &bracket.Bracket{ID: uuid.New(), Name: "Resolve Test", Layout: layout}
	for i := range matches {
		matches[i].BracketID = b.ID
	}

	ctx := context.Background()
	tx, err := f.db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, f.store.CreateBracket(ctx, tx, b))

	// Teams are shared by every bracket of a fixture
	if !f.teamsStored {
		teams := make([]bracket.Team, 0, len(f.teams))
		for _, team := range f.teams {
			teams = append(teams, team)
		}
		require.NoError(t, f.store.CreateTeams(ctx, tx, teams))
		f.teamsStored = true
	}

	require.NoError(t, f.store.CreateMatches(ctx, tx, matches))
	require.NoError(t, tx.Commit())
	return b.ID
}

func (f *resolveFixture) codes(t *testing.T, m bracket.Match) []string {
	t.Helper()

	var codes []string
	for _, id := range m.TeamIDs() {
		team, err := f.store.GetTeam(context.Background(), id.String())
		require.NoError(t, err)
		codes = append(codes, team.Code)
	}
	return codes
}

func (f *resolveFixture) matches(t *testing.T, bracketID uuid.UUID) []bracket.Match {
	t.Helper()

	matches, err := f.store.GetMatches(context.Background(), bracketID.String())
	require.NoError(t, err)
	return matches
}

func TestResolveEntireBracket(t *testing.T) {
	ctx := organiserCtx()

	t.Run("single elimination fill", func(t *testing.T) {
		f := newResolveFixture(t)
		notifier := &recordingNotifier{}
		svc := NewResolveService(f.store, notifier, nil)

		id := f.insert(t, utils.Ptr(`{"connections":{"1":{"win":"3.1"},"2":{"win":"3.2"},"3":{"win":"final"}}}`),
			f.match(1, 2, 2, 0, "A", "B"),
			f.match(2, 2, 1, 2, "C", "D"),
			f.match(3, 2, 0, 0),
		)

		result, err := svc.ResolveEntireBracket(ctx, id.String())
		require.NoError(t, err)
		assert.False(t, result.HasError)
		assert.Equal(t, "1 match updated", result.Message)

		matches := f.matches(t, id)
		assert.Equal(t, []string{"A", "B"}, f.codes(t, matches[0]))
		assert.Equal(t, []string{"C", "D"}, f.codes(t, matches[1]))
		assert.Equal(t, []string{"A", "D"}, f.codes(t, matches[2]))
		assert.False(t, matches[2].PlaceholderRight)

		require.Len(t, notifier.calls, 1)
		assert.Equal(t, id, notifier.ids[0])
		assert.Equal(t, 1, notifier.calls[0].Updated)
	})

	t.Run("loser routing", func(t *testing.T) {
		f := newResolveFixture(t)
		svc := NewResolveService(f.store, nil, nil)

		id := f.insert(t, utils.Ptr(`{"connections":{"1":{"lose":"5.2"},"5":{"win":"final"}}}`),
			f.match(1, 2, 0, 2, "A", "B"),
			f.match(2, 2, 0, 0),
			f.match(3, 2, 0, 0),
			f.match(4, 2, 0, 0),
			f.match(5, 2, 0, 0),
		)

		result, err := svc.ResolveEntireBracket(ctx, id.String())
		require.NoError(t, err)
		assert.Equal(t, "1 match updated", result.Message)

		matches := f.matches(t, id)
		assert.Equal(t, []string{"A"}, f.codes(t, matches[4]))
		assert.False(t, matches[4].PlaceholderRight)
	})

	t.Run("incomplete feeder", func(t *testing.T) {
		f := newResolveFixture(t)
		notifier := &recordingNotifier{}
		svc := NewResolveService(f.store, notifier, nil)

		id := f.insert(t, utils.Ptr(`{"connections":{"1":{"win":"3.1"},"2":{"win":"3.2"},"3":{"win":"final"}}}`),
			f.match(1, 2, 1, 1, "A", "B"),
			f.match(2, 2, 2, 1, "C", "D"),
			f.match(3, 2, 0, 0),
		)

		result, err := svc.ResolveEntireBracket(ctx, id.String())
		require.NoError(t, err)
		assert.Equal(t, "1 match updated", result.Message)

		final := f.matches(t, id)[2]
		assert.Equal(t, []string{"C"}, f.codes(t, final))
		assert.False(t, final.PlaceholderRight, "C waits in seat 2")
	})

	t.Run("nothing to resolve", func(t *testing.T) {
		f := newResolveFixture(t)
		notifier := &recordingNotifier{}
		svc := NewResolveService(f.store, notifier, nil)

		id := f.insert(t, utils.Ptr(`{"connections":{"1":{"win":"2.1"},"2":{"win":"final"}}}`),
			f.match(1, 2, 1, 0, "A", "B"),
			f.match(2, 2, 0, 0, "C", "D"),
		)

		result, err := svc.ResolveEntireBracket(ctx, id.String())
		require.NoError(t, err)
		assert.False(t, result.HasError)
		assert.Equal(t, "No matches updated", result.Message)
		assert.Empty(t, notifier.calls)

		// Fully seeded matches keep their teams
		assert.Equal(t, []string{"C", "D"}, f.codes(t, f.matches(t, id)[1]))
	})

	t.Run("repeated runs change nothing", func(t *testing.T) {
		f := newResolveFixture(t)
		notifier := &recordingNotifier{}
		svc := NewResolveService(f.store, notifier, nil)

		id := f.insert(t, utils.Ptr(`{"connections":{"1":{"win":"3.1"},"2":{"win":"3.2"},"3":{"win":"final"}}}`),
			f.match(1, 2, 2, 0, "A", "B"),
			f.match(2, 2, 0, 0, "C", "D"),
			f.match(3, 2, 0, 0),
		)

		first, err := svc.ResolveEntireBracket(ctx, id.String())
		require.NoError(t, err)
		assert.Equal(t, "1 match updated", first.Message)

		second, err := svc.ResolveEntireBracket(ctx, id.String())
		require.NoError(t, err)
		assert.Equal(t, "No matches updated", second.Message)
		assert.Len(t, notifier.calls, 1)

		final := f.matches(t, id)[2]
		assert.Equal(t, []string{"A"}, f.codes(t, final))
		assert.True(t, final.PlaceholderRight)
	})

	t.Run("uses results of matches filled earlier in the pass", func(t *testing.T) {
		f := newResolveFixture(t)
		svc := NewResolveService(f.store, nil, nil)

		// Match 3 already carries a score, so seeding it also decides match 4
		id := f.insert(t, utils.Ptr(`{"connections":{"1":{"win":"3.1"},"2":{"win":"3.2"},"3":{"win":"4.1"},"4":{"win":"final"}}}`),
			f.match(1, 1, 1, 0, "A", "B"),
			f.match(2, 1, 1, 0, "C"),
			f.match(3, 1, 0, 1),
			f.match(4, 1, 0, 0),
		)

		result, err := svc.ResolveEntireBracket(ctx, id.String())
		require.NoError(t, err)
		assert.Equal(t, "2 matches updated", result.Message)

		matches := f.matches(t, id)
		assert.Equal(t, []string{"A", "C"}, f.codes(t, matches[2]))
		assert.Equal(t, []string{"C"}, f.codes(t, matches[3]))
		assert.True(t, matches[3].PlaceholderRight)
	})
}

func TestResolveEntireBracketErrors(t *testing.T) {
	f := newResolveFixture(t)
	svc := NewResolveService(f.store, nil, nil)

	ctx := organiserCtx()

	t.Run("permission denied", func(t *testing.T) {
		id := f.insert(t, utils.Ptr(`{"connections":{"1":{"win":"final"}}}`), f.match(1, 1, 1, 0, "A", "B"))

		_, err := svc.ResolveEntireBracket(context.Background(), id.String())
		assert.ErrorIs(t, err, ErrPermissionDenied)

		viewer := middleware.WithUser(context.Background(), &users.User{ID: uuid.New(), WebsiteSettings: "Can view"})
		_, err = svc.ResolveEntireBracket(viewer, id.String())
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("unknown bracket", func(t *testing.T) {
		_, err := svc.ResolveEntireBracket(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrBracketNotFound)
	})

	t.Run("bracket without layout", func(t *testing.T) {
		id := f.insert(t, nil, f.match(1, 1, 1, 0, "A", "B"))

		_, err := svc.ResolveEntireBracket(ctx, id.String())
		assert.ErrorIs(t, err, ErrBracketUnusable)
	})

	t.Run("blank layout", func(t *testing.T) {
		id := f.insert(t, utils.Ptr("  "), f.match(1, 1, 1, 0, "A", "B"))

		_, err := svc.ResolveEntireBracket(ctx, id.String())
		assert.ErrorIs(t, err, ErrBracketUnusable)
	})

	t.Run("malformed layout", func(t *testing.T) {
		id := f.insert(t, utils.Ptr(`{"connections":{"1":`), f.match(1, 1, 1, 0, "A", "B"))

		_, err := svc.ResolveEntireBracket(ctx, id.String())
		assert.ErrorIs(t, err, bracket.ErrLayoutParse)
	})

	t.Run("layout without connections", func(t *testing.T) {
		id := f.insert(t, utils.Ptr(`{"rounds":3}`), f.match(1, 1, 1, 0, "A", "B"))

		_, err := svc.ResolveEntireBracket(ctx, id.String())
		assert.ErrorIs(t, err, bracket.ErrNoConnections)
	})

	t.Run("gap in match numbers", func(t *testing.T) {
		id := f.insert(t, utils.Ptr(`{"connections":{"1":{"win":"3.1"},"3":{"win":"final"}}}`),
			f.match(1, 1, 1, 0, "A", "B"), f.match(3, 1, 0, 0))

		_, err := svc.ResolveEntireBracket(ctx, id.String())
		assert.ErrorIs(t, err, bracket.ErrMatchOutOfOrder)
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		id := f.insert(t, utils.Ptr(`{"connections":{"1":{"win":"final"}}}`), f.match(1, 1, 1, 0, "A", "B"))

		release, err := svc.locks.acquire(context.Background(), id.String())
		require.NoError(t, err)
		defer release()

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err = svc.ResolveEntireBracket(cancelled, id.String())
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBracketLocks(t *testing.T) {
	locks := newBracketLocks()
	ctx := context.Background()

	release, err := locks.acquire(ctx, "a")
	require.NoError(t, err)

	// Other brackets are not blocked
	releaseB, err := locks.acquire(ctx, "b")
	require.NoError(t, err)
	releaseB()

	acquired := make(chan struct{})
	go func() {
		again, err := locks.acquire(ctx, "a")
		if err == nil {
			again()
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second pass on the same bracket did not wait")
	default:
	}

	release()
	<-acquired

	assert.Equal(t, 0, locks.len())
}

func TestBracketLocksArePruned(t *testing.T) {
	ctx := context.Background()

	t.Run("released", func(t *testing.T) {
		locks := newBracketLocks()
		for i := 0; i < 50; i++ {
			release, err := locks.acquire(ctx, uuid.NewString())
			require.NoError(t, err)
			release()
		}
		assert.Equal(t, 0, locks.len())
	})

	t.Run("release twice", func(t *testing.T) {
		locks := newBracketLocks()
		release, err := locks.acquire(ctx, "a")
		require.NoError(t, err)
		release()
		release()
		assert.Equal(t, 0, locks.len())

		again, err := locks.acquire(ctx, "a")
		require.NoError(t, err)
		again()
	})

	t.Run("waiter gives up", func(t *testing.T) {
		locks := newBracketLocks()
		release, err := locks.acquire(ctx, "a")
		require.NoError(t, err)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err = locks.acquire(cancelled, "a")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, locks.len())

		release()
		assert.Equal(t, 0, locks.len())
	})

	t.Run("unknown brackets leave nothing behind", func(t *testing.T) {
		f := newResolveFixture(t)
		svc := NewResolveService(f.store, nil, nil)

		for i := 0; i < 10; i++ {
			_, err := svc.ResolveEntireBracket(organiserCtx(), uuid.NewString())
			assert.ErrorIs(t, err, ErrBracketNotFound)
		}
		assert.Equal(t, 0, svc.locks.len())
	})
}
