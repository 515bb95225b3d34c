package views

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/AdamBeresnev/bracket-resolver/internal/bracket"
	"github.com/AdamBeresnev/bracket-resolver/internal/middleware"
	"github.com/AdamBeresnev/bracket-resolver/internal/service"
	users "github.com/AdamBeresnev/bracket-resolver/internal/user"
	"github.com/a-h/templ"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, ctx context.Context, c templ.Component) string {
	t.Helper()

	var b strings.Builder
	require.NoError(t, c.Render(ctx, &b))
	return b.String()
}

func TestResolveResult(t *testing.T) {
	html := render(t, context.Background(), ResolveResult(&service.ResolveResult{Message: "2 matches updated"}))
	assert.Contains(t, html, `class="resolve-ok"`)
	assert.Contains(t, html, "2 matches updated")

	html = render(t, context.Background(), ResolveResult(&service.ResolveResult{HasError: true, Message: "<b>1 match failed to update</b>"}))
	assert.Contains(t, html, `class="resolve-error"`)
	assert.NotContains(t, html, "<b>")
}

func TestBracketView(t *testing.T) {
	alpha := bracket.Team{ID: uuid.New(), Code: "ALP"}
	bravo := bracket.Team{ID: uuid.New(), Code: "BRV"}
	data := &service.BracketData{
		Bracket: &bracket.Bracket{ID: uuid.New(), Name: "Cup <Finals>"},
		Matches: []bracket.Match{
			{ID: uuid.New(), MatchNumber: 1, Team1ID: &alpha.ID, Team2ID: &bravo.ID, Score1: 2, FirstTo: 2},
			{ID: uuid.New(), MatchNumber: 2, Team1ID: &alpha.ID, FirstTo: 2},
		},
		Teams: []bracket.Team{alpha, bravo},
	}

	html := render(t, context.Background(), BracketView(data))
	assert.True(t, strings.HasPrefix(html, "<!doctype html>"))
	assert.Contains(t, html, "<title>Cup &lt;Finals&gt;</title>")
	assert.Contains(t, html, "Cup &lt;Finals&gt;")
	assert.Contains(t, html, `<a href="/matches/`+data.Matches[0].ID.String()+`">1</a>`)
	assert.Contains(t, html, "<td>ALP</td><td>2 - 0 (first to 2)</td><td>BRV</td>")
	assert.Contains(t, html, "<td>ALP</td>")
	assert.Contains(t, html, "<td>TBD</td><td>0 - 0 (first to 2)</td><td>ALP</td>", "lone team waits in seat 2")
	assert.NotContains(t, html, "Resolve bracket")

	editor := middleware.WithUser(context.Background(), &users.User{ID: uuid.New(), Username: "org", WebsiteSettings: users.SettingEditAnyMatch})
	html = render(t, editor, BracketView(data))
	assert.Contains(t, html, "/brackets/"+data.Bracket.ID.String()+"/resolve")
	assert.Contains(t, html, "Log out")
}

func TestRender(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("HX-Request", "true")
	w := httptest.NewRecorder()

	require.NoError(t, Render(w, r, LoginPage([]string{"discord"})))
	assert.True(t, IsHTMX(r))
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `href="/auth/discord"`)
	assert.Contains(t, w.Body.String(), "Continue as guest")
}

func TestScoreResult(t *testing.T) {
	m := &bracket.Match{ID: uuid.New(), Score1: 1, Score2: 3, FirstTo: 3}
	assert.Equal(t,
		`<div class="score" id="score-`+m.ID.String()+`"><span>1 - 3</span> <span>Finished</span></div>`,
		render(t, context.Background(), ScoreResult(m)))

	m.Score2 = 2
	assert.Contains(t, render(t, context.Background(), ScoreResult(m)), "In progress")
}

func TestMatchView(t *testing.T) {
	alpha := &bracket.Team{ID: uuid.New(), Code: "ALP", Name: "Alpha & Co"}
	bravo := &bracket.Team{ID: uuid.New(), Code: "BRV"}
	m := &bracket.Match{ID: uuid.New(), BracketID: uuid.New(), MatchNumber: 4, Team1ID: &alpha.ID, Team2ID: &bravo.ID, Score1: 1, FirstTo: 3}
	data := &service.MatchData{Match: m, Team1: alpha, Team2: bravo}

	editor := middleware.WithUser(context.Background(), &users.User{ID: uuid.New(), Username: "org", WebsiteSettings: users.SettingEditAnyMatch})
	viewer := middleware.WithUser(context.Background(), &users.User{ID: uuid.New(), Username: "fan"})

	t.Run("viewer", func(t *testing.T) {
		html := render(t, viewer, MatchView(data))
		assert.Contains(t, html, "<title>Match 4</title>")
		assert.Contains(t, html, `href="/brackets/`+m.BracketID.String()+`"`)
		assert.Contains(t, html, "<td>Alpha &amp; Co</td><td>vs</td><td>BRV</td>")
		assert.Contains(t, html, "<p>First to 3</p>")
		assert.Contains(t, html, `id="score-`+m.ID.String()+`"`)
		assert.NotContains(t, html, "<form hx-post")
	})

	t.Run("editor", func(t *testing.T) {
		html := render(t, editor, MatchView(data))
		assert.Contains(t, html, `<form hx-post="/matches/`+m.ID.String()+`/score" hx-target="#score-`+m.ID.String()+`" hx-swap="outerHTML">`)
		assert.Contains(t, html, `<input type="number" name="score1" min="0" max="3" value="1">`)
		assert.Contains(t, html, `<input type="number" name="score2" min="0" max="3" value="0">`)
	})

	t.Run("waiting for a team", func(t *testing.T) {
		waiting := &bracket.Match{ID: uuid.New(), BracketID: m.BracketID, MatchNumber: 5, Team1ID: &alpha.ID, FirstTo: 3}
		html := render(t, editor, MatchView(&service.MatchData{Match: waiting, Team1: alpha}))
		assert.Contains(t, html, "<td>Alpha &amp; Co</td><td>vs</td><td>TBD</td>")
		assert.NotContains(t, html, "<form hx-post")
	})
}

func TestMatchRows(t *testing.T) {
	alpha := bracket.Team{ID: uuid.New(), Code: "ALP"}
	bravo := bracket.Team{ID: uuid.New(), Code: "BRV"}
	data := &service.BracketData{
		Bracket: &bracket.Bracket{ID: uuid.New()},
		Matches: []bracket.Match{
			{MatchNumber: 1, Team1ID: &alpha.ID, Team2ID: &bravo.ID},
			{MatchNumber: 2, Team1ID: &alpha.ID, PlaceholderRight: true},
			{MatchNumber: 3, Team1ID: &bravo.ID},
			{MatchNumber: 4},
		},
		Teams: []bracket.Team{alpha, bravo},
	}

	var sides [][2]string
	for _, row := range matchRows(data) {
		sides = append(sides, [2]string{row.Left, row.Right})
	}
	assert.Equal(t, [][2]string{{"ALP", "BRV"}, {"ALP", "TBD"}, {"TBD", "BRV"}, {"TBD", "TBD"}}, sides)
}
