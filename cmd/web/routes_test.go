package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/AdamBeresnev/bracket-resolver/internal/db"
	"github.com/AdamBeresnev/bracket-resolver/internal/live"
	"github.com/AdamBeresnev/bracket-resolver/internal/middleware"
	"github.com/AdamBeresnev/bracket-resolver/internal/service"
	"github.com/AdamBeresnev/bracket-resolver/internal/store"
	users "github.com/AdamBeresnev/bracket-resolver/internal/user"
	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/markbates/goth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	client    *http.Client
	userStore *store.UserStore
	users     *service.UserService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, appOptions{})
}

func newTestServerWith(t *testing.T, opts appOptions) *testServer {
	t.Helper()

	database, err := db.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	database.SetMaxOpenConns(1)
	require.NoError(t, db.RunMigrations(database.DB, "file://../../migrations"))
	t.Cleanup(func() { database.Close() })

	app := newApplication(database, scs.New(), live.NewHub(nil, nil), opts, nil)
	srv := httptest.NewServer(app.routes())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testServer{
		Server:    srv,
		client:    &http.Client{Jar: jar},
		userStore: app.userStore,
		users:     app.users,
	}
}

func (ts *testServer) loginAsGuest(t *testing.T) {
	t.Helper()

	resp, err := ts.client.Post(ts.URL+"/auth/guest", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func (ts *testServer) grantEditing(t *testing.T) {
	t.Helper()

	ctx := context.Background()
	guest, err := ts.userStore.GetUser(ctx, uuid.MustParse(middleware.SuperUserID))
	require.NoError(t, err)
	guest.WebsiteSettings = users.SettingEditAnyMatch
	require.NoError(t, ts.userStore.UpdateWebsiteSettings(ctx, guest))
}

func (ts *testServer) getHTML(t *testing.T, path string) string {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, ts.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/html")
	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func (ts *testServer) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := ts.client.Post(ts.URL+path, "application/json", strings.NewReader(string(raw)))
	require.NoError(t, err)
	return resp
}

func TestRequiresLogin(t *testing.T) {
	ts := newTestServer(t)

	ts.client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	resp, err := ts.client.Get(ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestGuestCannotEdit(t *testing.T) {
	ts := newTestServer(t)
	ts.loginAsGuest(t)

	resp := ts.postJSON(t, "/brackets", service.CreateBracketInput{
		Name: "Cup", FirstTo: 2, Teams: []service.TeamInput{{Name: "A"}, {Name: "B"}},
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, err := ts.client.Post(ts.URL+"/brackets/"+uuid.NewString()+"/resolve", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestBracketFlow(t *testing.T) {
	ts := newTestServer(t)
	ts.loginAsGuest(t)
	ts.grantEditing(t)

	resp := ts.postJSON(t, "/brackets", service.CreateBracketInput{
		Name:    "Cup",
		FirstTo: 2,
		Teams:   []service.TeamInput{{Code: "A", Name: "Alpha"}, {Code: "B", Name: "Bravo"}, {Code: "C", Name: "Charlie"}, {Code: "D", Name: "Delta"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	page := ts.getHTML(t, "/brackets/"+created.ID.String())
	assert.Contains(t, page, "Resolve bracket")

	resp, err := ts.client.Get(ts.URL + "/brackets/" + created.ID.String())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var data service.BracketData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
	resp.Body.Close()
	require.Len(t, data.Matches, 3)

	for _, m := range data.Matches[:2] {
		form := url.Values{"score1": {"2"}, "score2": {"0"}}
		resp, err := ts.client.PostForm(ts.URL+"/matches/"+m.ID.String()+"/score", form)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err = ts.client.Post(ts.URL+"/brackets/"+created.ID.String()+"/resolve", "", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result service.ResolveResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	resp.Body.Close()
	assert.False(t, result.HasError)
	assert.Equal(t, "1 match updated", result.Message)

	final := data.Matches[2]
	resp, err = ts.client.Get(ts.URL + "/matches/" + final.ID.String())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var finalData service.MatchData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&finalData))
	resp.Body.Close()
	require.NotNil(t, finalData.Team1)
	require.NotNil(t, finalData.Team2)
	assert.Equal(t, "A", finalData.Team1.Code)
	assert.Equal(t, "B", finalData.Team2.Code)

	page = ts.getHTML(t, "/matches/"+final.ID.String())
	assert.Contains(t, page, `hx-post="/matches/`+final.ID.String()+`/score"`)
	assert.Contains(t, page, "Alpha")

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/brackets/"+created.ID.String()+"/resolve", nil)
	require.NoError(t, err)
	req.Header.Set("HX-Request", "true")
	resp, err = ts.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "No matches updated")
}

func TestResolveErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.loginAsGuest(t)
	ts.grantEditing(t)

	resp, err := ts.client.Post(ts.URL+"/brackets/not-a-uuid/resolve", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = ts.client.Post(ts.URL+"/brackets/"+uuid.NewString()+"/resolve", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = ts.client.PostForm(ts.URL+"/matches/"+uuid.NewString()+"/score", url.Values{"score1": {"x"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = ts.client.Get(ts.URL + "/matches/not-a-uuid")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = ts.client.Get(ts.URL + "/matches/" + uuid.NewString())
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGuestCanViewMatch(t *testing.T) {
	ts := newTestServer(t)
	ts.loginAsGuest(t)
	ts.grantEditing(t)

	resp := ts.postJSON(t, "/brackets", service.CreateBracketInput{
		Name: "Cup", FirstTo: 2, Teams: []service.TeamInput{{Code: "A", Name: "Alpha"}, {Code: "B", Name: "Bravo"}},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	// Take the rights away again
	ctx := context.Background()
	guest, err := ts.userStore.GetUser(ctx, uuid.MustParse(middleware.SuperUserID))
	require.NoError(t, err)
	guest.WebsiteSettings = ""
	require.NoError(t, ts.userStore.UpdateWebsiteSettings(ctx, guest))

	resp, err = ts.client.Get(ts.URL + "/brackets/" + created.ID.String())
	require.NoError(t, err)
	var data service.BracketData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&data))
	resp.Body.Close()
	require.Len(t, data.Matches, 1)

	page := ts.getHTML(t, "/matches/"+data.Matches[0].ID.String())
	assert.Contains(t, page, "Alpha")
	assert.Contains(t, page, "Bravo")
	assert.NotContains(t, page, "/score")
}

func TestEditorEmailsGrantRights(t *testing.T) {
	ts := newTestServerWith(t, appOptions{EditorEmails: []string{"org@example.com"}})

	user, err := ts.users.FindOrCreateUserByProvider(context.Background(), goth.User{
		Provider: "discord", UserID: "org-1", Email: "ORG@example.com", Name: "Organiser",
	})
	require.NoError(t, err)
	assert.True(t, user.Can(users.SettingEditAnyMatch))
}
