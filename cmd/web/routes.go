package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/AdamBeresnev/bracket-resolver/internal/httputil"
	"github.com/AdamBeresnev/bracket-resolver/internal/live"
	"github.com/AdamBeresnev/bracket-resolver/internal/middleware"
	"github.com/AdamBeresnev/bracket-resolver/internal/service"
	"github.com/AdamBeresnev/bracket-resolver/internal/store"
	"github.com/AdamBeresnev/bracket-resolver/views"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
)

type application struct {
	sessionManager *scs.SessionManager
	hub            *live.Hub
	allowedOrigins []string
	logger         *slog.Logger

	userStore *store.UserStore

	brackets *service.BracketService
	matches  *service.MatchService
	resolver *service.ResolveService
	users    *service.UserService
}

type appOptions struct {
	AllowedOrigins []string
	EditorEmails   []string
}

func newApplication(database *sqlx.DB, sessionManager *scs.SessionManager, hub *live.Hub, opts appOptions, logger *slog.Logger) *application {
	bracketStore := store.NewBracketStore(database)
	userStore := store.NewUserStore(database)

	return &application{
		sessionManager: sessionManager,
		hub:            hub,
		allowedOrigins: opts.AllowedOrigins,
		logger:         logger,
		userStore:      userStore,
		brackets:       service.NewBracketService(database, bracketStore, logger),
		matches:        service.NewMatchService(database, bracketStore),
		resolver:       service.NewResolveService(bracketStore, hub, logger),
		users:          service.NewUserService(database, userStore, opts.EditorEmails),
	}
}

func (app *application) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	if len(app.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   app.allowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "HX-Request", "HX-Target", "HX-Current-URL"},
			ExposedHeaders:   []string{"HX-Redirect"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Websocket upgrades need the raw connection, keep them out of the session middleware
	r.Get("/ws/brackets/{id}", func(w http.ResponseWriter, r *http.Request) {
		app.hub.ServeBracket(w, r, chi.URLParam(r, "id"))
	})

	r.Group(func(r chi.Router) {
		r.Use(app.sessionManager.LoadAndSave)

		r.Get("/login", app.login)
		r.Get("/auth/{provider}", app.beginAuth)
		r.Get("/auth/{provider}/callback", app.authCallback)
		r.Post("/auth/guest", app.guestLogin)
		r.Post("/logout", app.logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(app.sessionManager, app.userStore))

			r.Get("/", app.index)
			r.Post("/brackets", app.createBracket)
			r.Get("/brackets/{id}", app.showBracket)
			r.Post("/brackets/{id}/resolve", app.resolveBracket)
			r.Get("/matches/{id}", app.showMatch)
			r.Post("/matches/{id}/score", app.recordScore)
		})
	})

	return r
}

func (app *application) login(w http.ResponseWriter, r *http.Request) {
	var providers []string
	for name := range goth.GetProviders() {
		providers = append(providers, name)
	}
	sort.Strings(providers)

	views.Render(w, r, views.LoginPage(providers))
}

func (app *application) beginAuth(w http.ResponseWriter, r *http.Request) {
	r = gothic.GetContextWithProvider(r, chi.URLParam(r, "provider"))
	gothic.BeginAuthHandler(w, r)
}

func (app *application) authCallback(w http.ResponseWriter, r *http.Request) {
	r = gothic.GetContextWithProvider(r, chi.URLParam(r, "provider"))

	gothUser, err := gothic.CompleteUserAuth(w, r)
	if err != nil {
		httputil.BadRequest(w, "Authentication failure", err)
		return
	}

	user, err := app.users.FindOrCreateUserByProvider(r.Context(), gothUser)
	if err != nil {
		httputil.InternalServerError(w, "Failed to find or create user", err)
		return
	}

	if err := middleware.Login(r.Context(), app.sessionManager, user.ID); err != nil {
		httputil.InternalServerError(w, "Failed to start session", err)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (app *application) guestLogin(w http.ResponseWriter, r *http.Request) {
	user, err := app.users.EnsureGuestUser(r.Context())
	if err != nil {
		httputil.InternalServerError(w, "Failed to login as guest", err)
		return
	}

	if err := middleware.Login(r.Context(), app.sessionManager, user.ID); err != nil {
		httputil.InternalServerError(w, "Failed to start session", err)
		return
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

func (app *application) logout(w http.ResponseWriter, r *http.Request) {
	if err := app.sessionManager.Destroy(r.Context()); err != nil {
		httputil.InternalServerError(w, "Failed to end session", err)
		return
	}
	if views.IsHTMX(r) {
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (app *application) index(w http.ResponseWriter, r *http.Request) {
	brackets, err := app.brackets.ListBrackets(r.Context())
	if err != nil {
		httputil.InternalServerError(w, "Failed to get brackets", err)
		return
	}
	views.Render(w, r, views.Index(brackets))
}

func (app *application) createBracket(w http.ResponseWriter, r *http.Request) {
	var input service.CreateBracketInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		httputil.BadRequest(w, "Invalid bracket JSON", err)
		return
	}

	id, err := app.brackets.CreateBracket(r.Context(), input)
	if err != nil {
		httputil.ServiceError(w, "Failed to create bracket", err)
		return
	}

	if views.IsHTMX(r) {
		w.Header().Set("HX-Redirect", fmt.Sprintf("/brackets/%s", id))
		w.WriteHeader(http.StatusOK)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]uuid.UUID{"id": id})
}

func (app *application) showBracket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httputil.BadRequest(w, "Invalid bracket ID", err)
		return
	}

	data, err := app.brackets.GetBracketData(r.Context(), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to get bracket", err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		views.Render(w, r, views.BracketView(data))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, data)
}

func (app *application) resolveBracket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httputil.BadRequest(w, "Invalid bracket ID", err)
		return
	}

	result, err := app.resolver.ResolveEntireBracket(r.Context(), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to resolve bracket", err)
		return
	}

	if views.IsHTMX(r) {
		views.Render(w, r, views.ResolveResult(result))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (app *application) showMatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httputil.BadRequest(w, "Invalid match ID", err)
		return
	}

	data, err := app.matches.GetMatchViewData(r.Context(), id)
	if err != nil {
		httputil.ServiceError(w, "Failed to get match", err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		views.Render(w, r, views.MatchView(data))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, data)
}

type scoreInput struct {
	Score1 int `json:"score1"`
	Score2 int `json:"score2"`
}

func (app *application) recordScore(w http.ResponseWriter, r *http.Request) {
	matchID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "Invalid match ID", err)
		return
	}

	input, err := parseScoreInput(r)
	if err != nil {
		httputil.BadRequest(w, "Invalid score", err)
		return
	}

	match, err := app.matches.RecordScore(r.Context(), matchID, input.Score1, input.Score2)
	if err != nil {
		httputil.ServiceError(w, "Failed to record score", err)
		return
	}

	if views.IsHTMX(r) {
		views.Render(w, r, views.ScoreResult(match))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, match)
}

func parseScoreInput(r *http.Request) (scoreInput, error) {
	var input scoreInput
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		err := json.NewDecoder(r.Body).Decode(&input)
		return input, err
	}

	if err := r.ParseForm(); err != nil {
		return input, err
	}
	var err error
	if input.Score1, err = strconv.Atoi(r.Form.Get("score1")); err != nil {
		return input, fmt.Errorf("score1: %w", err)
	}
	if input.Score2, err = strconv.Atoi(r.Form.Get("score2")); err != nil {
		return input, fmt.Errorf("score2: %w", err)
	}
	return input, nil
}
