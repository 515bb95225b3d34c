package views

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/bracket-resolver/internal/bracket"
	"github.com/AdamBeresnev/bracket-resolver/internal/middleware"
	"github.com/AdamBeresnev/bracket-resolver/internal/service"
	users "github.com/AdamBeresnev/bracket-resolver/internal/user"
	"github.com/a-h/templ"
	"github.com/google/uuid"
)

const unknownTeam = "TBD"

func GetUser(ctx context.Context) *users.User {
	return middleware.GetAuthenticatedUser(ctx)
}

// CanEdit reports whether the signed in user may change brackets and scores
func CanEdit(ctx context.Context) bool {
	return GetUser(ctx).Can(users.SettingEditAnyMatch)
}

func bracketURL(id uuid.UUID) templ.SafeURL {
	return templ.URL("/brackets/" + id.String())
}

func matchURL(id uuid.UUID) templ.SafeURL {
	return templ.URL("/matches/" + id.String())
}

func matchTitle(m *bracket.Match) string {
	return fmt.Sprintf("Match %d", m.MatchNumber)
}

func teamName(t *bracket.Team) string {
	if t == nil {
		return unknownTeam
	}
	if t.Name != "" {
		return t.Name
	}
	return t.Code
}

type matchRow struct {
	Match bracket.Match
	Left  string
	Right string
}

// matchRows gives the team codes shown either side of each match. A lone team
// waiting for its opponent sits in seat 1 only when the placeholder is on the right.
func matchRows(data *service.BracketData) []matchRow {
	codes := make(map[uuid.UUID]string, len(data.Teams))
	for _, t := range data.Teams {
		codes[t.ID] = t.Code
	}

	rows := make([]matchRow, 0, len(data.Matches))
	for _, m := range data.Matches {
		row := matchRow{Match: m, Left: unknownTeam, Right: unknownTeam}
		if m.Team1ID != nil {
			row.Left = codes[*m.Team1ID]
		}
		if m.Team2ID != nil {
			row.Right = codes[*m.Team2ID]
		}
		if m.Team1ID != nil && m.Team2ID == nil && !m.PlaceholderRight {
			row.Left, row.Right = row.Right, row.Left
		}
		rows = append(rows, row)
	}
	return rows
}
