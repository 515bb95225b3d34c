package users

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ContextKey string

const UserKey ContextKey = "user"

const SettingEditAnyMatch = "Can edit any match"

type User struct {
	ID         uuid.UUID `db:"id"`
	Email      string    `db:"email"`
	Username   string    `db:"username"`
	CreatedAt  time.Time `db:"created_at"`
	Provider   *string   `db:"provider"`
	ProviderID *string   `db:"provider_id"`
	AvatarURL  *string   `db:"avatar_url"`

	// Comma separated capability names
	WebsiteSettings string `db:"website_settings"`
}

func (u *User) Settings() []string {
	var settings []string
	for _, s := range strings.Split(u.WebsiteSettings, ",") {
		if s = strings.TrimSpace(s); s != "" {
			settings = append(settings, s)
		}
	}
	return settings
}

func (u *User) Can(setting string) bool {
	if u == nil {
		return false
	}
	return slices.Contains(u.Settings(), setting)
}

// Grant adds setting to the user's website settings and reports whether it was missing.
func (u *User) Grant(setting string) bool {
	if u.Can(setting) {
		return false
	}
	u.WebsiteSettings = strings.Join(append(u.Settings(), setting), ",")
	return true
}
