package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/AdamBeresnev/bracket-resolver/internal/middleware"
	"github.com/AdamBeresnev/bracket-resolver/internal/store"
	users "github.com/AdamBeresnev/bracket-resolver/internal/user"
	"github.com/AdamBeresnev/bracket-resolver/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/markbates/goth"
)

type UserService struct {
	db      *sqlx.DB
	store   *store.UserStore
	editors map[string]bool
}

// NewUserService grants edit rights to provider accounts whose email is in editorEmails.
func NewUserService(db *sqlx.DB, store *store.UserStore, editorEmails []string) *UserService {
	editors := make(map[string]bool, len(editorEmails))
	for _, e := range editorEmails {
		editors[normalizeEmail(e)] = true
	}
	return &UserService{db: db, store: store, editors: editors}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) isEditor(email string) bool {
	return email != "" && s.editors[normalizeEmail(email)]
}

func (s *UserService) FindOrCreateUserByProvider(ctx context.Context, gothUser goth.User) (*users.User, error) {
	user, err := s.store.GetUserByProvider(ctx, gothUser.Provider, gothUser.UserID)

	if err == nil {
		if utils.OrZero(user.AvatarURL) != gothUser.AvatarURL || user.Username != gothUser.NickName {
			user.AvatarURL = utils.StringOrNil(gothUser.AvatarURL)
			if gothUser.NickName != "" {
				user.Username = gothUser.NickName
			}
			if err := s.store.UpdateUserNameAndAvatar(ctx, user); err != nil {
				return nil, err
			}
		}
		if s.isEditor(gothUser.Email) && user.Grant(users.SettingEditAnyMatch) {
			if err := s.store.UpdateWebsiteSettings(ctx, user); err != nil {
				return nil, err
			}
		}
		return user, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		newUser := &users.User{
			ID:         uuid.New(),
			Email:      gothUser.Email,
			Username:   gothUser.Name,
			Provider:   &gothUser.Provider,
			ProviderID: &gothUser.UserID,
			AvatarURL:  utils.StringOrNil(gothUser.AvatarURL),
		}
		if s.isEditor(gothUser.Email) {
			newUser.Grant(users.SettingEditAnyMatch)
		}
		err := s.store.CreateUser(ctx, newUser)
		return newUser, err
	}

	return nil, err
}

// EnsureGuestUser returns the shared guest account, creating it on first use.
// The guest has no website settings, so it can look at brackets but not edit them.
func (s *UserService) EnsureGuestUser(ctx context.Context) (*users.User, error) {
	guestID := uuid.MustParse(middleware.SuperUserID)
	user, err := s.store.GetUser(ctx, guestID)
	if err == nil {
		return user, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		guestUser := &users.User{
			ID:       guestID,
			Email:    "guest@bracket-resolver.app",
			Username: "Guest User",
		}
		err := s.store.CreateUser(ctx, guestUser)
		return guestUser, err
	}
	return nil, err
}
