package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/sakif/techblogs/internal/apperror"
	"github.com/sakif/techblogs/internal/auth"
	"github.com/sakif/techblogs/internal/model"
	"github.com/sakif/techblogs/internal/repository"
)

const (
	// DevUserID is the account unauthenticated callers act as in the dev
	// profile when they supply no display name.
	DevUserID = "dev-user"

	// GuestDisplayName names the DevUserID account.
	GuestDisplayName = "Guest User"

	// LegacyUserIDPrefix marks user IDs minted for named guests. Posts owned
	// by such IDs get the name-match ownership fallback.
	LegacyUserIDPrefix = "user-"

	placeholderEmailDomain = "@example.com"
	avatarBaseURL          = "https://ui-avatars.com/api/?name="
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// IdentityResolver maps an identity assertion to a persisted user, creating
// the user when none exists yet.
type IdentityResolver struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewIdentityResolver(users repository.UserRepository, logger *slog.Logger) *IdentityResolver {
	return &IdentityResolver{users: users, logger: logger}
}

// Resolve returns the user an identity acts as. displayName is the name the
// request supplied, if any; it names synthesized users and turns a Guest
// into a fresh legacy-prefixed account.
func (r *IdentityResolver) Resolve(ctx context.Context, id auth.Identity, displayName string) (*model.User, error) {
	displayName = strings.TrimSpace(displayName)

	switch v := id.(type) {
	case auth.External:
		return r.ResolveExternal(ctx, v)
	case auth.Authenticated:
		name := displayName
		if name == "" {
			name = v.Name
		}
		return r.ResolveLocal(ctx, v.UserID, name)
	case auth.Guest:
		name := strings.TrimSpace(v.DisplayName)
		if name == "" {
			name = displayName
		}
		if name == "" {
			return r.ResolveLocal(ctx, DevUserID, GuestDisplayName)
		}
		return r.ResolveLocal(ctx, newLegacyUserID(), name)
	case nil:
		return nil, apperror.Unauthenticated("User not authenticated")
	default:
		return nil, fmt.Errorf("service/identity: unsupported identity %T", id)
	}
}

// ResolveExternal looks a provider identity up by email and creates the
// user on first sight. An existing record is returned unchanged, so repeat
// logins never refresh profile fields. Concurrent first logins for the same
// email converge on one record.
func (r *IdentityResolver) ResolveExternal(ctx context.Context, ext auth.External) (*model.User, error) {
	email := normalizeEmail(ext.Email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}

	user, err := r.users.GetUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/identity: looking up %s: %w", email, err)
	}

	name := strings.TrimSpace(ext.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	user = &model.User{
		Name:       name,
		Email:      email,
		ProfilePic: strings.TrimSpace(ext.Picture),
		Followers:  []string{},
		Following:  []string{},
	}
	if err := r.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			// Lost a race with another first login for this email.
			return r.users.GetUserByEmail(ctx, email)
		}
		return nil, fmt.Errorf("service/identity: creating user for %s: %w", email, err)
	}

	r.logger.Info("user created from external identity",
		slog.String("userID", user.ID),
		slog.String("email", email),
	)
	return user, nil
}

// ResolveLocal returns the user with userID, synthesizing one with a
// placeholder email and a generated avatar when it does not exist.
func (r *IdentityResolver) ResolveLocal(ctx context.Context, userID, displayName string) (*model.User, error) {
	if userID == "" {
		return nil, apperror.Unauthenticated("User not authenticated")
	}

	user, err := r.users.GetUserByID(ctx, userID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/identity: looking up %s: %w", userID, err)
	}

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = userID
	}
	user = &model.User{
		ID:         userID,
		Name:       name,
		Email:      userID + placeholderEmailDomain,
		ProfilePic: AvatarURL(name),
		Followers:  []string{},
		Following:  []string{},
	}
	if err := r.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return r.users.GetUserByID(ctx, userID)
		}
		return nil, fmt.Errorf("service/identity: creating user %s: %w", userID, err)
	}

	r.logger.Info("user synthesized",
		slog.String("userID", user.ID),
		slog.String("name", user.Name),
	)
	return user, nil
}

// CallerID picks the user ID a mutating request acts as: an explicit ID from
// the request, then the identity's own user, then DevUserID when devMode is
// on. Without any of those the caller is unauthenticated.
func (r *IdentityResolver) CallerID(ctx context.Context, explicit string, id auth.Identity, devMode bool) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit, nil
	}

	switch v := id.(type) {
	case auth.Authenticated:
		if v.UserID != "" {
			return v.UserID, nil
		}
	case auth.External:
		user, err := r.ResolveExternal(ctx, v)
		if err != nil {
			return "", err
		}
		return user.ID, nil
	}

	if devMode {
		return DevUserID, nil
	}
	return "", apperror.Unauthenticated("User not authenticated")
}

// AvatarURL returns a generated-initials avatar for name.
func AvatarURL(name string) string {
	return avatarBaseURL + whitespaceRun.ReplaceAllString(strings.TrimSpace(name), "+")
}

func newLegacyUserID() string {
	return LegacyUserIDPrefix + uuid.NewString()[:8]
}
