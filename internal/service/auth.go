package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/techblogs/internal/apperror"
	"github.com/sakif/techblogs/internal/auth"
	"github.com/sakif/techblogs/internal/model"
	"github.com/sakif/techblogs/internal/repository"
)

const invalidCredentials = "Invalid email or password"

// AuthService signs users in and issues session tokens. It does not touch
// HTTP: handlers set cookies from the returned token.
type AuthService struct {
	users     repository.UserRepository
	identity  *IdentityResolver
	passwords *auth.PasswordService
	tokens    *auth.TokenService
	verifier  auth.IDTokenVerifier
	devMode   bool
	logger    *slog.Logger
}

// NewAuthService wires the auth flows. verifier may be nil, in which case
// ID-token logins are rejected. Unverified profile assertions are only
// accepted when devMode is on.
func NewAuthService(
	users repository.UserRepository,
	identity *IdentityResolver,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	verifier auth.IDTokenVerifier,
	devMode bool,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		identity:  identity,
		passwords: passwords,
		tokens:    tokens,
		verifier:  verifier,
		devMode:   devMode,
		logger:    logger,
	}
}

// AuthResult bundles the signed-in user with a fresh session token.
type AuthResult struct {
	User  *model.User
	Token string
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register creates a password account. The email must not be in use.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if len(in.Password) < auth.MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength))
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		ProfilePic:   AvatarURL(name),
		Followers:    []string{},
		Following:    []string{},
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.ConflictMsg("Email already registered")
		}
		return nil, fmt.Errorf("service/auth: registering %s: %w", email, err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID), slog.String("email", email))
	return s.issue(user)
}

// Login checks an email/password pair. Unknown emails, provider-only
// accounts and wrong passwords all fail the same way.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperror.ValidationFailed("email", "email and password are required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated(invalidCredentials)
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Error("password verification failed",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, apperror.Unauthenticated(invalidCredentials)
	}

	s.logger.Info("user logged in", slog.String("userID", user.ID))
	return s.issue(user)
}

// GoogleLoginInput is either a provider ID token or a raw profile
// assertion. IDToken wins when both are present.
type GoogleLoginInput struct {
	IDToken    string
	Name       string
	Email      string
	ProfilePic string
}

// GoogleLogin resolves a Google identity to a user, creating it on first
// login.
//
// A raw profile assertion proves nothing about the caller, so it is only
// honored in dev mode and never signs in an account that has a password.
func (s *AuthService) GoogleLogin(ctx context.Context, in GoogleLoginInput) (*AuthResult, error) {
	if token := strings.TrimSpace(in.IDToken); token != "" {
		if s.verifier == nil {
			return nil, apperror.ValidationFailed("idToken", "ID token login is not configured")
		}
		verified, err := s.verifier.VerifyIDToken(ctx, token)
		if err != nil {
			s.logger.Warn("ID token rejected", slog.String("error", err.Error()))
			return nil, apperror.Unauthenticated("Invalid ID token")
		}
		return s.LoginExternal(ctx, *verified)
	}

	if !s.devMode {
		return nil, apperror.Unauthenticated("ID token required")
	}

	user, err := s.identity.ResolveExternal(ctx, auth.External{
		Email:   in.Email,
		Name:    in.Name,
		Picture: in.ProfilePic,
	})
	if err != nil {
		return nil, err
	}
	if user.HasPassword() {
		s.logger.Warn("profile assertion refused for password account", slog.String("userID", user.ID))
		return nil, apperror.Unauthenticated("Sign in with email and password")
	}

	s.logger.Info("user authenticated via profile assertion", slog.String("userID", user.ID))
	return s.issue(user)
}

// LoginExternal signs in a provider identity that has already been
// verified, such as the result of an OAuth2 code exchange.
func (s *AuthService) LoginExternal(ctx context.Context, ext auth.External) (*AuthResult, error) {
	user, err := s.identity.ResolveExternal(ctx, ext)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user authenticated via Google", slog.String("userID", user.ID))
	return s.issue(user)
}

// Me returns the user behind an identity.
func (s *AuthService) Me(ctx context.Context, id auth.Identity) (*model.User, error) {
	switch v := id.(type) {
	case auth.Authenticated:
		return s.users.GetUserByID(ctx, v.UserID)
	case auth.External:
		return s.identity.ResolveExternal(ctx, v)
	default:
		return nil, apperror.Unauthenticated("User not authenticated")
	}
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID, user.Name)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}
