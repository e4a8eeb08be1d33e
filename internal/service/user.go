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

// UserService is the user directory: profile CRUD, passwords, and the
// follow graph.
type UserService struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewUserService(users repository.UserRepository, passwords *auth.PasswordService, logger *slog.Logger) *UserService {
	return &UserService{users: users, passwords: passwords, logger: logger}
}

// ProfileInput is the editable part of a user profile.
type ProfileInput struct {
	Name       string
	Email      string
	ProfilePic string
}

func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("service/user: listing users: %w", err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return s.users.GetUserByID(ctx, id)
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	return s.users.GetUserByEmail(ctx, email)
}

// Create adds a profile without a password. The email must be unused.
func (s *UserService) Create(ctx context.Context, in ProfileInput) (*model.User, error) {
	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}

	user := &model.User{
		Name:       strings.TrimSpace(in.Name),
		Email:      email,
		ProfilePic: strings.TrimSpace(in.ProfilePic),
		Followers:  []string{},
		Following:  []string{},
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/user: creating user: %w", err)
	}

	s.logger.Info("user created", slog.String("userID", user.ID), slog.String("email", email))
	return user, nil
}

// Update overwrites name, email and profile picture. The password and
// follow sets are left as stored.
func (s *UserService) Update(ctx context.Context, id string, in ProfileInput) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	email := normalizeEmail(in.Email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}

	user.Name = strings.TrimSpace(in.Name)
	user.Email = email
	user.ProfilePic = strings.TrimSpace(in.ProfilePic)

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/user: updating user %s: %w", id, err)
	}

	s.logger.Info("user updated", slog.String("userID", id))
	return user, nil
}

// Delete removes the profile only. Posts, comments and other users' follow
// sets keep referencing the ID.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.users.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", slog.String("userID", id))
	return nil
}

// SetPassword stores the bcrypt hash of plaintext.
func (s *UserService) SetPassword(ctx context.Context, id, plaintext string) error {
	if len(plaintext) < auth.MinPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength))
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return err
	}

	hash, err := s.passwords.Hash(plaintext)
	if err != nil {
		return apperror.ValidationFailed("password", err.Error())
	}
	user.PasswordHash = hash

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("service/user: saving password for %s: %w", id, err)
	}

	s.logger.Info("password updated", slog.String("userID", id))
	return nil
}

// Follow makes id follow targetID and returns id's updated record.
//
// Both records are written separately. If the second write fails the first
// is reverted, so the graph stays symmetric unless the revert fails too.
func (s *UserService) Follow(ctx context.Context, id, targetID string) (*model.User, error) {
	if id == targetID {
		return nil, apperror.ValidationFailed("targetId", "You cannot follow yourself")
	}

	user, target, err := s.loadPair(ctx, id, targetID)
	if err != nil {
		return nil, err
	}
	if user.IsFollowing(targetID) {
		return nil, apperror.ConflictMsg("Already following this user")
	}

	user.AddFollowing(targetID)
	target.AddFollower(id)

	if err := s.writePair(ctx, user, target, func(u *model.User) { u.RemoveFollowing(targetID) }); err != nil {
		return nil, err
	}

	s.logger.Info("user followed", slog.String("userID", id), slog.String("targetID", targetID))
	return user, nil
}

// Unfollow removes the follow edge from both sides.
func (s *UserService) Unfollow(ctx context.Context, id, targetID string) (*model.User, error) {
	if id == targetID {
		return nil, apperror.ValidationFailed("targetId", "You cannot unfollow yourself")
	}

	user, target, err := s.loadPair(ctx, id, targetID)
	if err != nil {
		return nil, err
	}
	if !user.IsFollowing(targetID) {
		return nil, apperror.ConflictMsg("You are not following this user")
	}

	user.RemoveFollowing(targetID)
	target.RemoveFollower(id)

	if err := s.writePair(ctx, user, target, func(u *model.User) { u.AddFollowing(targetID) }); err != nil {
		return nil, err
	}

	s.logger.Info("user unfollowed", slog.String("userID", id), slog.String("targetID", targetID))
	return user, nil
}

// ListFollowers resolves id's followers, skipping IDs that no longer exist.
func (s *UserService) ListFollowers(ctx context.Context, id string) ([]model.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.resolveAll(ctx, user.Followers)
}

// ListFollowing resolves the users id follows, skipping IDs that no longer exist.
func (s *UserService) ListFollowing(ctx context.Context, id string) ([]model.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.resolveAll(ctx, user.Following)
}

func (s *UserService) loadPair(ctx context.Context, id, targetID string) (*model.User, *model.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	target, err := s.users.GetUserByID(ctx, targetID)
	if err != nil {
		return nil, nil, err
	}
	return user, target, nil
}

// writePair saves user then target. When the target write fails, revert
// undoes the in-memory change on user and user is saved again.
func (s *UserService) writePair(ctx context.Context, user, target *model.User, revert func(*model.User)) error {
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("service/user: saving %s: %w", user.ID, err)
	}
	if err := s.users.UpdateUser(ctx, target); err != nil {
		revert(user)
		if rerr := s.users.UpdateUser(ctx, user); rerr != nil {
			s.logger.Error("follow graph left asymmetric",
				slog.String("userID", user.ID),
				slog.String("targetID", target.ID),
				slog.String("error", rerr.Error()),
			)
		}
		return fmt.Errorf("service/user: saving %s: %w", target.ID, err)
	}
	return nil
}

func (s *UserService) resolveAll(ctx context.Context, ids []string) ([]model.User, error) {
	out := make([]model.User, 0, len(ids))
	for _, id := range ids {
		u, err := s.users.GetUserByID(ctx, id)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("service/user: resolving %s: %w", id, err)
		}
		out = append(out, *u)
	}
	return out, nil
}
