package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/xid"
	"google.golang.org/api/iterator"

	"github.com/sakif/techblogs/internal/apperror"
	"github.com/sakif/techblogs/internal/model"
)

type userDoc struct {
	ID           string    `firestore:"id"`
	Name         string    `firestore:"name"`
	Email        string    `firestore:"email"`
	PasswordHash string    `firestore:"passwordHash"`
	ProfilePic   string    `firestore:"profilePic"`
	Followers    []string  `firestore:"followers"`
	Following    []string  `firestore:"following"`
	CreatedAt    time.Time `firestore:"createdAt"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

func toUserDoc(u *model.User) userDoc {
	return userDoc{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		ProfilePic:   u.ProfilePic,
		Followers:    orEmpty(u.Followers),
		Following:    orEmpty(u.Following),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (d userDoc) model() model.User {
	return model.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		ProfilePic:   d.ProfilePic,
		Followers:    orEmpty(d.Followers),
		Following:    orEmpty(d.Following),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// CreateUser checks the email and writes the document in one transaction so
// two concurrent sign-ups for the same address cannot both succeed.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = xid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	ref := s.col(usersCollection).Doc(user.ID)
	byEmail := s.col(usersCollection).Where("email", "==", user.Email).Limit(1)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		it := tx.Documents(byEmail)
		defer it.Stop()
		if _, err := it.Next(); err == nil {
			return apperror.ConflictMsg(fmt.Sprintf("email %s is already registered", user.Email))
		} else if !errors.Is(err, iterator.Done) {
			return err
		}
		return tx.Create(ref, toUserDoc(user))
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		if isAlreadyExists(err) {
			return apperror.Conflict("user", user.ID)
		}
		return fmt.Errorf("firestore: creating user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	snap, err := s.col(usersCollection).Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("firestore: getting user %s: %w", id, err)
	}

	var d userDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("firestore: decoding user %s: %w", id, err)
	}
	u := d.model()
	u.ID = snap.Ref.ID
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	docs, err := collect[userDoc](s.col(usersCollection).Where("email", "==", email).Limit(1).Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("firestore: getting user by email: %w", err)
	}
	if len(docs) == 0 {
		return nil, &apperror.AppError{
			Err:     apperror.ErrNotFound,
			Message: fmt.Sprintf("user not found with email %s", email),
		}
	}
	u := docs[0].model()
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	docs, err := collect[userDoc](s.col(usersCollection).OrderBy("createdAt", firestore.Asc).Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("firestore: listing users: %w", err)
	}
	users := make([]model.User, 0, len(docs))
	for _, d := range docs {
		users = append(users, d.model())
	}
	return users, nil
}

// UpdateUser overwrites every mutable field. It fails with NotFound rather
// than creating the document. The email check and the write run in one
// transaction so an update cannot take an address another user holds.
func (s *Store) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	ref := s.col(usersCollection).Doc(user.ID)
	byEmail := s.col(usersCollection).Where("email", "==", user.Email).Limit(2)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(ref); err != nil {
			if isNotFound(err) {
				return apperror.NotFound("user", user.ID)
			}
			return err
		}

		it := tx.Documents(byEmail)
		defer it.Stop()
		for {
			snap, err := it.Next()
			if errors.Is(err, iterator.Done) {
				break
			}
			if err != nil {
				return err
			}
			if snap.Ref.ID != user.ID {
				return apperror.ConflictMsg(fmt.Sprintf("email %s is already registered", user.Email))
			}
		}

		return tx.Update(ref, []firestore.Update{
			{Path: "name", Value: user.Name},
			{Path: "email", Value: user.Email},
			{Path: "passwordHash", Value: user.PasswordHash},
			{Path: "profilePic", Value: user.ProfilePic},
			{Path: "followers", Value: orEmpty(user.Followers)},
			{Path: "following", Value: orEmpty(user.Following)},
			{Path: "updatedAt", Value: user.UpdatedAt},
		})
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		if isNotFound(err) {
			return apperror.NotFound("user", user.ID)
		}
		return fmt.Errorf("firestore: updating user %s: %w", user.ID, err)
	}
	return nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.deleteDoc(ctx, usersCollection, "user", id)
}

// deleteDoc deletes with an Exists precondition so a missing document
// reports NotFound.
func (s *Store) deleteDoc(ctx context.Context, collection, resource, id string) error {
	_, err := s.col(collection).Doc(id).Delete(ctx, firestore.Exists)
	if err != nil {
		if isNotFound(err) {
			return apperror.NotFound(resource, id)
		}
		return fmt.Errorf("firestore: deleting %s %s: %w", resource, id, err)
	}
	return nil
}
