package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/techblogs/internal/apperror"
	"github.com/sakif/techblogs/internal/repository"
)

// OwnershipPolicy decides whether a caller may modify something owned by
// another user ID. Post update, update-with-media and delete share it.
type OwnershipPolicy struct {
	users  repository.UserRepository
	logger *slog.Logger
}

func NewOwnershipPolicy(users repository.UserRepository, logger *slog.Logger) *OwnershipPolicy {
	return &OwnershipPolicy{users: users, logger: logger}
}

// Authorize returns nil when callerID may act on a resource owned by ownerID.
//
// Two branches:
//  1. The IDs match exactly.
//  2. ownerID carries LegacyUserIDPrefix and callerID does not, and both
//     resolve to users whose names match case-insensitively. This lets an
//     account that later signed in properly keep editing what it wrote as
//     a named guest.
//
// Anything else is ErrForbidden.
func (p *OwnershipPolicy) Authorize(ctx context.Context, ownerID, callerID string) error {
	if ownerID == callerID {
		return nil
	}

	if strings.HasPrefix(ownerID, LegacyUserIDPrefix) && !strings.HasPrefix(callerID, LegacyUserIDPrefix) {
		ok, err := p.namesMatch(ctx, ownerID, callerID)
		if err != nil {
			return err
		}
		if ok {
			p.logger.Info("ownership granted by name match",
				slog.String("ownerID", ownerID),
				slog.String("callerID", callerID),
			)
			return nil
		}
	}

	p.logger.Warn("ownership check failed",
		slog.String("ownerID", ownerID),
		slog.String("callerID", callerID),
	)
	return apperror.Forbidden("Not authorized to modify this post")
}

func (p *OwnershipPolicy) namesMatch(ctx context.Context, ownerID, callerID string) (bool, error) {
	owner, err := p.users.GetUserByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("service/ownership: loading owner %s: %w", ownerID, err)
	}
	caller, err := p.users.GetUserByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("service/ownership: loading caller %s: %w", callerID, err)
	}

	on, cn := strings.TrimSpace(owner.Name), strings.TrimSpace(caller.Name)
	return on != "" && cn != "" && strings.EqualFold(on, cn), nil
}
