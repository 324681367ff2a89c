package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinic-server/internal/platform/auth"
)

// Service exposes record operations over the caller's own notifications.
// Staff and above may target another user explicitly.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// resolveUser picks whose notifications an operation targets. Restricted
// callers always act on their own; unrestricted callers may name a user.
func (s *Service) resolveUser(scope auth.AccessScope, target uuid.UUID) uuid.UUID {
	if scope.Unrestricted() && target != uuid.Nil {
		return target
	}
	return scope.UserID
}

func (s *Service) List(ctx context.Context, scope auth.AccessScope, target uuid.UUID, limit, offset int) ([]*Notification, int, error) {
	return s.repo.ListByUser(ctx, s.resolveUser(scope, target), limit, offset)
}

func (s *Service) UnreadCount(ctx context.Context, scope auth.AccessScope, target uuid.UUID) (int, error) {
	return s.repo.UnreadCount(ctx, s.resolveUser(scope, target))
}

// MarkRead marks a single notification read. A restricted caller touching
// another user's notification gets ErrNotFound so record existence is not
// leaked across parties.
func (s *Service) MarkRead(ctx context.Context, scope auth.AccessScope, id uuid.UUID) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !scope.CanAccessOwn(n.UserID) {
		return ErrNotFound
	}
	return s.repo.MarkRead(ctx, id)
}

func (s *Service) MarkAllRead(ctx context.Context, scope auth.AccessScope) (int64, error) {
	return s.repo.MarkAllRead(ctx, scope.UserID)
}

func (s *Service) Delete(ctx context.Context, scope auth.AccessScope, id uuid.UUID) error {
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !scope.CanAccessOwn(n.UserID) {
		return ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}

// CleanupRead hard-deletes read notifications older than the retention
// window. Invoked by the weekly cleanup sweep.
func (s *Service) CleanupRead(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteReadBefore(ctx, time.Now().Add(-retention))
}
