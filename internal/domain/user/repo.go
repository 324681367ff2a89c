package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("user not found")

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	List(ctx context.Context, role string, limit, offset int) ([]*User, int, error)
	// ContactsByIDs resolves active user ids to email addresses and
	// display names; it backs the notification dispatcher's recipient
	// lookup.
	ContactsByIDs(ctx context.Context, ids []uuid.UUID) (emails, names map[uuid.UUID]string, err error)
}
