package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrValidation = errors.New("validation failed")

var validRoles = map[string]bool{
	"patient": true,
	"doctor":  true,
	"staff":   true,
	"manager": true,
	"admin":   true,
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, u *User) error {
	if err := validate(u); err != nil {
		return err
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.IsActive = true
	if _, err := s.repo.GetByEmail(ctx, u.Email); err == nil {
		return fmt.Errorf("%w: email already registered", ErrValidation)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return s.repo.Create(ctx, u)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, u *User) error {
	if err := validate(u); err != nil {
		return err
	}
	if _, err := s.repo.GetByID(ctx, u.ID); err != nil {
		return err
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return s.repo.Update(ctx, u)
}

func (s *Service) List(ctx context.Context, role string, limit, offset int) ([]*User, int, error) {
	if role != "" && !validRoles[role] {
		return nil, 0, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	return s.repo.List(ctx, role, limit, offset)
}

func validate(u *User) error {
	if strings.TrimSpace(u.Email) == "" || !strings.Contains(u.Email, "@") {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}
	if strings.TrimSpace(u.FullName) == "" {
		return fmt.Errorf("%w: full_name is required", ErrValidation)
	}
	if !validRoles[u.Role] {
		return fmt.Errorf("%w: unknown role %q", ErrValidation, u.Role)
	}
	return nil
}
