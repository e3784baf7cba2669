package services

import (
	"context"
	"errors"
	"strings"

	"github.com/pratyush314/acquisitions/internal/store"
	"github.com/pratyush314/acquisitions/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id int) error
}

// UserUpdate describes a partial update; nil fields are left unchanged.
type UserUpdate struct {
	Name     *string
	Email    *string
	Password *string
	Role     *string
}

// UserService encapsulates user use-cases.
type UserService struct {
	repo       UserRepository
	bcryptCost int
}

func NewUserService(repo UserRepository, bcryptCost int) *UserService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{repo: repo, bcryptCost: bcryptCost}
}

func (s *UserService) List(ctx context.Context) ([]types.User, error) {
	return s.repo.List(ctx)
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	return s.repo.GetByID(ctx, id)
}

// Update applies a partial update to the user with the given id. A changed
// email is re-checked for uniqueness; the database constraint remains the
// final arbiter against concurrent writers. A changed password is re-hashed.
func (s *UserService) Update(ctx context.Context, id int, updates UserUpdate) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}

	if updates.Name != nil {
		user.Name = strings.TrimSpace(*updates.Name)
	}
	if updates.Email != nil {
		email := NormalizeEmail(*updates.Email)
		if email != user.Email {
			if _, err := s.repo.GetByEmail(ctx, email); err == nil {
				return types.User{}, store.ErrDuplicateEmail
			} else if !errors.Is(err, store.ErrNotFound) {
				return types.User{}, err
			}
		}
		user.Email = email
	}
	if updates.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*updates.Password), s.bcryptCost)
		if err != nil {
			return types.User{}, err
		}
		user.PasswordHash = string(hash)
	}
	if updates.Role != nil {
		user.Role = *updates.Role
	}

	return s.repo.Update(ctx, user)
}

// Delete removes the user with the given id and returns the removed record.
func (s *UserService) Delete(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.User{}, err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return types.User{}, err
	}
	return user, nil
}

// NormalizeEmail lower-cases and trims an email so uniqueness is
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
