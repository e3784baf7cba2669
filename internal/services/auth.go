package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pratyush314/acquisitions/internal/store"
	"github.com/pratyush314/acquisitions/types"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when a sign-in password does not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService implements registration and credential verification.
type AuthService struct {
	repo       UserRepository
	bcryptCost int
}

func NewAuthService(repo UserRepository, bcryptCost int) *AuthService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{repo: repo, bcryptCost: bcryptCost}
}

// Register creates a new account. The email must be unused; the duplicate
// check is advisory, the store's unique constraint closes the race between
// concurrent registrations.
func (s *AuthService) Register(ctx context.Context, name, email, password, role string) (types.User, error) {
	email = NormalizeEmail(email)
	if role == "" {
		role = types.RoleUser
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return types.User{}, store.ErrDuplicateEmail
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("checking email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hashing password: %w", err)
	}

	return s.repo.Create(ctx, types.User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		Role:         role,
		PasswordHash: string(hash),
	})
}

// Authenticate verifies an email/password pair and returns the matching
// user. Unknown emails surface store.ErrNotFound; a wrong password surfaces
// ErrInvalidCredentials. Callers present both identically.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (types.User, error) {
	user, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return types.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, ErrInvalidCredentials
	}

	return user, nil
}
