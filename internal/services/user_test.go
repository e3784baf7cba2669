package services

import (
	"context"
	"testing"

	"github.com/pratyush314/acquisitions/internal/store"
	"github.com/pratyush314/acquisitions/internal/store/memory"
	"github.com/pratyush314/acquisitions/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func seedUser(t *testing.T, repo *memory.Repository, name, email string) types.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	user, err := repo.Create(context.Background(), types.User{
		Name:         name,
		Email:        email,
		Role:         types.RoleUser,
		PasswordHash: string(hash),
	})
	require.NoError(t, err)
	return user
}

func strPtr(s string) *string { return &s }

func TestUpdatePartialFields(t *testing.T) {
	repo := memory.New()
	svc := NewUserService(repo, bcrypt.MinCost)
	user := seedUser(t, repo, "Ann", "ann@x.com")

	updated, err := svc.Update(context.Background(), user.ID, UserUpdate{Name: strPtr("Ann B")})
	require.NoError(t, err)
	assert.Equal(t, "Ann B", updated.Name)
	assert.Equal(t, "ann@x.com", updated.Email, "untouched fields survive")
	assert.Equal(t, user.PasswordHash, updated.PasswordHash)
}

func TestUpdateEmailConflict(t *testing.T) {
	repo := memory.New()
	svc := NewUserService(repo, bcrypt.MinCost)
	seedUser(t, repo, "Ann", "ann@x.com")
	bob := seedUser(t, repo, "Bob", "bob@x.com")

	_, err := svc.Update(context.Background(), bob.ID, UserUpdate{Email: strPtr("ann@x.com")})
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)
}

func TestUpdateRehashesPassword(t *testing.T) {
	repo := memory.New()
	svc := NewUserService(repo, bcrypt.MinCost)
	user := seedUser(t, repo, "Ann", "ann@x.com")

	updated, err := svc.Update(context.Background(), user.ID, UserUpdate{Password: strPtr("new-secret")})
	require.NoError(t, err)
	assert.NotEqual(t, user.PasswordHash, updated.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("new-secret")))
}

func TestUpdateUnknownUser(t *testing.T) {
	svc := NewUserService(memory.New(), bcrypt.MinCost)

	_, err := svc.Update(context.Background(), 99, UserUpdate{Name: strPtr("Nobody")})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteReturnsRemovedUser(t *testing.T) {
	repo := memory.New()
	svc := NewUserService(repo, bcrypt.MinCost)
	user := seedUser(t, repo, "Ann", "ann@x.com")

	deleted, err := svc.Delete(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, deleted.ID)
	assert.Equal(t, 0, repo.Count())
}

func TestDeleteUnknownUserLeavesStoreUnchanged(t *testing.T) {
	repo := memory.New()
	svc := NewUserService(repo, bcrypt.MinCost)
	seedUser(t, repo, "Ann", "ann@x.com")

	_, err := svc.Delete(context.Background(), 99)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 1, repo.Count())
}
