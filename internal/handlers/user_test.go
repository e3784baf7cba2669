package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/pratyush314/acquisitions/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListUsersRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/users", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestListUsersRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "Ann", "ann@x.com", "", "secret1")

	rr := env.do(t, http.MethodGet, "/users", nil, cookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestListUsersAsAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ann", "ann@x.com", "", "secret1")
	admin := env.signup(t, "Root", "root@x.com", types.RoleAdmin, "secret1")

	rr := env.do(t, http.MethodGet, "/users", nil, admin)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := decodeBody(t, rr)
	assert.Equal(t, "Successfully retrieved users.", body["message"])
	assert.EqualValues(t, 2, body["count"])
	users, ok := body["users"].([]any)
	require.True(t, ok)
	assert.Len(t, users, 2)
}

func TestGetOwnProfile(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "Ann", "ann@x.com", "", "secret1")

	rr := env.do(t, http.MethodGet, "/users/1", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	user, ok := decodeBody(t, rr)["user"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, user["id"])
	assert.Equal(t, "Ann", user["name"])
	assert.Equal(t, "ann@x.com", user["email"])
	assert.Equal(t, types.RoleUser, user["role"])
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "password_hash")
}

func TestGetUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "Ann", "ann@x.com", "", "secret1")

	rr := env.do(t, http.MethodGet, "/users/99", nil, cookie)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetUserBadID(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "Ann", "ann@x.com", "", "secret1")

	rr := env.do(t, http.MethodGet, "/users/abc", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateOtherUserForbidden(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ann", "ann@x.com", "", "secret1")
	bob := env.signup(t, "Bob", "bob@x.com", "", "secret1")

	rr := env.do(t, http.MethodPut, "/users/1", map[string]string{"name": "Hacked"}, bob)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// Store unchanged.
	admin := env.signup(t, "Root", "root@x.com", types.RoleAdmin, "secret1")
	rr = env.do(t, http.MethodGet, "/users/1", nil, admin)
	require.Equal(t, http.StatusOK, rr.Code)
	user := decodeBody(t, rr)["user"].(map[string]any)
	assert.Equal(t, "Ann", user["name"])
}

func TestSelfUpdateStripsRoleChange(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "Ann", "ann@x.com", "", "secret1")

	rr := env.do(t, http.MethodPut, "/users/1", map[string]string{
		"name": "Ann B",
		"role": types.RoleAdmin,
	}, cookie)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	user := decodeBody(t, rr)["user"].(map[string]any)
	assert.Equal(t, "Ann B", user["name"], "permitted fields applied")
	assert.Equal(t, types.RoleUser, user["role"], "role change silently dropped")
}

func TestAdminCanChangeRole(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ann", "ann@x.com", "", "secret1")
	admin := env.signup(t, "Root", "root@x.com", types.RoleAdmin, "secret1")

	rr := env.do(t, http.MethodPut, "/users/1", map[string]string{"role": types.RoleAdmin}, admin)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	user := decodeBody(t, rr)["user"].(map[string]any)
	assert.Equal(t, types.RoleAdmin, user["role"])
}

func TestUpdateEmailConflict(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ann", "ann@x.com", "", "secret1")
	bob := env.signup(t, "Bob", "bob@x.com", "", "secret1")

	rr := env.do(t, http.MethodPut, "/users/2", map[string]string{"email": "ann@x.com"}, bob)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestUpdateUnknownUserAsAdmin(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signup(t, "Root", "root@x.com", types.RoleAdmin, "secret1")

	rr := env.do(t, http.MethodPut, "/users/99", map[string]string{"name": "Nobody"}, admin)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteOtherUserForbidden(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ann", "ann@x.com", "", "secret1")
	bob := env.signup(t, "Bob", "bob@x.com", "", "secret1")

	rr := env.do(t, http.MethodDelete, "/users/1", nil, bob)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, 2, env.repo.Count())
}

func TestDeleteSelf(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "Ann", "ann@x.com", "", "secret1")

	rr := env.do(t, http.MethodDelete, "/users/1", nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "User deleted successfully", decodeBody(t, rr)["message"])
	assert.Equal(t, 0, env.repo.Count())
}

func TestDeleteUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	admin := env.signup(t, "Root", "root@x.com", types.RoleAdmin, "secret1")

	rr := env.do(t, http.MethodDelete, "/users/99", nil, admin)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, 1, env.repo.Count())
}

func TestUsersRoutesRejectBadToken(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Ann", "ann@x.com", "", "secret1")

	bad := &http.Cookie{Name: TokenCookieName, Value: "garbage"}
	for _, path := range []string{"/users", "/users/1"} {
		rr := env.do(t, http.MethodGet, path, nil, bad)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, fmt.Sprintf("path %s", path))
	}
}
