package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harborlight-hq/harborlight/internal/directory"
	"github.com/harborlight-hq/harborlight/internal/shared"
	_ "github.com/harborlight-hq/harborlight/testing"
)

type memUsers struct {
	users map[int64]directory.User
}

func (m *memUsers) FindUser(_ context.Context, id int64) (directory.User, error) {
	user, ok := m.users[id]
	if !ok {
		return directory.User{}, shared.ErrNotFound
	}
	return user, nil
}

func seedUser(t *testing.T, id int64, secret string, active bool) *memUsers {
	t.Helper()
	hash, err := HashToken(secret)
	require.NoError(t, err)
	return &memUsers{users: map[int64]directory.User{
		id: {ID: id, Email: "staff@example.org", TokenHash: hash, IsActive: active},
	}}
}

func TestAuthenticate(t *testing.T) {
	svc := NewService(seedUser(t, 7, "s3cret-token", true))

	actor, err := svc.Authenticate(context.Background(), "7.s3cret-token")
	require.NoError(t, err)
	require.EqualValues(t, 7, actor.ID)
	require.Equal(t, "staff@example.org", actor.Email)
}

func TestAuthenticateRejections(t *testing.T) {
	svc := NewService(seedUser(t, 7, "s3cret-token", true))

	cases := []string{
		"",
		"7",
		"7.",
		"7.wrong-secret",
		"8.s3cret-token",
		"abc.s3cret-token",
	}
	for _, token := range cases {
		_, err := svc.Authenticate(context.Background(), token)
		require.ErrorIs(t, err, shared.ErrInvalidCredentials, "token %q", token)
	}
}

func TestAuthenticateInactiveUser(t *testing.T) {
	svc := NewService(seedUser(t, 7, "s3cret-token", false))

	_, err := svc.Authenticate(context.Background(), "7.s3cret-token")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestMiddlewareSetsActor(t *testing.T) {
	svc := NewService(seedUser(t, 7, "s3cret-token", true))
	mw := NewMiddleware(svc, nil)

	var got *shared.Actor
	handler := mw.RequireActor(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = shared.ActorFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/participants", nil)
	req.Header.Set("Authorization", "Bearer 7.s3cret-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	require.EqualValues(t, 7, got.ID)
}

func TestMiddlewareRejectsMissingAndBadTokens(t *testing.T) {
	svc := NewService(seedUser(t, 7, "s3cret-token", true))
	mw := NewMiddleware(svc, nil)
	handler := mw.RequireActor(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler must not run")
	}))

	for _, header := range []string{"", "Bearer ", "Basic abc", fmt.Sprintf("Bearer 7.%s", "nope")} {
		req := httptest.NewRequest(http.MethodGet, "/participants", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}
