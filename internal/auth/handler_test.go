package auth

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/slipdesk/slipdesk/internal/platform/httpx"
	"github.com/slipdesk/slipdesk/internal/shared"
)

type stubRepo struct {
	users map[string]*User
}

func (r *stubRepo) FindByUsername(ctx context.Context, username string) (*User, error) {
	user, ok := r.users[username]
	if !ok {
		return nil, httpx.ErrNotFound
	}
	return user, nil
}

func newTestHandler(t *testing.T) (*Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	require.NoError(t, err)

	repo := &stubRepo{users: map[string]*User{
		"asha": {
			ID:           uuid.New(),
			Username:     "asha",
			Name:         "Asha",
			PasswordHash: string(hash),
			Role:         shared.RoleAdmin,
			IsActive:     true,
		},
		"dormant": {
			ID:           uuid.New(),
			Username:     "dormant",
			Name:         "Dormant",
			PasswordHash: string(hash),
			Role:         shared.RoleSales,
			IsActive:     false,
		},
	}}

	sessions := shared.NewSessionManager(client, "slipdesk_session", time.Hour, false)
	logger := slog.New(slog.DiscardHandler)
	return NewHandler(logger, NewService(repo), sessions), sessions
}

func TestLoginIssuesSessionCookie(t *testing.T) {
	h, sessions := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"username":"asha","password":"hunter22"}`))
	rec := httptest.NewRecorder()
	h.handleLogin(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "slipdesk_session", cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)

	follow := httptest.NewRequest(http.MethodGet, "/me", nil)
	follow.AddCookie(cookies[0])
	ident, err := sessions.Load(context.Background(), follow)
	require.NoError(t, err)
	require.NotNil(t, ident)
	require.Equal(t, "Asha", ident.Name)
	require.Equal(t, shared.RoleAdmin, ident.Role)
}

func TestLoginRejectsBadPassword(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"username":"asha","password":"wrong"}`))
	rec := httptest.NewRecorder()
	h.handleLogin(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Empty(t, rec.Result().Cookies())
}

func TestLoginRejectsUnknownAndInactiveUsers(t *testing.T) {
	h, _ := newTestHandler(t)

	for _, body := range []string{
		`{"username":"ghost","password":"hunter22"}`,
		`{"username":"dormant","password":"hunter22"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.handleLogin(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, body)
	}
}

func TestLoginValidatesPayload(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"asha"}`))
	rec := httptest.NewRecorder()
	h.handleLogin(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutDestroysSession(t *testing.T) {
	h, sessions := newTestHandler(t)

	loginReq := httptest.NewRequest(http.MethodPost, "/login",
		strings.NewReader(`{"username":"asha","password":"hunter22"}`))
	loginRec := httptest.NewRecorder()
	h.handleLogin(loginRec, loginReq)
	require.Equal(t, http.StatusOK, loginRec.Code)
	cookie := loginRec.Result().Cookies()[0]

	logoutReq := httptest.NewRequest(http.MethodPost, "/logout", nil)
	logoutReq.AddCookie(cookie)
	logoutRec := httptest.NewRecorder()
	h.handleLogout(logoutRec, logoutReq)
	require.Equal(t, http.StatusNoContent, logoutRec.Code)

	follow := httptest.NewRequest(http.MethodGet, "/me", nil)
	follow.AddCookie(cookie)
	ident, err := sessions.Load(context.Background(), follow)
	require.NoError(t, err)
	require.Nil(t, ident)
}

func TestMeRequiresIdentity(t *testing.T) {
	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := httptest.NewRecorder()
	h.handleMe(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	ident := &shared.Identity{UserID: "u1", Name: "Asha", Role: shared.RoleAdmin}
	withIdent := req.WithContext(shared.ContextWithIdentity(req.Context(), ident))
	rec = httptest.NewRecorder()
	h.handleMe(rec, withIdent)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Asha")
}
