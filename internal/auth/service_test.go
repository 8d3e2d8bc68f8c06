package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ASS429/ma-boutique-backend/internal/auth"
	"github.com/ASS429/ma-boutique-backend/internal/shared"
	_ "github.com/ASS429/ma-boutique-backend/testing"
)

type memoryRepo struct {
	mu     sync.Mutex
	users  map[int64]auth.User
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: map[int64]auth.User{}}
}

func (r *memoryRepo) Create(ctx context.Context, username, hash string) (auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return auth.User{}, auth.ErrUsernameTaken
		}
	}
	r.nextID++
	u := auth.User{ID: r.nextID, Username: username, PasswordHash: hash, Role: shared.RoleUser, Plan: "Free", CreatedAt: time.Now()}
	r.users[u.ID] = u
	return u, nil
}

func (r *memoryRepo) FindByUsername(ctx context.Context, username string) (auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			return u, nil
		}
	}
	return auth.User{}, auth.ErrUserNotFound
}

func (r *memoryRepo) FindByID(ctx context.Context, id int64) (auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, nil
}

func (r *memoryRepo) List(ctx context.Context) ([]auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]auth.User, 0, len(r.users))
	for id := int64(1); id <= r.nextID; id++ {
		if u, ok := r.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (r *memoryRepo) promote(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[id]
	u.Role = shared.RoleAdmin
	r.users[id] = u
}

type staticPolicy map[int64]bool

func (p staticPolicy) TwoFactorEnabled(_ context.Context, userID int64) (bool, error) {
	return p[userID], nil
}

type captureSender struct {
	codes map[int64]string
}

func (s *captureSender) SendTwoFactorCode(_ context.Context, userID int64, _ string, code string) error {
	s.codes[userID] = code
	return nil
}

type fixture struct {
	repo    *memoryRepo
	service *auth.Service
	sender  *captureSender
	redis   *miniredis.Miniredis
	router  http.Handler
}

func newFixture(t *testing.T, policy staticPolicy) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemoryRepo()
	sender := &captureSender{codes: map[int64]string{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := auth.NewService(repo, auth.Options{
		Tokens:     auth.NewTokens("test-secret", time.Hour),
		Sessions:   auth.NewTokenRegistry(client),
		Codes:      auth.NewCodeStore(client, 5*time.Minute),
		TwoFactor:  policy,
		Sender:     sender,
		BcryptCost: bcrypt.MinCost,
		Logger:     logger,
	})
	mw := auth.NewMiddleware(svc, logger)
	h := auth.NewHandler(logger, svc, mw)

	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		h.MountPublicRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate)
			h.MountRoutes(r)
		})
	})
	return &fixture{repo: repo, service: svc, sender: sender, redis: mr, router: r}
}

func (f *fixture) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	u, err := f.service.Register(ctx, auth.Credentials{Username: " awa ", Password: "secret"})
	require.NoError(t, err)
	require.Equal(t, "awa", u.Username)
	require.Equal(t, shared.RoleUser, u.Role)
	require.NotEqual(t, "secret", u.PasswordHash)

	_, err = f.service.Register(ctx, auth.Credentials{Username: "awa", Password: "other"})
	require.ErrorIs(t, err, shared.ErrConflict)
	_, err = f.service.Register(ctx, auth.Credentials{Username: "", Password: "x"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.service.Login(ctx, auth.Credentials{Username: "awa", Password: "wrong"})
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)
	_, err = f.service.Login(ctx, auth.Credentials{Username: "nobody", Password: "secret"})
	require.ErrorIs(t, err, auth.ErrInvalidCredentials)

	res, err := f.service.Login(ctx, auth.Credentials{Username: "awa", Password: "secret"})
	require.NoError(t, err)
	require.False(t, res.TwoFARequired)
	require.NotNil(t, res.Session)

	p, err := f.service.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	require.Equal(t, u.ID, p.UserID)
	require.NotEmpty(t, p.TokenID)

	require.NoError(t, f.service.Logout(ctx, p))
	_, err = f.service.Authenticate(ctx, res.Token)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestTokenExpiresWithRegistry(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	_, err := f.service.Register(ctx, auth.Credentials{Username: "awa", Password: "secret"})
	require.NoError(t, err)
	res, err := f.service.Login(ctx, auth.Credentials{Username: "awa", Password: "secret"})
	require.NoError(t, err)

	f.redis.FastForward(2 * time.Hour)
	_, err = f.service.Authenticate(ctx, res.Token)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestTokensRejectForeignSignature(t *testing.T) {
	issued, _, err := auth.NewTokens("one", time.Hour).Issue(auth.User{ID: 1, Username: "a", Role: shared.RoleUser})
	require.NoError(t, err)
	_, err = auth.NewTokens("two", time.Hour).Parse(issued)
	require.ErrorIs(t, err, auth.ErrInvalidToken)

	claims, err := auth.NewTokens("one", time.Hour).Parse(issued)
	require.NoError(t, err)
	require.Equal(t, int64(1), claims.UserID)
}

func TestAdminTwoFactorFlow(t *testing.T) {
	f := newFixture(t, staticPolicy{1: true})
	ctx := context.Background()
	admin, err := f.service.Register(ctx, auth.Credentials{Username: "admin", Password: "secret"})
	require.NoError(t, err)
	f.repo.promote(admin.ID)

	res, err := f.service.Login(ctx, auth.Credentials{Username: "admin", Password: "secret"})
	require.NoError(t, err)
	require.True(t, res.TwoFARequired)
	require.Nil(t, res.Session)
	code := f.sender.codes[admin.ID]
	require.Len(t, code, 6)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err = f.service.VerifyTwoFactor(ctx, res.Challenge, wrong)
	require.ErrorIs(t, err, auth.ErrInvalidCode)
	// the failed attempt consumed the challenge
	_, err = f.service.VerifyTwoFactor(ctx, res.Challenge, code)
	require.ErrorIs(t, err, auth.ErrInvalidCode)

	res, err = f.service.Login(ctx, auth.Credentials{Username: "admin", Password: "secret"})
	require.NoError(t, err)
	sess, err := f.service.VerifyTwoFactor(ctx, res.Challenge, f.sender.codes[admin.ID])
	require.NoError(t, err)
	require.Equal(t, shared.RoleAdmin, sess.User.Role)

	_, err = f.service.VerifyTwoFactor(ctx, res.Challenge, f.sender.codes[admin.ID])
	require.ErrorIs(t, err, auth.ErrInvalidCode)
}

func TestTwoFactorCodeExpires(t *testing.T) {
	f := newFixture(t, staticPolicy{1: true})
	ctx := context.Background()
	admin, err := f.service.Register(ctx, auth.Credentials{Username: "admin", Password: "secret"})
	require.NoError(t, err)
	f.repo.promote(admin.ID)

	res, err := f.service.Login(ctx, auth.Credentials{Username: "admin", Password: "secret"})
	require.NoError(t, err)
	f.redis.FastForward(6 * time.Minute)
	_, err = f.service.VerifyTwoFactor(ctx, res.Challenge, f.sender.codes[admin.ID])
	require.ErrorIs(t, err, auth.ErrInvalidCode)
}

func TestHandlerFlow(t *testing.T) {
	f := newFixture(t, nil)

	rr := f.do(http.MethodPost, "/auth/register", `{"username":"awa"}`, "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(http.MethodPost, "/auth/register", `{"username":"awa","password":"secret"}`, "")
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Contains(t, rr.Body.String(), "Compte créé avec succès")
	require.NotContains(t, rr.Body.String(), "password")

	rr = f.do(http.MethodPost, "/auth/register", `{"username":"awa","password":"secret"}`, "")
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = f.do(http.MethodPost, "/auth/login", `{"username":"awa","password":"nope"}`, "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(http.MethodPost, "/auth/login", `{"username":"awa","password":"secret"}`, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)

	rr = f.do(http.MethodGet, "/auth/me", "", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = f.do(http.MethodGet, "/auth/me", "", "garbage")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(http.MethodGet, "/auth/me", "", login.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"plan":"Free"`)

	rr = f.do(http.MethodGet, "/auth/users", "", login.Token)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(http.MethodPost, "/auth/logout", "", login.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	rr = f.do(http.MethodGet, "/auth/me", "", login.Token)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandlerAdminListsUsers(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	admin, err := f.service.Register(ctx, auth.Credentials{Username: "admin", Password: "secret"})
	require.NoError(t, err)
	f.repo.promote(admin.ID)
	_, err = f.service.Register(ctx, auth.Credentials{Username: "awa", Password: "secret"})
	require.NoError(t, err)

	res, err := f.service.Login(ctx, auth.Credentials{Username: "admin", Password: "secret"})
	require.NoError(t, err)

	rr := f.do(http.MethodGet, "/auth/users", "", res.Token)
	require.Equal(t, http.StatusOK, rr.Code)
	var users []auth.User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &users))
	require.Len(t, users, 2)
	require.Equal(t, "awa", users[1].Username)
}
