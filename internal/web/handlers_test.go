// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/authd/internal/auth"
	"github.com/holomush/authd/internal/auth/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	router   *gin.Engine
	users    *memory.UserRepository
	sessions *memory.SessionStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	users := memory.NewUserRepository()
	sessions := memory.NewSessionStore()
	svc, err := auth.NewService(users, sessions, hasher, auth.WithLogger(discardLogger()))
	require.NoError(t, err)

	return &testEnv{
		router: NewRouter(RouterConfig{
			Auth:           svc,
			Logger:         discardLogger(),
			Cookies:        CookieOptions{SameSite: http.SameSiteLaxMode},
			RequestTimeout: time.Second,
		}),
		users:    users,
		sessions: sessions,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	t.Fatalf("response has no %s cookie", SessionCookieName)
	return nil
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

const aliceSignup = `{"user_name":"alice","email":"a@x.io","password":"pw1"}`

func TestSignup_SetsCookieAndReturnsUser(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/signup", aliceSignup)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Result string         `json:"result"`
		User   map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, ResultAccountCreated, body.Result)
	assert.Equal(t, "a@x.io", body.User["email"])
	assert.Equal(t, "alice", body.User["user_name"])
	assert.NotContains(t, body.User, "password_digest")

	cookie := sessionCookie(t, w)
	assert.Len(t, cookie.Value, 2*auth.SessionTokenBytes)
	assert.Equal(t, "/", cookie.Path)
	assert.True(t, cookie.HttpOnly)
	assert.WithinDuration(t, time.Now().Add(auth.SessionTTL), cookie.Expires, time.Minute)

	raw := w.Header().Get("Set-Cookie")
	assert.Contains(t, raw, "Expires=")
	assert.Contains(t, raw, "GMT")
	assert.Contains(t, raw, "SameSite=Lax")
}

func TestSignup_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/signup", aliceSignup).Code)

	w := env.do(t, http.MethodPost, "/signup", `{"user_name":"mallory","email":"a@x.io","password":"other"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrorEmailInUse, decodeError(t, w).Error)
	assert.Empty(t, w.Result().Cookies())
	assert.Equal(t, 1, env.users.Len())
}

func TestSignup_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		body  string
		want  string
		users int
	}{
		{"malformed json", `{"email":`, ErrorInvalidRequest, 0},
		{"empty body", "", ErrorInvalidRequest, 0},
		{"invalid email", `{"user_name":"x","email":"nope","password":"pw"}`, ErrorInvalidRequest, 0},
		{"empty password", `{"user_name":"x","email":"x@x.io","password":""}`, ErrorHashing, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/signup", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, decodeError(t, w).Error)
			assert.Equal(t, tt.users, env.users.Len())
		})
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/signup", aliceSignup).Code)

	t.Run("success", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/login", `{"email":"a@x.io","password":"pw1"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"result":"Logged in successfully"}`, w.Body.String())
		assert.NotEmpty(t, sessionCookie(t, w).Value)
	})

	t.Run("wrong password and unknown email look the same", func(t *testing.T) {
		wrong := env.do(t, http.MethodPost, "/login", `{"email":"a@x.io","password":"nope"}`)
		unknown := env.do(t, http.MethodPost, "/login", `{"email":"b@x.io","password":"pw1"}`)

		assert.Equal(t, http.StatusUnauthorized, wrong.Code)
		assert.Equal(t, http.StatusUnauthorized, unknown.Code)
		assert.Equal(t, wrong.Body.String(), unknown.Body.String())
		assert.Empty(t, wrong.Result().Cookies())
	})
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	signup := env.do(t, http.MethodPost, "/signup", aliceSignup)
	cookie := sessionCookie(t, signup)

	w := env.do(t, http.MethodGet, "/logout", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")

	_, err := env.sessions.FindByToken(context.Background(), cookie.Value)
	assert.ErrorIs(t, err, auth.ErrNotFound)

	// Logging out an unknown token still succeeds.
	w = env.do(t, http.MethodPost, "/logout", "", &http.Cookie{Name: SessionCookieName, Value: "deadbeef"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/logout", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrorMissingToken, decodeError(t, w).Error)
}

func TestSessionGate(t *testing.T) {
	env := newTestEnv(t)
	signup := env.do(t, http.MethodPost, "/signup", aliceSignup)
	cookie := sessionCookie(t, signup)

	w := env.do(t, http.MethodGet, "/me", "", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	var me meResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	_, err := ulid.Parse(me.UserID)
	assert.NoError(t, err)

	w = env.do(t, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ErrorUnauthenticated, decodeError(t, w).Error)

	w = env.do(t, http.MethodGet, "/me", "", &http.Cookie{Name: SessionCookieName, Value: "forged"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/logout", "", cookie).Code)
	w = env.do(t, http.MethodGet, "/me", "", cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// stubAuthenticator fails every call with err.
type stubAuthenticator struct {
	err error
}

func (s stubAuthenticator) Register(context.Context, string, string, string) (*auth.UserAccount, *auth.Session, error) {
	return nil, nil, s.err
}

func (s stubAuthenticator) Login(context.Context, string, string) (*auth.Session, error) {
	return nil, s.err
}

func (s stubAuthenticator) Logout(context.Context, string) error {
	return s.err
}

func (s stubAuthenticator) ValidateSession(context.Context, string) (*auth.Session, error) {
	return nil, s.err
}

func TestStorageFailureMapsTo500(t *testing.T) {
	var logs bytes.Buffer
	storageErr := auth.StorageError(errors.New("connection refused"), "find session")
	router := NewRouter(RouterConfig{
		Auth:   stubAuthenticator{err: storageErr},
		Logger: slog.New(slog.NewJSONHandler(&logs, nil)),
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, ErrorStorageUnavailable, body.Error)
	assert.NotContains(t, body.Message, "connection refused")
	assert.Contains(t, logs.String(), auth.CodeStorageUnavailable)
}

func TestSignupAndLogin_StorageFailureIs500(t *testing.T) {
	router := NewRouter(RouterConfig{
		Auth:   stubAuthenticator{err: auth.StorageError(errors.New("connection refused"), "insert account")},
		Logger: discardLogger(),
	})

	for _, path := range []string{"/signup", "/login"} {
		t.Run(path, func(t *testing.T) {
			body := `{"user_name":"alice","email":"alice@example.com","password":"pw"}`
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusInternalServerError, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, ErrorStorageUnavailable, resp.Error)
			assert.Equal(t, "storage is temporarily unavailable", resp.Message)
			assert.Empty(t, w.Result().Cookies())
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		name   string
	}{
		{auth.EmailInUseError("a@x.io"), http.StatusBadRequest, ErrorEmailInUse},
		{oops.Code(auth.CodeInvalidCredentials).Errorf("x"), http.StatusUnauthorized, ErrorInvalidCredentials},
		{oops.Code(auth.CodeMissingToken).Errorf("x"), http.StatusBadRequest, ErrorMissingToken},
		{oops.Code(auth.CodeUnauthenticated).Errorf("x"), http.StatusUnauthorized, ErrorUnauthenticated},
		{oops.Code(auth.CodeHashingFailed).Errorf("x"), http.StatusBadRequest, ErrorHashing},
		{oops.Code(auth.CodeInvalidDigest).Errorf("x"), http.StatusInternalServerError, ErrorVerification},
		{oops.With("operation", "outer").Wrap(auth.StorageError(errors.New("x"), "inner")), http.StatusInternalServerError, ErrorStorageUnavailable},
		{errors.New("plain"), http.StatusInternalServerError, ErrorInternal},
	}
	for _, tt := range tests {
		status, name := StatusFor(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.name, name, tt.err.Error())
	}
}

type recordingObserver struct {
	routes []string
	codes  []int
}

func (r *recordingObserver) ObserveRequest(_, route string, status int, _ time.Duration) {
	r.routes = append(r.routes, route)
	r.codes = append(r.codes, status)
}

func TestRouter_ObservesRequests(t *testing.T) {
	obs := &recordingObserver{}
	router := NewRouter(RouterConfig{
		Auth:     stubAuthenticator{err: oops.Code(auth.CodeUnauthenticated).Errorf("x")},
		Logger:   discardLogger(),
		Observer: obs,
	})

	for _, path := range []string{"/me", "/nowhere"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, []string{"/me", "unmatched"}, obs.routes)
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusNotFound}, obs.codes)
}

func TestRequestTimeoutBoundsContext(t *testing.T) {
	r := gin.New()
	r.Use(requestTimeout(50 * time.Millisecond))
	var deadline time.Time
	var ok bool
	r.GET("/", func(c *gin.Context) {
		deadline, ok = c.Request.Context().Deadline()
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, time.Second)
}

func TestServer_StartStop(t *testing.T) {
	srv := NewServer("127.0.0.1:0", http.NotFoundHandler(), discardLogger())
	errCh, err := srv.Start()
	require.NoError(t, err)
	assert.NotEmpty(t, srv.Addr())

	_, err = srv.Start()
	assert.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	require.NoError(t, srv.Stop(ctx))

	_, open := <-errCh
	assert.False(t, open)
}
