package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vidtube/internal/auth/credential"
	"vidtube/internal/auth/session"
	"vidtube/internal/identity"
	"vidtube/internal/projection"
	"vidtube/internal/security/password"
)

type fixture struct {
	mux  *http.ServeMux
	ids  *identity.MemoryStore
	proj *projection.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	pwCfg := password.DefaultConfig()
	pwCfg.Params.MemoryKiB = 8 * 1024
	pwCfg.Params.Iterations = 1
	pwCfg.Params.Parallelism = 1
	hasher := identity.NewPasswordHasher(pwCfg)

	ids := identity.NewMemoryStore(hasher)
	proj := projection.NewMemoryStore(ids)

	credCfg := credential.DefaultConfig()
	credCfg.AccessSecret = []byte("access-secret-0123456789-0123456789-abc")
	credCfg.RefreshSecret = []byte("refresh-secret-0123456789-0123456789-ab")

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions, err := session.NewService(credCfg, ids, ids, hasher,
		session.WithLogger(log),
		session.WithMetrics(session.NewMetrics(prometheus.NewRegistry())),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	cfg := DefaultConfig()
	cfg.CookieSecure = false

	h, err := NewHandler(log, cfg, ids, sessions, proj, hasher)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)
	return &fixture{mux: mux, ids: ids, proj: proj}
}

func (f *fixture) do(t *testing.T, method, path string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) register(t *testing.T, username, email string) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/users/register", registerRequest{
		FullName: "Test " + username,
		Username: username,
		Email:    email,
		Password: "secret123",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status = %d, body = %s", username, rec.Code, rec.Body.String())
	}
}

func (f *fixture) login(t *testing.T, identifier string) (loginResponse, []*http.Cookie) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/users/login", loginRequest{
		Identifier: identifier,
		Password:   "secret123",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status = %d, body = %s", identifier, rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp, rec.Result().Cookies()
}

func withCookies(cookies []*http.Cookie) func(*http.Request) {
	return func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	}
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.register(t, "alice", "alice@example.com")

	// Duplicate username (case-insensitive).
	rec := f.do(t, http.MethodPost, "/api/v1/users/register", registerRequest{
		FullName: "Other Alice", Username: "ALICE", Email: "other@example.com", Password: "secret123",
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate username: status = %d", rec.Code)
	}

	// Missing fields.
	rec = f.do(t, http.MethodPost, "/api/v1/users/register", registerRequest{
		Username: "bob", Password: "secret123",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing fields: status = %d", rec.Code)
	}
}

func TestLoginAndCurrentUser(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com")

	resp, cookies := f.login(t, "alice")
	if resp.User.Username != "alice" {
		t.Fatalf("login user = %q", resp.User.Username)
	}
	if resp.Session.AccessToken == "" || resp.Session.RefreshToken == "" {
		t.Fatalf("session incomplete: %+v", resp.Session)
	}

	var haveAccess, haveRefresh bool
	for _, c := range cookies {
		switch c.Name {
		case "accessToken":
			haveAccess = c.HttpOnly
		case "refreshToken":
			haveRefresh = c.HttpOnly
		}
	}
	if !haveAccess || !haveRefresh {
		t.Fatalf("expected HttpOnly accessToken and refreshToken cookies, got %v", cookies)
	}

	// Cookie transport.
	rec := f.do(t, http.MethodGet, "/api/v1/users/current-user", nil, withCookies(cookies))
	if rec.Code != http.StatusOK {
		t.Fatalf("current-user via cookie: status = %d", rec.Code)
	}

	// Bearer transport.
	rec = f.do(t, http.MethodGet, "/api/v1/users/current-user", nil, withBearer(resp.Session.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("current-user via bearer: status = %d", rec.Code)
	}
	var me meResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	if me.User.Email != "alice@example.com" {
		t.Errorf("me email = %q", me.User.Email)
	}

	// No auth.
	rec = f.do(t, http.MethodGet, "/api/v1/users/current-user", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("current-user unauthenticated: status = %d", rec.Code)
	}

	// Wrong password.
	rec = f.do(t, http.MethodPost, "/api/v1/users/login", loginRequest{
		Identifier: "alice", Password: "wrong-password",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: status = %d", rec.Code)
	}
}

func TestRefreshRotationOverHTTP(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com")
	resp, cookies := f.login(t, "alice")

	// Refresh via cookie.
	rec := f.do(t, http.MethodPost, "/api/v1/users/refresh-token", nil, withCookies(cookies))
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh via cookie: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var rotated refreshResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &rotated); err != nil {
		t.Fatalf("decode refresh response: %v", err)
	}
	if rotated.Session.RefreshToken == resp.Session.RefreshToken {
		t.Fatalf("refresh did not rotate the credential")
	}

	// Replaying the redeemed credential via the body is flagged as reuse.
	rec = f.do(t, http.MethodPost, "/api/v1/users/refresh-token", refreshRequest{
		RefreshToken: resp.Session.RefreshToken,
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("replayed refresh: status = %d", rec.Code)
	}
	var er errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if er.Error.Code != "refresh_reuse_detected" {
		t.Errorf("error code = %q, want refresh_reuse_detected", er.Error.Code)
	}

	// The rotated-in credential still works via the body.
	rec = f.do(t, http.MethodPost, "/api/v1/users/refresh-token", refreshRequest{
		RefreshToken: rotated.Session.RefreshToken,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("rotated refresh: status = %d", rec.Code)
	}

	// Missing credential entirely.
	rec = f.do(t, http.MethodPost, "/api/v1/users/refresh-token", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing refresh: status = %d", rec.Code)
	}
}

func TestLogoutOverHTTP(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com")
	resp, cookies := f.login(t, "alice")

	rec := f.do(t, http.MethodPost, "/api/v1/users/logout", nil, withCookies(cookies))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout: status = %d", rec.Code)
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == "refreshToken" && c.MaxAge != -1 {
			t.Errorf("refreshToken cookie not cleared: %+v", c)
		}
	}

	// The refresh credential is dead after logout.
	rec = f.do(t, http.MethodPost, "/api/v1/users/refresh-token", refreshRequest{
		RefreshToken: resp.Session.RefreshToken,
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: status = %d", rec.Code)
	}
}

func TestChangePasswordOverHTTP(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com")
	resp, _ := f.login(t, "alice")
	auth := withBearer(resp.Session.AccessToken)

	rec := f.do(t, http.MethodPost, "/api/v1/users/change-password", changePasswordRequest{
		OldPassword: "wrong", NewPassword: "brand-new-pass",
	}, auth)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong old password: status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/users/change-password", changePasswordRequest{
		OldPassword: "secret123", NewPassword: "short",
	}, auth)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("weak new password: status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/users/change-password", changePasswordRequest{
		OldPassword: "secret123", NewPassword: "brand-new-pass",
	}, auth)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("change password: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Old password no longer works, new one does.
	rec = f.do(t, http.MethodPost, "/api/v1/users/login", loginRequest{
		Identifier: "alice", Password: "secret123",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("old password after change: status = %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/api/v1/users/login", loginRequest{
		Identifier: "alice", Password: "brand-new-pass",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("new password after change: status = %d", rec.Code)
	}
}

func TestUpdateAccountOverHTTP(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com")
	resp, _ := f.login(t, "alice")
	auth := withBearer(resp.Session.AccessToken)

	rec := f.do(t, http.MethodPatch, "/api/v1/users/update-account", updateAccountRequest{
		FullName: "Alice Q. Example",
	}, auth)
	if rec.Code != http.StatusOK {
		t.Fatalf("update account: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var me meResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if me.User.FullName != "Alice Q. Example" {
		t.Errorf("full name = %q", me.User.FullName)
	}

	rec = f.do(t, http.MethodPatch, "/api/v1/users/update-account", updateAccountRequest{}, auth)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty update: status = %d", rec.Code)
	}
}

func TestChannelAndHistoryOverHTTP(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com")
	f.register(t, "bob", "bob@example.com")

	aliceResp, _ := f.login(t, "alice")
	bobResp, _ := f.login(t, "bob")

	f.proj.Subscribe(aliceResp.User.ID, bobResp.User.ID) // bob follows alice

	// Bob views alice's channel.
	rec := f.do(t, http.MethodGet, "/api/v1/users/channel/alice", nil, withBearer(bobResp.Session.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("channel: status = %d", rec.Code)
	}
	var ch channelResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &ch); err != nil {
		t.Fatalf("decode channel: %v", err)
	}
	if ch.SubscriberCount != 1 || !ch.IsSubscribed {
		t.Errorf("channel = %+v", ch)
	}

	// A viewer without a subscription edge sees the counts but no flag.
	rec = f.do(t, http.MethodGet, "/api/v1/users/channel/alice", nil, withBearer(aliceResp.Session.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("unsubscribed viewer channel: status = %d", rec.Code)
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &ch)
	if ch.IsSubscribed {
		t.Errorf("unsubscribed viewer marked subscribed")
	}

	// No credential, no channel page.
	rec = f.do(t, http.MethodGet, "/api/v1/users/channel/alice", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated channel: status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/users/channel/nobody", nil, withBearer(bobResp.Session.AccessToken))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown channel: status = %d", rec.Code)
	}

	// Watch history.
	f.proj.AddVideo(projection.Video{ID: "v1", OwnerID: aliceResp.User.ID, Title: "Intro", Duration: time.Minute})
	rec = f.do(t, http.MethodPost, "/api/v1/users/history", recordWatchRequest{VideoID: "v1"}, withBearer(bobResp.Session.AccessToken))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("record watch: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodPost, "/api/v1/users/history", recordWatchRequest{VideoID: "missing"}, withBearer(bobResp.Session.AccessToken))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("record watch unknown video: status = %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/users/history", nil, withBearer(bobResp.Session.AccessToken))
	if rec.Code != http.StatusOK {
		t.Fatalf("history: status = %d", rec.Code)
	}
	var hist historyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.Entries) != 1 || hist.Entries[0].VideoID != "v1" || hist.Entries[0].OwnerUsername != "alice" {
		t.Errorf("history = %+v", hist)
	}
}
