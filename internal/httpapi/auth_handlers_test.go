package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"clipstream.dev/internal/auth"
)

// fakeStore is an in-memory auth.Store for exercising the HTTP surface.
type fakeStore struct {
	mu    sync.Mutex
	users map[string]*auth.User
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*auth.User)}
}

func (m *fakeStore) Create(ctx context.Context, u *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return auth.ErrAlreadyExists
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *fakeStore) FindByID(ctx context.Context, id string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *fakeStore) FindByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == identifier || u.Email == identifier {
			cp := *u
			return &cp, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (m *fakeStore) SetRefreshToken(ctx context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.RefreshToken = token
	return nil
}

func (m *fakeStore) RotateRefreshToken(ctx context.Context, id, oldToken, newToken string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.RefreshToken != oldToken {
		return false, nil
	}
	u.RefreshToken = newToken
	return true, nil
}

func (m *fakeStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *fakeStore) UpdateProfile(ctx context.Context, id, fullName, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	u.FullName = fullName
	u.Email = email
	cp := *u
	return &cp, nil
}

func newTestAPI(t *testing.T) *API {
	t.Helper()
	return newTestAPIWithStore(t, newFakeStore())
}

func newTestAPIWithStore(t *testing.T, store auth.Store) *API {
	t.Helper()
	signer, err := auth.NewSigner(auth.SignerConfig{
		AccessSecret:  "test-access-secret",
		RefreshSecret: "test-refresh-secret",
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	sessions, err := auth.NewService(store, signer)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return New(sessions, ReadyProbe{}, Options{
		Version:       "test",
		RateBurst:     1000,
		RatePerSecond: 1000,
	})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(req)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return out
}

func registerAlice(t *testing.T, h http.Handler) {
	t.Helper()
	rr := doJSON(t, h, http.MethodPost, "/api/v1/users/register", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"fullName": "Alice Doe",
		"password": "correct horse",
	}, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRegisterValidationAndConflict(t *testing.T) {
	h := newTestAPI(t).Handler()

	rr := doJSON(t, h, http.MethodPost, "/api/v1/users/register", map[string]string{
		"username": "alice",
	}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", rr.Code)
	}

	registerAlice(t, h)
	rr = doJSON(t, h, http.MethodPost, "/api/v1/users/register", map[string]string{
		"username": "alice",
		"email":    "second@example.com",
		"fullName": "Second",
		"password": "pw",
	}, nil)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate username, got %d", rr.Code)
	}
}

func TestLoginBadCredentialsAreIndistinguishable(t *testing.T) {
	h := newTestAPI(t).Handler()
	registerAlice(t, h)

	unknown := doJSON(t, h, http.MethodPost, "/api/v1/users/login", map[string]string{
		"username": "nonexistent",
		"password": "x",
	}, nil)
	wrongPW := doJSON(t, h, http.MethodPost, "/api/v1/users/login", map[string]string{
		"username": "alice",
		"password": "wrongpassword",
	}, nil)

	if unknown.Code != http.StatusUnauthorized || wrongPW.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", unknown.Code, wrongPW.Code)
	}
	if unknown.Body.String() != wrongPW.Body.String() {
		t.Fatalf("error bodies differ: %q vs %q", unknown.Body.String(), wrongPW.Body.String())
	}
}

func TestLoginMissingFields(t *testing.T) {
	h := newTestAPI(t).Handler()
	rr := doJSON(t, h, http.MethodPost, "/api/v1/users/login", map[string]string{
		"username": "alice",
	}, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestSessionLifecycleScenario(t *testing.T) {
	h := newTestAPI(t).Handler()
	registerAlice(t, h)

	// Login returns the user plus both tokens, mirrored in cookies.
	rr := doJSON(t, h, http.MethodPost, "/api/v1/users/login", map[string]string{
		"username": "alice",
		"password": "correct horse",
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)
	data := env["data"].(map[string]any)
	access1 := data["accessToken"].(string)
	refresh1 := data["refreshToken"].(string)
	if access1 == "" || refresh1 == "" {
		t.Fatal("expected both tokens in body")
	}
	cookies := rr.Result().Cookies()
	names := make(map[string]bool)
	for _, c := range cookies {
		names[c.Name] = true
		if !c.HttpOnly {
			t.Fatalf("cookie %s must be HttpOnly", c.Name)
		}
	}
	if !names["accessToken"] || !names["refreshToken"] {
		t.Fatalf("expected token cookies, got %v", cookies)
	}

	// Protected route with the access token attaches alice's identity.
	rr = doJSON(t, h, http.MethodGet, "/api/v1/users/current-user", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+access1)
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("current-user: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	env = decodeEnvelope(t, rr)
	if env["data"].(map[string]any)["username"] != "alice" {
		t.Fatalf("expected alice, got %v", env["data"])
	}

	// Refresh via body rotates the pair.
	rr = doJSON(t, h, http.MethodPost, "/api/v1/users/refresh-token", map[string]string{
		"refreshToken": refresh1,
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	env = decodeEnvelope(t, rr)
	refresh2 := env["data"].(map[string]any)["refreshToken"].(string)
	if refresh2 == refresh1 {
		t.Fatal("expected rotated refresh token")
	}

	// The rotated-out token is rejected.
	rr = doJSON(t, h, http.MethodPost, "/api/v1/users/refresh-token", map[string]string{
		"refreshToken": refresh1,
	}, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("reused refresh: expected 401, got %d", rr.Code)
	}

	// Refresh via cookie works too.
	rr = doJSON(t, h, http.MethodPost, "/api/v1/users/refresh-token", nil, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: "refreshToken", Value: refresh2})
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("cookie refresh: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	// Logout clears cookies and is idempotent.
	for i := 0; i < 2; i++ {
		rr = doJSON(t, h, http.MethodPost, "/api/v1/users/logout", nil, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+access1)
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("logout %d: expected 200, got %d: %s", i+1, rr.Code, rr.Body.String())
		}
	}
	var cleared bool
	for _, c := range rr.Result().Cookies() {
		if c.Name == "refreshToken" && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Fatal("expected refresh cookie cleared on logout")
	}
}

func TestRefreshWithoutTokenUnauthorized(t *testing.T) {
	h := newTestAPI(t).Handler()
	rr := doJSON(t, h, http.MethodPost, "/api/v1/users/refresh-token", nil, nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestChangePasswordAndUpdateAccount(t *testing.T) {
	h := newTestAPI(t).Handler()
	registerAlice(t, h)

	rr := doJSON(t, h, http.MethodPost, "/api/v1/users/login", map[string]string{
		"username": "alice",
		"password": "correct horse",
	}, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("login: %d", rr.Code)
	}
	access := decodeEnvelope(t, rr)["data"].(map[string]any)["accessToken"].(string)
	withToken := func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+access)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/v1/users/change-password", map[string]string{
		"oldPassword": "wrong",
		"newPassword": "battery staple",
	}, withToken)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong old password: expected 401, got %d", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/v1/users/change-password", map[string]string{
		"oldPassword": "correct horse",
		"newPassword": "battery staple",
	}, withToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("change-password: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, h, http.MethodPatch, "/api/v1/users/update-account", map[string]string{
		"fullName": "Alice B. Doe",
		"email":    "alice.b@example.com",
	}, withToken)
	if rr.Code != http.StatusOK {
		t.Fatalf("update-account: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	env := decodeEnvelope(t, rr)
	if env["data"].(map[string]any)["fullName"] != "Alice B. Doe" {
		t.Fatalf("unexpected profile: %v", env["data"])
	}
}

func TestProfileNeverLeaksCredentialFields(t *testing.T) {
	h := newTestAPI(t).Handler()
	registerAlice(t, h)

	rr := doJSON(t, h, http.MethodPost, "/api/v1/users/login", map[string]string{
		"username": "alice",
		"password": "correct horse",
	}, nil)
	body := rr.Body.String()
	for _, needle := range []string{"passwordHash", "password_hash", "PasswordHash"} {
		if strings.Contains(body, needle) {
			t.Fatalf("response leaks %q: %s", needle, body)
		}
	}
}
