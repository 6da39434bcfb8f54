package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSessionCreateValidateDelete(t *testing.T) {
	sm := NewSessionManager()

	token := sm.Create()
	if token == "" {
		t.Fatal("expected non-empty session token")
	}
	if !sm.Validate(token) {
		t.Error("expected freshly created token to validate")
	}

	sm.Delete(token)
	if sm.Validate(token) {
		t.Error("expected deleted token to fail validation")
	}

	if sm.Validate("") {
		t.Error("expected empty token to fail validation")
	}
	if sm.Validate("bogus") {
		t.Error("expected unknown token to fail validation")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	sm := NewSessionManager()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/login", nil)

	if sm.Login(w, r, "admin", "wrong", "admin", "secret") {
		t.Error("expected login with wrong password to fail")
	}
	if sm.Login(w, r, "nobody", "secret", "admin", "secret") {
		t.Error("expected login with wrong username to fail")
	}
	if !sm.Login(w, r, "admin", "secret", "admin", "secret") {
		t.Error("expected login with correct credentials to succeed")
	}

	cookies := w.Result().Cookies()
	found := false
	for _, c := range cookies {
		if c.Name == sessionCookieName && c.Value != "" {
			found = true
			if !c.HttpOnly {
				t.Error("expected session cookie to be HttpOnly")
			}
		}
	}
	if !found {
		t.Error("expected session cookie to be set after login")
	}
}

func TestCSRFTokenSingleUse(t *testing.T) {
	sm := NewSessionManager()

	token := sm.CreateCSRFToken()
	if token == "" {
		t.Fatal("expected non-empty CSRF token")
	}
	if !sm.ValidateCSRFToken(token) {
		t.Error("expected first validation to succeed")
	}
	if sm.ValidateCSRFToken(token) {
		t.Error("expected second validation of same token to fail")
	}
}

func TestAuthMiddlewareRedirectsWithoutSession(t *testing.T) {
	sm := NewSessionManager()
	called := false
	handler := sm.AuthMiddleware()(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if called {
		t.Error("expected protected handler not to be called")
	}
	if w.Code != http.StatusFound {
		t.Errorf("expected redirect status %d, got %d", http.StatusFound, w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("expected redirect to /login, got %q", loc)
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"no origin header", "", "example.local:8080", true},
		{"localhost", "http://localhost:8080", "example.local:8080", true},
		{"loopback IP", "http://127.0.0.1:8080", "example.local:8080", true},
		{"private range", "http://192.168.1.50:8080", "example.local:8080", true},
		{"same origin", "http://example.local:8080", "example.local:8080", true},
		{"public host", "http://evil.example.com", "example.local:8080", false},
		{"garbage origin", "://not-a-url", "example.local:8080", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			if got := checkOrigin(r); got != tt.want {
				t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}
