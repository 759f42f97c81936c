package authn

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/oauth2"

	"ragforge/internal/config"
)

func TestNew_EmptyIssuerDisablesAuth(t *testing.T) {
	t.Parallel()
	a, err := New(t.Context(), config.AuthConfig{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != nil {
		t.Fatalf("expected nil Authenticator when issuer is empty")
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "missing header", header: "", want: ""},
		{name: "wrong scheme", header: "Basic abc123", want: ""},
		{name: "bearer token", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "case insensitive scheme", header: "bearer abc.def.ghi", want: "abc.def.ghi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if got := bearerToken(req); got != tt.want {
				t.Fatalf("bearerToken() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEmailAllowed(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		email   string
		allowed []string
		want    bool
	}{
		{name: "no restriction", email: "a@example.com", allowed: nil, want: true},
		{name: "allowed domain", email: "a@example.com", allowed: []string{"example.com"}, want: true},
		{name: "allowed domain case insensitive", email: "a@Example.COM", allowed: []string{"example.com"}, want: true},
		{name: "disallowed domain", email: "a@evil.com", allowed: []string{"example.com"}, want: false},
		{name: "no at sign", email: "not-an-email", allowed: []string{"example.com"}, want: false},
		{name: "empty domain", email: "a@", allowed: []string{"example.com"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := emailAllowed(tt.email, tt.allowed); got != tt.want {
				t.Fatalf("emailAllowed(%q, %v) = %v, want %v", tt.email, tt.allowed, got, tt.want)
			}
		})
	}
}

func TestMiddleware_RejectsRequestWithNoCredential(t *testing.T) {
	t.Parallel()
	a := &Authenticator{cookieName: "ragforge_session"}
	called := false
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(rec, req)

	if called {
		t.Fatalf("expected next handler not to be called")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("expected WWW-Authenticate header to be set")
	}
}

func TestLoginHandler_RedirectsAndSetsTempCookies(t *testing.T) {
	t.Parallel()
	a := &Authenticator{
		oauth2Config: &oauth2.Config{
			ClientID:    "client-1",
			Endpoint:    oauth2.Endpoint{AuthURL: "https://issuer.example.com/authorize"},
			RedirectURL: "https://app.example.com/callback",
			Scopes:      []string{"openid", "email", "profile"},
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	a.LoginHandler()(rec, req)

	if rec.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", rec.Code)
	}
	loc := rec.Header().Get("Location")
	if loc == "" {
		t.Fatalf("expected Location header to be set")
	}

	var sawState, sawVerifier bool
	for _, c := range rec.Result().Cookies() {
		switch c.Name {
		case "ragforge_oidc_state":
			sawState = true
		case "ragforge_oidc_verifier":
			sawVerifier = true
		}
		if !c.HttpOnly {
			t.Fatalf("expected cookie %q to be HttpOnly", c.Name)
		}
	}
	if !sawState || !sawVerifier {
		t.Fatalf("expected both state and verifier cookies to be set")
	}
}

func TestCallbackHandler_RejectsMissingStateOrCode(t *testing.T) {
	t.Parallel()
	a := &Authenticator{oauth2Config: &oauth2.Config{}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/callback", nil)
	a.CallbackHandler()(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing state/code, got %d", rec.Code)
	}
}

func TestCallbackHandler_RejectsMismatchedState(t *testing.T) {
	t.Parallel()
	a := &Authenticator{oauth2Config: &oauth2.Config{}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/callback?state=expected&code=abc", nil)
	req.AddCookie(&http.Cookie{Name: "ragforge_oidc_state", Value: "different"})
	a.CallbackHandler()(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for mismatched state, got %d", rec.Code)
	}
}
