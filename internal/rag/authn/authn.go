// Package authn verifies OIDC-issued identities for the HTTP API. It is
// disabled by default (config.AuthConfig.Issuer empty); once configured it
// supports both a browser authorization-code login flow and stateless
// bearer-token verification for programmatic callers.
package authn

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"ragforge/internal/config"
)

// Claims is the subset of ID token claims the API cares about.
type Claims struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
}

// Authenticator verifies bearer tokens and drives the browser login flow
// against a single configured OIDC provider.
type Authenticator struct {
	oauth2Config   *oauth2.Config
	verifier       *oidc.IDTokenVerifier
	cookieName     string
	allowedDomains []string
}

// New builds an Authenticator from cfg. It returns (nil, nil) when Issuer is
// empty, the signal callers use to skip auth entirely.
func New(ctx context.Context, cfg config.AuthConfig) (*Authenticator, error) {
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, nil
	}
	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("discover oidc provider: %w", err)
	}
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = "ragforge_session"
	}
	return &Authenticator{
		oauth2Config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier:       provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		cookieName:     cookieName,
		allowedDomains: cfg.AllowedDomains,
	}, nil
}

// LoginHandler begins the authorization code flow with PKCE.
func (a *Authenticator) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := randToken(16)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		verifier, err := randToken(32)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		secure := r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
		setTempCookie(w, "ragforge_oidc_state", state, 10*time.Minute, secure)
		setTempCookie(w, "ragforge_oidc_verifier", verifier, 10*time.Minute, secure)

		authURL := a.oauth2Config.AuthCodeURL(state,
			oauth2.SetAuthURLParam("code_challenge", pkceChallenge(verifier)),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"))
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// CallbackHandler completes the authorization code exchange, verifies the
// returned ID token, and sets it as a session cookie. The raw ID token is
// self-verifying, so no server-side session store is required here.
func (a *Authenticator) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := r.URL.Query().Get("state")
		code := r.URL.Query().Get("code")
		if state == "" || code == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		stateCookie, err := r.Cookie("ragforge_oidc_state")
		if err != nil || stateCookie.Value != state {
			http.Error(w, "invalid state", http.StatusBadRequest)
			return
		}
		verifierCookie, err := r.Cookie("ragforge_oidc_verifier")
		if err != nil || verifierCookie.Value == "" {
			http.Error(w, "missing code verifier", http.StatusBadRequest)
			return
		}

		ctx := r.Context()
		tok, err := a.oauth2Config.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", verifierCookie.Value))
		if err != nil {
			http.Error(w, "exchange failed", http.StatusBadRequest)
			return
		}
		rawIDToken, ok := tok.Extra("id_token").(string)
		if !ok {
			http.Error(w, "missing id_token", http.StatusBadRequest)
			return
		}
		claims, err := a.verifyAndExtract(ctx, rawIDToken)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		secure := r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
		http.SetCookie(w, &http.Cookie{
			Name:     a.cookieName,
			Value:    rawIDToken,
			Path:     "/",
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
			Expires:  time.Now().Add(time.Hour),
		})
		_ = claims
		http.Redirect(w, r, "/", http.StatusFound)
	}
}

// Middleware attaches the caller's Claims to the request context when an
// Authorization: Bearer header or session cookie carries a valid ID token.
// Requests without one, or with one that fails verification, get 401.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			if c, err := r.Cookie(a.cookieName); err == nil {
				raw = c.Value
			}
		}
		if raw == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="ragforge"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		claims, err := a.verifyAndExtract(r.Context(), raw)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func (a *Authenticator) verifyAndExtract(ctx context.Context, rawIDToken string) (*Claims, error) {
	idToken, err := a.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}
	var c Claims
	if err := idToken.Claims(&c); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	c.Subject = idToken.Subject
	if c.Email == "" {
		return nil, fmt.Errorf("id token missing email claim")
	}
	if !emailAllowed(c.Email, a.allowedDomains) {
		return nil, fmt.Errorf("email domain not allowed: %s", c.Email)
	}
	return &c, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}

// emailAllowed reports whether email's domain is in allowed; an empty list
// permits every domain.
func emailAllowed(email string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	for _, a := range allowed {
		if strings.EqualFold(domain, strings.TrimSpace(a)) {
			return true
		}
	}
	return false
}
