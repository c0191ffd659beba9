package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	WorkspaceCookie = "workspace"
	tokenIssuer     = "local-chat-assistant"
)

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

// WorkspaceClaims binds a browser or API client to one workspace. The
// workspace ID is the token subject and survives renewals.
type WorkspaceClaims struct {
	jwt.RegisteredClaims
}

func (c *WorkspaceClaims) WorkspaceID() string { return c.Subject }

// AuthManager issues and verifies HS256 workspace tokens, carried either in
// the workspace cookie or as a bearer token.
type AuthManager struct {
	secret []byte
	domain string
	secure bool
	ttl    time.Duration
	now    func() time.Time
}

func NewAuthManager(secret string, secure bool, domain string, ttl time.Duration) *AuthManager {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &AuthManager{
		secret: []byte(secret),
		domain: domain, // "" keeps a host-only cookie
		secure: secure,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Mint starts a new workspace and sets its token cookie.
func (a *AuthManager) Mint(w http.ResponseWriter) (*WorkspaceClaims, string, error) {
	return a.issue(w, uuid.NewString())
}

// Renew re-issues the token of an existing workspace with a fresh lifetime.
func (a *AuthManager) Renew(w http.ResponseWriter, c *WorkspaceClaims) (*WorkspaceClaims, string, error) {
	return a.issue(w, c.WorkspaceID())
}

// NeedsRenewal reports whether less than half of the token lifetime is left.
func (a *AuthManager) NeedsRenewal(c *WorkspaceClaims) bool {
	if c.ExpiresAt == nil {
		return true
	}
	return c.ExpiresAt.Sub(a.now()) < a.ttl/2
}

func (a *AuthManager) issue(w http.ResponseWriter, workspaceID string) (*WorkspaceClaims, string, error) {
	now := a.now()
	claims := &WorkspaceClaims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    tokenIssuer,
		Subject:   workspaceID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return nil, "", fmt.Errorf("sign workspace token: %w", err)
	}
	a.setCookie(w, signed, int(a.ttl.Seconds()))
	return claims, signed, nil
}

// Clear drops the workspace cookie. The workspace itself is left alone.
func (a *AuthManager) Clear(w http.ResponseWriter) {
	a.setCookie(w, "", -1)
}

func (a *AuthManager) setCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     WorkspaceCookie,
		Value:    value,
		Path:     "/",
		Domain:   a.domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   a.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ParseFromRequest prefers "Authorization: Bearer" over the cookie.
func (a *AuthManager) ParseFromRequest(r *http.Request) (*WorkspaceClaims, error) {
	if scheme, tok, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "bearer") {
		return a.parse(strings.TrimSpace(tok))
	}
	if c, err := r.Cookie(WorkspaceCookie); err == nil && c.Value != "" {
		return a.parse(c.Value)
	}
	return nil, errMissingToken
}

func (a *AuthManager) parse(tok string) (*WorkspaceClaims, error) {
	claims := &WorkspaceClaims{}
	_, err := jwt.ParseWithClaims(tok, claims,
		func(*jwt.Token) (any, error) { return a.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: no workspace subject", errInvalidToken)
	}
	return claims, nil
}
