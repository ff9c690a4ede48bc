// Package auth verifies session tokens issued by the identity provider and
// exposes the authenticated owner id to handlers.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookie is read when no Authorization header is present.
const SessionCookie = "session-token"

var ErrNoToken = errors.New("missing session token")

// Claims carries the owner id in the subject. Tokens minted by older
// providers put it in user_id instead.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// OwnerID returns the identity used to scope data.
func (c *Claims) OwnerID() string {
	if c.Subject != "" {
		return c.Subject
	}
	return c.UserID
}

// Verifier checks HS256 tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates a token string.
func (v *Verifier) Verify(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.OwnerID() == "" {
		return nil, jwt.ErrTokenInvalidSubject
	}
	return claims, nil
}

// Issue signs a token for ownerID. It is used by tests and local tooling;
// production tokens come from the identity provider.
func (v *Verifier) Issue(ownerID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// TokenFromRequest reads a bearer token or the session cookie.
func TokenFromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", ErrNoToken
		}
		return strings.TrimSpace(token), nil
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return c.Value, nil
	}
	return "", ErrNoToken
}

type contextKey struct{}

// WithOwner stores the owner id in ctx.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, contextKey{}, ownerID)
}

// OwnerFromContext returns the owner id placed by Middleware.
func OwnerFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(contextKey{}).(string)
	return id, ok && id != ""
}
