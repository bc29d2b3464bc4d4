package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ShapeBoard/internal/api"
	"ShapeBoard/internal/errors"
)

const issuer = "shapeboard"

// Claims are the JWT claims of a session token. Subject is the username.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenService issues and checks HS256 session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a token service signing with secret.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("secret key required for HS256")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for username.
func (t *TokenService) Issue(username string) (string, error) {
	now := t.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse verifies a token and returns its claims. Every failure is
// CodeUnauthorized.
func (t *TokenService) Parse(token string) (*Claims, error) {
	token = bearerToken(token)
	if token == "" {
		return nil, errors.New(errors.CodeUnauthorized, "missing token")
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.Wrap(errors.CodeUnauthorized, err, "token expired")
		}
		return nil, errors.Wrap(errors.CodeUnauthorized, err, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, errors.New(errors.CodeUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// bearerToken strips an optional "Bearer" scheme from an Authorization value.
func bearerToken(h string) string {
	h = strings.TrimSpace(h)
	if len(h) >= 6 && strings.EqualFold(h[:6], "bearer") {
		h = h[6:]
	}
	return strings.TrimSpace(h)
}

type userKey struct{}

func withUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, userKey{}, username)
}

// UserFromContext returns the authenticated username set by the auth
// middleware.
func UserFromContext(ctx context.Context) (string, bool) {
	u, ok := ctx.Value(userKey{}).(string)
	return u, ok && u != ""
}

// authenticate rejects requests without a valid, unrevoked bearer token.
// With allowQuery the token may also come from the "token" query parameter,
// which is how browsers authenticate websocket upgrades.
func (s *Server) authenticate(allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r.Header.Get("Authorization"))
			if raw == "" && allowQuery {
				raw = r.URL.Query().Get("token")
			}

			claims, err := s.tokens.Parse(raw)
			if err != nil {
				s.logger.Debug("rejected token", "path", r.URL.Path, "err", err)
				api.Error(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			revoked, err := s.repo.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				s.logger.Error("revocation check failed", "err", err)
				api.Error(w, http.StatusInternalServerError, "Internal server error")
				return
			}
			if revoked {
				api.Error(w, http.StatusUnauthorized, "Token has been revoked")
				return
			}

			next.ServeHTTP(w, r.WithContext(withUser(r.Context(), claims.Subject)))
		})
	}
}
