package v1handler

import (
	"civic/internal/config"
	"civic/pkg/domain"
	"civic/pkg/serrors"
	"context"
	"crypto/rsa"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
)

type CtxKey string

const (
	// EmailKey holds the email of the authenticated user.
	EmailKey CtxKey = "Email"
	// AdminKey holds whether the authenticated user is an administrator.
	AdminKey CtxKey = "IsAdmin"
)

// Claims are the claims of a bearer token. The subject is the user's email.
type Claims struct {
	jwt.RegisteredClaims

	IsAdmin bool `json:"isAdmin"`
}

type SecHandlerOptions struct {
	// PublicKey is the PEM encoded RSA key verifying bearer tokens.
	PublicKey string
	// PrivateKey is the PEM encoded RSA key signing tokens issued at login.
	// Login is disabled without it.
	PrivateKey string
	// TTL is the lifetime of issued tokens.
	TTL time.Duration
}

func NewSecHandlerOptions(cfg *config.Config) *SecHandlerOptions {
	return &SecHandlerOptions{
		PublicKey:  cfg.JWT.PublicKey,
		PrivateKey: cfg.JWT.PrivateKey,
		TTL:        cfg.JWT.TTL,
	}
}

// SecHandler verifies RS256 bearer tokens and issues them at login.
type SecHandler struct {
	publicKey  *rsa.PublicKey
	privateKey *rsa.PrivateKey
	ttl        time.Duration
	validate   *validator.Validate
}

func NewSecHandler(options *SecHandlerOptions) (*SecHandler, error) {
	publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(options.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("could not parse RSA public key: %w", err)
	}

	handler := &SecHandler{
		publicKey: publicKey,
		ttl:       options.TTL,
		validate:  validator.New(),
	}
	if handler.ttl <= 0 {
		handler.ttl = 24 * time.Hour
	}
	if options.PrivateKey != "" {
		handler.privateKey, err = jwt.ParseRSAPrivateKeyFromPEM([]byte(options.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("could not parse RSA private key: %w", err)
		}
	}

	return handler, nil
}

// Issue signs a token for user valid for the configured TTL.
func (s *SecHandler) Issue(user *domain.User) (string, error) {
	if s.privateKey == nil {
		return "", serrors.With(serrors.ErrUnavailable, "token issuing is not configured")
	}

	return Sign(s.privateKey, user.Email, user.IsAdmin, s.ttl)
}

// Sign creates an RS256 token for email.
func Sign(key *rsa.PrivateKey, email string, isAdmin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
		IsAdmin: isAdmin,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("could not sign JWT: %w", err)
	}

	return signed, nil
}

// HandleBearerAuth verifies token and returns ctx carrying the email and admin
// flag of its subject.
func (s *SecHandler) HandleBearerAuth(ctx context.Context, token string) (context.Context, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return ctx, serrors.Wrap(serrors.ErrUnauthorized, err, "invalid token")
	}

	if err := s.validate.Var(claims.Subject, "required,email"); err != nil {
		return ctx, serrors.With(serrors.ErrUnauthorized, "invalid token subject")
	}

	ctx = context.WithValue(ctx, EmailKey, claims.Subject)
	ctx = context.WithValue(ctx, AdminKey, claims.IsAdmin)

	return ctx, nil
}

// RequireAuth rejects requests without a valid bearer token.
func (s *SecHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			Handler{}.writeError(w, r, serrors.With(serrors.ErrUnauthorized, "missing bearer token"))

			return
		}

		ctx, err := s.HandleBearerAuth(r.Context(), token)
		if err != nil {
			Handler{}.writeError(w, r, err)

			return
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects requests of non administrators. It must run after
// RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAdmin(r.Context()) {
			Handler{}.writeError(w, r, serrors.With(serrors.ErrForbidden, "administrator access required"))

			return
		}

		next.ServeHTTP(w, r)
	})
}

// Email returns the email of the authenticated user, or an empty string.
func Email(ctx context.Context) string {
	email, _ := ctx.Value(EmailKey).(string)

	return email
}

func IsAdmin(ctx context.Context) bool {
	isAdmin, _ := ctx.Value(AdminKey).(bool)

	return isAdmin
}
