package v1handler_test

import (
	"civic/internal/api/handler/v1handler"
	"civic/pkg/domain"
	"civic/pkg/serrors"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// helper to generate an RSA key pair and return the private key and the
// PEM-encoded private and public keys.
func genRSAKeys(tb testing.TB) (*rsa.PrivateKey, string, string) {
	tb.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(tb, err, "failed to generate RSA key")
	pubASN1, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	require.NoError(tb, err, "failed to marshal public key")
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubASN1})
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	return priv, string(privPEM), string(pubPEM)
}

func newSecHandlerForTest(t *testing.T, options *v1handler.SecHandlerOptions) *v1handler.SecHandler {
	t.Helper()
	sh, err := v1handler.NewSecHandler(options)
	require.NoError(t, err, "NewSecHandler failed")

	return sh
}

func signJWTRS256(tb testing.TB, priv *rsa.PrivateKey, sub string, issuedAt time.Time, exp time.Time) string {
	tb.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(exp),
		NotBefore: jwt.NewNumericDate(issuedAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(priv)
	require.NoError(tb, err, "failed to sign token")

	return signed
}

func TestHandleBearerAuth_ValidToken(t *testing.T) {
	priv, _, pubPEM := genRSAKeys(t)
	sh := newSecHandlerForTest(t, &v1handler.SecHandlerOptions{PublicKey: pubPEM})

	tkn, err := v1handler.Sign(priv, "ada@example.com", true, time.Hour)
	require.NoError(t, err)

	ctx, err := sh.HandleBearerAuth(context.Background(), tkn)
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", v1handler.Email(ctx))
	require.True(t, v1handler.IsAdmin(ctx))
}

func TestHandleBearerAuth_RegisteredClaimsOnly(t *testing.T) {
	priv, _, pubPEM := genRSAKeys(t)
	sh := newSecHandlerForTest(t, &v1handler.SecHandlerOptions{PublicKey: pubPEM})

	now := time.Now()
	ctx, err := sh.HandleBearerAuth(context.Background(),
		signJWTRS256(t, priv, "ada@example.com", now, now.Add(time.Hour)))
	require.NoError(t, err)
	require.Equal(t, "ada@example.com", v1handler.Email(ctx))
	require.False(t, v1handler.IsAdmin(ctx))
}

func TestHandleBearerAuth_InvalidSignature(t *testing.T) {
	// handler uses pub from key A, but token signed with key B
	_, _, pubPEM := genRSAKeys(t)
	sh := newSecHandlerForTest(t, &v1handler.SecHandlerOptions{PublicKey: pubPEM})

	privOther, _, _ := genRSAKeys(t)
	now := time.Now()
	tkn := signJWTRS256(t, privOther, "ada@example.com", now, now.Add(time.Hour))

	_, err := sh.HandleBearerAuth(context.Background(), tkn)
	require.ErrorIs(t, err, serrors.ErrUnauthorized)
}

func TestHandleBearerAuth_ExpiredToken(t *testing.T) {
	priv, _, pubPEM := genRSAKeys(t)
	sh := newSecHandlerForTest(t, &v1handler.SecHandlerOptions{PublicKey: pubPEM})

	now := time.Now()
	tkn := signJWTRS256(t, priv, "ada@example.com", now.Add(-2*time.Hour), now.Add(-1*time.Hour))

	_, err := sh.HandleBearerAuth(context.Background(), tkn)
	require.ErrorIs(t, err, serrors.ErrUnauthorized)
}

func TestHandleBearerAuth_InvalidSubject(t *testing.T) {
	priv, _, pubPEM := genRSAKeys(t)
	sh := newSecHandlerForTest(t, &v1handler.SecHandlerOptions{PublicKey: pubPEM})

	now := time.Now()
	// subjects must be emails
	tkn := signJWTRS256(t, priv, "not-an-email", now, now.Add(time.Hour))

	_, err := sh.HandleBearerAuth(context.Background(), tkn)
	require.ErrorIs(t, err, serrors.ErrUnauthorized)
}

func TestHandleBearerAuth_WrongAlgorithm(t *testing.T) {
	// create handler with RSA public key, but sign token with HS256
	_, _, pubPEM := genRSAKeys(t)
	sh := newSecHandlerForTest(t, &v1handler.SecHandlerOptions{PublicKey: pubPEM})

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   "ada@example.com",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		NotBefore: jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err, "failed to sign HS256 token")

	_, err = sh.HandleBearerAuth(context.Background(), signed)
	require.ErrorIs(t, err, serrors.ErrUnauthorized)
}

func TestNewSecHandler_InvalidKeys(t *testing.T) {
	_, err := v1handler.NewSecHandler(&v1handler.SecHandlerOptions{PublicKey: "garbage"})
	require.Error(t, err)

	_, _, pubPEM := genRSAKeys(t)
	_, err = v1handler.NewSecHandler(&v1handler.SecHandlerOptions{PublicKey: pubPEM, PrivateKey: "garbage"})
	require.Error(t, err)
}

func TestIssue(t *testing.T) {
	_, privPEM, pubPEM := genRSAKeys(t)
	user := &domain.User{Email: "grace@example.com"}

	sh := newSecHandlerForTest(t, &v1handler.SecHandlerOptions{PublicKey: pubPEM})
	_, err := sh.Issue(user)
	require.ErrorIs(t, err, serrors.ErrUnavailable)

	sh = newSecHandlerForTest(t, &v1handler.SecHandlerOptions{PublicKey: pubPEM, PrivateKey: privPEM, TTL: time.Minute})
	tkn, err := sh.Issue(user)
	require.NoError(t, err)

	ctx, err := sh.HandleBearerAuth(context.Background(), tkn)
	require.NoError(t, err)
	require.Equal(t, "grace@example.com", v1handler.Email(ctx))
	require.False(t, v1handler.IsAdmin(ctx))
}

func TestRequireAuth(t *testing.T) {
	priv, _, pubPEM := genRSAKeys(t)
	sh := newSecHandlerForTest(t, &v1handler.SecHandlerOptions{PublicKey: pubPEM})

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = v1handler.Email(r.Context())
	})
	handler := sh.RequireAuth(v1handler.RequireAdmin(next))

	serve := func(authorization string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		return rec.Code
	}

	require.Equal(t, http.StatusUnauthorized, serve(""))
	require.Equal(t, http.StatusUnauthorized, serve("Basic abc"))
	require.Equal(t, http.StatusUnauthorized, serve("Bearer not-a-jwt"))

	member, err := v1handler.Sign(priv, "member@example.com", false, time.Hour)
	require.NoError(t, err)
	require.Equal(t, http.StatusForbidden, serve("Bearer "+member))
	require.Empty(t, seen)

	admin, err := v1handler.Sign(priv, "admin@example.com", true, time.Hour)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, serve("Bearer "+admin))
	require.Equal(t, "admin@example.com", seen)
}
