package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"cdpchain/crypto"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func testCaller() crypto.Address {
	return crypto.NewAddress(crypto.CDPPrefix, bytes.Repeat([]byte{0x42}, crypto.AddressLength))
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func captureCaller(got *crypto.Address) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if caller, ok := CallerFromContext(r.Context()); ok {
			*got = caller
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticatorResolvesSubject(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "cdp-auth", Audience: "cdpd"}, nil)
	var got crypto.Address
	handler := auth.Middleware(captureCaller(&got))

	token := signToken(t, jwt.MapClaims{
		"sub": testCaller().String(),
		"iss": "cdp-auth",
		"aud": "cdpd",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/vaults", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	require.Equal(t, http.StatusNoContent, res.Code)
	require.True(t, got.Equal(testCaller()))
}

func TestAuthenticatorRejectsBadTokens(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret, Issuer: "cdp-auth"}, nil)
	var got crypto.Address
	handler := auth.Middleware(captureCaller(&got))

	cases := map[string]jwt.MapClaims{
		"expired":       {"sub": testCaller().String(), "iss": "cdp-auth", "exp": time.Now().Add(-time.Hour).Unix()},
		"wrong issuer":  {"sub": testCaller().String(), "iss": "other", "exp": time.Now().Add(time.Hour).Unix()},
		"no expiry":     {"sub": testCaller().String(), "iss": "cdp-auth"},
		"bad subject":   {"sub": "not-an-address", "iss": "cdp-auth", "exp": time.Now().Add(time.Hour).Unix()},
		"empty subject": {"iss": "cdp-auth", "exp": time.Now().Add(time.Hour).Unix()},
	}
	for name, claims := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/vaults", nil)
			req.Header.Set("Authorization", "Bearer "+signToken(t, claims))
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)
			require.Equal(t, http.StatusUnauthorized, res.Code)
		})
	}
	require.True(t, got.IsZero())
}

func TestAuthenticatorAnonymousPassThrough(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, HMACSecret: testSecret}, nil)
	var got crypto.Address
	handler := auth.Middleware(captureCaller(&got))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/debt", nil))
	require.Equal(t, http.StatusNoContent, res.Code)
	require.True(t, got.IsZero())

	guarded := auth.Middleware(RequireCaller(captureCaller(&got)))
	res = httptest.NewRecorder()
	guarded.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/vaults", nil))
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestCallerHeaderOnlyWhenAllowed(t *testing.T) {
	var got crypto.Address

	dev := NewAuthenticator(AuthConfig{AllowCallerHeader: true}, nil).Middleware(captureCaller(&got))
	req := httptest.NewRequest(http.MethodPost, "/v1/vaults", nil)
	req.Header.Set(CallerHeader, testCaller().String())
	dev.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, got.Equal(testCaller()))

	got = crypto.Address{}
	strict := NewAuthenticator(AuthConfig{}, nil).Middleware(captureCaller(&got))
	strict.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, got.IsZero(), "header must be ignored unless explicitly allowed")

	garbled := httptest.NewRequest(http.MethodPost, "/v1/vaults", nil)
	garbled.Header.Set(CallerHeader, "garbage")
	res := httptest.NewRecorder()
	dev.ServeHTTP(res, garbled)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}
