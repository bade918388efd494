package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func authedRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAuth(t *testing.T) {
	t.Parallel()

	var gotUserID string
	handler := Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("valid token", func(t *testing.T) {
		token := signToken(t, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "athlete-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest(token))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "athlete-1", gotUserID)
	})

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest(""))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("garbage token", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("not.a.token"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		token := signToken(t, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "athlete-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest(token))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "athlete-1"},
		})
		signed, err := token.SignedString([]byte("other-secret"))
		require.NoError(t, err)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest(signed))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestRequireScope(t *testing.T) {
	t.Parallel()

	handler := Auth(testSecret)(RequireScope("coach:write")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	))

	t.Run("with scope", func(t *testing.T) {
		token := signToken(t, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "athlete-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			Scopes: []string{"coach:write"},
		})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest(token))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("without scope", func(t *testing.T) {
		token := signToken(t, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "athlete-1",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest(token))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
