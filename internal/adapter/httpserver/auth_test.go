package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastParams keep argon2 cheap in tests.
var fastParams = Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}

func TestHashAndVerifyAPIKey(t *testing.T) {
	t.Parallel()

	hash, err := HashAPIKey("s3cret-key", fastParams)
	require.NoError(t, err)
	assert.Regexp(t, `^argon2id\$1\$1024\$1\$[A-Za-z0-9+/]+\$[A-Za-z0-9+/]+$`, hash)

	other, err := HashAPIKey("s3cret-key", fastParams)
	require.NoError(t, err)
	assert.NotEqual(t, hash, other, "salted")

	assert.True(t, VerifyAPIKey("s3cret-key", hash))
	assert.False(t, VerifyAPIKey("s3cret-kez", hash))

	_, err = HashAPIKey("", fastParams)
	require.Error(t, err)
}

func TestVerifyAPIKey_Malformed(t *testing.T) {
	t.Parallel()

	tests := []string{
		"",
		"bcrypt$1$2$3$4$5",
		"argon2id$x$1024$1$c2FsdA$aGFzaA",
		"argon2id$1$1024$0$c2FsdA$aGFzaA",
		"argon2id$1$1024$1$!!$aGFzaA",
		"argon2id$1$1024$1$c2FsdA$",
		"argon2id$1$1024$1$c2FsdA",
	}
	for _, h := range tests {
		assert.False(t, VerifyAPIKey("k", h), h)
	}
}

func TestAPIKeyAuth_Middleware(t *testing.T) {
	t.Parallel()

	hash, err := HashAPIKey("good", fastParams)
	require.NoError(t, err)
	auth := NewAPIKeyAuth([]string{" ", hash})
	h := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{name: "missing", status: http.StatusUnauthorized},
		{name: "wrong", key: "bad", status: http.StatusUnauthorized},
		{name: "valid", key: "good", status: http.StatusNoContent},
		{name: "valid again from cache", key: "good", status: http.StatusNoContent},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/v1/sessions/x", nil)
		if tc.key != "" {
			req.Header.Set("X-API-Key", tc.key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tc.status, rec.Code, tc.name)
		if tc.status == http.StatusUnauthorized {
			assert.Equal(t, "UNAUTHENTICATED", errorCode(t, rec))
		}
	}
}
