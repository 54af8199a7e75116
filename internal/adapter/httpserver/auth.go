package httpserver

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Argon2Params defines parameters for Argon2id key hashing
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLen     uint32
	KeyLen      uint32
}

// DefaultArgon2Params are used by HashAPIKey.
var DefaultArgon2Params = Argon2Params{
	Memory:      64 * 1024, // 64 MB
	Iterations:  3,
	Parallelism: 2,
	SaltLen:     16,
	KeyLen:      32,
}

// HashAPIKey creates an Argon2id hash of key in the form
// argon2id$iterations$memory$parallelism$salt$hash (raw std base64).
func HashAPIKey(key string, params Argon2Params) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty api key")
	}
	salt := make([]byte, params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(key), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLen)
	return fmt.Sprintf("argon2id$%d$%d$%d$%s$%s",
		params.Iterations,
		params.Memory,
		params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyAPIKey verifies key against an encoded Argon2id hash.
func VerifyAPIKey(key, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "argon2id" {
		return false
	}
	iters, err1 := parseUint32(parts[1])
	mem, err2 := parseUint32(parts[2])
	par64, err3 := parseUint32(parts[3])
	if err1 != nil || err2 != nil || err3 != nil || iters == 0 || par64 == 0 {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) == 0 {
		return false
	}
	par := uint8(math.MaxUint8)
	if par64 < math.MaxUint8 {
		par = uint8(par64)
	}
	actual := argon2.IDKey([]byte(key), salt, iters, mem, par, uint32(len(expected)))
	return subtle.ConstantTimeCompare(actual, expected) == 1
}

// APIKeyAuth guards routes with the X-API-Key header. Keys that verified
// once are remembered by digest so argon2 runs once per key.
type APIKeyAuth struct {
	hashes   []string
	verified sync.Map
}

// NewAPIKeyAuth builds a guard accepting any key matching one of hashes.
func NewAPIKeyAuth(hashes []string) *APIKeyAuth {
	out := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return &APIKeyAuth{hashes: out}
}

// Valid reports whether key matches a configured hash.
func (a *APIKeyAuth) Valid(key string) bool {
	if key == "" {
		return false
	}
	digest := sha256.Sum256([]byte(key))
	if _, ok := a.verified.Load(digest); ok {
		return true
	}
	for _, h := range a.hashes {
		if VerifyAPIKey(key, h) {
			a.verified.Store(digest, struct{}{})
			return true
		}
	}
	return false
}

// Middleware rejects requests without a valid X-API-Key.
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Valid(r.Header.Get("X-API-Key")) {
			writeError(w, r, fmt.Errorf("%w: missing or invalid X-API-Key", errUnauthenticated), nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// parseUint32 parses a decimal string into uint32; returns error on failure
func parseUint32(s string) (uint32, error) {
	x, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse")
	}
	return uint32(x), nil
}
