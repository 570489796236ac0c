package handlers

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAppleKeyID = "test-key"

// serveAppleKeys publishes key's public half as Apple's JWKS for the test's duration
func serveAppleKeys(t *testing.T, key *rsa.PrivateKey) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(appleJWK{Keys: []appleJWKKey{{
			Kid: testAppleKeyID,
			Kty: "RSA",
			Alg: "RS256",
			N:   base64.RawURLEncoding.EncodeToString(key.PublicKey.N.Bytes()),
			E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.PublicKey.E)).Bytes()),
		}}})
	}))
	t.Cleanup(srv.Close)

	previous := appleKeysURL
	appleKeysURL = srv.URL
	t.Cleanup(func() { appleKeysURL = previous })
}

func signAppleToken(t *testing.T, key *rsa.PrivateKey, claims appleTokenClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testAppleKeyID
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func validAppleClaims() appleTokenClaims {
	return appleTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://appleid.apple.com",
			Subject:   "apple-user-1",
			Audience:  jwt.ClaimStrings{"com.example.familysync"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email: "ana@privaterelay.appleid.com",
		Nonce: "nonce-1",
	}
}

func TestParseAppleIDToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	serveAppleKeys(t, key)

	claims, err := parseAppleIDToken(context.Background(), signAppleToken(t, key, validAppleClaims()), "com.example.familysync", "nonce-1")
	require.NoError(t, err)
	assert.Equal(t, "apple-user-1", claims.Subject)
	assert.Equal(t, "ana@privaterelay.appleid.com", claims.Email)
}

func TestParseAppleIDTokenRejects(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	serveAppleKeys(t, key)

	tests := []struct {
		name     string
		signWith *rsa.PrivateKey
		mutate   func(*appleTokenClaims)
		clientID string
		nonce    string
		want     error
	}{
		{name: "wrong audience", signWith: key, clientID: "com.example.other", nonce: "nonce-1", want: errAppleToken},
		{name: "wrong nonce", signWith: key, clientID: "com.example.familysync", nonce: "nonce-2", want: errAppleNonce},
		{name: "wrong issuer", signWith: key, clientID: "com.example.familysync", mutate: func(c *appleTokenClaims) { c.Issuer = "https://evil.example" }, want: errAppleToken},
		{name: "expired", signWith: key, clientID: "com.example.familysync", mutate: func(c *appleTokenClaims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour)) }, want: errAppleToken},
		{name: "no email", signWith: key, clientID: "com.example.familysync", mutate: func(c *appleTokenClaims) { c.Email = "" }, want: errAppleNoEmail},
		{name: "forged signature", signWith: otherKey, clientID: "com.example.familysync", want: errAppleToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validAppleClaims()
			if tt.mutate != nil {
				tt.mutate(&claims)
			}
			_, err := parseAppleIDToken(context.Background(), signAppleToken(t, tt.signWith, claims), tt.clientID, tt.nonce)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
