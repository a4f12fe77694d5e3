package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamchat-core/server/internal/config"
)

func generateTestKeyPair(t *testing.T) (privPEM, pubPEM string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	privBytes := x509.MarshalPKCS1PrivateKey(key)
	privPEM = string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: privBytes}))

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pubPEM = string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}))

	return privPEM, pubPEM
}

func newTestIssuer(t *testing.T, expiry time.Duration) *TokenIssuer {
	t.Helper()
	privPEM, pubPEM := generateTestKeyPair(t)
	issuer, err := NewTokenIssuer(&config.SecurityConfig{
		JWTPrivateKeyPEM: privPEM,
		JWTPublicKeyPEM:  pubPEM,
		JWTExpirySeconds: int(expiry.Seconds()),
	})
	require.NoError(t, err)
	return issuer
}

func TestTokenIssuer_IssueAndVerifyRoundTrip(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)

	token, err := issuer.IssueAccessToken(42, 7)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := issuer.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.WorkspaceID)

	userID, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestTokenIssuer_VerifyAccessToken_RejectsExpiredToken(t *testing.T) {
	issuer := newTestIssuer(t, -time.Hour)

	token, err := issuer.IssueAccessToken(1, 1)
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(token)
	assert.Error(t, err)
}

func TestTokenIssuer_VerifyAccessToken_RejectsTokenFromAnotherKeyPair(t *testing.T) {
	issuerA := newTestIssuer(t, time.Hour)
	issuerB := newTestIssuer(t, time.Hour)

	token, err := issuerA.IssueAccessToken(1, 1)
	require.NoError(t, err)

	_, err = issuerB.VerifyAccessToken(token)
	assert.Error(t, err)
}

func TestTokenIssuer_VerifyAccessToken_RejectsGarbage(t *testing.T) {
	issuer := newTestIssuer(t, time.Hour)
	_, err := issuer.VerifyAccessToken("not.a.jwt")
	assert.Error(t, err)
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "valid", header: "Bearer abc123", want: "abc123"},
		{name: "case insensitive scheme", header: "bearer abc123", want: "abc123"},
		{name: "missing header", header: "", wantErr: true},
		{name: "wrong scheme", header: "Basic abc123", wantErr: true},
		{name: "no token", header: "Bearer", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractBearerToken(tt.header)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
