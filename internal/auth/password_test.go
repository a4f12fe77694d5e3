package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamchat-core/server/internal/config"
)

func testSecurityConfig() *config.SecurityConfig {
	return &config.SecurityConfig{
		ArgonTimeCost:  1,
		ArgonMemoryKiB: 8 * 1024,
		ArgonThreads:   1,
		ArgonKeyLen:    32,
		ArgonSaltLen:   16,
	}
}

func TestHashPassword_ProducesVerifiableHash(t *testing.T) {
	cfg := testSecurityConfig()

	encoded, err := HashPassword(cfg, "correct horse battery staple")
	require.NoError(t, err)
	assert.Contains(t, encoded, "$argon2id$")

	ok, err := CheckPasswordHash("correct horse battery staple", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckPasswordHash_WrongPasswordFails(t *testing.T) {
	cfg := testSecurityConfig()

	encoded, err := HashPassword(cfg, "correct horse battery staple")
	require.NoError(t, err)

	ok, err := CheckPasswordHash("wrong password", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_SameInputProducesDifferentSalts(t *testing.T) {
	cfg := testSecurityConfig()

	a, err := HashPassword(cfg, "same-password")
	require.NoError(t, err)
	b, err := HashPassword(cfg, "same-password")
	require.NoError(t, err)

	assert.NotEqual(t, a, b, "independent hashes of the same password must use independent salts")
}

func TestCheckPasswordHash_RejectsMalformedHash(t *testing.T) {
	_, err := CheckPasswordHash("anything", "not-a-valid-hash")
	assert.Error(t, err)
}

func TestCheckPasswordHash_RejectsUnknownAlgorithm(t *testing.T) {
	_, err := CheckPasswordHash("anything", "$bcrypt$v=1$m=1,t=1,p=1$c2FsdA$aGFzaA")
	assert.Error(t, err)
}
