package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"teamchat-core/server/internal/config"
	"teamchat-core/server/internal/errors"
)

// HashPassword derives an argon2id hash encoded in PHC string format, so
// the cost parameters travel with the hash and can change across deploys
// without invalidating existing hashes.
func HashPassword(cfg *config.SecurityConfig, password string) (string, error) {
	salt := make([]byte, cfg.ArgonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, errors.ErrInternal)
	}

	hash := argon2.IDKey([]byte(password), salt, cfg.ArgonTimeCost, cfg.ArgonMemoryKiB, cfg.ArgonThreads, cfg.ArgonKeyLen)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, cfg.ArgonMemoryKiB, cfg.ArgonTimeCost, cfg.ArgonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash))

	return encoded, nil
}

// CheckPasswordHash verifies password against an encoded argon2id hash,
// re-deriving with the parameters embedded in the hash rather than the
// caller's current config, so changing defaults doesn't break login for
// existing users until their next password change.
func CheckPasswordHash(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, errors.New(errors.ErrInternal, "unrecognized password hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, errors.New(errors.ErrInternal, "malformed password hash version")
	}

	var memory uint32
	var timeCost uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &threads); err != nil {
		return false, errors.New(errors.ErrInternal, "malformed password hash params")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, errors.New(errors.ErrInternal, "malformed password hash salt")
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, errors.New(errors.ErrInternal, "malformed password hash digest")
	}

	got := argon2.IDKey([]byte(password), salt, timeCost, memory, threads, uint32(len(want)))

	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
