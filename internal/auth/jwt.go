package auth

import (
	"crypto/rsa"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"teamchat-core/server/internal/config"
	"teamchat-core/server/internal/errors"
)

// AccessClaims is the payload of a signed access token. Access tokens are
// short-lived and never touch the database on verification; the refresh
// token is what's checked against storage.
type AccessClaims struct {
	jwt.RegisteredClaims
	WorkspaceID int64 `json:"workspace_id"`
}

// UserID parses the standard subject claim back into the numeric user id.
func (c *AccessClaims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, errors.New(errors.ErrUnauthorized, "malformed token subject")
	}
	return id, nil
}

// TokenIssuer signs and verifies access tokens with a single RSA keypair,
// grounded on the pack's JWKS-rotating issuer but simplified to one key.
type TokenIssuer struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	expiry     time.Duration
}

func NewTokenIssuer(cfg *config.SecurityConfig) (*TokenIssuer, error) {
	priv, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.JWTPrivateKeyPEM))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.JWTPublicKeyPEM))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal)
	}

	return &TokenIssuer{
		privateKey: priv,
		publicKey:  pub,
		expiry:     time.Duration(cfg.JWTExpirySeconds) * time.Second,
	}, nil
}

func (t *TokenIssuer) IssueAccessToken(userID, workspaceID int64) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiry)),
		},
		WorkspaceID: workspaceID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(t.privateKey)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrInternal)
	}
	return signed, nil
}

func (t *TokenIssuer) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, errors.New(errors.ErrUnauthorized, "unexpected signing method")
		}
		return t.publicKey, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New(errors.ErrUnauthorized, "invalid or expired access token")
	}

	return claims, nil
}
