package devserver

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// A refresh token is base64url(familyID || secret). Redis keeps only the
// SHA-256 of the secret, keyed by family; every reissue rotates the secret
// inside the same family.

const (
	familyIDSize      = 16
	refreshSecretSize = 32
	refreshTokenSize  = familyIDSize + refreshSecretSize
)

var errMalformedRefreshToken = errors.New("malformed refresh token")

type familyID [familyIDSize]byte

func (f familyID) String() string {
	return base64.RawURLEncoding.EncodeToString(f[:])
}

type refreshSecret [refreshSecretSize]byte

func (s refreshSecret) hash() string {
	sum := sha256.Sum256(s[:])
	return hex.EncodeToString(sum[:])
}

func newFamilyID() (familyID, error) {
	var f familyID
	_, err := rand.Read(f[:])
	return f, err
}

func newRefreshSecret() (refreshSecret, error) {
	var s refreshSecret
	_, err := rand.Read(s[:])
	return s, err
}

func encodeRefreshToken(f familyID, s refreshSecret) string {
	var raw [refreshTokenSize]byte
	copy(raw[:familyIDSize], f[:])
	copy(raw[familyIDSize:], s[:])
	return base64.RawURLEncoding.EncodeToString(raw[:])
}

func decodeRefreshToken(token string) (familyID, refreshSecret, error) {
	var (
		f familyID
		s refreshSecret
	)
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != refreshTokenSize {
		return f, s, errMalformedRefreshToken
	}
	copy(f[:], raw[:familyIDSize])
	copy(s[:], raw[familyIDSize:])
	return f, s, nil
}
