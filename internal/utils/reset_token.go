package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

// NewResetToken returns a random 32-byte token in hex together with the
// sha256 digest that gets persisted. Only the plain token leaves the server.
func NewResetToken() (plain, hashed string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	plain = hex.EncodeToString(buf)
	return plain, HashResetToken(plain), nil
}

func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
