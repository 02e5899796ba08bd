package utils

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt cost used for stored passwords.
const DefaultHashCost = 12

var hashCost = DefaultHashCost

// SetHashCost overrides the bcrypt cost. Tests lower it to bcrypt.MinCost.
func SetHashCost(cost int) {
	hashCost = cost
}

// HashPassword hashes a given password using bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	return string(bytes), err
}

// CheckPasswordHash compares a plain password with its hashed version.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

var dummy struct {
	sync.Mutex
	cost int
	hash []byte
}

// dummyHash returns a hash at the current cost that no password matches.
func dummyHash() []byte {
	dummy.Lock()
	defer dummy.Unlock()
	if dummy.hash == nil || dummy.cost != hashCost {
		h, err := bcrypt.GenerateFromPassword([]byte("unused-password-placeholder"), hashCost)
		if err != nil {
			return nil
		}
		dummy.hash, dummy.cost = h, hashCost
	}
	return dummy.hash
}

// CheckNoAccount spends the time of a password comparison when no account
// matched, so a failed login takes as long as a wrong password. It always
// reports false.
func CheckNoAccount(password string) bool {
	_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
	return false
}
