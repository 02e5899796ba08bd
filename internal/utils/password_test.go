package utils

import (
	"net/http"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	SetHashCost(bcrypt.MinCost)
	defer SetHashCost(DefaultHashCost)

	hash, err := HashPassword("test1234")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "test1234" {
		t.Fatal("hash equals the plain password")
	}
	if !CheckPasswordHash("test1234", hash) {
		t.Error("correct password rejected")
	}
	if CheckPasswordHash("test12345", hash) {
		t.Error("wrong password accepted")
	}
	if cost, _ := bcrypt.Cost([]byte(hash)); cost != bcrypt.MinCost {
		t.Errorf("cost = %d, want %d", cost, bcrypt.MinCost)
	}
}

func TestCheckNoAccount(t *testing.T) {
	SetHashCost(bcrypt.MinCost)
	defer SetHashCost(DefaultHashCost)

	for _, pw := range []string{"", "test1234", "unused-password-placeholder"} {
		if CheckNoAccount(pw) {
			t.Errorf("CheckNoAccount(%q) = true", pw)
		}
	}
	if cost, err := bcrypt.Cost(dummyHash()); err != nil || cost != bcrypt.MinCost {
		t.Errorf("dummy hash cost = %d (%v), want %d", cost, err, bcrypt.MinCost)
	}

	SetHashCost(bcrypt.MinCost + 1)
	if cost, _ := bcrypt.Cost(dummyHash()); cost != bcrypt.MinCost+1 {
		t.Errorf("dummy hash cost = %d after cost change, want %d", cost, bcrypt.MinCost+1)
	}
}

func TestResetToken(t *testing.T) {
	plain, hashed, err := NewResetToken()
	if err != nil {
		t.Fatalf("NewResetToken: %v", err)
	}
	if len(plain) != 64 || len(hashed) != 64 {
		t.Errorf("len(plain) = %d, len(hashed) = %d, want 64", len(plain), len(hashed))
	}
	if plain == hashed {
		t.Error("stored token equals the plain token")
	}
	if HashResetToken(plain) != hashed {
		t.Error("HashResetToken does not reproduce the stored digest")
	}

	other, _, _ := NewResetToken()
	if other == plain {
		t.Error("two tokens are identical")
	}
}

func TestNewAppError(t *testing.T) {
	tests := []struct {
		err    *AppError
		code   int
		status string
	}{
		{BadRequest("x"), http.StatusBadRequest, "fail"},
		{Unauthorized("x"), http.StatusUnauthorized, "fail"},
		{Forbidden("x"), http.StatusForbidden, "fail"},
		{NotFound("x"), http.StatusNotFound, "fail"},
		{Conflict("x"), http.StatusConflict, "fail"},
		{NewAppError("x", http.StatusInternalServerError), http.StatusInternalServerError, "error"},
	}
	for _, tt := range tests {
		if tt.err.StatusCode != tt.code || tt.err.Status != tt.status {
			t.Errorf("got %d/%s, want %d/%s", tt.err.StatusCode, tt.err.Status, tt.code, tt.status)
		}
	}
}
