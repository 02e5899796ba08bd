package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTokenManager_SignAndVerify(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	m := NewTokenManager("secret", time.Hour).WithClock(fixedClock(now))

	token, err := m.Sign("65f1c0ffee0000000000abcd")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	claims, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.PrincipalID != "65f1c0ffee0000000000abcd" {
		t.Errorf("PrincipalID = %q", claims.PrincipalID)
	}
	if !claims.IssuedAt.Time.Equal(now) {
		t.Errorf("IssuedAt = %v, want %v", claims.IssuedAt.Time, now)
	}
	if !claims.ExpiresAt.Time.Equal(now.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt.Time, now.Add(time.Hour))
	}
}

func TestTokenManager_Expired(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	m := NewTokenManager("secret", time.Hour).WithClock(fixedClock(now))

	token, err := m.Sign("abc")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	m.WithClock(fixedClock(now.Add(2 * time.Hour)))
	_, err = m.Verify(token)
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("err = %v, want ErrTokenExpired", err)
	}
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want it to wrap ErrInvalidToken", err)
	}
}

func TestTokenManager_WrongSecret(t *testing.T) {
	token, err := NewTokenManager("one", time.Hour).Sign("abc")
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	_, err = NewTokenManager("two", time.Hour).Verify(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenManager_RejectsOtherAlgorithms(t *testing.T) {
	claims := &Claims{
		PrincipalID: "abc",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign HS512: %v", err)
	}
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	m := NewTokenManager("secret", time.Hour)
	for name, token := range map[string]string{"HS512": hs512, "none": none} {
		if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("%s: err = %v, want ErrInvalidToken", name, err)
		}
	}
}

func TestTokenManager_RequiresExpiry(t *testing.T) {
	claims := &Claims{
		PrincipalID:      "abc",
		RegisteredClaims: jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(time.Now())},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := NewTokenManager("secret", time.Hour).Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestTokenManager_MissingSecret(t *testing.T) {
	m := NewTokenManager("", time.Hour)
	if _, err := m.Sign("abc"); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("Sign err = %v, want ErrMissingSecret", err)
	}
	if _, err := m.Verify("a.b.c"); !errors.Is(err, ErrMissingSecret) {
		t.Errorf("Verify err = %v, want ErrMissingSecret", err)
	}
}

func TestTokenManager_Garbage(t *testing.T) {
	if _, err := NewTokenManager("secret", time.Hour).Verify("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}
