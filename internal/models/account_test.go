package models

import (
	"errors"
	"testing"
	"time"
)

func fieldNames(err error) []string {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return nil
	}
	names := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		names = append(names, f.Field)
	}
	return names
}

func TestSetPassword_Validation(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		password string
		confirm  string
		want     []string
	}{
		{"mismatch", "test1234", "test4321", []string{"passwordConfirm"}},
		{"too short", "short", "short", []string{"password"}},
		{"missing both", "", "", []string{"password", "passwordConfirm"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Account
			err := a.SetPassword(tt.password, tt.confirm, now, true)
			got := fieldNames(err)
			if len(got) != len(tt.want) {
				t.Fatalf("fields = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("fields = %v, want %v", got, tt.want)
				}
			}
			if a.Password != "" {
				t.Error("password stored despite validation error")
			}
		})
	}
}

func TestSetPassword_New(t *testing.T) {
	var a Account
	if err := a.SetPassword("test1234", "test1234", time.Now(), true); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if a.PasswordChangedAt != nil {
		t.Error("new account should not record a password change")
	}
	if !a.CorrectPassword("test1234") {
		t.Error("CorrectPassword rejected the password")
	}
	if a.CorrectPassword("test12345") {
		t.Error("CorrectPassword accepted a wrong password")
	}
}

func TestSetPassword_ChangeRecordsTimestamp(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	var a Account
	if err := a.SetPassword("test1234", "test1234", now, false); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if a.PasswordChangedAt == nil || !a.PasswordChangedAt.Equal(now.Add(-time.Second)) {
		t.Errorf("PasswordChangedAt = %v, want %v", a.PasswordChangedAt, now.Add(-time.Second))
	}
}

func TestChangedPasswordAfter(t *testing.T) {
	changed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	a := Account{PasswordChangedAt: &changed}

	if !a.ChangedPasswordAfter(changed.Add(-time.Minute)) {
		t.Error("token issued before the change should be stale")
	}
	if a.ChangedPasswordAfter(changed) {
		t.Error("token issued in the same second should stay valid")
	}
	if a.ChangedPasswordAfter(changed.Add(time.Minute)) {
		t.Error("token issued after the change should stay valid")
	}
	if (&Account{}).ChangedPasswordAfter(changed) {
		t.Error("account without a change should never be stale")
	}
}

func TestPasswordResetToken(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	var a Account

	plain, err := a.CreatePasswordResetToken(now)
	if err != nil {
		t.Fatalf("CreatePasswordResetToken: %v", err)
	}
	if plain == "" || a.PasswordResetToken == "" || plain == a.PasswordResetToken {
		t.Fatalf("plain = %q, stored = %q", plain, a.PasswordResetToken)
	}
	if !a.PasswordResetExpires.Equal(now.Add(PasswordResetTTL)) {
		t.Errorf("expires = %v, want %v", a.PasswordResetExpires, now.Add(PasswordResetTTL))
	}

	a.ClearPasswordReset()
	if a.PasswordResetToken != "" || a.PasswordResetExpires != nil {
		t.Error("reset fields not cleared")
	}
}

func TestIsEmail(t *testing.T) {
	for email, want := range map[string]bool{
		"ali@example.com":       true,
		"a.b+c@clinic.local":    true,
		"not-an-email":          false,
		"Ali <ali@example.com>": false,
		"":                      false,
	} {
		if got := IsEmail(email); got != want {
			t.Errorf("IsEmail(%q) = %v, want %v", email, got, want)
		}
	}
}

func TestUserValidate(t *testing.T) {
	u := &User{Account: Account{Name: "Ali", Email: "ali@example.com", Role: RoleUser}}
	if err := u.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	u.Role = RoleDoctor
	u.Email = "nope"
	got := fieldNames(u.Validate())
	if len(got) != 2 || got[0] != "email" || got[1] != "role" {
		t.Errorf("fields = %v, want [email role]", got)
	}
}
