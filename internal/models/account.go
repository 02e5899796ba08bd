package models

import (
	"net/mail"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/emedical/clinic-api/internal/utils"
)

const (
	RoleUser   = "user"
	RoleAdmin  = "admin"
	RoleDoctor = "doctor"
)

// PasswordResetTTL is how long a forgot-password token stays usable.
const PasswordResetTTL = 10 * time.Minute

// Principal is implemented by every authenticatable document (*User, *Doctor).
type Principal interface {
	GetAccount() *Account
	Validate() error
}

// Account holds the identity and credential fields shared by users and doctors.
// It is embedded inline in both documents.
type Account struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name                 string             `bson:"name" json:"name,omitempty"`
	Email                string             `bson:"email" json:"email,omitempty"`
	Photo                string             `bson:"photo,omitempty" json:"photo,omitempty"`
	PhoneNumber          string             `bson:"phoneNumber,omitempty" json:"phoneNumber,omitempty"`
	Role                 string             `bson:"role" json:"role,omitempty"`
	Password             string             `bson:"password" json:"-"`
	PasswordChangedAt    *time.Time         `bson:"passwordChangedAt,omitempty" json:"-"`
	PasswordResetToken   string             `bson:"passwordResetToken,omitempty" json:"-"`
	PasswordResetExpires *time.Time         `bson:"passwordResetExpires,omitempty" json:"-"`
	Active               bool               `bson:"active" json:"-"`
	CreatedAt            time.Time          `bson:"createdAt" json:"createdAt,omitzero"`
}

func (a *Account) GetAccount() *Account { return a }

// NormalizeEmail trims and lowercases an address the way it is stored.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func IsEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// SetPassword validates the confirmation and stores the bcrypt hash. For an
// existing account it also records the change one second in the past so a
// token signed in the same second as the change keeps working.
func (a *Account) SetPassword(password, confirm string, now time.Time, isNew bool) error {
	verr := &ValidationError{}
	if password == "" {
		verr.Add("password", "A user needs a password")
	} else if len(password) < 8 {
		verr.Add("password", "Password must be at least 8 characters")
	}
	if confirm == "" {
		verr.Add("passwordConfirm", "Please confirm your password")
	} else if confirm != password {
		verr.Add("passwordConfirm", "Passwords are not the same")
	}
	if verr.HasErrors() {
		return verr
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	a.Password = hash
	if !isNew {
		changed := now.Add(-time.Second)
		a.PasswordChangedAt = &changed
	}
	return nil
}

func (a *Account) CorrectPassword(candidate string) bool {
	return a.Password != "" && utils.CheckPasswordHash(candidate, a.Password)
}

// ChangedPasswordAfter reports whether the password changed after a token
// issued at iat. Comparison is done in whole seconds like JWT timestamps.
func (a *Account) ChangedPasswordAfter(iat time.Time) bool {
	if a.PasswordChangedAt == nil {
		return false
	}
	return a.PasswordChangedAt.Unix() > iat.Unix()
}

// CreatePasswordResetToken stores the hashed token with its deadline and
// returns the plain token for the email.
func (a *Account) CreatePasswordResetToken(now time.Time) (string, error) {
	plain, hashed, err := utils.NewResetToken()
	if err != nil {
		return "", err
	}
	expires := now.Add(PasswordResetTTL)
	a.PasswordResetToken = hashed
	a.PasswordResetExpires = &expires
	return plain, nil
}

func (a *Account) ClearPasswordReset() {
	a.PasswordResetToken = ""
	a.PasswordResetExpires = nil
}

// validateIdentity checks the identity fields common to every principal.
func (a *Account) validateIdentity(verr *ValidationError) {
	if strings.TrimSpace(a.Name) == "" {
		verr.Add("name", "A user must have a name")
	}
	if a.Email == "" {
		verr.Add("email", "A user must have an email")
	} else if !IsEmail(a.Email) {
		verr.Add("email", "Please provide a valid email")
	}
}

// PrincipalSummary is the populated view of a principal referenced by an appointment.
type PrincipalSummary struct {
	ID    primitive.ObjectID `bson:"_id" json:"id"`
	Name  string             `bson:"name" json:"name,omitempty"`
	Email string             `bson:"email" json:"email,omitempty"`
	Photo string             `bson:"photo,omitempty" json:"photo,omitempty"`
}
