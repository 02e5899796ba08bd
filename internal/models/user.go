package models

// User is a patient account. Admins are users with RoleAdmin.
type User struct {
	Account `bson:",inline"`
}

func (u *User) Validate() error {
	verr := &ValidationError{}
	u.validateIdentity(verr)
	if u.Role != RoleUser && u.Role != RoleAdmin {
		verr.Add("role", "role must be either user or admin")
	}
	return verr.OrNil()
}
