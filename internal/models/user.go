package models

import "time"

// Roles
const (
	RoleDriver = "driver"
	RoleAdmin  = "admin"
)

// User is a federation account as stored by the backend and returned by GET /me.
type User struct {
	ID                 string    `bson:"_id,omitempty" json:"id"`
	Identifier         string    `bson:"identifier" json:"identifier"` // e-mail or license number used to log in
	Name               string    `bson:"name" json:"name"`
	Role               string    `bson:"role" json:"role"`
	Approved           bool      `bson:"approved" json:"approved"`
	MustChangePassword bool      `bson:"mustChangePassword" json:"must_change_password"`
	PasswordHash       string    `bson:"passwordHash" json:"-"`
	CreatedAt          time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time `bson:"updatedAt" json:"updatedAt"`
}

// IsAdmin reports whether the user may approve registrations.
func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }
