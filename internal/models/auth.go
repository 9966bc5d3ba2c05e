package models

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// Grant is the credential-bearing body returned by login and both refresh endpoints.
// RefreshToken is empty for web clients, which receive it as an httpOnly cookie.
type Grant struct {
	AccessToken        string `json:"access_token"`
	RefreshToken       string `json:"refresh_token,omitempty"`
	MustChangePassword bool   `json:"must_change_password,omitempty"`
	ExpiresIn          int    `json:"expires_in,omitempty"`
	User               *User  `json:"user,omitempty"`
}

// RefreshRequest is the body of POST /auth/mobile/refresh and of a mobile logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Name       string `json:"name" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// RegisterResult reports a registration awaiting admin approval.
type RegisterResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	UserID  string `json:"user_id,omitempty"`
}

// Pending reports whether the account still needs approval.
func (r *RegisterResult) Pending() bool { return r != nil && r.Status == "pending" }

// ChangePasswordRequest is the body of POST /me/change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// ErrorBody is the error envelope every backend handler writes.
type ErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
