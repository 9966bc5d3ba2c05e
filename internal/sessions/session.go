package sessions

import "time"

// Session represents a persistent refresh session. The refresh token is the lookup key;
// every successful refresh deletes the session and creates a new one.
type Session struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	RefreshToken string    `bson:"refreshToken" json:"refreshToken"`
	UserID       string    `bson:"userId" json:"userId"`
	ClientType   string    `bson:"clientType" json:"clientType"` // web | mobile
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
}
