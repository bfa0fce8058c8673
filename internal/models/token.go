package models

import "time"

// RefreshToken is the long-lived credential a portal user exchanges
// for new access tokens. Tokens are rotated on every refresh and
// revoked individually, so one compromised device can be cut off
// without ending the user's other sessions.
type RefreshToken struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Token     string    `db:"token" json:"token"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	// Revocation state. RevokedAt stays nil while the token is live.
	Revoked   bool       `db:"revoked" json:"revoked"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`

	// Client fingerprint captured at issue time, kept for audits.
	IPAddress string `db:"ip_address" json:"ip_address"`
	UserAgent string `db:"user_agent" json:"user_agent"`
}
