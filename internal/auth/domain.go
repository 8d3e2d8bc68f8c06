// Package auth handles accounts, bearer tokens and the admin second factor.
package auth

import "time"

// User is an account as stored in the users table.
type User struct {
	ID            int64     `json:"id"`
	Username      string    `json:"username"`
	PasswordHash  string    `json:"-"`
	Role          string    `json:"role"`
	Plan          string    `json:"plan"`
	UpgradeStatus string    `json:"upgrade_status"`
	CreatedAt     time.Time `json:"created_at"`
}

// Credentials are the username/password pair posted by clients.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Session is an issued bearer token.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      User      `json:"user"`
}

// LoginResult is either a session or a pending second factor challenge.
type LoginResult struct {
	*Session
	TwoFARequired bool   `json:"twofa_required,omitempty"`
	Challenge     string `json:"challenge,omitempty"`
}
