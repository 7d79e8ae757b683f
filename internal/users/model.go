package users

import "time"

// User is an account. PasswordHash is empty for accounts created through Google sign-in.
type User struct {
	ID             string
	Email          string
	PasswordHash   string
	ResetTokenHash string
	ResetExpiresAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Session is the result of a successful sign-in.
type Session struct {
	Token string
	User  User
}
