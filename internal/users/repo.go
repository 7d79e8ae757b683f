package users

import "context"

// Repo persists users. Emails are stored normalized and are unique.
type Repo interface {
	Create(ctx context.Context, user User) error
	GetByID(ctx context.Context, userID string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	// Update writes the password and reset-token columns.
	Update(ctx context.Context, user User) error
}
