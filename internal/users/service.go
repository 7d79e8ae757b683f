package users

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"legaldoc-backend/internal/mailer"
	"legaldoc-backend/internal/shared/telemetry"
)

const (
	defaultBcryptCost = 12
	resetTokenBytes   = 32
	resetTokenTTL     = 30 * time.Minute
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// TokenSigner issues bearer tokens.
type TokenSigner interface {
	Sign(userID, email string) (string, error)
}

// Service implements account flows.
type Service struct {
	Repo           Repo
	Tokens         TokenSigner
	Mailer         mailer.Sender
	FrontendOrigin string
	BcryptCost     int
	Now            func() time.Time
}

// Signup creates a password account and signs it in.
func (s *Service) Signup(ctx context.Context, email, password string) (Session, error) {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return Session{}, ErrInvalidEmail
	}
	if !StrongPassword(password) {
		return Session{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost())
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.now(),
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		return Session{}, err
	}
	return s.session(user)
}

// Login checks a password and signs the user in.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	user, err := s.Repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if user.PasswordHash == "" {
		return Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.session(user)
}

// ForgotPassword stores a hashed one-time token and mails the reset link.
// Unknown emails succeed silently.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	user, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}

	raw := make([]byte, resetTokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}
	token := hex.EncodeToString(raw)
	expires := s.now().Add(resetTokenTTL)
	user.ResetTokenHash = hashToken(token)
	user.ResetExpiresAt = &expires
	if err := s.Repo.Update(ctx, user); err != nil {
		return err
	}

	if s.Mailer == nil {
		return nil
	}
	if err := s.Mailer.SendPasswordReset(ctx, email, s.resetURL(token, email)); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// ResetPassword sets a new password when token matches an unexpired reset request.
func (s *Service) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	if !StrongPassword(newPassword) {
		return ErrWeakPassword
	}
	user, err := s.Repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	if user.ResetTokenHash == "" || user.ResetExpiresAt == nil || user.ResetExpiresAt.Before(s.now()) {
		return ErrInvalidResetToken
	}
	if subtle.ConstantTimeCompare([]byte(hashToken(token)), []byte(user.ResetTokenHash)) != 1 {
		return ErrInvalidResetToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost())
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.ResetTokenHash = ""
	user.ResetExpiresAt = nil
	if err := s.Repo.Update(ctx, user); err != nil {
		return err
	}
	telemetry.Info("auth.password_reset", map[string]any{
		"request_id": telemetry.RequestIDFromContext(ctx),
		"user_id":    user.ID,
	})
	return nil
}

// SignInWithEmail finds or creates a password-less account for a verified
// external identity and signs it in.
func (s *Service) SignInWithEmail(ctx context.Context, email string) (Session, error) {
	email = NormalizeEmail(email)
	if !ValidEmail(email) {
		return Session{}, ErrInvalidEmail
	}
	user, err := s.Repo.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		user = User{ID: uuid.NewString(), Email: email, CreatedAt: s.now()}
		err = s.Repo.Create(ctx, user)
		if errors.Is(err, ErrEmailTaken) {
			user, err = s.Repo.GetByEmail(ctx, email)
		}
	}
	if err != nil {
		return Session{}, err
	}
	return s.session(user)
}

// GetByID loads a user.
func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if strings.TrimSpace(userID) == "" {
		return User{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, userID)
}

func (s *Service) session(user User) (Session, error) {
	token, err := s.Tokens.Sign(user.ID, user.Email)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: user}, nil
}

func (s *Service) resetURL(token, email string) string {
	base := strings.TrimRight(strings.TrimSpace(s.FrontendOrigin), "/")
	if base == "" {
		base = "http://localhost:5173"
	}
	q := url.Values{}
	q.Set("token", token)
	q.Set("email", email)
	return base + "/reset-password?" + q.Encode()
}

func (s *Service) cost() int {
	if s.BcryptCost > 0 {
		return s.BcryptCost
	}
	return defaultBcryptCost
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email looks like local@domain.tld.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// MaxPasswordBytes is bcrypt's input limit.
const MaxPasswordBytes = 72

// StrongPassword requires 8 to 72 bytes with an upper, a lower, a digit and a special character.
func StrongPassword(password string) bool {
	if len(password) < 8 || len(password) > MaxPasswordBytes {
		return false
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsSpace(r):
			special = true
		}
	}
	return upper && lower && digit && special
}
