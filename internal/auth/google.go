package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"legaldoc-backend/internal/shared/server/respond"
	"legaldoc-backend/internal/shared/telemetry"
	"legaldoc-backend/internal/users"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	defaultStateTTL   = 5 * time.Minute
	maxNextLen        = 512
)

var errNoVerifiedEmail = errors.New("google account has no verified email")

// EmailSignIn finds or creates the account for a verified email and issues a session.
type EmailSignIn interface {
	SignInWithEmail(ctx context.Context, email string) (users.Session, error)
}

// GoogleService signs users in with Google. Only the email scope is requested;
// accounts are matched by verified address and never get a password hash.
type GoogleService struct {
	users       EmailSignIn
	oauthConfig *oauth2.Config
	userInfoURL string
	uiRedirect  string
	pending     *pendingLogins
}

// NewGoogleService builds a GoogleService.
func NewGoogleService(signIn EmailSignIn, clientID, clientSecret, redirectURL, uiRedirect string) *GoogleService {
	return &GoogleService{
		users:       signIn,
		userInfoURL: googleUserInfoURL,
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email"},
			Endpoint:     google.Endpoint,
		},
		uiRedirect: uiRedirect,
		pending:    newPendingLogins(defaultStateTTL, time.Now),
	}
}

// RegisterRoutes attaches Google auth routes.
func (s *GoogleService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/google/start", s.start)
	rg.GET("/auth/google/callback", s.callback)
}

func (s *GoogleService) configured() bool {
	return s.oauthConfig.ClientID != "" && s.oauthConfig.ClientSecret != "" && s.oauthConfig.RedirectURL != "" && s.uiRedirect != ""
}

// start redirects to Google. An optional ?next= UI path (e.g. /documents/<id>)
// is carried through the state and handed back to the UI after sign-in.
func (s *GoogleService) start(c *gin.Context) {
	if !s.configured() {
		respond.Error(c, http.StatusInternalServerError, "auth_not_configured", "Google auth not configured", nil)
		return
	}
	next, ok := safeNext(c.Query("next"))
	if !ok {
		respond.Error(c, http.StatusBadRequest, "validation_error", "next must be a relative path", nil)
		return
	}

	state := s.pending.begin(next)
	c.Redirect(http.StatusFound, s.oauthConfig.AuthCodeURL(state))
}

func (s *GoogleService) callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "missing state or code", nil)
		return
	}
	next, ok := s.pending.finish(state)
	if !ok {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "invalid or expired state", nil)
		return
	}

	ctx := c.Request.Context()
	email, err := s.verifiedEmail(ctx, code)
	if err != nil {
		telemetry.Warn("auth.google.profile_failed", map[string]any{
			"request_id": telemetry.RequestIDFromContext(ctx),
			"err":        err,
		})
		if errors.Is(err, errNoVerifiedEmail) {
			respond.Error(c, http.StatusBadGateway, "auth_failed", errNoVerifiedEmail.Error(), nil)
			return
		}
		respond.Error(c, http.StatusBadGateway, "auth_failed", "failed to fetch user profile", nil)
		return
	}

	session, err := s.users.SignInWithEmail(ctx, email)
	if err != nil {
		telemetry.Error("auth.google.sign_in_failed", map[string]any{
			"request_id": telemetry.RequestIDFromContext(ctx),
			"err":        err,
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to issue token", nil)
		return
	}

	target, err := uiRedirect(s.uiRedirect, session.Token, next)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to redirect", nil)
		return
	}
	telemetry.Info("auth.google.signed_in", map[string]any{
		"request_id": telemetry.RequestIDFromContext(ctx),
		"user_id":    session.User.ID,
	})
	c.Redirect(http.StatusFound, target)
}

type googleUserInfo struct {
	Email         string `json:"email"`
	VerifiedEmail *bool  `json:"verified_email"`
}

// verifiedEmail exchanges the code and returns the account's email, provided
// Google does not report it as unverified.
func (s *GoogleService) verifiedEmail(ctx context.Context, code string) (string, error) {
	token, err := s.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("exchange code: %w", err)
	}
	resp, err := s.oauthConfig.Client(ctx, token).Get(s.userInfoURL)
	if err != nil {
		return "", fmt.Errorf("userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("userinfo status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("decode userinfo: %w", err)
	}
	email := strings.TrimSpace(info.Email)
	if email == "" || (info.VerifiedEmail != nil && !*info.VerifiedEmail) {
		return "", errNoVerifiedEmail
	}
	return email, nil
}

// pendingLogins holds OAuth states between start and callback. Each state is
// single use; expired entries are dropped whenever a new login begins.
type pendingLogins struct {
	mu    sync.Mutex
	items map[string]pendingLogin
	ttl   time.Duration
	now   func() time.Time
}

type pendingLogin struct {
	next    string
	expires time.Time
}

func newPendingLogins(ttl time.Duration, now func() time.Time) *pendingLogins {
	return &pendingLogins{items: make(map[string]pendingLogin), ttl: ttl, now: now}
}

func (p *pendingLogins) begin(next string) string {
	state := uuid.NewString()
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range p.items {
		if now.After(v.expires) {
			delete(p.items, k)
		}
	}
	p.items[state] = pendingLogin{next: next, expires: now.Add(p.ttl)}
	return state
}

func (p *pendingLogins) finish(state string) (string, bool) {
	p.mu.Lock()
	login, ok := p.items[state]
	delete(p.items, state)
	p.mu.Unlock()
	if !ok || p.now().After(login.expires) {
		return "", false
	}
	return login.next, true
}

func (p *pendingLogins) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// safeNext accepts an empty value or a same-origin absolute path.
func safeNext(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", true
	}
	if len(raw) > maxNextLen || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, "\\") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "", false
	}
	return raw, true
}

func uiRedirect(rawURL, token, next string) (string, error) {
	if rawURL == "" {
		return "", errors.New("redirect url required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	if next != "" {
		q.Set("next", next)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
