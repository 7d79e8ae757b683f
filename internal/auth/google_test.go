package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"legaldoc-backend/internal/users"
)

type fakeSignIn struct {
	email string
	err   error
}

func (f *fakeSignIn) SignInWithEmail(_ context.Context, email string) (users.Session, error) {
	f.email = email
	if f.err != nil {
		return users.Session{}, f.err
	}
	return users.Session{Token: "issued-token", User: users.User{ID: "user-1", Email: email}}, nil
}

func newGoogleFixture(t *testing.T, userInfo string) (*gin.Engine, *fakeSignIn) {
	t.Helper()
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"access","token_type":"Bearer","expires_in":3600}`))
		case "/userinfo":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(userInfo))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(provider.Close)

	signIn := &fakeSignIn{}
	svc := NewGoogleService(signIn, "client", "secret", "http://api.test/api/auth/google/callback", "http://ui.test/auth/callback")
	svc.oauthConfig.Endpoint = oauth2.Endpoint{AuthURL: provider.URL + "/auth", TokenURL: provider.URL + "/token"}
	svc.userInfoURL = provider.URL + "/userinfo"

	gin.SetMode(gin.TestMode)
	router := gin.New()
	svc.RegisterRoutes(router.Group("/api"))
	return router, signIn
}

func startState(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/google/start", nil))
	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestGoogleCallbackSignsInAndRedirects(t *testing.T) {
	router, signIn := newGoogleFixture(t, `{"email":"Jane@Example.com","verified_email":true}`)
	state := startState(t, router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?state="+state+"&code=abc", nil))
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "http://ui.test/auth/callback?token=issued-token", w.Header().Get("Location"))
	assert.Equal(t, "Jane@Example.com", signIn.email)

	// state is single use
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?state="+state+"&code=abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGoogleCallbackRejectsUnverifiedEmail(t *testing.T) {
	router, signIn := newGoogleFixture(t, `{"email":"jane@example.com","verified_email":false}`)
	state := startState(t, router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?state="+state+"&code=abc", nil))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Empty(t, signIn.email)
}

func TestGoogleCallbackSignInFailure(t *testing.T) {
	router, signIn := newGoogleFixture(t, `{"email":"jane@example.com"}`)
	signIn.err = errors.New("db down")
	state := startState(t, router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?state="+state+"&code=abc", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGoogleStartRequiresConfig(t *testing.T) {
	svc := NewGoogleService(&fakeSignIn{}, "", "", "", "")
	gin.SetMode(gin.TestMode)
	router := gin.New()
	svc.RegisterRoutes(router.Group("/api"))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/google/start", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGoogleStartCarriesNextPath(t *testing.T) {
	router, _ := newGoogleFixture(t, `{"email":"jane@example.com","verified_email":true}`)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/google/start?next=/documents/doc-1", nil))
	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/google/callback?state="+state+"&code=abc", nil))
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	back, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "issued-token", back.Query().Get("token"))
	assert.Equal(t, "/documents/doc-1", back.Query().Get("next"))
}

func TestGoogleStartRejectsOffsiteNext(t *testing.T) {
	router, _ := newGoogleFixture(t, `{}`)
	for _, next := range []string{"https://evil.example", "//evil.example/x", "documents/1"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/google/start?next="+url.QueryEscape(next), nil))
		assert.Equal(t, http.StatusBadRequest, w.Code, next)
	}
}

func TestPendingLoginsExpireAndSweep(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p := newPendingLogins(time.Minute, func() time.Time { return now })

	stale := p.begin("")
	now = now.Add(2 * time.Minute)
	_, ok := p.finish(stale)
	assert.False(t, ok)

	p.begin("")
	now = now.Add(2 * time.Minute)
	p.begin("/documents")
	assert.Equal(t, 1, p.size())
}
