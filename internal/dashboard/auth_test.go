package dashboard

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/user/release-tracker/internal/tracker"
)

func newTestAuth() *Auth {
	return &Auth{
		oauth2Config: &oauth2.Config{
			ClientID:    "tracker",
			RedirectURL: "https://tracker.example.com/auth/callback",
			Endpoint:    oauth2.Endpoint{AuthURL: "https://idp.example.com/authorize", TokenURL: "https://idp.example.com/token"},
			Scopes:      []string{"openid"},
		},
		store: newSessionStore([]byte("0123456789abcdef0123456789abcdef")),
	}
}

func loggedInCookie(t *testing.T, a *Auth) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	session, _ := a.store.Get(req, sessionName)
	session.Values["user"] = UserInfo{ID: "1", Email: "dev@example.com"}
	require.NoError(t, session.Save(req, rec))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestAuth_RequireAuth(t *testing.T) {
	a := newTestAuth()
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) }

	rec := httptest.NewRecorder()
	a.RequireAuth(ok)(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/snapshot", nil)
	req.AddCookie(loggedInCookie(t, a))
	rec = httptest.NewRecorder()
	a.RequireAuth(ok)(rec, req)
	require.Equal(t, http.StatusTeapot, rec.Code)
}

func TestAuth_RequireLogin(t *testing.T) {
	a := newTestAuth()
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) }

	rec := httptest.NewRecorder()
	a.RequireLogin(ok)(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/auth/login", rec.Header().Get("Location"))
}

func TestAuth_HandleLogin(t *testing.T) {
	a := newTestAuth()

	rec := httptest.NewRecorder()
	a.HandleLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "idp.example.com", loc.Host)
	require.Equal(t, "tracker", loc.Query().Get("client_id"))
	require.NotEmpty(t, loc.Query().Get("state"))
	require.NotEmpty(t, rec.Result().Cookies())
}

func TestAuth_HandleCallback_RejectsBadState(t *testing.T) {
	a := newTestAuth()

	rec := httptest.NewRecorder()
	a.HandleCallback(rec, httptest.NewRequest(http.MethodGet, "/auth/callback?state=forged&code=x", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuth_HandleMe(t *testing.T) {
	a := newTestAuth()

	rec := httptest.NewRecorder()
	a.HandleMe(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(loggedInCookie(t, a))
	rec = httptest.NewRecorder()
	a.HandleMe(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "dev@example.com")
}

func TestServer_GatesRoutesWhenAuthConfigured(t *testing.T) {
	srv := newServer(ServerConfig{Store: tracker.NewStore()}, newTestAuth())

	type tc struct {
		path     string
		wantCode int
	}
	tests := []tc{
		{path: "/", wantCode: http.StatusFound},
		{path: "/api/snapshot", wantCode: http.StatusUnauthorized},
		{path: "/api/notifications", wantCode: http.StatusUnauthorized},
		{path: "/ws", wantCode: http.StatusUnauthorized},
		{path: "/health", wantCode: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.Equal(t, tt.wantCode, rec.Code)
		})
	}
}
