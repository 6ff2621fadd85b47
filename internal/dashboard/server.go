package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/user/release-tracker/internal/tracker"
)

type Server struct {
	auth     *Auth
	handlers *Handlers
	hub      *Hub
	mux      *http.ServeMux
}

type ServerConfig struct {
	Store           *tracker.Store
	Notifier        Notifier
	History         History
	RefreshInterval time.Duration
	AuthConfig      AuthConfig
	SessionSecret   []byte
}

func NewServer(ctx context.Context, cfg ServerConfig) (*Server, error) {
	var auth *Auth
	var err error
	if cfg.AuthConfig.Issuer != "" {
		auth, err = NewAuth(ctx, cfg.AuthConfig, cfg.SessionSecret)
		if err != nil {
			return nil, err
		}
	}

	return newServer(cfg, auth), nil
}

func newServer(cfg ServerConfig, auth *Auth) *Server {
	s := &Server{
		auth:     auth,
		handlers: NewHandlers(cfg.Store, cfg.Notifier, cfg.History, cfg.RefreshInterval),
		hub:      NewHub(),
		mux:      http.NewServeMux(),
	}
	cfg.Store.Subscribe(s.hub.Broadcast)

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	if s.auth != nil {
		s.mux.HandleFunc("/auth/login", s.auth.HandleLogin)
		s.mux.HandleFunc("/auth/callback", s.auth.HandleCallback)
		s.mux.HandleFunc("/auth/logout", s.auth.HandleLogout)
		s.mux.HandleFunc("/api/me", s.auth.HandleMe)
	}

	s.mux.HandleFunc("/health", getOnly(s.handlers.Health))
	s.mux.HandleFunc("/test-notify", getOnly(s.handlers.TestNotify))

	s.mux.HandleFunc("/", s.page(getOnly(s.handlers.Index)))
	s.mux.HandleFunc("/api/snapshot", s.api(getOnly(s.handlers.Snapshot)))
	s.mux.HandleFunc("/api/notifications", s.api(getOnly(s.handlers.Notifications)))
	s.mux.HandleFunc("/ws", s.api(s.hub.ServeWS))
}

func (s *Server) page(handler http.HandlerFunc) http.HandlerFunc {
	if s.auth != nil {
		return s.auth.RequireLogin(handler)
	}
	return handler
}

func (s *Server) api(handler http.HandlerFunc) http.HandlerFunc {
	if s.auth != nil {
		return s.auth.RequireAuth(handler)
	}
	return handler
}

func getOnly(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			handler(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// Close disconnects live-update clients.
func (s *Server) Close() {
	s.hub.Close()
}
