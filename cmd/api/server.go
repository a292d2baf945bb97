package main

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/trace"

	"legalpulse/app"
	"legalpulse/auth"
	"legalpulse/directory"
	"legalpulse/logging"
	"legalpulse/notify"
	"legalpulse/registration"
	"legalpulse/session"
	"legalpulse/telemetry"
)

type ctxKey string

const (
	ctxKeyUserID    ctxKey = "userID"
	ctxKeyRole      ctxKey = "role"
	ctxKeySession   ctxKey = "session"
	ctxKeySessionID ctxKey = "sessionID"
)

// Server exposes the directory, accounts and registrations over HTTP.
type Server struct {
	app           *app.App
	authService   *auth.Service
	directory     *directory.Service
	registrations *registration.Service
	notifier      notify.Notifier
	logger        *slog.Logger
	tracer        trace.Tracer
}

func NewServer(a *app.App, tracer trace.Tracer) *Server {
	return &Server{
		app:           a,
		authService:   a.Auth,
		directory:     a.Directory,
		registrations: a.Registrations,
		notifier:      a.Notifier,
		logger:        a.Logger,
		tracer:        tracer,
	}
}

// Routes builds the router. Protected routes require a bearer token bound to a
// live session; admin routes additionally require the admin role.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(telemetry.Middleware(s.tracer), s.accessLog)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/lsps", s.handleSearch).Methods(http.MethodGet)
	api.HandleFunc("/lsps/facets", s.handleFacets).Methods(http.MethodGet)
	api.HandleFunc("/lsps/suggest", s.handleSuggest).Methods(http.MethodGet)
	api.HandleFunc("/lsps/{id}", s.handleLSP).Methods(http.MethodGet)
	api.HandleFunc("/auth/signup", s.handleSignup).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.Handle("/registrations", s.optionalSession(http.HandlerFunc(s.handleSubmitRegistration))).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(s.requireSession)
	protected.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	protected.HandleFunc("/me", s.handleMe).Methods(http.MethodGet)
	protected.HandleFunc("/me/profile", s.handleUpdateProfile).Methods(http.MethodPatch)
	protected.HandleFunc("/registrations/mine", s.handleMyRegistrations).Methods(http.MethodGet)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireSession, s.requireAdmin)
	admin.HandleFunc("/registrations", s.handleAdminRegistrations).Methods(http.MethodGet)
	admin.HandleFunc("/registrations/{id}", s.handleAdminDecision).Methods(http.MethodPatch)

	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// requireSession resolves the bearer token to its persisted session. A token
// whose session was logged out is rejected.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, sid, err := s.sessionFromRequest(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if sess == nil {
			s.writeError(w, r, auth.ErrNotAuthenticated)
			return
		}
		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess, sid)))
	})
}

// optionalSession attaches a session when a valid bearer token is present.
func (s *Server) optionalSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, sid, err := s.sessionFromRequest(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if sess != nil {
			r = r.WithContext(withSession(r.Context(), sess, sid))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role, _ := r.Context().Value(ctxKeyRole).(auth.Role)
		if role != auth.RoleAdmin {
			s.writeError(w, r, auth.ErrPermissionDenied)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sessionFromRequest returns nil without error when no bearer token is sent.
func (s *Server) sessionFromRequest(r *http.Request) (*session.Session, string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, "", nil
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, "", auth.ErrInvalidToken
	}

	claims, err := s.authService.Tokens().Verify(strings.TrimSpace(token))
	if err != nil {
		return nil, "", err
	}

	sess := s.app.NewSession(claims.SessionID)
	if err := sess.Restore(r.Context()); err != nil {
		return nil, "", err
	}
	user, ok := sess.User()
	if !ok || user.ID != claims.UserID {
		return nil, "", auth.ErrNotAuthenticated
	}
	return sess, claims.SessionID, nil
}

func withSession(ctx context.Context, sess *session.Session, sid string) context.Context {
	user, _ := sess.User()
	ctx = context.WithValue(ctx, ctxKeySession, sess)
	ctx = context.WithValue(ctx, ctxKeySessionID, sid)
	ctx = context.WithValue(ctx, ctxKeyUserID, user.ID)
	return context.WithValue(ctx, ctxKeyRole, user.Role)
}

func sessionFrom(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(ctxKeySession).(*session.Session)
	return sess
}

func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	userID, _ := r.Context().Value(ctxKeyUserID).(string)
	if userID == "" {
		return s.logger
	}
	role, _ := r.Context().Value(ctxKeyRole).(auth.Role)
	return logging.WithUser(s.logger, userID, string(role))
}
