package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"site-server/internal/billing"
	"site-server/internal/chat"
	"site-server/internal/config"
	"site-server/internal/db"
	"site-server/internal/metrics"
	"site-server/internal/observability"
	"site-server/internal/responder"
	"site-server/internal/store"
	"site-server/internal/types"
	"site-server/internal/voice"
)

// Deps are the collaborators the HTTP surface needs. Database and
// Transcriber are optional.
type Deps struct {
	Config      config.Config
	Logger      zerolog.Logger
	Engine      *responder.Engine
	Billing     *billing.Service
	Transcriber voice.Transcriber
	Database    *db.DB
}

type Server struct {
	router      *chi.Mux
	cfg         config.Config
	log         zerolog.Logger
	sessions    *store.SessionStore
	billing     *billing.Service
	transcriber voice.Transcriber
	database    *db.DB
}

func New(deps Deps) (*Server, error) {
	if deps.Engine == nil {
		deps.Engine = responder.NewEngine(nil)
	}
	if deps.Billing == nil {
		deps.Billing = billing.NewService(nil, billing.Options{SiteURL: deps.Config.SiteURL, Logger: deps.Logger})
	}

	s := &Server{
		router:      chi.NewRouter(),
		cfg:         deps.Config,
		log:         deps.Logger,
		billing:     deps.Billing,
		transcriber: deps.Transcriber,
		database:    deps.Database,
	}

	delay := chat.RandomDelay(deps.Config.ReplyDelayMin, deps.Config.ReplyDelayMax)
	sessions, err := store.NewSessionStore(deps.Config.MaxSessions, func(id string) *chat.Session {
		return chat.NewSession(id, deps.Engine, chat.Options{Delay: delay, OnTurn: s.onTurn})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}
	s.sessions = sessions

	s.middleware()
	s.routes()
	return s, nil
}

func (s *Server) middleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(observability.Middleware)
	s.router.Use(requestMetrics)
	s.router.Use(requestLogger(s.log))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Session-Id"},
		ExposedHeaders:   []string{"X-Session-Id", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) routes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Chat widget
	s.router.Get("/api/chat", s.handleChatState)
	s.router.Post("/api/chat", s.handleChat)
	s.router.Delete("/api/chat", s.handleChatReset)
	s.router.Post("/api/chat/quick-reply", s.handleQuickReply)
	s.router.Post("/api/chat/voice", s.handleVoice)
	s.router.Post("/api/chat/widget", s.handleWidget)

	// Checkout
	s.router.Get("/api/plans", s.handlePlans)
	s.router.Post("/api/create-checkout-session", s.handleCreateCheckoutSession)
	s.router.Get("/api/verify-session", s.handleVerifySession)
}

func (s *Server) Router() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		s.log.Info().Msg("shutting down HTTP server")
	case err := <-errCh:
		return err
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := types.HealthResponse{Status: "ok"}
	if s.database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.database.HealthCheck(ctx); err != nil {
			s.log.Warn().Err(err).Msg("database health check failed")
			resp.Status = "degraded"
			resp.Database = "unavailable"
		} else {
			resp.Database = "ok"
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, types.ErrorResponse{Error: msg})
}

func newSessionID() string {
	return "s_" + uuid.NewString()
}

// validSessionID reports whether id has the shape newSessionID produces.
func validSessionID(id string) bool {
	rest, ok := strings.CutPrefix(id, "s_")
	if !ok {
		return false
	}
	_, err := uuid.Parse(rest)
	return err == nil && len(rest) == 36
}

// getSessionID retrieves the session ID from cookie, header, or query parameter.
// Ids that were not issued by newSessionID are ignored.
func getSessionID(r *http.Request) string {
	if cookie, err := GetSessionCookie(r); err == nil && validSessionID(cookie) {
		return cookie
	}
	if sid := r.Header.Get("X-Session-Id"); validSessionID(sid) {
		return sid
	}
	if sid := r.URL.Query().Get("sessionId"); validSessionID(sid) {
		return sid
	}
	return ""
}

// session returns the caller's chat session, creating it and setting the
// cookie on first use.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *chat.Session {
	sid := getSessionID(r)
	if sid == "" {
		sid = newSessionID()
	}
	sess, created := s.sessions.GetOrCreate(sid)
	if created {
		s.log.Debug().Str("session_id", sid).Str("path", r.URL.Path).Msg("created chat session")
		SetSessionCookie(w, sid, s.cfg.CookieSecure)
		metrics.ChatActiveSessions.Set(float64(s.sessions.Len()))
	}
	w.Header().Set("X-Session-Id", sid)
	return sess
}

func (s *Server) onTurn(t chat.Turn) {
	rule := t.Reply.Rule
	if rule == "" {
		rule = string(t.Reply.Match)
	}
	metrics.ChatTurnsTotal.WithLabelValues(string(t.Reply.Match), rule, t.Reply.Topic.String()).Inc()
	s.log.Debug().
		Str("session_id", t.SessionID).
		Str("previous_topic", t.Previous.String()).
		Str("match", string(t.Reply.Match)).
		Str("rule", t.Reply.Rule).
		Str("topic", t.Reply.Topic.String()).
		Msg("chat turn")
}
