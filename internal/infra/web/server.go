package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"local-chat-assistant/internal/infra/logging"
	"local-chat-assistant/internal/infra/metrics"
	"local-chat-assistant/internal/usecase"
)

type Server struct {
	chatUC    usecase.ChatUseCase
	auth      *AuthManager
	maxUpload int64
	log       *zerolog.Logger

	srv *http.Server
}

func NewServer(
	chatUC usecase.ChatUseCase,
	auth *AuthManager,
	maxUpload int64,
	logger *zerolog.Logger,
) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	l := logger.With().Str("component", "web").Logger()
	return &Server{
		chatUC:    chatUC,
		auth:      auth,
		maxUpload: maxUpload,
		log:       &l,
	}
}

// Routes builds the router. Everything under /api/v1 is scoped to the
// caller's workspace.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TraceID())
	r.Use(RequestLog(s.log))
	r.Use(Recover(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/models", s.handleListModels)

		r.Group(func(r chi.Router) {
			r.Use(s.Workspace())

			r.Get("/chats", s.handleView)
			r.Post("/chats", s.handleNewChat)
			r.Delete("/chats", s.handleClearAll)
			r.Post("/chats/{index}/select", s.handleSelectChat)
			r.Post("/messages", s.handleSendMessage)
			r.Get("/suggestions", s.handleSuggestions)
			r.Post("/suggestions", s.handleSelectSuggestion)
			r.Post("/files", s.handleUpload)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	})
	return r
}

// Start serves on port until Shutdown is called.
func (s *Server) Start(port int) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Int("port", port).Msg("http server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
