package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"local-chat-assistant/internal/infra/logging"
	"local-chat-assistant/internal/infra/metrics"
)

type Middleware func(http.Handler) http.Handler

// TraceID copies chi's request ID into the logging context.
func TraceID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id := middleware.GetReqID(ctx); id != "" {
				ctx = logging.WithTraceID(ctx, id)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLog logs every request and records it under its route pattern.
func RequestLog(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := ""
			if rc := chi.RouteContext(r.Context()); rc != nil {
				route = rc.RoutePattern()
			}
			metrics.ObserveHTTP(route, r.Method, status, time.Since(start).Milliseconds())

			l := logging.With(r.Context(), logger)
			l.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", route).
				Int("status", status).
				Dur("duration", time.Since(start)).
				Msg("http_request")
		})
	}
}

func Recover(logger *zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					l := logging.With(r.Context(), logger)
					l.Error().Interface("panic", rec).Msg("panic recovered")
					writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Workspace resolves the caller's workspace from the token, minting a fresh
// one when the token is missing or no longer valid.
func (s *Server) Workspace() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := s.auth.ParseFromRequest(r)
			switch {
			case err != nil:
				if !errors.Is(err, errMissingToken) {
					logging.With(r.Context(), s.log).Debug().Err(err).Msg("replacing invalid workspace token")
				}
				claims, _, err = s.auth.Mint(w)
				if err != nil {
					logging.With(r.Context(), s.log).Error().Err(err).Msg("mint workspace token")
					writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
					return
				}
			case s.auth.NeedsRenewal(claims):
				// a failed renewal keeps the current, still valid token
				if renewed, _, err := s.auth.Renew(w, claims); err == nil {
					claims = renewed
				}
			}
			ctx := logging.WithWorkspaceID(r.Context(), claims.WorkspaceID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
