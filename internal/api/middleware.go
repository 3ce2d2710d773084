package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"stockflow-service/internal/authz"
	"stockflow-service/internal/repository"
	"stockflow-service/internal/session"
)

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debugw("handled request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"requestId", middleware.GetReqID(r.Context()),
		)
	})
}

// loadPrincipal resolves the session cookie into a principal. The user is loaded on every
// request so that role changes and deactivation take effect immediately. Requests without a
// usable session continue anonymously.
func (s *server) loadPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(s.sessionCfg.CookieName)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		sess, err := s.sessions.Get(r.Context(), cookie.Value)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				next.ServeHTTP(w, r)
				return
			}
			s.logger.Errorw("failed to load session", "error", err)
			respondError(s.logger, w, http.StatusInternalServerError, "")
			return
		}

		user, err := s.repo.GetUser(r.Context(), sess.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				next.ServeHTTP(w, r)
				return
			}
			s.logger.Errorw("failed to load session user", "userId", sess.UserID, "error", err)
			respondError(s.logger, w, http.StatusInternalServerError, "")
			return
		}
		if !user.Active {
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(authz.WithPrincipal(r.Context(), user.ToPrincipal())))
	})
}

func (s *server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authz.PrincipalFromContext(r.Context()).Authenticated() {
			respondError(s.logger, w, http.StatusUnauthorized, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requirePolicy answers 401 for anonymous callers and a generic 403 when the policy is not met.
func (s *server) requirePolicy(policy string) func(http.Handler) http.Handler {
	req := authz.ParsePolicy(policy)

	return func(next http.Handler) http.Handler {
		return s.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := authz.PrincipalFromContext(r.Context())
			if err := s.authorizer.Authorize(p, req); err != nil {
				s.logger.Infow("access denied", "userId", p.UserID, "path", r.URL.Path, "method", r.Method)
				respondError(s.logger, w, http.StatusForbidden, "")
				return
			}
			next.ServeHTTP(w, r)
		}))
	}
}
