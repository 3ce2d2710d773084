package api

import (
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"stockflow-service/internal/authz"
	"stockflow-service/internal/repository"
)

const invalidCredentials = "invalid email or password"

// Compared against when the email is unknown so both failure paths cost one bcrypt round.
var dummyPasswordHash, _ = bcrypt.GenerateFromPassword([]byte("stockflow-unknown-user"), bcrypt.DefaultCost)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type meResponse struct {
	User        authz.Principal    `json:"user"`
	Permissions []authz.Permission `json:"permissions"`
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(s.logger, w, http.StatusBadRequest, "malformed request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validate.Struct(req); err != nil {
		respondError(s.logger, w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := s.repo.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			s.logger.Errorw("failed to look up user", "error", err)
			respondError(s.logger, w, http.StatusInternalServerError, "")
			return
		}
		_ = bcrypt.CompareHashAndPassword(dummyPasswordHash, []byte(req.Password))
		respondError(s.logger, w, http.StatusUnauthorized, invalidCredentials)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Infow("login failed", "userId", user.Id)
		respondError(s.logger, w, http.StatusUnauthorized, invalidCredentials)
		return
	}
	if !user.Active {
		s.logger.Infow("login refused for inactive user", "userId", user.Id)
		respondError(s.logger, w, http.StatusUnauthorized, invalidCredentials)
		return
	}

	sess, err := s.sessions.Create(r.Context(), user.Id)
	if err != nil {
		s.logger.Errorw("failed to create session", "userId", user.Id, "error", err)
		respondError(s.logger, w, http.StatusInternalServerError, "")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.sessionCfg.CookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(s.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.sessionCfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	s.logger.Infow("user logged in", "userId", user.Id)
	p := user.ToPrincipal()
	respondJSON(s.logger, w, http.StatusOK, meResponse{User: p, Permissions: s.authorizer.PermissionsOf(p)})
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(s.sessionCfg.CookieName); err == nil {
		if err := s.sessions.Delete(r.Context(), cookie.Value); err != nil {
			s.logger.Errorw("failed to delete session", "error", err)
			respondError(s.logger, w, http.StatusInternalServerError, "")
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.sessionCfg.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.sessionCfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) me(w http.ResponseWriter, r *http.Request) {
	p := authz.PrincipalFromContext(r.Context())
	respondJSON(s.logger, w, http.StatusOK, meResponse{User: p, Permissions: s.authorizer.PermissionsOf(p)})
}

func (s *server) tooManyLoginAttempts(w http.ResponseWriter, _ *http.Request) {
	respondError(s.logger, w, http.StatusTooManyRequests, "too many login attempts")
}
