package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"stockflow-service/internal/authz"
	"stockflow-service/internal/repository"
)

const reasonRoleChanged = "Role changed"

type permissionsResponse struct {
	Role        string             `json:"role,omitempty"`
	Permissions []authz.Permission `json:"permissions"`
}

type checkResponse struct {
	Permission string `json:"permission"`
	Granted    bool   `json:"granted"`
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required,max=32"`
}

func (s *server) myPermissions(w http.ResponseWriter, r *http.Request) {
	p := authz.PrincipalFromContext(r.Context())

	role := p.ParsedRole()
	resp := permissionsResponse{Permissions: s.authorizer.PermissionsOf(p)}
	if role.Valid() {
		resp.Role = role.String()
	}
	respondJSON(s.logger, w, http.StatusOK, resp)
}

func (s *server) allPermissions(w http.ResponseWriter, _ *http.Request) {
	respondJSON(s.logger, w, http.StatusOK, permissionsResponse{Permissions: s.authorizer.Table().GetAllPermissions()})
}

func (s *server) checkPermission(w http.ResponseWriter, r *http.Request) {
	permission := strings.TrimSpace(r.URL.Query().Get("permission"))
	if permission == "" {
		respondError(s.logger, w, http.StatusBadRequest, "permission is required")
		return
	}

	p := authz.PrincipalFromContext(r.Context())
	respondJSON(s.logger, w, http.StatusOK, checkResponse{
		Permission: permission,
		Granted:    s.authorizer.HasPermission(p, authz.Permission(permission)),
	})
}

func (s *server) getUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p := authz.PrincipalFromContext(r.Context())
	if !s.authorizer.CanAccessUser(p, id) {
		respondError(s.logger, w, http.StatusForbidden, "")
		return
	}

	user, err := s.repo.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			respondError(s.logger, w, http.StatusNotFound, "user not found")
			return
		}
		s.logger.Errorw("failed to get user", "userId", id, "error", err)
		respondError(s.logger, w, http.StatusInternalServerError, "")
		return
	}

	respondJSON(s.logger, w, http.StatusOK, user)
}

// updateUserRole changes a user's role and closes their realtime connections so they
// reconnect under the new role groups.
func (s *server) updateUserRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(s.logger, w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(s.logger, w, http.StatusBadRequest, "role is required")
		return
	}
	role, ok := authz.ParseRole(req.Role)
	if !ok {
		respondError(s.logger, w, http.StatusBadRequest, "unknown role")
		return
	}

	if err := s.repo.UpdateUserRole(r.Context(), id, role.String()); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			respondError(s.logger, w, http.StatusNotFound, "user not found")
			return
		}
		s.logger.Errorw("failed to update user role", "userId", id, "error", err)
		respondError(s.logger, w, http.StatusInternalServerError, "")
		return
	}

	actor := authz.PrincipalFromContext(r.Context())
	closed := 0
	if s.hub != nil {
		closed = s.hub.ForceReconnectUser(id, reasonRoleChanged)
	}
	s.logger.Infow("user role changed", "userId", id, "role", role.String(), "changedBy", actor.UserID,
		"reconnected", closed)

	// other instances hold their own connections for this user
	if err := s.notif.ReconnectUser(context.WithoutCancel(r.Context()), id, reasonRoleChanged); err != nil {
		s.logger.Errorw("failed to publish reconnect for role change", "userId", id, "error", err)
	}

	// activity feed is best effort
	activity := fmt.Sprintf("changed role of %s to %s", id, role.String())
	if err := s.notif.UserActivity(context.WithoutCancel(r.Context()), actor.UserID, activity); err != nil {
		s.logger.Warnw("failed to publish role change activity", "userId", id, "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}
