package api

import (
	"errors"
	"net/http"

	"stockflow-service/internal/authz"
	"stockflow-service/internal/kafka/notifier"
)

type stockUpdateRequest struct {
	ProductID   int64 `json:"productId" validate:"gt=0"`
	NewQuantity int   `json:"newQuantity" validate:"gte=0"`
}

type invoiceUpdateRequest struct {
	InvoiceID int64  `json:"invoiceId" validate:"gt=0"`
	Status    string `json:"status" validate:"required,max=64"`
	UserID    string `json:"userId" validate:"omitempty,max=64"`
}

type userActivityRequest struct {
	UserID   string `json:"userId" validate:"required,max=64"`
	Activity string `json:"activity" validate:"required,max=512"`
}

type systemMetricsRequest struct {
	Metrics map[string]any `json:"metrics" validate:"required,min=1"`
}

type stockLevelAlertRequest struct {
	ProductID    int64  `json:"productId" validate:"gt=0"`
	ProductName  string `json:"productName" validate:"required,max=256"`
	CurrentStock int    `json:"currentStock" validate:"gte=0"`
	MinimumStock int    `json:"minimumStock" validate:"gte=0"`
}

type userNotificationRequest struct {
	// UserID defaults to the caller.
	UserID  string `json:"userId" validate:"max=64"`
	Message string `json:"message" validate:"required,max=4096"`
	Type    string `json:"type" validate:"max=32"`
}

type dashboardUpdateRequest struct {
	Data map[string]any `json:"data" validate:"required,min=1"`
}

type broadcastMessageRequest struct {
	Message string `json:"message" validate:"required,max=4096"`
	Type    string `json:"type" validate:"max=32"`
}

type acceptedResponse struct {
	Status string `json:"status"`
}

func (s *server) publishStockUpdate(w http.ResponseWriter, r *http.Request) {
	var req stockUpdateRequest
	if !s.bind(w, r, &req) {
		return
	}
	s.accepted(w, s.notif.StockUpdate(r.Context(), req.ProductID, req.NewQuantity))
}

func (s *server) publishInvoiceUpdate(w http.ResponseWriter, r *http.Request) {
	var req invoiceUpdateRequest
	if !s.bind(w, r, &req) {
		return
	}
	s.accepted(w, s.notif.InvoiceUpdate(r.Context(), req.InvoiceID, req.Status, req.UserID))
}

func (s *server) publishUserActivity(w http.ResponseWriter, r *http.Request) {
	var req userActivityRequest
	if !s.bind(w, r, &req) {
		return
	}
	s.accepted(w, s.notif.UserActivity(r.Context(), req.UserID, req.Activity))
}

func (s *server) publishSystemMetrics(w http.ResponseWriter, r *http.Request) {
	var req systemMetricsRequest
	if !s.bind(w, r, &req) {
		return
	}
	s.accepted(w, s.notif.SystemMetrics(r.Context(), req.Metrics))
}

func (s *server) publishStockLevelAlert(w http.ResponseWriter, r *http.Request) {
	var req stockLevelAlertRequest
	if !s.bind(w, r, &req) {
		return
	}
	s.accepted(w, s.notif.StockLevelAlert(r.Context(), req.ProductID, req.ProductName, req.CurrentStock, req.MinimumStock))
}

func (s *server) publishUserNotification(w http.ResponseWriter, r *http.Request) {
	var req userNotificationRequest
	if !s.bind(w, r, &req) {
		return
	}

	caller := authz.PrincipalFromContext(r.Context())
	if req.UserID == "" {
		req.UserID = caller.UserID
	}
	if !s.authorizer.CanAccessUser(caller, req.UserID) {
		respondError(s.logger, w, http.StatusForbidden, "")
		return
	}
	s.accepted(w, s.notif.UserNotification(r.Context(), req.UserID, req.Message, req.Type))
}

func (s *server) publishDashboardUpdate(w http.ResponseWriter, r *http.Request) {
	var req dashboardUpdateRequest
	if !s.bind(w, r, &req) {
		return
	}
	s.accepted(w, s.notif.DashboardUpdate(r.Context(), req.Data))
}

func (s *server) publishBroadcastMessage(w http.ResponseWriter, r *http.Request) {
	var req broadcastMessageRequest
	if !s.bind(w, r, &req) {
		return
	}
	sender := authz.PrincipalFromContext(r.Context()).Name
	s.accepted(w, s.notif.BroadcastMessage(r.Context(), req.Message, req.Type, sender))
}

// bind decodes and validates the body, answering 400 itself on failure.
func (s *server) bind(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeJSON(r, v); err != nil {
		respondError(s.logger, w, http.StatusBadRequest, "malformed request body")
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		s.logger.Debugw("invalid request", "path", r.URL.Path, "error", err)
		respondError(s.logger, w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}

func (s *server) accepted(w http.ResponseWriter, err error) {
	if err != nil {
		if errors.Is(err, notifier.ErrUnavailable) {
			s.logger.Warnw("event publishing unavailable", "error", err)
		} else {
			s.logger.Errorw("failed to publish event", "error", err)
		}
		respondError(s.logger, w, http.StatusServiceUnavailable, "event could not be published")
		return
	}
	respondJSON(s.logger, w, http.StatusAccepted, acceptedResponse{Status: "accepted"})
}
