// Package server exposes the device registration API, health checks,
// and Prometheus metrics over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/model"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/retry"
	"github.com/ogulcanaydogan/cloud-budget-sentinel/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const handlerTimeout = 10 * time.Second

// DeviceManager is the push endpoint lifecycle surface the API exposes.
type DeviceManager interface {
	RegisterDevice(ctx context.Context, token, userID string) (*model.PushEndpointRegistration, error)
	UpdateDeviceToken(ctx context.Context, endpointID, newToken string) error
	DeregisterDevice(ctx context.Context, endpointID string) error
	ValidatePlatformHealth(ctx context.Context) error
	EstimateCertificateHealth(ctx context.Context) *model.CertificateHealth
}

// Server provides the device API, health check, and metrics endpoints.
type Server struct {
	devices  DeviceManager
	mux      *http.ServeMux
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// NewServer creates an API server. devices may be nil when the push
// channel is disabled; the device routes then answer 503.
func NewServer(devices DeviceManager, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	s := &Server{
		devices:  devices,
		mux:      http.NewServeMux(),
		logger:   logger,
		gatherer: gatherer,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /api/v1/devices", s.handleRegister)
	s.mux.HandleFunc("PUT /api/v1/devices/{endpointID}/token", s.handleUpdateToken)
	s.mux.HandleFunc("DELETE /api/v1/devices/{endpointID}", s.handleDeregister)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

type registerRequest struct {
	DeviceToken string `json:"device_token"`
	UserID      string `json:"user_id"`
}

type tokenUpdateRequest struct {
	DeviceToken string `json:"device_token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if s.devices == nil {
		writeError(w, http.StatusServiceUnavailable, "push channel disabled")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	reg, err := s.devices.RegisterDevice(ctx, req.DeviceToken, req.UserID)
	if err != nil {
		s.writeFailure(w, "register device", err)
		return
	}

	writeJSON(w, http.StatusCreated, reg)
}

func (s *Server) handleUpdateToken(w http.ResponseWriter, r *http.Request) {
	if s.devices == nil {
		writeError(w, http.StatusServiceUnavailable, "push channel disabled")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	var req tokenUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	endpointID := r.PathValue("endpointID")
	if err := s.devices.UpdateDeviceToken(ctx, endpointID, req.DeviceToken); err != nil {
		s.writeFailure(w, "update device token", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"endpoint_id": endpointID, "status": "rotated"})
}

func (s *Server) handleDeregister(w http.ResponseWriter, r *http.Request) {
	if s.devices == nil {
		writeError(w, http.StatusServiceUnavailable, "push channel disabled")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	endpointID := r.PathValue("endpointID")
	if err := s.devices.DeregisterDevice(ctx, endpointID); err != nil {
		s.writeFailure(w, "deregister device", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type healthResponse struct {
	Status      string                   `json:"status"`
	Push        string                   `json:"push,omitempty"`
	Certificate *model.CertificateHealth `json:"certificate,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	if s.devices == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	status := http.StatusOK
	if err := s.devices.ValidatePlatformHealth(ctx); err != nil {
		s.logger.Warn("push platform health probe failed", "error", err)
		resp.Status = "degraded"
		resp.Push = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		resp.Push = "ok"
	}

	resp.Certificate = s.devices.EstimateCertificateHealth(ctx)
	if resp.Certificate.Level == model.HealthError && resp.Status == "ok" {
		resp.Status = "degraded"
	}

	writeJSON(w, status, resp)
}

// writeFailure maps domain errors onto HTTP statuses: invalid input is
// the caller's fault, a missing registration is 404, and an upstream
// platform failure is a 502.
func (s *Server) writeFailure(w http.ResponseWriter, op string, err error) {
	var (
		validation *retry.ValidationError
		transient  *retry.TransientError
		permanent  *retry.PermanentError
	)
	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "registration not found")
	case errors.As(err, &transient), errors.As(err, &permanent):
		s.logger.Error(op, "error", err)
		writeError(w, http.StatusBadGateway, "push platform error")
	default:
		s.logger.Error(op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
