package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"kitchenhub-backend/internal/domain"
	"kitchenhub-backend/internal/logger"
	"kitchenhub-backend/internal/security"
	"kitchenhub-backend/internal/service"
)

// OverstayHandler serves the manager-facing overstay surface.
type OverstayHandler struct {
	overstaySvc service.OverstayService
}

func NewOverstayHandler(overstaySvc service.OverstayService) *OverstayHandler {
	return &OverstayHandler{
		overstaySvc: overstaySvc,
	}
}

// RegisterOverstayRoutes mounts the overstay routes behind auth.
func RegisterOverstayRoutes(router *mux.Router, overstaySvc service.OverstayService, tokenManager security.TokenManager) {
	handler := NewOverstayHandler(overstaySvc)

	sub := router.PathPrefix("/api/v1/overstays").Subrouter()
	sub.Use(AuthMiddleware(tokenManager))

	sub.HandleFunc("", handler.List).Methods("GET")
	sub.HandleFunc("/summary", handler.Summary).Methods("GET")
	sub.HandleFunc("/{id}", handler.Get).Methods("GET")
	sub.HandleFunc("/{id}/approve", handler.Approve).Methods("POST")
	sub.HandleFunc("/{id}/waive", handler.Waive).Methods("POST")
	sub.HandleFunc("/{id}/charge", handler.Charge).Methods("POST")
	sub.HandleFunc("/{id}/resolve", handler.Resolve).Methods("POST")
}

type approveRequest struct {
	AmountCents int32  `json:"amount_cents"`
	Notes       string `json:"notes"`
}

type waiveRequest struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

type resolveRequest struct {
	ResolutionType string `json:"resolution_type"`
	Notes          string `json:"notes"`
}

type overstayDetailResponse struct {
	Overstay *domain.OverstayRecord `json:"overstay"`
	Attempts []domain.ChargeAttempt `json:"charge_attempts"`
	Events   []domain.OverstayEvent `json:"events"`
}

type overstayListResponse struct {
	Overstays  []domain.OverstayRecord `json:"overstays"`
	TotalCount int32                   `json:"total_count"`
	Page       int32                   `json:"page"`
	PageSize   int32                   `json:"page_size"`
}

func (h *OverstayHandler) List(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	page := queryInt32(r, "page", 1)
	pageSize := queryInt32(r, "page_size", 20)

	records, total, err := h.overstaySvc.List(r.Context(), status, page, pageSize)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if records == nil {
		records = []domain.OverstayRecord{}
	}
	writeJSON(w, http.StatusOK, overstayListResponse{
		Overstays:  records,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
	})
}

func (h *OverstayHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.overstaySvc.GetSummary(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *OverstayHandler) Get(w http.ResponseWriter, r *http.Request) {
	rec, attempts, events, err := h.overstaySvc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if attempts == nil {
		attempts = []domain.ChargeAttempt{}
	}
	if events == nil {
		events = []domain.OverstayEvent{}
	}
	writeJSON(w, http.StatusOK, overstayDetailResponse{
		Overstay: rec,
		Attempts: attempts,
		Events:   events,
	})
}

func (h *OverstayHandler) Approve(w http.ResponseWriter, r *http.Request) {
	managerID, ok := managerFromContext(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.overstaySvc.Approve(r.Context(), managerID, mux.Vars(r)["id"], req.AmountCents, req.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *OverstayHandler) Waive(w http.ResponseWriter, r *http.Request) {
	managerID, ok := managerFromContext(w, r)
	if !ok {
		return
	}
	var req waiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.overstaySvc.Waive(r.Context(), managerID, mux.Vars(r)["id"], req.Reason, req.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *OverstayHandler) Charge(w http.ResponseWriter, r *http.Request) {
	managerID, ok := managerFromContext(w, r)
	if !ok {
		return
	}

	rec, err := h.overstaySvc.Charge(r.Context(), managerID, mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *OverstayHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	managerID, ok := managerFromContext(w, r)
	if !ok {
		return
	}
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.overstaySvc.Resolve(r.Context(), managerID, mux.Vars(r)["id"],
		domain.ResolutionType(req.ResolutionType), req.Notes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func managerFromContext(w http.ResponseWriter, r *http.Request) (int32, bool) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing authentication")
		return 0, false
	}
	return claims.UserID, true
}

func queryInt32(r *http.Request, name string, fallback int32) int32 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return fallback
	}
	return int32(v)
}

// writeServiceError maps the domain error taxonomy to HTTP status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	var transitionErr *domain.InvalidTransitionError
	var gatewayErr *domain.GatewayError

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &transitionErr):
		writeError(w, http.StatusConflict, transitionErr.Error())
	case errors.As(err, &gatewayErr):
		writeError(w, http.StatusBadGateway, gatewayErr.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "the record was modified concurrently, retry")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "overstay not found")
	default:
		logger.Error("Unhandled service error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
