package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/fiscalware/govgate/pkg/authbroker"
	"github.com/fiscalware/govgate/pkg/jurisdiction"
	"github.com/fiscalware/govgate/pkg/procuration"
)

// Handler exposes the delegated portal operations over HTTP
type Handler struct {
	service *Service
}

// NewHandler creates a new gateway handler
func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

// ErrorResponse is the error body shared by all gateway endpoints
type ErrorResponse struct {
	Error string `json:"error"`
}

type debtQueryRequest struct {
	ClientID uuid.UUID `json:"client_id"`
	TaxID    string    `json:"tax_id"`
}

type guideIssuanceRequest struct {
	ClientID   uuid.UUID `json:"client_id"`
	TaxID      string    `json:"tax_id"`
	Competence string    `json:"competence"`
	Amount     int64     `json:"amount_cents"`
}

// RegisterRoutes registers the gateway endpoints on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/gov/{uf}/debts/query", h.QueryDebts)
	r.Post("/gov/{uf}/guides", h.IssueGuide)
}

// QueryDebts handles POST /gov/{uf}/debts/query
func (h *Handler) QueryDebts(w http.ResponseWriter, r *http.Request) {
	uf := chi.URLParam(r, "uf")

	var req debtQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.ClientID == uuid.Nil || req.TaxID == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "client_id and tax_id are required"})
		return
	}

	result, err := h.service.QueryDebts(r.Context(), req.ClientID, uf, req.TaxID)
	if err != nil {
		h.renderOperationError(w, r, uf, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, result)
}

// IssueGuide handles POST /gov/{uf}/guides
func (h *Handler) IssueGuide(w http.ResponseWriter, r *http.Request) {
	uf := chi.URLParam(r, "uf")

	var req guideIssuanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}
	if req.ClientID == uuid.Nil || req.TaxID == "" || req.Competence == "" {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "client_id, tax_id and competence are required"})
		return
	}

	result, err := h.service.IssueGuide(r.Context(), req.ClientID, uf, GuideRequest{
		TaxID:       req.TaxID,
		Competence:  req.Competence,
		AmountCents: req.Amount,
	})
	if err != nil {
		h.renderOperationError(w, r, uf, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, result)
}

// renderOperationError maps the operation error taxonomy onto HTTP statuses.
func (h *Handler) renderOperationError(w http.ResponseWriter, r *http.Request, uf string, err error) {
	status := http.StatusInternalServerError
	message := "Operation failed"

	var (
		unknownUF    jurisdiction.UnknownJurisdictionError
		insufficient procuration.InsufficientScopeError
		authFailure  authbroker.AuthFailure
		upstream     UpstreamError
		timeout      TimeoutError
	)
	switch {
	case errors.As(err, &unknownUF):
		status = http.StatusBadRequest
		message = unknownUF.Error()
	case errors.As(err, &insufficient):
		status = http.StatusForbidden
		message = insufficient.Error()
	case errors.As(err, &authFailure):
		status = http.StatusBadGateway
		message = authFailure.Error()
	case errors.As(err, &timeout):
		status = http.StatusGatewayTimeout
		message = timeout.Error()
	case errors.As(err, &upstream):
		status = http.StatusBadGateway
		message = upstream.Error()
	default:
		slog.Error("Delegated operation failed", "jurisdiction", uf, "error", err)
	}

	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: message})
}
