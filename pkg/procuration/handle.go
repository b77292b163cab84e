package procuration

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/fiscalware/govgate/pkg/audit"
)

// Handler exposes the procuration lifecycle over HTTP
type Handler struct {
	service *LifecycleService
}

// NewHandler creates a new procuration lifecycle handler
func NewHandler(service *LifecycleService) *Handler {
	return &Handler{
		service: service,
	}
}

// ErrorResponse is the error body shared by all lifecycle endpoints
type ErrorResponse struct {
	Error string `json:"error"`
}

type issueProcurationRequest struct {
	ClientID           uuid.UUID `json:"client_id"`
	CertificateID      uuid.UUID `json:"certificate_id"`
	AttorneyTaxID      string    `json:"attorney_tax_id"`
	AttorneyName       string    `json:"attorney_name"`
	AuthorizedServices []string  `json:"authorized_services"`
	ValidityDays       int       `json:"validity_days"`
}

type cancelProcurationRequest struct {
	Reason string `json:"reason"`
}

type procurationResponse struct {
	ID                 uuid.UUID `json:"id"`
	ClientID           uuid.UUID `json:"client_id"`
	AttorneyTaxID      string    `json:"attorney_tax_id"`
	AttorneyName       string    `json:"attorney_name"`
	Status             string    `json:"status"`
	StatusReason       string    `json:"status_reason,omitempty"`
	AuthorizedServices []string  `json:"authorized_services"`
	IssuedAt           string    `json:"issued_at,omitempty"`
	ValidUntil         string    `json:"valid_until"`
	GrantReference     string    `json:"grant_reference,omitempty"`
	ProofDocumentRef   string    `json:"proof_document_ref,omitempty"`
}

// RegisterRoutes registers the lifecycle endpoints on a chi router
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/procurations", h.Issue)
	r.Post("/procurations/{id}/cancel", h.Cancel)
	r.Get("/procurations/{id}", h.Get)
	r.Get("/procurations/{id}/audit", h.AuditLog)
	r.Get("/clients/{clientId}/procurations", h.ListByClient)
}

// Issue handles POST /procurations
func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueProcurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Failed to decode request body", "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}

	p, err := h.service.Issue(r.Context(), IssueRequest{
		ClientID:           req.ClientID,
		CertificateID:      req.CertificateID,
		AttorneyTaxID:      req.AttorneyTaxID,
		AttorneyName:       req.AttorneyName,
		AuthorizedServices: req.AuthorizedServices,
		ValidityDays:       req.ValidityDays,
	})
	if err != nil {
		var issuance IssuanceError
		if errors.As(err, &issuance) {
			// The procuration exists in Error status; callers get its id.
			render.Status(r, http.StatusBadGateway)
			render.JSON(w, r, struct {
				ErrorResponse
				ProcurationID uuid.UUID `json:"procuration_id"`
			}{
				ErrorResponse: ErrorResponse{Error: issuance.Error()},
				ProcurationID: issuance.ID,
			})
			return
		}

		slog.Error("Failed to issue procuration", "clientId", req.ClientID, "error", err)
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: err.Error()})
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, toProcurationResponse(p))
}

// Cancel handles POST /procurations/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid procuration id"})
		return
	}

	var req cancelProcurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid request body"})
		return
	}

	p, err := h.service.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		status := http.StatusInternalServerError
		message := "Failed to cancel procuration"

		var terminal TerminalStatusError
		switch {
		case errors.Is(err, ErrProcurationNotFound):
			status = http.StatusNotFound
			message = "Procuration not found"
		case errors.As(err, &terminal):
			status = http.StatusConflict
			message = terminal.Error()
		default:
			slog.Error("Failed to cancel procuration", "procurationId", id, "error", err)
		}

		render.Status(r, status)
		render.JSON(w, r, ErrorResponse{Error: message})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toProcurationResponse(p))
}

// Get handles GET /procurations/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid procuration id"})
		return
	}

	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrProcurationNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, ErrorResponse{Error: "Procuration not found"})
			return
		}
		slog.Error("Failed to get procuration", "procurationId", id, "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "Failed to get procuration"})
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toProcurationResponse(p))
}

// ListByClient handles GET /clients/{clientId}/procurations
func (h *Handler) ListByClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := uuid.Parse(chi.URLParam(r, "clientId"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid client id"})
		return
	}

	procurations, err := h.service.ListByClient(r.Context(), clientID)
	if err != nil {
		slog.Error("Failed to list procurations", "clientId", clientID, "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "Failed to list procurations"})
		return
	}

	response := make([]procurationResponse, 0, len(procurations))
	for _, p := range procurations {
		response = append(response, toProcurationResponse(p))
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

// AuditLog handles GET /procurations/{id}/audit
func (h *Handler) AuditLog(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorResponse{Error: "Invalid procuration id"})
		return
	}

	events, err := h.service.AuditLog(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrProcurationNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, ErrorResponse{Error: "Procuration not found"})
			return
		}
		slog.Error("Failed to read audit trail", "procurationId", id, "error", err)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorResponse{Error: "Failed to read audit trail"})
		return
	}

	if events == nil {
		events = []audit.Event{}
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, events)
}

func toProcurationResponse(p Procuration) procurationResponse {
	resp := procurationResponse{
		ID:                 p.ID,
		ClientID:           p.ClientID,
		AttorneyTaxID:      p.AttorneyTaxID,
		AttorneyName:       p.AttorneyName,
		Status:             string(p.EffectiveStatus(time.Now().UTC())),
		StatusReason:       p.StatusReason,
		AuthorizedServices: p.AuthorizedServices,
		ValidUntil:         p.ValidUntil.Format(time.RFC3339),
		GrantReference:     p.GrantReference,
		ProofDocumentRef:   p.ProofDocumentRef,
	}
	if !p.IssuedAt.IsZero() {
		resp.IssuedAt = p.IssuedAt.Format(time.RFC3339)
	}
	return resp
}
