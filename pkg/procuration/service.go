package procuration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fiscalware/govgate/pkg/audit"
	"github.com/fiscalware/govgate/pkg/certstore"
	"github.com/fiscalware/govgate/pkg/notification"
	"github.com/fiscalware/govgate/pkg/proofstore"
)

// IssueRequest carries everything needed to issue a new procuration.
type IssueRequest struct {
	ClientID           uuid.UUID
	CertificateID      uuid.UUID
	AttorneyTaxID      string
	AttorneyName       string
	AuthorizedServices []string
	ValidityDays       int
}

// LifecycleService creates, issues, and cancels procurations, writing every
// step to the audit trail.
type LifecycleService struct {
	repo                Repository
	certs               certstore.CredentialStore
	proofs              proofstore.Store
	trail               *audit.Trail
	issuer              Issuer
	notificationManager *notification.Manager
	operatorEmail       string
}

// LifecycleOption is a function that configures a LifecycleService
type LifecycleOption func(*LifecycleService)

// WithNotificationManager sets the manager used for issuance outcome notices
func WithNotificationManager(nm *notification.Manager) LifecycleOption {
	return func(s *LifecycleService) {
		s.notificationManager = nm
	}
}

// WithOperatorEmail sets the recipient for issuance outcome notices
func WithOperatorEmail(email string) LifecycleOption {
	return func(s *LifecycleService) {
		s.operatorEmail = email
	}
}

// NewLifecycleService creates a new procuration lifecycle service
func NewLifecycleService(
	repo Repository,
	certs certstore.CredentialStore,
	proofs proofstore.Store,
	trail *audit.Trail,
	issuer Issuer,
	opts ...LifecycleOption,
) *LifecycleService {
	service := &LifecycleService{
		repo:   repo,
		certs:  certs,
		proofs: proofs,
		trail:  trail,
		issuer: issuer,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Issue creates a Pending procuration and runs the remote issuance sequence.
// On full success the procuration ends Issued with its proof reference; any
// step failure ends it in Error with the reason, keeping the audit events
// already appended so the trail shows exactly how far processing got.
func (s *LifecycleService) Issue(ctx context.Context, req IssueRequest) (Procuration, error) {
	if err := validateIssueRequest(req); err != nil {
		return Procuration{}, err
	}

	cert, err := s.certs.FindCertificate(ctx, req.CertificateID)
	if err != nil {
		return Procuration{}, fmt.Errorf("failed to resolve certificate: %w", err)
	}
	if cert.OwnerClientID != req.ClientID {
		return Procuration{}, fmt.Errorf("certificate %s does not belong to client %s", req.CertificateID, req.ClientID)
	}

	now := time.Now().UTC()
	p, err := s.repo.Save(ctx, Procuration{
		ClientID:           req.ClientID,
		AttorneyTaxID:      req.AttorneyTaxID,
		AttorneyName:       req.AttorneyName,
		IssuedAt:           now,
		ValidUntil:         now.AddDate(0, 0, req.ValidityDays),
		Status:             StatusPending,
		AuthorizedServices: req.AuthorizedServices,
		CertificateID:      req.CertificateID,
	})
	if err != nil {
		return Procuration{}, fmt.Errorf("failed to create procuration: %w", err)
	}

	s.appendEvent(ctx, p.ID, audit.NewEvent(audit.ActionInitiated, "procuration created", map[string]string{
		"attorneyTaxId": audit.MaskTaxID(req.AttorneyTaxID),
		"validityDays":  fmt.Sprintf("%d", req.ValidityDays),
	}))

	session, err := s.issuer.Authenticate(ctx, cert, p)
	if err != nil {
		return s.failIssuance(ctx, p, "authenticate", err)
	}
	s.appendEvent(ctx, p.ID, audit.NewEvent(audit.ActionAuthenticate, "portal session opened", nil))

	if err := s.issuer.Navigate(ctx, session); err != nil {
		return s.failIssuance(ctx, p, "navigate", err)
	}
	s.appendEvent(ctx, p.ID, audit.NewEvent(audit.ActionNavigate, "delegation form opened", nil))

	grantRef, err := s.issuer.Submit(ctx, session, p)
	if err != nil {
		return s.failIssuance(ctx, p, "submit", err)
	}
	s.appendEvent(ctx, p.ID, audit.NewEvent(audit.ActionSubmit, "procuration submitted", map[string]string{
		"grantReference": grantRef,
	}))

	proof, err := s.issuer.FetchProof(ctx, session, grantRef)
	if err != nil {
		return s.failIssuance(ctx, p, "proof retrieval", err)
	}
	proofRef, err := s.proofs.Save(ctx, p.ClientID, p.ID, proof)
	if err != nil {
		return s.failIssuance(ctx, p, "proof storage", err)
	}

	p, err = s.repo.UpdateIssuanceResult(ctx, p.ID, grantRef, proofRef)
	if err != nil {
		return s.failIssuance(ctx, p, "result recording", err)
	}
	s.appendEvent(ctx, p.ID, audit.NewEvent(audit.ActionProof, "proof of issuance stored", map[string]string{
		"proofRef": proofRef,
	}))

	p, err = s.updateStatus(ctx, p.ID, StatusIssued, "issuance completed")
	if err != nil {
		return Procuration{}, err
	}

	slog.Info("Procuration issued", "procurationId", p.ID, "clientId", p.ClientID, "grantReference", grantRef)
	s.notify(notification.TypeProcurationIssued, p, "")
	return p, nil
}

// Cancel moves a Pending or Issued procuration to Cancelled. Attempts on a
// terminal procuration are rejected, recording only the rejected attempt.
func (s *LifecycleService) Cancel(ctx context.Context, id uuid.UUID, reason string) (Procuration, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Procuration{}, err
	}

	effective := p.EffectiveStatus(time.Now().UTC())
	if effective.IsTerminal() {
		s.appendEvent(ctx, id, audit.NewEvent(audit.ActionCancelRejected,
			fmt.Sprintf("cancel rejected: procuration already %s", effective),
			map[string]string{"reason": reason}))
		return p, TerminalStatusError{ID: id, Status: effective}
	}

	p, err = s.repo.UpdateStatus(ctx, id, StatusCancelled, reason)
	if err != nil {
		return Procuration{}, err
	}
	s.appendEvent(ctx, id, audit.NewEvent(audit.ActionCancel, "procuration cancelled", map[string]string{
		"reason": reason,
	}))

	slog.Info("Procuration cancelled", "procurationId", id, "reason", reason)
	return p, nil
}

// Get retrieves a procuration by id.
func (s *LifecycleService) Get(ctx context.Context, id uuid.UUID) (Procuration, error) {
	return s.repo.FindByID(ctx, id)
}

// ListByClient returns a client's procurations.
func (s *LifecycleService) ListByClient(ctx context.Context, clientID uuid.UUID) ([]Procuration, error) {
	return s.repo.FindByClient(ctx, clientID, Filters{})
}

// AuditLog returns a procuration's trail in append order.
func (s *LifecycleService) AuditLog(ctx context.Context, id uuid.UUID) ([]audit.Event, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, err
	}
	return s.trail.Read(ctx, id)
}

// updateStatus is the internal transition primitive; it is always paired with
// an audit append.
func (s *LifecycleService) updateStatus(ctx context.Context, id uuid.UUID, status Status, reason string) (Procuration, error) {
	p, err := s.repo.UpdateStatus(ctx, id, status, reason)
	if err != nil {
		return Procuration{}, err
	}
	outcome := fmt.Sprintf("status changed to %s", status)
	s.appendEvent(ctx, id, audit.NewEvent(strings.ToUpper(string(status)), outcome, map[string]string{
		"reason": reason,
	}))
	return p, nil
}

// failIssuance records the failing step and moves the procuration to Error.
// Audit events from earlier steps are never rolled back.
func (s *LifecycleService) failIssuance(ctx context.Context, p Procuration, step string, cause error) (Procuration, error) {
	slog.Error("Procuration issuance failed", "procurationId", p.ID, "step", step, "error", cause)

	s.appendEvent(ctx, p.ID, audit.NewEvent(audit.ActionError,
		fmt.Sprintf("issuance failed at %s", step),
		map[string]string{"error": cause.Error()}))

	failed, err := s.repo.UpdateStatus(ctx, p.ID, StatusError, fmt.Sprintf("%s: %v", step, cause))
	if err != nil {
		slog.Error("Failed to record issuance failure", "procurationId", p.ID, "error", err)
		failed = p
	}

	s.notify(notification.TypeProcurationFailed, failed, step)
	return failed, IssuanceError{ID: p.ID, Step: step, Err: cause}
}

// appendEvent appends to the trail, downgrading failures to a warning. The
// state change the event describes already happened and must not be lost or
// misreported because the log write failed.
func (s *LifecycleService) appendEvent(ctx context.Context, id uuid.UUID, event audit.Event) {
	if err := s.trail.Append(ctx, id, event); err != nil {
		slog.Warn("Failed to append audit event", "procurationId", id, "action", event.Action, "error", err)
	}
}

func (s *LifecycleService) notify(notifType notification.Type, p Procuration, detail string) {
	if s.notificationManager == nil || s.operatorEmail == "" {
		return
	}
	data := notification.Data{
		To:      s.operatorEmail,
		Subject: fmt.Sprintf("Procuration %s for client %s", p.Status, p.ClientID),
		Body:    fmt.Sprintf("Procuration %s is now %s.", p.ID, p.Status),
		Fields: map[string]string{
			"procurationId": p.ID.String(),
			"clientId":      p.ClientID.String(),
		},
	}
	if detail != "" {
		data.Fields["step"] = detail
	}
	if err := s.notificationManager.Notify(notifType, data); err != nil {
		slog.Warn("Failed to send procuration notice", "procurationId", p.ID, "error", err)
	}
}

func validateIssueRequest(req IssueRequest) error {
	if req.ClientID == uuid.Nil {
		return fmt.Errorf("client id is required")
	}
	if req.CertificateID == uuid.Nil {
		return fmt.Errorf("certificate id is required")
	}
	if req.AttorneyTaxID == "" {
		return fmt.Errorf("attorney tax id is required")
	}
	if req.AttorneyName == "" {
		return fmt.Errorf("attorney name is required")
	}
	if len(req.AuthorizedServices) == 0 {
		return fmt.Errorf("at least one authorized service is required")
	}
	if req.ValidityDays <= 0 {
		return fmt.Errorf("validity days must be positive")
	}
	return nil
}
