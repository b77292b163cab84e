package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/fiscalware/govgate/pkg/audit"
	"github.com/fiscalware/govgate/pkg/authbroker"
	"github.com/fiscalware/govgate/pkg/certstore"
	"github.com/fiscalware/govgate/pkg/jurisdiction"
	"github.com/fiscalware/govgate/pkg/notification"
	"github.com/fiscalware/govgate/pkg/procuration"
)

// Service is the public operation surface for delegated access to the state
// tax portals. It composes grant selection, authentication brokering, and the
// per-jurisdiction endpoints, with an explicit simulated fallback when no
// valid procuration exists.
type Service struct {
	selector            *procuration.Selector
	certs               certstore.CredentialStore
	broker              *authbroker.Broker
	registry            *jurisdiction.Registry
	trail               *audit.Trail
	sink                ResultSink
	jobs                JobQueue
	client              *remoteClient
	notificationManager *notification.Manager
	operatorEmail       string
}

// Option is a function that configures a Service
type Option func(*Service)

// WithHTTPClient sets the HTTP client used for portal operation calls
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		s.client.httpClient = client
	}
}

// WithAPIKeys sets state-issued API keys by jurisdiction code
func WithAPIKeys(keys map[string]string) Option {
	return func(s *Service) {
		s.client.apiKeys = keys
	}
}

// WithNotificationManager sets the manager used for fallback warnings
func WithNotificationManager(nm *notification.Manager) Option {
	return func(s *Service) {
		s.notificationManager = nm
	}
}

// WithOperatorEmail sets the recipient for fallback warnings
func WithOperatorEmail(email string) Option {
	return func(s *Service) {
		s.operatorEmail = email
	}
}

// NewService creates a new tax gateway service
func NewService(
	selector *procuration.Selector,
	certs certstore.CredentialStore,
	broker *authbroker.Broker,
	registry *jurisdiction.Registry,
	trail *audit.Trail,
	sink ResultSink,
	jobs JobQueue,
	opts ...Option,
) *Service {
	service := &Service{
		selector: selector,
		certs:    certs,
		broker:   broker,
		registry: registry,
		trail:    trail,
		sink:     sink,
		jobs:     jobs,
		client: &remoteClient{
			httpClient: &http.Client{Timeout: 30 * time.Second},
			apiKeys:    map[string]string{},
		},
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// QueryDebts queries a client's open debts before one jurisdiction. With no
// valid procuration the query degrades to the simulated fallback path, never
// to a silent failure. Insufficient scope surfaces as its own error so
// operators know to reissue with broader services.
func (s *Service) QueryDebts(ctx context.Context, clientID uuid.UUID, jurisdictionCode, taxID string) (*DebtQueryResult, error) {
	config, err := s.registry.Lookup(jurisdictionCode)
	if err != nil {
		return nil, err
	}

	grant, err := s.selector.SelectValidGrant(ctx, clientID, jurisdictionCode, nil)
	if err != nil {
		var noGrant procuration.NoValidProcurationError
		if errors.As(err, &noGrant) {
			return s.simulatedDebtQuery(ctx, clientID, jurisdictionCode, taxID), nil
		}
		return nil, err
	}

	token, err := s.openSession(ctx, jurisdictionCode, grant)
	if err != nil {
		return nil, err
	}

	debts, err := s.client.queryDebts(ctx, config, token, taxID)
	if err != nil {
		s.appendEvent(ctx, grant.ID, audit.NewEvent(audit.ActionError,
			fmt.Sprintf("debt query against %s failed", jurisdictionCode),
			map[string]string{"error": err.Error(), "taxId": audit.MaskTaxID(taxID)}))
		return nil, err
	}

	result := &DebtQueryResult{
		Source:       SourceAuthenticated,
		Jurisdiction: jurisdictionCode,
		ClientID:     clientID,
		TaxID:        audit.MaskTaxID(taxID),
		Debts:        debts,
		RetrievedAt:  time.Now().UTC(),
	}
	if err := s.sink.SaveDebtResult(ctx, *result); err != nil {
		return nil, fmt.Errorf("failed to persist debt result: %w", err)
	}

	s.appendEvent(ctx, grant.ID, audit.NewEvent(audit.ActionQueryDebts,
		fmt.Sprintf("retrieved %d debts from %s", len(debts), jurisdictionCode),
		map[string]string{"taxId": audit.MaskTaxID(taxID)}))

	slog.Info("Debt query completed", "clientId", clientID, "jurisdiction", jurisdictionCode, "debts", len(debts))
	return result, nil
}

// IssueGuide asks a jurisdiction to issue a payment guide under delegation.
func (s *Service) IssueGuide(ctx context.Context, clientID uuid.UUID, jurisdictionCode string, req GuideRequest) (*GuideResult, error) {
	config, err := s.registry.Lookup(jurisdictionCode)
	if err != nil {
		return nil, err
	}

	grant, err := s.selector.SelectValidGrant(ctx, clientID, jurisdictionCode, nil)
	if err != nil {
		var noGrant procuration.NoValidProcurationError
		if errors.As(err, &noGrant) {
			return s.simulatedGuideIssuance(ctx, clientID, jurisdictionCode, req), nil
		}
		return nil, err
	}

	token, err := s.openSession(ctx, jurisdictionCode, grant)
	if err != nil {
		return nil, err
	}

	guide, err := s.client.issueGuide(ctx, config, token, req)
	if err != nil {
		s.appendEvent(ctx, grant.ID, audit.NewEvent(audit.ActionError,
			fmt.Sprintf("guide issuance against %s failed", jurisdictionCode),
			map[string]string{"error": err.Error(), "taxId": audit.MaskTaxID(req.TaxID)}))
		return nil, err
	}

	result := &GuideResult{
		Source:       SourceAuthenticated,
		Jurisdiction: jurisdictionCode,
		ClientID:     clientID,
		Guide:        guide,
		IssuedAt:     time.Now().UTC(),
	}
	if err := s.sink.SaveGuideResult(ctx, *result); err != nil {
		return nil, fmt.Errorf("failed to persist guide result: %w", err)
	}

	s.appendEvent(ctx, grant.ID, audit.NewEvent(audit.ActionIssueGuide,
		fmt.Sprintf("issued payment guide at %s", jurisdictionCode),
		map[string]string{"taxId": audit.MaskTaxID(req.TaxID), "competence": req.Competence}))

	slog.Info("Payment guide issued", "clientId", clientID, "jurisdiction", jurisdictionCode)
	return result, nil
}

// openSession resolves the grant's certificate and opens a portal session. An
// authentication failure during an operation leaves one ERROR event on the
// grant's trail and the grant status untouched.
func (s *Service) openSession(ctx context.Context, jurisdictionCode string, grant procuration.Procuration) (authbroker.SessionToken, error) {
	cert, err := s.certs.FindCertificate(ctx, grant.CertificateID)
	if err != nil {
		return authbroker.SessionToken{}, fmt.Errorf("failed to resolve certificate: %w", err)
	}

	token, err := s.broker.Authenticate(ctx, jurisdictionCode, grant, cert)
	if err != nil {
		var failure authbroker.AuthFailure
		if errors.As(err, &failure) {
			s.appendEvent(ctx, grant.ID, audit.NewEvent(audit.ActionError,
				fmt.Sprintf("authentication with %s failed", jurisdictionCode),
				map[string]string{"kind": string(failure.Kind)}))
		}
		return authbroker.SessionToken{}, err
	}

	// A portal can declare an expiry that already passed. Treat that as a
	// rejection instead of sending the operation with a dead token.
	if token.IsExpired() {
		failure := authbroker.AuthFailure{
			Kind:         authbroker.KindRejected,
			Jurisdiction: jurisdictionCode,
			Detail:       "portal returned an expired session token",
		}
		s.appendEvent(ctx, grant.ID, audit.NewEvent(audit.ActionError,
			fmt.Sprintf("authentication with %s failed", jurisdictionCode),
			map[string]string{"kind": string(failure.Kind)}))
		return authbroker.SessionToken{}, failure
	}
	return token, nil
}

func (s *Service) simulatedDebtQuery(ctx context.Context, clientID uuid.UUID, jurisdictionCode, taxID string) *DebtQueryResult {
	s.enqueueCollection(ctx, clientID, jurisdictionCode, taxID, "debt_query")

	return &DebtQueryResult{
		Source:       SourceSimulated,
		Jurisdiction: jurisdictionCode,
		ClientID:     clientID,
		TaxID:        audit.MaskTaxID(taxID),
		Debts:        []Debt{},
		Warning:      fallbackWarning(jurisdictionCode),
		RetrievedAt:  time.Now().UTC(),
	}
}

func (s *Service) simulatedGuideIssuance(ctx context.Context, clientID uuid.UUID, jurisdictionCode string, req GuideRequest) *GuideResult {
	s.enqueueCollection(ctx, clientID, jurisdictionCode, req.TaxID, "guide_issuance")

	return &GuideResult{
		Source:       SourceSimulated,
		Jurisdiction: jurisdictionCode,
		ClientID:     clientID,
		Warning:      fallbackWarning(jurisdictionCode),
		IssuedAt:     time.Now().UTC(),
	}
}

// enqueueCollection records a best-effort job for the legacy collection worker
// and warns the operators. Both are best-effort themselves: the simulated
// result goes back to the caller regardless.
func (s *Service) enqueueCollection(ctx context.Context, clientID uuid.UUID, jurisdictionCode, taxID, kind string) {
	slog.Warn("No valid procuration, taking simulated fallback path",
		"clientId", clientID, "jurisdiction", jurisdictionCode, "kind", kind)

	job := CollectionJob{
		ID:           uuid.New(),
		ClientID:     clientID,
		Jurisdiction: jurisdictionCode,
		TaxID:        taxID,
		Kind:         kind,
		RequestedAt:  time.Now().UTC(),
	}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		slog.Warn("Failed to enqueue collection job", "clientId", clientID, "error", err)
	}

	if s.notificationManager != nil && s.operatorEmail != "" {
		err := s.notificationManager.Notify(notification.TypeDelegationMissing, notification.Data{
			To:      s.operatorEmail,
			Subject: fmt.Sprintf("No valid procuration for jurisdiction %s", jurisdictionCode),
			Body:    "A delegated operation ran on the simulated fallback path. Configure a valid procuration for the client.",
			Fields: map[string]string{
				"clientId":     clientID.String(),
				"jurisdiction": jurisdictionCode,
				"operation":    kind,
			},
		})
		if err != nil {
			slog.Warn("Failed to send fallback warning", "clientId", clientID, "error", err)
		}
	}
}

// appendEvent appends to a grant's trail, downgrading failures to a warning:
// the remote operation already happened and must not be misreported because
// the log write failed.
func (s *Service) appendEvent(ctx context.Context, grantID uuid.UUID, event audit.Event) {
	if err := s.trail.Append(ctx, grantID, event); err != nil {
		slog.Warn("Failed to append audit event", "procurationId", grantID, "action", event.Action, "error", err)
	}
}

func fallbackWarning(jurisdictionCode string) string {
	return fmt.Sprintf("Result is simulated: no valid procuration for jurisdiction %s. Configure a delegation to get authenticated data.", jurisdictionCode)
}
