package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscalware/govgate/pkg/audit"
	"github.com/fiscalware/govgate/pkg/authbroker"
	"github.com/fiscalware/govgate/pkg/certstore"
	"github.com/fiscalware/govgate/pkg/jurisdiction"
	"github.com/fiscalware/govgate/pkg/notification"
	"github.com/fiscalware/govgate/pkg/procuration"
)

type gatewayEnv struct {
	service  *Service
	repo     *procuration.InMemRepository
	certs    *certstore.InMemCredentialStore
	trail    *audit.Trail
	sink     *InMemSink
	jobs     *InMemJobQueue
	notifier *notification.MockNotifier
}

func newGatewayEnv(t *testing.T, portalURL string) *gatewayEnv {
	t.Helper()
	return newGatewayEnvWithStore(t, portalURL, audit.NewInMemStore())
}

func newGatewayEnvWithStore(t *testing.T, portalURL string, store audit.Store) *gatewayEnv {
	t.Helper()

	registry := jurisdiction.NewRegistryWithConfigs([]jurisdiction.Config{
		{
			Code:                "X",
			BaseURL:             portalURL,
			AuthPath:            "/auth",
			QueryPath:           "/debts",
			GuidePath:           "/guides",
			RequiresCertificate: true,
			RequiredPermissions: []string{jurisdiction.PermQueryDebts, jurisdiction.PermIssueGuides},
		},
	})

	repo := procuration.NewInMemRepository()
	certs := certstore.NewInMemCredentialStore()
	trail := audit.NewTrail(store)
	sink := NewInMemSink()
	jobs := NewInMemJobQueue()

	notifier := notification.NewMockNotifier()
	manager := notification.NewManager()
	manager.RegisterNotifier(notification.EmailSystem, notifier)
	require.NoError(t, manager.RegisterRoute(notification.TypeDelegationMissing, notification.EmailSystem))

	service := NewService(
		procuration.NewSelector(repo, registry),
		certs,
		authbroker.NewBroker(registry),
		registry,
		trail,
		sink,
		jobs,
		WithNotificationManager(manager),
		WithOperatorEmail("fiscal@office.test"),
	)

	return &gatewayEnv{
		service:  service,
		repo:     repo,
		certs:    certs,
		trail:    trail,
		sink:     sink,
		jobs:     jobs,
		notifier: notifier,
	}
}

// seedGrant stores a certificate encrypted with encryptPassword but recorded
// with storedPassword, then saves an Issued procuration bound to it. Passing
// different passwords simulates a credential that no longer opens.
func (e *gatewayEnv) seedGrant(t *testing.T, clientID uuid.UUID, services []string, encryptPassword, storedPassword string) procuration.Procuration {
	t.Helper()

	payload, err := certstore.EncryptPayload([]byte("pkcs12-material"), encryptPassword)
	require.NoError(t, err)
	cert, err := e.certs.CreateCertificate(context.Background(), certstore.DigitalCertificate{
		OwnerClientID:  clientID,
		Type:           certstore.TypeCorporateEntity,
		EncodedPayload: payload,
		Password:       storedPassword,
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	grant, err := e.repo.Save(context.Background(), procuration.Procuration{
		ClientID:           clientID,
		AttorneyTaxID:      "52998224725",
		AttorneyName:       "Maria Souza",
		IssuedAt:           now,
		ValidUntil:         now.AddDate(0, 0, 30),
		Status:             procuration.StatusIssued,
		AuthorizedServices: services,
		CertificateID:      cert.ID,
		GrantReference:     "PROC-X-001",
	})
	require.NoError(t, err)
	return grant
}

func portalServer(t *testing.T, debtsBody, guideBody interface{}) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": "session-abc"})
	})
	mux.HandleFunc("/debts", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer session-abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(debtsBody)
	})
	mux.HandleFunc("/guides", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer session-abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(guideBody)
	})
	return httptest.NewServer(mux)
}

func TestService_QueryDebts_Authenticated(t *testing.T) {
	server := portalServer(t, map[string]interface{}{
		"debitos": []map[string]interface{}{
			{
				"competencia": "2026-05",
				"valor":       1234.56,
				"vencimento":  "2026-06-10",
				"situacao":    "aberto",
				"descricao":   "ICMS mensal",
			},
		},
	}, nil)
	defer server.Close()

	env := newGatewayEnv(t, server.URL)
	clientID := uuid.New()
	grant := env.seedGrant(t, clientID,
		[]string{jurisdiction.PermQueryDebts, jurisdiction.PermIssueGuides}, "s3cret", "s3cret")

	result, err := env.service.QueryDebts(context.Background(), clientID, "X", "12345678000195")
	require.NoError(t, err)

	assert.Equal(t, SourceAuthenticated, result.Source)
	assert.Equal(t, "X", result.Jurisdiction)
	assert.Empty(t, result.Warning)
	require.Len(t, result.Debts, 1)
	assert.Equal(t, int64(123456), result.Debts[0].AmountCents)
	assert.Equal(t, "2026-05", result.Debts[0].Competence)

	// The raw identifier never leaves the gateway unmasked.
	assert.Equal(t, "123*********95", result.TaxID)

	require.Len(t, env.sink.DebtResults(), 1)
	assert.Empty(t, env.jobs.Jobs())

	events, err := env.trail.Read(context.Background(), grant.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionQueryDebts, events[0].Action)
}

func TestService_QueryDebts_FallbackWhenNoGrant(t *testing.T) {
	env := newGatewayEnv(t, "http://portal.unreachable.test")
	clientID := uuid.New()

	result, err := env.service.QueryDebts(context.Background(), clientID, "X", "12345678000195")
	require.NoError(t, err)

	assert.Equal(t, SourceSimulated, result.Source)
	assert.NotEmpty(t, result.Warning)
	assert.Empty(t, result.Debts)

	jobs := env.jobs.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "debt_query", jobs[0].Kind)
	assert.Equal(t, clientID, jobs[0].ClientID)

	sent := env.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, notification.TypeDelegationMissing, sent[0].Type)
	assert.Equal(t, "fiscal@office.test", sent[0].Data.To)
}

func TestService_QueryDebts_InsufficientScopeIsNotFallback(t *testing.T) {
	env := newGatewayEnv(t, "http://portal.unreachable.test")
	clientID := uuid.New()
	env.seedGrant(t, clientID, []string{jurisdiction.PermQueryDebts}, "s3cret", "s3cret")

	_, err := env.service.QueryDebts(context.Background(), clientID, "X", "12345678000195")

	var scopeErr procuration.InsufficientScopeError
	require.ErrorAs(t, err, &scopeErr)
	assert.Contains(t, scopeErr.Missing, jurisdiction.PermIssueGuides)

	// A narrow grant is an operator problem, not a reason to degrade.
	assert.Empty(t, env.jobs.Jobs())
	assert.Empty(t, env.notifier.Sent())
}

func TestService_QueryDebts_WrongCertificatePassword(t *testing.T) {
	reached := false
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	env := newGatewayEnv(t, server.URL)
	clientID := uuid.New()
	grant := env.seedGrant(t, clientID,
		[]string{jurisdiction.PermQueryDebts, jurisdiction.PermIssueGuides}, "s3cret", "wrong")

	_, err := env.service.QueryDebts(context.Background(), clientID, "X", "12345678000195")

	var failure authbroker.AuthFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, authbroker.KindInvalidCertificate, failure.Kind)
	assert.False(t, reached, "portal must not see a request when the certificate does not open")

	// Exactly one ERROR event, and the grant keeps its status: the failure
	// belongs to this operation, not to the procuration.
	events, err := env.trail.Read(context.Background(), grant.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionError, events[0].Action)

	stored, err := env.repo.FindByID(context.Background(), grant.ID)
	require.NoError(t, err)
	assert.Equal(t, procuration.StatusIssued, stored.Status)
}

func TestService_QueryDebts_ExpiredSessionTokenIsRejected(t *testing.T) {
	reached := false
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"token":      "session-abc",
			"expires_at": time.Now().UTC().Add(-time.Minute),
		})
	})
	mux.HandleFunc("/debts", func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	env := newGatewayEnv(t, server.URL)
	clientID := uuid.New()
	grant := env.seedGrant(t, clientID,
		[]string{jurisdiction.PermQueryDebts, jurisdiction.PermIssueGuides}, "s3cret", "s3cret")

	_, err := env.service.QueryDebts(context.Background(), clientID, "X", "12345678000195")

	var failure authbroker.AuthFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, authbroker.KindRejected, failure.Kind)
	assert.False(t, reached, "a dead token must not be spent on the query endpoint")

	events, err := env.trail.Read(context.Background(), grant.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionError, events[0].Action)
}

func TestService_QueryDebts_UnknownJurisdiction(t *testing.T) {
	env := newGatewayEnv(t, "http://portal.unreachable.test")

	_, err := env.service.QueryDebts(context.Background(), uuid.New(), "ZZ", "12345678000195")

	var unknown jurisdiction.UnknownJurisdictionError
	require.ErrorAs(t, err, &unknown)
	assert.Empty(t, env.jobs.Jobs())
}

func TestService_IssueGuide_Authenticated(t *testing.T) {
	server := portalServer(t, nil, map[string]interface{}{
		"codigo_barras": "85800000012-3 45670000000-1",
		"vencimento":    "2026-06-10",
		"valor":         1234.56,
		"url_documento": "https://portal.x.test/guias/123.pdf",
	})
	defer server.Close()

	env := newGatewayEnv(t, server.URL)
	clientID := uuid.New()
	grant := env.seedGrant(t, clientID,
		[]string{jurisdiction.PermQueryDebts, jurisdiction.PermIssueGuides}, "s3cret", "s3cret")

	result, err := env.service.IssueGuide(context.Background(), clientID, "X", GuideRequest{
		TaxID:       "12345678000195",
		Competence:  "2026-05",
		AmountCents: 123456,
	})
	require.NoError(t, err)

	assert.Equal(t, SourceAuthenticated, result.Source)
	assert.Equal(t, "85800000012-3 45670000000-1", result.Guide.Barcode)
	assert.Equal(t, int64(123456), result.Guide.AmountCents)
	require.Len(t, env.sink.GuideResults(), 1)

	events, err := env.trail.Read(context.Background(), grant.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionIssueGuide, events[0].Action)
}

func TestService_IssueGuide_FallbackWhenNoGrant(t *testing.T) {
	env := newGatewayEnv(t, "http://portal.unreachable.test")
	clientID := uuid.New()

	result, err := env.service.IssueGuide(context.Background(), clientID, "X", GuideRequest{
		TaxID:       "12345678000195",
		Competence:  "2026-05",
		AmountCents: 123456,
	})
	require.NoError(t, err)

	assert.Equal(t, SourceSimulated, result.Source)
	assert.NotEmpty(t, result.Warning)
	assert.Empty(t, result.Guide.Barcode)

	jobs := env.jobs.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "guide_issuance", jobs[0].Kind)
}

func TestService_QueryDebts_UpstreamFailureIsAudited(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": "session-abc"})
	})
	mux.HandleFunc("/debts", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "manutencao programada", http.StatusServiceUnavailable)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	env := newGatewayEnv(t, server.URL)
	clientID := uuid.New()
	grant := env.seedGrant(t, clientID,
		[]string{jurisdiction.PermQueryDebts, jurisdiction.PermIssueGuides}, "s3cret", "s3cret")

	_, err := env.service.QueryDebts(context.Background(), clientID, "X", "12345678000195")

	var upstream UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusServiceUnavailable, upstream.StatusCode)

	events, err := env.trail.Read(context.Background(), grant.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionError, events[0].Action)
	assert.Empty(t, env.sink.DebtResults())
}

// unavailableAuditStore rejects every append, standing in for an audit
// backend that is down while the rest of the stack keeps working.
type unavailableAuditStore struct{}

func (unavailableAuditStore) AppendEvent(ctx context.Context, procurationID uuid.UUID, event audit.Event) error {
	return errors.New("audit backend unavailable")
}

func (unavailableAuditStore) ListEvents(ctx context.Context, procurationID uuid.UUID) ([]audit.Event, error) {
	return nil, errors.New("audit backend unavailable")
}

func TestService_QueryDebts_AuditWriteFailureDoesNotFailOperation(t *testing.T) {
	server := portalServer(t, map[string]interface{}{
		"debitos": []map[string]interface{}{
			{
				"competencia": "2026-05",
				"valor":       1234.56,
				"vencimento":  "2026-06-10",
				"situacao":    "aberto",
				"descricao":   "ICMS mensal",
			},
		},
	}, nil)
	defer server.Close()

	env := newGatewayEnvWithStore(t, server.URL, unavailableAuditStore{})
	clientID := uuid.New()
	env.seedGrant(t, clientID,
		[]string{jurisdiction.PermQueryDebts, jurisdiction.PermIssueGuides}, "s3cret", "s3cret")

	// Losing an audit entry is logged, never surfaced: the client already
	// has its data and the portal already served the request.
	result, err := env.service.QueryDebts(context.Background(), clientID, "X", "12345678000195")
	require.NoError(t, err)

	assert.Equal(t, SourceAuthenticated, result.Source)
	require.Len(t, env.sink.DebtResults(), 1)
}
