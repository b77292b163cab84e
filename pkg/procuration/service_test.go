package procuration

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscalware/govgate/pkg/audit"
	"github.com/fiscalware/govgate/pkg/certstore"
	"github.com/fiscalware/govgate/pkg/jurisdiction"
	"github.com/fiscalware/govgate/pkg/proofstore"
)

// fakeIssuer drives the issuance sequence without a portal. Setting one of the
// fail fields makes that step return the error.
type fakeIssuer struct {
	failAuthenticate error
	failNavigate     error
	failSubmit       error
	failProof        error
}

func (f *fakeIssuer) Authenticate(ctx context.Context, cert certstore.DigitalCertificate, p Procuration) (string, error) {
	if f.failAuthenticate != nil {
		return "", f.failAuthenticate
	}
	return "session-1", nil
}

func (f *fakeIssuer) Navigate(ctx context.Context, session string) error {
	return f.failNavigate
}

func (f *fakeIssuer) Submit(ctx context.Context, session string, p Procuration) (string, error) {
	if f.failSubmit != nil {
		return "", f.failSubmit
	}
	return "REF-2026-0001", nil
}

func (f *fakeIssuer) FetchProof(ctx context.Context, session, grantReference string) ([]byte, error) {
	if f.failProof != nil {
		return nil, f.failProof
	}
	return []byte("%PDF proof"), nil
}

type lifecycleFixture struct {
	service *LifecycleService
	repo    *InMemRepository
	trail   *audit.Trail
	certs   *certstore.InMemCredentialStore
	cert    certstore.DigitalCertificate
}

func newLifecycleFixture(t *testing.T, issuer Issuer) lifecycleFixture {
	t.Helper()
	repo := NewInMemRepository()
	trail := audit.NewTrail(audit.NewInMemStore())
	certs := certstore.NewInMemCredentialStore()

	clientID := uuid.New()
	cert, err := certs.CreateCertificate(context.Background(), certstore.DigitalCertificate{
		OwnerClientID:  clientID,
		Type:           certstore.TypeCorporateEntity,
		EncodedPayload: []byte("encrypted"),
		Password:       "pwd",
	})
	require.NoError(t, err)

	service := NewLifecycleService(repo, certs, proofstore.NewInMemStore(), trail, issuer)
	return lifecycleFixture{service: service, repo: repo, trail: trail, certs: certs, cert: cert}
}

func issueRequest(f lifecycleFixture) IssueRequest {
	return IssueRequest{
		ClientID:      f.cert.OwnerClientID,
		CertificateID: f.cert.ID,
		AttorneyTaxID: "52998224725",
		AttorneyName:  "Maria Souza",
		AuthorizedServices: []string{
			jurisdiction.PermQueryDebts,
			jurisdiction.PermQueryInvoices,
		},
		ValidityDays: 365,
	}
}

func TestLifecycleService_IssueSuccess(t *testing.T) {
	f := newLifecycleFixture(t, &fakeIssuer{})
	ctx := context.Background()

	p, err := f.service.Issue(ctx, issueRequest(f))
	require.NoError(t, err)
	assert.Equal(t, StatusIssued, p.Status)
	assert.Equal(t, "REF-2026-0001", p.GrantReference)
	assert.NotEmpty(t, p.ProofDocumentRef)

	events, err := f.trail.Read(ctx, p.ID)
	require.NoError(t, err)
	// INITIATED, AUTHENTICATE, NAVIGATE, SUBMIT, PROOF, ISSUED
	require.Len(t, events, 6)
	assert.Equal(t, audit.ActionInitiated, events[0].Action)
	assert.Equal(t, audit.ActionAuthenticate, events[1].Action)
	assert.Equal(t, audit.ActionNavigate, events[2].Action)
	assert.Equal(t, audit.ActionSubmit, events[3].Action)
	assert.Equal(t, audit.ActionProof, events[4].Action)
	assert.Contains(t, events[5].Outcome, "issued")
}

func TestLifecycleService_IssueMasksAttorneyTaxID(t *testing.T) {
	f := newLifecycleFixture(t, &fakeIssuer{})
	ctx := context.Background()

	p, err := f.service.Issue(ctx, issueRequest(f))
	require.NoError(t, err)

	events, err := f.trail.Read(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "529******25", events[0].Details["attorneyTaxId"])
}

func TestLifecycleService_IssueFailsAtAuthenticate(t *testing.T) {
	f := newLifecycleFixture(t, &fakeIssuer{failAuthenticate: errors.New("certificate rejected")})
	ctx := context.Background()

	p, err := f.service.Issue(ctx, issueRequest(f))
	require.Error(t, err)

	var issuanceErr IssuanceError
	require.ErrorAs(t, err, &issuanceErr)
	assert.Equal(t, "authenticate", issuanceErr.Step)
	assert.Equal(t, StatusError, p.Status)

	// The trail shows how far processing got: INITIATED then ERROR. Nothing
	// is rolled back.
	events, err := f.trail.Read(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionInitiated, events[0].Action)
	assert.Equal(t, audit.ActionError, events[1].Action)
}

func TestLifecycleService_IssueFailsAtSubmit(t *testing.T) {
	f := newLifecycleFixture(t, &fakeIssuer{failSubmit: errors.New("form rejected")})
	ctx := context.Background()

	p, err := f.service.Issue(ctx, issueRequest(f))
	require.Error(t, err)
	assert.Equal(t, StatusError, p.Status)

	events, err := f.trail.Read(ctx, p.ID)
	require.NoError(t, err)
	// INITIATED, AUTHENTICATE, NAVIGATE then ERROR: the log records the
	// successful steps before the failure.
	require.Len(t, events, 4)
	assert.Equal(t, audit.ActionNavigate, events[2].Action)
	assert.Equal(t, audit.ActionError, events[3].Action)
}

func TestLifecycleService_IssueFailsAtProofRetrieval(t *testing.T) {
	f := newLifecycleFixture(t, &fakeIssuer{failProof: errors.New("document unavailable")})
	ctx := context.Background()

	p, err := f.service.Issue(ctx, issueRequest(f))
	require.Error(t, err)

	var issuanceErr IssuanceError
	require.ErrorAs(t, err, &issuanceErr)
	assert.Equal(t, "proof retrieval", issuanceErr.Step)
	assert.Equal(t, StatusError, p.Status)
}

func TestLifecycleService_IssueRejectsForeignCertificate(t *testing.T) {
	f := newLifecycleFixture(t, &fakeIssuer{})
	ctx := context.Background()

	req := issueRequest(f)
	req.ClientID = uuid.New() // not the certificate owner

	_, err := f.service.Issue(ctx, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not belong")
}

func TestLifecycleService_IssueValidatesRequest(t *testing.T) {
	f := newLifecycleFixture(t, &fakeIssuer{})
	ctx := context.Background()

	req := issueRequest(f)
	req.ValidityDays = 0
	_, err := f.service.Issue(ctx, req)
	assert.Error(t, err)

	req = issueRequest(f)
	req.AuthorizedServices = nil
	_, err = f.service.Issue(ctx, req)
	assert.Error(t, err)
}

func TestLifecycleService_AuthorizedServicesUnchangedAfterIssue(t *testing.T) {
	f := newLifecycleFixture(t, &fakeIssuer{})
	ctx := context.Background()

	req := issueRequest(f)
	p, err := f.service.Issue(ctx, req)
	require.NoError(t, err)

	stored, err := f.repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, req.AuthorizedServices, stored.AuthorizedServices)

	// Cancel and check again: no later operation may touch the service set.
	_, err = f.service.Cancel(ctx, p.ID, "client request")
	require.NoError(t, err)

	stored, err = f.repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, req.AuthorizedServices, stored.AuthorizedServices)
}

func TestLifecycleService_Cancel(t *testing.T) {
	f := newLifecycleFixture(t, &fakeIssuer{})
	ctx := context.Background()

	p, err := f.service.Issue(ctx, issueRequest(f))
	require.NoError(t, err)

	cancelled, err := f.service.Cancel(ctx, p.ID, "relationship ended")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	events, err := f.trail.Read(ctx, p.ID)
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, audit.ActionCancel, last.Action)
	assert.Equal(t, "relationship ended", last.Details["reason"])
}

func TestLifecycleService_CancelTerminalIsRejected(t *testing.T) {
	f := newLifecycleFixture(t, &fakeIssuer{})
	ctx := context.Background()

	p, err := f.service.Issue(ctx, issueRequest(f))
	require.NoError(t, err)

	_, err = f.service.Cancel(ctx, p.ID, "first")
	require.NoError(t, err)

	eventsBefore, err := f.trail.Read(ctx, p.ID)
	require.NoError(t, err)

	_, err = f.service.Cancel(ctx, p.ID, "second")
	require.Error(t, err)

	var terminalErr TerminalStatusError
	require.ErrorAs(t, err, &terminalErr)
	assert.Equal(t, StatusCancelled, terminalErr.Status)

	// Status unchanged; exactly one new event recording the rejected attempt.
	stored, err := f.repo.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, stored.Status)

	eventsAfter, err := f.trail.Read(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, eventsAfter, len(eventsBefore)+1)
	assert.Equal(t, audit.ActionCancelRejected, eventsAfter[len(eventsAfter)-1].Action)
}

func TestLifecycleService_CancelPending(t *testing.T) {
	// A failing issuer leaves nothing to cancel (Error is terminal); create a
	// Pending grant directly to exercise the Pending → Cancelled edge.
	f := newLifecycleFixture(t, &fakeIssuer{})
	ctx := context.Background()

	p, err := f.repo.Save(ctx, Procuration{
		ClientID:           f.cert.OwnerClientID,
		AttorneyTaxID:      "52998224725",
		AttorneyName:       "Maria Souza",
		Status:             StatusPending,
		AuthorizedServices: []string{jurisdiction.PermQueryDebts},
		CertificateID:      f.cert.ID,
	})
	require.NoError(t, err)

	cancelled, err := f.service.Cancel(ctx, p.ID, "typo in attorney name")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
}

// rejectingAuditStore fails every append, as an audit backend outage would.
type rejectingAuditStore struct{}

func (rejectingAuditStore) AppendEvent(ctx context.Context, procurationID uuid.UUID, event audit.Event) error {
	return errors.New("audit backend unavailable")
}

func (rejectingAuditStore) ListEvents(ctx context.Context, procurationID uuid.UUID) ([]audit.Event, error) {
	return nil, errors.New("audit backend unavailable")
}

func TestLifecycleService_IssueSurvivesAuditWriteFailure(t *testing.T) {
	repo := NewInMemRepository()
	certs := certstore.NewInMemCredentialStore()
	trail := audit.NewTrail(rejectingAuditStore{})

	clientID := uuid.New()
	cert, err := certs.CreateCertificate(context.Background(), certstore.DigitalCertificate{
		OwnerClientID:  clientID,
		Type:           certstore.TypeCorporateEntity,
		EncodedPayload: []byte("encrypted"),
		Password:       "pwd",
	})
	require.NoError(t, err)

	service := NewLifecycleService(repo, certs, proofstore.NewInMemStore(), trail, &fakeIssuer{})
	f := lifecycleFixture{service: service, repo: repo, trail: trail, certs: certs, cert: cert}

	// A dead audit backend is logged, not surfaced: the issuance itself went
	// through on the portal and the grant must reflect that.
	p, err := f.service.Issue(context.Background(), issueRequest(f))
	require.NoError(t, err)
	assert.Equal(t, StatusIssued, p.Status)

	stored, err := f.repo.FindByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusIssued, stored.Status)
}
