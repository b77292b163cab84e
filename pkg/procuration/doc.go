// Package procuration manages delegated power-of-attorney grants for govgate.
//
// A procuration lets a named attorney act on a client's behalf before the
// state tax portals, scoped to a fixed set of authorized services and bounded
// in time. This package owns the grant lifecycle, its storage, and the
// selection of the right grant for an operation.
//
// # Overview
//
// The procuration package provides:
//   - The Procuration aggregate and its status machine
//     (Pending → Issued/Error, Issued → Cancelled/Error, lazy Expired)
//   - LifecycleService: issuance against the government portal with a full
//     audit trail, cancellation, status transitions
//   - Selector: picks the best live grant for a (client, jurisdiction) pair
//   - Repository implementations (in-memory, PostgreSQL)
//
// # Basic Usage
//
//	import "github.com/fiscalware/govgate/pkg/procuration"
//
//	repo := procuration.NewInMemRepository()
//	trail := audit.NewTrail(audit.NewInMemStore())
//	service := procuration.NewLifecycleService(repo, certs, proofs, trail, issuer)
//
//	p, err := service.Issue(ctx, procuration.IssueRequest{
//		ClientID:           clientID,
//		CertificateID:      certID,
//		AttorneyTaxID:      "52998224725",
//		AttorneyName:       "Maria Souza",
//		AuthorizedServices: []string{jurisdiction.PermQueryDebts, jurisdiction.PermQueryInvoices},
//		ValidityDays:       365,
//	})
//
//	selector := procuration.NewSelector(repo, jurisdiction.NewRegistry())
//	grant, err := selector.SelectValidGrant(ctx, clientID, "SP", nil)
//
// # Lifecycle
//
// Grants are never deleted. Cancellation and expiry are terminal statuses
// retained for audit purposes; a corrected grant is issued as a new record.
// The authorized services set is fixed at issuance and never mutated.
//
// # Related Packages
//
//   - pkg/audit - append-only trail the lifecycle writes to
//   - pkg/jurisdiction - per-state required permission sets
//   - pkg/gateway - consumes the selector for delegated operations
package procuration
