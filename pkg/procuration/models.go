package procuration

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a procuration. Statuses only move forward;
// Error, Cancelled, and Expired are terminal. A corrected procuration is
// always issued as a brand-new record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusIssued    Status = "issued"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusError, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// validTransition encodes the status machine. Expired never appears as a
// target here: expiry is derived lazily from ValidUntil, not written back.
func validTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusIssued || to == StatusError || to == StatusCancelled
	case StatusIssued:
		return to == StatusError || to == StatusCancelled
	}
	return false
}

// Procuration is a digitally-issued power of attorney: a time-bounded grant
// letting the named attorney act on the client's behalf before the state tax
// portals, scoped to a fixed set of authorized services.
type Procuration struct {
	ID                 uuid.UUID  `json:"id"`
	ClientID           uuid.UUID  `json:"client_id"`
	AttorneyTaxID      string     `json:"attorney_tax_id"`
	AttorneyName       string     `json:"attorney_name"`
	IssuedAt           time.Time  `json:"issued_at"`
	ValidUntil         time.Time  `json:"valid_until"`
	Status             Status     `json:"status"`
	AuthorizedServices []string   `json:"authorized_services"`
	CertificateID      uuid.UUID  `json:"certificate_id"`
	GrantReference     string     `json:"grant_reference,omitempty"`
	ProofDocumentRef   string     `json:"proof_document_ref,omitempty"`
	StatusReason       string     `json:"status_reason,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	LastModifiedAt     time.Time  `json:"last_modified_at"`
}

// EffectiveStatus derives the status a reader should act on. A stored Issued
// row whose validity window has lapsed reads as Expired; storage is never
// updated for expiry (see the Selector, which applies the same rule).
func (p *Procuration) EffectiveStatus(now time.Time) Status {
	if p.Status == StatusIssued && !p.ValidUntil.After(now) {
		return StatusExpired
	}
	return p.Status
}

// IsValidAt reports whether the procuration is usable for delegated
// operations at the given instant.
func (p *Procuration) IsValidAt(now time.Time) bool {
	return p.EffectiveStatus(now) == StatusIssued
}

// Authorizes reports whether the procuration's service set covers every
// required permission.
func (p *Procuration) Authorizes(required []string) bool {
	authorized := make(map[string]bool, len(p.AuthorizedServices))
	for _, service := range p.AuthorizedServices {
		authorized[service] = true
	}
	for _, perm := range required {
		if !authorized[perm] {
			return false
		}
	}
	return true
}

// clone returns a deep copy. The authorized services slice is always copied so
// the set fixed at issuance cannot be mutated through a returned aggregate.
func (p Procuration) clone() Procuration {
	copied := p
	if p.AuthorizedServices != nil {
		copied.AuthorizedServices = make([]string, len(p.AuthorizedServices))
		copy(copied.AuthorizedServices, p.AuthorizedServices)
	}
	return copied
}
