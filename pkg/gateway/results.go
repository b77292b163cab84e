package gateway

import (
	"time"

	"github.com/google/uuid"
)

// Source tags how a result was produced. Callers can always tell an
// authenticated portal answer from the degraded fallback; the two are
// different types of truth and must never be confused.
type Source string

const (
	SourceAuthenticated Source = "authenticated"
	SourceSimulated     Source = "simulated"
)

// Debt is one normalized entry from a jurisdiction's debt query.
type Debt struct {
	Competence  string    `json:"competence"`   // accrual period, e.g. "2026-05"
	AmountCents int64     `json:"amount_cents"` // integer cents, no floats downstream
	DueDate     time.Time `json:"due_date"`
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
}

// DebtQueryResult is the normalized outcome of a debt query.
type DebtQueryResult struct {
	Source       Source    `json:"source"`
	Jurisdiction string    `json:"jurisdiction"`
	ClientID     uuid.UUID `json:"client_id"`
	TaxID        string    `json:"tax_id"` // masked
	Debts        []Debt    `json:"debts"`
	Warning      string    `json:"warning,omitempty"`
	RetrievedAt  time.Time `json:"retrieved_at"`
}

// GuideRequest asks a jurisdiction to issue a payment guide.
type GuideRequest struct {
	TaxID       string `json:"tax_id"`
	Competence  string `json:"competence"`
	AmountCents int64  `json:"amount_cents"`
}

// PaymentGuide is the normalized metadata of an issued guide.
type PaymentGuide struct {
	Barcode     string    `json:"barcode"`
	DueDate     time.Time `json:"due_date"`
	AmountCents int64     `json:"amount_cents"`
	DocumentURL string    `json:"document_url,omitempty"`
}

// GuideResult is the normalized outcome of a guide issuance.
type GuideResult struct {
	Source       Source       `json:"source"`
	Jurisdiction string       `json:"jurisdiction"`
	ClientID     uuid.UUID    `json:"client_id"`
	Guide        PaymentGuide `json:"guide"`
	Warning      string       `json:"warning,omitempty"`
	IssuedAt     time.Time    `json:"issued_at"`
}
