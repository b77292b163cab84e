package certstore

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CertificateType distinguishes the certificate models accepted by the portals.
type CertificateType string

const (
	TypeCorporateEntity CertificateType = "corporate_entity"
	TypeIndividual      CertificateType = "individual"
	TypeInvoiceSigning  CertificateType = "invoice_signing"
)

// DigitalCertificate is a client's credential for the government portals. The
// payload is stored encrypted; Decrypt opens it with the stored password. The
// password never serializes and never appears in logs in full.
type DigitalCertificate struct {
	ID             uuid.UUID       `json:"id"`
	OwnerClientID  uuid.UUID       `json:"owner_client_id"`
	Type           CertificateType `json:"type"`
	EncodedPayload []byte          `json:"-"`
	Password       string          `json:"-"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// IsExpired reports whether the certificate has lapsed. Certificates without
// an expiry never expire here; the portal is the authority in that case.
func (c *DigitalCertificate) IsExpired() bool {
	return c.ExpiresAt != nil && time.Now().UTC().After(*c.ExpiresAt)
}

// String renders the certificate without its secret material.
func (c *DigitalCertificate) String() string {
	return fmt.Sprintf("DigitalCertificate{id=%s owner=%s type=%s}", c.ID, c.OwnerClientID, c.Type)
}
