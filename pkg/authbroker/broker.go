package authbroker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fiscalware/govgate/pkg/certstore"
	"github.com/fiscalware/govgate/pkg/jurisdiction"
	"github.com/fiscalware/govgate/pkg/procuration"
)

// Broker exchanges a (certificate, procuration) pair for a short-lived session
// token scoped to one jurisdiction. It holds no state between calls and never
// caches tokens; concurrent calls for the same (procuration, jurisdiction)
// pair are coalesced so the portals' anti-automation defenses stay quiet.
type Broker struct {
	registry   *jurisdiction.Registry
	httpClient *http.Client
	apiKeys    map[string]string
	group      singleflight.Group
}

// Option is a function that configures a Broker
type Option func(*Broker)

// WithHTTPClient sets the HTTP client for portal calls
func WithHTTPClient(client *http.Client) Option {
	return func(b *Broker) {
		b.httpClient = client
	}
}

// WithTimeout sets the bounded timeout for portal calls
func WithTimeout(timeout time.Duration) Option {
	return func(b *Broker) {
		b.httpClient.Timeout = timeout
	}
}

// WithAPIKeys sets the state-issued API keys for jurisdictions that require
// one on top of the certificate.
func WithAPIKeys(keys map[string]string) Option {
	return func(b *Broker) {
		b.apiKeys = keys
	}
}

// NewBroker creates a new authentication broker.
func NewBroker(registry *jurisdiction.Registry, opts ...Option) *Broker {
	broker := &Broker{
		registry:   registry,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKeys:    map[string]string{},
	}
	for _, opt := range opts {
		opt(broker)
	}
	return broker
}

type authRequest struct {
	Certificate    string `json:"certificate"`
	GrantReference string `json:"grant_reference"`
	AttorneyTaxID  string `json:"attorney_tax_id"`
}

type authResponse struct {
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Authenticate opens a session with the jurisdiction's portal on behalf of the
// procuration's attorney. Failures come back classified as AuthFailure; an
// unknown jurisdiction code is a configuration error instead.
func (b *Broker) Authenticate(ctx context.Context, jurisdictionCode string, grant procuration.Procuration, cert certstore.DigitalCertificate) (SessionToken, error) {
	config, err := b.registry.Lookup(jurisdictionCode)
	if err != nil {
		return SessionToken{}, err
	}

	key := fmt.Sprintf("%s/%s", grant.ID, jurisdictionCode)
	result, err, shared := b.group.Do(key, func() (interface{}, error) {
		return b.authenticate(ctx, config, grant, cert)
	})
	if shared {
		slog.Debug("Coalesced concurrent authentication", "procurationId", grant.ID, "jurisdiction", jurisdictionCode)
	}
	if err != nil {
		return SessionToken{}, err
	}
	return result.(SessionToken), nil
}

func (b *Broker) authenticate(ctx context.Context, config jurisdiction.Config, grant procuration.Procuration, cert certstore.DigitalCertificate) (SessionToken, error) {
	if cert.IsExpired() {
		return SessionToken{}, AuthFailure{
			Kind:         KindExpiredCertificate,
			Jurisdiction: config.Code,
			Detail:       "certificate validity has lapsed",
		}
	}

	var material []byte
	if config.RequiresCertificate {
		var err error
		material, err = cert.Decrypt()
		if err != nil {
			var decryptErr certstore.DecryptError
			if errors.As(err, &decryptErr) {
				return SessionToken{}, AuthFailure{
					Kind:         KindInvalidCertificate,
					Jurisdiction: config.Code,
					Detail:       decryptErr.Reason,
				}
			}
			return SessionToken{}, fmt.Errorf("failed to prepare certificate: %w", err)
		}
	}

	body, err := json.Marshal(authRequest{
		Certificate:    base64.StdEncoding.EncodeToString(material),
		GrantReference: grant.GrantReference,
		AttorneyTaxID:  grant.AttorneyTaxID,
	})
	if err != nil {
		return SessionToken{}, fmt.Errorf("failed to marshal auth request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.BaseURL+config.AuthPath, bytes.NewReader(body))
	if err != nil {
		return SessionToken{}, fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if config.RequiresAPIKey {
		req.Header.Set("X-API-Key", b.apiKeys[config.Code])
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return SessionToken{}, classifyTransportError(config.Code, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return SessionToken{}, classifyTransportError(config.Code, err)
	}

	if resp.StatusCode != http.StatusOK {
		return SessionToken{}, AuthFailure{
			Kind:         KindRejected,
			Jurisdiction: config.Code,
			Detail:       fmt.Sprintf("portal returned status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	var authResp authResponse
	if err := json.Unmarshal(respBody, &authResp); err != nil {
		return SessionToken{}, AuthFailure{
			Kind:         KindRejected,
			Jurisdiction: config.Code,
			Detail:       fmt.Sprintf("unparseable auth response: %v", err),
		}
	}
	if authResp.Token == "" {
		return SessionToken{}, AuthFailure{
			Kind:         KindRejected,
			Jurisdiction: config.Code,
			Detail:       "portal returned empty token",
		}
	}

	token := SessionToken{
		Jurisdiction: config.Code,
		Token:        authResp.Token,
		ExpiresAt:    tokenExpiry(authResp.Token, authResp.ExpiresAt),
	}
	slog.Info("Portal session opened", "jurisdiction", config.Code, "procurationId", grant.ID, "expiresAt", token.ExpiresAt)
	return token, nil
}

// classifyTransportError maps transport failures to the network failure kind;
// timeouts and connection errors are the caller's to retry with backoff.
func classifyTransportError(code string, err error) error {
	detail := err.Error()
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		detail = "request timed out"
	} else if errors.Is(err, context.DeadlineExceeded) {
		detail = "request deadline exceeded"
	}
	return AuthFailure{
		Kind:         KindNetwork,
		Jurisdiction: code,
		Detail:       detail,
	}
}
