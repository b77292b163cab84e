package procuration

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fiscalware/govgate/pkg/certstore"
)

// Issuer performs the remote issuance sequence against the government portal:
// authenticate with the client's certificate, navigate to the delegation form,
// submit the procuration on behalf of the attorney, and retrieve the
// proof-of-issuance document. The lifecycle service drives it one step at a
// time so the audit trail records exactly how far processing got.
type Issuer interface {
	Authenticate(ctx context.Context, cert certstore.DigitalCertificate, p Procuration) (session string, err error)
	Navigate(ctx context.Context, session string) error
	Submit(ctx context.Context, session string, p Procuration) (grantReference string, err error)
	FetchProof(ctx context.Context, session, grantReference string) ([]byte, error)
}

// HTTPIssuer implements Issuer against the federal delegation portal's HTTP
// API.
type HTTPIssuer struct {
	baseURL    string
	httpClient *http.Client
}

// HTTPIssuerOption configures an HTTPIssuer
type HTTPIssuerOption func(*HTTPIssuer)

// WithIssuerHTTPClient sets the HTTP client used for portal calls
func WithIssuerHTTPClient(client *http.Client) HTTPIssuerOption {
	return func(i *HTTPIssuer) {
		i.httpClient = client
	}
}

// NewHTTPIssuer creates an issuer against the given portal base URL
func NewHTTPIssuer(baseURL string, opts ...HTTPIssuerOption) *HTTPIssuer {
	issuer := &HTTPIssuer{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(issuer)
	}
	return issuer
}

// Authenticate opens a portal session with the client's certificate
func (i *HTTPIssuer) Authenticate(ctx context.Context, cert certstore.DigitalCertificate, p Procuration) (string, error) {
	material, err := cert.Decrypt()
	if err != nil {
		return "", fmt.Errorf("failed to open certificate: %w", err)
	}

	payload := map[string]string{
		"certificate":     base64.StdEncoding.EncodeToString(material),
		"attorney_tax_id": p.AttorneyTaxID,
	}
	var response struct {
		Session string `json:"session"`
	}
	if err := i.postJSON(ctx, "/api/v1/auth", payload, &response); err != nil {
		return "", err
	}
	if response.Session == "" {
		return "", fmt.Errorf("portal returned empty session")
	}
	return response.Session, nil
}

// Navigate opens the delegation form for the session
func (i *HTTPIssuer) Navigate(ctx context.Context, session string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.baseURL+"/api/v1/procuracoes/nova", nil)
	if err != nil {
		return fmt.Errorf("failed to create navigate request: %w", err)
	}
	req.Header.Set("X-Portal-Session", session)

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach portal: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("portal navigation failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Submit files the procuration and returns the portal's grant reference
func (i *HTTPIssuer) Submit(ctx context.Context, session string, p Procuration) (string, error) {
	payload := map[string]interface{}{
		"attorney_tax_id":     p.AttorneyTaxID,
		"attorney_name":       p.AttorneyName,
		"authorized_services": p.AuthorizedServices,
		"valid_until":         p.ValidUntil.Format(time.RFC3339),
	}
	var response struct {
		GrantReference string `json:"grant_reference"`
	}
	if err := i.postJSONWithSession(ctx, "/api/v1/procuracoes", session, payload, &response); err != nil {
		return "", err
	}
	if response.GrantReference == "" {
		return "", fmt.Errorf("portal returned empty grant reference")
	}
	return response.GrantReference, nil
}

// FetchProof retrieves the proof-of-issuance document
func (i *HTTPIssuer) FetchProof(ctx context.Context, session, grantReference string) ([]byte, error) {
	url := fmt.Sprintf("%s/api/v1/procuracoes/%s/comprovante", i.baseURL, grantReference)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create proof request: %w", err)
	}
	req.Header.Set("X-Portal-Session", session)

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach portal: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("proof retrieval failed with status %d: %s", resp.StatusCode, string(body))
	}
	return io.ReadAll(resp.Body)
}

func (i *HTTPIssuer) postJSON(ctx context.Context, path string, payload, response interface{}) error {
	return i.postJSONWithSession(ctx, path, "", payload, response)
}

func (i *HTTPIssuer) postJSONWithSession(ctx context.Context, path, session string, payload, response interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set("X-Portal-Session", session)
	}

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach portal: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read portal response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("portal request failed with status %d: %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, response); err != nil {
		return fmt.Errorf("failed to parse portal response: %w", err)
	}
	return nil
}
