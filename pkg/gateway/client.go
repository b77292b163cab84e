package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/fiscalware/govgate/pkg/authbroker"
	"github.com/fiscalware/govgate/pkg/jurisdiction"
)

// remoteClient performs the delegated operations against a portal once a
// session token exists. The wire shapes below are what the portals actually
// return; normalization to the gateway's result types happens here and nowhere
// else.
type remoteClient struct {
	httpClient *http.Client
	apiKeys    map[string]string
}

type wireDebt struct {
	Competencia string  `json:"competencia"`
	Valor       float64 `json:"valor"`
	Vencimento  string  `json:"vencimento"`
	Situacao    string  `json:"situacao"`
	Descricao   string  `json:"descricao"`
}

type wireDebtList struct {
	Debitos []wireDebt `json:"debitos"`
}

type wireGuide struct {
	CodigoBarras string  `json:"codigo_barras"`
	Vencimento   string  `json:"vencimento"`
	Valor        float64 `json:"valor"`
	URLDocumento string  `json:"url_documento"`
}

func (c *remoteClient) queryDebts(ctx context.Context, config jurisdiction.Config, token authbroker.SessionToken, taxID string) ([]Debt, error) {
	body, err := c.call(ctx, config, "debt query", config.QueryPath, token, map[string]string{
		"tax_id": taxID,
	})
	if err != nil {
		return nil, err
	}

	var list wireDebtList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, NormalizationError{Jurisdiction: config.Code, Detail: err.Error()}
	}

	debts := make([]Debt, 0, len(list.Debitos))
	for _, d := range list.Debitos {
		dueDate, err := time.Parse("2006-01-02", d.Vencimento)
		if err != nil {
			return nil, NormalizationError{
				Jurisdiction: config.Code,
				Detail:       fmt.Sprintf("bad due date %q: %v", d.Vencimento, err),
			}
		}
		debts = append(debts, Debt{
			Competence:  d.Competencia,
			AmountCents: int64(math.Round(d.Valor * 100)),
			DueDate:     dueDate,
			Status:      d.Situacao,
			Description: d.Descricao,
		})
	}
	return debts, nil
}

func (c *remoteClient) issueGuide(ctx context.Context, config jurisdiction.Config, token authbroker.SessionToken, req GuideRequest) (PaymentGuide, error) {
	body, err := c.call(ctx, config, "guide issuance", config.GuidePath, token, map[string]interface{}{
		"tax_id":      req.TaxID,
		"competencia": req.Competence,
		"valor":       float64(req.AmountCents) / 100,
	})
	if err != nil {
		return PaymentGuide{}, err
	}

	var guide wireGuide
	if err := json.Unmarshal(body, &guide); err != nil {
		return PaymentGuide{}, NormalizationError{Jurisdiction: config.Code, Detail: err.Error()}
	}
	if guide.CodigoBarras == "" {
		return PaymentGuide{}, NormalizationError{Jurisdiction: config.Code, Detail: "guide without barcode"}
	}
	dueDate, err := time.Parse("2006-01-02", guide.Vencimento)
	if err != nil {
		return PaymentGuide{}, NormalizationError{
			Jurisdiction: config.Code,
			Detail:       fmt.Sprintf("bad due date %q: %v", guide.Vencimento, err),
		}
	}

	return PaymentGuide{
		Barcode:     guide.CodigoBarras,
		DueDate:     dueDate,
		AmountCents: int64(math.Round(guide.Valor * 100)),
		DocumentURL: guide.URLDocumento,
	}, nil
}

func (c *remoteClient) call(ctx context.Context, config jurisdiction.Config, operation, path string, token authbroker.SessionToken, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token.Token)
	if config.RequiresAPIKey {
		req.Header.Set("X-API-Key", c.apiKeys[config.Code])
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var netErr net.Error
		if (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
			return nil, TimeoutError{Jurisdiction: config.Code, Operation: operation}
		}
		return nil, fmt.Errorf("failed to reach %s portal: %w", config.Code, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", config.Code, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, UpstreamError{
			Jurisdiction: config.Code,
			Operation:    operation,
			StatusCode:   resp.StatusCode,
			Detail:       string(respBody),
		}
	}
	return respBody, nil
}
