package jurisdiction

import (
	"fmt"
)

// Permission strings a procuration can carry in its authorized services set.
// These match the service codes used by the state portals.
const (
	PermQueryDebts         = "QUERY_DEBTS"
	PermQueryInvoices      = "QUERY_INVOICES"
	PermIssueGuides        = "ISSUE_GUIDES"
	PermContestAssessments = "CONTEST_ASSESSMENTS"
)

// Config holds the endpoint configuration for one state tax authority.
type Config struct {
	Code                string   `json:"code"`
	BaseURL             string   `json:"base_url"`
	AuthPath            string   `json:"auth_path"`
	QueryPath           string   `json:"query_path"`
	GuidePath           string   `json:"guide_path"`
	RequiresCertificate bool     `json:"requires_certificate"`
	RequiresAPIKey      bool     `json:"requires_api_key"`
	RequiredPermissions []string `json:"required_permissions"`
}

// UnknownJurisdictionError is returned when a looked-up code has no registry entry.
// An unknown code is a configuration problem, never something to fall back from.
type UnknownJurisdictionError struct {
	Code string
}

func (e UnknownJurisdictionError) Error() string {
	return fmt.Sprintf("unknown jurisdiction code: %s", e.Code)
}

// Registry is a static table of per-jurisdiction endpoint configuration.
// It is built once and read-only afterwards, so lookups need no locking.
type Registry struct {
	configs map[string]Config
}

// NewRegistry creates a registry with the default table of the 27 state tax
// authorities.
func NewRegistry() *Registry {
	return NewRegistryWithConfigs(defaultConfigs())
}

// NewRegistryWithConfigs creates a registry from an explicit config list.
// Used by tests and by deployments that point at staging portals.
func NewRegistryWithConfigs(configs []Config) *Registry {
	m := make(map[string]Config, len(configs))
	for _, c := range configs {
		m[c.Code] = c
	}
	return &Registry{configs: m}
}

// Lookup returns the configuration for a jurisdiction code.
func (r *Registry) Lookup(code string) (Config, error) {
	config, ok := r.configs[code]
	if !ok {
		return Config{}, UnknownJurisdictionError{Code: code}
	}
	return config, nil
}

// RequiredPermissions returns the permission set a jurisdiction demands from a
// procuration before it will accept delegated operations.
func (r *Registry) RequiredPermissions(code string) ([]string, error) {
	config, err := r.Lookup(code)
	if err != nil {
		return nil, err
	}
	perms := make([]string, len(config.RequiredPermissions))
	copy(perms, config.RequiredPermissions)
	return perms, nil
}

// Codes returns all registered jurisdiction codes.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.configs))
	for code := range r.configs {
		codes = append(codes, code)
	}
	return codes
}

// guideIssuers are the jurisdictions whose portals accept delegated payment
// guide issuance and therefore demand the ISSUE_GUIDES service on the
// procuration.
var guideIssuers = map[string]bool{
	"BA": true,
	"MG": true,
	"PR": true,
	"RJ": true,
	"RS": true,
	"SC": true,
	"SP": true,
}

// contestCapable jurisdictions additionally expose assessment contestation.
var contestCapable = map[string]bool{
	"MG": true,
	"SP": true,
}

// apiKeyPortals run behind a state-issued API key on top of the certificate.
var apiKeyPortals = map[string]bool{
	"AM": true,
	"BA": true,
	"GO": true,
	"PE": true,
}

func defaultConfigs() []Config {
	// Base URLs follow each state's published portal host; they are not
	// derivable from the code alone.
	baseURLs := map[string]string{
		"AC": "https://sefaz.ac.gov.br/portal",
		"AL": "https://sefaz.al.gov.br/delegada",
		"AP": "https://sefaz.ap.gov.br/portal",
		"AM": "https://online.sefaz.am.gov.br",
		"BA": "https://sefaz.ba.gov.br/servicos",
		"CE": "https://portal.sefaz.ce.gov.br",
		"DF": "https://agenciavirtual.receita.df.gov.br",
		"ES": "https://internet.sefaz.es.gov.br",
		"GO": "https://portal.sefaz.go.gov.br",
		"MA": "https://sistemas.sefaz.ma.gov.br",
		"MT": "https://www.sefaz.mt.gov.br/portal",
		"MS": "https://servicos.sefaz.ms.gov.br",
		"MG": "https://www2.fazenda.mg.gov.br/sol",
		"PA": "https://app.sefa.pa.gov.br",
		"PB": "https://sefaz.pb.gov.br/atf",
		"PR": "https://receita.pr.gov.br/portal",
		"PE": "https://efisco.sefaz.pe.gov.br",
		"PI": "https://webas.sefaz.pi.gov.br",
		"RJ": "https://portal.fazenda.rj.gov.br",
		"RN": "https://uvt.set.rn.gov.br",
		"RS": "https://atendimento.receita.rs.gov.br",
		"RO": "https://portalcontribuinte.sefin.ro.gov.br",
		"RR": "https://sefaz.rr.gov.br/portal",
		"SC": "https://sat.sef.sc.gov.br",
		"SP": "https://www3.fazenda.sp.gov.br/cpd",
		"SE": "https://www.sefaz.se.gov.br/portal",
		"TO": "https://portaldocontribuinte.sefaz.to.gov.br",
	}

	configs := make([]Config, 0, len(baseURLs))
	for code, baseURL := range baseURLs {
		perms := []string{PermQueryDebts, PermQueryInvoices}
		if guideIssuers[code] {
			perms = append(perms, PermIssueGuides)
		}
		if contestCapable[code] {
			perms = append(perms, PermContestAssessments)
		}
		configs = append(configs, Config{
			Code:                code,
			BaseURL:             baseURL,
			AuthPath:            "/api/v1/auth/procuracao",
			QueryPath:           "/api/v1/debitos",
			GuidePath:           "/api/v1/guias",
			RequiresCertificate: true,
			RequiresAPIKey:      apiKeyPortals[code],
			RequiredPermissions: perms,
		})
	}
	return configs
}
