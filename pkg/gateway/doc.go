// Package gateway performs delegated operations against the state tax portals.
//
// The gateway is the operation surface the office application calls: query a
// client's open debts, issue a payment guide. Each operation resolves the best
// live procuration, opens a portal session through the authentication broker,
// runs the remote call, normalizes the portal's wire format, and appends to
// the grant's audit trail.
//
// # Overview
//
// The gateway package provides:
//   - Service: QueryDebts and IssueGuide with grant resolution and auditing
//   - Explicit simulated fallback when no valid procuration exists
//     (Source = simulated, a warning, and a queued collection job)
//   - Normalized result types: integer cents, parsed dates, masked tax ids
//   - ResultSink and JobQueue extension points for the surrounding app
//
// # Basic Usage
//
//	import "github.com/fiscalware/govgate/pkg/gateway"
//
//	service := gateway.NewService(selector, certs, broker, registry, trail,
//		gateway.NewInMemSink(), gateway.NewInMemJobQueue())
//
//	result, err := service.QueryDebts(ctx, clientID, "SP", "12345678000195")
//	if result.Source == gateway.SourceSimulated {
//		// degraded data, surfaced loudly to the caller
//	}
//
// # Fallback Semantics
//
// Only a missing grant degrades to the simulated path. A grant with
// insufficient scope, an authentication failure, or an upstream error is
// returned as an error: those need an operator, not a silent substitute.
//
// # Related Packages
//
//   - pkg/procuration - grant selection
//   - pkg/authbroker - portal session tokens
//   - pkg/jurisdiction - per-state endpoint configuration
//   - pkg/audit - operation trail
package gateway
