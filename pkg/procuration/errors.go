package procuration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrProcurationNotFound is returned when no procuration exists for an id.
var ErrProcurationNotFound = errors.New("procuration not found")

// NoValidProcurationError is returned when a client has no live procuration at
// all for the requested jurisdiction. Callers must treat this as "no usable
// delegation" and take the flagged fallback path, never swallow it.
type NoValidProcurationError struct {
	ClientID     uuid.UUID
	Jurisdiction string
}

func (e NoValidProcurationError) Error() string {
	if e.Jurisdiction == "" {
		return fmt.Sprintf("no valid procuration for client %s", e.ClientID)
	}
	return fmt.Sprintf("no valid procuration for client %s in jurisdiction %s", e.ClientID, e.Jurisdiction)
}

// InsufficientScopeError is returned when live procurations exist but none
// carries the jurisdiction's required services. Distinct from
// NoValidProcurationError so operators know to reissue with broader scope
// rather than issue from scratch.
type InsufficientScopeError struct {
	ClientID     uuid.UUID
	Jurisdiction string
	Missing      []string
}

func (e InsufficientScopeError) Error() string {
	return fmt.Sprintf("procurations for client %s lack required services for jurisdiction %s: %s",
		e.ClientID, e.Jurisdiction, strings.Join(e.Missing, ", "))
}

// TerminalStatusError is returned when an operation is attempted on a
// procuration that has already reached a terminal status.
type TerminalStatusError struct {
	ID     uuid.UUID
	Status Status
}

func (e TerminalStatusError) Error() string {
	return fmt.Sprintf("procuration %s is already %s", e.ID, e.Status)
}

// InvalidTransitionError is returned when a status change violates the
// lifecycle machine.
type InvalidTransitionError struct {
	ID   uuid.UUID
	From Status
	To   Status
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("procuration %s cannot move from %s to %s", e.ID, e.From, e.To)
}

// IssuanceError classifies a failure during the remote issuance sequence. The
// Step names how far processing got; the audit trail carries the same story.
type IssuanceError struct {
	ID   uuid.UUID
	Step string
	Err  error
}

func (e IssuanceError) Error() string {
	return fmt.Sprintf("issuance of procuration %s failed at %s: %v", e.ID, e.Step, e.Err)
}

func (e IssuanceError) Unwrap() error {
	return e.Err
}
