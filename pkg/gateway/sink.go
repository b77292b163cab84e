package gateway

import (
	"context"
	"sync"
)

// ResultSink persists normalized results for the surrounding application.
// The Postgres sink is the durable store; the in-memory sink serves tests
// and the demo wiring.
type ResultSink interface {
	SaveDebtResult(ctx context.Context, result DebtQueryResult) error
	SaveGuideResult(ctx context.Context, result GuideResult) error
}

// InMemSink implements ResultSink using in-memory slices
type InMemSink struct {
	debtResults  []DebtQueryResult
	guideResults []GuideResult
	mu           sync.Mutex
}

// NewInMemSink creates a new in-memory result sink
func NewInMemSink() *InMemSink {
	return &InMemSink{}
}

// SaveDebtResult records a debt query result
func (s *InMemSink) SaveDebtResult(ctx context.Context, result DebtQueryResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debtResults = append(s.debtResults, result)
	return nil
}

// SaveGuideResult records a guide issuance result
func (s *InMemSink) SaveGuideResult(ctx context.Context, result GuideResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guideResults = append(s.guideResults, result)
	return nil
}

// DebtResults returns a copy of the stored debt results
func (s *InMemSink) DebtResults() []DebtQueryResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := make([]DebtQueryResult, len(s.debtResults))
	copy(results, s.debtResults)
	return results
}

// GuideResults returns a copy of the stored guide results
func (s *InMemSink) GuideResults() []GuideResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := make([]GuideResult, len(s.guideResults))
	copy(results, s.guideResults)
	return results
}
