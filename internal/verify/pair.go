package verify

import (
	"fmt"
	"sync"
	"time"

	"hivekit/internal/errors"
)

// Trust smoothing: each outcome moves a pair's trust toward its
// observed success rate by this fraction.
const trustSmoothing = 0.2

// initialTrust is where every new pair starts, neither trusted nor
// distrusted.
const initialTrust = 0.5

// Pair binds a primary agent to the verifier judging its work. The two
// must be different agents.
type Pair struct {
	mu sync.Mutex

	id         string
	primaryID  string
	verifierID string

	trust      float64
	total      int
	accepted   int
	lastUsedAt time.Time
}

// NewPair creates a primary/verifier pair. The same agent cannot fill
// both roles.
func NewPair(primaryID, verifierID string) (*Pair, error) {
	if primaryID == "" || verifierID == "" {
		return nil, errors.NewValidationError("agent_id", "", "pair agents must not be empty")
	}
	if primaryID == verifierID {
		return nil, errors.NewVerificationError("cannot verify own work", errors.ErrSelfVerification)
	}
	return &Pair{
		id:         fmt.Sprintf("%s:%s", primaryID, verifierID),
		primaryID:  primaryID,
		verifierID: verifierID,
		trust:      initialTrust,
	}, nil
}

// ID returns the pair's identifier.
func (p *Pair) ID() string { return p.id }

// PrimaryID returns the primary agent's ID.
func (p *Pair) PrimaryID() string { return p.primaryID }

// VerifierID returns the verifying agent's ID.
func (p *Pair) VerifierID() string { return p.verifierID }

// RecordOutcome folds one verification verdict into the pair's trust:
// trust moves toward the pair's running acceptance rate by the
// smoothing factor. Accepted verdicts raise trust over time, rejections
// lower it.
func (p *Pair) RecordOutcome(accepted bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total++
	if accepted {
		p.accepted++
	}
	rate := float64(p.accepted) / float64(p.total)
	p.trust = p.trust*(1-trustSmoothing) + rate*trustSmoothing
	p.lastUsedAt = time.Now()
}

// Trust returns the pair's current trust, in [0, 1].
func (p *Pair) Trust() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.trust
}

// Metrics is a snapshot of a pair's verification history.
type Metrics struct {
	PairID     string    `json:"pair_id"`
	PrimaryID  string    `json:"primary_id"`
	VerifierID string    `json:"verifier_id"`
	Trust      float64   `json:"trust"`
	Total      int       `json:"total"`
	Accepted   int       `json:"accepted"`
	AcceptRate float64   `json:"accept_rate"`
	LastUsedAt time.Time `json:"last_used_at"`
}

// Metrics returns a snapshot of the pair's history.
func (p *Pair) Metrics() Metrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	rate := 0.0
	if p.total > 0 {
		rate = float64(p.accepted) / float64(p.total)
	}
	return Metrics{
		PairID:     p.id,
		PrimaryID:  p.primaryID,
		VerifierID: p.verifierID,
		Trust:      p.trust,
		Total:      p.total,
		Accepted:   p.accepted,
		AcceptRate: rate,
		LastUsedAt: p.lastUsedAt,
	}
}

// pairSet tracks all pairs the coordinator has formed, keyed by
// primary and verifier.
type pairSet struct {
	mu    sync.Mutex
	pairs map[string]*Pair
}

func newPairSet() *pairSet {
	return &pairSet{pairs: make(map[string]*Pair)}
}

// get returns the pair for a primary/verifier combination, creating it
// on first use.
func (s *pairSet) get(primaryID, verifierID string) (*Pair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := primaryID + ":" + verifierID
	if p, ok := s.pairs[key]; ok {
		return p, nil
	}
	p, err := NewPair(primaryID, verifierID)
	if err != nil {
		return nil, err
	}
	s.pairs[key] = p
	return p, nil
}

// trustFor returns the current trust for a combination, or the initial
// trust when the pair has no history yet.
func (s *pairSet) trustFor(primaryID, verifierID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.pairs[primaryID+":"+verifierID]; ok {
		return p.Trust()
	}
	return initialTrust
}

// all returns metrics for every pair.
func (s *pairSet) all() []Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Metrics, 0, len(s.pairs))
	for _, p := range s.pairs {
		out = append(out, p.Metrics())
	}
	return out
}
