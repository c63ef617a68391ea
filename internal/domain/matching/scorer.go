package matching

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/odonto/odonto/internal/domain/patient"
)

// ErrInvalidPatient marks a record that lacks the dental attributes needed
// for comparison. Matching skips such records instead of failing.
var ErrInvalidPatient = errors.New("patient record missing dental attributes")

const (
	DefaultThreshold = 50.0
	MaxScore         = 100.0
)

// ToothCountPolicy selects how the tooth-count term is credited.
type ToothCountPolicy string

const (
	// ToothPolicyExact awards the full tooth weight only on equal counts.
	ToothPolicyExact ToothCountPolicy = "exact"
	// ToothPolicyDistance decays the tooth weight linearly with the count
	// difference, reaching zero at Options.ToothTolerance.
	ToothPolicyDistance ToothCountPolicy = "distance"
)

// Weights are the share of the 100-point score each attribute carries.
type Weights struct {
	ToothCount     float64
	ActiveCaries   float64
	Identification float64
}

func DefaultWeights() Weights {
	return Weights{
		ToothCount:     40,
		ActiveCaries:   30,
		Identification: 30,
	}
}

// Options tune a matching run. The weights are fixed; only the threshold,
// result limit and tooth policy vary.
type Options struct {
	Threshold      float64
	Limit          int // 0 = unlimited
	ToothPolicy    ToothCountPolicy
	ToothTolerance int
}

func DefaultOptions() Options {
	return Options{
		Threshold:      DefaultThreshold,
		ToothPolicy:    ToothPolicyExact,
		ToothTolerance: 4,
	}
}

func (o Options) Validate() error {
	if math.IsNaN(o.Threshold) || o.Threshold < 0 || o.Threshold > MaxScore {
		return fmt.Errorf("threshold must be between 0 and %.0f, got %v", MaxScore, o.Threshold)
	}
	if o.Limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", o.Limit)
	}
	switch o.ToothPolicy {
	case ToothPolicyExact, "":
	case ToothPolicyDistance:
		if o.ToothTolerance <= 0 {
			return fmt.Errorf("tooth tolerance must be positive for the distance policy, got %d", o.ToothTolerance)
		}
	default:
		return fmt.Errorf("unknown tooth policy %q", o.ToothPolicy)
	}
	return nil
}

// Matcher scores unidentified patients against identified ones. It holds
// no mutable state and is safe for concurrent use.
type Matcher struct {
	weights Weights
	opts    Options
}

func NewMatcher(opts Options) *Matcher {
	return &Matcher{weights: DefaultWeights(), opts: opts}
}

func (m *Matcher) Options() Options {
	return m.opts
}

// Score compares subject with candidate. The identification term is
// credited only when the candidate is identified, so two unidentified
// records can never earn it.
func (m *Matcher) Score(subject, candidate *patient.Patient) (MatchCandidate, error) {
	if subject == nil || candidate == nil {
		return MatchCandidate{}, ErrInvalidPatient
	}
	sTeeth, sCaries, ok := subject.DentalSummary()
	if !ok {
		return MatchCandidate{}, fmt.Errorf("subject %s: %w", subject.ID, ErrInvalidPatient)
	}
	cTeeth, cCaries, ok := candidate.DentalSummary()
	if !ok {
		return MatchCandidate{}, fmt.Errorf("candidate %s: %w", candidate.ID, ErrInvalidPatient)
	}

	var b AttributeMatch
	score := 0.0

	b.ToothCount = sTeeth == cTeeth
	score += m.weights.ToothCount * m.toothCredit(sTeeth, cTeeth)

	if sCaries == cCaries {
		b.ActiveCaries = true
		score += m.weights.ActiveCaries
	}

	if candidate.Identified() {
		b.Identification = true
		score += m.weights.Identification
	}

	score = math.Round(score*100) / 100
	score = math.Max(0, math.Min(MaxScore, score))
	return MatchCandidate{Patient: candidate, Score: score, Breakdown: b}, nil
}

func (m *Matcher) toothCredit(a, b int) float64 {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if diff == 0 {
		return 1
	}
	if m.opts.ToothPolicy != ToothPolicyDistance || m.opts.ToothTolerance <= 0 {
		return 0
	}
	return math.Max(0, 1-float64(diff)/float64(m.opts.ToothTolerance))
}

// Rank scores unidentified against every identified, well-formed entry of
// pool and returns those at or above the threshold, best first. Ties keep
// pool order. An ineligible subject or an empty pool yields an empty slice.
func (m *Matcher) Rank(unidentified *patient.Patient, pool []*patient.Patient) []MatchCandidate {
	out := []MatchCandidate{}
	if unidentified == nil || len(pool) == 0 {
		return out
	}
	if _, _, ok := unidentified.DentalSummary(); !ok {
		return out
	}

	for _, p := range pool {
		if p == nil || p == unidentified || !p.Identified() {
			continue
		}
		cand, err := m.Score(unidentified, p)
		if err != nil {
			continue
		}
		if cand.Score >= m.opts.Threshold {
			out = append(out, cand)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})

	if m.opts.Limit > 0 && len(out) > m.opts.Limit {
		out = out[:m.opts.Limit]
	}
	return out
}

// Eligible reports why p cannot take part in matching, or nil.
func Eligible(p *patient.Patient) error {
	if p == nil {
		return ErrInvalidPatient
	}
	if _, _, ok := p.DentalSummary(); !ok {
		return fmt.Errorf("patient %s: %w", p.ID, ErrInvalidPatient)
	}
	return nil
}
