package matching

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/odonto/odonto/internal/domain/patient"
)

var (
	// ErrAlreadyIdentified is returned when matching is requested for a
	// patient that already has a name.
	ErrAlreadyIdentified = errors.New("patient is already identified")
	// ErrInvalidOptions wraps rejected thresholds, limits and tooth policies.
	ErrInvalidOptions = errors.New("invalid match options")
)

// RosterSource is the patient-record store the service reads from. It is
// implemented by the Postgres repository and by the REST client of the
// external patient-record service.
type RosterSource interface {
	GetByID(ctx context.Context, id string) (*patient.Patient, error)
	ListByCase(ctx context.Context, caseID string) ([]*patient.Patient, error)
}

type Service struct {
	roster   RosterSource
	defaults Options
	logger   zerolog.Logger
}

func NewService(roster RosterSource, defaults Options, logger zerolog.Logger) *Service {
	return &Service{
		roster:   roster,
		defaults: defaults,
		logger:   logger.With().Str("component", "matching").Logger(),
	}
}

// Defaults returns the configured options that requests start from.
func (s *Service) Defaults() Options {
	return s.defaults
}

// MatchRoster runs the batch driver over a caller-supplied roster.
func (s *Service) MatchRoster(roster []*patient.Patient, opts Options) ([]MatchResult, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	s.logSkipped(roster)
	return NewMatcher(opts).MatchAll(roster), nil
}

// MatchCase fetches the roster of a case and matches every unidentified
// record in it.
func (s *Service) MatchCase(ctx context.Context, caseID string, opts Options) ([]MatchResult, error) {
	if caseID == "" {
		return nil, fmt.Errorf("%w: case id is required", ErrInvalidOptions)
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	roster, err := s.roster.ListByCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("fetch case roster: %w", err)
	}
	s.logSkipped(roster)

	results := NewMatcher(opts).MatchAll(roster)
	s.logger.Info().
		Str("case_id", caseID).
		Int("roster", len(roster)).
		Int("results", len(results)).
		Float64("threshold", opts.Threshold).
		Msg("case matched")
	return results, nil
}

// MatchPatient ranks the identified records of a patient's case against it.
func (s *Service) MatchPatient(ctx context.Context, id string, opts Options) ([]MatchCandidate, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	subject, err := s.roster.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if subject.Identified() {
		return nil, fmt.Errorf("patient %s: %w", id, ErrAlreadyIdentified)
	}
	roster, err := s.roster.ListByCase(ctx, subject.CaseID)
	if err != nil {
		return nil, fmt.Errorf("fetch case roster: %w", err)
	}

	pool := make([]*patient.Patient, 0, len(roster))
	for _, p := range roster {
		if p != nil && p.ID != subject.ID {
			pool = append(pool, p)
		}
	}

	candidates := NewMatcher(opts).Rank(subject, pool)
	s.logger.Info().
		Str("patient_id", id).
		Str("case_id", subject.CaseID).
		Int("pool", len(pool)).
		Int("candidates", len(candidates)).
		Msg("patient matched")
	return candidates, nil
}

func (s *Service) logSkipped(roster []*patient.Patient) {
	for _, p := range roster {
		if err := Eligible(p); errors.Is(err, ErrInvalidPatient) {
			s.logger.Debug().Err(err).Msg("record skipped")
		}
	}
}
