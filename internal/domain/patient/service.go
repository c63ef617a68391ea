package patient

import (
	"context"
	"fmt"
	"strings"
)

type Service struct {
	patients Repository
}

func NewService(patients Repository) *Service {
	return &Service{patients: patients}
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if err := Validate(p); err != nil {
		return err
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id string) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) ListByCase(ctx context.Context, caseID string) ([]*Patient, error) {
	return s.patients.ListByCase(ctx, caseID)
}

// Validate checks a record before it is stored. Dental fields stay
// optional here: incomplete charts are kept and simply skipped by matching.
func Validate(p *Patient) error {
	if strings.TrimSpace(p.CaseID) == "" {
		return fmt.Errorf("%w: case_id is required", ErrValidation)
	}
	if p.TeethCount != nil && (*p.TeethCount < 0 || *p.TeethCount > MaxTeeth) {
		return fmt.Errorf("%w: teeth_count must be between 0 and %d, got %d", ErrValidation, MaxTeeth, *p.TeethCount)
	}
	if p.Odontogram != nil {
		seen := make(map[int]bool, len(p.Odontogram.Teeth))
		for _, t := range p.Odontogram.Teeth {
			if !validFDI(t.Number) {
				return fmt.Errorf("%w: odontogram: invalid FDI tooth number %d", ErrValidation, t.Number)
			}
			if seen[t.Number] {
				return fmt.Errorf("%w: odontogram: tooth %d listed twice", ErrValidation, t.Number)
			}
			seen[t.Number] = true
		}
	}
	return nil
}

// validFDI accepts permanent quadrants 1-4 (teeth 1-8) and deciduous
// quadrants 5-8 (teeth 1-5).
func validFDI(n int) bool {
	q, t := n/10, n%10
	switch {
	case q >= 1 && q <= 4:
		return t >= 1 && t <= 8
	case q >= 5 && q <= 8:
		return t >= 1 && t <= 5
	}
	return false
}
