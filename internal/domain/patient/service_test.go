package patient

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

type mockPatientRepo struct {
	patients  map[string]*Patient
	order     []string
	createErr error
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[string]*Patient)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	if m.createErr != nil {
		return m.createErr
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.patients[p.ID] = p
	m.order = append(m.order, p.ID)
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id string) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockPatientRepo) List(_ context.Context, limit, offset int) ([]*Patient, int, error) {
	ids := append([]string(nil), m.order...)
	sort.Strings(ids)
	var out []*Patient
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		out = append(out, m.patients[ids[i]])
	}
	return out, len(ids), nil
}

func (m *mockPatientRepo) ListByCase(_ context.Context, caseID string) ([]*Patient, error) {
	var out []*Patient
	for _, id := range m.order {
		if m.patients[id].CaseID == caseID {
			out = append(out, m.patients[id])
		}
	}
	return out, nil
}

func newTestService() *Service {
	return NewService(newMockPatientRepo())
}

func TestCreatePatient(t *testing.T) {
	svc := newTestService()
	p := &Patient{CaseID: "case-1", TeethCount: intPtr(28), ActiveCaries: boolPtr(false)}
	if err := svc.CreatePatient(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID == "" {
		t.Error("expected ID to be assigned")
	}
}

func TestCreatePatient_RequiresCase(t *testing.T) {
	svc := newTestService()
	err := svc.CreatePatient(context.Background(), &Patient{CaseID: "  "})
	if err == nil || !strings.Contains(err.Error(), "case_id") {
		t.Errorf("expected case_id error, got %v", err)
	}
}

func TestValidate_ErrorsAreValidation(t *testing.T) {
	teeth := 60
	for _, p := range []*Patient{
		{},
		{CaseID: "c1", TeethCount: &teeth},
		{CaseID: "c1", Odontogram: &Odontogram{Teeth: []Tooth{{Number: 99}}}},
	} {
		if err := Validate(p); !errors.Is(err, ErrValidation) {
			t.Errorf("Validate(%+v) = %v, want ErrValidation", p, err)
		}
	}
}

func TestValidate_TeethRange(t *testing.T) {
	for _, n := range []int{-1, MaxTeeth + 1} {
		if err := Validate(&Patient{CaseID: "c", TeethCount: intPtr(n)}); err == nil {
			t.Errorf("expected error for teeth_count %d", n)
		}
	}
	if err := Validate(&Patient{CaseID: "c", TeethCount: intPtr(0)}); err != nil {
		t.Errorf("unexpected error for edentulous record: %v", err)
	}
}

func TestValidate_Odontogram(t *testing.T) {
	cases := []struct {
		name    string
		teeth   []Tooth
		wantErr bool
	}{
		{"permanent", []Tooth{{Number: 11}, {Number: 48}}, false},
		{"deciduous", []Tooth{{Number: 55}, {Number: 81}}, false},
		{"bad quadrant", []Tooth{{Number: 91}}, true},
		{"bad deciduous tooth", []Tooth{{Number: 56}}, true},
		{"zero tooth", []Tooth{{Number: 10}}, true},
		{"duplicate", []Tooth{{Number: 11}, {Number: 11}}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(&Patient{CaseID: "c", Odontogram: &Odontogram{Teeth: tc.teeth}})
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestListByCase_KeepsInsertionOrder(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	for _, id := range []string{"z", "a", "m"} {
		svc.CreatePatient(ctx, &Patient{ID: id, CaseID: "case-1"})
	}
	svc.CreatePatient(ctx, &Patient{ID: "other", CaseID: "case-2"})

	roster, err := svc.ListByCase(ctx, "case-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var ids []string
	for _, p := range roster {
		ids = append(ids, p.ID)
	}
	if strings.Join(ids, ",") != "z,a,m" {
		t.Errorf("expected z,a,m got %v", ids)
	}
}
