package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `id, name, case_id, teeth_count, active_caries, odontogram, created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO patient (id, name, case_id, teeth_count, active_caries, odontogram)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.CaseID, p.TeethCount, p.ActiveCaries, p.Odontogram,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert patient %s: %w", p.ID, err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id string) (*Patient, error) {
	p, err := scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get patient %s: %w", id, err)
	}
	return p, nil
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}
	rows, err := r.pool.Query(ctx, `SELECT `+patientCols+` FROM patient ORDER BY updated_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	patients, err := collectPatients(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	return patients, total, nil
}

// ListByCase returns the roster of a case in insertion order, which is the
// order unidentified records are reported in.
func (r *patientRepoPG) ListByCase(ctx context.Context, caseID string) ([]*Patient, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+patientCols+` FROM patient WHERE case_id = $1 ORDER BY created_at, id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list case %s roster: %w", caseID, err)
	}
	patients, err := collectPatients(rows)
	if err != nil {
		return nil, fmt.Errorf("list case %s roster: %w", caseID, err)
	}
	return patients, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.Name, &p.CaseID, &p.TeethCount, &p.ActiveCaries, &p.Odontogram,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPatients(rows pgx.Rows) ([]*Patient, error) {
	defer rows.Close()
	var patients []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}
