// Package patientapi reads case rosters from the external patient-record
// service over REST.
package patientapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/odonto/odonto/internal/domain/patient"
)

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Retries int
}

// Client implements the matching roster source against the patient-record
// service. It is safe for concurrent use.
type Client struct {
	http   *resty.Client
	logger zerolog.Logger
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		}).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		c.SetAuthToken(cfg.Token)
	}
	return &Client{
		http:   c,
		logger: logger.With().Str("component", "patientapi").Logger(),
	}
}

// wirePatient is the record shape served by the patient-record service.
type wirePatient struct {
	ID           string              `json:"id"`
	Name         *string             `json:"name"`
	CaseID       string              `json:"caseId"`
	TeethCount   *int                `json:"teethCount"`
	ActiveCaries *bool               `json:"activeCaries"`
	Odontogram   *patient.Odontogram `json:"odontogram"`
	CreatedAt    *time.Time          `json:"createdAt"`
	UpdatedAt    *time.Time          `json:"updatedAt"`
}

func (w wirePatient) toPatient() *patient.Patient {
	p := &patient.Patient{
		ID:           w.ID,
		Name:         w.Name,
		CaseID:       w.CaseID,
		TeethCount:   w.TeethCount,
		ActiveCaries: w.ActiveCaries,
		Odontogram:   w.Odontogram,
	}
	if w.CreatedAt != nil {
		p.CreatedAt = *w.CreatedAt
	}
	if w.UpdatedAt != nil {
		p.UpdatedAt = *w.UpdatedAt
	}
	return p
}

// ListByCase fetches every patient record of a case.
func (c *Client) ListByCase(ctx context.Context, caseID string) ([]*patient.Patient, error) {
	var records []*wirePatient
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&records).
		Get("/cases/" + url.PathEscape(caseID) + "/patients")
	if err != nil {
		c.logger.Error().Err(err).Str("case_id", caseID).Msg("roster request failed")
		return nil, fmt.Errorf("list case %s patients: %w", caseID, err)
	}
	if resp.IsError() {
		c.logger.Warn().Int("status", resp.StatusCode()).Str("case_id", caseID).Msg("roster request rejected")
		return nil, fmt.Errorf("list case %s patients: unexpected status %d", caseID, resp.StatusCode())
	}

	out := make([]*patient.Patient, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		p := r.toPatient()
		if p.CaseID == "" {
			p.CaseID = caseID
		}
		out = append(out, p)
	}
	c.logger.Debug().Str("case_id", caseID).Int("count", len(out)).Msg("roster fetched")
	return out, nil
}

// GetByID fetches a single record; a 404 maps to patient.ErrNotFound.
func (c *Client) GetByID(ctx context.Context, id string) (*patient.Patient, error) {
	var record wirePatient
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&record).
		Get("/patients/" + url.PathEscape(id))
	if err != nil {
		c.logger.Error().Err(err).Str("patient_id", id).Msg("patient request failed")
		return nil, fmt.Errorf("get patient %s: %w", id, err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, patient.ErrNotFound
	case resp.IsError():
		return nil, fmt.Errorf("get patient %s: unexpected status %d", id, resp.StatusCode())
	}
	return record.toPatient(), nil
}
