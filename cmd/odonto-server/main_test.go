package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/odonto/odonto/internal/config"
	"github.com/odonto/odonto/internal/domain/matching"
	"github.com/odonto/odonto/internal/domain/patient"
	"github.com/odonto/odonto/internal/platform/report"
)

type memRepo struct {
	patients []*patient.Patient
}

func (m *memRepo) Create(_ context.Context, p *patient.Patient) error {
	m.patients = append(m.patients, p)
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*patient.Patient, error) {
	for _, p := range m.patients {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, patient.ErrNotFound
}

func (m *memRepo) List(_ context.Context, limit, offset int) ([]*patient.Patient, int, error) {
	if offset > len(m.patients) {
		offset = len(m.patients)
	}
	end := offset + limit
	if end > len(m.patients) {
		end = len(m.patients)
	}
	return m.patients[offset:end], len(m.patients), nil
}

func (m *memRepo) ListByCase(_ context.Context, caseID string) ([]*patient.Patient, error) {
	var out []*patient.Patient
	for _, p := range m.patients {
		if p.CaseID == caseID {
			out = append(out, p)
		}
	}
	return out, nil
}

func rec(id, name, caseID string, teeth int, caries bool) *patient.Patient {
	p := &patient.Patient{ID: id, CaseID: caseID, TeethCount: &teeth, ActiveCaries: &caries}
	if name != "" {
		p.Name = &name
	}
	return p
}

func sampleResults() []matching.MatchResult {
	return matching.NewMatcher(matching.DefaultOptions()).MatchAll([]*patient.Patient{
		rec("u1", "", "c1", 28, false),
		rec("i1", "Ana", "c1", 28, false),
	})
}

func devConfig() *config.Config {
	return &config.Config{Env: "development", RosterSource: config.RosterPostgres, MatchThreshold: 50}
}

func TestMatchOptions(t *testing.T) {
	cfg := &config.Config{MatchThreshold: 70, MatchLimit: 3, MatchToothPolicy: " Distance ", MatchToothTolerance: 2}
	opts := matchOptions(cfg)
	assert.Equal(t, 70.0, opts.Threshold)
	assert.Equal(t, 3, opts.Limit)
	assert.Equal(t, matching.ToothPolicyDistance, opts.ToothPolicy)
	assert.Equal(t, 2, opts.ToothTolerance)
	assert.NoError(t, opts.Validate())

	opts = matchOptions(&config.Config{MatchThreshold: 50})
	assert.Equal(t, matching.ToothPolicyExact, opts.ToothPolicy)
	assert.Equal(t, 4, opts.ToothTolerance)
}

func TestWriteResults_Stdout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeResults(&buf, "", "c1", sampleResults(), time.Now()))

	var got []matching.MatchResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, 100.0, got[0].Candidates[0].Score)
}

func TestWriteResults_Files(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "out.json")
	require.NoError(t, writeResults(nil, jsonPath, "c1", sampleResults(), time.Now()))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"identification": true`)

	xlsxPath := filepath.Join(dir, "out.xlsx")
	require.NoError(t, writeResults(nil, xlsxPath, "c1", sampleResults(), time.Now()))
	f, err := excelize.OpenFile(xlsxPath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(report.MatchSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	assert.Error(t, writeResults(nil, filepath.Join(dir, "out.csv"), "c1", nil, time.Now()))
	assert.Error(t, writeResults(nil, filepath.Join(dir, "out"), "c1", nil, time.Now()))
}

func TestImportRoster(t *testing.T) {
	repo := &memRepo{}
	svc := patient.NewService(repo)
	roster := []*patient.Patient{
		rec("a", "Ana", "", 28, false),
		rec("b", "", "c9", 30, true),
	}

	n, err := importRoster(context.Background(), svc, roster, "c1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "c1", repo.patients[0].CaseID)
	assert.Equal(t, "c9", repo.patients[1].CaseID)

	bad := []*patient.Patient{rec("x", "", "", 99, false)}
	n, err = importRoster(context.Background(), svc, bad, "c1")
	assert.Error(t, err)
	assert.Equal(t, 0, n)
}

func serve(t *testing.T, cfg *config.Config, deps serverDeps, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	e := newServer(cfg, zerolog.Nop(), deps)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, req)
	return rr
}

func TestServer_DevRoutes(t *testing.T) {
	repo := &memRepo{patients: []*patient.Patient{
		rec("u1", "", "c1", 28, false),
		rec("i1", "Ana", "c1", 28, false),
	}}
	deps := serverDeps{roster: repo, patients: patient.NewService(repo)}

	rr := serve(t, devConfig(), deps, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = serve(t, devConfig(), deps, http.MethodGet, "/api/v1/cases/c1/matches", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var results []matching.MatchResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, "i1", results[0].Candidates[0].Patient.ID)

	rr = serve(t, devConfig(), deps, http.MethodGet, "/api/v1/patients/i1", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(t, devConfig(), deps, http.MethodGet, "/api/v1/cases/c1/matches?threshold=500", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_APIRosterHasNoPatientRoutes(t *testing.T) {
	deps := serverDeps{roster: &memRepo{}}

	rr := serve(t, devConfig(), deps, http.MethodGet, "/api/v1/patients", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = serve(t, devConfig(), deps, http.MethodGet, "/health/db", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(t, devConfig(), deps, http.MethodPost, "/api/v1/matches", `{"patients":[]}`, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rr.Body.String()))
}

func TestServer_RequiresTokenOutsideDev(t *testing.T) {
	cfg := devConfig()
	cfg.Env = "production"
	cfg.AuthSigningKey = "prod-signing-key"
	deps := serverDeps{roster: &memRepo{}}

	rr := serve(t, cfg, deps, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(t, cfg, deps, http.MethodPost, "/api/v1/matches", `{"patients":[]}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = serve(t, cfg, deps, http.MethodPost, "/api/v1/matches", `{"patients":[]}`,
		map[string]string{"Authorization": "Bearer not-a-token"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
