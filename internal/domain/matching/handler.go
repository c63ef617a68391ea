package matching

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/odonto/odonto/internal/domain/patient"
	"github.com/odonto/odonto/internal/platform/auth"
	"github.com/odonto/odonto/internal/platform/report"
)

const mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	svc *Service
	now func() time.Time
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole(auth.RoleOdontologist, auth.RoleInvestigator))
	g.POST("/matches", h.MatchRoster)
	g.GET("/cases/:caseId/matches", h.MatchCase)
	g.POST("/patients/:id/match", h.MatchPatient)
}

// MatchRequest is the body of POST /matches. Threshold and limit fall back
// to the server defaults when omitted.
type MatchRequest struct {
	Threshold *float64           `json:"threshold,omitempty"`
	Limit     *int               `json:"limit,omitempty"`
	Patients  []*patient.Patient `json:"patients"`
}

func (h *Handler) MatchRoster(c echo.Context) error {
	var req MatchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	opts := h.svc.Defaults()
	if req.Threshold != nil {
		opts.Threshold = *req.Threshold
	}
	if req.Limit != nil {
		opts.Limit = *req.Limit
	}
	results, err := h.svc.MatchRoster(req.Patients, opts)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, results)
}

func (h *Handler) MatchCase(c echo.Context) error {
	opts, err := h.optionsFromQuery(c)
	if err != nil {
		return err
	}
	caseID := c.Param("caseId")
	results, err := h.svc.MatchCase(c.Request().Context(), caseID, opts)
	if errors.Is(err, ErrInvalidOptions) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}

	switch c.QueryParam("format") {
	case "", "json":
		return c.JSON(http.StatusOK, results)
	case "xlsx":
		data, err := report.MatchReport(ReportRows(caseID, results), h.now())
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		c.Response().Header().Set(echo.HeaderContentDisposition,
			fmt.Sprintf(`attachment; filename="case-%s-matches.xlsx"`, caseID))
		return c.Blob(http.StatusOK, mimeXLSX, data)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "format must be json or xlsx")
	}
}

func (h *Handler) MatchPatient(c echo.Context) error {
	opts, err := h.optionsFromQuery(c)
	if err != nil {
		return err
	}
	candidates, err := h.svc.MatchPatient(c.Request().Context(), c.Param("id"), opts)
	switch {
	case errors.Is(err, patient.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrAlreadyIdentified), errors.Is(err, ErrInvalidOptions):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, candidates)
}

func (h *Handler) optionsFromQuery(c echo.Context) (Options, error) {
	opts := h.svc.Defaults()
	if v := c.QueryParam("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, echo.NewHTTPError(http.StatusBadRequest, "invalid threshold")
		}
		opts.Threshold = t
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		opts.Limit = n
	}
	if err := opts.Validate(); err != nil {
		return opts, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return opts, nil
}

// ReportRows flattens match results into report rows, one per candidate.
func ReportRows(caseID string, results []MatchResult) []report.MatchRow {
	var rows []report.MatchRow
	for _, r := range results {
		subjectCase := r.Patient.CaseID
		if subjectCase == "" {
			subjectCase = caseID
		}
		for i, cand := range r.Candidates {
			rows = append(rows, report.MatchRow{
				CaseID:         subjectCase,
				SubjectID:      r.Patient.ID,
				Rank:           i + 1,
				CandidateID:    cand.Patient.ID,
				CandidateName:  cand.Patient.DisplayName(),
				Score:          cand.Score,
				ToothCount:     cand.Breakdown.ToothCount,
				ActiveCaries:   cand.Breakdown.ActiveCaries,
				Identification: cand.Breakdown.Identification,
			})
		}
	}
	return rows
}
