package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const MatchSheet = "Matches"

// MatchRow is one (unidentified patient, candidate) pair of a match report.
type MatchRow struct {
	CaseID         string
	SubjectID      string
	Rank           int
	CandidateID    string
	CandidateName  string
	Score          float64
	ToothCount     bool
	ActiveCaries   bool
	Identification bool
}

var MatchHeader = []string{
	"Case",
	"Unidentified Patient",
	"Rank",
	"Candidate",
	"Candidate Name",
	"Score",
	"Tooth Count",
	"Active Caries",
	"Identification",
}

var matchColumnWidths = []float64{20, 38, 8, 38, 28, 10, 12, 14, 15}

// MatchWorkbook builds the report workbook. The caller owns the returned
// file and must Close it.
func MatchWorkbook(rows []MatchRow, generatedAt time.Time) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), MatchSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for col, title := range MatchHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(MatchSheet, cell, title); err != nil {
			f.Close()
			return nil, fmt.Errorf("set header %s: %w", cell, err)
		}
		colName, _ := excelize.ColumnNumberToName(col + 1)
		f.SetColWidth(MatchSheet, colName, colName, matchColumnWidths[col])
	}
	last, _ := excelize.CoordinatesToCellName(len(MatchHeader), 1)
	if err := f.SetCellStyle(MatchSheet, "A1", last, headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("set header style: %w", err)
	}

	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []interface{}{
			r.CaseID, r.SubjectID, r.Rank, r.CandidateID, r.CandidateName,
			r.Score, yesNo(r.ToothCount), yesNo(r.ActiveCaries), yesNo(r.Identification),
		}
		if err := f.SetSheetRow(MatchSheet, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	f.SetDocProps(&excelize.DocProperties{
		Title:   "Identification match report",
		Created: generatedAt.UTC().Format(time.RFC3339),
	})
	return f, nil
}

// MatchReport renders the workbook to bytes.
func MatchReport(rows []MatchRow, generatedAt time.Time) ([]byte, error) {
	f, err := MatchWorkbook(rows, generatedAt)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveMatchReport writes the workbook to path.
func SaveMatchReport(path string, rows []MatchRow, generatedAt time.Time) error {
	f, err := MatchWorkbook(rows, generatedAt)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report %s: %w", path, err)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
