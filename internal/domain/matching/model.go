package matching

import "github.com/odonto/odonto/internal/domain/patient"

// AttributeMatch is the per-attribute breakdown of a comparison.
type AttributeMatch struct {
	ToothCount     bool `json:"tooth_count"`
	ActiveCaries   bool `json:"active_caries"`
	Identification bool `json:"identification"`
}

// MatchCandidate is one identified patient scored against an unidentified one.
type MatchCandidate struct {
	Patient   *patient.Patient `json:"patient"`
	Score     float64          `json:"score"` // 0 to 100
	Breakdown AttributeMatch   `json:"breakdown"`
}

// MatchResult groups an unidentified patient with its ranked candidates.
type MatchResult struct {
	Patient    *patient.Patient `json:"patient"`
	Candidates []MatchCandidate `json:"candidates"`
}
