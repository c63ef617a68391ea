package matching

import "github.com/odonto/odonto/internal/domain/patient"

// Partition splits a roster into identified and unidentified records,
// preserving input order within each group.
func Partition(roster []*patient.Patient) (identified, unidentified []*patient.Patient) {
	for _, p := range roster {
		if p == nil {
			continue
		}
		if p.Identified() {
			identified = append(identified, p)
		} else {
			unidentified = append(unidentified, p)
		}
	}
	return identified, unidentified
}

// MatchAll runs Rank for every unidentified patient of the roster against
// its identified subset. Results follow the input order of the unidentified
// patients; those with no candidate above the threshold are omitted.
func (m *Matcher) MatchAll(roster []*patient.Patient) []MatchResult {
	results := []MatchResult{}
	identified, unidentified := Partition(roster)
	if len(identified) == 0 {
		return results
	}
	for _, u := range unidentified {
		candidates := m.Rank(u, identified)
		if len(candidates) == 0 {
			continue
		}
		results = append(results, MatchResult{Patient: u, Candidates: candidates})
	}
	return results
}
