package patient

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// MaxTeeth is the largest plausible tooth count for one dentition
// (32 permanent plus 20 deciduous in a mixed dentition).
const MaxTeeth = 52

type ToothStatus string

const (
	ToothPresent   ToothStatus = "present"
	ToothMissing   ToothStatus = "missing"
	ToothExtracted ToothStatus = "extracted"
	ToothImplant   ToothStatus = "implant"
	ToothUnerupted ToothStatus = "unerupted"
)

const ConditionCaries = "caries"

// ToothCondition is a finding recorded against a single tooth.
type ToothCondition struct {
	Code    string  `json:"code"`
	Surface *string `json:"surface,omitempty"`
	Active  bool    `json:"active"`
}

// Tooth is one odontogram entry, numbered with the FDI two-digit notation.
type Tooth struct {
	Number     int              `json:"number"`
	Status     ToothStatus      `json:"status"`
	Conditions []ToothCondition `json:"conditions,omitempty"`
}

// Odontogram is the per-tooth dental chart.
type Odontogram struct {
	Teeth []Tooth `json:"teeth"`
}

func (t Tooth) present() bool {
	switch t.Status {
	case ToothMissing, ToothExtracted, ToothUnerupted:
		return false
	}
	return true
}

// PresentTeeth counts teeth that are physically in the mouth. Implants
// count as present since they are visible on charting.
func (o *Odontogram) PresentTeeth() int {
	n := 0
	for _, t := range o.Teeth {
		if t.present() {
			n++
		}
	}
	return n
}

// HasActiveCaries reports whether any present tooth carries an active
// caries condition.
func (o *Odontogram) HasActiveCaries() bool {
	for _, t := range o.Teeth {
		if !t.present() {
			continue
		}
		for _, c := range t.Conditions {
			if c.Active && strings.EqualFold(c.Code, ConditionCaries) {
				return true
			}
		}
	}
	return false
}

// Patient is an identification record. A non-empty name marks the record
// as identified; the flat teeth_count and active_caries fields are the
// legacy chart summary and take precedence over the odontogram when set.
type Patient struct {
	ID           string      `db:"id" json:"id"`
	Name         *string     `db:"name" json:"name,omitempty"`
	CaseID       string      `db:"case_id" json:"case_id"`
	TeethCount   *int        `db:"teeth_count" json:"teeth_count,omitempty"`
	ActiveCaries *bool       `db:"active_caries" json:"active_caries,omitempty"`
	Odontogram   *Odontogram `db:"odontogram" json:"odontogram,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// DisplayName returns the NFC-normalized, trimmed name, or "" when unset.
func (p *Patient) DisplayName() string {
	if p.Name == nil {
		return ""
	}
	return norm.NFC.String(strings.TrimSpace(*p.Name))
}

func (p *Patient) Identified() bool {
	return p.DisplayName() != ""
}

// DentalSummary resolves the tooth count and active-caries flag used for
// matching. ok is false when neither the legacy fields nor the odontogram
// supply both values.
func (p *Patient) DentalSummary() (teeth int, caries bool, ok bool) {
	var teethSet, cariesSet bool
	if p.TeethCount != nil {
		teeth, teethSet = *p.TeethCount, true
	}
	if p.ActiveCaries != nil {
		caries, cariesSet = *p.ActiveCaries, true
	}
	if p.Odontogram != nil && len(p.Odontogram.Teeth) > 0 {
		if !teethSet {
			teeth, teethSet = p.Odontogram.PresentTeeth(), true
		}
		if !cariesSet {
			caries, cariesSet = p.Odontogram.HasActiveCaries(), true
		}
	}
	if !teethSet || !cariesSet || teeth < 0 {
		return 0, false, false
	}
	return teeth, caries, true
}
