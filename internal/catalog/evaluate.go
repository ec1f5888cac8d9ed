package catalog

import (
	"strings"

	"github.com/hyperjump/ecolaudo/internal/models"
)

// Evaluation is the outcome of checking one measurement against its reference range.
type Evaluation struct {
	Organ      string  `json:"organ"`
	Slot       string  `json:"slot"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit"`
	MinValue   float64 `json:"min_value"`
	MaxValue   float64 `json:"max_value"`
	RangeUnit  string  `json:"range_unit"`
	IsAbnormal bool    `json:"is_abnormal"`
}

// Evaluate sets IsAbnormal on every measurement of exam that has a reference range for its
// organ, its slot name and the patient's species and size. Measurements without a range keep
// their current flag. The first matching range wins.
func Evaluate(exam *models.Exam, patient *models.Patient, refs []*models.ReferenceValue) []Evaluation {
	var out []Evaluation
	for i := range exam.OrgansData {
		organ := &exam.OrgansData[i]
		for j := range organ.Measurements {
			nm := &organ.Measurements[j]
			ref := findRange(refs, organ.OrganName, nm.Slot, patient)
			if ref == nil {
				continue
			}
			nm.IsAbnormal = !ref.Contains(nm.Measurement)
			out = append(out, Evaluation{
				Organ:      organ.OrganName,
				Slot:       nm.Slot,
				Value:      nm.Value,
				Unit:       nm.Unit,
				MinValue:   ref.MinValue,
				MaxValue:   ref.MaxValue,
				RangeUnit:  ref.Unit,
				IsAbnormal: nm.IsAbnormal,
			})
		}
	}
	return out
}

func findRange(refs []*models.ReferenceValue, organ, slot string, p *models.Patient) *models.ReferenceValue {
	for _, r := range refs {
		if r.Organ == organ && r.Species == p.Species && r.Size == p.Size &&
			strings.EqualFold(strings.TrimSpace(r.MeasurementType), strings.TrimSpace(slot)) {
			return r
		}
	}
	return nil
}
