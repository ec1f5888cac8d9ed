package catalog

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hyperjump/ecolaudo/internal/models"
)

func TestEvaluate(t *testing.T) {
	refs := DefaultReferenceValues()
	patient := &models.Patient{Species: models.SpeciesDog, Size: models.SizeMedium}

	liver := models.OrganData{OrganName: "Fígado"}
	liver.Measurements.Set("espessura", models.Measurement{Value: 6, Unit: "cm"})
	kidney := models.OrganData{OrganName: "Rim Esquerdo"}
	kidney.Measurements.Set("Comprimento", models.Measurement{Value: 55, Unit: "mm", IsAbnormal: true})
	kidney.Measurements.Set("largura", models.Measurement{Value: 9, Unit: "cm", IsAbnormal: true})
	exam := &models.Exam{OrgansData: []models.OrganData{liver, kidney, {OrganName: "Baço"}}}

	got := Evaluate(exam, patient, refs)

	want := []Evaluation{
		{Organ: "Fígado", Slot: "espessura", Value: 6, Unit: "cm", MinValue: 3, MaxValue: 5.5, RangeUnit: "cm", IsAbnormal: true},
		{Organ: "Rim Esquerdo", Slot: "Comprimento", Value: 55, Unit: "mm", MinValue: 5, MaxValue: 7, RangeUnit: "cm", IsAbnormal: false},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Evaluate() mismatch (-want +got):\n%s", diff)
	}

	m, _ := exam.OrgansData[0].Measurements.Get("espessura")
	if !m.IsAbnormal {
		t.Error("liver thickness should be flagged")
	}
	m, _ = exam.OrgansData[1].Measurements.Get("Comprimento")
	if m.IsAbnormal {
		t.Error("55 mm is inside 5.0-7.0 cm and should be cleared")
	}
	m, _ = exam.OrgansData[1].Measurements.Get("largura")
	if !m.IsAbnormal {
		t.Error("a measurement without a range keeps its flag")
	}
}

func TestEvaluate_BoundsInclusive(t *testing.T) {
	refs := []*models.ReferenceValue{{Organ: "Baço", MeasurementType: "espessura", Species: "cat", Size: "small", MinValue: 0.5, MaxValue: 1.5, Unit: "cm"}}
	for _, v := range []float64{0.5, 1.5} {
		organ := models.OrganData{OrganName: "Baço"}
		organ.Measurements.Set("espessura", models.Measurement{Value: v, Unit: "cm"})
		exam := &models.Exam{OrgansData: []models.OrganData{organ}}
		got := Evaluate(exam, &models.Patient{Species: "cat", Size: "small"}, refs)
		if len(got) != 1 || got[0].IsAbnormal {
			t.Errorf("value %v: got %+v, want in range", v, got)
		}
	}
}
