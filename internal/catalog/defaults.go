package catalog

import "github.com/hyperjump/ecolaudo/internal/models"

// AbdominalOrgans are the organs of an abdominal ultrasound, in report order.
var AbdominalOrgans = []string{
	"Estômago", "Fígado", "Baço", "Rim Esquerdo", "Rim Direito",
	"Vesícula Urinária", "Adrenal Esquerda", "Adrenal Direita",
	"Duodeno", "Jejuno", "Cólon", "Ceco", "Íleo", "Linfonodos",
}

// EchoStructures are the structures assessed in an echocardiogram.
var EchoStructures = []string{
	"Valva Mitral", "Valva Aórtica", "Ventrículo Esquerdo", "Átrio Esquerdo",
	"Saepto Interventricular", "Pericárdio", "Análise Doppler",
}

// ECGItems are the items of an electrocardiogram report.
var ECGItems = []string{
	"Ritmo e Frequência", "Eixo Elétrico", "Onda P", "Complexo QRS",
	"Segmento ST", "Onda T", "Intervalos (PR, QT)", "Conclusão ECG",
}

var abdominalTemplates = []struct {
	category, title, text string
}{
	{models.CategoryNormal, "Normal", "com dimensões, contornos, ecogenicidade e ecotextura preservados."},
	{models.CategoryFinding, "Alteração de ecogenicidade", "apresenta alteração de ecogenicidade, com áreas hiperecóicas difusas."},
	{models.CategoryFinding, "Aumento de dimensões", "com aumento de dimensões em relação aos padrões de referência para a espécie."},
}

// DefaultTemplates returns the built-in phrase catalog: three phrases per abdominal organ
// followed by one normal phrase per echocardiogram structure and per ECG item.
func DefaultTemplates() []*models.TemplateText {
	var out []*models.TemplateText
	for i, organ := range AbdominalOrgans {
		for k, tpl := range abdominalTemplates {
			out = append(out, &models.TemplateText{
				Organ:    organ,
				Category: tpl.category,
				Title:    models.LocalizedText(tpl.title),
				Text:     models.LocalizedText(tpl.text),
				Order:    i*10 + k,
			})
		}
	}

	echoStart := len(AbdominalOrgans) * 10
	for i, s := range EchoStructures {
		out = append(out, &models.TemplateText{
			Organ:    s,
			Category: models.CategoryNormal,
			Title:    "Normal",
			Text:     models.LocalizedText("Avaliação de " + s + " dentro dos padrões de normalidade."),
			Order:    echoStart + i*10,
		})
	}

	ecgStart := (len(AbdominalOrgans) + len(EchoStructures)) * 10
	for i, item := range ECGItems {
		out = append(out, &models.TemplateText{
			Organ:    item,
			Category: models.CategoryNormal,
			Title:    "Normal",
			Text:     models.LocalizedText(item + ": Dentro dos limites da normalidade."),
			Order:    ecgStart + i*10,
		})
	}
	return out
}

type sizeRange struct {
	size     string
	min, max float64
}

var defaultRanges = []struct {
	organ, measurement string
	ranges             []sizeRange
}{
	{"Rim Esquerdo", "comprimento", []sizeRange{{models.SizeSmall, 3.5, 5.5}, {models.SizeMedium, 5.0, 7.0}, {models.SizeLarge, 6.5, 9.0}}},
	{"Rim Direito", "comprimento", []sizeRange{{models.SizeSmall, 3.5, 5.5}, {models.SizeMedium, 5.0, 7.0}, {models.SizeLarge, 6.5, 9.0}}},
	{"Fígado", "espessura", []sizeRange{{models.SizeSmall, 2.0, 4.0}, {models.SizeMedium, 3.0, 5.5}, {models.SizeLarge, 4.0, 7.0}}},
	{"Baço", "espessura", []sizeRange{{models.SizeSmall, 0.5, 1.5}, {models.SizeMedium, 1.0, 2.0}, {models.SizeLarge, 1.5, 2.5}}},
}

// DefaultReferenceValues returns the built-in canine reference ranges, in centimeters.
func DefaultReferenceValues() []*models.ReferenceValue {
	var out []*models.ReferenceValue
	for _, d := range defaultRanges {
		for _, r := range d.ranges {
			out = append(out, &models.ReferenceValue{
				Organ:           d.organ,
				MeasurementType: d.measurement,
				Species:         models.SpeciesDog,
				Size:            r.size,
				MinValue:        r.min,
				MaxValue:        r.max,
				Unit:            models.UnitCentimeters,
			})
		}
	}
	return out
}
