// Package narrative turns the examined state of an organ into report prose.
package narrative

import (
	"strings"

	"github.com/hyperjump/ecolaudo/internal/markup"
	"github.com/hyperjump/ecolaudo/internal/models"
	"github.com/hyperjump/ecolaudo/pkg/utils"
)

const (
	// Placeholder is replaced with the measurement phrase inside report text.
	Placeholder = "{MEDIDA}"

	measuringPrefix = "medindo aproximadamente "
	unitLabel       = " cm"
	axisSeparator   = "×"
)

// Policy identifies which composition rule produced a section.
type Policy int

const (
	PolicySkipped Policy = iota
	PolicyPlaceholder
	PolicyMeasurementPrefix
	PolicyNamePrefix
	PolicyMeasurementOnly
)

// Section is the composed prose of one organ.
type Section struct {
	Organ  string
	Text   string
	Runs   []markup.Run
	Policy Policy
}

// FormatMeasurements renders measurement values as a magnitude string.
// Adrenal glands with three or more values keep only the first three axes.
// The label is always "cm", whatever unit the values were stored in.
func FormatMeasurements(organName string, values []float64) string {
	if len(values) == 0 {
		return ""
	}
	if isAdrenal(organName) && len(values) >= 3 {
		values = values[:3]
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = utils.FormatDecimal(v)
	}
	return strings.Join(parts, axisSeparator) + unitLabel
}

func isAdrenal(organName string) bool {
	return strings.Contains(strings.ToLower(organName), "adrenal")
}

// Compose builds the section for organ. It reports false when the organ has
// neither report text nor measurements and must be left out of the report.
func Compose(organ models.OrganData) (Section, bool) {
	measured := FormatMeasurements(organ.OrganName, organ.Measurements.Values())
	sec := Section{Organ: organ.OrganName}

	switch {
	case organ.ReportText != "" && measured != "" && strings.Contains(organ.ReportText, Placeholder):
		sec.Policy = PolicyPlaceholder
		sec.Text = strings.ReplaceAll(organ.ReportText, Placeholder, measuringPrefix+measured)
		sec.Runs = markup.Parse(sec.Text)
	case organ.ReportText != "" && measured != "":
		sec.Policy = PolicyMeasurementPrefix
		sec.Text = organ.OrganName + " " + measuringPrefix + measured + ", " + organ.ReportText
		sec.Runs = markup.Parse(sec.Text)
	case organ.ReportText != "":
		sec.Policy = PolicyNamePrefix
		sec.Text = organ.OrganName + " " + organ.ReportText
		sec.Runs = markup.Parse(sec.Text)
	case measured != "":
		sec.Policy = PolicyMeasurementOnly
		sec.Text = organ.OrganName + " " + measuringPrefix + measured + "."
		sec.Runs = []markup.Run{{Text: sec.Text}}
	default:
		return Section{}, false
	}
	return sec, true
}

// ComposeAll composes every organ in order, leaving out skipped ones.
func ComposeAll(organs []models.OrganData) []Section {
	var out []Section
	for _, o := range organs {
		if sec, ok := Compose(o); ok {
			out = append(out, sec)
		}
	}
	return out
}
