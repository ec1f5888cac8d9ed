package catalog

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/ecolaudo/internal/models"
)

const referenceSheet = "Valores de Referência"

var referenceColumns = []string{"organ", "measurement_type", "species", "size", "min_value", "max_value", "unit"}

// WriteReferenceValues writes refs as an .xlsx workbook with a header row and one range per row.
func WriteReferenceValues(w io.Writer, refs []*models.ReferenceValue) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", referenceSheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	header := make([]any, len(referenceColumns))
	for i, c := range referenceColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(referenceSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(referenceColumns))
	if err := f.SetCellStyle(referenceSheet, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, r := range refs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{r.Organ, r.MeasurementType, r.Species, r.Size, r.MinValue, r.MaxValue, r.Unit}
		if err := f.SetSheetRow(referenceSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(referenceSheet, "A", lastCol, 18); err != nil {
		return fmt.Errorf("column width: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// ReadReferenceValues reads ranges from the first sheet of an .xlsx workbook. Columns are
// found by header name, in any order; blank rows are skipped. Decimal commas are accepted.
// Every row is validated and the first invalid one fails the whole read.
func ReadReferenceValues(r io.Reader) ([]*models.ReferenceValue, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("get rows for sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := make(map[string]int)
	for i, name := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, c := range referenceColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}

	var out []*models.ReferenceValue
	for n, row := range rows[1:] {
		line := n + 2
		get := func(col string) string {
			i := cols[col]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		if strings.TrimSpace(strings.Join(row, "")) == "" {
			continue
		}
		minV, err := parseDecimal(get("min_value"))
		if err != nil {
			return nil, fmt.Errorf("row %d: min_value: %w", line, err)
		}
		maxV, err := parseDecimal(get("max_value"))
		if err != nil {
			return nil, fmt.Errorf("row %d: max_value: %w", line, err)
		}
		ref := &models.ReferenceValue{
			Organ:           get("organ"),
			MeasurementType: get("measurement_type"),
			Species:         strings.ToLower(get("species")),
			Size:            strings.ToLower(get("size")),
			MinValue:        minV,
			MaxValue:        maxV,
			Unit:            strings.ToLower(get("unit")),
		}
		if ref.Unit == "" {
			ref.Unit = models.UnitCentimeters
		}
		if err := ref.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		out = append(out, ref)
	}
	return out, nil
}

func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}
