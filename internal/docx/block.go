package docx

import (
	"encoding/xml"
	"strconv"
	"strings"
)

const (
	twipsPerInch = 1440
	emuPerInch   = 914400
)

// Alignment is a paragraph justification.
type Alignment int

const (
	AlignDefault Alignment = iota
	AlignLeft
	AlignCenter
	AlignJustify
)

func (a Alignment) val() string {
	switch a {
	case AlignLeft:
		return "left"
	case AlignCenter:
		return "center"
	case AlignJustify:
		return "both"
	default:
		return ""
	}
}

// Block is a body element: *Paragraph or *Table.
type Block interface {
	writeXML(b *strings.Builder)
}

// Run is a span of text with one character style, or an inline picture, or a page break.
type Run struct {
	Text      string
	Bold      bool
	Italic    bool
	SizePt    float64
	Picture   *Picture
	PageBreak bool
}

// Paragraph is a body or table-cell paragraph.
type Paragraph struct {
	Style string
	Align Alignment
	Runs  []Run
}

// AddRun appends r and returns p.
func (p *Paragraph) AddRun(r Run) *Paragraph {
	p.Runs = append(p.Runs, r)
	return p
}

// Text returns the concatenated run text.
func (p *Paragraph) Text() string {
	var b strings.Builder
	for _, r := range p.Runs {
		b.WriteString(r.Text)
	}
	return b.String()
}

// IsPageBreak reports whether p only carries a page break.
func (p *Paragraph) IsPageBreak() bool {
	return len(p.Runs) == 1 && p.Runs[0].PageBreak
}

// HasPicture reports whether any run of p is a picture.
func (p *Paragraph) HasPicture() bool {
	for _, r := range p.Runs {
		if r.Picture != nil {
			return true
		}
	}
	return false
}

func (p *Paragraph) writeXML(b *strings.Builder) {
	b.WriteString("<w:p>")
	if p.Style != "" || p.Align != AlignDefault {
		b.WriteString("<w:pPr>")
		if p.Style != "" {
			b.WriteString(`<w:pStyle w:val="` + escapeAttr(p.Style) + `"/>`)
		}
		if v := p.Align.val(); v != "" {
			b.WriteString(`<w:jc w:val="` + v + `"/>`)
		}
		b.WriteString("</w:pPr>")
	}
	for _, r := range p.Runs {
		r.writeXML(b)
	}
	b.WriteString("</w:p>")
}

func (r Run) writeXML(b *strings.Builder) {
	b.WriteString("<w:r>")
	if r.Bold || r.Italic || r.SizePt > 0 {
		b.WriteString("<w:rPr>")
		if r.Bold {
			b.WriteString("<w:b/><w:bCs/>")
		}
		if r.Italic {
			b.WriteString("<w:i/><w:iCs/>")
		}
		if r.SizePt > 0 {
			hp := strconv.Itoa(int(r.SizePt*2 + 0.5))
			b.WriteString(`<w:sz w:val="` + hp + `"/><w:szCs w:val="` + hp + `"/>`)
		}
		b.WriteString("</w:rPr>")
	}
	switch {
	case r.PageBreak:
		b.WriteString(`<w:br w:type="page"/>`)
	case r.Picture != nil:
		r.Picture.writeXML(b)
	default:
		writeText(b, r.Text)
	}
	b.WriteString("</w:r>")
}

// writeText emits text, turning newlines into line breaks and tabs into tab stops.
func writeText(b *strings.Builder, text string) {
	start := 0
	flush := func(end int) {
		if end > start {
			b.WriteString(`<w:t xml:space="preserve">`)
			_ = xml.EscapeText(b, []byte(text[start:end]))
			b.WriteString("</w:t>")
		}
	}
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '\n':
			flush(i)
			b.WriteString("<w:br/>")
			start = i + 1
		case '\t':
			flush(i)
			b.WriteString("<w:tab/>")
			start = i + 1
		case '\r':
			flush(i)
			start = i + 1
		}
	}
	flush(len(text))
}

// Cell is one table cell.
type Cell struct {
	Paragraphs []*Paragraph
}

// AddParagraph appends a paragraph with runs to the cell.
func (c *Cell) AddParagraph(runs ...Run) *Paragraph {
	p := &Paragraph{Runs: runs}
	c.Paragraphs = append(c.Paragraphs, p)
	return p
}

// IsEmpty reports whether the cell holds no paragraphs.
func (c *Cell) IsEmpty() bool {
	return len(c.Paragraphs) == 0
}

// Table is a fixed-layout grid with equal column widths.
type Table struct {
	CellWidthInches float64
	cells           [][]*Cell
}

func newTable(rows, cols int, cellWidthInches float64) *Table {
	t := &Table{CellWidthInches: cellWidthInches, cells: make([][]*Cell, rows)}
	for r := range t.cells {
		t.cells[r] = make([]*Cell, cols)
		for c := range t.cells[r] {
			t.cells[r][c] = &Cell{}
		}
	}
	return t
}

// Rows returns the row count.
func (t *Table) Rows() int { return len(t.cells) }

// Cols returns the column count.
func (t *Table) Cols() int {
	if len(t.cells) == 0 {
		return 0
	}
	return len(t.cells[0])
}

// Cell returns the cell at row r, column c.
func (t *Table) Cell(r, c int) *Cell {
	return t.cells[r][c]
}

func (t *Table) writeXML(b *strings.Builder) {
	w := strconv.Itoa(int(t.CellWidthInches * twipsPerInch))
	total := strconv.Itoa(int(t.CellWidthInches*twipsPerInch) * t.Cols())
	b.WriteString("<w:tbl><w:tblPr>")
	b.WriteString(`<w:tblW w:w="` + total + `" w:type="dxa"/>`)
	b.WriteString(`<w:tblLayout w:type="fixed"/><w:tblLook w:val="04A0"/>`)
	b.WriteString("</w:tblPr><w:tblGrid>")
	for i := 0; i < t.Cols(); i++ {
		b.WriteString(`<w:gridCol w:w="` + w + `"/>`)
	}
	b.WriteString("</w:tblGrid>")
	for _, row := range t.cells {
		b.WriteString("<w:tr>")
		for _, cell := range row {
			b.WriteString(`<w:tc><w:tcPr><w:tcW w:w="` + w + `" w:type="dxa"/></w:tcPr>`)
			if cell.IsEmpty() {
				// every cell needs at least one paragraph
				b.WriteString("<w:p/>")
			}
			for _, p := range cell.Paragraphs {
				p.writeXML(b)
			}
			b.WriteString("</w:tc>")
		}
		b.WriteString("</w:tr>")
	}
	b.WriteString("</w:tbl>")
}

func escapeAttr(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
