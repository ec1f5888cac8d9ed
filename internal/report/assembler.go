// Package report lays exam data out as a .docx report and exports it to disk.
package report

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hyperjump/ecolaudo/internal/docx"
	"github.com/hyperjump/ecolaudo/internal/markup"
	"github.com/hyperjump/ecolaudo/internal/models"
	"github.com/hyperjump/ecolaudo/internal/narrative"
	"github.com/hyperjump/ecolaudo/pkg/utils"
)

// Report wording.
const (
	DefaultTitle        = "LAUDO DE ULTRASSONOGRAFIA ABDOMINAL"
	patientHeading      = "Dados do Paciente"
	findingsHeading     = "Achados Ultrassonográficos"
	galleryHeading      = "Imagens do Exame"
	imagesPerBatch      = 6
	galleryRows         = 3
	galleryCols         = 2
	captionSizePt       = 8
	dateLayout          = "02/01/2006"
	defaultImageWidthIn = 2.5
	defaultCellWidthIn  = 3.2
)

// fallbackSizes are the point sizes of emulated headings, by level.
var fallbackSizes = map[int]float64{1: 16, 2: 14, 3: 12}

// FileReader reads a whole file.
type FileReader interface {
	ReadFile(path string) ([]byte, error)
}

// Layout holds the configurable wording and dimensions of a report.
type Layout struct {
	Title            string
	ImageWidthInches float64
	CellWidthInches  float64
}

// DefaultLayout returns the standard report layout.
func DefaultLayout() Layout {
	return Layout{Title: DefaultTitle, ImageWidthInches: defaultImageWidthIn, CellWidthInches: defaultCellWidthIn}
}

func (l Layout) withDefaults() Layout {
	d := DefaultLayout()
	if l.Title == "" {
		l.Title = d.Title
	}
	if l.ImageWidthInches <= 0 {
		l.ImageWidthInches = d.ImageWidthInches
	}
	if l.CellWidthInches <= 0 {
		l.CellWidthInches = d.CellWidthInches
	}
	return l
}

// Stage is a step of report assembly. Stages run in declaration order, each once.
type Stage int

const (
	StageHeader Stage = iota
	StageTitle
	StagePatient
	StageFindings
	StageGallery
	StageFinalized
)

func (s Stage) String() string {
	switch s {
	case StageHeader:
		return "header"
	case StageTitle:
		return "title"
	case StagePatient:
		return "patient"
	case StageFindings:
		return "findings"
	case StageGallery:
		return "gallery"
	case StageFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Assembler builds report documents. It holds no per-report state and is safe for concurrent use
// when its FileReader is.
type Assembler struct {
	files  FileReader
	layout Layout
	logger *zap.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger used for recovered failures.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithLayout overrides the report layout; zero fields keep their defaults.
func WithLayout(l Layout) Option {
	return func(a *Assembler) { a.layout = l.withDefaults() }
}

// NewAssembler returns an Assembler reading letterheads and images through files.
func NewAssembler(files FileReader, opts ...Option) *Assembler {
	a := &Assembler{files: files, layout: DefaultLayout(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble builds the report of exam. Unreadable letterheads and images, and heading
// styles missing from a letterhead, are recovered from and logged; they never fail the report.
func (a *Assembler) Assemble(exam *models.Exam, patient *models.Patient, settings *models.Settings) (*docx.Document, error) {
	if exam == nil || patient == nil {
		return nil, errors.New("assemble: exam and patient are required")
	}
	if settings == nil {
		settings = models.DefaultSettings()
	}
	b := &build{
		a:       a,
		exam:    exam,
		patient: patient,
		logger:  a.logger.With(zap.String("exam_id", exam.ID)),
	}
	b.header(settings)
	b.title()
	b.patientBlock()
	b.findings()
	b.gallery()
	b.enter(StageFinalized)
	return b.doc, nil
}

// build carries the state of one assembly.
type build struct {
	a       *Assembler
	exam    *models.Exam
	patient *models.Patient
	logger  *zap.Logger

	doc   *docx.Document
	stage Stage
}

func (b *build) enter(next Stage) {
	if b.doc != nil && next <= b.stage {
		panic(fmt.Sprintf("report: stage %s after %s", next, b.stage))
	}
	b.stage = next
	b.logger.Debug("report stage", zap.Stringer("stage", next))
}

func (b *build) header(settings *models.Settings) {
	b.enter(StageHeader)
	if settings.HasLetterhead() {
		doc, err := b.openLetterhead(settings.LetterheadPath)
		if err == nil {
			b.doc = doc
			b.logger.Debug("using letterhead", zap.String("path", settings.LetterheadPath))
			return
		}
		b.logger.Warn("letterhead unusable, falling back to text header",
			zap.String("path", settings.LetterheadPath), zap.Error(err))
	}
	b.doc = docx.New()
	if settings.ClinicName == "" {
		return
	}
	b.heading(settings.ClinicName, 1, docx.AlignCenter, docx.AlignCenter)
	if settings.ClinicAddress != "" {
		b.doc.AddParagraph(docx.Run{Text: settings.ClinicAddress}).Align = docx.AlignCenter
	}
	if settings.VeterinarianName != "" || settings.CRMV != "" {
		line := settings.VeterinarianName + " - CRMV: " + settings.CRMV
		b.doc.AddParagraph(docx.Run{Text: line}).Align = docx.AlignCenter
	}
	b.spacer()
}

func (b *build) openLetterhead(path string) (*docx.Document, error) {
	data, err := b.a.files.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return docx.Open(data)
}

func (b *build) title() {
	b.enter(StageTitle)
	b.heading(b.a.layout.Title, 1, docx.AlignCenter, docx.AlignCenter)
	b.spacer()
}

func (b *build) patientBlock() {
	b.enter(StagePatient)
	p := b.patient
	b.heading(patientHeading, 2, docx.AlignDefault, docx.AlignLeft)

	b.line("Nome: "+p.Name, docx.AlignJustify)
	b.line("Espécie: "+speciesLabel(p.Species), docx.AlignJustify)
	b.line("Raça: "+p.Breed, docx.AlignJustify)
	b.line("Peso: "+utils.FormatDecimal(b.exam.EffectiveWeight(p))+" kg", docx.AlignDefault)
	b.line("Porte: "+capitalize(p.Size), docx.AlignDefault)
	b.line("Sexo: "+sexLabel(p.Sex), docx.AlignDefault)
	if p.IsNeutered {
		b.line("Paciente Castrado", docx.AlignDefault)
	}
	if p.OwnerName != "" {
		b.line("Tutor: "+p.OwnerName, docx.AlignDefault)
	}
	b.line("Data do Exame: "+b.exam.ExamDate.Format(dateLayout), docx.AlignDefault)
	b.spacer()
}

func (b *build) findings() {
	b.enter(StageFindings)
	b.heading(findingsHeading, 2, docx.AlignDefault, docx.AlignLeft)
	for _, organ := range b.exam.OrgansData {
		sec, ok := narrative.Compose(organ)
		if !ok {
			continue
		}
		b.heading(sec.Organ, 3, docx.AlignDefault, docx.AlignLeft)
		p := b.doc.AddParagraph(toRuns(sec.Runs)...)
		p.Align = docx.AlignJustify
		b.spacer()
	}
}

func (b *build) gallery() {
	b.enter(StageGallery)
	images := b.exam.Images
	if len(images) == 0 {
		return
	}
	b.doc.AddPageBreak()
	b.heading(galleryHeading, 2, docx.AlignCenter, docx.AlignCenter)

	for start := 0; start < len(images); start += imagesPerBatch {
		if start > 0 {
			b.spacer()
		}
		table := b.doc.AddTable(galleryRows, galleryCols, b.a.layout.CellWidthInches)
		end := min(start+imagesPerBatch, len(images))
		for idx, img := range images[start:end] {
			b.placeImage(table.Cell(idx/galleryCols, idx%galleryCols), img)
		}
		if end < len(images) {
			b.doc.AddPageBreak()
		}
	}
}

// placeImage fills cell with img and its caption; an unreadable image leaves the cell empty.
func (b *build) placeImage(cell *docx.Cell, img models.ExamImage) {
	data, err := b.a.files.ReadFile(img.Path)
	if err != nil {
		b.logger.Warn("skipping unreadable image", zap.String("image_id", img.ID), zap.String("path", img.Path), zap.Error(err))
		return
	}
	pic, err := b.doc.EmbedImage(data, b.a.layout.ImageWidthInches)
	if err != nil {
		b.logger.Warn("skipping undecodable image", zap.String("image_id", img.ID), zap.String("path", img.Path), zap.Error(err))
		return
	}
	cell.AddParagraph(docx.Run{Picture: pic}).Align = docx.AlignCenter
	if organ := img.OrganTag(); organ != "" {
		cell.AddParagraph(docx.Run{Text: organ, Italic: true, SizePt: captionSizePt}).Align = docx.AlignCenter
	}
}

// heading emits a heading of level, or a bold enlarged paragraph when the document
// has no such heading style.
func (b *build) heading(text string, level int, styled, fallback docx.Alignment) {
	if id, ok := b.doc.HeadingStyle(level); ok {
		p := b.doc.AddParagraph(docx.Run{Text: text})
		p.Style = id
		p.Align = styled
		return
	}
	b.logger.Debug("heading style unavailable, emulating", zap.Int("level", level), zap.String("text", text))
	p := b.doc.AddParagraph(docx.Run{Text: text, Bold: true, SizePt: fallbackSizes[level]})
	p.Align = fallback
}

func (b *build) line(text string, align docx.Alignment) {
	b.doc.AddParagraph(docx.Run{Text: text}).Align = align
}

func (b *build) spacer() {
	b.doc.AddParagraph()
}

func toRuns(runs []markup.Run) []docx.Run {
	out := make([]docx.Run, len(runs))
	for i, r := range runs {
		out[i] = docx.Run{Text: r.Text, Bold: r.Bold, Italic: r.Italic}
	}
	return out
}

func speciesLabel(species string) string {
	if species == models.SpeciesDog {
		return "Canino"
	}
	return "Felino"
}

func sexLabel(sex string) string {
	if sex == models.SexMale {
		return "Macho"
	}
	return "Fêmea"
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
