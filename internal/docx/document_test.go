package docx

import (
	"archive/zip"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readPart(t *testing.T, data []byte, name string) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		return string(b)
	}
	t.Fatalf("part %s not found", name)
	return ""
}

func buildZip(t *testing.T, files map[string]string, order []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range order {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func letterhead(t *testing.T, styles string) []byte {
	t.Helper()
	files := map[string]string{
		contentTypesPath: `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override ContentType="` + mainContentType + `" PartName="/word/document.xml"/></Types>`,
		rootRelsPath: blankRootRels,
		"word/_rels/document.xml.rels": `<?xml version="1.0"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="` + stylesRelType + `" Target="styles.xml"/>` +
			`<Relationship Id="rId7" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/header" Target="header1.xml"/>` +
			`</Relationships>`,
		"word/styles.xml":  styles,
		"word/header1.xml": `<w:hdr xmlns:w="` + nsW + `"><w:p><w:r><w:t>Clínica Timbrada</w:t></w:r></w:p></w:hdr>`,
		"word/document.xml": `<?xml version="1.0"?><w:document xmlns:w="` + nsW + `" xmlns:r="` + nsR + `">` +
			`<w:body w:rsid="1"><w:p w:rsidR="00A1"><w:r><w:t>texto antigo</w:t></w:r></w:p>` +
			`<w:p><w:pPr><w:sectPr><w:pgSz w:w="1"/></w:sectPr></w:pPr></w:p>` +
			`<w:sectPr w:rsidR="00A1"><w:headerReference w:type="default" r:id="rId7"/><w:pgSz w:w="11906" w:h="16838"/></w:sectPr>` +
			`</w:body></w:document>`,
	}
	return buildZip(t, files, []string{contentTypesPath, rootRelsPath, "word/document.xml", "word/_rels/document.xml.rels", "word/styles.xml", "word/header1.xml"})
}

func TestNew_HeadingStyles(t *testing.T) {
	d := New()
	for level, want := range map[int]string{1: "Heading1", 2: "Heading2", 3: "Heading3"} {
		id, ok := d.HeadingStyle(level)
		assert.True(t, ok)
		assert.Equal(t, want, id)
	}
	_, ok := d.HeadingStyle(4)
	assert.False(t, ok)
}

func TestNew_Serialize(t *testing.T) {
	d := New()
	d.AddParagraph(Run{Text: "Título", Bold: true, SizePt: 16}).Align = AlignCenter
	p := d.AddParagraph(Run{Text: "a < b & c\nlinha\tfim"})
	p.Align = AlignJustify
	d.AddPageBreak()

	data, err := d.Bytes()
	require.NoError(t, err)

	doc := readPart(t, data, "word/document.xml")
	assert.Contains(t, doc, `<w:jc w:val="center"/>`)
	assert.Contains(t, doc, `<w:b/>`)
	assert.Contains(t, doc, `<w:sz w:val="32"/>`)
	assert.Contains(t, doc, `a &lt; b &amp; c</w:t><w:br/><w:t xml:space="preserve">linha</w:t><w:tab/>`)
	assert.Contains(t, doc, `<w:jc w:val="both"/>`)
	assert.Contains(t, doc, `<w:br w:type="page"/>`)
	assert.True(t, strings.HasSuffix(doc, blankSectPr+"</w:body></w:document>"))

	assert.Contains(t, readPart(t, data, "word/styles.xml"), `w:styleId="Heading2"`)
}

func TestWrite_Deterministic(t *testing.T) {
	build := func() []byte {
		d := New()
		d.AddParagraph(Run{Text: "mesmo conteúdo"})
		pic, err := d.EmbedImage(pngBytes(t, 4, 2), 2.5)
		require.NoError(t, err)
		d.AddParagraph(Run{Picture: pic})
		b, err := d.Bytes()
		require.NoError(t, err)
		return b
	}
	assert.Equal(t, build(), build())
}

func TestOpen_KeepsPartsAndFinalSection(t *testing.T) {
	styles := `<w:styles xmlns:w="` + nsW + `"><w:style w:type="paragraph" w:styleId="Normal"><w:name w:val="Normal"/></w:style></w:styles>`
	d, err := Open(letterhead(t, styles))
	require.NoError(t, err)
	assert.Empty(t, d.Blocks())

	_, ok := d.HeadingStyle(1)
	assert.False(t, ok)

	d.AddParagraph(Run{Text: "novo laudo"})
	data, err := d.Bytes()
	require.NoError(t, err)

	doc := readPart(t, data, "word/document.xml")
	assert.NotContains(t, doc, "texto antigo")
	assert.NotContains(t, doc, `<w:pgSz w:w="1"/>`)
	assert.Contains(t, doc, `<w:body w:rsid="1">`)
	assert.Contains(t, doc, "novo laudo")
	assert.Contains(t, doc, `<w:headerReference w:type="default" r:id="rId7"/>`)
	assert.Contains(t, readPart(t, data, "word/header1.xml"), "Clínica Timbrada")
}

func TestOpen_LocalizedHeadingStyleIDs(t *testing.T) {
	styles := `<w:styles xmlns:w="` + nsW + `">` +
		`<w:style w:type="paragraph" w:styleId="Ttulo1"><w:name w:val="Heading 1"/></w:style>` +
		`<w:style w:type="character" w:styleId="Ttulo2Char"><w:name w:val="heading 2"/></w:style>` +
		`</w:styles>`
	d, err := Open(letterhead(t, styles))
	require.NoError(t, err)

	id, ok := d.HeadingStyle(1)
	assert.True(t, ok)
	assert.Equal(t, "Ttulo1", id)

	_, ok = d.HeadingStyle(2)
	assert.False(t, ok, "character styles are not paragraph headings")
}

func TestOpen_Invalid(t *testing.T) {
	_, err := Open([]byte("not a zip"))
	assert.ErrorIs(t, err, ErrInvalidDocument)

	noBody := buildZip(t, map[string]string{"word/document.xml": `<w:document/>`}, []string{"word/document.xml"})
	_, err = Open(noBody)
	assert.ErrorIs(t, err, ErrInvalidDocument)

	noMain := buildZip(t, map[string]string{"x.txt": "x"}, []string{"x.txt"})
	_, err = Open(noMain)
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestEmbedImage(t *testing.T) {
	d, err := Open(letterhead(t, blankStyles))
	require.NoError(t, err)

	pic, err := d.EmbedImage(pngBytes(t, 200, 100), 2.5)
	require.NoError(t, err)
	assert.Equal(t, "rId8", pic.RelID)
	assert.Equal(t, int64(2.5*emuPerInch), pic.WidthEMU)
	assert.Equal(t, pic.WidthEMU/2, pic.HeightEMU)
	assert.Equal(t, "png", pic.Format)

	cell := d.AddTable(1, 1, 3.2).Cell(0, 0)
	cell.AddParagraph(Run{Picture: pic}).Align = AlignCenter

	data, err := d.Bytes()
	require.NoError(t, err)

	assert.Contains(t, readPart(t, data, contentTypesPath), `<Default Extension="png" ContentType="image/png"/>`)
	assert.Contains(t, readPart(t, data, "word/_rels/document.xml.rels"), `Id="rId8"`)
	assert.NotEmpty(t, readPart(t, data, "word/media/image1.png"))
	doc := readPart(t, data, "word/document.xml")
	assert.Contains(t, doc, `r:embed="rId8"`)
	assert.Contains(t, doc, `<wp:extent cx="2286000" cy="1143000"/>`)

	second, err := d.EmbedImage(pngBytes(t, 10, 10), 2.5)
	require.NoError(t, err)
	assert.Equal(t, "image2.png", second.Name)
	assert.Equal(t, pic.docPrID+1, second.docPrID)
}

func TestEmbedImage_Invalid(t *testing.T) {
	_, err := New().EmbedImage([]byte("garbage"), 2.5)
	assert.Error(t, err)
}

func TestTable_Layout(t *testing.T) {
	d := New()
	tbl := d.AddTable(3, 2, 3.2)
	assert.Equal(t, 3, tbl.Rows())
	assert.Equal(t, 2, tbl.Cols())
	tbl.Cell(1, 1).AddParagraph(Run{Text: "Baço", Italic: true, SizePt: 8})

	var b strings.Builder
	tbl.writeXML(&b)
	xml := b.String()
	assert.Equal(t, 2, strings.Count(xml, `<w:gridCol w:w="4608"/>`))
	assert.Equal(t, 5, strings.Count(xml, "<w:p/>"))
	assert.Contains(t, xml, `<w:tblLayout w:type="fixed"/>`)
	assert.Contains(t, xml, `<w:i/>`)
	assert.Contains(t, xml, `<w:sz w:val="16"/>`)
}

func TestParagraph_Helpers(t *testing.T) {
	p := &Paragraph{}
	p.AddRun(Run{Text: "a"}).AddRun(Run{Text: "b"})
	assert.Equal(t, "ab", p.Text())
	assert.False(t, p.IsPageBreak())
	assert.False(t, p.HasPicture())

	d := New()
	assert.True(t, d.AddPageBreak().IsPageBreak())
}
