// Package docx writes Office Open XML word-processing documents (.docx).
//
// A Document is either blank (New) or derived from an existing file used as a
// letterhead (Open): every part of the source package is kept, the body is
// emptied and the final section properties are reused, so headers, footers,
// page setup and styles carry over to the new content.
//
// A Document is not safe for concurrent use.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDocument is returned by Open for data that is not a usable .docx package.
var ErrInvalidDocument = errors.New("invalid docx document")

// zipModTime is stamped on every zip entry so identical content produces identical bytes.
var zipModTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

var (
	partNameRe  = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(mainContentType) + `"`)
	partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(mainContentType) + `"[^>]+PartName="([^"]+)"`)
	bodyOpenRe  = regexp.MustCompile(`<w:body(?:\s[^>]*)?>|<w:body\s*/>`)
	sectPrRe    = regexp.MustCompile(`<w:sectPr[\s>/]`)
	docPrIDRe   = regexp.MustCompile(`<wp:docPr[^>]*\sid="(\d+)"`)
	relIDRe     = regexp.MustCompile(`Id="rId(\d+)"`)
)

// Document is a .docx package being built.
type Document struct {
	parts map[string][]byte
	order []string

	mainPath string
	prefix   string
	sectPr   string
	body     []Block

	headings  map[int]string
	lastDocPr int
	mediaSeq  int
}

// New returns a blank document with Normal and Heading 1-3 styles.
func New() *Document {
	d := &Document{
		parts:    make(map[string][]byte),
		mainPath: defaultDocumentPath,
		prefix:   blankDocumentOpen,
		sectPr:   blankSectPr,
	}
	d.setPart(contentTypesPath, []byte(blankContentTypes))
	d.setPart(rootRelsPath, []byte(blankRootRels))
	d.setPart(defaultDocumentPath, nil)
	d.setPart(relsPathFor(defaultDocumentPath), []byte(blankDocumentRels))
	d.setPart("word/styles.xml", []byte(blankStyles))
	return d
}

// Open reads a .docx package and returns a document with an empty body that keeps
// every other part of the package and the final section properties of its body.
func Open(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: not a zip: %v", ErrInvalidDocument, err)
	}
	d := &Document{parts: make(map[string][]byte)}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		content, err := readZipFile(f)
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidDocument, f.Name, err)
		}
		d.setPart(f.Name, content)
	}

	d.mainPath = findMainDocumentPath(d.parts[contentTypesPath])
	if d.mainPath == "" {
		d.mainPath = defaultDocumentPath
	}
	mainXML, ok := d.parts[d.mainPath]
	if !ok {
		return nil, fmt.Errorf("%w: %s not found", ErrInvalidDocument, d.mainPath)
	}
	if err := d.splitBody(string(mainXML)); err != nil {
		return nil, err
	}
	d.lastDocPr = maxDocPrID(d.parts)
	return d, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// findMainDocumentPath returns the main document part from [Content_Types].xml, without leading slash.
func findMainDocumentPath(contentTypes []byte) string {
	content := string(contentTypes)
	if m := partNameRe.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	if m := partNameRe2.FindStringSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(m[1], "/")
	}
	return ""
}

// splitBody keeps the markup up to the body start tag and the body's final sectPr.
func (d *Document) splitBody(mainXML string) error {
	loc := bodyOpenRe.FindStringIndex(mainXML)
	if loc == nil {
		return fmt.Errorf("%w: document has no body", ErrInvalidDocument)
	}
	tag := mainXML[loc[0]:loc[1]]
	if strings.HasSuffix(tag, "/>") {
		d.prefix = mainXML[:loc[0]] + "<w:body>"
		return nil
	}
	end := strings.LastIndex(mainXML, "</w:body>")
	if end < loc[1] {
		return fmt.Errorf("%w: unterminated body", ErrInvalidDocument)
	}
	d.prefix = mainXML[:loc[1]]
	d.sectPr = finalSectPr(mainXML[loc[1]:end])
	return nil
}

// finalSectPr returns the section properties that follow the last block of body, if any.
func finalSectPr(body string) string {
	lastBlock := -1
	for _, closer := range []string{"</w:p>", "<w:p/>", "</w:tbl>", "</w:sdt>"} {
		if i := strings.LastIndex(body, closer); i > lastBlock {
			lastBlock = i
		}
	}
	from := lastBlock + 1
	loc := sectPrRe.FindStringIndex(body[from:])
	if loc == nil {
		return ""
	}
	candidate := strings.TrimSpace(body[from+loc[0]:])
	if strings.HasSuffix(candidate, "</w:sectPr>") || strings.HasSuffix(candidate, "/>") {
		return candidate
	}
	return ""
}

func maxDocPrID(parts map[string][]byte) int {
	maxID := 0
	for name, content := range parts {
		if !strings.HasSuffix(name, ".xml") {
			continue
		}
		for _, m := range docPrIDRe.FindAllSubmatch(content, -1) {
			if n, err := strconv.Atoi(string(m[1])); err == nil && n > maxID {
				maxID = n
			}
		}
	}
	return maxID
}

// AddParagraph appends a paragraph with runs to the body.
func (d *Document) AddParagraph(runs ...Run) *Paragraph {
	p := &Paragraph{Runs: runs}
	d.body = append(d.body, p)
	return p
}

// AddPageBreak appends a paragraph holding only a page break.
func (d *Document) AddPageBreak() *Paragraph {
	return d.AddParagraph(Run{PageBreak: true})
}

// AddTable appends a rows x cols table with fixed cell widths.
func (d *Document) AddTable(rows, cols int, cellWidthInches float64) *Table {
	t := newTable(rows, cols, cellWidthInches)
	d.body = append(d.body, t)
	return t
}

// Blocks returns the body elements in order.
func (d *Document) Blocks() []Block {
	return d.body
}

// Part returns the raw content of a package part other than the main document.
func (d *Document) Part(name string) ([]byte, bool) {
	b, ok := d.parts[name]
	return b, ok && name != d.mainPath
}

// MainPath returns the name of the main document part.
func (d *Document) MainPath() string { return d.mainPath }

// HeadingStyle returns the style id of the built-in "heading N" paragraph style,
// or false when the document's style sheet does not define it.
func (d *Document) HeadingStyle(level int) (string, bool) {
	if d.headings == nil {
		d.headings = d.loadHeadingStyles()
	}
	id, ok := d.headings[level]
	return id, ok
}

type stylesDoc struct {
	Styles []struct {
		Type    string `xml:"type,attr"`
		StyleID string `xml:"styleId,attr"`
		Name    struct {
			Val string `xml:"val,attr"`
		} `xml:"name"`
	} `xml:"style"`
}

func (d *Document) loadHeadingStyles() map[int]string {
	found := make(map[int]string)
	content, ok := d.parts[d.stylesPath()]
	if !ok {
		return found
	}
	var doc stylesDoc
	if err := xml.Unmarshal(content, &doc); err != nil {
		return found
	}
	for _, s := range doc.Styles {
		if s.Type != "" && s.Type != "paragraph" {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(s.Name.Val))
		if !strings.HasPrefix(name, "heading ") {
			continue
		}
		level, err := strconv.Atoi(strings.TrimPrefix(name, "heading "))
		if err != nil || s.StyleID == "" {
			continue
		}
		if _, dup := found[level]; !dup {
			found[level] = s.StyleID
		}
	}
	return found
}

type relationships struct {
	Rels []struct {
		ID     string `xml:"Id,attr"`
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// stylesPath resolves the style sheet through the main document's relationships.
func (d *Document) stylesPath() string {
	var rels relationships
	if err := xml.Unmarshal(d.parts[relsPathFor(d.mainPath)], &rels); err == nil {
		for _, r := range rels.Rels {
			if r.Type == stylesRelType {
				return resolveTarget(d.mainDir(), r.Target)
			}
		}
	}
	return d.mainDir() + "styles.xml"
}

func resolveTarget(dir, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(dir + target)
}

func relsPathFor(part string) string {
	dir, file := path.Split(part)
	return dir + "_rels/" + file + ".rels"
}

// mainDir returns the directory of the main part with a trailing slash ("word/").
func (d *Document) mainDir() string {
	dir, _ := path.Split(d.mainPath)
	return dir
}

func (d *Document) setPart(name string, content []byte) {
	if _, exists := d.parts[name]; !exists {
		d.order = append(d.order, name)
	}
	d.parts[name] = content
}

// addRelationship adds a relationship from the main part and returns its id.
func (d *Document) addRelationship(relType, target string) string {
	relsPath := relsPathFor(d.mainPath)
	content := string(d.parts[relsPath])
	if content == "" {
		content = xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`
	}
	next := 1
	for _, m := range relIDRe.FindAllStringSubmatch(content, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= next {
			next = n + 1
		}
	}
	id := "rId" + strconv.Itoa(next)
	rel := `<Relationship Id="` + id + `" Type="` + relType + `" Target="` + escapeAttr(target) + `"/>`
	content = insertBefore(content, "</Relationships>", rel)
	d.setPart(relsPath, []byte(content))
	return id
}

// ensureDefaultContentType registers a content type for a file extension if missing.
func (d *Document) ensureDefaultContentType(ext, contentType string) {
	content := string(d.parts[contentTypesPath])
	re := regexp.MustCompile(`(?i)<Default[^>]+Extension="` + regexp.QuoteMeta(ext) + `"`)
	if re.MatchString(content) {
		return
	}
	entry := `<Default Extension="` + ext + `" ContentType="` + contentType + `"/>`
	d.setPart(contentTypesPath, []byte(insertBefore(content, "</Types>", entry)))
}

func insertBefore(content, closer, fragment string) string {
	i := strings.LastIndex(content, closer)
	if i < 0 {
		return content + fragment
	}
	return content[:i] + fragment + content[i:]
}

func (d *Document) mainXML() []byte {
	var b strings.Builder
	b.WriteString(d.prefix)
	for _, blk := range d.body {
		blk.writeXML(&b)
	}
	b.WriteString(d.sectPr)
	b.WriteString("</w:body></w:document>")
	return []byte(b.String())
}

// Write serializes the package to w. Parts are written in a stable order with fixed timestamps.
func (d *Document) Write(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, name := range d.order {
		content := d.parts[name]
		if name == d.mainPath {
			content = d.mainXML()
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name,
			Method:   zip.Deflate,
			Modified: zipModTime,
		})
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		if _, err := fw.Write(content); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

// Bytes serializes the package.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
