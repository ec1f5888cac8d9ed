package docx

import "strconv"

// Part names and XML fragments of a blank document.

const (
	contentTypesPath    = "[Content_Types].xml"
	rootRelsPath        = "_rels/.rels"
	defaultDocumentPath = "word/document.xml"

	mainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	stylesRelType   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles"
	imageRelType    = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"

	nsW   = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
	nsR   = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
	nsWP  = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	nsA   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsPic = "http://schemas.openxmlformats.org/drawingml/2006/picture"

	xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"
)

const blankContentTypes = xmlHeader +
	`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="` + mainContentType + `"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`</Types>`

const blankRootRels = xmlHeader +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`</Relationships>`

const blankDocumentRels = xmlHeader +
	`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="` + stylesRelType + `" Target="styles.xml"/>` +
	`</Relationships>`

const blankDocumentOpen = xmlHeader +
	`<w:document xmlns:w="` + nsW + `" xmlns:r="` + nsR + `" xmlns:wp="` + nsWP + `" xmlns:a="` + nsA + `" xmlns:pic="` + nsPic + `">` +
	`<w:body>`

// A4 portrait; side margins leave room for two 3.2in gallery columns.
const blankSectPr = `<w:sectPr>` +
	`<w:pgSz w:w="11906" w:h="16838"/>` +
	`<w:pgMar w:top="1440" w:right="1080" w:bottom="1440" w:left="1080" w:header="708" w:footer="708" w:gutter="0"/>` +
	`<w:cols w:space="708"/>` +
	`</w:sectPr>`

var blankStyles = xmlHeader +
	`<w:styles xmlns:w="` + nsW + `">` +
	`<w:docDefaults><w:rPrDefault><w:rPr>` +
	`<w:rFonts w:ascii="Calibri" w:hAnsi="Calibri" w:eastAsia="Calibri" w:cs="Calibri"/>` +
	`<w:sz w:val="22"/><w:szCs w:val="22"/><w:lang w:val="pt-BR"/>` +
	`</w:rPr></w:rPrDefault>` +
	`<w:pPrDefault><w:pPr><w:spacing w:after="160" w:line="259" w:lineRule="auto"/></w:pPr></w:pPrDefault>` +
	`</w:docDefaults>` +
	`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:qFormat/></w:style>` +
	headingStyleXML("Heading1", "heading 1", 0, 32, 480) +
	headingStyleXML("Heading2", "heading 2", 1, 26, 200) +
	headingStyleXML("Heading3", "heading 3", 2, 24, 200) +
	`<w:style w:type="table" w:default="1" w:styleId="TableNormal"><w:name w:val="Normal Table"/>` +
	`<w:tblPr><w:tblInd w:w="0" w:type="dxa"/><w:tblCellMar>` +
	`<w:top w:w="0" w:type="dxa"/><w:left w:w="108" w:type="dxa"/>` +
	`<w:bottom w:w="0" w:type="dxa"/><w:right w:w="108" w:type="dxa"/>` +
	`</w:tblCellMar></w:tblPr></w:style>` +
	`</w:styles>`

func headingStyleXML(id, name string, outline, halfPoints, before int) string {
	return `<w:style w:type="paragraph" w:styleId="` + id + `">` +
		`<w:name w:val="` + name + `"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/>` +
		`<w:uiPriority w:val="9"/><w:qFormat/>` +
		`<w:pPr><w:keepNext/><w:spacing w:before="` + strconv.Itoa(before) + `" w:after="120"/>` +
		`<w:outlineLvl w:val="` + strconv.Itoa(outline) + `"/></w:pPr>` +
		`<w:rPr><w:b/><w:bCs/><w:sz w:val="` + strconv.Itoa(halfPoints) + `"/><w:szCs w:val="` + strconv.Itoa(halfPoints) + `"/></w:rPr>` +
		`</w:style>`
}
