package docx

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// imageFormats maps a decoded format name to the media extension and content type.
var imageFormats = map[string]struct{ ext, contentType string }{
	"png":  {"png", "image/png"},
	"jpeg": {"jpeg", "image/jpeg"},
	"gif":  {"gif", "image/gif"},
	"bmp":  {"bmp", "image/bmp"},
	"tiff": {"tiff", "image/tiff"},
}

// Picture is an image embedded in the package, ready to be placed in a Run.
type Picture struct {
	RelID     string
	Name      string
	Format    string
	WidthEMU  int64
	HeightEMU int64
	docPrID   int
}

// EmbedImage stores data as a media part of the document and returns a picture
// scaled to widthInches, keeping the aspect ratio read from the image header.
func (d *Document) EmbedImage(data []byte, widthInches float64) (*Picture, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	kind, ok := imageFormats[format]
	if !ok {
		return nil, fmt.Errorf("unsupported image format %q", format)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("image has invalid size %dx%d", cfg.Width, cfg.Height)
	}

	name := d.nextMediaName(kind.ext)
	d.setPart(d.mainDir()+"media/"+name, data)
	d.ensureDefaultContentType(kind.ext, kind.contentType)
	relID := d.addRelationship(imageRelType, "media/"+name)

	width := int64(widthInches * emuPerInch)
	height := width * int64(cfg.Height) / int64(cfg.Width)
	d.lastDocPr++
	return &Picture{
		RelID:     relID,
		Name:      name,
		Format:    format,
		WidthEMU:  width,
		HeightEMU: height,
		docPrID:   d.lastDocPr,
	}, nil
}

func (d *Document) nextMediaName(ext string) string {
	for {
		d.mediaSeq++
		name := "image" + strconv.Itoa(d.mediaSeq) + "." + ext
		if _, exists := d.parts[d.mainDir()+"media/"+name]; !exists {
			return name
		}
	}
}

func (p *Picture) writeXML(b *strings.Builder) {
	cx := strconv.FormatInt(p.WidthEMU, 10)
	cy := strconv.FormatInt(p.HeightEMU, 10)
	id := strconv.Itoa(p.docPrID)
	b.WriteString(`<w:drawing>`)
	b.WriteString(`<wp:inline distT="0" distB="0" distL="0" distR="0" xmlns:wp="` + nsWP + `" xmlns:a="` + nsA + `" xmlns:pic="` + nsPic + `" xmlns:r="` + nsR + `">`)
	b.WriteString(`<wp:extent cx="` + cx + `" cy="` + cy + `"/>`)
	b.WriteString(`<wp:docPr id="` + id + `" name="Picture ` + id + `"/>`)
	b.WriteString(`<wp:cNvGraphicFramePr><a:graphicFrameLocks noChangeAspect="1"/></wp:cNvGraphicFramePr>`)
	b.WriteString(`<a:graphic><a:graphicData uri="` + nsPic + `"><pic:pic>`)
	b.WriteString(`<pic:nvPicPr><pic:cNvPr id="0" name="` + escapeAttr(p.Name) + `"/><pic:cNvPicPr/></pic:nvPicPr>`)
	b.WriteString(`<pic:blipFill><a:blip r:embed="` + p.RelID + `"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`)
	b.WriteString(`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="` + cx + `" cy="` + cy + `"/></a:xfrm>`)
	b.WriteString(`<a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`)
	b.WriteString(`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing>`)
}
