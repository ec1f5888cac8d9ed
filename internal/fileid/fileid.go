// Package fileid derives file names and paths for reports and uploads.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/ecolaudo/pkg/utils"
)

const (
	reportPrefix     = "laudo_"
	reportExt        = ".docx"
	letterheadPrefix = "letterhead_"
)

// ReportPath returns the stable output path of the report of an exam.
// Exporting the same exam again overwrites this file.
func ReportPath(reportsDir, examID string) string {
	return filepath.Join(reportsDir, reportPrefix+utils.SafeFilename(examID)+reportExt)
}

// SuggestedFilename returns the download name of a report: laudo_<patient>_<YYYYMMDD>.docx.
func SuggestedFilename(patientName string, examDate time.Time) string {
	return reportPrefix + utils.SafeFilename(patientName) + "_" + examDate.Format("20060102") + reportExt
}

// NewImageName returns a fresh id and the stored file name <id><ext> for an uploaded image.
func NewImageName(original string) (id, name string) {
	id = uuid.NewString()
	return id, id + extOf(original)
}

// NewLetterheadName returns the stored file name letterhead_<uuid><ext> for an uploaded letterhead.
func NewLetterheadName(original string) string {
	return letterheadPrefix + uuid.NewString() + extOf(original)
}

func extOf(name string) string {
	return strings.ToLower(filepath.Ext(filepath.Base(name)))
}

// ContentHash returns a stable hex id of data, used as an HTTP entity tag.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
