package filetype

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

const pdfMIME = "application/pdf"

// FileTypeInfo contains detected file type information
type FileTypeInfo struct {
	MIMEType    string
	Extension   string
	Supported   bool
	Description string
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// Detect inspects data by magic bytes. name is only used for logging and
// may be empty.
func (d *Detector) Detect(data []byte, name string) *FileTypeInfo {
	mtype := mimetype.Detect(data)
	info := &FileTypeInfo{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
	}
	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Str("file", name).Msg("detected file type")
	d.classify(info)
	return info
}

// DetectFile detects the type of the file at path.
func (d *Detector) DetectFile(path string) (*FileTypeInfo, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}
	info := &FileTypeInfo{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
	}
	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Str("file", path).Msg("detected file type")
	d.classify(info)
	return info, nil
}

func (d *Detector) classify(info *FileTypeInfo) {
	switch {
	case mimetype.EqualsAny(info.MIMEType, pdfMIME):
		info.Supported = true
		info.Description = "PDF document"
	default:
		info.Description = fmt.Sprintf("Unsupported file type: %s", info.MIMEType)
	}
}

// IsPDF reports whether data starts like a PDF file.
func IsPDF(data []byte) bool {
	return mimetype.Detect(data).Is(pdfMIME)
}

// OutputName derives the download name for a booklet made from name:
// "report.pdf" becomes "report_booklet.pdf".
func OutputName(name string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "document"
	}
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".pdf") {
		base = strings.TrimSuffix(base, ext)
	}
	return base + "_booklet.pdf"
}
