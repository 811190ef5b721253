package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// FromFile reads a supported document file and returns its plain text.
// Supported extensions are .txt, .md, .pdf, .doc and .docx; anything else
// is rejected so callers can filter directories safely.
func FromFile(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md":
		return fromPlainText(path)
	case ".pdf":
		return fromPDF(path)
	case ".docx", ".doc":
		return fromDocx(path)
	default:
		return "", fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
}

func fromPlainText(path string) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from the managed data directory
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return collapse(string(data)), nil
}

// fromPDF extracts text page by page. Pages that fail to parse are skipped
// rather than aborting the whole document, since scanned or malformed pages
// are common in the wild.
func fromPDF(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if text != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(text)
		}
	}

	out := collapse(sb.String())
	if out == "" {
		return "", fmt.Errorf("pdf %s contains no extractable text", path)
	}
	return out, nil
}
