package extract

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// fromDocx extracts paragraph text from the OOXML word/document.xml entry.
// Legacy binary .doc files are not OOXML; for them this returns a clear
// error instead of garbage text.
func fromDocx(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("opening %s as docx archive: %w", path, err)
	}
	defer func() { _ = zr.Close() }()

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("%s has no word/document.xml entry", path)
	}

	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("opening document.xml in %s: %w", path, err)
	}
	defer func() { _ = rc.Close() }()

	text, err := docxText(rc)
	if err != nil {
		return "", fmt.Errorf("parsing document.xml in %s: %w", path, err)
	}
	if text == "" {
		return "", fmt.Errorf("docx %s contains no text", path)
	}
	return text, nil
}

// docxText streams the XML, collecting w:t character data and inserting a
// newline at each paragraph end.
func docxText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var sb strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return collapse(sb.String()), nil
}
