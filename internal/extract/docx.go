package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// docx files are OOXML zips; the body text lives in <w:t> nodes of the main
// document part. Matching the nodes directly keeps text reachable regardless
// of paragraph and run attributes.
const docxDefaultDocPath = "word/document.xml"

const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

var docxTextNode = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// Content-type overrides can list attributes in either order.
var (
	docxPartBeforeType = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)
	docxTypeBeforePart = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)
)

func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open DOCX: not a zip: %w", err)
	}

	docPath := docxMainDocPath(zr)
	docXML, err := readZipFile(zr, docPath)
	if err != nil {
		return "", fmt.Errorf("open DOCX: %w", err)
	}

	parts := docxTextNode.FindAllSubmatch(docXML, -1)
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.Write(bytes.TrimSpace(p[1]))
	}
	return strings.TrimSpace(b.String()), nil
}

// docxMainDocPath resolves the main document part from [Content_Types].xml,
// falling back to the conventional path.
func docxMainDocPath(zr *zip.Reader) string {
	data, err := readZipFile(zr, "[Content_Types].xml")
	if err != nil {
		return docxDefaultDocPath
	}
	if m := docxPartBeforeType.FindSubmatch(data); len(m) > 1 {
		return strings.TrimPrefix(string(m[1]), "/")
	}
	if m := docxTypeBeforePart.FindSubmatch(data); len(m) > 1 {
		return strings.TrimPrefix(string(m[1]), "/")
	}
	return docxDefaultDocPath
}

func readZipFile(zr *zip.Reader, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, fmt.Errorf("%s not found", name)
}
