package extract

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/kotaehq/kotae/internal/apperr"
	"github.com/xuri/excelize/v2"
)

func TestExtract_PlainText(t *testing.T) {
	for _, name := range []string{"notes.txt", "readme.md", "guide.markdown"} {
		t.Run(name, func(t *testing.T) {
			got, err := Extract(name, []byte("hello world"))
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if got != "hello world" {
				t.Errorf("got %q", got)
			}
		})
	}
}

func TestExtract_InvalidUTF8Replaced(t *testing.T) {
	got, err := Extract("notes.txt", []byte{'o', 'k', 0xff, 0xfe})
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.HasPrefix(got, "ok") || !strings.Contains(got, "�") {
		t.Errorf("got %q", got)
	}
}

func TestExtract_UnsupportedExtension(t *testing.T) {
	for _, name := range []string{"slides.pptx", "archive.zip", "noext", "image.png"} {
		t.Run(name, func(t *testing.T) {
			_, err := Extract(name, []byte("data"))
			if err == nil {
				t.Fatal("expected error")
			}
			var vErr *apperr.ValidationError
			if !errors.As(err, &vErr) {
				t.Errorf("error type = %T", err)
			}
		})
	}
}

func TestExtract_CaseInsensitiveExtension(t *testing.T) {
	got, err := Extract("NOTES.TXT", []byte("upper"))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "upper" {
		t.Errorf("got %q", got)
	}
}

func TestIsSupported(t *testing.T) {
	tests := []struct {
		filename string
		want     bool
	}{
		{"a.pdf", true},
		{"a.docx", true},
		{"a.xlsx", true},
		{"a.txt", true},
		{"a.md", true},
		{"a.markdown", true},
		{"a.PDF", true},
		{"a.pptx", false},
		{"a.odt", false},
		{"a", false},
	}
	for _, tt := range tests {
		if got := IsSupported(tt.filename); got != tt.want {
			t.Errorf("IsSupported(%q) = %v, want %v", tt.filename, got, tt.want)
		}
	}
}

// buildDocx assembles a minimal OOXML zip with the document body at docPath.
func buildDocx(t *testing.T, docPath, bodyXML string, withContentTypes bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if withContentTypes {
		ct, err := zw.Create("[Content_Types].xml")
		if err != nil {
			t.Fatalf("create content types: %v", err)
		}
		ct.Write([]byte(`<Types><Override PartName="/` + docPath +
			`" ContentType="` + docxMainContentType + `"/></Types>`))
	}
	doc, err := zw.Create(docPath)
	if err != nil {
		t.Fatalf("create document part: %v", err)
	}
	doc.Write([]byte(bodyXML))
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtract_Docx(t *testing.T) {
	body := `<w:document><w:p w:rsidR="001"><w:r><w:t>first run</w:t></w:r>` +
		`<w:r><w:t xml:space="preserve">second run</w:t></w:r></w:p></w:document>`
	content := buildDocx(t, "word/document.xml", body, false)

	got, err := Extract("report.docx", content)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "first run second run" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_DocxNonStandardPath(t *testing.T) {
	body := `<w:document><w:p><w:r><w:t>relocated</w:t></w:r></w:p></w:document>`
	content := buildDocx(t, "word/document2.xml", body, true)

	got, err := Extract("report.docx", content)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "relocated" {
		t.Errorf("got %q", got)
	}
}

func TestExtract_DocxNotAZip(t *testing.T) {
	if _, err := Extract("report.docx", []byte("plain bytes")); err == nil {
		t.Fatal("expected error for non-zip docx")
	}
}

func TestExtract_Xlsx(t *testing.T) {
	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", "name")
	f.SetCellValue("Sheet1", "B1", "amount")
	f.SetCellValue("Sheet1", "A2", "widget")
	f.SetCellValue("Sheet1", "B2", 3)
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}

	got, err := Extract("data.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := "name\tamount\nwidget\t3"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestExtract_PdfGarbage(t *testing.T) {
	if _, err := Extract("doc.pdf", []byte("not a pdf")); err == nil {
		t.Fatal("expected error for invalid pdf")
	}
}
