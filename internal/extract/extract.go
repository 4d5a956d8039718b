// Package extract converts uploaded document bytes to plain text.
package extract

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/kotaehq/kotae/internal/apperr"
)

// extractors maps a lowercase extension to its format handler.
var extractors = map[string]func([]byte) (string, error){
	".pdf":      extractPDF,
	".docx":     extractDOCX,
	".xlsx":     extractExcel,
	".txt":      extractPlain,
	".md":       extractPlain,
	".markdown": extractPlain,
}

// Supported returns the accepted file extensions, sorted, with leading dots.
func Supported() []string {
	exts := make([]string, 0, len(extractors))
	for ext := range extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// IsSupported reports whether filename has an accepted extension.
func IsSupported(filename string) bool {
	_, ok := extractors[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Extract returns the text content of the file. The format is chosen by the
// filename's extension; unsupported extensions are a validation error.
func Extract(filename string, content []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	fn, ok := extractors[ext]
	if !ok {
		return "", apperr.Validationf("unsupported file type %q (supported: %s)",
			ext, strings.Join(Supported(), ", "))
	}
	return fn(content)
}
