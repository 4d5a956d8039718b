// Package fileid derives a deterministic document ID from a file path for
// watched files.
package fileid

import (
	"path/filepath"

	"github.com/google/uuid"
)

// pathNamespace scopes path-derived IDs apart from other SHA1 UUIDs.
var pathNamespace = uuid.MustParse("7a8fbe41-2c53-5a0e-9c41-d1b9f3a6e274")

// FileDocID returns a stable document UUID for the given absolute path.
// The same path always yields the same ID, so a re-ingested watched file
// replaces its previous chunks instead of duplicating them.
func FileDocID(absolutePath string) string {
	normalized := filepath.Clean(absolutePath)
	return uuid.NewSHA1(pathNamespace, []byte(normalized)).String()
}
