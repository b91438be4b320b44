package tools

import (
	"os"

	"github.com/zolt-run/zolt/internal/safepath"
)

// ValidatePath ensures the resolved path is within the allowed working
// directory, rejecting traversal like "../../.ssh/id_rsa" or an absolute
// path outside workDir.
func ValidatePath(workDir, requestedPath string) (string, error) {
	return safepath.Validate(workDir, requestedPath)
}

// AtomicWrite writes content to a file atomically via temp file + rename in
// the same directory, so a concurrent reader never sees a partial write.
func AtomicWrite(targetPath string, content []byte, perm os.FileMode) error {
	return safepath.AtomicWrite(targetPath, content, perm)
}
