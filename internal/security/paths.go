package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// confineTranscriptPath canonicalizes a transcript path and requires it to
// resolve inside one of the allowed base directories. Sensitive-filename
// substrings reject before confinement is even considered.
func confineTranscriptPath(path string, allowedDirs []string) *RejectionError {
	expanded := expandHome(path)

	for _, marker := range sensitivePathMarkers {
		if strings.Contains(expanded, marker) {
			return &RejectionError{
				Severity: SeverityCritical,
				Type:     TypeSensitiveFile,
				Details:  fmt.Sprintf("transcript path references sensitive file marker %q", marker),
			}
		}
	}

	abs, err := filepath.Abs(expanded)
	if err != nil {
		return &RejectionError{
			Severity: SeverityHigh,
			Type:     TypePathTraversal,
			Details:  fmt.Sprintf("transcript path cannot be canonicalized: %v", err),
		}
	}
	abs = resolveSymlinks(filepath.Clean(abs))

	for _, base := range allowedDirs {
		baseAbs, err := filepath.Abs(expandHome(base))
		if err != nil {
			continue
		}
		baseAbs = resolveSymlinks(baseAbs)
		if abs == baseAbs || strings.HasPrefix(abs, baseAbs+string(filepath.Separator)) {
			return nil
		}
	}

	return &RejectionError{
		Severity: SeverityHigh,
		Type:     TypePathTraversal,
		Details:  fmt.Sprintf("transcript path %q resolves outside every allowed base directory", abs),
	}
}

// resolveSymlinks canonicalizes through symlinks so a link placed inside an
// allowed base cannot smuggle the path outside it. The transcript may not
// exist yet, so the nearest existing ancestor is resolved and the missing
// remainder reattached lexically.
func resolveSymlinks(abs string) string {
	remainder := ""
	current := abs
	for {
		if resolved, err := filepath.EvalSymlinks(current); err == nil {
			return filepath.Join(resolved, remainder)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return abs
		}
		remainder = filepath.Join(filepath.Base(current), remainder)
		current = parent
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return strings.Replace(path, "~", home, 1)
}
