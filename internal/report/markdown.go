package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pylens/internal/shared/util"
)

// InjectSection maintains the block between pylens marker comments inside
// the document at path. A missing file is created with parent directories,
// and missing markers append a fresh block at the end, so repeated runs
// converge on a single maintained section.
func InjectSection(path, marker, body string) error {
	content, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("read markdown file %q: %w", path, err)
	}
	missing := err != nil

	next, err := ReplaceBetweenMarkers(string(content), marker, body)
	if err != nil {
		return err
	}

	if missing {
		return util.WriteFileWithDirs(path, []byte(next), 0o644)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".markdown-inject-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file for %q: %w", path, err)
	}
	tmpName := tmp.Name()

	writeErr := error(nil)
	if _, err := tmp.WriteString(next); err != nil {
		writeErr = fmt.Errorf("write temp markdown file %q: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil && writeErr == nil {
		writeErr = fmt.Errorf("close temp markdown file %q: %w", tmpName, err)
	}
	if writeErr != nil {
		_ = os.Remove(tmpName)
		return writeErr
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace markdown file %q: %w", path, err)
	}
	return nil
}

// ReplaceBetweenMarkers swaps the block between the pylens marker comments
// for replacement. When neither marker is present the block is appended at
// the end; a half-present or duplicated marker pair is an error.
func ReplaceBetweenMarkers(content, marker, replacement string) (string, error) {
	marker = strings.TrimSpace(marker)
	if marker == "" {
		return "", fmt.Errorf("markdown marker must not be empty")
	}

	newline := "\n"
	if strings.Contains(content, "\r\n") {
		newline = "\r\n"
	}

	start := fmt.Sprintf("<!-- pylens:%s:start -->", marker)
	end := fmt.Sprintf("<!-- pylens:%s:end -->", marker)

	startCount := strings.Count(content, start)
	endCount := strings.Count(content, end)
	if startCount == 0 && endCount == 0 {
		return appendBlock(content, newline, start, end, replacement), nil
	}
	if startCount != 1 || endCount != 1 {
		return "", fmt.Errorf("markdown marker %q must appear exactly once for start and end", marker)
	}

	startIdx := strings.Index(content, start)
	endIdx := strings.Index(content, end)
	if endIdx < startIdx {
		return "", fmt.Errorf("invalid marker order for %q", marker)
	}

	prefix := content[:startIdx+len(start)]
	suffix := content[endIdx:]
	clean := strings.TrimRight(replacement, "\r\n")

	return prefix + newline + clean + newline + suffix, nil
}

func appendBlock(content, newline, start, end, replacement string) string {
	clean := strings.TrimRight(replacement, "\r\n")

	var b strings.Builder
	b.WriteString(content)
	if content != "" {
		if !strings.HasSuffix(content, newline) {
			b.WriteString(newline)
		}
		b.WriteString(newline)
	}
	b.WriteString(start)
	b.WriteString(newline)
	b.WriteString(clean)
	b.WriteString(newline)
	b.WriteString(end)
	b.WriteString(newline)
	return b.String()
}
