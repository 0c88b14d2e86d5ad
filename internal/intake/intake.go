// Package intake turns local paths into candidate files for matching.
package intake

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ppiankov/concordia/internal/model"
)

// DisplayWidth is the rune budget for CandidateFile.DisplayName
const DisplayWidth = 40

// Options filters what Collect picks up
type Options struct {
	Extensions []string // Lowercase, with leading dot; empty accepts everything
	Recursive  bool
}

// Collect expands files and directories into candidate files, preserving
// argument order and dropping duplicates and hidden files. Files named
// explicitly bypass the extension filter; files found in directories don't.
func Collect(paths []string, opts Options) ([]model.CandidateFile, error) {
	allowed := make(map[string]bool, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[ext] = true
	}
	accept := func(name string) bool {
		return len(allowed) == 0 || allowed[strings.ToLower(filepath.Ext(name))]
	}

	var files []model.CandidateFile
	seen := make(map[string]bool)
	add := func(path string, info fs.FileInfo) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", path, err)
		}
		if seen[abs] {
			return nil
		}
		seen[abs] = true
		files = append(files, NewCandidate(abs, info.Size()))
		return nil
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}

		if !info.IsDir() {
			if err := add(p, info); err != nil {
				return nil, err
			}
			continue
		}

		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path != p && isHidden(d.Name()) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if path != p && !opts.Recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !accept(d.Name()) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			return add(path, info)
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
	}

	return files, nil
}

// NewCandidate builds a candidate for the file at path
func NewCandidate(path string, size int64) model.CandidateFile {
	name := filepath.Base(path)
	return model.CandidateFile{
		UID:          uuid.NewString(),
		DisplayName:  Truncate(name, DisplayWidth),
		OriginalName: name,
		Path:         path,
		Size:         size,
	}
}

// Truncate shortens s to at most n runes, ending in "..." when cut
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 3 {
		return string([]rune(s)[:n])
	}
	return string([]rune(s)[:n-3]) + "..."
}

// ReadManifest reads one path per line. Blank lines and # comments are
// skipped, duplicates dropped, and relative paths resolved against the
// manifest's directory.
func ReadManifest(manifestPath string) ([]string, error) {
	f, err := os.Open(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = f.Close() }()

	base := filepath.Dir(manifestPath)
	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan manifest: %w", err)
	}

	return paths, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
