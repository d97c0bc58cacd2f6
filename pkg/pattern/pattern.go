// Package pattern implements the glob matching that drives file
// classification. Expansion and membership tests share one engine so a
// path classified against a pattern agrees exactly with what expanding
// that pattern would have produced.
package pattern

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Expand resolves a glob pattern against baseDir and returns the matching
// regular files as sorted, slash-separated paths relative to baseDir.
// Recursive globs (**) and character classes are supported, and names
// starting with a dot are matched like any other; most files worth
// protecting live in dotfiles. Directories are never returned.
//
// A pattern that matches nothing (including one anchored under a missing
// subdirectory) yields an empty result and no error. A missing or
// unreadable baseDir, or a syntactically invalid pattern, is an error.
func Expand(pattern, baseDir string) ([]string, error) {
	info, err := os.Stat(baseDir)
	if err != nil {
		return nil, fmt.Errorf("source directory %s: %w", baseDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source directory %s: not a directory", baseDir)
	}

	matches, err := doublestar.Glob(os.DirFS(baseDir), Normalize(pattern), doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", pattern, err)
	}

	sort.Strings(matches)
	return matches, nil
}

// Matches reports whether a single relative path belongs to the set a
// pattern describes. Semantics are identical to Expand: recursive,
// dotfile-inclusive. Invalid patterns match nothing.
func Matches(path, pattern string) bool {
	matched, err := doublestar.Match(Normalize(pattern), filepath.ToSlash(path))
	return err == nil && matched
}

// MatchesAny reports whether path matches at least one of patterns.
func MatchesAny(path string, patterns []string) bool {
	for _, p := range patterns {
		if Matches(path, p) {
			return true
		}
	}
	return false
}

// Validate checks glob syntax without touching the filesystem. Used by
// manifest lint so authors hear about a broken pattern before an upgrade
// silently matches nothing.
func Validate(pattern string) error {
	normalized := Normalize(pattern)
	if normalized == "" {
		return fmt.Errorf("empty pattern")
	}
	if !doublestar.ValidatePattern(normalized) {
		return fmt.Errorf("pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	return nil
}

// Normalize prepares a manifest-authored pattern for matching: trims
// whitespace, converts backslashes, and drops a trailing slash (patterns
// address files, never directories).
func Normalize(pattern string) string {
	normalized := strings.TrimSpace(pattern)
	normalized = strings.ReplaceAll(normalized, "\\", "/")
	if len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}
