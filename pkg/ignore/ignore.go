// Package ignore loads destination-side protection rules from a
// .upkeepignore file using gitignore syntax. A path matching a protection
// rule is never modified during an upgrade, exactly as if the manifest had
// listed it under neverTouch.
package ignore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// Filename is the protection rules file looked up at the destination root.
const Filename = ".upkeepignore"

// defaultPatterns are always protected: tool state and version control
// metadata must survive any upgrade.
var defaultPatterns = []string{".upkeep/**", ".git/**"}

// Matcher answers whether a destination-relative path is protected.
type Matcher struct {
	matcher   gitignore.Matcher
	userRules int
}

// NewMatcher builds the protection matcher for destDir. A missing
// .upkeepignore leaves only the default protections active; an unreadable
// one is an error, because silently dropping user protections is worse
// than stopping.
func NewMatcher(destDir string) (*Matcher, error) {
	return newMatcher(osfs.New(destDir))
}

func newMatcher(fs billy.Filesystem) (*Matcher, error) {
	patterns := make([]gitignore.Pattern, 0, len(defaultPatterns))
	for _, p := range defaultPatterns {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	userRules, err := readIgnoreFile(fs)
	if err != nil {
		return nil, err
	}
	for _, p := range userRules {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}

	return &Matcher{
		matcher:   gitignore.NewMatcher(patterns),
		userRules: len(userRules),
	}, nil
}

// Protected reports whether the slash-relative path rel is shielded from
// modification. Negation rules ("!pattern") are honored with the usual
// last-match-wins semantics.
func (m *Matcher) Protected(rel string) bool {
	parts := splitPath(filepath.ToSlash(rel))
	if len(parts) == 0 {
		return false
	}
	return m.matcher.Match(parts, false)
}

// UserRuleCount returns how many rules the .upkeepignore contributed,
// excluding the built-in defaults.
func (m *Matcher) UserRuleCount() int {
	return m.userRules
}

// readIgnoreFile returns the non-comment, non-blank lines of the
// .upkeepignore at the filesystem root. A missing file is not an error.
func readIgnoreFile(fs billy.Filesystem) ([]string, error) {
	f, err := fs.Open(Filename)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", Filename, err)
	}
	defer func() { _ = f.Close() }()

	var rules []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", Filename, err)
	}
	return rules, nil
}

// splitPath converts a slash-separated relative path into the components
// the go-git matcher expects.
func splitPath(path string) []string {
	path = strings.TrimPrefix(path, "/")
	parts := strings.Split(path, "/")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" && part != "." {
			result = append(result, part)
		}
	}
	return result
}
