/*
Copyright © 2025 Upkeep HQ <info@upkeephq.dev>
*/
package pattern

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
}

func TestExpandRecursive(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"config.json":          "{}",
		"data/settings.json":   "{}",
		"data/deep/nested.txt": "x",
		"scripts/run.sh":       "#!/bin/sh",
	})

	got, err := Expand("**/*.json", dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"config.json", "data/settings.json"}, got)

	got, err = Expand("data/**", dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"data/deep/nested.txt", "data/settings.json"}, got)
}

func TestExpandIncludesDotfiles(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		".env":                  "SECRET=1",
		".config/credentials":   "token",
		".config/cache/last.db": "blob",
		"visible.txt":           "v",
	})

	got, err := Expand("**", dir)
	require.NoError(t, err)
	assert.Contains(t, got, ".env")
	assert.Contains(t, got, ".config/credentials")
	assert.Contains(t, got, ".config/cache/last.db")
	assert.Contains(t, got, "visible.txt")

	got, err = Expand(".config/**", dir)
	require.NoError(t, err)
	assert.Equal(t, []string{".config/cache/last.db", ".config/credentials"}, got)
}

func TestExpandReturnsFilesOnly(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"data/a/file.txt": "x",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data", "empty"), 0o755))

	got, err := Expand("data/**", dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"data/a/file.txt"}, got, "directories must never appear in an expansion")
}

func TestExpandCharacterClass(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"log1.txt": "a",
		"log2.txt": "b",
		"logx.txt": "c",
	})

	got, err := Expand("log[0-9].txt", dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"log1.txt", "log2.txt"}, got)
}

func TestExpandMissingSubpathIsEmpty(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"present.txt": "x"})

	got, err := Expand("no-such-dir/**", dir)
	require.NoError(t, err)
	assert.Empty(t, got, "empty match is not an error")
}

func TestExpandMissingBaseDir(t *testing.T) {
	_, err := Expand("*", filepath.Join(t.TempDir(), "gone"))
	assert.Error(t, err)
}

func TestExpandBadPattern(t *testing.T) {
	dir := t.TempDir()
	_, err := Expand("[unclosed", dir)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "[unclosed")
}

func TestMatchesAgreesWithExpand(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"config.json":        "{}",
		"data/settings.json": "{}",
		".env":               "x",
		"notes.txt":          "n",
	})

	patterns := []string{"**/*.json", "*", ".e*", "data/**"}
	for _, p := range patterns {
		expanded, err := Expand(p, dir)
		require.NoError(t, err)
		member := make(map[string]bool, len(expanded))
		for _, path := range expanded {
			member[path] = true
		}
		for _, path := range []string{"config.json", "data/settings.json", ".env", "notes.txt"} {
			assert.Equal(t, member[path], Matches(path, p),
				"Matches(%q, %q) must agree with Expand", path, p)
		}
	}
}

func TestMatchesDotfiles(t *testing.T) {
	assert.True(t, Matches(".env", "*"))
	assert.True(t, Matches(".config/credentials", "**"))
	assert.True(t, Matches(".config/credentials", ".config/*"))
	assert.False(t, Matches(".config/credentials", "*.json"))
}

func TestMatchesRootLevelWithRecursivePrefix(t *testing.T) {
	assert.True(t, Matches("config.json", "**/*.json"))
	assert.True(t, Matches("a/b/c/config.json", "**/*.json"))
}

func TestMatchesAny(t *testing.T) {
	patterns := []string{"*.lock", "secrets/**"}
	assert.True(t, MatchesAny("yarn.lock", patterns))
	assert.True(t, MatchesAny("secrets/api.key", patterns))
	assert.False(t, MatchesAny("readme.md", patterns))
	assert.False(t, MatchesAny("readme.md", nil))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("**/*.json"))
	assert.NoError(t, Validate("data/[a-z]*"))
	assert.Error(t, Validate("[unclosed"))
	assert.Error(t, Validate(""))
	assert.Error(t, Validate("   "))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "data/**", Normalize(" data/** "))
	assert.Equal(t, "data/sub", Normalize("data\\sub"))
	assert.Equal(t, "cache", Normalize("cache/"))
	assert.Equal(t, "/", Normalize("/"))
}
