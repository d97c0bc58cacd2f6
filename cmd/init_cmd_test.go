package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/upkeephq/upkeep/pkg/manifest"
)

func TestInitCommand_ScaffoldsValidManifest(t *testing.T) {
	dir := t.TempDir()

	out, err := execRoot(t, []string{"init", dir, "--package", "acme-kit", "--kit-version", "0.2.0", "--dry-run=false", "--force=false"})
	if err != nil {
		t.Fatalf("init failed: %v\n%s", err, out)
	}

	man, err := manifest.Load(dir)
	if err != nil {
		t.Fatalf("scaffolded manifest does not load: %v", err)
	}
	if man.PackageName != "acme-kit" {
		t.Errorf("expected packageName acme-kit, got %q", man.PackageName)
	}
	if man.Version != "0.2.0" {
		t.Errorf("expected version 0.2.0, got %q", man.Version)
	}
	if len(man.FileCategories.AlwaysReplace) == 0 {
		t.Errorf("expected starter categories in the scaffold")
	}
}

func TestInitCommand_DefaultsPackageToDirName(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "widget-kit")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}

	out, err := execRoot(t, []string{"init", dir, "--package=", "--kit-version", "0.1.0", "--dry-run=false", "--force=false"})
	if err != nil {
		t.Fatalf("init failed: %v\n%s", err, out)
	}

	man, err := manifest.Load(dir)
	if err != nil {
		t.Fatalf("scaffolded manifest does not load: %v", err)
	}
	if man.PackageName != "widget-kit" {
		t.Errorf("expected packageName widget-kit, got %q", man.PackageName)
	}
}

func TestInitCommand_RefusesOverwriteWithoutForce(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, manifest.Filename)
	if err := os.WriteFile(existing, []byte(`{"version":"9.9.9"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execRoot(t, []string{"init", dir, "--package", "acme-kit", "--dry-run=false", "--force=false"})
	if err == nil {
		t.Fatalf("expected init to refuse overwriting, got:\n%s", out)
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("expected 'already exists' error, got %v", err)
	}

	// Untouched
	data, readErr := os.ReadFile(existing)
	if readErr != nil {
		t.Fatal(readErr)
	}
	if !strings.Contains(string(data), "9.9.9") {
		t.Errorf("existing manifest was modified: %s", data)
	}
}

func TestInitCommand_ForceOverwrites(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, manifest.Filename)
	if err := os.WriteFile(existing, []byte(`{"version":"9.9.9"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execRoot(t, []string{"init", dir, "--package", "acme-kit", "--kit-version", "1.0.0", "--force", "--dry-run=false"})
	if err != nil {
		t.Fatalf("init --force failed: %v\n%s", err, out)
	}

	man, err := manifest.Load(dir)
	if err != nil {
		t.Fatalf("scaffolded manifest does not load: %v", err)
	}
	if man.Version != "1.0.0" {
		t.Errorf("expected overwritten version 1.0.0, got %q", man.Version)
	}
}

func TestInitCommand_DryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()

	out, err := execRoot(t, []string{"init", dir, "--package", "acme-kit", "--dry-run", "--force=false"})
	if err != nil {
		t.Fatalf("init --dry-run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, `"packageName": "acme-kit"`) {
		t.Errorf("expected dry-run to print the manifest, got:\n%s", out)
	}

	if _, err := os.Stat(filepath.Join(dir, manifest.Filename)); !os.IsNotExist(err) {
		t.Errorf("expected dry-run to leave no manifest behind")
	}
}
