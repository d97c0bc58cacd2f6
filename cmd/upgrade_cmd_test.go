package cmd

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/upkeephq/upkeep/pkg/manifest"
	"github.com/upkeephq/upkeep/pkg/release"
)

// kitTarball packs the given files into an in-memory tar.gz, the shape a
// registry serves release archives in.
func kitTarball(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for name, content := range files {
		hdr := &tar.Header{Name: name, Mode: 0o644, Size: int64(len(content)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// serveKit runs a registry that offers one release of pkg on the stable
// channel: metadata with a checksum, and the archive next to it.
func serveKit(t *testing.T, pkg, version string, files map[string]string) *httptest.Server {
	t.Helper()
	archive := kitTarball(t, files)
	sum := sha256.Sum256(archive)
	meta := release.Metadata{
		PackageName: pkg,
		Version:     version,
		ArchiveURL:  "kit.tar.gz",
		SHA256:      hex.EncodeToString(sum[:]),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/"+pkg+"/stable.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(meta)
	})
	mux.HandleFunc("/"+pkg+"/kit.tar.gz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(archive)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// upgradeKitFiles is the canonical test kit: one file per ordered category.
func upgradeKitFiles(version string) map[string]string {
	manifestJSON := fmt.Sprintf(`{
		"version": %q,
		"packageName": "acme-kit",
		"fileCategories": {
			"alwaysReplace": ["core/**"],
			"mergeIfChanged": ["config/settings.json"],
			"addOnly": ["docs/**"]
		}
	}`, version)
	return map[string]string{
		manifest.Filename:      manifestJSON,
		"core/engine.txt":      "engine " + version,
		"config/settings.json": `{"retries": 5, "timeout": 30}`,
		"docs/README.md":       "kit docs",
	}
}

func upgradeArgs(dest, pkg, registry string, extra ...string) []string {
	args := []string{"upgrade",
		"--dest", dest,
		"--package", pkg,
		"--registry", registry,
		"--channel", "stable",
		"--force=false",
		"--no-backup",
		"--yes",
		"--dry-run=false",
		"--format", "concise",
		"--output=",
	}
	return append(args, extra...)
}

func TestUpgradeCommand_FirstInstall(t *testing.T) {
	t.Setenv("UPKEEP_HOME", t.TempDir())
	dest := t.TempDir()
	srv := serveKit(t, "acme-kit", "1.2.0", upgradeKitFiles("1.2.0"))

	out, err := execRoot(t, upgradeArgs(dest, "acme-kit", srv.URL))
	if err != nil {
		t.Fatalf("upgrade failed: %v\n%s", err, out)
	}

	if !strings.Contains(out, "acme-kit none -> 1.2.0") {
		t.Errorf("expected the version transition in the report, got:\n%s", out)
	}
	if !strings.Contains(out, "Upgrade complete") {
		t.Errorf("expected the completion marker, got:\n%s", out)
	}

	if got := readDestFile(t, dest, "core/engine.txt"); got != "engine 1.2.0" {
		t.Errorf("core/engine.txt = %q, want the kit's content", got)
	}
	if got := readDestFile(t, dest, "config/settings.json"); !strings.Contains(got, "30") {
		t.Errorf("config/settings.json = %q, want a fresh copy of the kit's file", got)
	}
	if got := readDestFile(t, dest, "docs/README.md"); got != "kit docs" {
		t.Errorf("docs/README.md = %q, want the kit's content", got)
	}

	rec, err := manifest.ReadReceipt(dest)
	if err != nil {
		t.Fatalf("expected a receipt after install: %v", err)
	}
	if rec.PackageName != "acme-kit" || rec.Version != "1.2.0" {
		t.Errorf("receipt records %s %s, want acme-kit 1.2.0", rec.PackageName, rec.Version)
	}
	if rec.Source != srv.URL {
		t.Errorf("receipt source = %q, want the registry %q", rec.Source, srv.URL)
	}
}

func TestUpgradeCommand_ReconcilesByCategory(t *testing.T) {
	t.Setenv("UPKEEP_HOME", t.TempDir())
	dest := t.TempDir()
	srv := serveKit(t, "acme-kit", "2.0.0", upgradeKitFiles("2.0.0"))

	seedUpgradeReceipt(t, dest, "acme-kit", "1.0.0")
	writeDestFile(t, dest, "core/engine.txt", "local edit")
	writeDestFile(t, dest, "config/settings.json", `{"retries": 2, "custom": true}`)
	writeDestFile(t, dest, "docs/README.md", "my notes")
	writeDestFile(t, dest, ".env", "SECRET=1")

	out, err := execRoot(t, upgradeArgs(dest, "", srv.URL))
	if err != nil {
		t.Fatalf("upgrade failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "acme-kit 1.0.0 -> 2.0.0") {
		t.Errorf("expected the version transition in the report, got:\n%s", out)
	}

	if got := readDestFile(t, dest, "core/engine.txt"); got != "engine 2.0.0" {
		t.Errorf("alwaysReplace file = %q, want the kit's content", got)
	}

	var settings map[string]interface{}
	if err := json.Unmarshal([]byte(readDestFile(t, dest, "config/settings.json")), &settings); err != nil {
		t.Fatalf("merged settings are not valid JSON: %v", err)
	}
	if settings["retries"] != float64(2) {
		t.Errorf("retries = %v, local value must win the merge", settings["retries"])
	}
	if settings["custom"] != true {
		t.Errorf("custom = %v, local-only key must survive the merge", settings["custom"])
	}
	if settings["timeout"] != float64(30) {
		t.Errorf("timeout = %v, new kit key must arrive in the merge", settings["timeout"])
	}

	if got := readDestFile(t, dest, "docs/README.md"); got != "my notes" {
		t.Errorf("addOnly file = %q, existing files must be left alone", got)
	}
	if got := readDestFile(t, dest, ".env"); got != "SECRET=1" {
		t.Errorf(".env = %q, files outside the kit's categories must be untouched", got)
	}

	rec, err := manifest.ReadReceipt(dest)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Version != "2.0.0" {
		t.Errorf("receipt version = %q, want 2.0.0", rec.Version)
	}
}

func TestUpgradeCommand_UpToDate(t *testing.T) {
	t.Setenv("UPKEEP_HOME", t.TempDir())
	dest := t.TempDir()
	srv := serveKit(t, "acme-kit", "2.0.0", upgradeKitFiles("2.0.0"))
	seedUpgradeReceipt(t, dest, "acme-kit", "2.0.0")

	out, err := execRoot(t, upgradeArgs(dest, "", srv.URL))
	if err != nil {
		t.Fatalf("an up-to-date destination must not fail the command: %v\n%s", err, out)
	}
	if !strings.Contains(out, "already up to date") {
		t.Errorf("expected the up-to-date message, got:\n%s", out)
	}
	if strings.Contains(out, "Upgrade complete") {
		t.Errorf("no report should be rendered when nothing ran, got:\n%s", out)
	}
}

func TestUpgradeCommand_ForceReapplies(t *testing.T) {
	t.Setenv("UPKEEP_HOME", t.TempDir())
	dest := t.TempDir()
	srv := serveKit(t, "acme-kit", "2.0.0", upgradeKitFiles("2.0.0"))

	seedUpgradeReceipt(t, dest, "acme-kit", "2.0.0")
	writeDestFile(t, dest, "core/engine.txt", "drifted")

	out, err := execRoot(t, upgradeArgs(dest, "", srv.URL, "--force"))
	if err != nil {
		t.Fatalf("forced upgrade failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Upgrade complete") {
		t.Errorf("expected the completion marker, got:\n%s", out)
	}
	if got := readDestFile(t, dest, "core/engine.txt"); got != "engine 2.0.0" {
		t.Errorf("force must reapply the release, got %q", got)
	}
}

func TestUpgradeCommand_DryRun(t *testing.T) {
	t.Setenv("UPKEEP_HOME", t.TempDir())
	dest := t.TempDir()
	srv := serveKit(t, "acme-kit", "2.0.0", upgradeKitFiles("2.0.0"))

	seedUpgradeReceipt(t, dest, "acme-kit", "1.0.0")
	writeDestFile(t, dest, "core/engine.txt", "local edit")

	out, err := execRoot(t, upgradeArgs(dest, "", srv.URL, "--dry-run"))
	if err != nil {
		t.Fatalf("dry run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "(dry run)") || !strings.Contains(out, "Dry run: no files were written") {
		t.Errorf("expected dry-run markers in the report, got:\n%s", out)
	}

	if got := readDestFile(t, dest, "core/engine.txt"); got != "local edit" {
		t.Errorf("dry run wrote core/engine.txt: %q", got)
	}
	if _, err := os.Stat(filepath.Join(dest, "docs", "README.md")); !os.IsNotExist(err) {
		t.Error("dry run created docs/README.md")
	}
	rec, err := manifest.ReadReceipt(dest)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Version != "1.0.0" {
		t.Errorf("dry run rewrote the receipt to %q", rec.Version)
	}
}

func TestUpgradeCommand_PackageMismatch(t *testing.T) {
	t.Setenv("UPKEEP_HOME", t.TempDir())
	dest := t.TempDir()
	srv := serveKit(t, "acme-kit", "2.0.0", upgradeKitFiles("2.0.0"))
	seedUpgradeReceipt(t, dest, "acme-kit", "1.0.0")

	out, err := execRoot(t, upgradeArgs(dest, "other-kit", srv.URL))
	if err == nil {
		t.Fatalf("expected an error for a conflicting package name, got:\n%s", out)
	}
	if !strings.Contains(err.Error(), "already tracks acme-kit") {
		t.Errorf("unexpected error: %v", err)
	}
}

func seedUpgradeReceipt(t *testing.T, dest, pkg, version string) {
	t.Helper()
	rec := &manifest.Receipt{PackageName: pkg, Version: version, InstalledAt: time.Now().UTC()}
	if err := manifest.WriteReceipt(dest, rec); err != nil {
		t.Fatal(err)
	}
}
