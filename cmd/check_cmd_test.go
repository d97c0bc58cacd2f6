package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/upkeephq/upkeep/pkg/manifest"
	"github.com/upkeephq/upkeep/pkg/release"
)

// fakeRegistry serves release metadata for one package and channel.
func fakeRegistry(t *testing.T, pkg, channel string, meta release.Metadata) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/"+pkg+"/"+channel+".json" {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(meta)
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckCommand_UpdateAvailable(t *testing.T) {
	dest := t.TempDir()
	if err := manifest.WriteReceipt(dest, &manifest.Receipt{
		PackageName: "acme-kit",
		Version:     "1.0.0",
		InstalledAt: time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}
	srv := fakeRegistry(t, "acme-kit", "stable", release.Metadata{
		PackageName: "acme-kit", Version: "2.0.0", ArchiveURL: "kit.tar.gz",
	})

	out, err := execRoot(t, []string{"check", "--dest", dest, "--package=", "--registry", srv.URL, "--channel", "stable", "--json=false"})
	if err != nil {
		t.Fatalf("check failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "acme-kit 2.0.0 is available (installed: 1.0.0)") {
		t.Errorf("expected an update notice, got:\n%s", out)
	}
}

func TestCheckCommand_UpToDate(t *testing.T) {
	dest := t.TempDir()
	if err := manifest.WriteReceipt(dest, &manifest.Receipt{
		PackageName: "acme-kit",
		Version:     "2.0.0",
		InstalledAt: time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}
	srv := fakeRegistry(t, "acme-kit", "stable", release.Metadata{
		PackageName: "acme-kit", Version: "2.0.0", ArchiveURL: "kit.tar.gz",
	})

	out, err := execRoot(t, []string{"check", "--dest", dest, "--package=", "--registry", srv.URL, "--channel", "stable", "--json=false"})
	if err != nil {
		t.Fatalf("check failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "acme-kit 2.0.0 is up to date") {
		t.Errorf("expected the up-to-date notice, got:\n%s", out)
	}
}

func TestCheckCommand_FirstInstallNeedsPackageName(t *testing.T) {
	dest := t.TempDir()
	srv := fakeRegistry(t, "acme-kit", "stable", release.Metadata{
		PackageName: "acme-kit", Version: "2.0.0", ArchiveURL: "kit.tar.gz",
	})

	// No receipt and no --package: the command cannot know what to check
	out, err := execRoot(t, []string{"check", "--dest", dest, "--package=", "--registry", srv.URL, "--channel", "stable", "--json=false"})
	if err == nil {
		t.Fatalf("expected check without a package name to fail, got:\n%s", out)
	}

	// With --package it reports the release as not installed yet
	out, err = execRoot(t, []string{"check", "--dest", dest, "--package", "acme-kit", "--registry", srv.URL, "--channel", "stable", "--json=false"})
	if err != nil {
		t.Fatalf("check --package failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "not installed yet") {
		t.Errorf("expected the not-installed notice, got:\n%s", out)
	}
}

func TestCheckCommand_ChannelOverride(t *testing.T) {
	dest := t.TempDir()
	srv := fakeRegistry(t, "acme-kit", "beta", release.Metadata{
		PackageName: "acme-kit", Version: "2.1.0-beta.1", ArchiveURL: "kit.tar.gz",
	})

	out, err := execRoot(t, []string{"check", "--dest", dest, "--package", "acme-kit", "--registry", srv.URL, "--channel", "beta", "--json=false"})
	if err != nil {
		t.Fatalf("check --channel beta failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "2.1.0-beta.1") {
		t.Errorf("expected the beta release version, got:\n%s", out)
	}
}

func TestCheckCommand_JSON(t *testing.T) {
	dest := t.TempDir()
	if err := manifest.WriteReceipt(dest, &manifest.Receipt{
		PackageName: "acme-kit",
		Version:     "1.2.0",
		InstalledAt: time.Now().UTC(),
	}); err != nil {
		t.Fatal(err)
	}
	srv := fakeRegistry(t, "acme-kit", "stable", release.Metadata{
		PackageName: "acme-kit", Version: "1.3.0", ArchiveURL: "kit.tar.gz",
	})

	out, err := execRoot(t, []string{"check", "--dest", dest, "--package=", "--registry", srv.URL, "--channel", "stable", "--json"})
	if err != nil {
		t.Fatalf("check --json failed: %v\n%s", err, out)
	}

	var st struct {
		PackageName      string `json:"packageName"`
		InstalledVersion string `json:"installedVersion"`
		LatestVersion    string `json:"latestVersion"`
		UpdateAvailable  bool   `json:"updateAvailable"`
	}
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("check output is not valid JSON: %v\n%s", err, out)
	}
	if st.PackageName != "acme-kit" || st.InstalledVersion != "1.2.0" || st.LatestVersion != "1.3.0" || !st.UpdateAvailable {
		t.Errorf("unexpected check JSON: %+v", st)
	}
}

func TestCheckCommand_RegistryError(t *testing.T) {
	dest := t.TempDir()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	out, err := execRoot(t, []string{"check", "--dest", dest, "--package", "ghost-kit", "--registry", srv.URL, "--channel", "stable", "--json=false"})
	if err == nil {
		t.Fatalf("expected a missing package to fail, got:\n%s", out)
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected a not-found error, got %v", err)
	}
}
