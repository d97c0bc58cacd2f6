/*
Copyright © 2025 Upkeep HQ <info@upkeephq.dev>
*/

// Package workflow orchestrates kit installs and upgrades end to end:
// release lookup, download, extraction, pre-upgrade snapshot,
// reconciliation, receipt. The engine in pkg/reconcile exposes no output
// side channel; all progress surfaces through the Reporter accepted here.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/upkeephq/upkeep/pkg/archive"
	"github.com/upkeephq/upkeep/pkg/backup"
	"github.com/upkeephq/upkeep/pkg/config"
	"github.com/upkeephq/upkeep/pkg/ignore"
	"github.com/upkeephq/upkeep/pkg/manifest"
	"github.com/upkeephq/upkeep/pkg/reconcile"
	"github.com/upkeephq/upkeep/pkg/release"
)

var (
	// ErrUpToDate reports that the destination already runs the newest
	// release on the configured channel.
	ErrUpToDate = errors.New("already up to date")
	// ErrAborted reports that the confirmer declined the run.
	ErrAborted = errors.New("aborted")
)

// Reporter receives progress messages as a run advances.
type Reporter interface {
	Step(message string)
}

// Confirmer gates the step that starts modifying the destination.
type Confirmer interface {
	Confirm(prompt string) bool
}

// AutoConfirm approves every prompt; wired in for --yes runs.
type AutoConfirm struct{}

// Confirm implements Confirmer.
func (AutoConfirm) Confirm(string) bool { return true }

// Outcome is what one upgrade or apply run produced.
type Outcome struct {
	PackageName string
	FromVersion string
	ToVersion   string
	DryRun      bool
	BackedUp    bool
	Result      *reconcile.Result
}

// Status describes how an installation relates to the newest release.
type Status struct {
	PackageName      string `json:"packageName"`
	InstalledVersion string `json:"installedVersion,omitempty"`
	LatestVersion    string `json:"latestVersion"`
	UpdateAvailable  bool   `json:"updateAvailable"`
}

// Workflow wires the collaborators around the reconciliation engine. A nil
// Backup skips snapshots, a nil Confirm auto-approves, and a nil Reporter
// is silent.
type Workflow struct {
	Config   *config.Config
	Source   release.Source
	Backup   backup.Adapter
	Confirm  Confirmer
	Reporter Reporter
}

// UpgradeOptions parameterizes one registry-driven run.
type UpgradeOptions struct {
	DestDir string
	// PackageName names the kit explicitly. Required for a first install
	// where no receipt exists yet; otherwise the receipt's identity is used.
	PackageName string
	// Force applies the newest release even when it is not newer than the
	// installed version.
	Force bool
	// DryRun plans the changes without touching the destination. The
	// release archive is still downloaded, since planning needs its files.
	DryRun bool
}

// ApplyOptions parameterizes a run against a local kit directory.
type ApplyOptions struct {
	SourceDir string
	DestDir   string
	DryRun    bool
}

// Upgrade fetches the newest release for the destination's kit and
// reconciles it in. When the reconciliation records per-file errors the
// returned Outcome is non-nil alongside the error: the run completed, the
// caller decides what the failures mean.
func (w *Workflow) Upgrade(ctx context.Context, opts UpgradeOptions) (*Outcome, error) {
	pkgName, fromVersion, err := w.installedState(opts.DestDir, opts.PackageName)
	if err != nil {
		return nil, err
	}

	w.step("checking registry for %s", pkgName)
	meta, err := w.Source.Latest(ctx, pkgName)
	if err != nil {
		return nil, err
	}
	if !opts.Force && fromVersion != "" && !release.IsNewer(meta.Version, fromVersion) {
		return nil, fmt.Errorf("%s %s: %w", pkgName, fromVersion, ErrUpToDate)
	}

	if !opts.DryRun && !w.confirm(upgradePrompt(pkgName, fromVersion, meta.Version, opts.DestDir)) {
		return nil, ErrAborted
	}

	staging, err := config.StagingDir()
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.RemoveAll(staging) }()

	archivePath := filepath.Join(staging, "kit.tar.gz")
	w.step("downloading %s %s", pkgName, meta.Version)
	if err := w.Source.Fetch(ctx, meta, archivePath); err != nil {
		return nil, err
	}

	extractDir := filepath.Join(staging, "kit")
	if err := archive.Extract(archivePath, extractDir); err != nil {
		return nil, err
	}
	kitRoot, err := archive.KitRoot(extractDir)
	if err != nil {
		return nil, err
	}

	man, err := manifest.Load(kitRoot)
	if err != nil {
		return nil, err
	}
	if man.Version != meta.Version {
		return nil, fmt.Errorf("registry advertised %s but the kit manifest declares %s", meta.Version, man.Version)
	}

	return w.run(runInput{
		man:         man,
		sourceDir:   kitRoot,
		destDir:     opts.DestDir,
		packageName: pkgName,
		fromVersion: fromVersion,
		toVersion:   meta.Version,
		source:      w.registry(),
		dryRun:      opts.DryRun,
	})
}

// Apply reconciles a kit from a local directory, skipping the registry
// entirely. The directory must hold the kit's manifest at its root.
func (w *Workflow) Apply(opts ApplyOptions) (*Outcome, error) {
	man, err := manifest.Load(opts.SourceDir)
	if err != nil {
		return nil, err
	}

	srcAbs, err := filepath.Abs(opts.SourceDir)
	if err != nil {
		srcAbs = opts.SourceDir
	}

	pkgName, fromVersion, err := w.appliedState(opts.DestDir, man.PackageName)
	if err != nil {
		return nil, err
	}
	if pkgName == "" {
		pkgName = filepath.Base(srcAbs)
	}

	if !opts.DryRun && !w.confirm(applyPrompt(pkgName, man.Version, opts.DestDir)) {
		return nil, ErrAborted
	}

	return w.run(runInput{
		man:         man,
		sourceDir:   opts.SourceDir,
		destDir:     opts.DestDir,
		packageName: pkgName,
		fromVersion: fromVersion,
		toVersion:   man.Version,
		source:      srcAbs,
		dryRun:      opts.DryRun,
	})
}

// Check compares the installed version against the registry's newest
// release without changing anything.
func (w *Workflow) Check(ctx context.Context, destDir, packageName string) (*Status, error) {
	pkgName, fromVersion, err := w.installedState(destDir, packageName)
	if err != nil {
		return nil, err
	}

	w.step("checking registry for %s", pkgName)
	meta, err := w.Source.Latest(ctx, pkgName)
	if err != nil {
		return nil, err
	}

	return &Status{
		PackageName:      pkgName,
		InstalledVersion: fromVersion,
		LatestVersion:    meta.Version,
		UpdateAvailable:  fromVersion == "" || release.IsNewer(meta.Version, fromVersion),
	}, nil
}

type runInput struct {
	man         *manifest.Manifest
	sourceDir   string
	destDir     string
	packageName string
	fromVersion string
	toVersion   string
	source      string
	dryRun      bool
}

// run is the shared tail of Upgrade and Apply: snapshot, protections,
// reconcile (or plan), receipt.
func (w *Workflow) run(in runInput) (*Outcome, error) {
	out := &Outcome{
		PackageName: in.packageName,
		FromVersion: in.fromVersion,
		ToVersion:   in.toVersion,
		DryRun:      in.dryRun,
	}

	if !in.dryRun && w.Backup != nil && w.Backup.IsRepo(in.destDir) {
		w.step("committing pre-upgrade snapshot")
		msg := fmt.Sprintf("upkeep: pre-upgrade snapshot of %s %s -> %s",
			in.packageName, versionOrNone(in.fromVersion), in.toVersion)
		out.BackedUp = w.Backup.CommitAll(in.destDir, msg)
	}

	prot, err := ignore.NewMatcher(in.destDir)
	if err != nil {
		return nil, err
	}
	ropts := reconcile.Options{Protected: prot.Protected}

	if in.dryRun {
		w.step("planning changes")
		out.Result = reconcile.PlanWithOptions(in.sourceDir, in.destDir, in.man, ropts)
	} else {
		w.step("reconciling files")
		out.Result = reconcile.ReconcileWithOptions(in.sourceDir, in.destDir, in.man, ropts)
	}

	if !in.dryRun {
		rec := &manifest.Receipt{
			PackageName: in.packageName,
			Version:     in.toVersion,
			Source:      in.source,
			InstalledAt: time.Now().UTC(),
		}
		if err := manifest.WriteReceipt(in.destDir, rec); err != nil {
			return out, fmt.Errorf("files applied but receipt write failed: %w", err)
		}
	}

	if out.Result.HasErrors() {
		return out, fmt.Errorf("completed with %d error(s)", len(out.Result.Errors))
	}
	return out, nil
}

// installedState resolves the kit identity and installed version from the
// destination's receipt. An explicit name is required when no receipt
// exists, and must agree with the receipt when one does: a destination
// tracks exactly one kit.
func (w *Workflow) installedState(destDir, nameOverride string) (pkgName, version string, err error) {
	pkgName, version, err = w.appliedState(destDir, nameOverride)
	if err != nil {
		return "", "", err
	}
	if pkgName == "" {
		return "", "", errors.New("destination has no receipt; pass the package name to install")
	}
	return pkgName, version, nil
}

// appliedState is installedState without the name requirement: local
// applies can fall back to naming the kit after its source directory.
func (w *Workflow) appliedState(destDir, nameOverride string) (pkgName, version string, err error) {
	rec, err := manifest.ReadReceipt(destDir)
	if err != nil {
		if errors.Is(err, manifest.ErrNoReceipt) {
			return nameOverride, "", nil
		}
		return "", "", err
	}
	if nameOverride != "" && rec.PackageName != "" && nameOverride != rec.PackageName {
		return "", "", fmt.Errorf("destination already tracks %s, not %s", rec.PackageName, nameOverride)
	}
	if nameOverride != "" {
		return nameOverride, rec.Version, nil
	}
	return rec.PackageName, rec.Version, nil
}

func (w *Workflow) step(format string, args ...interface{}) {
	if w.Reporter != nil {
		w.Reporter.Step(fmt.Sprintf(format, args...))
	}
}

func (w *Workflow) confirm(prompt string) bool {
	if w.Confirm == nil {
		return true
	}
	return w.Confirm.Confirm(prompt)
}

func (w *Workflow) registry() string {
	if w.Config != nil {
		return w.Config.Registry
	}
	return ""
}

func upgradePrompt(pkg, from, to, dest string) string {
	if from == "" {
		return fmt.Sprintf("Install %s %s into %s?", pkg, to, dest)
	}
	return fmt.Sprintf("Upgrade %s from %s to %s in %s?", pkg, from, to, dest)
}

func applyPrompt(pkg, version, dest string) string {
	return fmt.Sprintf("Apply %s %s to %s?", pkg, version, dest)
}

func versionOrNone(v string) string {
	if v == "" {
		return "none"
	}
	return v
}
