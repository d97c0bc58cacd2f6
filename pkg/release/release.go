/*
Copyright © 2025 Upkeep HQ <info@upkeephq.dev>
*/

// Package release resolves and fetches kit releases from a registry. The
// reconciliation engine never touches the network; everything here feeds
// the upgrade workflow with plain data and local files.
package release

import (
	"context"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Metadata describes one published kit release.
type Metadata struct {
	PackageName string `json:"packageName"`
	Version     string `json:"version"`
	ArchiveURL  string `json:"archiveUrl"`
	SHA256      string `json:"sha256,omitempty"`
}

// Source yields release metadata and archives for a package.
type Source interface {
	// Latest returns metadata for the newest published release of pkg.
	Latest(ctx context.Context, pkg string) (*Metadata, error)
	// Fetch downloads the release archive to destPath, verifying its
	// checksum when the metadata carries one.
	Fetch(ctx context.Context, meta *Metadata, destPath string) error
}

// CredentialStore supplies registry tokens. Lookups are keyed by registry
// URL so one store can serve multiple registries.
type CredentialStore interface {
	Token(registryURL string) (string, error)
}

// EnvCredentials reads the token from the UPKEEP_TOKEN environment
// variable, the lowest-friction way to authenticate in CI.
type EnvCredentials struct{}

// TokenEnvVar is the environment variable EnvCredentials consults.
const TokenEnvVar = "UPKEEP_TOKEN"

// Token returns the configured token, empty when unset.
func (EnvCredentials) Token(string) (string, error) {
	return strings.TrimSpace(os.Getenv(TokenEnvVar)), nil
}

// IsNewer reports whether candidate is a strictly newer semantic version
// than baseline. A leading "v" on either side is tolerated. Malformed
// versions compare as not-newer, so a corrupt registry entry can never
// trigger an upgrade.
func IsNewer(candidate, baseline string) bool {
	cv, err := parseSemver(candidate)
	if err != nil {
		return false
	}
	bv, err := parseSemver(baseline)
	if err != nil {
		return false
	}
	return cv.GreaterThan(bv)
}

func parseSemver(version string) (*semver.Version, error) {
	return semver.NewVersion(strings.TrimPrefix(strings.TrimSpace(version), "v"))
}
