// Package archive unpacks downloaded kit release archives (tar.gz) into a
// staging directory the reconciliation engine can read from.
package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/upkeephq/upkeep/pkg/safeio"
)

// Extract unpacks the tar.gz at archivePath into destDir. Entry paths are
// contained to destDir, so a malicious archive cannot write outside the
// staging area. Non-regular entries (symlinks, devices) are skipped.
func Extract(archivePath, destDir string) error {
	f, err := os.Open(archivePath) // #nosec G304 -- archivePath is a workflow-owned download
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%s is not a gzip archive: %w", archivePath, err)
	}
	defer func() { _ = gz.Close() }()

	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return fmt.Errorf("failed to create extraction directory: %w", err)
	}

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read archive entry: %w", err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			target, err := safeio.ContainedPath(destDir, hdr.Name)
			if err != nil {
				return fmt.Errorf("archive entry %s: %w", hdr.Name, err)
			}
			if err := os.MkdirAll(target, 0o750); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			target, err := safeio.ContainedPath(destDir, hdr.Name)
			if err != nil {
				return fmt.Errorf("archive entry %s: %w", hdr.Name, err)
			}
			if err := writeEntry(target, tr, entryMode(hdr)); err != nil {
				return fmt.Errorf("failed to extract %s: %w", hdr.Name, err)
			}
		default:
			// Kits ship plain files and directories; anything else is
			// dropped rather than reproduced on the user's disk.
		}
	}
}

func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode) // #nosec G304 -- target verified by ContainedPath
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil { // #nosec G110 -- kits are small; bounded by registry download
		_ = out.Close()
		return err
	}
	return out.Close()
}

func entryMode(hdr *tar.Header) os.FileMode {
	mode := hdr.FileInfo().Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	return mode
}

// KitRoot resolves where the kit actually starts inside an extraction
// directory. Release tarballs conventionally wrap everything in a single
// versioned directory; when exactly one top-level directory exists it is
// the root, otherwise extractDir itself is.
func KitRoot(extractDir string) (string, error) {
	entries, err := os.ReadDir(extractDir)
	if err != nil {
		return "", fmt.Errorf("failed to read extraction directory: %w", err)
	}
	if len(entries) == 1 && entries[0].IsDir() {
		return filepath.Join(extractDir, entries[0].Name()), nil
	}
	return extractDir, nil
}
