package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/upkeephq/upkeep/pkg/safeio"
)

const (
	// StateDir is the tool-owned state directory inside a destination.
	StateDir = ".upkeep"
	// ReceiptFilename is the receipt file name inside StateDir.
	ReceiptFilename = "receipt.json"
)

// ErrNoReceipt reports that the destination has no recorded installation.
var ErrNoReceipt = errors.New("no upgrade receipt found")

// Receipt records which kit version a destination currently carries. It is
// written after every successful apply and read to decide whether a newer
// release is available.
type Receipt struct {
	PackageName string    `json:"packageName,omitempty"`
	Version     string    `json:"version"`
	Source      string    `json:"source,omitempty"`
	InstalledAt time.Time `json:"installedAt"`
}

// ReceiptPath returns the receipt location for a destination directory.
func ReceiptPath(destDir string) string {
	return filepath.Join(destDir, StateDir, ReceiptFilename)
}

// ReadReceipt loads the receipt for destDir. A missing file returns
// ErrNoReceipt so callers can distinguish "never installed" from real
// read failures.
func ReadReceipt(destDir string) (*Receipt, error) {
	path := ReceiptPath(destDir)
	data, err := os.ReadFile(path) // #nosec G304 -- fixed filename under caller-supplied destination
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoReceipt
		}
		return nil, fmt.Errorf("failed to read receipt %s: %w", path, err)
	}

	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("receipt %s is not valid JSON: %w", path, err)
	}
	if r.Version == "" {
		return nil, fmt.Errorf("receipt %s: version is required", path)
	}
	return &r, nil
}

// WriteReceipt persists the receipt for destDir, creating the state
// directory if needed. The write is atomic so a crash never leaves a
// truncated receipt behind.
func WriteReceipt(destDir string, r *Receipt) error {
	if r.Version == "" {
		return fmt.Errorf("receipt version is required")
	}
	stateDir := filepath.Join(destDir, StateDir)
	if err := os.MkdirAll(stateDir, 0o750); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode receipt: %w", err)
	}
	data = append(data, '\n')

	path := ReceiptPath(destDir)
	if err := safeio.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write receipt %s: %w", path, err)
	}
	return nil
}
