// Package buildinfo exposes version metadata stamped into the upkeep binary.
package buildinfo

import "runtime/debug"

// Set at build time via -ldflags. Defaults cover plain `go build`.
var (
	BinaryVersion = "dev"
	Commit        = ""
	BuildDate     = ""
)

// Version returns the most specific version string available: the
// ldflags-stamped binary version, falling back to the module version
// embedded by the Go toolchain.
func Version() string {
	if BinaryVersion != "" && BinaryVersion != "dev" {
		return BinaryVersion
	}
	if mv := ModuleVersion(); mv != "" && mv != "(devel)" {
		return mv
	}
	return BinaryVersion
}

// ModuleVersion returns the module version embedded by the Go toolchain (when available).
func ModuleVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return ""
}
