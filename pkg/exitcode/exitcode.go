// Package exitcode provides standardized exit codes for upkeep
package exitcode

// Exit codes for upkeep CLI
const (
	Success         = 0
	GeneralError    = 1
	ConfigError     = 2
	ValidationError = 3
	FileSystemError = 4
	NetworkError    = 5
	PermissionError = 6
	UpgradeError    = 7
)

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case ConfigError:
		return "Configuration error"
	case ValidationError:
		return "Validation error"
	case FileSystemError:
		return "File system error"
	case NetworkError:
		return "Network error"
	case PermissionError:
		return "Permission error"
	case UpgradeError:
		return "Upgrade completed with errors"
	default:
		return "Unknown error"
	}
}
