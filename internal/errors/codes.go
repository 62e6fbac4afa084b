// Package errors provides structured error handling for servicereport.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Host errors (probes, commands, privileges)
//   - 3XX: File edit errors
//   - 4XX: Plugin errors
//   - 5XX: Store and internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryHost indicates failures talking to the host.
	CategoryHost Category = "HOST"
	// CategoryEdit indicates configuration file edit failures.
	CategoryEdit Category = "EDIT"
	// CategoryPlugin indicates plugin definition or execution errors.
	CategoryPlugin Category = "PLUGIN"
	// CategoryInternal indicates store and unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityCritical means the host may be left inconsistent.
	SeverityCritical Severity = "CRITICAL"
	// SeverityError indicates operation failed but the run can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigWrite    = "ERR_103_CONFIG_WRITE"

	// Host errors (200-299)
	ErrCodeNotRoot         = "ERR_201_NOT_ROOT"
	ErrCodeCommandNotFound = "ERR_202_COMMAND_NOT_FOUND"
	ErrCodeCommandFailed   = "ERR_203_COMMAND_FAILED"
	ErrCodeProbeFailed     = "ERR_204_PROBE_FAILED"
	ErrCodeRunLocked       = "ERR_205_RUN_LOCKED"

	// Edit errors (300-399)
	ErrCodeEditRead    = "ERR_301_EDIT_READ"
	ErrCodeEditBackup  = "ERR_302_EDIT_BACKUP"
	ErrCodeEditReplace = "ERR_303_EDIT_REPLACE"
	ErrCodeEditRestore = "ERR_304_EDIT_RESTORE"

	// Plugin errors (400-499)
	ErrCodePluginDefinition = "ERR_401_PLUGIN_DEFINITION"
	ErrCodePluginSetup      = "ERR_402_PLUGIN_SETUP"
	ErrCodeCheckFailed      = "ERR_403_CHECK_FAILED"
	ErrCodeUnknownPlugin    = "ERR_404_UNKNOWN_PLUGIN"

	// Store and internal errors (500-599)
	ErrCodeStoreOpen  = "ERR_501_STORE_OPEN"
	ErrCodeStoreWrite = "ERR_502_STORE_WRITE"
	ErrCodeStoreRead  = "ERR_503_STORE_READ"
	ErrCodeInternal   = "ERR_599_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryHost
	case '3':
		return CategoryEdit
	case '4':
		return CategoryPlugin
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeEditReplace, ErrCodeEditRestore:
		return SeverityCritical
	case ErrCodeUnknownPlugin, ErrCodeStoreWrite:
		return SeverityWarning
	default:
		return SeverityError
	}
}
