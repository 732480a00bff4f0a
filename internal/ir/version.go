package ir

// Version constants for the module format and runtime.
const (
	// ModuleFormatVersion is the version of the module metadata layout
	// that content hashes are computed over.
	ModuleFormatVersion = "1"

	// RuntimeVersion is the membrane runtime version.
	RuntimeVersion = "0.1.0"
)
