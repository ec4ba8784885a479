package buildconfig

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "unknown"
	builtAt = "unknown"
)

// Version returns the build version
func Version() string {
	return version
}

// Commit returns the git commit hash
func Commit() string {
	return commit
}

// BuiltAt returns the build timestamp
func BuiltAt() string {
	return builtAt
}

// VersionInfo returns full version information
func VersionInfo() map[string]string {
	return map[string]string{
		"version":  version,
		"commit":   commit,
		"built_at": builtAt,
	}
}
