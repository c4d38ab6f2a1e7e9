package buildinfo

import "time"

// Set via -ldflags at build time
var (
	Version    = "dev" // release version, "dev" outside tagged builds
	BuildTime  string  // when the binary was compiled
	CommitHash string  // short git commit hash
)

// StartTime is recorded when the process starts
var StartTime = time.Now().UTC().Format(time.RFC3339)

// Summary returns the fields the health endpoint exposes.
func Summary() map[string]string {
	return map[string]string{
		"version":    Version,
		"commit":     CommitHash,
		"built_at":   BuildTime,
		"started_at": StartTime,
	}
}
