// Package version holds build metadata injected with -ldflags -X.
package version

// Set at build time, e.g.
//
//	-X github.com/sis-teknik/servicedesk/internal/version.Version=1.4.0
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// String returns "version (commit)" for logs.
func String() string {
	if GitCommit == "unknown" || GitCommit == "" {
		return Version
	}
	short := GitCommit
	if len(short) > 7 {
		short = short[:7]
	}
	return Version + " (" + short + ")"
}
