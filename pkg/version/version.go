// Package version carries the build identity stamped into the skylane
// binary.
package version

import "runtime"

// Set at build time:
//
//	go build -ldflags "-X .../pkg/version.Version=v1.2.0 ..."
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
	GoVersion = runtime.Version()
)

// Info is the version block reported by the /status endpoint and the
// startup log line.
func Info() map[string]string {
	return map[string]string{
		"version":   Version,
		"buildTime": BuildTime,
		"gitCommit": GitCommit,
		"goVersion": GoVersion,
	}
}
