// Package version exposes the build identity of the lobby client.
//
// Set at link time:
//
//	go build -ldflags "-X github.com/rickgao/lobby-client/internal/version.Version=1.0.0 \
//	                   -X github.com/rickgao/lobby-client/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/rickgao/lobby-client/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/...
package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is reported in the connect handshake and the User-Agent.
	Version = "dev"
	// Commit is the short git hash.
	Commit = "unknown"
	// BuildTime is a UTC ISO 8601 timestamp.
	BuildTime = "unknown"
)

// Info is the build identity printed by the version commands.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// Get returns the current build identity.
func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

func (i Info) String() string {
	return fmt.Sprintf("%s (%s, %s) built %s", i.Version, i.Commit, i.GoVersion, i.BuildTime)
}

// String formats Get for humans.
func String() string {
	return Get().String()
}

// UserAgent is sent on the lobby upgrade and identity service calls.
func UserAgent() string {
	return "lobby-client/" + Version
}
