// SPDX-License-Identifier: MIT
//
// Package build provides functionality to manage and retrieve build information
// for a Go application. It allows embedding metadata such as the application
// name, build timestamp, Git commit hash, and semantic version into the binary
// at compile time using linker flags:
//
//	go build -ldflags "-X pitchscope/pkg/build.buildName=pitchscope \
//	  -X pitchscope/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds without linker flags fall back to the Go module build
// information where it is available.
package build

import (
	"errors"
	"fmt"
	"runtime/debug"
)

const (
	defaultName        = "pitchscope"
	defaultDescription = "Real-time pitch and spectrum analyzer for line-level audio"
)

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation. Default values of "unknown" are used during development.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:        defaultName,
		Description: defaultDescription,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "unknown",
	}
)

// readBuildInfo is replaced in tests.
var readBuildInfo = debug.ReadBuildInfo

// Initialize copies build information from the ldflags variables into the
// build flags. Every missing flag is reported in the returned error; missing
// values keep their defaults or are taken from the module build info, so the
// flags are usable even when Initialize fails.
func Initialize() error {
	var errs []error
	set := func(dst *string, value, flag string) {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s is required", flag))
			return
		}
		*dst = value
	}

	fallback()
	set(&buildFlags.Name, buildName, "BuildName")
	set(&buildFlags.Time, buildTime, "BuildTime")
	set(&buildFlags.Commit, buildCommit, "BuildCommit")
	set(&buildFlags.Version, buildVersion, "BuildVersion")

	return errors.Join(errs...)
}

// fallback fills version, commit and time from the embedded module info.
func fallback() {
	info, ok := readBuildInfo()
	if !ok {
		return
	}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		buildFlags.Version = v
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			buildFlags.Commit = s.Value
		case "vcs.time":
			buildFlags.Time = s.Value
		}
	}
}

// GetBuildFlags returns the current build information. Initialize()
// must be called before this function to ensure the build information
// is valid. This function is safe to call after initialization.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// String formats the build information for --version output and logs.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}
