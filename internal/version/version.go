/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version provides build version information.
package version

import "fmt"

// Version is the current version of Chorus.
// Set at build time via ldflags:
//
//	-X github.com/friendsincode/chorus/internal/version.Version=X.Y.Z
var Version = "0.1.0"

// GitCommit is the commit hash the binary was built from, set via ldflags.
var GitCommit = "unknown"

// Info bundles version details for the health endpoint and CLI.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
}

// Get returns the build information.
func Get() Info {
	return Info{
		Version:   Version,
		GitCommit: GitCommit,
	}
}

// String renders the version for CLI output.
func (i Info) String() string {
	return fmt.Sprintf("chorus %s (%s)", i.Version, i.GitCommit)
}
