// Package version carries build-time identification, filled in via
// -ldflags by the release process. Zero values are fine for local builds.
package version

var (
	version  = "dev"
	revision = "none"
	branch   = "none"
	date     = "unknown"
)

func Version() string  { return version }
func Revision() string { return revision }
func Branch() string   { return branch }
func Date() string     { return date }
