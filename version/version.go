// Package version tells which build of koji is running.
package version

import "runtime/debug"

// Version can be set at build time using something like:
// go build -ldflags "-X github.com/cienicera/Koji/version.Version=$(git describe --dirty)" ./cmd/koji-convert
var Version string

// Revision is the short VCS revision the binary was built from, suffixed with
// -dirty if the work tree had local changes. It is empty when the go tool did
// not stamp the build.
var Revision, moduleVersion = func() (string, string) {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	var rev string
	modified := false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			rev = setting.Value
			if len(rev) > 7 {
				rev = rev[:7]
			}
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if rev != "" && modified {
		rev += "-dirty"
	}
	return rev, info.Main.Version
}()

// String is Version if set, else the module version of a go install'ed binary,
// else the revision, else "devel".
func String() string {
	switch {
	case Version != "":
		return Version
	case moduleVersion != "" && moduleVersion != "(devel)":
		return moduleVersion
	case Revision != "":
		return Revision
	}
	return "devel"
}
