package version

import "runtime/debug"

// Version is the build version, normally stamped with -ldflags. When left at
// the default it falls back to the module version recorded by go install.
var Version = "dev"

func init() {
	if Version != "dev" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}
}
