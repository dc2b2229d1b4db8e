// Package compileinfo reports the VCS state a binary was compiled from, so a
// result file can be traced back to the exact commit that produced it.
package compileinfo

import (
	"fmt"
	"os"
	"runtime/debug"
)

type Info struct {
	Module     string
	GoVersion  string
	Commit     string
	CommitTime string
	Dirty      bool
}

func (inf Info) String() string {
	commit := inf.Commit
	if commit == "" {
		commit = "an unknown commit"
	} else if inf.Dirty {
		commit += " (with uncommitted changes)"
	}

	return fmt.Sprintf("%s built with %s from %s at %s", inf.Module, inf.GoVersion, commit, inf.CommitTime)
}

// Current reads the build metadata stamped into the running binary. Binaries
// built outside a checkout come back mostly empty.
func Current() Info {
	inf := Info{}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return inf
	}

	inf.Module = bi.Path
	inf.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			inf.Commit = s.Value
		case "vcs.time":
			inf.CommitTime = s.Value
		case "vcs.modified":
			inf.Dirty = s.Value == "true"
		}
	}

	return inf
}

func PrintToStdErr() {
	fmt.Fprintln(os.Stderr, Current())
}
