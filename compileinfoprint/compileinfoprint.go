// Package compileinfoprint is blank-imported by commands for the side effect
// of printing build provenance to os.Stderr at startup.
package compileinfoprint

import "github.com/danceqc/posemisc/compileinfo"

func init() {
	compileinfo.PrintToStdErr()
}
