package mal

import (
	"io"
	"log"
	"os"

	"github.com/mewkiz/pkg/term"
)

// trace and warn are package-level loggers: a colorized prefix built with
// mewkiz/pkg/term, wrapping the standard library's log.Logger. trace is
// silent by default; the CLI front end redirects its output to os.Stderr
// when verbose diagnostics are requested.
var (
	trace = log.New(io.Discard, term.MagentaBold("mal:")+" ", 0)
	warn  = log.New(os.Stderr, term.RedBold("warning:")+" ", 0)
)

// SetVerbose toggles whether builder/allocator phase-transition trace lines
// are written to stderr.
func SetVerbose(v bool) {
	if v {
		trace.SetOutput(os.Stderr)
	} else {
		trace.SetOutput(io.Discard)
	}
}
