// Command tuna runs a real-time underwater-acoustic analysis
// pipeline: a producer (sound file, live capture, or zero generator)
// feeds a cross-thread queue that fans out to time-slice and pulse
// analysis stages, each writing CSV or DAT records to disk.
package main

import (
	"fmt"
	"os"

	"github.com/tphakala/tuna/cmd"
	"github.com/tphakala/tuna/internal/terrors"
)

func main() {
	if err := cmd.RootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps a pipeline error to a negative process exit code: the
// code of the first EnhancedError found in err's chain. An error with
// no EnhancedError in its chain exits 1.
func exitCode(err error) int {
	var ee *terrors.EnhancedError
	if terrors.As(err, &ee) {
		return ee.Code()
	}
	return 1
}
