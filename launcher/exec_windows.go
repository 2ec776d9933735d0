//go:build windows

package launcher

import (
	"fmt"
	"runtime"
)

// execReplace is unavailable on Windows, which has no exec-style
// process replacement.
func execReplace(argv0 string, argv, envv []string) error {
	return fmt.Errorf("process replacement not supported on %s", runtime.GOOS)
}
