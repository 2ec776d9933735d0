//go:build unix

package launcher

import "syscall"

// execReplace replaces the current process image with the server process.
func execReplace(argv0 string, argv, envv []string) error {
	return syscall.Exec(argv0, argv, envv)
}
