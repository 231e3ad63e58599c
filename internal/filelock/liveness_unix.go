//go:build !windows

package filelock

import "syscall"

// processAlive reports whether pid names a live process on this
// machine, using the POSIX signal-0 idiom: sending signal 0 performs
// all error checks but delivers nothing.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}
