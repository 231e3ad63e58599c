//go:build windows

package filelock

import "github.com/shirou/gopsutil/v4/process"

// processAlive reports whether pid names a live process on this
// machine via gopsutil's portable process table query.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := process.PidExists(int32(pid))
	if err != nil {
		return false
	}
	return ok
}
