//go:build linux

package renderer

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// defaultWorkerCount derives the pool size from the process CPU
// affinity mask, as threads outside it would only contend.
func defaultWorkerCount() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err == nil {
		if n := set.Count(); n > 0 {
			return n
		}
	}
	return runtime.NumCPU()
}
