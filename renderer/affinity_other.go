//go:build !linux

package renderer

import "runtime"

// defaultWorkerCount falls back to the logical CPU count where no
// affinity interface exists.
func defaultWorkerCount() int {
	return runtime.NumCPU()
}
