package backend

import (
	"golang.org/x/sys/cpu"
)

// Pass identifies one optimization pass.
type Pass uint8

const (
	SROA Pass = iota
	InstructionCombining
	CFGSimplification
	LICM
	AggressiveDCE
	GVN
	Reassociate
	DeadStoreElimination
	SCCP
	EarlyCSE

	passCount
)

var passNames = [passCount]string{
	"sroa", "instcombine", "simplifycfg", "licm", "adce",
	"gvn", "reassociate", "dse", "sccp", "early-cse",
}

// String returns the pass name.
func (p Pass) String() string {
	if int(p) < len(passNames) {
		return passNames[p]
	}
	return "?"
}

// Config controls routine materialization.
type Config struct {
	// Passes is the optimizer pass list, run in order. An empty list
	// is replaced by DefaultPasses.
	Passes []Pass

	// Verify runs the IR verifier before optimization and fails
	// materialization on any defect.
	Verify bool

	// NoOptimize disables the optimizer entirely; used for the
	// retry-after-failure path.
	NoOptimize bool
}

// DefaultPasses is the standard pass list.
var DefaultPasses = []Pass{SROA, InstructionCombining}

// DefaultConfig returns the standard configuration.
func DefaultConfig() Config {
	return Config{Passes: DefaultPasses}
}

// Features describes the host CPU capabilities detected at backend
// init. They are reported only; the engine's lowerings do not depend
// on them.
type Features struct {
	SSE41 bool
	AVX   bool
	AVX2  bool
	FMA   bool
}

// DetectFeatures queries the host CPU once at backend init.
func DetectFeatures() Features {
	return Features{
		SSE41: cpu.X86.HasSSE41,
		AVX:   cpu.X86.HasAVX,
		AVX2:  cpu.X86.HasAVX2,
		FMA:   cpu.X86.HasFMA,
	}
}

// hostFeatures is the cached detection result.
var hostFeatures = DetectFeatures()

// HostFeatures returns the features detected at initialization.
func HostFeatures() Features {
	return hostFeatures
}
