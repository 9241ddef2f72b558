package resource

import (
	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/mem"
)

// defaultMemoryFraction is the share of total system memory used to pick a
// default maxMemoryMB when the operator does not configure one explicitly.
const defaultMemoryFraction = 0.5

// DefaultMaxMemoryMB returns half of total system memory in MB, preferring
// ghw's one-shot hardware snapshot and falling back to gopsutil's live
// sample if ghw cannot read the host's memory block.
func DefaultMaxMemoryMB() float64 {
	if info, err := ghw.Memory(); err == nil && info.TotalPhysicalBytes > 0 {
		return float64(info.TotalPhysicalBytes) / 1024 / 1024 * defaultMemoryFraction
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm.Total > 0 {
		return float64(vm.Total) / 1024 / 1024 * defaultMemoryFraction
	}
	return 2048
}
