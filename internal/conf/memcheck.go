package conf

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/mem"

	"github.com/shirokudogi/Radio-Transient-Search/internal/logging"
)

// WarnIfMemoryLimitExceedsHost compares the requested memory-limit
// parameter against the host's available RAM and logs a WARNING (never
// fatal) if the builder's memory budget exceeds what is actually
// available.
func WarnIfMemoryLimitExceedsHost(rank int, memoryLimitMB int) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		logging.Warning(rank, fmt.Sprintf("could not determine host memory: %v", err))
		return
	}
	availableMB := int(vm.Available / (1024 * 1024))
	if memoryLimitMB > availableMB {
		logging.Warning(rank, fmt.Sprintf("memory-limit %d MB exceeds %d MB available on host", memoryLimitMB, availableMB))
	}
}
