package util

import "runtime"

// Process is a point-in-time view of the linker process, reported by the
// health endpoint.
type Process struct {
	HeapMB     uint64
	Goroutines int
}

func ReadProcess() Process {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return Process{
		HeapMB:     ms.HeapAlloc >> 20,
		Goroutines: runtime.NumGoroutine(),
	}
}
