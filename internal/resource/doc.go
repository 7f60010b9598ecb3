// Package resource governs the shared resources of a running store.
//
//   - Memory: arena backing blocks reserve their size before allocation
//     (non-blocking, fail-fast).
//   - Workers: bound the number of concurrent refresh workers.
//   - Embedding: token bucket in front of the external embedding service.
//
// Usage:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30,
//	    MaxWorkers:       4,
//	    EmbedPerSecond:   20,
//	})
//
//	if err := rc.AcquireMemory(n); err != nil {
//	    // ErrMemoryLimitExceeded
//	}
//	defer rc.ReleaseMemory(n)
//
// All methods are safe for concurrent use, and all of them are no-ops on a
// nil *Controller so limits stay optional.
package resource
