package gpu

import (
	"fmt"
	"sort"
	"sync"
)

// Backend names.
const (
	BackendGL   = "gl"
	BackendSoft = "soft"
	BackendAuto = "auto"
)

// Options configures a device at creation time.
type Options struct {
	// MemoryLimit caps the bytes of fields and buffers a device will
	// allocate. Zero means no limit beyond what the backend enforces.
	MemoryLimit int64

	// Workers is the number of worker goroutines for backends that
	// execute on the CPU. Zero selects GOMAXPROCS.
	Workers int
}

// Factory opens a device.
type Factory func(opts Options) (Device, error)

var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for BackendAuto (first that opens wins).
	backendPriority = []string{BackendGL, BackendSoft}
)

// Register makes a backend available under name. Backend packages call this
// from init.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Available returns the registered backend names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates a device from the named backend. BackendAuto (or "") tries
// the registered backends in priority order and returns the first that opens.
func Open(name string, opts Options) (Device, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if name != "" && name != BackendAuto {
		factory, ok := backends[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q (registered: %v)", ErrBackendNotAvailable, name, sortedKeys())
		}
		return factory(opts)
	}

	var lastErr error
	for _, candidate := range backendPriority {
		factory, ok := backends[candidate]
		if !ok {
			continue
		}
		dev, err := factory(opts)
		if err == nil {
			return dev, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendNotAvailable, lastErr)
	}
	return nil, ErrBackendNotAvailable
}

// sortedKeys lists registered names. Caller holds registryMu.
func sortedKeys() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
