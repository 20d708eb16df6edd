// Package soft is a CPU implementation of the gpu.Device contract.
//
// Kernels are Go programs registered under the name of their GLSL source.
// The device reads local size, uniform and binding declarations from the
// GLSL text so the same gpu.Source drives both this backend and the OpenGL
// one. Work groups are spread over a persistent worker pool.
package soft

import (
	"sort"
	"sync"
)

// Program executes a range of work groups of a dispatch.
//
// Run is called concurrently for disjoint ranges [first, last) of linear
// work group indices. Implementations must only write memory owned by the
// work items in their range.
type Program interface {
	Run(inv *Invocation, first, last int)
}

// Preparer is implemented by programs that need a serial step before the
// work groups run, such as snapshotting an image they update in place.
type Preparer interface {
	Prepare(inv *Invocation)
}

// Resolver is implemented by programs that need a serial step after all
// work groups completed, such as applying scattered writes.
type Resolver interface {
	Resolve(inv *Invocation)
}

var (
	programsMu sync.RWMutex
	programs   = make(map[string]Program)
)

// RegisterProgram binds a program to a kernel name.
func RegisterProgram(name string, p Program) {
	programsMu.Lock()
	defer programsMu.Unlock()
	programs[name] = p
}

// Programs returns the registered program names.
func Programs() []string {
	programsMu.RLock()
	defer programsMu.RUnlock()
	names := make([]string, 0, len(programs))
	for name := range programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupProgram(name string) (Program, bool) {
	programsMu.RLock()
	defer programsMu.RUnlock()
	p, ok := programs[name]
	return p, ok
}
