// Package platform tracks the simulated platform's hosts. Hosts are
// identified by dense integer ids in [0, N); the pool only stores which of
// them are currently free, everything else is inferred by callers.
package platform

import "slices"

// Pool holds the host count and the set of currently free host ids.
// The zero value is an empty platform; call Init once the host count is
// known.
type Pool struct {
	hosts int
	free  []int // ascending
}

// NewPool returns a pool of n hosts, all free.
func NewPool(n int) *Pool {
	p := &Pool{}
	p.Init(n)
	return p
}

// Init sets the platform size and marks every host free. Any previous
// state is discarded.
func (p *Pool) Init(n int) {
	p.hosts = n
	p.free = make([]int, n)
	for i := range p.free {
		p.free[i] = i
	}
}

// Hosts returns the platform host count N.
func (p *Pool) Hosts() int { return p.hosts }

// FreeCount returns the number of currently free hosts.
func (p *Pool) FreeCount() int { return len(p.free) }

// BusyCount returns the number of currently occupied hosts.
func (p *Pool) BusyCount() int { return p.hosts - len(p.free) }

// Fits reports whether count hosts could be allocated right now.
func (p *Pool) Fits(count int) bool { return count <= len(p.free) }

// Allocate removes and returns the count lowest-numbered free host ids.
// The lowest-id tie-break keeps allocations deterministic across runs.
func (p *Pool) Allocate(count int) ([]int, error) {
	if count > len(p.free) {
		return nil, ErrNotEnoughHosts
	}
	granted := make([]int, count)
	copy(granted, p.free[:count])
	p.free = p.free[count:]
	return granted, nil
}

// Release returns host ids to the free set. The caller guarantees no host
// is released twice.
func (p *Pool) Release(hosts []int) {
	p.free = append(p.free, hosts...)
	slices.Sort(p.free)
}
