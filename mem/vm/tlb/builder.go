package tlb

import (
	"github.com/sarchlab/nachos/mem/vm"
)

// A Builder can build TLBs
type Builder struct {
	numEntries int
	policy     vm.Policy
}

// MakeBuilder returns a Builder
func MakeBuilder() Builder {
	return Builder{
		numEntries: 4,
		policy:     vm.FIFO,
	}
}

// WithNumEntries sets the number of entries in the TLB.
func (b Builder) WithNumEntries(n int) Builder {
	b.numEntries = n
	return b
}

// WithPolicy sets the replacement policy used when the TLB is full.
func (b Builder) WithPolicy(p vm.Policy) Builder {
	b.policy = p
	return b
}

// Build creates a new TLB
func (b Builder) Build(name string) *Comp {
	if b.numEntries <= 0 {
		panic("TLB must have at least one entry")
	}

	if b.policy != vm.FIFO && b.policy != vm.LRU {
		panic("unknown TLB replacement policy " + b.policy.String())
	}

	c := &Comp{
		name:    name,
		policy:  b.policy,
		entries: make([]vm.TranslationEntry, b.numEntries),
	}
	c.Reset()

	return c
}
