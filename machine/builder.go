package machine

import (
	"fmt"

	"github.com/sarchlab/nachos/mem/vm"
	"github.com/sarchlab/nachos/mem/vm/tlb"
)

// A Builder can build machines. The translation options select the TLB, the
// inverted page table and the replacement policy they share.
type Builder struct {
	useTLB          bool
	usePageTable    bool
	policy          vm.Policy
	tlbSize         int
	numPhysPages    int
	pageSize        int
	hostIsBigEndian bool
	interrupt       Interrupt
	handler         ExceptionHandler
	stats           StatsRecorder
}

// MakeBuilder creates a builder for a machine with a 4-entry FIFO TLB, 128
// physical pages and 128-byte pages.
func MakeBuilder() Builder {
	return Builder{
		useTLB:       true,
		policy:       vm.FIFO,
		tlbSize:      4,
		numPhysPages: 128,
		pageSize:     128,
	}
}

// WithTLB enables or disables the TLB.
func (b Builder) WithTLB(enabled bool) Builder {
	b.useTLB = enabled
	return b
}

// WithPageTable enables or disables the inverted page table sized to
// physical memory.
func (b Builder) WithPageTable(enabled bool) Builder {
	b.usePageTable = enabled
	return b
}

// WithPolicy sets the replacement policy of both the TLB and the page table.
func (b Builder) WithPolicy(p vm.Policy) Builder {
	b.policy = p
	return b
}

// WithTLBSize sets the number of TLB entries.
func (b Builder) WithTLBSize(n int) Builder {
	b.tlbSize = n
	return b
}

// WithNumPhysPages sets the number of physical page frames.
func (b Builder) WithNumPhysPages(n int) Builder {
	b.numPhysPages = n
	return b
}

// WithPageSize sets the page size in bytes. It must be a positive multiple of
// 4 so that aligned words never cross pages.
func (b Builder) WithPageSize(n int) Builder {
	b.pageSize = n
	return b
}

// WithHostBigEndian declares the byte order that the host is expected to
// have. Build fails if the host does not match.
func (b Builder) WithHostBigEndian(bigEndian bool) Builder {
	b.hostIsBigEndian = bigEndian
	return b
}

// WithInterrupt sets the interrupt controller that switches processor modes.
func (b Builder) WithInterrupt(i Interrupt) Builder {
	b.interrupt = i
	return b
}

// WithExceptionHandler sets the kernel code that exceptions trap into.
func (b Builder) WithExceptionHandler(h ExceptionHandler) Builder {
	b.handler = h
	return b
}

// WithStats sets the collaborator that counts translation events.
func (b Builder) WithStats(s StatsRecorder) Builder {
	b.stats = s
	return b
}

// Build creates the machine. It panics if the configuration cannot run user
// programs or if the host byte order is not the expected one.
func (b Builder) Build(name string) *Machine {
	b.configurationMustBeValid()

	err := CheckEndian(b.hostIsBigEndian)
	if err != nil {
		panic(err)
	}

	m := &Machine{
		name:         name,
		pageSize:     b.pageSize,
		numPhysPages: b.numPhysPages,
		mainMemory:   make([]byte, b.numPhysPages*b.pageSize),
		frames:       vm.NewFrameAllocator(b.numPhysPages),
		interrupt:    b.interrupt,
		handler:      b.handler,
		stats:        b.stats,
	}

	if m.interrupt == nil {
		m.interrupt = NewStatusRegister()
	}

	if m.stats == nil {
		m.stats = discardStats{}
	}

	if m.handler == nil {
		m.handler = ExceptionHandlerFunc(func(which ExceptionType) {
			panic(fmt.Sprintf("unexpected user mode exception %s", which))
		})
	}

	m.translation = b.buildTranslation(name)

	return m
}

func (b Builder) buildTranslation(name string) Translation {
	var t *tlb.Comp
	if b.useTLB {
		t = tlb.MakeBuilder().
			WithNumEntries(b.tlbSize).
			WithPolicy(b.policy).
			Build(name + ".TLB")
	}

	var pt *vm.PageTable
	if b.usePageTable {
		pt = vm.NewPageTable(b.numPhysPages, b.policy)
	}

	switch {
	case t != nil && pt != nil:
		return Both{TLB: t, PageTable: pt}
	case t != nil:
		return TLBOnly{TLB: t}
	case pt != nil:
		return PageTableOnly{PageTable: pt}
	default:
		return NoTranslation{}
	}
}

func (b Builder) configurationMustBeValid() {
	if !b.useTLB && !b.usePageTable {
		panic("machine needs a TLB or a page table to translate addresses")
	}

	if b.policy != vm.FIFO && b.policy != vm.LRU {
		panic("unknown replacement policy " + b.policy.String())
	}

	if b.pageSize <= 0 || b.pageSize%4 != 0 {
		panic(fmt.Sprintf("page size %d is not a positive multiple of 4",
			b.pageSize))
	}

	if b.numPhysPages <= 0 {
		panic("machine needs at least one physical page")
	}
}
