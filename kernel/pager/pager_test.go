package pager

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/nachos/machine"
	"github.com/sarchlab/nachos/machine/stats"
	"github.com/sarchlab/nachos/mem/vm"
	"github.com/sarchlab/nachos/sim"
)

const pageSize = 128

func read(m *machine.Machine, addr int) int {
	for range 3 {
		if value, ok := m.ReadMem(addr, 4); ok {
			return value
		}
	}

	Fail("read did not complete")

	return 0
}

func write(m *machine.Machine, addr int, value int) {
	for range 3 {
		if m.WriteMem(addr, 4, value) {
			return
		}
	}

	Fail("write did not complete")
}

var _ = Describe("Pager", func() {
	var (
		counters *stats.Statistics
		builder  machine.Builder
		m        *machine.Machine
		p        *Pager
	)

	BeforeEach(func() {
		counters = stats.New(true)
		builder = machine.MakeBuilder().
			WithPageSize(pageSize).
			WithStats(counters)
	})

	build := func() {
		m = builder.Build("M")
		m.SetAddressSpace(1)
		p = New(m)
	}

	Context("with TLB only", func() {
		BeforeEach(func() {
			builder = builder.
				WithTLB(true).
				WithPageTable(false).
				WithTLBSize(2).
				WithNumPhysPages(2)
		})

		It("should map a zeroed frame on first touch", func() {
			build()

			Expect(read(m, 3*pageSize+4)).To(Equal(0))
			Expect(counters.NumTLBMiss).To(Equal(uint64(1)))
			Expect(counters.NumPageFaults).To(Equal(uint64(1)))
			Expect(p.NumResidentPages(1)).To(Equal(1))
			Expect(p.Err(1)).ToNot(HaveOccurred())
		})

		It("should keep the data written to a page", func() {
			build()

			write(m, 3*pageSize+4, 42)

			Expect(read(m, 3*pageSize+4)).To(Equal(42))
			Expect(counters.NumPageFaults).To(Equal(uint64(1)))
		})

		It("should refill from the forward table after a TLB eviction", func() {
			builder = builder.WithTLBSize(1)
			build()

			write(m, 0*pageSize, 7)
			read(m, 1*pageSize)
			Expect(read(m, 0*pageSize)).To(Equal(7))

			Expect(counters.NumTLBMiss).To(Equal(uint64(3)))
			Expect(counters.NumPageFaults).To(Equal(uint64(2)))
		})

		It("should write back the dirty bit of an evicted TLB entry", func() {
			builder = builder.WithTLBSize(1)
			build()

			write(m, 0*pageSize, 7)
			read(m, 1*pageSize)

			e, found := p.spaces.find(1, 0)
			Expect(found).To(BeTrue())
			Expect(e.Dirty).To(BeTrue())
			Expect(e.Use).To(BeTrue())

			e, _ = p.spaces.find(1, 1)
			Expect(e.Dirty).To(BeFalse())
		})

		It("should fail the address space when memory runs out", func() {
			build()

			read(m, 0*pageSize)
			read(m, 1*pageSize)

			_, ok := m.ReadMem(2*pageSize, 4)

			Expect(ok).To(BeFalse())
			Expect(errors.Is(p.Err(1), vm.ErrNoFreeFrame)).To(BeTrue())
			Expect(p.Err(2)).ToNot(HaveOccurred())
		})

		It("should release the frames of an address space", func() {
			build()

			read(m, 0*pageSize)
			m.SetAddressSpace(2)
			read(m, 0*pageSize)
			Expect(m.NumFreePageFrames()).To(Equal(0))

			p.ReleaseAddressSpace(1)

			Expect(m.NumFreePageFrames()).To(Equal(1))
			Expect(p.NumResidentPages(1)).To(Equal(0))

			c, _ := machine.TLBOf(m.Translation())
			_, _, found := c.Lookup(1, 0)
			Expect(found).To(BeFalse())
			_, _, found = c.Lookup(2, 0)
			Expect(found).To(BeTrue())
		})
	})

	Context("with TLB and page table", func() {
		BeforeEach(func() {
			builder = builder.
				WithTLB(true).
				WithPageTable(true).
				WithPolicy(vm.FIFO).
				WithTLBSize(2).
				WithNumPhysPages(2)
		})

		It("should refill the TLB from the page table", func() {
			builder = builder.WithTLBSize(1)
			build()

			read(m, 0*pageSize)
			read(m, 1*pageSize)
			read(m, 0*pageSize)

			Expect(counters.NumTLBMiss).To(Equal(uint64(3)))
			Expect(counters.NumPageFaults).To(Equal(uint64(2)))
			Expect(p.NumEvictions()).To(Equal(0))
		})

		It("should evict the oldest page and keep its data", func() {
			build()

			write(m, 0*pageSize, 10)
			write(m, 1*pageSize, 11)
			write(m, 2*pageSize, 12)

			Expect(p.NumEvictions()).To(Equal(1))
			Expect(p.NumSwapOuts()).To(Equal(1))

			pt, _ := machine.PageTableOf(m.Translation())
			_, _, found := pt.Lookup(1, 0)
			Expect(found).To(BeFalse())

			c, _ := machine.TLBOf(m.Translation())
			_, _, found = c.Lookup(1, 0)
			Expect(found).To(BeFalse())

			Expect(read(m, 0*pageSize)).To(Equal(10))
			Expect(p.NumSwapIns()).To(Equal(1))
			Expect(read(m, 2*pageSize)).To(Equal(12))
		})

		It("should evict the least recently used page under LRU", func() {
			builder = builder.WithPolicy(vm.LRU)
			build()

			read(m, 0*pageSize)
			read(m, 1*pageSize)
			read(m, 0*pageSize)
			read(m, 2*pageSize)

			Expect(counters.NumTLBMiss).To(Equal(uint64(3)))
			Expect(p.NumEvictions()).To(Equal(1))

			pt, _ := machine.PageTableOf(m.Translation())
			_, _, found := pt.Lookup(1, 0)
			Expect(found).To(BeTrue())
			frame, _, found := pt.Lookup(1, 2)
			Expect(found).To(BeTrue())
			Expect(frame).To(Equal(1))
			_, _, found = pt.Lookup(1, 1)
			Expect(found).To(BeFalse())
		})

		It("should not save clean pages", func() {
			build()

			read(m, 0*pageSize)
			read(m, 1*pageSize)
			read(m, 2*pageSize)

			Expect(p.NumEvictions()).To(Equal(1))
			Expect(p.NumSwapOuts()).To(Equal(0))
		})

		It("should report swap events through hooks", func() {
			build()

			var swappedOut []SwapEvent
			p.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
				if ctx.Pos == HookPosSwapOut {
					swappedOut = append(swappedOut, ctx.Item.(SwapEvent))
				}
			}))

			write(m, 0*pageSize, 10)
			write(m, 1*pageSize, 11)
			write(m, 2*pageSize, 12)

			Expect(swappedOut).To(HaveLen(1))
			Expect(swappedOut[0].Frame).To(Equal(0))
			Expect(swappedOut[0].Entry.VirtualPage).To(Equal(0))
		})

		It("should tear down an address space", func() {
			build()

			read(m, 0*pageSize)
			m.SetAddressSpace(2)
			read(m, 0*pageSize)

			p.ReleaseAddressSpace(1)

			Expect(m.NumFreePageFrames()).To(Equal(1))

			pt, _ := machine.PageTableOf(m.Translation())
			_, _, found := pt.Lookup(1, 0)
			Expect(found).To(BeFalse())
			_, _, found = pt.Lookup(2, 0)
			Expect(found).To(BeTrue())
		})
	})

	Context("with page table only", func() {
		BeforeEach(func() {
			builder = builder.
				WithTLB(false).
				WithPageTable(true).
				WithPolicy(vm.LRU).
				WithNumPhysPages(1)
		})

		It("should page in on page faults", func() {
			build()

			write(m, 0*pageSize, 5)
			read(m, 1*pageSize)

			Expect(p.NumSwapOuts()).To(Equal(1))
			Expect(read(m, 0*pageSize)).To(Equal(5))
			Expect(counters.NumPageFaults).To(Equal(uint64(3)))
			Expect(counters.NumTLBMiss).To(Equal(uint64(0)))
		})
	})

	It("should fail the address space on exceptions it cannot handle", func() {
		build()

		m.RaiseException(machine.SyscallException, 0)

		Expect(p.Err(1)).To(MatchError(ContainSubstring("syscall")))
	})

	It("should keep the first failure", func() {
		build()

		m.RaiseException(machine.OverflowException, 0)
		m.RaiseException(machine.SyscallException, 0)

		Expect(p.Err(1)).To(MatchError(ContainSubstring("overflow")))
	})
})
