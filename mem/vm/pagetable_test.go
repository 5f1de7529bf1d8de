package vm

import (
	"bytes"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/nachos/sim"
)

var _ = Describe("PageTable", func() {
	var (
		pt     *PageTable
		events []sim.HookCtx
	)

	install := func(frame int, asid AddressSpaceID, vpn int) {
		pt.Install(frame, TranslationEntry{
			VirtualPage:    vpn,
			AddressSpaceID: asid,
			Valid:          true,
		})
	}

	BeforeEach(func() {
		events = nil
		pt = NewPageTable(4, FIFO)
		pt.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
			events = append(events, ctx)
		}))
	})

	It("should start empty", func() {
		for _, e := range pt.Entries() {
			Expect(e.Valid).To(BeFalse())
			Expect(e.VirtualPage).To(Equal(InvalidPage))
		}
	})

	It("should find an installed page by address space and page", func() {
		install(2, 1, 9)

		frame, entry, found := pt.Lookup(1, 9)

		Expect(found).To(BeTrue())
		Expect(frame).To(Equal(2))
		Expect(entry.PhysicalFrame).To(Equal(2))
		Expect(events).To(HaveLen(1))
		Expect(events[0].Pos).To(BeIdenticalTo(HookPosPageInstall))
	})

	It("should not find a page of another address space", func() {
		install(2, 1, 9)

		_, _, found := pt.Lookup(2, 9)

		Expect(found).To(BeFalse())
	})

	It("should mark use and dirty on visit", func() {
		install(0, 1, 3)

		pt.Visit(0, true)

		e := pt.Entry(0)
		Expect(e.Use).To(BeTrue())
		Expect(e.Dirty).To(BeTrue())
	})

	It("should merge flags written back from a cache", func() {
		install(0, 1, 3)
		before := pt.Entry(0)

		pt.WriteBack(0, TranslationEntry{Use: true, Dirty: true, FIFOOrder: 9})

		e := pt.Entry(0)
		Expect(e.Use).To(BeTrue())
		Expect(e.Dirty).To(BeTrue())
		Expect(e.FIFOOrder).To(Equal(before.FIFOOrder))
	})

	It("should panic when visiting an empty frame", func() {
		Expect(func() { pt.Visit(1, false) }).To(Panic())
	})

	It("should refuse to install an invalid entry", func() {
		Expect(func() { pt.Install(0, EmptyEntry()) }).To(Panic())
	})

	It("should choose the oldest frame under FIFO", func() {
		install(1, 1, 10)
		install(3, 1, 11)
		install(0, 1, 12)
		install(2, 1, 13)

		Expect(pt.FindVictim()).To(Equal(1))
	})

	It("should choose the least recently used frame under LRU", func() {
		pt = NewPageTable(3, LRU)
		install(0, 1, 10)
		install(1, 1, 11)
		install(2, 1, 12)

		pt.Visit(0, false)

		Expect(pt.FindVictim()).To(Equal(1))
	})

	It("should evict and return the old mapping", func() {
		install(1, 1, 10)
		pt.Visit(1, true)

		old := pt.Evict(1)

		Expect(old.VirtualPage).To(Equal(10))
		Expect(old.Dirty).To(BeTrue())
		Expect(pt.Entry(1).VirtualPage).To(Equal(InvalidPage))
		Expect(events[len(events)-1].Pos).To(BeIdenticalTo(HookPosPageEvict))
	})

	It("should tear down an address space", func() {
		install(0, 1, 10)
		install(1, 2, 10)
		install(3, 1, 11)

		frames := pt.InvalidateAddressSpace(1)

		Expect(frames).To(Equal([]int{0, 3}))
		_, _, found := pt.Lookup(2, 10)
		Expect(found).To(BeTrue())
	})

	It("should dump occupied frames only", func() {
		install(2, 3, 7)
		buf := new(bytes.Buffer)

		pt.Dump(buf)

		Expect(buf.String()).To(Equal(
			"RPT now:\nppn\tvpn\tTID\tvalid\treadonly\tuse\tdirty\tFIFO\tLRU\n" +
				"2\t7\t3\t1\t0\t0\t0\t0\t0\n"))
	})
})
