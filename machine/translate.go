package machine

import (
	"github.com/sarchlab/nachos/mem/vm"
	"github.com/sarchlab/nachos/mem/vm/tlb"
	"github.com/sarchlab/nachos/sim"
)

// HookPosTLBMiss marks a TLB lookup that found no valid entry. The hook item
// is a TranslationFault.
var HookPosTLBMiss = &sim.HookPos{Name: "TLBMiss"}

// HookPosPageFault marks a page table lookup that found no valid entry. The
// hook item is a TranslationFault.
var HookPosPageFault = &sim.HookPos{Name: "PageFault"}

// A TranslationFault describes a failed lookup.
type TranslationFault struct {
	AddressSpaceID vm.AddressSpaceID
	VirtAddr       int
	VirtualPage    int
}

// Translate converts a virtual address into a physical address. The
// exception to raise is returned if the translation fails; the physical
// address is only meaningful with NoException.
//
// A successful translation sets the use bit of the entry, and the dirty bit if
// writing.
func (m *Machine) Translate(
	virtAddr int,
	size int,
	writing bool,
) (physAddr int, exception ExceptionType) {
	m.stats.CountAddressTranslation()

	if virtAddr < 0 ||
		(size == 4 && virtAddr&0x3 != 0) ||
		(size == 2 && virtAddr&0x1 != 0) {
		return 0, AddressErrorException
	}

	vpn := virtAddr / m.pageSize
	offset := virtAddr % m.pageSize

	var (
		entry vm.TranslationEntry
		visit func()
	)

	switch t := m.translation.(type) {
	case TLBOnly:
		entry, visit, exception = m.lookupTLB(t.TLB, virtAddr, vpn, writing)
	case Both:
		entry, visit, exception = m.lookupTLB(t.TLB, virtAddr, vpn, writing)
		if exception == NoException {
			visit = visitBacking(t.PageTable, entry, visit, writing)
		}
	case PageTableOnly:
		entry, visit, exception = m.lookupPageTable(
			t.PageTable, virtAddr, vpn, writing)
	case NoTranslation:
		panic("machine " + m.name + " has no translation structure")
	default:
		panic("unknown translation")
	}

	if exception != NoException {
		return 0, exception
	}

	if entry.ReadOnly && writing {
		return 0, ReadOnlyException
	}

	if entry.PhysicalFrame < 0 || entry.PhysicalFrame >= m.numPhysPages {
		return 0, BusErrorException
	}

	visit()

	return entry.PhysicalFrame*m.pageSize + offset, NoException
}

func (m *Machine) lookupTLB(
	t *tlb.Comp,
	virtAddr, vpn int,
	writing bool,
) (vm.TranslationEntry, func(), ExceptionType) {
	slot, entry, found := t.Lookup(m.addressSpace, vpn)
	if !found {
		m.stats.CountTLBMiss()
		m.invokeFaultHook(HookPosTLBMiss, virtAddr, vpn)

		return entry, nil, TLBMissException
	}

	return entry, func() { t.Visit(slot, writing) }, NoException
}

// visitBacking extends the visit of a TLB hit to the page table slot that
// backs the entry, so that the page table sees every use of its pages.
func visitBacking(
	pt *vm.PageTable,
	entry vm.TranslationEntry,
	visitTLB func(),
	writing bool,
) func() {
	return func() {
		visitTLB()

		frame := entry.PhysicalFrame
		if pt.Entry(frame).Maps(entry.AddressSpaceID, entry.VirtualPage) {
			pt.Visit(frame, writing)
		}
	}
}

func (m *Machine) lookupPageTable(
	pt *vm.PageTable,
	virtAddr, vpn int,
	writing bool,
) (vm.TranslationEntry, func(), ExceptionType) {
	frame, entry, found := pt.Lookup(m.addressSpace, vpn)
	if !found {
		m.stats.CountPageFault()
		m.invokeFaultHook(HookPosPageFault, virtAddr, vpn)

		return entry, nil, PageFaultException
	}

	return entry, func() { pt.Visit(frame, writing) }, NoException
}

func (m *Machine) invokeFaultHook(pos *sim.HookPos, virtAddr, vpn int) {
	m.InvokeHook(sim.HookCtx{
		Domain: m,
		Pos:    pos,
		Item: TranslationFault{
			AddressSpaceID: m.addressSpace,
			VirtAddr:       virtAddr,
			VirtualPage:    vpn,
		},
	})
}
