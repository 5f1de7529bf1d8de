// Package pager provides a reference kernel exception handler that services
// TLB misses and page faults raised by a machine.
//
// In TLB-only builds the pager keeps a forward page table for every address
// space and allocates a zeroed frame the first time a page is touched. When
// an inverted page table is present, the pager installs pages into it,
// evicting a victim chosen by the replacement policy once physical memory is
// full. Dirty victims are saved to a swap area and brought back on their
// next fault.
package pager

import (
	"errors"
	"fmt"

	"github.com/sarchlab/nachos/machine"
	"github.com/sarchlab/nachos/mem/vm"
	"github.com/sarchlab/nachos/mem/vm/tlb"
	"github.com/sarchlab/nachos/sim"
)

// HookPosSwapOut marks a dirty page being written to the swap area.
var HookPosSwapOut = &sim.HookPos{Name: "Pager Swap Out"}

// HookPosSwapIn marks a page being restored from the swap area.
var HookPosSwapIn = &sim.HookPos{Name: "Pager Swap In"}

// SwapEvent is the hook item of the swap positions.
type SwapEvent struct {
	Frame int
	Entry vm.TranslationEntry
}

type pageKey struct {
	asid vm.AddressSpaceID
	vpn  int
}

// A Pager resolves translation faults on behalf of the kernel.
type Pager struct {
	sim.HookableBase

	machine *machine.Machine
	spaces  *addressSpaces
	swap    map[pageKey][]byte

	failures map[vm.AddressSpaceID]error

	numEvictions int
	numSwapOuts  int
	numSwapIns   int
}

// New creates a pager and installs it as the exception handler of m.
func New(m *machine.Machine) *Pager {
	p := &Pager{
		machine:  m,
		spaces:   newAddressSpaces(),
		swap:     make(map[pageKey][]byte),
		failures: make(map[vm.AddressSpaceID]error),
	}

	m.SetExceptionHandler(p)

	return p
}

// Handle services the exception that the machine just raised. Exceptions
// that the pager cannot resolve fail the current address space. The failure
// can be retrieved with Err.
func (p *Pager) Handle(which machine.ExceptionType) {
	asid := p.machine.AddressSpace()
	badVAddr := p.machine.ReadRegister(machine.BadVAddrReg)
	vpn := badVAddr / p.machine.PageSize()

	var err error

	switch which {
	case machine.TLBMissException:
		err = p.refillTLB(asid, vpn)
	case machine.PageFaultException:
		err = p.pageIn(asid, vpn)
	default:
		err = fmt.Errorf("unexpected user mode exception %s at 0x%x",
			which, badVAddr)
	}

	if err != nil {
		p.fail(asid, err)
	}
}

// Err returns the error that failed an address space, if any.
func (p *Pager) Err(asid vm.AddressSpaceID) error {
	return p.failures[asid]
}

// NumEvictions returns how many pages were pushed out of physical memory.
func (p *Pager) NumEvictions() int {
	return p.numEvictions
}

// NumSwapOuts returns how many evicted pages were dirty and had to be saved.
func (p *Pager) NumSwapOuts() int {
	return p.numSwapOuts
}

// NumSwapIns returns how many faults were served from the swap area.
func (p *Pager) NumSwapIns() int {
	return p.numSwapIns
}

// NumResidentPages returns how many pages of an address space are mapped in
// the forward page table. It is always zero for machines with an inverted
// page table.
func (p *Pager) NumResidentPages(asid vm.AddressSpaceID) int {
	return p.spaces.numPages(asid)
}

// ReleaseAddressSpace tears down an address space. Its cached translations
// are dropped, its frames return to the free pool and its swapped pages are
// discarded.
func (p *Pager) ReleaseAddressSpace(asid vm.AddressSpaceID) {
	t := p.machine.Translation()

	if c, ok := machine.TLBOf(t); ok {
		c.InvalidateAddressSpace(asid)
	}

	if pt, ok := machine.PageTableOf(t); ok {
		for _, frame := range pt.InvalidateAddressSpace(asid) {
			p.machine.ReleasePageFrame(frame)
		}
	}

	for _, e := range p.spaces.release(asid) {
		p.machine.ReleasePageFrame(e.PhysicalFrame)
	}

	for key := range p.swap {
		if key.asid == asid {
			delete(p.swap, key)
		}
	}

	delete(p.failures, asid)
}

func (p *Pager) fail(asid vm.AddressSpaceID, err error) {
	if _, failed := p.failures[asid]; failed {
		return
	}

	p.failures[asid] = err
}

func (p *Pager) refillTLB(asid vm.AddressSpaceID, vpn int) error {
	var (
		entry vm.TranslationEntry
		err   error
	)

	switch t := p.machine.Translation().(type) {
	case machine.TLBOnly:
		entry, err = p.resolveForward(asid, vpn)
	case machine.Both:
		var pagedIn bool

		entry, pagedIn, err = p.resolveInverted(t.PageTable, t.TLB, asid, vpn)
		if pagedIn {
			p.machine.Stats().CountPageFault()
		}
	default:
		return errors.New("tlb miss on a machine without a TLB")
	}

	if err != nil {
		return err
	}

	entry.Use = false
	entry.Dirty = false
	entry.FIFOOrder = 0
	entry.LRUOrder = 0

	evicted, didEvict := p.machine.UpdateTLB(entry)
	if didEvict {
		p.writeBack(evicted)
	}

	return nil
}

func (p *Pager) pageIn(asid vm.AddressSpaceID, vpn int) error {
	t, ok := p.machine.Translation().(machine.PageTableOnly)
	if !ok {
		return errors.New("page fault on a machine that does not walk " +
			"the page table")
	}

	_, _, err := p.resolveInverted(t.PageTable, nil, asid, vpn)

	return err
}

func (p *Pager) resolveForward(
	asid vm.AddressSpaceID,
	vpn int,
) (vm.TranslationEntry, error) {
	if e, found := p.spaces.find(asid, vpn); found {
		return e, nil
	}

	p.machine.Stats().CountPageFault()

	frame, err := p.machine.FindAvailablePageFrame()
	if err != nil {
		return vm.TranslationEntry{},
			fmt.Errorf("paging in page %d of address space %d: %w",
				vpn, asid, err)
	}

	p.machine.ZeroFrame(frame)

	e := vm.TranslationEntry{
		VirtualPage:    vpn,
		PhysicalFrame:  frame,
		AddressSpaceID: asid,
		Valid:          true,
	}
	p.spaces.insert(e)

	return e, nil
}

// resolveInverted finds the page in the inverted page table, paging it in if
// it is not resident. The TLB, if given, is kept coherent with evictions.
func (p *Pager) resolveInverted(
	pt *vm.PageTable,
	c *tlb.Comp,
	asid vm.AddressSpaceID,
	vpn int,
) (entry vm.TranslationEntry, pagedIn bool, err error) {
	if frame, e, found := pt.Lookup(asid, vpn); found {
		pt.Visit(frame, false)
		return e, false, nil
	}

	frame, err := p.machine.FindAvailablePageFrame()
	switch {
	case errors.Is(err, vm.ErrNoFreeFrame):
		frame = pt.FindVictim()
		p.evict(pt, c, frame)
	case err != nil:
		return vm.TranslationEntry{}, false,
			fmt.Errorf("paging in page %d of address space %d: %w",
				vpn, asid, err)
	}

	entry = vm.TranslationEntry{
		VirtualPage:    vpn,
		AddressSpaceID: asid,
		Valid:          true,
	}
	p.fillFrame(frame, entry)
	pt.Install(frame, entry)

	return pt.Entry(frame), true, nil
}

// evict frees a frame of the inverted page table for reuse. The frame stays
// allocated since it is immediately handed to the faulting page.
func (p *Pager) evict(pt *vm.PageTable, c *tlb.Comp, frame int) {
	victim := pt.Evict(frame)
	p.numEvictions++

	if c != nil {
		cached, found := c.Invalidate(victim.AddressSpaceID, victim.VirtualPage)
		if found {
			victim.Dirty = victim.Dirty || cached.Dirty
		}
	}

	if !victim.Dirty {
		return
	}

	key := pageKey{asid: victim.AddressSpaceID, vpn: victim.VirtualPage}
	p.swap[key] = p.machine.FrameData(frame)
	p.numSwapOuts++
	p.InvokeHook(sim.HookCtx{
		Domain: p,
		Pos:    HookPosSwapOut,
		Item:   SwapEvent{Frame: frame, Entry: victim},
	})
}

// fillFrame prepares a frame for a page. Pages seen before come back from the
// swap area. The swap copy is kept, so a page that stays clean can be evicted
// again without being saved.
func (p *Pager) fillFrame(frame int, entry vm.TranslationEntry) {
	data, swapped := p.swap[pageKey{entry.AddressSpaceID, entry.VirtualPage}]
	if !swapped {
		p.machine.ZeroFrame(frame)
		return
	}

	p.machine.LoadFrame(frame, data)
	p.numSwapIns++
	p.InvokeHook(sim.HookCtx{
		Domain: p,
		Pos:    HookPosSwapIn,
		Item:   SwapEvent{Frame: frame, Entry: entry},
	})
}

func (p *Pager) writeBack(evicted vm.TranslationEntry) {
	switch t := p.machine.Translation().(type) {
	case machine.TLBOnly:
		e, found := p.spaces.find(evicted.AddressSpaceID, evicted.VirtualPage)
		if !found {
			return
		}

		e.Use = e.Use || evicted.Use
		e.Dirty = e.Dirty || evicted.Dirty
		p.spaces.update(e)
	case machine.Both:
		frame, _, found := t.PageTable.Lookup(
			evicted.AddressSpaceID, evicted.VirtualPage)
		if !found {
			return
		}

		t.PageTable.WriteBack(frame, evicted)
	}
}
