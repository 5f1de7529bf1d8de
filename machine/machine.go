// Package machine emulates the user-mode half of a MIPS processor: the
// register file, main memory, address translation through a TLB and/or an
// inverted page table, and the traps that hand control to the kernel.
package machine

import (
	"fmt"

	"github.com/sarchlab/nachos/mem/vm"
	"github.com/sarchlab/nachos/sim"
)

// Machine is the emulated processor together with its memory system. A
// machine is driven by a single instruction stream and none of its methods
// may run concurrently.
type Machine struct {
	sim.HookableBase

	name string

	registers    RegisterFile
	mainMemory   []byte
	pageSize     int
	numPhysPages int
	frames       *vm.FrameAllocator
	translation  Translation
	addressSpace vm.AddressSpaceID

	interrupt Interrupt
	handler   ExceptionHandler
	stats     StatsRecorder
}

// Name returns the name of the machine.
func (m *Machine) Name() string {
	return m.name
}

// AcceptHook registers a hook on the machine and on its translation
// structures.
func (m *Machine) AcceptHook(hook sim.Hook) {
	m.HookableBase.AcceptHook(hook)

	if t, ok := TLBOf(m.translation); ok {
		t.AcceptHook(hook)
	}

	if pt, ok := PageTableOf(m.translation); ok {
		pt.AcceptHook(hook)
	}
}

// ReadRegister returns the content of a user program register.
func (m *Machine) ReadRegister(num int) int {
	return m.registers.Read(num)
}

// WriteRegister sets the content of a user program register.
func (m *Machine) WriteRegister(num int, value int) {
	m.registers.Write(num, value)
}

// DelayedLoad completes the pending load and queues a new one.
func (m *Machine) DelayedLoad(nextReg int, nextValue int) {
	m.registers.DelayedLoad(nextReg, nextValue)
}

// Translation returns the translation structures of the machine.
func (m *Machine) Translation() Translation {
	return m.translation
}

// PageSize returns the size of a page in bytes.
func (m *Machine) PageSize() int {
	return m.pageSize
}

// NumPhysPages returns the number of physical page frames.
func (m *Machine) NumPhysPages() int {
	return m.numPhysPages
}

// MemorySize returns the size of main memory in bytes.
func (m *Machine) MemorySize() int {
	return len(m.mainMemory)
}

// AddressSpace returns the address space of the running thread.
func (m *Machine) AddressSpace() vm.AddressSpaceID {
	return m.addressSpace
}

// SetAddressSpace switches to the address space of another thread. The kernel
// calls it on context switches.
func (m *Machine) SetAddressSpace(asid vm.AddressSpaceID) {
	m.addressSpace = asid
}

// SetExceptionHandler installs the kernel code that exceptions trap into.
func (m *Machine) SetExceptionHandler(h ExceptionHandler) {
	m.handler = h
}

// Stats returns the collaborator that counts translation events.
func (m *Machine) Stats() StatsRecorder {
	return m.stats
}

// FindAvailablePageFrame allocates the lowest free physical frame.
func (m *Machine) FindAvailablePageFrame() (int, error) {
	return m.frames.Allocate()
}

// ReleasePageFrame returns a physical frame to the free pool.
func (m *Machine) ReleasePageFrame(frame int) {
	m.frames.Free(frame)
}

// NumFreePageFrames returns the number of frames that are not allocated.
func (m *Machine) NumFreePageFrames() int {
	return m.frames.NumFree()
}

// UpdateTLB installs an entry into the TLB, replacing a victim if the TLB is
// full. The replaced entry is returned so that the kernel can keep its use
// and dirty bits.
func (m *Machine) UpdateTLB(
	entry vm.TranslationEntry,
) (evicted vm.TranslationEntry, didEvict bool) {
	t, ok := TLBOf(m.translation)
	if !ok {
		panic("machine " + m.name + " has no TLB")
	}

	_, evicted, didEvict = t.Update(entry)

	return evicted, didEvict
}

// ZeroFrame clears the content of a physical frame.
func (m *Machine) ZeroFrame(frame int) {
	clear(m.frameMemory(frame))
}

// FrameData returns a copy of the content of a physical frame.
func (m *Machine) FrameData(frame int) []byte {
	data := make([]byte, m.pageSize)
	copy(data, m.frameMemory(frame))

	return data
}

// LoadFrame overwrites a physical frame with data, which must be exactly one
// page long.
func (m *Machine) LoadFrame(frame int, data []byte) {
	if len(data) != m.pageSize {
		panic(fmt.Sprintf("frame data is %d bytes, page size is %d",
			len(data), m.pageSize))
	}

	copy(m.frameMemory(frame), data)
}

func (m *Machine) frameMemory(frame int) []byte {
	if frame < 0 || frame >= m.numPhysPages {
		panic(fmt.Sprintf("frame %d out of range [0, %d)",
			frame, m.numPhysPages))
	}

	start := frame * m.pageSize

	return m.mainMemory[start : start+m.pageSize]
}
