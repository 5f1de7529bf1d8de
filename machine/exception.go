package machine

import (
	"fmt"

	"github.com/sarchlab/nachos/mem/vm"
	"github.com/sarchlab/nachos/sim"
)

// ExceptionType is the cause of a trap from user mode into the kernel.
type ExceptionType int

// The exceptions that user program execution can raise.
const (
	// NoException means everything ok.
	NoException ExceptionType = iota
	// SyscallException is raised by a syscall instruction.
	SyscallException
	// PageFaultException means no valid translation was found in the page
	// table.
	PageFaultException
	// TLBMissException means no valid translation was found in the TLB.
	TLBMissException
	// ReadOnlyException means a write was attempted on a read-only page.
	ReadOnlyException
	// BusErrorException means the translation gave an invalid physical
	// address.
	BusErrorException
	// AddressErrorException means an unaligned or out of range address.
	AddressErrorException
	// OverflowException means an integer overflow in add or sub.
	OverflowException
	// IllegalInstrException means the instruction is not defined.
	IllegalInstrException

	NumExceptionTypes
)

var exceptionNames = [NumExceptionTypes]string{
	"no exception", "syscall",
	"page fault", "tlb miss", "page read only",
	"bus error", "address error", "overflow",
	"illegal instruction",
}

func (e ExceptionType) String() string {
	if e < 0 || e >= NumExceptionTypes {
		return fmt.Sprintf("ExceptionType(%d)", int(e))
	}

	return exceptionNames[e]
}

// An ExceptionHandler is the kernel code that a trap transfers control to.
// The handler reads the failing address and the program counter through the
// register file.
type ExceptionHandler interface {
	Handle(which ExceptionType)
}

// ExceptionHandlerFunc adapts a function into an ExceptionHandler.
type ExceptionHandlerFunc func(which ExceptionType)

// Handle calls f(which).
func (f ExceptionHandlerFunc) Handle(which ExceptionType) {
	f(which)
}

// HookPosException marks a trap into the kernel. The hook item is an
// ExceptionEvent.
var HookPosException = &sim.HookPos{Name: "Exception"}

// An ExceptionEvent describes a raised exception.
type ExceptionEvent struct {
	Kind           ExceptionType
	BadVAddr       int
	AddressSpaceID vm.AddressSpaceID
}

// RaiseException transfers control to the kernel from user mode, because the
// user program either invoked a system call or some exception occurred, such
// as a failed address translation. The whole sequence runs before the next
// emulated instruction.
func (m *Machine) RaiseException(which ExceptionType, badVAddr int) {
	m.InvokeHook(sim.HookCtx{
		Domain: m,
		Pos:    HookPosException,
		Item: ExceptionEvent{
			Kind:           which,
			BadVAddr:       badVAddr,
			AddressSpaceID: m.addressSpace,
		},
	})

	m.registers.Write(BadVAddrReg, badVAddr)
	m.registers.DelayedLoad(0, 0)

	m.interrupt.SetStatus(SystemMode)
	m.handler.Handle(which)
	m.interrupt.SetStatus(UserMode)
}
