package machine

import "fmt"

// Register numbers of the emulated MIPS processor.
const (
	// NumGPRegs is the number of general purpose registers.
	NumGPRegs = 32
	// StackReg holds the user stack pointer.
	StackReg = 29
	// RetAddrReg holds the return address of procedure calls.
	RetAddrReg = 31
	// HiReg and LoReg hold the results of multiplications and divisions.
	HiReg = 32
	LoReg = 33
	// PCReg holds the current program counter.
	PCReg = 34
	// NextPCReg holds the next program counter, needed by branch delay slots.
	NextPCReg = 35
	// PrevPCReg holds the previous program counter, for debugging.
	PrevPCReg = 36
	// LoadReg is the target register of the delayed load in flight.
	LoadReg = 37
	// LoadValueReg is the value of the delayed load in flight.
	LoadValueReg = 38
	// BadVAddrReg holds the failing virtual address of an exception.
	BadVAddrReg = 39

	// NumTotalRegs is the number of registers in the register file.
	NumTotalRegs = 40
)

// A RegisterFile holds the user-visible registers of the processor.
type RegisterFile [NumTotalRegs]int

// Read returns the content of register num.
func (r *RegisterFile) Read(num int) int {
	registerMustBeInRange(num)
	return r[num]
}

// Write sets the content of register num.
func (r *RegisterFile) Write(num int, value int) {
	registerMustBeInRange(num)
	r[num] = value
}

// DelayedLoad completes the load issued by the previous instruction and
// queues a new one. A load only becomes visible one instruction after it is
// issued, and register 0 always reads as zero.
func (r *RegisterFile) DelayedLoad(nextReg int, nextValue int) {
	registerMustBeInRange(nextReg)

	r.Write(r[LoadReg], r[LoadValueReg])
	r[LoadReg] = nextReg
	r[LoadValueReg] = nextValue
	r[0] = 0
}

func registerMustBeInRange(num int) {
	if num < 0 || num >= NumTotalRegs {
		panic(fmt.Sprintf("register %d out of range [0, %d)",
			num, NumTotalRegs))
	}
}
