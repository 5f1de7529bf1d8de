package machine

import (
	"fmt"
	"io"
)

// DumpState prints the registers of the user program, four general purpose
// registers per line.
func (m *Machine) DumpState(w io.Writer) {
	fmt.Fprint(w, "Machine registers:\n")

	for i := 0; i < NumGPRegs; i++ {
		switch i {
		case StackReg:
			fmt.Fprintf(w, "\tSP(%d):\t%d", i, m.registers[i])
		case RetAddrReg:
			fmt.Fprintf(w, "\tRA(%d):\t%d", i, m.registers[i])
		default:
			fmt.Fprintf(w, "\t%d:\t%d", i, m.registers[i])
		}

		if i%4 == 3 {
			fmt.Fprint(w, "\n")
		}
	}

	fmt.Fprintf(w, "\tHi:\t%d", m.registers[HiReg])
	fmt.Fprintf(w, "\tLo:\t%d", m.registers[LoReg])
	fmt.Fprintf(w, "\tPC:\t%d", m.registers[PCReg])
	fmt.Fprintf(w, "\tNextPC:\t%d", m.registers[NextPCReg])
	fmt.Fprintf(w, "\tPrevPC:\t%d", m.registers[PrevPCReg])
	fmt.Fprintf(w, "\tLoad:\t%d", m.registers[LoadReg])
	fmt.Fprintf(w, "\tLoadV:\t%d\n", m.registers[LoadValueReg])
}

// ShowTLB prints every slot of the TLB.
func (m *Machine) ShowTLB(w io.Writer) {
	t, ok := TLBOf(m.translation)
	if !ok {
		panic("machine " + m.name + " has no TLB")
	}

	t.Dump(w)
}

// ShowRPT prints the occupied slots of the inverted page table.
func (m *Machine) ShowRPT(w io.Writer) {
	pt, ok := PageTableOf(m.translation)
	if !ok {
		panic("machine " + m.name + " has no page table")
	}

	pt.Dump(w)
}
