package machine

import (
	"encoding/binary"
	"fmt"
)

// ReadMem reads size bytes (1, 2 or 4) of the user program memory at the
// virtual address addr. Main memory is little endian. If the translation
// fails, the exception is raised and false is returned; the caller retries
// the instruction once the kernel has resolved the fault.
func (m *Machine) ReadMem(addr int, size int) (value int, ok bool) {
	sizeMustBeSupported(size)

	physAddr, exception := m.Translate(addr, size, false)
	if exception != NoException {
		m.RaiseException(exception, addr)
		return 0, false
	}

	mem := m.mainMemory[physAddr : physAddr+size]

	switch size {
	case 1:
		value = int(mem[0])
	case 2:
		value = int(binary.LittleEndian.Uint16(mem))
	case 4:
		value = int(int32(binary.LittleEndian.Uint32(mem)))
	}

	return value, true
}

// WriteMem writes size bytes (1, 2 or 4) of value into the user program
// memory at the virtual address addr. It fails the same way as ReadMem.
func (m *Machine) WriteMem(addr int, size int, value int) bool {
	sizeMustBeSupported(size)

	physAddr, exception := m.Translate(addr, size, true)
	if exception != NoException {
		m.RaiseException(exception, addr)
		return false
	}

	mem := m.mainMemory[physAddr : physAddr+size]

	switch size {
	case 1:
		mem[0] = byte(value)
	case 2:
		binary.LittleEndian.PutUint16(mem, uint16(value))
	case 4:
		binary.LittleEndian.PutUint32(mem, uint32(value))
	}

	return true
}

func sizeMustBeSupported(size int) {
	if size != 1 && size != 2 && size != 4 {
		panic(fmt.Sprintf("memory access of %d bytes is not supported", size))
	}
}
