package machine

import "fmt"

// MachineStatus is the mode the processor runs in.
type MachineStatus int

// The processor modes.
const (
	IdleMode MachineStatus = iota
	SystemMode
	UserMode
)

func (s MachineStatus) String() string {
	switch s {
	case IdleMode:
		return "IdleMode"
	case SystemMode:
		return "SystemMode"
	case UserMode:
		return "UserMode"
	default:
		return fmt.Sprintf("MachineStatus(%d)", int(s))
	}
}

// Interrupt is the part of the interrupt controller that the machine needs:
// the ability to switch the processor between kernel and user mode.
type Interrupt interface {
	SetStatus(status MachineStatus)
}

// A StatusRegister is an Interrupt that only remembers the processor mode.
type StatusRegister struct {
	status MachineStatus
}

// NewStatusRegister creates a StatusRegister in user mode.
func NewStatusRegister() *StatusRegister {
	return &StatusRegister{status: UserMode}
}

// SetStatus switches the processor mode.
func (r *StatusRegister) SetStatus(status MachineStatus) {
	r.status = status
}

// Status returns the current processor mode.
func (r *StatusRegister) Status() MachineStatus {
	return r.status
}

// StatsRecorder counts translation events. The machine only increments the
// counters and never reads them back.
type StatsRecorder interface {
	CountAddressTranslation()
	CountTLBMiss()
	CountPageFault()
}

type discardStats struct{}

func (discardStats) CountAddressTranslation() {}
func (discardStats) CountTLBMiss()            {}
func (discardStats) CountPageFault()          {}
