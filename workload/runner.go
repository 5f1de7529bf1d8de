package workload

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sarchlab/nachos/kernel/pager"
	"github.com/sarchlab/nachos/machine"
	"github.com/sarchlab/nachos/mem/vm"
	"github.com/sarchlab/nachos/sim"
)

// HookPosAccess marks the completion of an access. The item is a Result.
var HookPosAccess = &sim.HookPos{Name: "Workload Access"}

var (
	// ErrAddressSpaceEnded is returned for accesses of an address space that
	// has exited or failed.
	ErrAddressSpaceEnded = errors.New("address space has ended")

	// ErrAccessNotCompleted is returned when an access keeps faulting.
	ErrAccessNotCompleted = errors.New("access did not complete")

	// ErrUnexpectedValue is returned when a read does not return the expected
	// value.
	ErrUnexpectedValue = errors.New("unexpected value")
)

// An access is retried after each fault. A TLB miss followed by a page fault
// is the longest chain the pager can produce.
const maxAttempts = 3

// Result is the outcome of an access.
type Result struct {
	Index    int
	Access   Access
	Value    int
	Attempts int
	Err      error
}

// A Runner replays a workload on a machine, one access at a time. The
// embedded mutex is held during every step, so that observers can lock the
// runner to inspect the machine between steps.
type Runner struct {
	sync.Mutex
	sim.HookableBase

	name     string
	machine  *machine.Machine
	pager    *pager.Pager
	workload *Workload

	next      int
	numFailed int
	ended     map[vm.AddressSpaceID]bool
}

// NewRunner creates a runner that replays w on m. The pager must be the
// exception handler of m.
func NewRunner(
	name string,
	m *machine.Machine,
	p *pager.Pager,
	w *Workload,
) *Runner {
	return &Runner{
		name:     name,
		machine:  m,
		pager:    p,
		workload: w,
		ended:    make(map[vm.AddressSpaceID]bool),
	}
}

// Name returns the name of the runner.
func (r *Runner) Name() string {
	return r.name
}

// Machine returns the machine the workload runs on.
func (r *Runner) Machine() *machine.Machine {
	return r.machine
}

// Pager returns the kernel handler of the machine.
func (r *Runner) Pager() *pager.Pager {
	return r.pager
}

// Progress returns the number of performed accesses and the total number of
// accesses. Callers running concurrently with Step must hold the lock.
func (r *Runner) Progress() (done, total int) {
	return r.next, len(r.workload.Accesses)
}

// NumFailed returns the number of accesses that returned an error.
func (r *Runner) NumFailed() int {
	return r.numFailed
}

// Step performs the next access. It returns false if the workload has been
// completed.
func (r *Runner) Step() (Result, bool) {
	r.Lock()
	defer r.Unlock()

	if r.next >= len(r.workload.Accesses) {
		return Result{}, false
	}

	res := Result{
		Index:  r.next,
		Access: r.workload.Accesses[r.next],
	}
	r.next++

	res.Err = r.perform(&res)
	if res.Err != nil {
		r.numFailed++
	}

	r.InvokeHook(sim.HookCtx{
		Domain: r,
		Pos:    HookPosAccess,
		Item:   res,
	})

	return res, true
}

// Run performs all the remaining accesses, stopping early if ctx is done.
func (r *Runner) Run(ctx context.Context) error {
	for {
		err := ctx.Err()
		if err != nil {
			return err
		}

		_, more := r.Step()
		if !more {
			return nil
		}
	}
}

func (r *Runner) perform(res *Result) error {
	a := res.Access

	if r.ended[a.AddressSpace] {
		return fmt.Errorf("%w: %d", ErrAddressSpaceEnded, a.AddressSpace)
	}

	r.machine.SetAddressSpace(a.AddressSpace)

	if a.Op == Exit {
		r.end(a.AddressSpace)
		return nil
	}

	for res.Attempts < maxAttempts {
		res.Attempts++

		if r.try(res) {
			return r.check(res)
		}

		err := r.pager.Err(a.AddressSpace)
		if err != nil {
			r.end(a.AddressSpace)
			return err
		}
	}

	return fmt.Errorf("%s: %w after %d attempts",
		a, ErrAccessNotCompleted, maxAttempts)
}

func (r *Runner) try(res *Result) bool {
	a := res.Access

	if a.Op == Write {
		return r.machine.WriteMem(a.Addr, a.Size, a.Value)
	}

	value, ok := r.machine.ReadMem(a.Addr, a.Size)
	res.Value = value

	return ok
}

func (r *Runner) check(res *Result) error {
	if res.Access.Expect == nil || *res.Access.Expect == res.Value {
		return nil
	}

	return fmt.Errorf("%s: %w %d, expected %d",
		res.Access, ErrUnexpectedValue, res.Value, *res.Access.Expect)
}

func (r *Runner) end(asid vm.AddressSpaceID) {
	r.pager.ReleaseAddressSpace(asid)
	r.ended[asid] = true
}
