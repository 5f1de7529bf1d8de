package monitoring

import (
	"sync"
	"time"

	"github.com/sarchlab/nachos/sim"
	"github.com/sarchlab/nachos/workload"
)

// A ProgressBar is a tracker of the progress
type ProgressBar struct {
	sync.Mutex
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartTime time.Time `json:"start_time"`
	Total     uint64    `json:"total"`
	Finished  uint64    `json:"finished"`
}

// IncrementFinished add a certain amount to finished element.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// IsComplete returns true if all the elements are finished.
func (b *ProgressBar) IsComplete() bool {
	b.Lock()
	defer b.Unlock()

	return b.Finished >= b.Total
}

// progressHook advances a bar with every access a runner performs and
// removes the bar once the workload is complete.
type progressHook struct {
	monitor *Monitor
	bar     *ProgressBar
}

func (h *progressHook) Func(ctx sim.HookCtx) {
	if ctx.Pos != workload.HookPosAccess {
		return
	}

	h.bar.IncrementFinished(1)

	if h.bar.IsComplete() {
		h.monitor.CompleteProgressBar(h.bar)
	}
}
