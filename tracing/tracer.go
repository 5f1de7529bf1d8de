// Package tracing records the events of a machine and its kernel into a
// DataRecorder, so that a run can be analyzed after it ends.
package tracing

import (
	"context"
	"fmt"

	"github.com/sarchlab/nachos/datarecording"
	"github.com/sarchlab/nachos/kernel/pager"
	"github.com/sarchlab/nachos/machine"
	"github.com/sarchlab/nachos/mem/vm"
	"github.com/sarchlab/nachos/sim"
	"github.com/sarchlab/nachos/workload"
)

// The tables that a DBTracer creates.
const (
	EventTableName  = "translation_events"
	AccessTableName = "workload_accesses"
)

// EventEntry is a row of the event table. Fields that do not apply to an
// event are -1.
type EventEntry struct {
	ID           string
	Seq          int
	Location     string
	Kind         string
	AddressSpace int
	VirtAddr     int
	VirtualPage  int
	Frame        int
	Slot         int
	Dirty        bool
	Detail       string
}

// AccessEntry is a row of the access table.
type AccessEntry struct {
	ID           string
	Seq          int
	Location     string
	AddressSpace int
	Op           string
	Addr         int
	Size         int
	Value        int
	Attempts     int
	Error        string
}

// NamedHookable is a hookable domain that has a name.
type NamedHookable interface {
	sim.Hookable
	Name() string
	Hooks() []sim.Hook
}

// A DBTracer is a hook that turns the events it observes into table rows.
type DBTracer struct {
	backend datarecording.DataRecorder
	seq     int
}

// NewDBTracer creates a DBTracer and the tables it writes to.
func NewDBTracer(backend datarecording.DataRecorder) *DBTracer {
	backend.CreateTable(EventTableName, EventEntry{})
	backend.CreateTable(AccessTableName, AccessEntry{})

	return &DBTracer{backend: backend}
}

// CollectTrace lets the tracer collect events from a domain.
func CollectTrace(domain NamedHookable, t *DBTracer) {
	for _, hook := range domain.Hooks() {
		if hook == sim.Hook(t) {
			panic(fmt.Sprintf("domain %s already has the tracer",
				domain.Name()))
		}
	}

	domain.AcceptHook(t)
}

// NumRecorded returns the number of rows written so far.
func (t *DBTracer) NumRecorded() int {
	return t.seq
}

// Terminate flushes the buffered rows.
func (t *DBTracer) Terminate() {
	t.backend.Flush()
}

// Func records one row per recognized event. Other events are ignored.
func (t *DBTracer) Func(ctx sim.HookCtx) {
	switch item := ctx.Item.(type) {
	case machine.ExceptionEvent:
		e := t.newEvent(ctx)
		e.AddressSpace = int(item.AddressSpaceID)
		e.VirtAddr = item.BadVAddr
		e.Detail = item.Kind.String()
		t.insertEvent(e)
	case machine.TranslationFault:
		e := t.newEvent(ctx)
		e.AddressSpace = int(item.AddressSpaceID)
		e.VirtAddr = item.VirtAddr
		e.VirtualPage = item.VirtualPage
		t.insertEvent(e)
	case vm.EntryEvent:
		e := t.newEvent(ctx)
		fillEntry(&e, item.Entry)
		e.Slot = item.Slot
		t.insertEvent(e)
	case pager.SwapEvent:
		e := t.newEvent(ctx)
		fillEntry(&e, item.Entry)
		e.Frame = item.Frame
		t.insertEvent(e)
	case workload.Result:
		t.insertAccess(ctx, item)
	}
}

func (t *DBTracer) nextID() (string, int) {
	t.seq++
	return sim.GetIDGenerator().Generate(), t.seq
}

func (t *DBTracer) newEvent(ctx sim.HookCtx) EventEntry {
	id, seq := t.nextID()

	return EventEntry{
		ID:           id,
		Seq:          seq,
		Location:     locationOf(ctx.Domain),
		Kind:         ctx.Pos.Name,
		AddressSpace: -1,
		VirtAddr:     -1,
		VirtualPage:  -1,
		Frame:        -1,
		Slot:         -1,
	}
}

func fillEntry(e *EventEntry, entry vm.TranslationEntry) {
	e.AddressSpace = int(entry.AddressSpaceID)
	e.VirtualPage = entry.VirtualPage
	e.Frame = entry.PhysicalFrame
	e.Dirty = entry.Dirty
}

func (t *DBTracer) insertEvent(e EventEntry) {
	t.backend.InsertData(EventTableName, e)
}

func (t *DBTracer) insertAccess(ctx sim.HookCtx, res workload.Result) {
	id, seq := t.nextID()

	a := AccessEntry{
		ID:           id,
		Seq:          seq,
		Location:     locationOf(ctx.Domain),
		AddressSpace: int(res.Access.AddressSpace),
		Op:           string(res.Access.Op),
		Addr:         res.Access.Addr,
		Size:         res.Access.Size,
		Value:        res.Value,
		Attempts:     res.Attempts,
	}

	if res.Access.Op == workload.Write {
		a.Value = res.Access.Value
	}

	if res.Err != nil {
		a.Error = res.Err.Error()
	}

	t.backend.InsertData(AccessTableName, a)
}

func locationOf(domain sim.Hookable) string {
	if named, ok := domain.(interface{ Name() string }); ok {
		return named.Name()
	}

	return fmt.Sprintf("%T", domain)
}

// ReadEvents returns the recorded events that match f, in the order they
// happened.
func ReadEvents(
	ctx context.Context,
	r *datarecording.Reader,
	f datarecording.Filter,
) ([]EventEntry, error) {
	return datarecording.Read[EventEntry](ctx, r, EventTableName, f)
}

// ReadAccesses returns the recorded workload accesses that match f, in the
// order they were performed.
func ReadAccesses(
	ctx context.Context,
	r *datarecording.Reader,
	f datarecording.Filter,
) ([]AccessEntry, error) {
	return datarecording.Read[AccessEntry](ctx, r, AccessTableName, f)
}
