package vm

import (
	"fmt"
	"io"

	"github.com/sarchlab/nachos/sim"
)

// HookPosPageInstall marks that a page table slot receives a new mapping. The
// hook item is an EntryEvent.
var HookPosPageInstall = &sim.HookPos{Name: "PageInstall"}

// HookPosPageEvict marks that a valid mapping is removed from a page table
// slot. The hook item is an EntryEvent holding the old entry.
var HookPosPageEvict = &sim.HookPos{Name: "PageEvict"}

// A PageTable is an inverted page table. It has one slot per physical frame
// and the slot index is the frame number, so finding a virtual page is a
// linear scan.
type PageTable struct {
	sim.HookableBase

	policy  Policy
	entries []TranslationEntry
}

// NewPageTable creates an inverted page table covering numFrames frames.
func NewPageTable(numFrames int, policy Policy) *PageTable {
	if numFrames <= 0 {
		panic("number of frames must be positive")
	}

	policy.mustBeKnown()

	pt := &PageTable{
		policy:  policy,
		entries: make([]TranslationEntry, numFrames),
	}
	pt.Reset()

	return pt
}

// NumFrames returns the number of slots in the table.
func (pt *PageTable) NumFrames() int {
	return len(pt.entries)
}

// Policy returns the replacement policy of the table.
func (pt *PageTable) Policy() Policy {
	return pt.policy
}

// Reset empties every slot.
func (pt *PageTable) Reset() {
	resetEntries(pt.entries)
}

// Lookup searches for the frame that holds the given virtual page of the
// address space.
func (pt *PageTable) Lookup(
	asid AddressSpaceID,
	vpn int,
) (frame int, entry TranslationEntry, found bool) {
	for i := range pt.entries {
		if pt.entries[i].Maps(asid, vpn) {
			return i, pt.entries[i], true
		}
	}

	return 0, TranslationEntry{}, false
}

// Visit records a use of the mapping held in frame.
func (pt *PageTable) Visit(frame int, writing bool) {
	pt.frameMustBeValid(frame)

	e := &pt.entries[frame]
	e.Use = true
	if writing {
		e.Dirty = true
	}

	pt.policy.OnAccess(pt.entries, frame)
}

// Install places entry into the slot of frame. A freshly installed page
// counts as both the newest and the most recently used one.
func (pt *PageTable) Install(frame int, entry TranslationEntry) {
	pt.frameMustBeInRange(frame)

	if !entry.Valid {
		panic("cannot install an invalid entry")
	}

	entry.PhysicalFrame = frame
	pt.entries[frame] = entry
	pt.policy.OnInsert(pt.entries, frame)
	pt.policy.OnAccess(pt.entries, frame)

	pt.InvokeHook(sim.HookCtx{
		Domain: pt,
		Pos:    HookPosPageInstall,
		Item:   EntryEvent{Slot: frame, Entry: pt.entries[frame]},
	})
}

// WriteBack merges the use and dirty bits of a cached copy, such as a
// replaced TLB entry, into the mapping held in frame. The replacement counters
// are left alone.
func (pt *PageTable) WriteBack(frame int, cached TranslationEntry) {
	pt.frameMustBeValid(frame)

	e := &pt.entries[frame]
	e.Use = e.Use || cached.Use
	e.Dirty = e.Dirty || cached.Dirty
}

// FindVictim returns the frame whose mapping should be replaced next.
func (pt *PageTable) FindVictim() int {
	return pt.policy.FindVictim(pt.entries)
}

// Evict clears the slot of frame and returns the mapping it held, so that the
// caller can write back dirty data.
func (pt *PageTable) Evict(frame int) TranslationEntry {
	pt.frameMustBeInRange(frame)

	old := pt.entries[frame]
	pt.entries[frame].Reset()

	if old.Valid {
		pt.InvokeHook(sim.HookCtx{
			Domain: pt,
			Pos:    HookPosPageEvict,
			Item:   EntryEvent{Slot: frame, Entry: old},
		})
	}

	return old
}

// InvalidateAddressSpace clears all the mappings of an address space and
// returns the frames they occupied.
func (pt *PageTable) InvalidateAddressSpace(asid AddressSpaceID) []int {
	var frames []int

	for i := range pt.entries {
		if pt.entries[i].Valid && pt.entries[i].AddressSpaceID == asid {
			pt.Evict(i)
			frames = append(frames, i)
		}
	}

	return frames
}

// Entry returns a copy of the slot of frame.
func (pt *PageTable) Entry(frame int) TranslationEntry {
	pt.frameMustBeInRange(frame)
	return pt.entries[frame]
}

// Entries returns a copy of all the slots.
func (pt *PageTable) Entries() []TranslationEntry {
	entries := make([]TranslationEntry, len(pt.entries))
	copy(entries, pt.entries)

	return entries
}

// Dump writes the occupied slots, one tab-separated row per frame.
func (pt *PageTable) Dump(w io.Writer) {
	fmt.Fprint(w, "RPT now:\nppn\tvpn\tTID\tvalid\treadonly\tuse\tdirty\tFIFO\tLRU\n")

	for i, e := range pt.entries {
		if e.VirtualPage == InvalidPage {
			continue
		}

		WriteRow(w, i, e.VirtualPage, e)
	}
}

func (pt *PageTable) frameMustBeInRange(frame int) {
	if frame < 0 || frame >= len(pt.entries) {
		panic(fmt.Sprintf("frame %d out of range [0, %d)",
			frame, len(pt.entries)))
	}
}

func (pt *PageTable) frameMustBeValid(frame int) {
	pt.frameMustBeInRange(frame)

	if !pt.entries[frame].Valid {
		panic(fmt.Sprintf("frame %d holds no mapping", frame))
	}
}

// WriteRow writes one diagnostic row: the two leading columns followed by the
// flags and the replacement counters of e. Flags print as 0 or 1.
func WriteRow(w io.Writer, first, second int, e TranslationEntry) {
	fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
		first, second, e.AddressSpaceID,
		boolDigit(e.Valid), boolDigit(e.ReadOnly),
		boolDigit(e.Use), boolDigit(e.Dirty),
		e.FIFOOrder, e.LRUOrder)
}

func boolDigit(b bool) int {
	if b {
		return 1
	}

	return 0
}
