// Package tlb provides a software-managed, fully associative translation
// lookaside buffer.
package tlb

import (
	"fmt"
	"io"

	"github.com/sarchlab/nachos/mem/vm"
	"github.com/sarchlab/nachos/sim"
)

// HookPosUpdate marks that a refill installed a new entry. The hook item is a
// vm.EntryEvent.
var HookPosUpdate = &sim.HookPos{Name: "TLBUpdate"}

// HookPosEvict marks that a refill replaced a valid entry. The hook item is a
// vm.EntryEvent holding the replaced entry.
var HookPosEvict = &sim.HookPos{Name: "TLBEvict"}

// Comp is a TLB that caches a fixed number of translation entries. Entries of
// all address spaces compete for the same slots.
type Comp struct {
	sim.HookableBase

	name    string
	policy  vm.Policy
	entries []vm.TranslationEntry
}

// Name returns the name of the TLB.
func (c *Comp) Name() string {
	return c.name
}

// NumEntries returns the number of slots in the TLB.
func (c *Comp) NumEntries() int {
	return len(c.entries)
}

// Policy returns the replacement policy of the TLB.
func (c *Comp) Policy() vm.Policy {
	return c.policy
}

// Reset sets all the entries in the TLB to be invalid.
func (c *Comp) Reset() {
	for i := range c.entries {
		c.entries[i].Reset()
	}
}

// Lookup searches the TLB for a valid entry that maps the virtual page of the
// address space.
func (c *Comp) Lookup(
	asid vm.AddressSpaceID,
	vpn int,
) (slot int, entry vm.TranslationEntry, found bool) {
	for i := range c.entries {
		if c.entries[i].Maps(asid, vpn) {
			return i, c.entries[i], true
		}
	}

	return 0, vm.TranslationEntry{}, false
}

// Visit records a use of the entry in slot. It sets the use bit, the dirty bit
// on writes, and the LRU order when the TLB runs LRU.
func (c *Comp) Visit(slot int, writing bool) {
	c.slotMustBeInRange(slot)

	e := &c.entries[slot]
	if !e.Valid {
		panic(fmt.Sprintf("TLB slot %d is not valid", slot))
	}

	e.Use = true
	if writing {
		e.Dirty = true
	}

	c.policy.OnAccess(c.entries, slot)
}

// Update installs entry. The first invalid slot is used if there is one,
// otherwise the policy picks a victim that is overwritten. The new entry
// counts as both the newest and the most recently used one. The replaced entry
// is returned so that the caller can keep its use and dirty bits.
func (c *Comp) Update(
	entry vm.TranslationEntry,
) (slot int, evicted vm.TranslationEntry, didEvict bool) {
	slot = c.firstInvalidSlot()

	if slot < 0 {
		slot = c.policy.FindVictim(c.entries)
		evicted = c.entries[slot]
		didEvict = true

		c.InvokeHook(sim.HookCtx{
			Domain: c,
			Pos:    HookPosEvict,
			Item:   vm.EntryEvent{Slot: slot, Entry: evicted},
		})
	}

	c.entries[slot] = entry
	c.policy.OnInsert(c.entries, slot)
	c.policy.OnAccess(c.entries, slot)

	c.InvokeHook(sim.HookCtx{
		Domain: c,
		Pos:    HookPosUpdate,
		Item:   vm.EntryEvent{Slot: slot, Entry: c.entries[slot]},
	})

	return slot, evicted, didEvict
}

func (c *Comp) firstInvalidSlot() int {
	for i := range c.entries {
		if !c.entries[i].Valid {
			return i
		}
	}

	return -1
}

// Invalidate drops the entry that maps the virtual page of the address space,
// if any. It returns the dropped entry.
func (c *Comp) Invalidate(
	asid vm.AddressSpaceID,
	vpn int,
) (vm.TranslationEntry, bool) {
	slot, entry, found := c.Lookup(asid, vpn)
	if !found {
		return vm.TranslationEntry{}, false
	}

	c.entries[slot].Reset()

	return entry, true
}

// InvalidateAddressSpace drops all the entries of the address space and
// returns them.
func (c *Comp) InvalidateAddressSpace(
	asid vm.AddressSpaceID,
) []vm.TranslationEntry {
	var dropped []vm.TranslationEntry

	for i := range c.entries {
		if c.entries[i].Valid && c.entries[i].AddressSpaceID == asid {
			dropped = append(dropped, c.entries[i])
			c.entries[i].Reset()
		}
	}

	return dropped
}

// Entry returns a copy of the entry in slot.
func (c *Comp) Entry(slot int) vm.TranslationEntry {
	c.slotMustBeInRange(slot)
	return c.entries[slot]
}

// Entries returns a copy of all the slots.
func (c *Comp) Entries() []vm.TranslationEntry {
	entries := make([]vm.TranslationEntry, len(c.entries))
	copy(entries, c.entries)

	return entries
}

// Dump writes every slot of the TLB as a tab-separated row.
func (c *Comp) Dump(w io.Writer) {
	fmt.Fprint(w, "TLB now:\nvpn\tppn\ttID\tvalid\treadonly\tuse\tdirty\tFIFO\tLRU\n")

	for _, e := range c.entries {
		vm.WriteRow(w, e.VirtualPage, e.PhysicalFrame, e)
	}
}

func (c *Comp) slotMustBeInRange(slot int) {
	if slot < 0 || slot >= len(c.entries) {
		panic(fmt.Sprintf("TLB slot %d out of range [0, %d)",
			slot, len(c.entries)))
	}
}
