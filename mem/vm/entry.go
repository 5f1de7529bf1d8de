// Package vm provides the models for address translations: the translation
// entry shared by TLBs and page tables, the replacement policies that decide
// which entry to evict, the inverted page table, and the physical frame
// allocator.
package vm

// AddressSpaceID identifies the address space (thread) that owns a mapping.
type AddressSpaceID int

// InvalidPage marks a slot that does not map any virtual page.
const InvalidPage = -1

// A TranslationEntry maintains the information about how to translate a
// virtual page to a physical frame. It is the element type of both TLBs and
// page tables.
type TranslationEntry struct {
	VirtualPage    int            `json:"vpn"`
	PhysicalFrame  int            `json:"ppn"`
	AddressSpaceID AddressSpaceID `json:"tid"`

	Valid    bool `json:"valid"`
	ReadOnly bool `json:"read_only"`
	Use      bool `json:"use"`
	Dirty    bool `json:"dirty"`

	// FIFOOrder is the insertion sequence number and LRUOrder the last-use
	// sequence number. Both are meaningless on invalid entries.
	FIFOOrder int `json:"fifo"`
	LRUOrder  int `json:"lru"`
}

// EmptyEntry returns an entry that maps nothing.
func EmptyEntry() TranslationEntry {
	return TranslationEntry{VirtualPage: InvalidPage}
}

// Reset turns the entry back into an empty slot.
func (e *TranslationEntry) Reset() {
	*e = EmptyEntry()
}

// Maps tells if the entry is a valid mapping of the given page in the given
// address space.
func (e TranslationEntry) Maps(asid AddressSpaceID, vpn int) bool {
	return e.Valid && e.VirtualPage == vpn && e.AddressSpaceID == asid
}

// An EntryEvent is the hook item fired when a TLB or page table slot changes.
type EntryEvent struct {
	Slot  int
	Entry TranslationEntry
}

func resetEntries(entries []TranslationEntry) {
	for i := range entries {
		entries[i].Reset()
	}
}
