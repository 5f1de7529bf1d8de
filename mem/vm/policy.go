package vm

import (
	"fmt"
	"math"
	"strings"
)

// Policy selects how a full translation structure picks the entry to evict.
// A machine holds exactly one policy, chosen when it is built.
type Policy int

// The supported replacement policies.
const (
	// FIFO evicts the entry that was installed first.
	FIFO Policy = iota
	// LRU evicts the entry that was used least recently.
	LRU
)

// ParsePolicy converts a policy name such as "fifo" or "LRU" to a Policy.
func ParsePolicy(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fifo":
		return FIFO, nil
	case "lru":
		return LRU, nil
	default:
		return FIFO, fmt.Errorf("unknown replacement policy %q", name)
	}
}

func (p Policy) String() string {
	switch p {
	case FIFO:
		return "FIFO"
	case LRU:
		return "LRU"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// FindVictim returns the index of the entry to replace. It scans all the
// entries from left to right and returns the first one holding the smallest
// counter of the policy, so ties always go to the lowest index.
func (p Policy) FindVictim(entries []TranslationEntry) int {
	if len(entries) == 0 {
		panic("cannot find a victim in an empty structure")
	}

	victim := 0
	smallest := math.MaxInt

	for i := range entries {
		order := p.order(&entries[i])
		if order < smallest {
			smallest = order
			victim = i
		}
	}

	return victim
}

// OnInsert updates the counters after a new entry has been installed at
// index. Only FIFO tracks insertions.
func (p Policy) OnInsert(entries []TranslationEntry, index int) {
	p.mustBeKnown()

	if p == FIFO {
		RecordInsertion(entries, index)
	}
}

// OnAccess updates the counters after the entry at index has been used. Only
// LRU tracks accesses.
func (p Policy) OnAccess(entries []TranslationEntry, index int) {
	p.mustBeKnown()

	if p == LRU {
		RecordAccess(entries, index)
	}
}

func (p Policy) order(e *TranslationEntry) int {
	switch p {
	case FIFO:
		return e.FIFOOrder
	case LRU:
		return e.LRUOrder
	default:
		panic(fmt.Sprintf("unknown replacement policy %d", int(p)))
	}
}

func (p Policy) mustBeKnown() {
	if p != FIFO && p != LRU {
		panic(fmt.Sprintf("unknown replacement policy %d", int(p)))
	}
}

// RecordInsertion gives the entry at index the next FIFO sequence number: one
// more than the largest FIFOOrder among the other valid entries, or 0 if there
// is none.
func RecordInsertion(entries []TranslationEntry, index int) {
	entries[index].FIFOOrder = nextOrder(entries, index,
		func(e *TranslationEntry) int { return e.FIFOOrder })
}

// RecordAccess gives the entry at index the next LRU sequence number, computed
// the same way as RecordInsertion but over LRUOrder.
func RecordAccess(entries []TranslationEntry, index int) {
	entries[index].LRUOrder = nextOrder(entries, index,
		func(e *TranslationEntry) int { return e.LRUOrder })
}

// nextOrder keeps the counters bounded by the number of live entries instead
// of growing with a global clock.
func nextOrder(
	entries []TranslationEntry,
	index int,
	order func(e *TranslationEntry) int,
) int {
	if index < 0 || index >= len(entries) {
		panic(fmt.Sprintf("entry index %d out of range [0, %d)",
			index, len(entries)))
	}

	largest := -1

	for i := range entries {
		if i == index || !entries[i].Valid {
			continue
		}

		if o := order(&entries[i]); o > largest {
			largest = o
		}
	}

	return largest + 1
}
