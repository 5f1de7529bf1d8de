package pager

import (
	"container/list"
	"fmt"

	"github.com/sarchlab/nachos/mem/vm"
)

// addressSpaces holds one forward page table per address space. It backs the
// TLB when the machine has no inverted page table to walk.
type addressSpaces struct {
	tables map[vm.AddressSpaceID]*processTable
}

func newAddressSpaces() *addressSpaces {
	return &addressSpaces{
		tables: make(map[vm.AddressSpaceID]*processTable),
	}
}

func (s *addressSpaces) getTable(asid vm.AddressSpaceID) *processTable {
	table, found := s.tables[asid]
	if !found {
		table = &processTable{
			entries:      list.New(),
			entriesTable: make(map[int]*list.Element),
		}
		s.tables[asid] = table
	}

	return table
}

func (s *addressSpaces) find(
	asid vm.AddressSpaceID,
	vpn int,
) (vm.TranslationEntry, bool) {
	table, found := s.tables[asid]
	if !found {
		return vm.TranslationEntry{}, false
	}

	return table.find(vpn)
}

func (s *addressSpaces) insert(entry vm.TranslationEntry) {
	s.getTable(entry.AddressSpaceID).insert(entry)
}

func (s *addressSpaces) update(entry vm.TranslationEntry) {
	s.getTable(entry.AddressSpaceID).update(entry)
}

// release drops the table of an address space and returns the mappings it
// held, in the order they were created.
func (s *addressSpaces) release(asid vm.AddressSpaceID) []vm.TranslationEntry {
	table, found := s.tables[asid]
	if !found {
		return nil
	}

	delete(s.tables, asid)

	return table.all()
}

func (s *addressSpaces) numPages(asid vm.AddressSpaceID) int {
	table, found := s.tables[asid]
	if !found {
		return 0
	}

	return table.entries.Len()
}

type processTable struct {
	entries      *list.List
	entriesTable map[int]*list.Element
}

func (t *processTable) insert(entry vm.TranslationEntry) {
	t.pageMustNotExist(entry.VirtualPage)

	elem := t.entries.PushBack(entry)
	t.entriesTable[entry.VirtualPage] = elem
}

func (t *processTable) update(entry vm.TranslationEntry) {
	t.pageMustExist(entry.VirtualPage)

	elem := t.entriesTable[entry.VirtualPage]
	elem.Value = entry
}

func (t *processTable) find(vpn int) (vm.TranslationEntry, bool) {
	elem, found := t.entriesTable[vpn]
	if found {
		return elem.Value.(vm.TranslationEntry), true
	}

	return vm.TranslationEntry{}, false
}

func (t *processTable) all() []vm.TranslationEntry {
	entries := make([]vm.TranslationEntry, 0, t.entries.Len())
	for elem := t.entries.Front(); elem != nil; elem = elem.Next() {
		entries = append(entries, elem.Value.(vm.TranslationEntry))
	}

	return entries
}

func (t *processTable) pageMustExist(vpn int) {
	_, found := t.entriesTable[vpn]
	if !found {
		panic(fmt.Sprintf("page %d does not exist", vpn))
	}
}

func (t *processTable) pageMustNotExist(vpn int) {
	_, found := t.entriesTable[vpn]
	if found {
		panic(fmt.Sprintf("page %d already exists", vpn))
	}
}
