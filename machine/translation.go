package machine

import (
	"github.com/sarchlab/nachos/mem/vm"
	"github.com/sarchlab/nachos/mem/vm/tlb"
)

// Translation tells which translation structures a machine has. It is one of
// NoTranslation, TLBOnly, PageTableOnly, and Both, and code that translates
// addresses switches over all four.
type Translation interface {
	isTranslation()
}

// NoTranslation is a machine without any translation structure. It cannot
// run user programs.
type NoTranslation struct{}

// TLBOnly is a machine with a software-managed TLB. The kernel keeps its own
// page tables and refills the TLB on misses.
type TLBOnly struct {
	TLB *tlb.Comp
}

// PageTableOnly is a machine that walks an inverted page table in hardware.
type PageTableOnly struct {
	PageTable *vm.PageTable
}

// Both is a machine with a TLB backed by an inverted page table that the
// kernel consults on TLB misses.
type Both struct {
	TLB       *tlb.Comp
	PageTable *vm.PageTable
}

func (NoTranslation) isTranslation() {}
func (TLBOnly) isTranslation()       {}
func (PageTableOnly) isTranslation() {}
func (Both) isTranslation()          {}

// TLBOf returns the TLB of a translation, if it has one.
func TLBOf(t Translation) (*tlb.Comp, bool) {
	switch t := t.(type) {
	case TLBOnly:
		return t.TLB, true
	case Both:
		return t.TLB, true
	case PageTableOnly, NoTranslation:
		return nil, false
	default:
		panic("unknown translation")
	}
}

// PageTableOf returns the inverted page table of a translation, if it has
// one.
func PageTableOf(t Translation) (*vm.PageTable, bool) {
	switch t := t.(type) {
	case PageTableOnly:
		return t.PageTable, true
	case Both:
		return t.PageTable, true
	case TLBOnly, NoTranslation:
		return nil, false
	default:
		panic("unknown translation")
	}
}
