package machine

import (
	"log"

	"github.com/sarchlab/nachos/mem/vm"
	"github.com/sarchlab/nachos/mem/vm/tlb"
	"github.com/sarchlab/nachos/sim"
)

// TranslationLogger is a hook that prints exceptions, misses, refills and
// replacements as they happen.
type TranslationLogger struct {
	sim.LogHookBase
}

// NewTranslationLogger returns a TranslationLogger that writes into logger.
func NewTranslationLogger(logger *log.Logger) *TranslationLogger {
	h := new(TranslationLogger)
	h.Logger = logger

	return h
}

// Func writes one line per event.
func (h *TranslationLogger) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case HookPosException:
		evt := ctx.Item.(ExceptionEvent)
		h.Printf("Exception: %s", evt.Kind)
	case HookPosTLBMiss:
		f := ctx.Item.(TranslationFault)
		h.Printf("TLB miss: tID %d, vpn %d", f.AddressSpaceID, f.VirtualPage)
	case HookPosPageFault:
		f := ctx.Item.(TranslationFault)
		h.Printf("Page fault: tID %d, vpn %d", f.AddressSpaceID, f.VirtualPage)
	case tlb.HookPosUpdate:
		h.Printf("Update TLB!")
	case tlb.HookPosEvict:
		evt := ctx.Item.(vm.EntryEvent)
		h.Printf("Replace tlb #%d", evt.Slot)
	case vm.HookPosPageInstall:
		evt := ctx.Item.(vm.EntryEvent)
		h.Printf("Update RPT #%d: tID %d, vpn %d",
			evt.Slot, evt.Entry.AddressSpaceID, evt.Entry.VirtualPage)
	case vm.HookPosPageEvict:
		evt := ctx.Item.(vm.EntryEvent)
		h.Printf("Replace rpt #%d", evt.Slot)
	}
}
