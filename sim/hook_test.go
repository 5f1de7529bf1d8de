package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type countingHook struct {
	positions []string
}

func (h *countingHook) Func(ctx HookCtx) {
	h.positions = append(h.positions, ctx.Pos.Name)
}

var _ = Describe("HookableBase", func() {
	var (
		domain *HookableBase
		pos    *HookPos
	)

	BeforeEach(func() {
		domain = &HookableBase{}
		pos = &HookPos{Name: "Pos"}
	})

	It("should invoke hooks in registration order", func() {
		var order []int

		domain.AcceptHook(HookFunc(func(HookCtx) { order = append(order, 1) }))
		domain.AcceptHook(HookFunc(func(HookCtx) { order = append(order, 2) }))

		domain.InvokeHook(HookCtx{Pos: pos})

		Expect(order).To(Equal([]int{1, 2}))
		Expect(domain.NumHooks()).To(Equal(2))
		Expect(domain.Hooks()).To(HaveLen(2))
	})

	It("should pass the context to the hook", func() {
		h := &countingHook{}
		domain.AcceptHook(h)

		domain.InvokeHook(HookCtx{Pos: pos, Item: 1})
		domain.InvokeHook(HookCtx{Pos: pos, Item: 2})

		Expect(h.positions).To(Equal([]string{"Pos", "Pos"}))
	})

	It("should not accept the same hook twice", func() {
		h := &countingHook{}
		domain.AcceptHook(h)

		Expect(func() { domain.AcceptHook(h) }).To(Panic())
	})

	It("should accept a hook next to a function hook", func() {
		domain.AcceptHook(HookFunc(func(HookCtx) {}))

		Expect(func() { domain.AcceptHook(&countingHook{}) }).NotTo(Panic())
	})
})

var _ = Describe("IDGenerator", func() {
	It("should generate sequential IDs", func() {
		g := &sequentialIDGenerator{}

		Expect(g.Generate()).To(Equal("1"))
		Expect(g.Generate()).To(Equal("2"))
	})

	It("should generate unique global IDs", func() {
		g := globalIDGenerator{}

		Expect(g.Generate()).NotTo(Equal(g.Generate()))
	})

	It("should keep the generator once used", func() {
		g := GetIDGenerator()

		Expect(GetIDGenerator()).To(BeIdenticalTo(g))
		Expect(func() { UseGlobalIDGenerator() }).To(Panic())
	})
})
