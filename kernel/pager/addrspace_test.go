package pager

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/nachos/mem/vm"
)

var _ = Describe("Address Spaces", func() {
	var spaces *addressSpaces

	page := func(asid vm.AddressSpaceID, vpn, frame int) vm.TranslationEntry {
		return vm.TranslationEntry{
			AddressSpaceID: asid,
			VirtualPage:    vpn,
			PhysicalFrame:  frame,
			Valid:          true,
		}
	}

	BeforeEach(func() {
		spaces = newAddressSpaces()
	})

	It("should find inserted pages", func() {
		spaces.insert(page(1, 3, 0))
		spaces.insert(page(2, 3, 1))

		e, found := spaces.find(1, 3)
		Expect(found).To(BeTrue())
		Expect(e.PhysicalFrame).To(Equal(0))

		e, found = spaces.find(2, 3)
		Expect(found).To(BeTrue())
		Expect(e.PhysicalFrame).To(Equal(1))

		_, found = spaces.find(3, 3)
		Expect(found).To(BeFalse())
	})

	It("should update pages", func() {
		spaces.insert(page(1, 3, 0))

		updated := page(1, 3, 0)
		updated.Dirty = true
		spaces.update(updated)

		e, _ := spaces.find(1, 3)
		Expect(e.Dirty).To(BeTrue())
	})

	It("should panic when updating a page that does not exist", func() {
		Expect(func() { spaces.update(page(1, 3, 0)) }).To(Panic())
	})

	It("should panic when inserting a page twice", func() {
		spaces.insert(page(1, 3, 0))
		Expect(func() { spaces.insert(page(1, 3, 1)) }).To(Panic())
	})

	It("should release pages in insertion order", func() {
		spaces.insert(page(1, 7, 2))
		spaces.insert(page(1, 3, 0))
		spaces.insert(page(2, 1, 1))

		released := spaces.release(1)

		Expect(released).To(HaveLen(2))
		Expect(released[0].VirtualPage).To(Equal(7))
		Expect(released[1].VirtualPage).To(Equal(3))
		Expect(spaces.numPages(1)).To(Equal(0))
		Expect(spaces.numPages(2)).To(Equal(1))
		Expect(spaces.release(1)).To(BeEmpty())
	})
})
