package workload

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/nachos/mem/vm"
)

var _ = Describe("Workload", func() {
	It("should parse accesses", func() {
		w, err := Parse([]byte(`
name: two processes
accesses:
  - {asid: 1, op: write, addr: 0x100, value: 42}
  - {asid: 2, op: READ, addr: 0x100, size: 2}
  - {asid: 1, op: read, addr: 0x100, expect: 42}
  - {asid: 1, op: exit}
`))

		Expect(err).ToNot(HaveOccurred())
		Expect(w.Name).To(Equal("two processes"))
		Expect(w.Accesses).To(HaveLen(4))

		Expect(w.Accesses[0]).To(Equal(Access{
			AddressSpace: 1, Op: Write, Addr: 0x100, Size: 4, Value: 42,
		}))
		Expect(w.Accesses[1].Op).To(Equal(Read))
		Expect(w.Accesses[1].Size).To(Equal(2))
		Expect(*w.Accesses[2].Expect).To(Equal(42))
		Expect(w.AddressSpaces()).To(Equal([]vm.AddressSpaceID{1, 2}))
	})

	DescribeTable("should reject invalid accesses",
		func(doc string) {
			_, err := Parse([]byte(doc))
			Expect(err).To(MatchError(ErrInvalidAccess))
		},
		Entry("unknown op", `accesses: [{asid: 1, op: jump}]`),
		Entry("bad size", `accesses: [{asid: 1, op: read, size: 3}]`),
		Entry("negative asid", `accesses: [{asid: -1, op: read}]`),
		Entry("negative addr", `accesses: [{asid: 1, op: read, addr: -4}]`),
		Entry("negative write addr",
			`accesses: [{asid: 1, op: write, addr: -8, value: 1}]`),
		Entry("write with expect",
			`accesses: [{asid: 1, op: write, expect: 1}]`),
	)

	It("should report malformed YAML", func() {
		_, err := Parse([]byte("accesses: ["))
		Expect(err).To(HaveOccurred())
	})

	It("should load from a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "w.yaml")
		err := os.WriteFile(path,
			[]byte("accesses: [{asid: 3, op: exit}]"), 0o644)
		Expect(err).ToNot(HaveOccurred())

		w, err := Load(path)

		Expect(err).ToNot(HaveOccurred())
		Expect(w.Accesses[0].Op).To(Equal(Exit))
	})

	It("should fail to load a missing file", func() {
		_, err := Load(filepath.Join(GinkgoT().TempDir(), "none.yaml"))
		Expect(err).To(HaveOccurred())
	})
})
