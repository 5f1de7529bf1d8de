package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	"github.com/gorilla/mux"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/nachos/kernel/pager"
	"github.com/sarchlab/nachos/machine"
	"github.com/sarchlab/nachos/machine/stats"
	"github.com/sarchlab/nachos/mem/vm"
	"github.com/sarchlab/nachos/workload"
)

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		runner *workload.Runner
		router *mux.Router
	)

	BeforeEach(func() {
		mc := machine.MakeBuilder().
			WithTLB(true).
			WithPageTable(true).
			WithTLBSize(2).
			WithNumPhysPages(4).
			WithPageSize(128).
			WithStats(stats.New(true)).
			Build("M")
		p := pager.New(mc)
		runner = workload.NewRunner("M", mc, p, &workload.Workload{
			Accesses: []workload.Access{
				{AddressSpace: 1, Op: workload.Write, Addr: 4, Size: 4, Value: 3},
				{AddressSpace: 1, Op: workload.Read, Addr: 4, Size: 4},
			},
		})

		m = NewMonitor()
		m.RegisterRunner(runner)
		router = m.createRouter()
	})

	serve := func(method, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, nil)
		router.ServeHTTP(rec, req)

		return rec
	}

	decode := func(rec *httptest.ResponseRecorder, v any) {
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(json.Unmarshal(rec.Body.Bytes(), v)).To(Succeed())
	}

	It("should fall back to a random port", func() {
		Expect(m.WithPortNumber(80).address()).To(Equal(":0"))
		Expect(m.WithPortNumber(8080).address()).To(Equal(":8080"))
	})

	It("should list machines", func() {
		var names []string
		decode(serve(http.MethodGet, "/api/list_machines"), &names)

		Expect(names).To(Equal([]string{"M"}))
	})

	It("should report unknown machines", func() {
		rec := serve(http.MethodGet, "/api/machine/N/registers")

		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should step the workload", func() {
		var rsp stepRsp
		decode(serve(http.MethodPost, "/api/machine/M/step"), &rsp)

		Expect(rsp.Index).To(Equal(0))
		Expect(rsp.Attempts).To(Equal(2))
		Expect(rsp.Error).To(BeEmpty())

		decode(serve(http.MethodPost, "/api/machine/M/step"), &rsp)
		Expect(rsp.Value).To(Equal(3))

		decode(serve(http.MethodPost, "/api/machine/M/step"), &rsp)
		Expect(rsp.Done).To(BeTrue())
	})

	It("should only step with POST", func() {
		rec := serve(http.MethodGet, "/api/machine/M/step")

		Expect(rec.Code).To(Equal(http.StatusMethodNotAllowed))
	})

	It("should list registers", func() {
		runner.Step()

		var rsp registerRsp
		decode(serve(http.MethodGet, "/api/machine/M/registers"), &rsp)

		Expect(rsp.Registers).To(HaveLen(machine.NumTotalRegs))
		Expect(rsp.BadVAddr).To(Equal(4))
	})

	It("should list the TLB and the page table", func() {
		runner.Step()

		var tlbEntries []vm.TranslationEntry
		decode(serve(http.MethodGet, "/api/machine/M/tlb"), &tlbEntries)
		Expect(tlbEntries).To(HaveLen(2))
		Expect(tlbEntries[0].Valid).To(BeTrue())
		Expect(tlbEntries[0].Dirty).To(BeTrue())

		var ptEntries []vm.TranslationEntry
		decode(serve(http.MethodGet, "/api/machine/M/pagetable"), &ptEntries)
		Expect(ptEntries).To(HaveLen(4))
		Expect(ptEntries[0].AddressSpaceID).To(Equal(vm.AddressSpaceID(1)))
	})

	It("should report statistics", func() {
		runner.Step()

		var rsp map[string]any
		decode(serve(http.MethodGet, "/api/machine/M/stats"), &rsp)

		Expect(rsp["accesses_done"]).To(BeEquivalentTo(1))
		Expect(rsp["free_frames"]).To(BeEquivalentTo(3))
		Expect(rsp["counters"]).To(HaveKeyWithValue(
			"num_tlb_miss", BeEquivalentTo(1)))
	})

	It("should dump the machine", func() {
		rec := serve(http.MethodGet, "/api/machine/M/dump")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("Machine registers:"))
		Expect(rec.Body.String()).To(ContainSubstring("TLB now:"))
		Expect(rec.Body.String()).To(ContainSubstring("RPT now:"))
	})

	It("should serialize the machine", func() {
		rec := serve(http.MethodGet, "/api/machine/M")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should track progress", func() {
		var bars []*ProgressBar
		decode(serve(http.MethodGet, "/api/progress"), &bars)
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Name).To(Equal("M"))
		Expect(bars[0].Total).To(Equal(uint64(2)))

		runner.Step()
		Expect(m.progressBars[0].Finished).To(Equal(uint64(1)))

		runner.Step()
		Expect(m.progressBars).To(BeEmpty())
	})

	It("should serve the dashboard", func() {
		rec := serve(http.MethodGet, "/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})
})
