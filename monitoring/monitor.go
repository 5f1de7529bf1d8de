// Package monitoring turns a workload run into a web server, so that the
// machine state can be inspected and the run can be controlled from a
// browser.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/nachos/machine"
	"github.com/sarchlab/nachos/monitoring/web"
	"github.com/sarchlab/nachos/sim"
	"github.com/sarchlab/nachos/workload"
)

// Monitor can turn a run into a server and allows external monitoring and
// controlling of the run.
type Monitor struct {
	runners    []*workload.Runner
	portNumber int

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterRunner registers a runner to be monitored. A progress bar follows
// the accesses that the runner performs.
func (m *Monitor) RegisterRunner(r *workload.Runner) {
	m.runners = append(m.runners, r)

	_, total := r.Progress()
	bar := m.CreateProgressBar(r.Name(), uint64(total))
	r.AcceptHook(&progressHook{monitor: m, bar: bar})
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// StartServer starts the monitor as a web server and returns the URL it
// serves.
func (m *Monitor) StartServer() string {
	listener, err := net.Listen("tcp", m.address())
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring run with %s\n", url)

	go func() {
		err := http.Serve(listener, m.createRouter())
		dieOnErr(err)
	}()

	return url
}

func (m *Monitor) address() string {
	if m.portNumber > 1000 {
		return ":" + strconv.Itoa(m.portNumber)
	}

	return ":0"
}

func (m *Monitor) createRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/list_machines", m.listMachines)
	r.HandleFunc("/api/machine/{name}", m.listMachineDetails)
	r.HandleFunc("/api/machine/{name}/field/{path}", m.listFieldValue)
	r.HandleFunc("/api/machine/{name}/registers", m.listRegisters)
	r.HandleFunc("/api/machine/{name}/tlb", m.listTLB)
	r.HandleFunc("/api/machine/{name}/pagetable", m.listPageTable)
	r.HandleFunc("/api/machine/{name}/stats", m.listStats)
	r.HandleFunc("/api/machine/{name}/dump", m.dumpMachine)
	r.HandleFunc("/api/machine/{name}/step", m.step).Methods(http.MethodPost)
	r.HandleFunc("/api/machine/{name}/run", m.run).Methods(http.MethodPost)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

func (m *Monitor) listMachines(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.runners))
	for _, r := range m.runners {
		names = append(names, r.Name())
	}

	writeJSON(w, names)
}

func (m *Monitor) listMachineDetails(w http.ResponseWriter, r *http.Request) {
	runner := m.findRunnerOr404(w, mux.Vars(r)["name"])
	if runner == nil {
		return
	}

	runner.Lock()
	defer runner.Unlock()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(runner.Machine())
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	runner := m.findRunnerOr404(w, vars["name"])
	if runner == nil {
		return
	}

	runner.Lock()
	defer runner.Unlock()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(runner.Machine())
	serializer.SetMaxDepth(1)

	err := serializer.SetEntryPoint(strings.Split(vars["path"], "."))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

type registerRsp struct {
	Registers []int `json:"registers"`
	PC        int   `json:"pc"`
	BadVAddr  int   `json:"bad_vaddr"`
}

func (m *Monitor) listRegisters(w http.ResponseWriter, r *http.Request) {
	runner := m.findRunnerOr404(w, mux.Vars(r)["name"])
	if runner == nil {
		return
	}

	runner.Lock()
	defer runner.Unlock()

	mc := runner.Machine()
	rsp := registerRsp{
		Registers: make([]int, machine.NumTotalRegs),
		PC:        mc.ReadRegister(machine.PCReg),
		BadVAddr:  mc.ReadRegister(machine.BadVAddrReg),
	}

	for i := range rsp.Registers {
		rsp.Registers[i] = mc.ReadRegister(i)
	}

	writeJSON(w, rsp)
}

func (m *Monitor) listTLB(w http.ResponseWriter, r *http.Request) {
	runner := m.findRunnerOr404(w, mux.Vars(r)["name"])
	if runner == nil {
		return
	}

	runner.Lock()
	defer runner.Unlock()

	t, ok := machine.TLBOf(runner.Machine().Translation())
	if !ok {
		http.Error(w, "machine has no TLB", http.StatusNotFound)
		return
	}

	writeJSON(w, t.Entries())
}

func (m *Monitor) listPageTable(w http.ResponseWriter, r *http.Request) {
	runner := m.findRunnerOr404(w, mux.Vars(r)["name"])
	if runner == nil {
		return
	}

	runner.Lock()
	defer runner.Unlock()

	pt, ok := machine.PageTableOf(runner.Machine().Translation())
	if !ok {
		http.Error(w, "machine has no page table", http.StatusNotFound)
		return
	}

	writeJSON(w, pt.Entries())
}

type statsRsp struct {
	Counters      machine.StatsRecorder `json:"counters"`
	FreeFrames    int                   `json:"free_frames"`
	Evictions     int                   `json:"evictions"`
	SwapOuts      int                   `json:"swap_outs"`
	SwapIns       int                   `json:"swap_ins"`
	AccessesDone  int                   `json:"accesses_done"`
	AccessesTotal int                   `json:"accesses_total"`
	Failed        int                   `json:"failed"`
}

func (m *Monitor) listStats(w http.ResponseWriter, r *http.Request) {
	runner := m.findRunnerOr404(w, mux.Vars(r)["name"])
	if runner == nil {
		return
	}

	runner.Lock()
	defer runner.Unlock()

	mc := runner.Machine()
	p := runner.Pager()
	rsp := statsRsp{
		Counters:   mc.Stats(),
		FreeFrames: mc.NumFreePageFrames(),
		Evictions:  p.NumEvictions(),
		SwapOuts:   p.NumSwapOuts(),
		SwapIns:    p.NumSwapIns(),
		Failed:     runner.NumFailed(),
	}
	rsp.AccessesDone, rsp.AccessesTotal = runner.Progress()

	writeJSON(w, rsp)
}

func (m *Monitor) dumpMachine(w http.ResponseWriter, r *http.Request) {
	runner := m.findRunnerOr404(w, mux.Vars(r)["name"])
	if runner == nil {
		return
	}

	runner.Lock()
	defer runner.Unlock()

	mc := runner.Machine()
	w.Header().Set("Content-Type", "text/plain")

	mc.DumpState(w)

	if _, ok := machine.TLBOf(mc.Translation()); ok {
		mc.ShowTLB(w)
	}

	if _, ok := machine.PageTableOf(mc.Translation()); ok {
		mc.ShowRPT(w)
	}
}

type stepRsp struct {
	Done     bool   `json:"done"`
	Index    int    `json:"index,omitempty"`
	Access   string `json:"access,omitempty"`
	Value    int    `json:"value,omitempty"`
	Attempts int    `json:"attempts,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (m *Monitor) step(w http.ResponseWriter, r *http.Request) {
	runner := m.findRunnerOr404(w, mux.Vars(r)["name"])
	if runner == nil {
		return
	}

	res, more := runner.Step()
	if !more {
		writeJSON(w, stepRsp{Done: true})
		return
	}

	rsp := stepRsp{
		Index:    res.Index,
		Access:   res.Access.String(),
		Value:    res.Value,
		Attempts: res.Attempts,
	}

	if res.Err != nil {
		rsp.Error = res.Err.Error()
	}

	writeJSON(w, rsp)
}

func (m *Monitor) run(w http.ResponseWriter, r *http.Request) {
	runner := m.findRunnerOr404(w, mux.Vars(r)["name"])
	if runner == nil {
		return
	}

	go func() {
		err := runner.Run(context.Background())
		if err != nil {
			log.Panic(err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
}

func (m *Monitor) findRunnerOr404(
	w http.ResponseWriter,
	name string,
) *workload.Runner {
	for _, r := range m.runners {
		if r.Name() == name {
			return r
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Machine not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	writeJSON(w, m.progressBars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
