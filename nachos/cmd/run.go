package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/nachos/datarecording"
	"github.com/sarchlab/nachos/kernel/pager"
	"github.com/sarchlab/nachos/machine"
	"github.com/sarchlab/nachos/machine/stats"
	"github.com/sarchlab/nachos/mem/vm"
	"github.com/sarchlab/nachos/monitoring"
	"github.com/sarchlab/nachos/sim"
	"github.com/sarchlab/nachos/tracing"
	"github.com/sarchlab/nachos/workload"
)

// The flags that can be defaulted from the environment.
var runEnvFlags = []string{
	"tlb", "rpt", "policy", "tlb-size", "phys-pages", "page-size",
	"host-big-endian", "record", "monitor", "port",
}

var runCmd = &cobra.Command{
	Use:   "run [workload.yaml]",
	Short: "Replay a workload on an emulated machine.",
	Long: "`run` builds a machine, replays the memory accesses of the " +
		"workload file on it, and prints the translation statistics.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		err := applyEnvDefaults(cmd, runEnvFlags...)
		if err != nil {
			log.Fatalf("Error reading defaults: %v", err)
		}

		cfg, err := readRunConfig(cmd)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		cfg.workloadPath = args[0]

		err = runWorkload(cmd.Context(), cfg, os.Stdout)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		atexit.Exit(0)
	},
}

func init() {
	addRunFlags(runCmd)
	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Bool("tlb", true, "Translate through a TLB.")
	flags.Bool("rpt", false, "Translate through an inverted page table.")
	flags.String("policy", "FIFO", "Replacement policy, FIFO or LRU.")
	flags.Int("tlb-size", 4, "Number of TLB entries.")
	flags.Int("phys-pages", 128, "Number of physical frames.")
	flags.Int("page-size", 128, "Page size in bytes.")
	flags.Bool("host-big-endian", false,
		"Whether the host is configured as big-endian.")
	flags.String("record", "",
		"Record translation events into this SQLite database name.")
	flags.Bool("unique-ids", false,
		"Give recorded events globally unique IDs instead of sequential ones.")
	flags.Bool("debug", false, "Log translation events to stderr.")
	flags.Bool("dump", false,
		"Print the registers and translation structures at the end.")
	flags.Bool("monitor", false,
		"Serve the monitor and wait for commands instead of running.")
	flags.Int("port", 0, "Port of the monitor, random if not set.")
	flags.Bool("open-browser", false, "Open the monitor in a browser.")
}

type runConfig struct {
	workloadPath string

	useTLB, useRPT bool
	policy         vm.Policy
	tlbSize        int
	numPhysPages   int
	pageSize       int
	hostBigEndian  bool
	recordName     string
	uniqueIDs      bool
	debug, dump    bool
	monitor        bool
	port           int
	openBrowser    bool
}

func readRunConfig(cmd *cobra.Command) (runConfig, error) {
	flags := cmd.Flags()
	cfg := runConfig{}

	cfg.useTLB, _ = flags.GetBool("tlb")
	cfg.useRPT, _ = flags.GetBool("rpt")
	cfg.tlbSize, _ = flags.GetInt("tlb-size")
	cfg.numPhysPages, _ = flags.GetInt("phys-pages")
	cfg.pageSize, _ = flags.GetInt("page-size")
	cfg.hostBigEndian, _ = flags.GetBool("host-big-endian")
	cfg.recordName, _ = flags.GetString("record")
	cfg.uniqueIDs, _ = flags.GetBool("unique-ids")
	cfg.debug, _ = flags.GetBool("debug")
	cfg.dump, _ = flags.GetBool("dump")
	cfg.monitor, _ = flags.GetBool("monitor")
	cfg.port, _ = flags.GetInt("port")
	cfg.openBrowser, _ = flags.GetBool("open-browser")

	policy, _ := flags.GetString("policy")

	var err error

	cfg.policy, err = vm.ParsePolicy(policy)
	if err != nil {
		return cfg, err
	}

	if !cfg.useTLB && !cfg.useRPT {
		return cfg, fmt.Errorf("at least one of --tlb and --rpt must be set")
	}

	return cfg, nil
}

func buildMachine(cfg runConfig, counters *stats.Statistics) *machine.Machine {
	return machine.MakeBuilder().
		WithTLB(cfg.useTLB).
		WithPageTable(cfg.useRPT).
		WithPolicy(cfg.policy).
		WithTLBSize(cfg.tlbSize).
		WithNumPhysPages(cfg.numPhysPages).
		WithPageSize(cfg.pageSize).
		WithHostBigEndian(cfg.hostBigEndian).
		WithStats(counters).
		Build("Machine")
}

func runWorkload(ctx context.Context, cfg runConfig, out io.Writer) error {
	w, err := workload.Load(cfg.workloadPath)
	if err != nil {
		return err
	}

	err = machine.CheckEndian(cfg.hostBigEndian)
	if err != nil {
		return err
	}

	counters := stats.New(cfg.useTLB)
	m := buildMachine(cfg, counters)
	p := pager.New(m)
	r := workload.NewRunner("Machine", m, p, w)

	r.AcceptHook(sim.HookFunc(func(ctx sim.HookCtx) {
		res := ctx.Item.(workload.Result)
		if res.Err != nil {
			fmt.Fprintf(os.Stderr, "Access %d failed: %v\n", res.Index, res.Err)
		}
	}))

	if cfg.debug {
		m.AcceptHook(machine.NewTranslationLogger(log.New(os.Stderr, "", 0)))
	}

	if cfg.recordName != "" {
		if cfg.uniqueIDs {
			sim.UseGlobalIDGenerator()
		}

		recorder := datarecording.New(cfg.recordName)
		defer recorder.Close()

		tracer := tracing.NewDBTracer(recorder)
		defer tracer.Terminate()

		tracing.CollectTrace(m, tracer)
		tracing.CollectTrace(p, tracer)
		tracing.CollectTrace(r, tracer)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if cfg.monitor {
		serveMonitor(ctx, cfg, r)
	} else {
		err = r.Run(ctx)
		if err != nil {
			return err
		}
	}

	report(out, cfg, r, counters)

	return nil
}

// serveMonitor starts the monitor and blocks until interrupted. The workload
// is driven from the monitor.
func serveMonitor(ctx context.Context, cfg runConfig, r *workload.Runner) {
	monitor := monitoring.NewMonitor()
	if cfg.port != 0 {
		monitor = monitor.WithPortNumber(cfg.port)
	}

	monitor.RegisterRunner(r)
	url := monitor.StartServer()

	if cfg.openBrowser {
		err := browser.OpenURL(url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
		}
	}

	<-ctx.Done()
}

func report(
	out io.Writer,
	cfg runConfig,
	r *workload.Runner,
	counters *stats.Statistics,
) {
	r.Lock()
	defer r.Unlock()

	done, total := r.Progress()
	p := r.Pager()
	m := r.Machine()

	fmt.Fprintf(out, "Accesses: %d of %d performed, %d failed\n",
		done, total, r.NumFailed())
	counters.Print(out)
	fmt.Fprintf(out, "Evictions: %d, swap outs: %d, swap ins: %d\n",
		p.NumEvictions(), p.NumSwapOuts(), p.NumSwapIns())

	if !cfg.dump {
		return
	}

	m.DumpState(out)

	if cfg.useTLB {
		m.ShowTLB(out)
	}

	if cfg.useRPT {
		m.ShowRPT(out)
	}
}
