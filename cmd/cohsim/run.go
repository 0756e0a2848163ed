package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/coherence/datarecording"
	"github.com/sarchlab/coherence/mem/coherence/acceptance"
	"github.com/sarchlab/coherence/mem/coherence/link"
	"github.com/sarchlab/coherence/monitoring"
	"github.com/sarchlab/coherence/sim"
	"github.com/sarchlab/coherence/tracing"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run random traffic through the caches and check coherence.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := resolveConfig(cmd.Flags())
		if err != nil {
			return err
		}

		_, err = runSimulation(cfg, cmd.OutOrStdout())

		return err
	},
}

func init() {
	addConfigFlags(runCmd.Flags())
	rootCmd.AddCommand(runCmd)
}

type recording struct {
	exec   *datarecording.ExecRecorder
	tracer *tracing.DBTracer
}

// Handle flushes the recordings when the simulation ends.
func (r *recording) Handle(_ sim.VTimeInSec) {
	r.tracer.Terminate()
	r.exec.End()
}

// runSimulation builds the system described by cfg, runs it, and prints the
// hit and miss counts of every cache. It returns an error if the run did not
// drain or the caches lost coherence.
func runSimulation(cfg Config, out io.Writer) (*acceptance.System, error) {
	b, err := cfg.SystemBuilder()
	if err != nil {
		return nil, err
	}

	s := b.Build()

	if cfg.LogEvents {
		s.Engine.AcceptHook(sim.NewEventLogger(log.New(os.Stderr, "", 0)))
	}

	if cfg.LogMsgs {
		s.Link.AcceptHook(link.NewMsgLogger(log.New(os.Stderr, "", 0)))
	}

	latency := tracing.NewTimeTracer(s.Engine, tracing.KindIs("req_in"))
	for _, c := range s.Caches {
		tracing.CollectTrace(c, latency)
	}

	err = startRecording(cfg, s)
	if err != nil {
		return nil, err
	}

	if cfg.Monitor {
		startMonitor(cfg, s)
	}

	err = s.Run()
	if err != nil {
		return s, err
	}

	printSummary(out, cfg, s, latency)

	return s, s.Verify()
}

func startRecording(cfg Config, s *acceptance.System) error {
	if cfg.Record == "" {
		return nil
	}

	if _, err := os.Stat(cfg.Record + ".sqlite3"); err == nil {
		return fmt.Errorf("%s.sqlite3 already exists", cfg.Record)
	}

	recorder := datarecording.New(cfg.Record)

	exec := datarecording.NewExecRecorder(recorder)
	exec.Start()
	exec.AddProperty("Protocol", cfg.Protocol)
	exec.AddProperty("Cores", strconv.Itoa(cfg.Cores))
	exec.AddProperty("Requests", strconv.Itoa(cfg.Requests))
	exec.AddProperty("Addresses", strconv.Itoa(cfg.Addresses))
	exec.AddProperty("Seed", strconv.FormatInt(cfg.Seed, 10))

	access := tracing.NewAccessRecorder(recorder)
	tracer := tracing.NewDBTracer(s.Engine, recorder)

	for _, c := range s.Caches {
		c.Controller().AcceptHook(access)
		tracing.CollectTrace(c, tracer)
	}

	tracing.CollectTrace(s.Home, tracer)

	s.Engine.RegisterSimulationEndHandler(&recording{exec: exec, tracer: tracer})

	return nil
}

func startMonitor(cfg Config, s *acceptance.System) {
	m := monitoring.NewMonitor().WithBrowser(cfg.OpenBrowser)
	if cfg.MonitorPort != 0 {
		m.WithPortNumber(cfg.MonitorPort)
	}

	m.RegisterEngine(s.Engine)
	m.RegisterAccessTracer(s.Access)
	m.RegisterComponent(s.Home)
	m.RegisterComponent(s.Link)

	for _, c := range s.Caches {
		m.RegisterComponent(c)
	}

	for _, a := range s.Agents {
		m.RegisterComponent(a)
	}

	total := uint64(cfg.Cores * cfg.Requests)
	s.ReportProgressTo(m.CreateProgressBar("Requests", total))

	m.StartServer()
}

func printSummary(
	out io.Writer,
	cfg Config,
	s *acceptance.System,
	latency *tracing.TimeTracer,
) {
	fmt.Fprintf(out, "protocol %s, %d cores, %d requests per core, seed %d\n",
		cfg.Protocol, cfg.Cores, cfg.Requests, cfg.Seed)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "cache\tread hit\tread miss\twrite hit\twrite miss\thit rate")

	for _, c := range s.Caches {
		printCount(w, c.Name(), s.Access.Count(c.Name()))
	}

	printCount(w, "total", s.Access.Total())
	w.Flush()

	period := sim.GHz.Period()
	fmt.Fprintf(out, "average request latency: %.2f cycles\n",
		float64(latency.AverageTime()/period))
	fmt.Fprintf(out, "simulated cycles: %d\n",
		sim.GHz.Cycle(s.Engine.CurrentTime()))
}

func printCount(w io.Writer, name string, c tracing.AccessCount) {
	rate := 0.0
	if n := c.Hits() + c.Misses(); n > 0 {
		rate = float64(c.Hits()) / float64(n)
	}

	fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%.3f\n",
		name, c.ReadHit, c.ReadMiss, c.WriteHit, c.WriteMiss, rate)
}
