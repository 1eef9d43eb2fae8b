package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dhruv3/CudaCode/internal/config"
	"github.com/dhruv3/CudaCode/internal/device"
	"github.com/dhruv3/CudaCode/internal/logutil"
	"github.com/dhruv3/CudaCode/internal/probe"
	"github.com/dhruv3/CudaCode/internal/server"
	"github.com/dhruv3/CudaCode/internal/sieve"
	"github.com/dhruv3/CudaCode/internal/storage"
	"github.com/dhruv3/CudaCode/internal/viz"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	configFile string
	preset     string
	backend    string
	workers    int
	laneWidth  int
	verbose    bool
	logFormat  string
	// run
	save      bool
	verify    bool
	countOnly bool
	// bench
	benchBounds []int
	// serve
	listenAddr string
)

// main runs the gpusieve CLI. With no subcommand it sieves the configured
// bound (102 by default) and prints the primes space-separated.
// Any error, including a device failure, exits with status 1 and no primes.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, viz.ErrorStyle.Render("error:"), err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gpusieve [N]",
		Short:         "prime sieve on a parallel accelerator device",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runSieve,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".gpusieve", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")
	rootCmd.PersistentFlags().StringVar(&backend, "device", config.DefaultDevice, "device backend (auto, host, cuda)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "host device worker goroutines (0 = all CPUs)")
	rootCmd.PersistentFlags().IntVar(&laneWidth, "lane-width", 0, "lanes per group (0 = probe the device)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", config.DefaultLogFormat, "log output format (text, json)")

	rootCmd.Flags().BoolVar(&save, "save", false, "store the run in the data directory")
	rootCmd.Flags().BoolVar(&verify, "verify", false, "check the result against a serial sieve")
	rootCmd.Flags().BoolVar(&countOnly, "count", false, "print only the number of primes")

	runCmd := &cobra.Command{
		Use:   "run [N]",
		Short: "sieve the primes below N",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSieve,
	}
	runCmd.Flags().BoolVar(&save, "save", false, "store the run in the data directory")
	runCmd.Flags().BoolVar(&verify, "verify", false, "check the result against a serial sieve")
	runCmd.Flags().BoolVar(&countOnly, "count", false, "print only the number of primes")

	probeCmd := &cobra.Command{
		Use:   "probe",
		Short: "show the device capability and derived lane width",
		Args:  cobra.NoArgs,
		RunE:  probeDevice,
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark the sieve over a range of bounds",
		Args:  cobra.NoArgs,
		RunE:  benchSieve,
	}
	benchCmd.Flags().IntSliceVar(&benchBounds, "bounds", []int{1_000, 10_000, 100_000, 1_000_000, 10_000_000}, "bounds to sieve")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "plot the prime-counting function of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PRESET\tBOUND\tDEVICE\tWORKERS\tLANE WIDTH")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%d\n", name, p.Bound, p.Device, p.Workers, p.LaneWidth)
			}
			return w.Flush()
		},
	}

	tuiCmd := &cobra.Command{
		Use:   "tui [N]",
		Short: "interactive prime explorer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}
			eng, dev, err := newEngine(cfg)
			if err != nil {
				return err
			}
			defer dev.Close()
			return viz.RunExplorer(eng, cfg.Bound, cfg.MaxBound)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve the sieve over http",
		Args:  cobra.NoArgs,
		RunE:  serveSieve,
	}
	serveCmd.Flags().StringVar(&listenAddr, "listen", "127.0.0.1:8082", "address to listen on")

	rootCmd.AddCommand(runCmd, probeCmd, benchCmd, listCmd, showCmd, exportCmd, presetsCmd, tuiCmd, serveCmd)
	return rootCmd
}

// loadConfig merges defaults, preset, config file, flags and the optional
// bound argument, in that order, and installs the logger.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("device") {
		cfg.Device = backend
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("lane-width") {
		cfg.LaneWidth = laneWidth
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	if flags.Changed("log-format") {
		cfg.LogFormat = logFormat
	}

	level, err := logutil.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := logutil.ParseFormat(cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logutil.New(os.Stderr, logutil.Options{Level: level, Format: format}))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if len(args) > 0 {
		bound, err := parseBound(args[0])
		if err != nil {
			return nil, err
		}
		cfg.Bound = bound
	}

	return cfg, nil
}

func parseBound(s string) (int, error) {
	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bound %q is not an integer", sieve.ErrInvalidArgument, s)
	}
	return int(n), nil
}

func newEngine(cfg *config.Config) (*sieve.Engine, device.Device, error) {
	dev, err := device.Open(cfg.Device, cfg.HostOptions()...)
	if err != nil {
		return nil, nil, err
	}
	opts := append(cfg.EngineOptions(), sieve.WithLogger(slog.Default()))
	return sieve.New(dev, opts...), dev, nil
}

func runSieve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	eng, dev, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer dev.Close()

	res, err := eng.Run(cmd.Context(), cfg.Bound)
	if err != nil {
		return err
	}

	if verify {
		if err := sieve.Verify(res.Flags); err != nil {
			return err
		}
		slog.Info("verified against serial sieve", "bound", res.Bound)
	}

	primes := res.Primes()
	out := cmd.OutOrStdout()
	if countOnly {
		fmt.Fprintln(out, len(primes))
	} else if err := printPrimes(out, primes); err != nil {
		return err
	}

	if save {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		runID, err := st.Save(res)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "saved: %s\n", runID)
	}

	return nil
}

func printPrimes(w io.Writer, primes []int) error {
	bw := bufio.NewWriter(w)
	for i, p := range primes {
		if i > 0 {
			bw.WriteByte(' ')
		}
		bw.WriteString(strconv.Itoa(p))
	}
	bw.WriteByte('\n')
	return bw.Flush()
}

func probeDevice(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	dev, err := device.Open(cfg.Device, cfg.HostOptions()...)
	if err != nil {
		return err
	}
	defer dev.Close()

	res, err := probe.Run(dev, cfg.Probe)
	if err != nil {
		return err
	}

	width := res.Width
	if cfg.LaneWidth > 0 {
		width = cfg.LaneWidth
	}
	fmt.Fprintln(cmd.OutOrStdout(), viz.RenderCapability(res.Capability, width))
	return nil
}

func benchSieve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	eng, dev, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer dev.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "benchmarking on %s\n\n", dev.Name())
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "BOUND\tLAUNCH\tPRIMES\tTIME\tINTS/SEC\tVERIFIED")

	rates := make([]float64, 0, len(benchBounds))
	for _, bound := range benchBounds {
		res, err := eng.Run(cmd.Context(), bound)
		if err != nil {
			return err
		}

		verified := "ok"
		if err := sieve.Verify(res.Flags); err != nil {
			verified = "FAIL"
			slog.Error("bench result mismatch", "bound", bound, "error", err)
		}

		rate := throughput(bound, res.Elapsed)
		rates = append(rates, rate)

		fmt.Fprintf(w, "%d\t%s\t%d\t%v\t%.0f\t%s\n",
			bound, res.Launch, sieve.Count(res.Flags), res.Elapsed.Round(time.Microsecond), rate, verified)
	}

	if err := w.Flush(); err != nil {
		return err
	}

	if graph := viz.PlotThroughput(rates); graph != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, graph)
	}
	return nil
}

// throughput is integers sieved per second; zero when the clock did not advance.
func throughput(bound int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(bound) / elapsed.Seconds()
}

func serveSieve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	eng, dev, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer dev.Close()

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "serving on http://%s (%s)\n", ln.Addr(), dev.Name())
	return server.Serve(ctx, ln, server.New(eng, cfg.Probe, st))
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tBOUND\tDEVICE\tLAUNCH\tPRIMES\tELAPSED\tTIME")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%d\t%s\t%dx%d\t%d\t%v\t%s\n",
			run.ID,
			run.Bound,
			run.Device,
			run.Groups,
			run.LanesPerGroup,
			run.PrimeCount,
			run.Elapsed.Round(time.Microsecond),
			run.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	primes, err := st.LoadPrimes(runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, viz.Metric("run", meta.ID))
	fmt.Fprintln(out, viz.Metric("bound", meta.Bound))
	fmt.Fprintln(out, viz.Metric("device", fmt.Sprintf("%s (compute %s)", meta.Device, meta.Compute)))
	fmt.Fprintln(out, viz.Metric("primes", meta.PrimeCount))
	fmt.Fprintln(out, viz.Metric("largest", meta.LargestPrime))
	fmt.Fprintln(out)
	fmt.Fprintln(out, viz.PlotPrimeCounting(primes, meta.Bound))

	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}
