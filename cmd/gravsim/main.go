package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"text/tabwriter"
	"time"

	kitlog "github.com/go-kit/kit/log"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/gravsim/internal/config"
	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/export"
	"github.com/san-kum/gravsim/internal/physics"
	"github.com/san-kum/gravsim/internal/playback"
	"github.com/san-kum/gravsim/internal/sim"
	"github.com/san-kum/gravsim/internal/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	dataDir string
	verbose bool

	preset     string
	configFile string
	runName    string
	g          float64
	t0, t1     float64
	rtol, atol float64
	minStep    float64
	maxStep    float64
	maxSteps   int
	samples    int
	timeout    time.Duration
	playAfter  bool

	plotVar    string
	outputFile string
	svgSize    int
	stride     int
	trail      int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "gravsim",
		Short:         "two-body gravity integrator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".gravsim", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log solver progress to stderr")
	rootCmd.PersistentPreRunE = bindEnv

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "integrate a scenario and store the sampled trajectory",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	def := config.DefaultConfig()
	runCmd.Flags().StringVar(&preset, "preset", "classic", "preset scenario")
	runCmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml), overrides --preset")
	runCmd.Flags().StringVar(&runName, "name", "", "run name (default: scenario name)")
	runCmd.Flags().Float64Var(&g, "g", def.G, "gravitational constant")
	runCmd.Flags().Float64Var(&t0, "t0", def.Span.T0, "start time")
	runCmd.Flags().Float64Var(&t1, "time", def.Span.T1, "end time")
	runCmd.Flags().Float64Var(&rtol, "rtol", def.Tolerance.RelTol, "relative tolerance")
	runCmd.Flags().Float64Var(&atol, "atol", def.Tolerance.AbsTol, "absolute tolerance")
	runCmd.Flags().Float64Var(&minStep, "min-step", def.MinStep, "smallest step before giving up")
	runCmd.Flags().Float64Var(&maxStep, "max-step", 0, "largest step (0: unbounded)")
	runCmd.Flags().IntVar(&maxSteps, "max-steps", def.MaxSteps, "accepted step budget")
	runCmd.Flags().IntVar(&samples, "samples", def.Samples, "output samples over the span")
	runCmd.Flags().DurationVar(&timeout, "timeout", 0, "wall-clock limit (0: none)")
	runCmd.Flags().BoolVar(&playAfter, "play", false, "play the result when done")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot separation or one state column against time",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&plotVar, "var", "", "column to plot, e.g. r1x (default: separation)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run samples to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and samples to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportJSONCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "draw the x-y projection of the orbits as SVG",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	exportSVGCmd.Flags().IntVar(&svgSize, "size", 600, "image width and height in pixels")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available scenario presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	playCmd := &cobra.Command{
		Use:   "play [run_id]",
		Short: "replay a stored run in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE:  playRun,
	}
	for _, c := range []*cobra.Command{runCmd, playCmd} {
		c.Flags().IntVar(&stride, "stride", playback.DefaultStride, "frames per tick")
		c.Flags().IntVar(&trail, "trail", playback.DefaultTrail, "trail length in frames")
	}

	rootCmd.AddCommand(runCmd, listCmd, showCmd, plotCmd, exportCSVCmd, exportJSONCmd, exportSVGCmd, presetsCmd, playCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

// bindEnv lets GRAVSIM_DATA and GRAVSIM_VERBOSE stand in for the global
// flags. An explicit flag still wins.
func bindEnv(cmd *cobra.Command, args []string) error {
	v := viper.New()
	v.SetEnvPrefix("gravsim")
	v.AutomaticEnv()

	flags := cmd.Root().PersistentFlags()
	for _, name := range []string{"data", "verbose"} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			return err
		}
	}
	dataDir = v.GetString("data")
	verbose = v.GetBool("verbose")
	return nil
}

func newLogger() kitlog.Logger {
	if !verbose {
		return kitlog.NewNopLogger()
	}
	logger := kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
	return kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)
}

// resolveConfig picks the scenario (file, else preset) and applies the
// flags the user set explicitly.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	} else {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	flags := cmd.Flags()
	if flags.Changed("name") {
		cfg.Name = runName
	}
	if flags.Changed("g") {
		cfg.G = g
	}
	if flags.Changed("t0") {
		cfg.Span.T0 = t0
	}
	if flags.Changed("time") {
		cfg.Span.T1 = t1
	}
	if flags.Changed("rtol") {
		cfg.Tolerance.RelTol = rtol
	}
	if flags.Changed("atol") {
		cfg.Tolerance.AbsTol = atol
	}
	if flags.Changed("min-step") {
		cfg.MinStep = minStep
	}
	if flags.Changed("max-step") {
		cfg.MaxStep = maxStep
	}
	if flags.Changed("max-steps") {
		cfg.MaxSteps = maxSteps
	}
	if flags.Changed("samples") {
		cfg.Samples = samples
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// sampleRun resamples whatever the run reached. A run that failed before
// its first step still yields its initial state.
func sampleRun(traj *sim.Trajectory, n int) (*sim.Samples, error) {
	if traj.Steps() == 0 {
		return sim.Resample(traj, []float64{traj.Time(0)})
	}
	return sim.Uniform(traj, n)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	simCfg := cfg.Sim()

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	s, err := sim.ForConfig(simCfg)
	if err != nil {
		return err
	}
	s.SetLogger(kitlog.With(newLogger(), "scenario", cfg.Name))

	fmt.Printf("integrating %s over [%g, %g] (rtol %g, atol %g)...\n",
		cfg.Name, simCfg.T0, simCfg.T1, simCfg.RelTol, simCfg.AbsTol)
	start := time.Now()

	traj, runErr := s.Run(context.Background(), cfg.InitialState(), simCfg)
	if traj == nil {
		return runErr
	}
	elapsed := time.Since(start)

	frames, err := sampleRun(traj, simCfg.Samples)
	if err != nil {
		return err
	}
	meta := storage.NewMetadata(cfg.Name, simCfg, traj, frames.SampleCount())
	runID, err := st.Save(meta, frames)
	if err != nil {
		return err
	}

	stats := traj.Stats()
	fmt.Printf("finished in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("status: %s (reached t=%g)\n", meta.Status, traj.End())
	fmt.Printf("steps: %d accepted, %d rejected, %d evaluations\n", stats.Accepted, stats.Rejected, stats.Evaluations)
	printMetrics(meta.Metrics)

	if runErr != nil {
		return runErr
	}
	if playAfter {
		return playback.Run(cfg.Name, frames, playbackOptions())
	}
	return nil
}

func printMetrics(metrics map[string]float64) {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	slices.Sort(names)

	fmt.Println("\nmetrics:")
	for _, name := range names {
		fmt.Printf("  %s: %.6g\n", name, metrics[name])
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tSTATUS\tREACHED\tSTEPS\tREJECTED\tRTOL")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%g\t%d\t%d\t%g\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Status,
			run.Reached,
			run.Accepted,
			run.Rejected,
			run.RelTol,
		)
	}

	return w.Flush()
}

func showRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "id\t%s\n", meta.ID)
	fmt.Fprintf(w, "name\t%s\n", meta.Name)
	fmt.Fprintf(w, "time\t%s\n", meta.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "masses\t%v\n", meta.Masses)
	fmt.Fprintf(w, "g\t%g\n", meta.G)
	fmt.Fprintf(w, "span\t[%g, %g]\n", meta.T0, meta.T1)
	fmt.Fprintf(w, "reached\t%g\n", meta.Reached)
	fmt.Fprintf(w, "tolerance\trtol %g, atol %g\n", meta.RelTol, meta.AbsTol)
	fmt.Fprintf(w, "steps\t%d accepted, %d rejected, %d evaluations\n", meta.Accepted, meta.Rejected, meta.Evals)
	fmt.Fprintf(w, "samples\t%d\n", meta.Samples)
	fmt.Fprintf(w, "status\t%s\n", meta.Status)
	if meta.Failure != "" {
		fmt.Fprintf(w, "failure\t%s\n", meta.Failure)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	printMetrics(meta.Metrics)
	return nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	rec, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	if rec.SampleCount() < 2 {
		return fmt.Errorf("no data to plot")
	}

	data := make([]float64, rec.SampleCount())
	caption := "separation vs time"
	if plotVar == "" {
		if rec.NumBodies() < 2 {
			return fmt.Errorf("separation needs two bodies, run has %d", rec.NumBodies())
		}
		for i := range data {
			x := rec.StateAt(i)
			data[i] = r3.Norm(r3.Sub(physics.Position(x, 1), physics.Position(x, 0)))
		}
	} else {
		col := slices.Index(rec.Labels, plotVar)
		if col < 0 {
			return fmt.Errorf("unknown column %q (available: %v)", plotVar, rec.Labels)
		}
		for i := range data {
			data[i] = rec.States[i][col]
		}
		caption = plotVar + " vs time"
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("samples: %d over [%g, %g]\n\n", rec.SampleCount(), rec.TimeAt(0), rec.TimeAt(rec.SampleCount()-1))

	graph := asciigraph.Plot(data,
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption(caption),
	)
	fmt.Println(graph)
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	rec, err := st.LoadStates(args[0])
	if err != nil {
		return err
	}
	if rec.SampleCount() == 0 {
		return fmt.Errorf("no data to export")
	}
	return storage.WriteCSV(os.Stdout, rec, rec.NumBodies())
}

func exportJSON(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	rec, err := st.LoadStates(runID)
	if err != nil {
		return err
	}

	if outputFile == "" {
		return storage.ExportJSON(os.Stdout, *meta, rec)
	}

	file, err := os.Create(outputFile)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := storage.ExportJSON(file, *meta, rec); err != nil {
		return err
	}
	fmt.Printf("exported %d samples to %s\n", rec.SampleCount(), outputFile)
	return nil
}

func exportSVG(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	rec, err := st.LoadStates(args[0])
	if err != nil {
		return err
	}

	if outputFile == "" {
		return export.OrbitsSVG(os.Stdout, rec, svgSize, svgSize)
	}

	file, err := os.Create(outputFile)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := export.OrbitsSVG(file, rec, svgSize, svgSize); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", outputFile)
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tBODIES\tMASSES\tSPAN\tRTOL\tATOL")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%d\t%v\t[%g, %g]\t%g\t%g\n",
			name, len(p.Bodies), p.Masses(), p.Span.T0, p.Span.T1, p.Tolerance.RelTol, p.Tolerance.AbsTol)
	}
	return w.Flush()
}

func playbackOptions() playback.Options {
	opts := playback.DefaultOptions()
	opts.Stride = stride
	opts.Trail = trail
	return opts
}

func playRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	rec, err := st.LoadStates(runID)
	if err != nil {
		return err
	}
	if meta.Status == storage.StatusPartial {
		fmt.Fprintf(os.Stderr, "note: run stopped early at t=%g: %s\n", meta.Reached, meta.Failure)
	}
	return playback.Run(meta.Name, rec, playbackOptions())
}

// exitCode distinguishes solver failures from usage errors.
func exitCode(err error) int {
	var simErr *dynamo.SimulationError
	if errors.As(err, &simErr) {
		return 2
	}
	return 1
}
