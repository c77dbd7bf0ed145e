package main

import (
	"fmt"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/vacoustic/internal/audiobuf"
	"github.com/san-kum/vacoustic/internal/audioio"
	"github.com/san-kum/vacoustic/internal/config"
	"github.com/san-kum/vacoustic/internal/geom"
	"github.com/san-kum/vacoustic/internal/receiver"
	"github.com/san-kum/vacoustic/internal/render"
	"github.com/san-kum/vacoustic/internal/scene"
	"github.com/san-kum/vacoustic/internal/storage"
)

var (
	dataDir      string
	configFile   string
	duration     float64
	receiverType string
	srcDist      float64
	ismOrder     int
	shoebox      float64
	live         bool
)

// main registers the vacoustic commands: render drives the engine with
// a synthetic transport, scene-check validates a demo scene and prints
// decoder diagnostics, meter draws the channel-0 level trace, list
// shows archived runs.
func main() {
	rootCmd := &cobra.Command{
		Use:   "vacoustic",
		Short: "dynamic virtual acoustics rendering engine",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".vacoustic", "data directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "render a demo scene with a synthetic transport",
		RunE:  runRender,
	}
	renderCmd.Flags().Float64Var(&duration, "time", 5.0, "render duration in seconds")
	renderCmd.Flags().StringVar(&receiverType, "receiver", "omni", "receiver type")
	renderCmd.Flags().Float64Var(&srcDist, "dist", 2.0, "source distance in meters")
	renderCmd.Flags().IntVar(&ismOrder, "ism", 1, "image source order")
	renderCmd.Flags().Float64Var(&shoebox, "shoebox", 0, "shoebox room size (0 = free field)")
	renderCmd.Flags().BoolVar(&live, "live", false, "play through the default audio device")

	checkCmd := &cobra.Command{
		Use:   "scene-check",
		Short: "validate the demo scene and print decoder diagnostics",
		RunE:  runCheck,
	}
	checkCmd.Flags().StringVar(&receiverType, "receiver", "hoa3d", "receiver type")

	meterCmd := &cobra.Command{
		Use:   "meter",
		Short: "render and draw the level-meter trace",
		RunE:  runMeter,
	}
	meterCmd.Flags().Float64Var(&duration, "time", 5.0, "render duration in seconds")
	meterCmd.Flags().StringVar(&receiverType, "receiver", "omni", "receiver type")
	meterCmd.Flags().Float64Var(&srcDist, "dist", 2.0, "source distance in meters")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list archived runs",
		RunE:  runList,
	}

	rootCmd.AddCommand(renderCmd, checkCmd, meterCmd, listCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	if configFile == "" {
		return config.DefaultConfig()
	}
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Warn("config load failed, using defaults", "err", err)
		return config.DefaultConfig()
	}
	return cfg
}

// demoScene builds a single-source scene around one receiver, with an
// optional shoebox room.
func demoScene(ctx *render.RenderContext) (*render.Scene, *scene.SoundVertex, error) {
	s := render.NewScene("demo")

	src := scene.NewSource("src")
	v := scene.NewSoundVertex("src.0")
	v.LocalPos = geom.Vec3{X: srcDist}
	v.ISMMax = ismOrder
	src.Vertices = append(src.Vertices, v)
	s.Sources = append(s.Sources, src)

	var layout *receiver.Layout
	if receiverType == "vbap2d" || receiverType == "nsp" {
		layout = receiver.ITU50()
	} else if receiverType == "vbap3d" || receiverType == "hoa3d" {
		layout = receiver.ITU714()
	}
	variant, err := ctx.Registry.Build(receiverType, layout)
	if err != nil {
		return nil, nil, err
	}
	rec := receiver.New("out", receiverType, variant)
	rec.ISMMax = ismOrder
	s.Receivers = append(s.Receivers, rec)

	if shoebox > 0 {
		faces := scene.Shoebox("room", geom.Vec3{X: shoebox, Y: shoebox, Z: shoebox})
		for _, f := range faces {
			f.Reflectivity = 0.8
			f.Damping = 0.2
		}
		s.Reflectors = append(s.Reflectors, faces...)
	}
	return s, v, nil
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	ctx := render.NewRenderContext(cfg, log.Default())
	s, v, err := demoScene(ctx)
	if err != nil {
		return err
	}
	engine := render.NewEngine(ctx, s)
	acfg := scene.AudioConfig{SampleRate: float64(cfg.SampleRate), Fragment: cfg.Fragment}
	if err := engine.Configure(acfg); err != nil {
		return err
	}
	defer engine.Release()

	rec := s.Receivers[0]
	phase := 0.0
	fillInput := func() {
		for i := range v.Input.Data {
			v.Input.Data[i] = float32(0.25 * math.Sin(phase))
			phase += 2 * math.Pi * 440 / float64(cfg.SampleRate)
		}
	}

	if live {
		player := audioio.NewPlayer(func(tp render.Transport) [][]float32 {
			fillInput()
			engine.Process(tp)
			out := make([][]float32, len(rec.Out))
			for i, b := range rec.Out {
				out[i] = b.Data
			}
			return out
		}, float64(cfg.SampleRate), cfg.Fragment, rec.Variant.Channels())
		if err := player.Start(); err != nil {
			return err
		}
		defer player.Stop()
		log.Info("playing", "receiver", receiverType, "seconds", duration)
		waitSeconds(duration)
		return nil
	}

	blocks := int(duration * float64(cfg.SampleRate) / float64(cfg.Fragment))
	for b := 0; b < blocks; b++ {
		fillInput()
		engine.Process(render.Transport{
			Rolling:    true,
			Sample:     uint64(b * cfg.Fragment),
			SampleRate: float64(cfg.SampleRate),
		})
	}

	store := storage.New(dataDir)
	if err := store.Init(); err != nil {
		return err
	}
	var warnings []string
	for _, w := range engine.Warnings() {
		warnings = append(warnings, w.String())
	}
	runID, err := store.Save(s.Name, float64(cfg.SampleRate), cfg.Fragment, blocks, warnings, engine.LevelReports())
	if err != nil {
		return err
	}
	log.Info("render complete", "run", runID, "blocks", blocks)
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	ctx := render.NewRenderContext(cfg, log.Default())
	s, _, err := demoScene(ctx)
	if err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}
	fmt.Println("scene ok")

	rec := s.Receivers[0]
	if hoa, ok := rec.Variant.(*receiver.HOA3D); ok {
		se := receiver.EvalRing(hoa.Layout(), hoa.Gains, 360)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "mean |rV|\t%.4f\n", se.MeanAbsRV)
		fmt.Fprintf(w, "mean |rE|\t%.4f\n", se.MeanAbsRE)
		fmt.Fprintf(w, "mean az err\t%.4f rad\n", se.MeanAzErr)
		fmt.Fprintf(w, "mean mag err\t%.4f\n", se.MeanMagErr)
		w.Flush()
	}
	for _, warn := range ctx.Warnings.Items() {
		log.Warn(warn.String())
	}
	return nil
}

func runMeter(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	ctx := render.NewRenderContext(cfg, log.Default())
	s, v, err := demoScene(ctx)
	if err != nil {
		return err
	}
	engine := render.NewEngine(ctx, s)
	acfg := scene.AudioConfig{SampleRate: float64(cfg.SampleRate), Fragment: cfg.Fragment}
	if err := engine.Configure(acfg); err != nil {
		return err
	}
	defer engine.Release()

	rec := s.Receivers[0]
	blocks := int(duration * float64(cfg.SampleRate) / float64(cfg.Fragment))
	trace := make([]float64, 0, blocks)
	phase := 0.0
	for b := 0; b < blocks; b++ {
		for i := range v.Input.Data {
			v.Input.Data[i] = float32(0.25 * math.Sin(phase))
			phase += 2 * math.Pi * 440 / float64(cfg.SampleRate)
		}
		engine.Process(render.Transport{
			Rolling:    true,
			Sample:     uint64(b * cfg.Fragment),
			SampleRate: float64(cfg.SampleRate),
		})
		trace = append(trace, rec.Out[0].RMSdB(audiobufRef))
	}
	fmt.Println(asciigraph.Plot(trace, asciigraph.Height(12), asciigraph.Caption("channel 0 RMS [dB SPL]")))

	rms, peak, pct := rec.Meters()[0].Report(audiobufRef)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "rms\t%.2f dB\n", rms)
	fmt.Fprintf(w, "peak\t%.2f dB\n", peak)
	for _, q := range audiobuf.Percentiles {
		fmt.Fprintf(w, "q%d\t%.2f dB\n", q, pct[q])
	}
	w.Flush()
	return nil
}

const audiobufRef = 2e-5

func runList(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	runs, err := store.List()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENE\tBLOCKS\tTIMESTAMP")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.ID, r.Scene, r.Blocks, r.Timestamp.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func waitSeconds(s float64) {
	time.Sleep(time.Duration(s * float64(time.Second)))
}
