package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/headshot"
	"github.com/menta2k/headshot/internal/config"
	"github.com/menta2k/headshot/internal/logging"
	"github.com/menta2k/headshot/internal/utils"
	"github.com/menta2k/headshot/pkg/processing"
)

type options struct {
	configPath string
	envFile    string
	saveConfig string

	outDir   string
	backend  string
	cascade  string
	url      string
	model    string
	size     int
	filter   string
	format   string
	prefix   string
	suffix   string
	workers  int
	debug    bool
	noPolish bool
	logLevel string
	version  bool
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "headshot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var o options
	flag.StringVar(&o.configPath, "config", "", "config file (default "+config.GetConfigPath()+" if present)")
	flag.StringVar(&o.envFile, "env", ".env", "dotenv file with HEADSHOT_* overrides")
	flag.StringVar(&o.saveConfig, "save-config", "", "write the effective configuration to this path and exit")

	flag.StringVar(&o.outDir, "out", "", "output directory")
	flag.StringVar(&o.backend, "backend", "", "face detector: pigo|ollama|llamacpp|none")
	flag.StringVar(&o.cascade, "cascade", "", "pigo facefinder cascade file")
	flag.StringVar(&o.url, "url", "", "vision model server URL (ollama or llama.cpp)")
	flag.StringVar(&o.model, "model", "", "vision model name")
	flag.IntVar(&o.size, "size", 0, "output width in pixels; height is width*5/4")
	flag.StringVar(&o.filter, "filter", "", "resample filter: nearest|linear|catmullrom|lanczos|...")
	flag.StringVar(&o.format, "format", "", "output format: png|webp (both lossless)")
	flag.StringVar(&o.prefix, "prefix", "", "output file name prefix")
	flag.StringVar(&o.suffix, "suffix", "", "output file name suffix")
	flag.IntVar(&o.workers, "workers", 0, "number of images processed in parallel")
	flag.BoolVar(&o.debug, "debug", false, "also write an overlay of the face box and crop region")
	flag.BoolVar(&o.noPolish, "no-polish", false, "skip contrast/saturation/sharpness polish")
	flag.StringVar(&o.logLevel, "log-level", "", "debug|info|warn|error")
	flag.BoolVar(&o.version, "version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <image|dir|URL>...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if o.version {
		fmt.Println("headshot", headshot.GetVersion())
		return nil
	}

	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	if o.saveConfig != "" {
		return cfg.SaveToFile(o.saveConfig)
	}

	if flag.NArg() == 0 {
		flag.Usage()
		return errors.New("no input given")
	}

	logger, err := logging.NewLogger(logging.Options{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		File:        cfg.Log.File,
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	pipeline, err := headshot.NewFromConfig(cfg, logger)
	if err != nil {
		return err
	}

	sources, err := collectSources(flag.Args())
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(cfg.Output.OutputDir); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := &batch{
		cfg:       cfg,
		pipeline:  pipeline,
		processor: processing.NewProcessor(),
		logger:    logger,
	}
	return b.run(ctx, sources)
}

func loadConfig(o options) (*config.Config, error) {
	path := o.configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(path, o.envFile)
	if err != nil {
		return nil, err
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["out"] {
		cfg.Output.OutputDir = o.outDir
	}
	if set["backend"] {
		cfg.Detector.Backend = o.backend
	}
	if set["cascade"] {
		cfg.Detector.CascadePath = o.cascade
	}
	if set["url"] {
		cfg.Detector.ServerURL = o.url
	}
	if set["model"] {
		cfg.Detector.Model = o.model
	}
	if set["size"] {
		cfg.Framing.OutputSize = o.size
	}
	if set["filter"] {
		cfg.Framing.Filter = o.filter
	}
	if set["format"] {
		cfg.Output.Format = o.format
	}
	if set["prefix"] {
		cfg.Output.Prefix = o.prefix
	}
	if set["suffix"] {
		cfg.Output.Suffix = o.suffix
	}
	if set["workers"] {
		cfg.Output.Workers = o.workers
	}
	if set["debug"] {
		cfg.Output.Debug = o.debug
	}
	if set["no-polish"] {
		cfg.Enhance.Enabled = !o.noPolish
	}
	if set["log-level"] {
		cfg.Log.Level = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// collectSources expands directories into their image files
func collectSources(args []string) ([]string, error) {
	var sources []string
	for _, arg := range args {
		if !processing.IsURL(arg) && utils.DirExists(arg) {
			files, err := utils.ListImageFiles(arg)
			if err != nil {
				return nil, fmt.Errorf("listing %s: %w", arg, err)
			}
			sources = append(sources, files...)
			continue
		}
		sources = append(sources, arg)
	}
	if len(sources) == 0 {
		return nil, errors.New("no images found")
	}
	return sources, nil
}

type batch struct {
	cfg       *config.Config
	pipeline  *headshot.Pipeline
	processor *processing.Processor
	logger    *zap.Logger
	failed    atomic.Int32
}

// target is where one source's results are written
type target struct {
	source    string
	path      string
	debugPath string
}

// plan assigns every source its own output files. Sources sharing a base
// name get a _2, _3, ... counter in input order.
func (b *batch) plan(sources []string) []target {
	out := b.cfg.Output
	format := b.pipeline.Format().Extension()
	taken := map[string]bool{}

	targets := make([]target, 0, len(sources))
	for _, src := range sources {
		base := utils.BaseName(src)
		for n := 1; ; n++ {
			name := base
			if n > 1 {
				name = base + "_" + strconv.Itoa(n)
			}
			t := target{
				source: src,
				path:   utils.OutputPath(out.OutputDir, out.Prefix, name, out.Suffix, format),
			}
			if out.Debug {
				t.debugPath = utils.OutputPath(out.OutputDir, out.Prefix, name, out.Suffix+"_debug", format)
			}
			// Case-folded for case-insensitive filesystems
			key, debugKey := strings.ToLower(t.path), strings.ToLower(t.debugPath)
			if taken[key] || (t.debugPath != "" && taken[debugKey]) {
				continue
			}
			taken[key] = true
			if t.debugPath != "" {
				taken[debugKey] = true
			}
			if n > 1 {
				b.logger.Warn("output name already used, adding counter",
					zap.String("source", src), zap.String("path", t.path))
			}
			targets = append(targets, t)
			break
		}
	}
	return targets
}

func (b *batch) run(ctx context.Context, sources []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Output.Workers)

	for _, t := range b.plan(sources) {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err := b.processOne(ctx, t); err != nil {
				b.failed.Add(1)
				b.logger.Error("failed", zap.String("source", t.source), zap.Error(err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if n := b.failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d images failed", n, len(sources))
	}
	return nil
}

func (b *batch) processOne(ctx context.Context, t target) error {
	raw, err := b.processor.ReadSource(ctx, t.source)
	if err != nil {
		return err
	}
	img, err := b.pipeline.Decode(raw)
	if err != nil {
		return err
	}

	res, err := b.pipeline.ProcessImage(ctx, img)
	if err != nil {
		return err
	}

	if err := b.write(t.path, res.Polished); err != nil {
		return err
	}
	b.logger.Info("wrote",
		zap.String("source", t.source),
		zap.String("path", t.path),
		zap.Bool("face", res.Face != nil))

	if t.debugPath != "" {
		overlay := b.processor.CreateDebugOverlay(img, res.Face, res.Framing.Final())
		if err := b.write(t.debugPath, overlay); err != nil {
			b.logger.Warn("debug overlay save failed", zap.String("path", t.debugPath), zap.Error(err))
		}
	}
	return nil
}

func (b *batch) write(path string, img image.Image) error {
	data, err := b.pipeline.Encode(img)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	b.logger.Debug("saved", zap.String("path", path), zap.String("size", utils.FormatFileSize(int64(len(data)))))
	return nil
}
