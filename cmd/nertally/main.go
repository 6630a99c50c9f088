package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/cheggaaa/pb"

	"yashubustudio/nertally/ner"
	"yashubustudio/nertally/tally"
)

type cliOptions struct {
	configPath string
	envPath    string
	engine     string
	ortLib     string
	format     string
	outputPath string
	storePath  string
	verbose    bool
	progress   bool
	trackAll   bool
	history    bool
	modelPath  string
	textPath   string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stdout io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("nertally", flag.ContinueOnError)
	fs.SetOutput(stdout)
	fs.StringVar(&opts.configPath, "config", "", "Path to config.json (default: ./config.json)")
	fs.StringVar(&opts.envPath, "env", ".env", "dotenv file with NERTALLY_* overrides")
	fs.StringVar(&opts.engine, "engine", "", "NER engine: auto, onnx or gazetteer")
	fs.StringVar(&opts.ortLib, "ort-lib", "", "Path to the onnxruntime shared library")
	fs.StringVar(&opts.format, "format", "", "Report format: text, json or csv")
	fs.StringVar(&opts.outputPath, "output", "", "Write the report to this file instead of STDOUT")
	fs.StringVar(&opts.storePath, "db", "", "SQLite file that keeps a history of runs")
	fs.BoolVar(&opts.verbose, "verbose", false, "Log every detection to STDERR")
	fs.BoolVar(&opts.progress, "progress", false, "Show a progress bar while the model runs")
	fs.BoolVar(&opts.trackAll, "track-all", false, "Report the best text for every category, not only the configured ones")
	fs.BoolVar(&opts.history, "history", false, "Print the runs and totals stored in -db instead of analyzing")
	fs.Usage = func() {
		out := fs.Output()
		fmt.Fprintln(out, "You must give a NER model file as the first command line argument")
		fmt.Fprintln(out, "followed by a text file to process. For example:")
		fmt.Fprintf(out, "%s models/bert-ner sample_text.txt\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(out, "or print the stored history with: %s -history -db runs.db\n\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.history {
		if fs.NArg() != 0 {
			fs.Usage()
			return opts, fmt.Errorf("-history takes no arguments, got %d", fs.NArg())
		}
		return opts, nil
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return opts, fmt.Errorf("expected 2 arguments, got %d", fs.NArg())
	}
	opts.modelPath = strings.TrimSpace(fs.Arg(0))
	opts.textPath = strings.TrimSpace(fs.Arg(1))
	opts.configPath = strings.TrimSpace(opts.configPath)
	opts.outputPath = strings.TrimSpace(opts.outputPath)
	return opts, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stdout)
	if err != nil {
		return 1
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stdout, "nertally: %v\n", err)
		return 1
	}

	if opts.history {
		if err := printHistory(context.Background(), storePathFor(opts, cfg), stdout); err != nil {
			fmt.Fprintf(stdout, "nertally: %v\n", err)
			return 1
		}
		return 0
	}

	var logger *log.Logger
	if opts.verbose {
		logger = log.New(stderr, "nertally ", log.LstdFlags)
	}

	svc, err := tally.Open(cfg, logger)
	if err != nil {
		fmt.Fprintln(stdout, err)
		return 1
	}
	defer svc.Close()

	if opts.progress {
		svc.SetProgress(progressBar(stderr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rep, err := svc.AnalyzeFile(ctx, opts.textPath, tally.NewLogObserver(logger))
	if err != nil {
		fmt.Fprintln(stdout, err)
		return 1
	}

	if storePath := storePathFor(opts, cfg); storePath != "" {
		if err := saveRun(ctx, storePath, rep); err != nil {
			fmt.Fprintf(stdout, "nertally: %v\n", err)
			return 1
		}
	}

	if err := writeOutput(opts.outputPath, stdout, rep, tally.ReportOptions{Format: cfg.Format, Verbose: cfg.Verbose}); err != nil {
		fmt.Fprintf(stdout, "nertally: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig layers config.json, then the env file, then flags.
func loadConfig(opts cliOptions) (tally.Config, error) {
	cfg, err := tally.LoadConfig(opts.configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	env, err := tally.LoadEnv(opts.envPath)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(env); err != nil {
		return cfg, fmt.Errorf("apply env: %w", err)
	}
	cfg.Engine.ModelPath = opts.modelPath
	if opts.engine != "" {
		cfg.Engine.Kind = opts.engine
	}
	if opts.ortLib != "" {
		cfg.Engine.OrtLib = opts.ortLib
	}
	if opts.format != "" {
		format, err := tally.ParseFormat(opts.format)
		if err != nil {
			return cfg, err
		}
		cfg.Format = format
	}
	if opts.verbose {
		cfg.Verbose = true
	}
	if opts.trackAll {
		cfg.TrackAll = true
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

func progressBar(out io.Writer) ner.ProgressFunc {
	var bar *pb.ProgressBar
	return func(done, total int) {
		if bar == nil {
			bar = pb.New(total)
			bar.Output = out
			bar.Start()
		}
		bar.Set(done)
		if done >= total {
			bar.Finish()
			bar = nil
		}
	}
}

func storePathFor(opts cliOptions, cfg tally.Config) string {
	if opts.storePath != "" {
		return opts.storePath
	}
	return cfg.StorePath
}

func printHistory(ctx context.Context, path string, stdout io.Writer) error {
	if path == "" {
		return errors.New("-history needs -db or storePath in config.json")
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	store, err := tally.OpenStore(path)
	if err != nil {
		return err
	}
	defer store.Close()
	runs, err := store.Runs(ctx)
	if err != nil {
		return err
	}
	totals, err := store.Totals(ctx)
	if err != nil {
		return err
	}
	return tally.WriteHistory(stdout, runs, totals)
}

func saveRun(ctx context.Context, path string, rep tally.Report) error {
	store, err := tally.OpenStore(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveReport(ctx, rep)
}

func writeOutput(path string, stdout io.Writer, rep tally.Report, opts tally.ReportOptions) error {
	if path == "" {
		return tally.WriteReport(stdout, rep, opts)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(absPath)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	if err := tally.WriteReport(f, rep, opts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report file: %w", err)
	}
	fmt.Fprintf(stdout, "Report saved to %s\n", absPath)
	return nil
}
