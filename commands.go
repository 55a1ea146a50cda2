package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ardoise-data/building.review/internal/building"
	"github.com/ardoise-data/building.review/internal/building/optimize"
	storage "github.com/ardoise-data/building.review/internal/building/storage/sqlite"
	"github.com/ardoise-data/building.review/internal/config"
)

// loadConfig reads the engine configuration, an empty config when no
// path is given so the Get* accessors fall back to defaults.
func loadConfig(path string) (*config.EngineConfig, error) {
	if path == "" {
		return config.EmptyEngineConfig(), nil
	}
	return config.LoadEngineConfig(path)
}

func usageError(fs *flag.FlagSet, format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n\n", args...)
	fs.Usage()
	os.Exit(2)
}

func handlePrepare(args []string) error {
	fs := flag.NewFlagSet("prepare", flag.ExitOnError)
	out := fs.String("out", "dataset.bvd", "Output dataset blob path")
	fs.Parse(args)

	if fs.NArg() < 1 {
		usageError(fs, "prepare: at least one labelled tile CSV is required")
	}

	_, err := optimize.Prepare(optimize.PrepareConfig{
		Tiles:  fs.Args(),
		Output: *out,
	})
	return err
}

func handleOptimize(args []string) error {
	fs := flag.NewFlagSet("optimize", flag.ExitOnError)
	configPath := fs.String("config", "", "Engine configuration file (JSON)")
	dataset := fs.String("dataset", "dataset.bvd", "Prepared dataset blob")
	out := fs.String("out", "", "Threshold record output path (default: config thresholds path)")
	frontOut := fs.String("front", "", "Optional Pareto front dump path (JSON)")
	plotOut := fs.String("plot", "", "Optional Pareto front plot path (PNG)")
	label := fs.String("label", "", "Label recorded with the run and threshold record")
	noDB := fs.Bool("no-db", false, "Skip recording the run in the runs database")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	opts := cfg.GetPipelineOptions()

	output := *out
	if output == "" {
		output = cfg.GetThresholdsPath()
	}

	ocfg := optimize.OptimizeConfig{
		Dataset:        *dataset,
		Output:         output,
		FrontOutput:    *frontOut,
		Label:          *label,
		Runner:         cfg.GetOptimizerConfig(),
		Policy:         opts.CandidatePolicy,
		MinGroupPoints: opts.MinGroupPoints,
		MinFrac:        optimize.DefaultMinFrac(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *noDB {
		res, err := optimize.Optimize(ctx, ocfg)
		if err != nil {
			return err
		}
		return saveFrontPlot(*plotOut, res, ocfg.Runner.Constraints)
	}

	database, err := openRunsDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	run := &storage.OptimizationRun{
		Label:       *label,
		DatasetPath: *dataset,
		Seed:        ocfg.Runner.Seed,
		Sampler:     ocfg.Runner.Sampler,
		TrialBudget: ocfg.Runner.Trials,
	}
	if err := database.Runs.Insert(run); err != nil {
		return err
	}

	res, err := optimize.Optimize(ctx, ocfg)
	if err != nil {
		if ferr := database.Runs.Finish(run.RunID, storage.RunStatusFailed, nil); ferr != nil {
			log.Printf("failed to mark run %s failed: %v", run.RunID, ferr)
		}
		return err
	}

	if err := database.Trials.InsertRun(run.RunID, res.History, res.Front); err != nil {
		return err
	}
	if err := database.Thresholds.Insert(&storage.ThresholdRow{
		RunID:      run.RunID,
		Label:      *label,
		Thresholds: res.Best.Thresholds,
	}); err != nil {
		return err
	}

	summary, err := json.Marshal(res.Summary)
	if err != nil {
		return fmt.Errorf("marshal front summary: %w", err)
	}
	if err := database.Runs.Finish(run.RunID, storage.RunStatusFinished, summary); err != nil {
		return err
	}
	log.Printf("recorded run %s (%d trials, front size %d)", run.RunID, len(res.History), res.Front.Size())
	return saveFrontPlot(*plotOut, res, ocfg.Runner.Constraints)
}

func saveFrontPlot(path string, res *optimize.OptimizeResult, c optimize.Constraints) error {
	if path == "" {
		return nil
	}
	return optimize.SaveFrontPlot(path, res.Front, c)
}

func handleEvaluate(args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	configPath := fs.String("config", "", "Engine configuration file (JSON)")
	dataset := fs.String("dataset", "", "Held-out dataset blob (required)")
	thresholds := fs.String("thresholds", "", "Threshold record path (default: config thresholds path)")
	out := fs.String("out", "", "Optional evaluation report output path (JSON)")
	noDB := fs.Bool("no-db", false, "Skip recording the report in the runs database")
	fs.Parse(args)

	if *dataset == "" {
		usageError(fs, "evaluate: --dataset is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	opts := cfg.GetPipelineOptions()

	recordPath := *thresholds
	if recordPath == "" {
		recordPath = cfg.GetThresholdsPath()
	}

	report, err := optimize.Evaluate(optimize.EvaluateConfig{
		Dataset:        *dataset,
		Thresholds:     recordPath,
		Output:         *out,
		Options:        opts,
		Policy:         opts.CandidatePolicy,
		MinGroupPoints: opts.MinGroupPoints,
		MinFrac:        optimize.DefaultMinFrac(),
	})
	if err != nil {
		return err
	}

	if *noDB {
		return nil
	}
	database, err := openRunsDB(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	row := &storage.ReportRow{
		DatasetPath: *dataset,
		Metrics:     report.Metrics,
		PointIoU:    report.PointIoU.Value,
	}
	if err := database.Reports.Insert(row); err != nil {
		return err
	}
	log.Printf("recorded report %s", row.ReportID)
	return nil
}

func handleUpdate(args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	configPath := fs.String("config", "", "Engine configuration file (JSON)")
	thresholds := fs.String("thresholds", "", "Threshold record path (default: config thresholds path)")
	out := fs.String("out", "", "Labelled tile output path (required)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		usageError(fs, "update: exactly one input tile CSV is required")
	}
	if *out == "" {
		usageError(fs, "update: --out is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	recordPath := *thresholds
	if recordPath == "" {
		recordPath = cfg.GetThresholdsPath()
	}

	_, err = optimize.Update(optimize.UpdateConfig{
		Input:      fs.Arg(0),
		Output:     *out,
		Thresholds: recordPath,
		Options:    cfg.GetPipelineOptions(),
	})
	return err
}

// handleApply runs one pipeline pass over a tile, optionally filling the
// overlay column from a footprint GeoJSON first, and prints the decision
// summary to stdout.
func handleApply(args []string) error {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	configPath := fs.String("config", "", "Engine configuration file (JSON)")
	thresholds := fs.String("thresholds", "", "Threshold record path (default: config thresholds path)")
	out := fs.String("out", "", "Optional labelled tile output path")
	overlay := fs.String("overlay", "", "Footprint GeoJSON path (default: config overlay path)")
	fs.Parse(args)

	if fs.NArg() != 1 {
		usageError(fs, "apply: exactly one input tile CSV is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	opts := cfg.GetPipelineOptions()

	recordPath := *thresholds
	if recordPath == "" {
		recordPath = cfg.GetThresholdsPath()
	}
	rec, err := building.LoadThresholdRecord(recordPath, opts.CrMax)
	if err != nil {
		return err
	}

	ds, err := optimize.ReadTileCSV(fs.Arg(0))
	if err != nil {
		return err
	}
	arena := ds.Arena()

	overlayPath := *overlay
	if overlayPath == "" {
		overlayPath = cfg.GetOverlayPath()
	}
	if overlayPath != "" {
		fo, err := building.LoadFootprintOverlay(overlayPath)
		if err != nil {
			return err
		}
		log.Printf("loaded %d footprints from %s", fo.Count(), overlayPath)
		building.FillFromProviders(arena, nil, fo)
	}

	summary, err := building.Apply(arena, rec.Thresholds, opts)
	if err != nil {
		return err
	}
	if *out != "" {
		if err := optimize.WriteLabeledTileCSV(*out, arena); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
