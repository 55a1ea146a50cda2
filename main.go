package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ardoise-data/building.review/internal/version"
)

func main() {
	flag.Usage = printUsage
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage()
		os.Exit(2)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	var err error
	switch command {
	case "prepare":
		err = handlePrepare(args)
	case "optimize":
		err = handleOptimize(args)
	case "evaluate":
		err = handleEvaluate(args)
	case "update":
		err = handleUpdate(args)
	case "apply":
		err = handleApply(args)
	case "serve":
		err = handleServe(args)
	case "version":
		fmt.Printf("building-review version %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(2)
	}

	if err != nil {
		log.Printf("%s: %v", command, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`building-review - building classification review engine

Usage: building-review <command> [options] [args]

Commands:
  prepare    Merge labelled tile CSVs into a dataset blob
  optimize   Search decision thresholds against a prepared dataset
  evaluate   Score a threshold record against a held-out dataset
  update     Label a production tile with a threshold record
  apply      Run the full decision pipeline once over a tile
  serve      Run the runs-database HTTP server
  version    Show building-review version
  help       Show this help message

Common Flags:
  --config <file>      Engine configuration file (JSON)
                       Flags override configuration values

Examples:
  # Merge two labelled tiles into an optimization dataset
  building-review prepare --out dataset.bvd tile_a.csv tile_b.csv

  # Search thresholds and record the run in the runs database
  building-review optimize --config engine.json --dataset dataset.bvd

  # Score the selected thresholds against a held-out dataset
  building-review evaluate --config engine.json --dataset holdout.bvd

  # Label a production tile
  building-review update --thresholds thresholds.json --out labelled.csv tile.csv

  # Serve the runs database on :8080
  building-review serve --config engine.json`)
}
