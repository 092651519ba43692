package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	log "github.com/golang/glog"

	"lp_colgen/src/colgen"
	"lp_colgen/src/cuttingstock"
	"lp_colgen/src/solver"
)

func main() {
	var backend, exportDir string
	var timeLimit time.Duration
	var gap float64
	var fixingRounds, maxIterations int
	var paths []string

	flag.Func("inst", "a list of instance file paths, separated by a whitespace", func(s string) error {
		paths = strings.Fields(s)
		return nil
	})
	flag.StringVar(&backend, "solver", "simplex", fmt.Sprintf("The solver backend, one of %v", solver.Backends()))
	flag.DurationVar(&timeLimit, "time", 0, "Time limit of every solve, zero for none")
	flag.Float64Var(&gap, "gap", 1e-2, "Relative gap at which the final integer solve stops")
	flag.IntVar(&fixingRounds, "fixing", 0, "Number of column fixing rounds before the integer solve")
	flag.IntVar(&maxIterations, "iters", 200, "Maximum number of pricing iterations")
	flag.StringVar(&exportDir, "export", "", "Write an LP file of every solved model to this directory")

	flag.Parse()
	defer log.Flush()

	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "Must specify at least a path")
		os.Exit(1)
	}
	newAdapter, err := solver.Lookup(backend)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	opts := []solver.Option{solver.WithGap(gap), solver.WithTimeLimit(timeLimit)}
	if exportDir != "" {
		opts = append(opts, solver.WithExport(exportDir))
	}
	cfg := colgen.DefaultConfig()
	cfg.Solver = solver.NewConfig(opts...)
	cfg.FixingRounds = fixingRounds
	cfg.MaxIterations = maxIterations

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	for _, p := range paths {
		inst, err := cuttingstock.LoadInstance(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error for instance \"%v\": %v. Skipping...\n", p, err)
			continue
		}

		fmt.Printf("Solving %v with %v...\n", p, backend)
		plan, err := cuttingstock.Solve(ctx, inst, newAdapter, cfg)
		if err != nil {
			kind, _ := solver.KindOf(err)
			log.Errorf("%s failed (%v): %v", p, kind, err)
			fmt.Fprintf(os.Stderr, "An error occured while solving instance \"%v\": %v\n", p, err)
		} else {
			fmt.Printf("Instance %v:\n%v\n", p, plan)
		}
		fmt.Println()
	}
}
