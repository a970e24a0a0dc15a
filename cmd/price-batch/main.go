// Command price-batch prices gzipped JSONL cart files without a database.
//
//	price-batch -in carts.jsonl.gz -out quotes.jsonl.gz
//	price-batch -out-dir quotes/ -workers 4 day1.jsonl.gz day2.jsonl.gz
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-pricing/internal/batch"
	"github.com/xenking/kart-pricing/internal/domain/pricing"
)

type options struct {
	in         string
	out        string
	outDir     string
	workers    int
	memberRate string
	permissive bool
	progress   int64
	files      []string
}

func main() {
	var opts options
	flag.StringVar(&opts.in, "in", "", "input cart file (gzipped JSONL)")
	flag.StringVar(&opts.out, "out", "", "output file for -in")
	flag.StringVar(&opts.outDir, "out-dir", ".", "output directory for positional input files")
	flag.IntVar(&opts.workers, "workers", runtime.GOMAXPROCS(0), "files priced concurrently")
	flag.StringVar(&opts.memberRate, "member-rate", "0.95", "member discount rate")
	flag.BoolVar(&opts.permissive, "permissive", false, "skip input validation")
	flag.Int64Var(&opts.progress, "progress-every", 100_000, "carts between progress log lines")
	flag.Parse()
	opts.files = flag.Args()

	lg, err := zap.NewProduction()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Error("Batch pricing failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	jobs, err := buildJobs(opts)
	if err != nil {
		return err
	}

	rate, err := decimal.NewFromString(opts.memberRate)
	if err != nil {
		return errors.Wrap(err, "parse member rate")
	}
	calc, err := pricing.NewCalculator(
		pricing.WithMemberRate(rate),
		pricing.WithValidation(!opts.permissive),
	)
	if err != nil {
		return errors.Wrap(err, "create calculator")
	}

	runner := batch.NewRunner(calc, lg,
		batch.WithWorkers(opts.workers),
		batch.WithProgressEvery(opts.progress),
	)

	lg.Info("Pricing carts", zap.Int("files", len(jobs)), zap.Int("workers", opts.workers))
	start := time.Now()

	st, err := runner.Run(ctx, jobs)
	if err != nil {
		return err
	}

	lg.Info("Batch pricing completed",
		zap.Int64("carts", st.Carts),
		zap.Int64("failed", st.Failed),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func buildJobs(opts options) ([]batch.Job, error) {
	var jobs []batch.Job
	if opts.in != "" {
		if opts.out == "" {
			return nil, errors.New("-out is required with -in")
		}
		jobs = append(jobs, batch.Job{In: opts.in, Out: opts.out})
	}
	for _, f := range opts.files {
		jobs = append(jobs, batch.Job{In: f, Out: filepath.Join(opts.outDir, outputName(f))})
	}
	if len(jobs) == 0 {
		return nil, errors.New("no input files: set -in or pass files as arguments")
	}
	return jobs, nil
}

// outputName maps carts.jsonl.gz to carts.quotes.jsonl.gz.
func outputName(in string) string {
	base := filepath.Base(in)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".jsonl")
	return base + ".quotes.jsonl.gz"
}
