// Package batch prices gzipped JSONL cart files offline.
package batch

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync/atomic"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-pricing/internal/domain/pricing"
	"github.com/xenking/kart-pricing/internal/wire"
)

const (
	defaultProgressEvery = 100_000
	maxLineBytes         = 4 << 20
)

// Job maps one input file to one output file.
type Job struct {
	In  string
	Out string
}

// Stats counts processed carts.
type Stats struct {
	Carts  int64
	Failed int64
}

// Runner prices cart files with a shared calculator.
type Runner struct {
	calc          *pricing.Calculator
	lg            *zap.Logger
	workers       int
	progressEvery int64
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers bounds the number of files processed at once.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithProgressEvery sets how many carts pass between progress log lines.
func WithProgressEvery(n int64) Option {
	return func(r *Runner) {
		if n > 0 {
			r.progressEvery = n
		}
	}
}

// NewRunner creates a Runner. A nil logger disables logging.
func NewRunner(calc *pricing.Calculator, lg *zap.Logger, opts ...Option) *Runner {
	if lg == nil {
		lg = zap.NewNop()
	}
	r := &Runner{
		calc:          calc,
		lg:            lg,
		workers:       1,
		progressEvery: defaultProgressEvery,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run processes every job, at most workers files at a time. The first file
// error cancels the remaining jobs; invalid carts do not.
func (r *Runner) Run(ctx context.Context, jobs []Job) (Stats, error) {
	var carts, failed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, job := range jobs {
		g.Go(func() error {
			st, err := r.processFile(ctx, job)
			carts.Add(st.Carts)
			failed.Add(st.Failed)
			if err != nil {
				return errors.Wrapf(err, "process %s", job.In)
			}
			return nil
		})
	}
	err := g.Wait()

	return Stats{Carts: carts.Load(), Failed: failed.Load()}, err
}

func (r *Runner) processFile(ctx context.Context, job Job) (Stats, error) {
	in, err := os.Open(job.In)
	if err != nil {
		return Stats{}, errors.Wrap(err, "open input")
	}
	defer func() { _ = in.Close() }()

	gz, err := pgzip.NewReader(in)
	if err != nil {
		return Stats{}, errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	out, err := os.Create(job.Out)
	if err != nil {
		return Stats{}, errors.Wrap(err, "create output")
	}
	defer func() { _ = out.Close() }()

	gw := pgzip.NewWriter(out)
	st, err := r.Price(ctx, gz, gw)
	if err != nil {
		_ = gw.Close()
		return st, err
	}
	if err := gw.Close(); err != nil {
		return st, errors.Wrap(err, "flush gzip writer")
	}
	if err := out.Close(); err != nil {
		return st, errors.Wrap(err, "close output")
	}

	r.lg.Info("File priced",
		zap.String("in", job.In),
		zap.String("out", job.Out),
		zap.Int64("carts", st.Carts),
		zap.Int64("failed", st.Failed),
	)
	return st, nil
}

// Price reads one cart per line from src and writes one result line per
// cart to dst, in input order. Blank lines are skipped.
func (r *Runner) Price(ctx context.Context, src io.Reader, dst io.Writer) (Stats, error) {
	var (
		st      Stats
		e       jx.Encoder
		lineNum int
	)

	w := bufio.NewWriter(dst)
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		e.Reset()
		if err := r.priceLine(&e, line); err != nil {
			st.Failed++
			r.lg.Debug("Cart rejected", zap.Int("line", lineNum), zap.Error(err))
		}
		st.Carts++

		if _, err := w.Write(e.Bytes()); err != nil {
			return st, errors.Wrap(err, "write result")
		}
		if err := w.WriteByte('\n'); err != nil {
			return st, errors.Wrap(err, "write result")
		}

		if st.Carts%r.progressEvery == 0 {
			r.lg.Info("Batch progress", zap.Int64("carts", st.Carts), zap.Int64("failed", st.Failed))
		}
	}
	if err := scanner.Err(); err != nil {
		return st, errors.Wrapf(err, "scan line %d", lineNum+1)
	}
	if err := w.Flush(); err != nil {
		return st, errors.Wrap(err, "flush results")
	}
	return st, nil
}

// priceLine encodes either the calculation or the rejection for one cart
// and reports the rejection.
func (r *Runner) priceLine(e *jx.Encoder, line []byte) error {
	c, err := wire.DecodeCart(line)
	if err != nil {
		wire.EncodeCartError(e, c.ID, err)
		return err
	}
	calc, err := r.calc.Calculate(c.Products, c.User, c.Coupons)
	if err != nil {
		wire.EncodeCartError(e, c.ID, err)
		return err
	}
	wire.EncodeCartResult(e, c.ID, calc)
	return nil
}
