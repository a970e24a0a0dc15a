package batch

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/kart-pricing/internal/domain/pricing"
)

const (
	memberCart = `{"id":"A1","user":{"id":"U001","name":"会员用户","member":true},` +
		`"products":[{"id":"P001","name":"iPhone 15","price":"5999.00","quantity":1},` +
		`{"id":"P003","name":"手机壳","price":"99.00","quantity":2,"eligible":false}],` +
		`"coupons":[{"id":"C001","name":"满200减30","type":"fixed_discount","threshold":"200","amount":"30"}]}`
	badPriceCart = `{"id":"A2","user":{"id":"U002"},"products":[{"id":"P1","name":"x","price":"-1","quantity":1}]}`
	garbage      = `{"id":"A3","products":[`
)

type result struct {
	id    string
	final string
	err   string
}

func parseResults(t *testing.T, data []byte) []result {
	t.Helper()

	var out []result
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var r result
		require.NoError(t, jx.DecodeStr(line).Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				r.id, err = d.Str()
			case "error":
				r.err, err = d.Str()
			case "calculation":
				err = d.Obj(func(d *jx.Decoder, key string) error {
					if key == "finalAmount" {
						var err error
						r.final, err = d.Str()
						return err
					}
					return d.Skip()
				})
			default:
				err = d.Skip()
			}
			return err
		}))
		out = append(out, r)
	}
	return out
}

func newRunner(t *testing.T, opts ...Option) *Runner {
	t.Helper()

	calc, err := pricing.NewCalculator()
	require.NoError(t, err)
	return NewRunner(calc, zaptest.NewLogger(t), opts...)
}

func TestRunner_Price(t *testing.T) {
	r := newRunner(t)
	src := strings.Join([]string{memberCart, "", badPriceCart, garbage}, "\n")

	var dst bytes.Buffer
	st, err := r.Price(context.Background(), strings.NewReader(src), &dst)
	require.NoError(t, err)
	assert.Equal(t, Stats{Carts: 3, Failed: 2}, st)

	got := parseResults(t, dst.Bytes())
	require.Len(t, got, 3)

	// 5999 * 0.95 = 5699.05, then 满200减30 on the discounted base, plus 198 ineligible.
	assert.Equal(t, result{id: "A1", final: "5867.05"}, got[0])

	assert.Equal(t, "A2", got[1].id)
	assert.Contains(t, got[1].err, "products[0].price")

	assert.Equal(t, "A3", got[2].id)
	assert.Contains(t, got[2].err, "malformed")
}

func TestRunner_PriceKeepsInputOrder(t *testing.T) {
	r := newRunner(t, WithProgressEvery(2))

	var src strings.Builder
	ids := []string{"c1", "c2", "c3", "c4", "c5"}
	for _, id := range ids {
		src.WriteString(`{"id":"` + id + `","products":[{"id":"P","name":"n","price":10,"quantity":1}]}` + "\n")
	}

	var dst bytes.Buffer
	st, err := r.Price(context.Background(), strings.NewReader(src.String()), &dst)
	require.NoError(t, err)
	assert.Equal(t, int64(5), st.Carts)

	got := parseResults(t, dst.Bytes())
	require.Len(t, got, len(ids))
	for i, id := range ids {
		assert.Equal(t, id, got[i].id)
		assert.Equal(t, "10.00", got[i].final)
	}
}

func TestRunner_PriceCanceled(t *testing.T) {
	r := newRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Price(ctx, strings.NewReader(memberCart+"\n"), io.Discard)
	require.ErrorIs(t, err, context.Canceled)
}

func writeGz(t *testing.T, path, content string) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	gw := pgzip.NewWriter(f)
	_, err = gw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	require.NoError(t, f.Close())
}

func readGz(t *testing.T, path string) []byte {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	require.NoError(t, err)
	defer func() { _ = gz.Close() }()

	data, err := io.ReadAll(gz)
	require.NoError(t, err)
	return data
}

func TestRunner_Run(t *testing.T) {
	dir := t.TempDir()
	jobs := []Job{
		{In: filepath.Join(dir, "a.jsonl.gz"), Out: filepath.Join(dir, "a.out.jsonl.gz")},
		{In: filepath.Join(dir, "b.jsonl.gz"), Out: filepath.Join(dir, "b.out.jsonl.gz")},
	}
	writeGz(t, jobs[0].In, memberCart+"\n"+badPriceCart+"\n")
	writeGz(t, jobs[1].In, memberCart+"\n")

	r := newRunner(t, WithWorkers(2))
	st, err := r.Run(context.Background(), jobs)
	require.NoError(t, err)
	assert.Equal(t, Stats{Carts: 3, Failed: 1}, st)

	a := parseResults(t, readGz(t, jobs[0].Out))
	require.Len(t, a, 2)
	assert.Equal(t, "5867.05", a[0].final)
	assert.NotEmpty(t, a[1].err)

	b := parseResults(t, readGz(t, jobs[1].Out))
	require.Len(t, b, 1)
	assert.Equal(t, "A1", b[0].id)
}

func TestRunner_RunMissingInput(t *testing.T) {
	dir := t.TempDir()
	r := newRunner(t)

	_, err := r.Run(context.Background(), []Job{
		{In: filepath.Join(dir, "missing.jsonl.gz"), Out: filepath.Join(dir, "out.jsonl.gz")},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.jsonl.gz")
}

func TestRunner_RunNotGzip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "plain.jsonl.gz")
	require.NoError(t, os.WriteFile(in, []byte(memberCart), 0o600))

	r := newRunner(t)
	_, err := r.Run(context.Background(), []Job{{In: in, Out: filepath.Join(dir, "out.jsonl.gz")}})
	require.Error(t, err)
}
