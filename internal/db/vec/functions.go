package vec

import (
	"database/sql/driver"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"modernc.org/sqlite"
)

var conf_fn_tot = atomic.Int64{}
var conf_fn_dec = atomic.Int64{}
var conf_fn_count = atomic.Int64{}

func Statistics() {

	if conf_fn_count.Load() > 0 {
		avg := time.Duration(conf_fn_tot.Load() / conf_fn_count.Load())
		slog.Default().Debug("confidence function stats",
			"count", conf_fn_count.Load(),
			"tot", time.Duration(conf_fn_tot.Load()),
			"decoding", time.Duration(conf_fn_dec.Load()),
			"avg", avg)
	}

}

// reduce registers a one argument SQL function over a confidence vector
// written by EncodeVector. It yields NULL for NULL.
func reduce(name string, fn func([]float64) float64) {
	sqlite.MustRegisterDeterministicScalarFunction(name, 1, func(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
		start := time.Now()
		defer func() {
			conf_fn_tot.Add(int64(time.Since(start)))
			conf_fn_count.Add(1)
		}()

		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		if args[0] == nil {
			return nil, nil
		}

		bin, ok := args[0].([]uint8)
		if !ok {
			return nil, fmt.Errorf("expected blob, got %T", args[0])
		}

		decodeStart := time.Now()
		values, err := DecodeFloat64s(bin)
		if err != nil {
			return nil, err
		}
		conf_fn_dec.Add(int64(time.Since(decodeStart)))

		if len(values) == 0 {
			return nil, nil
		}
		return fn(values), nil
	})
}

func init() {

	reduce("conf_min", func(values []float64) float64 {
		m := math.Inf(1)
		for _, v := range values {
			m = min(m, v)
		}
		return m
	})

	reduce("conf_mean", func(values []float64) float64 {
		var sum float64
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	})

}
