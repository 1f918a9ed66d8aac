package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// CopyFn writes one chunk of rows and returns the number reported written.
type CopyFn func(ctx context.Context, rows [][]any) (int64, error)

// LoadChunks splits rows into chunks of at most size and calls copyFn for
// each, in order. It returns the running total and the first error; rows
// after a failed chunk are not attempted.
//
// A debug line with running totals and rows/sec is logged per chunk.
func LoadChunks(ctx context.Context, rows [][]any, size int, copyFn CopyFn, log zerolog.Logger) (int64, error) {
	if size <= 0 {
		return 0, fmt.Errorf("chunk size must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	var (
		total  int64
		chunks int
		start  = time.Now()
	)
	for lo := 0; lo < len(rows); lo += size {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		hi := min(lo+size, len(rows))
		n, err := copyFn(ctx, rows[lo:hi])
		total += n
		if err != nil {
			return total, err
		}
		chunks++

		elapsed := time.Since(start)
		rps := float64(0)
		if elapsed > 0 {
			rps = float64(total) / elapsed.Seconds()
		}
		log.Debug().
			Int("chunk", chunks).
			Int64("inserted", n).
			Int64("total_inserted", total).
			Float64("rps", rps).
			Dur("elapsed", elapsed.Truncate(time.Millisecond)).
			Msg("chunk written")
	}
	return total, nil
}
