package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raceant/scull/pipe"
	"github.com/raceant/scull/registry"
)

type benchConfig struct {
	Pipe      string
	Producers int
	Consumers int
	Bytes     int // per producer
	ChunkSize int
}

type benchResult struct {
	Bytes   int64
	Elapsed time.Duration
}

// Throughput returns megabytes per second.
func (r benchResult) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Bytes) / (1 << 20) / r.Elapsed.Seconds()
}

// runBench drives one pipe with several writers and readers. Every handle is
// opened before any goroutine starts, so readers see end of stream only
// after the last producer finishes.
func runBench(ctx context.Context, reg *registry.Registry, cfg benchConfig) (benchResult, error) {
	name, err := pipeName(reg, cfg.Pipe)
	if err != nil {
		return benchResult{}, err
	}

	var handles []*pipe.Handle
	closeAll := func() {
		for _, h := range handles {
			_ = h.Close()
		}
	}
	open := func(mode pipe.Mode) (*pipe.Handle, error) {
		h, err := reg.Open(ctx, name, mode)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
		return h, nil
	}

	writers := make([]*pipe.Handle, 0, cfg.Producers)
	readers := make([]*pipe.Handle, 0, cfg.Consumers)
	for i := 0; i < cfg.Consumers; i++ {
		h, err := open(pipe.ModeRead)
		if err != nil {
			closeAll()
			return benchResult{}, fmt.Errorf("open reader: %w", err)
		}
		readers = append(readers, h)
	}
	for i := 0; i < cfg.Producers; i++ {
		h, err := open(pipe.ModeWrite)
		if err != nil {
			closeAll()
			return benchResult{}, fmt.Errorf("open writer: %w", err)
		}
		writers = append(writers, h)
	}
	// Close is idempotent, so handles closed by their goroutine are fine here.
	defer closeAll()

	var read atomic.Int64
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)

	for i, w := range writers {
		i, w := i, w
		fill := byte('a' + i%26)
		g.Go(func() error {
			defer w.Close()
			chunk := make([]byte, cfg.ChunkSize)
			for j := range chunk {
				chunk[j] = fill
			}
			for left := cfg.Bytes; left > 0; {
				n := min(left, len(chunk))
				if _, err := w.WriteContext(gctx, chunk[:n]); err != nil {
					return fmt.Errorf("producer %d: %w", i, err)
				}
				left -= n
			}
			return nil
		})
	}

	for i, r := range readers {
		i, r := i, r
		g.Go(func() error {
			defer r.Close()
			buf := make([]byte, cfg.ChunkSize)
			for {
				n, err := r.ReadContext(gctx, buf)
				read.Add(int64(n))
				if stderrors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return fmt.Errorf("consumer %d: %w", i, err)
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return benchResult{}, err
	}

	res := benchResult{Bytes: read.Load(), Elapsed: time.Since(start)}
	if want := int64(cfg.Producers) * int64(cfg.Bytes); res.Bytes != want {
		return res, fmt.Errorf("bench read %d bytes, wrote %d", res.Bytes, want)
	}
	return res, nil
}
