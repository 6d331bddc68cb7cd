package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/raceant/scull/errors"
	"github.com/raceant/scull/pipe"
	"github.com/raceant/scull/pkg/retry"
	"github.com/raceant/scull/registry"
)

type relayConfig struct {
	Pipe        string
	NonBlocking bool
	ChunkSize   int
}

// runRelay copies in to out through one pipe: a producer goroutine writes,
// the calling goroutine reads until end of stream.
func runRelay(ctx context.Context, reg *registry.Registry, cfg relayConfig, in io.Reader, out io.Writer) error {
	name, err := pipeName(reg, cfg.Pipe)
	if err != nil {
		return err
	}

	var wopts []pipe.OpenOption
	if cfg.NonBlocking {
		wopts = append(wopts, pipe.WithNonBlocking())
	}
	w, err := reg.Open(ctx, name, pipe.ModeWrite, wopts...)
	if err != nil {
		return fmt.Errorf("open writer: %w", err)
	}
	r, err := reg.Open(ctx, name, pipe.ModeRead)
	if err != nil {
		_ = w.Close()
		return fmt.Errorf("open reader: %w", err)
	}
	defer r.Close()

	produced := make(chan error, 1)
	go func() {
		defer w.Close()
		produced <- produce(ctx, w, in, cfg.ChunkSize)
	}()

	// The producer may be parked in a read of in, which cannot be
	// interrupted; a consumer failure returns without waiting for it.
	if _, err := io.Copy(out, contextReader{ctx: ctx, h: r}); err != nil {
		return fmt.Errorf("relay read: %w", err)
	}
	if err := <-produced; err != nil {
		return fmt.Errorf("relay write: %w", err)
	}
	return nil
}

func produce(ctx context.Context, w *pipe.Handle, in io.Reader, chunk int) error {
	buf := make([]byte, chunk)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if werr := writeAll(ctx, w, buf[:n]); werr != nil {
				return werr
			}
		}
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// writeAll writes p completely. Non-blocking handles retry ErrWouldBlock
// with backoff, and the attempt budget restarts whenever a write makes
// progress; blocking handles already write everything or fail.
func writeAll(ctx context.Context, w *pipe.Handle, p []byte) error {
	if !w.NonBlocking() {
		_, err := w.WriteContext(ctx, p)
		return err
	}

	policy := errors.DefaultRetryConfig().ToRetryConfig()
	for len(p) > 0 {
		err := retry.Do(ctx, policy, func() error {
			n, err := w.WriteContext(ctx, p)
			p = p[n:]
			if n > 0 && stderrors.Is(err, errors.ErrWouldBlock) {
				return nil
			}
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// contextReader adapts a handle to io.Reader with cancellation.
type contextReader struct {
	ctx context.Context
	h   *pipe.Handle
}

func (c contextReader) Read(p []byte) (int, error) {
	return c.h.ReadContext(c.ctx, p)
}

func pipeName(reg *registry.Registry, name string) (string, error) {
	if name != "" {
		if _, err := reg.Lookup(name); err != nil {
			return "", err
		}
		return name, nil
	}
	p, err := reg.Pipe(0)
	if err != nil {
		return "", err
	}
	return p.Name(), nil
}
