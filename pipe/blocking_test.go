package pipe

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/raceant/scull/errors"
)

type result struct {
	n   int
	err error
}

func TestPipe_ReaderBlocksUntilWrite(t *testing.T) {
	p := newTestPipe(t, 8)
	r := openHandle(t, p, ModeRead)
	w := openHandle(t, p, ModeWrite)

	done := make(chan result, 1)
	buf := make([]byte, 8)
	go func() {
		n, err := r.Read(buf)
		done <- result{n, err}
	}()

	waitForWaits(t, p, 1)
	select {
	case <-done:
		t.Fatal("read returned before any write")
	default:
	}

	_, err := w.Write([]byte("go"))
	require.NoError(t, err)

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, "go", string(buf[:res.n]))
}

func TestPipe_BlockedReaderSeesEOFWhenWriterLeaves(t *testing.T) {
	p := newTestPipe(t, 8)
	r := openHandle(t, p, ModeRead)
	w, err := p.Open(context.Background(), ModeWrite)
	require.NoError(t, err)

	done := make(chan result, 1)
	go func() {
		n, err := r.Read(make([]byte, 4))
		done <- result{n, err}
	}()

	waitForWaits(t, p, 1)
	require.NoError(t, w.Close())

	res := <-done
	assert.Zero(t, res.n)
	assert.Equal(t, io.EOF, res.err)
}

func TestPipe_BlockedWriterSeesBrokenPipe(t *testing.T) {
	p := newTestPipe(t, 8)
	r, err := p.Open(context.Background(), ModeRead)
	require.NoError(t, err)
	w := openHandle(t, p, ModeWrite)

	done := make(chan result, 1)
	go func() {
		n, err := w.Write([]byte("0123456789"))
		done <- result{n, err}
	}()

	waitForWaits(t, p, 1)
	require.NoError(t, r.Close())

	res := <-done
	assert.Equal(t, 7, res.n, "bytes copied before the reader left")
	assert.ErrorIs(t, res.err, errors.ErrChannelBroken)
}

func TestPipe_BlockingWriteCompletes(t *testing.T) {
	p := newTestPipe(t, 8)
	r := openHandle(t, p, ModeRead)
	w := openHandle(t, p, ModeWrite)

	payload := bytes.Repeat([]byte("abcdefghij"), 10)
	done := make(chan result, 1)
	go func() {
		n, err := w.Write(payload)
		done <- result{n, err}
	}()

	var got bytes.Buffer
	buf := make([]byte, 3)
	for got.Len() < len(payload) {
		n, err := r.Read(buf)
		require.NoError(t, err)
		got.Write(buf[:n])
	}

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, len(payload), res.n)
	assert.Equal(t, payload, got.Bytes())
}

func TestPipe_Cancellation(t *testing.T) {
	t.Run("blocked read", func(t *testing.T) {
		p := newTestPipe(t, 8)
		r := openHandle(t, p, ModeRead)
		openHandle(t, p, ModeWrite)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan result, 1)
		go func() {
			n, err := r.ReadContext(ctx, make([]byte, 4))
			done <- result{n, err}
		}()

		waitForWaits(t, p, 1)
		before := p.Status()
		cancel()

		res := <-done
		assert.Zero(t, res.n)
		assert.ErrorIs(t, res.err, errors.ErrCancelled)
		assert.ErrorIs(t, res.err, context.Canceled)

		after := p.Status()
		assert.Equal(t, before.Readers, after.Readers)
		assert.Equal(t, before.DataAvailable, after.DataAvailable)
	})

	t.Run("blocked write on full ring", func(t *testing.T) {
		p := newTestPipe(t, 4)
		openHandle(t, p, ModeRead)
		w := openHandle(t, p, ModeWrite)
		_, err := w.Write([]byte("abc"))
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		n, err := w.WriteContext(ctx, []byte("d"))
		assert.Zero(t, n)
		assert.ErrorIs(t, err, errors.ErrCancelled)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 3, p.Status().DataAvailable)
	})

	t.Run("wait ready", func(t *testing.T) {
		p := newTestPipe(t, 8)
		r := openHandle(t, p, ModeRead)
		openHandle(t, p, ModeWrite)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err := r.WaitReady(ctx)
		assert.ErrorIs(t, err, errors.ErrCancelled)
	})
}

func TestPipe_CloseWakesOwnBlockedRead(t *testing.T) {
	p := newTestPipe(t, 8)
	r, err := p.Open(context.Background(), ModeRead)
	require.NoError(t, err)
	openHandle(t, p, ModeWrite)

	done := make(chan result, 1)
	go func() {
		n, err := r.Read(make([]byte, 4))
		done <- result{n, err}
	}()

	waitForWaits(t, p, 1)
	require.NoError(t, r.Close())

	res := <-done
	assert.ErrorIs(t, res.err, errors.ErrHandleClosed)
	assert.Zero(t, p.Status().Readers)
}

func TestPipe_WaitReady(t *testing.T) {
	p := newTestPipe(t, 8)
	r := openHandle(t, p, ModeRead)
	w := openHandle(t, p, ModeWrite)

	done := make(chan Readiness, 1)
	go func() {
		rd, err := r.WaitReady(context.Background())
		assert.NoError(t, err)
		done <- rd
	}()

	time.Sleep(10 * time.Millisecond)
	_, err := w.Write([]byte("x"))
	require.NoError(t, err)

	select {
	case rd := <-done:
		assert.Equal(t, Readiness{Readable: true}, rd)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitReady did not observe the write")
	}

	rd, err := p.WaitReady(context.Background(), Readiness{})
	require.NoError(t, err)
	assert.True(t, rd.Readable)
}

// One-byte capacity forces a hand-off on every byte.
func TestPipe_SingleByteProducerConsumer(t *testing.T) {
	const iterations = 2000

	p := newTestPipe(t, 2)
	r := openHandle(t, p, ModeRead)
	w, err := p.Open(context.Background(), ModeWrite)
	require.NoError(t, err)

	want := make([]byte, iterations)
	for i := range want {
		want[i] = byte(i % 251)
	}

	var g errgroup.Group
	g.Go(func() error {
		defer w.Close()
		for i := range want {
			if _, err := w.Write(want[i : i+1]); err != nil {
				return err
			}
		}
		return nil
	})

	var got []byte
	g.Go(func() error {
		var err error
		got, err = io.ReadAll(r)
		return err
	})

	require.NoError(t, g.Wait())
	assert.Equal(t, want, got)
}

func TestPipe_ConcurrentWriters(t *testing.T) {
	const (
		writers  = 8
		perWrite = 5
		rounds   = 200
	)

	p := newTestPipe(t, 16)
	r := openHandle(t, p, ModeRead)

	handles := make([]*Handle, writers)
	for i := range handles {
		h, err := p.Open(context.Background(), ModeWrite)
		require.NoError(t, err)
		handles[i] = h
	}

	var wg sync.WaitGroup
	for i, h := range handles {
		wg.Add(1)
		go func(id byte, h *Handle) {
			defer wg.Done()
			defer h.Close()
			chunk := bytes.Repeat([]byte{'a' + id}, perWrite)
			for j := 0; j < rounds; j++ {
				n, err := h.Write(chunk)
				assert.NoError(t, err)
				assert.Equal(t, perWrite, n)
			}
		}(byte(i), h)
	}

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	wg.Wait()

	require.Len(t, data, writers*perWrite*rounds)
	counts := make(map[byte]int)
	for _, b := range data {
		counts[b]++
	}
	for i := 0; i < writers; i++ {
		assert.Equal(t, perWrite*rounds, counts['a'+byte(i)])
	}
	assert.Equal(t, int64(len(data)), p.Stats().BytesRead())
	assert.Equal(t, p.Stats().BytesWritten(), p.Stats().BytesRead())
}

func TestGate(t *testing.T) {
	g := newGate()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, g.lock(cancelled), errors.ErrCancelled)

	require.NoError(t, g.lock(context.Background()))

	ctx, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	err := g.lock(ctx)
	assert.ErrorIs(t, err, errors.ErrCancelled)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	g.unlock()
	require.NoError(t, g.lock(context.Background()), "failed lock leaves the gate free")
	g.unlock()
}

func TestSignal(t *testing.T) {
	var s signal
	s.broadcast()

	ch1 := s.wait()
	ch2 := s.wait()
	assert.Equal(t, ch1, ch2, "waiters in one generation share a channel")

	s.broadcast()
	for _, ch := range []<-chan struct{}{ch1, ch2} {
		select {
		case <-ch:
		default:
			t.Fatal("broadcast did not wake waiter")
		}
	}

	ch3 := s.wait()
	select {
	case <-ch3:
		t.Fatal("new generation should not be closed")
	default:
	}
}
