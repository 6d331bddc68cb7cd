package buffer

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raceant/scull/metric"
)

func TestStatistics_Counters(t *testing.T) {
	s := NewStatistics()

	s.Write(5)
	s.Write(3)
	s.Read(4)
	s.WouldBlock()
	s.Wait()
	s.Allocate()
	s.Free()
	s.UpdateFill(4)
	s.UpdateFill(2)

	assert.Equal(t, int64(8), s.BytesWritten())
	assert.Equal(t, int64(4), s.BytesRead())
	assert.Equal(t, int64(2), s.Writes())
	assert.Equal(t, int64(1), s.Reads())
	assert.Equal(t, int64(1), s.WouldBlocks())
	assert.Equal(t, int64(1), s.Waits())
	assert.Equal(t, int64(1), s.Allocations())
	assert.Equal(t, int64(1), s.Frees())
	assert.Equal(t, int64(2), s.Fill())
	assert.Equal(t, int64(4), s.HighWater())
	assert.InDelta(t, 0.5, s.Utilization(4), 1e-9)
	assert.Zero(t, s.Utilization(0))

	sum := s.Summary()
	assert.Equal(t, int64(8), sum.BytesWritten)
	assert.Equal(t, int64(4), sum.HighWater)

	s.Reset()
	assert.Zero(t, s.BytesWritten())
	assert.Zero(t, s.HighWater())
}

func TestStatistics_Concurrent(t *testing.T) {
	s := NewStatistics()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				s.Write(1)
				s.UpdateFill(j)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(8000), s.BytesWritten())
	assert.Equal(t, int64(999), s.HighWater())
}

func TestMetrics_Register(t *testing.T) {
	reg := metric.NewMetricsRegistry()

	m, err := NewMetrics(reg, "pipe0")
	require.NoError(t, err)

	m.RecordWrite(6, 6, 7)
	m.RecordRead(2, 4, 7)
	m.RecordWouldBlock()
	m.RecordWait()
	m.RecordAllocation()

	assert.Equal(t, 6.0, testutil.ToFloat64(m.bytesWritten))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.bytesRead))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.fill))
	assert.InDelta(t, 4.0/7.0, testutil.ToFloat64(m.utilization), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.wouldBlocks))

	// Second pipe with a different label registers fine; a duplicate does not.
	_, err = NewMetrics(reg, "pipe1")
	require.NoError(t, err)
	_, err = NewMetrics(reg, "pipe0")
	assert.Error(t, err)
}
