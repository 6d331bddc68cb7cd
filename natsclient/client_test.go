package natsclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raceant/scull/errors"
	"github.com/raceant/scull/metric"
)

func TestNewClient(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	assert.Equal(t, "nats://localhost:4222", client.URL())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.False(t, client.IsHealthy())
	assert.Equal(t, time.Second, client.Backoff())
	assert.Zero(t, client.Failures())
}

func TestNewClient_InvalidOptions(t *testing.T) {
	_, err := NewClient("nats://localhost:4222", WithCircuitBreakerThreshold(0))
	assert.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = NewClient("nats://localhost:4222", WithMaxBackoff(-time.Second))
	assert.Error(t, err)
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	client, err := NewClient("nats://invalid:4222", WithCircuitBreakerThreshold(3))
	require.NoError(t, err)

	client.recordFailure()
	client.recordFailure()
	assert.NotEqual(t, StatusCircuitOpen, client.Status())

	client.recordFailure()
	assert.Equal(t, StatusCircuitOpen, client.Status())
	assert.Equal(t, int32(3), client.Failures())

	err = client.Connect(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	require.Equal(t, StatusCircuitOpen, client.Status())

	client.resetCircuit()
	assert.Zero(t, client.Failures())
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.Equal(t, time.Second, client.Backoff())
}

func TestCircuitBreaker_ExponentialBackoff(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", WithMaxBackoff(10*time.Second))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	assert.Equal(t, 2*time.Second, client.Backoff())

	for i := 0; i < 5; i++ {
		client.recordFailure()
	}
	assert.Equal(t, 4*time.Second, client.Backoff())

	for i := 0; i < 50; i++ {
		client.recordFailure()
	}
	assert.Equal(t, 10*time.Second, client.Backoff())
}

func TestCircuitBreaker_HalfOpens(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", WithCircuitBreakerThreshold(1))
	require.NoError(t, err)

	client.recordFailure()
	require.Equal(t, StatusCircuitOpen, client.Status())

	client.testCircuit()
	assert.Equal(t, StatusDisconnected, client.Status())
}

func TestCircuitBreaker_ConcurrentFailures(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client.recordFailure()
			_ = client.Status()
			_ = client.GetStatus()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(50), client.Failures())
	assert.Equal(t, StatusCircuitOpen, client.Status())
}

func TestConnect_Unreachable(t *testing.T) {
	client, err := NewClient("nats://127.0.0.1:1",
		WithTimeout(100*time.Millisecond),
		WithMaxReconnects(0),
		WithHealthInterval(0))
	require.NoError(t, err)

	err = client.Connect(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, StatusDisconnected, client.Status())
	assert.Equal(t, int32(1), client.Failures())
}

func TestConnect_ContextCancelled(t *testing.T) {
	client, err := NewClient("nats://10.255.255.1:4222", WithTimeout(5*time.Second))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = client.Connect(ctx)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "Connect returns when ctx ends")
	assert.NotEqual(t, StatusConnected, client.Status())
}

func TestNotConnected(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	ctx := context.Background()

	assert.ErrorIs(t, client.Publish(ctx, "a", []byte("x")), ErrNotConnected)
	assert.ErrorIs(t, client.Publish(ctx, "a", nil), errors.ErrNoConnection)
	assert.ErrorIs(t, client.Subscribe(ctx, "a", func(context.Context, []byte) {}), ErrNotConnected)
	assert.ErrorIs(t, client.Flush(ctx), ErrNotConnected)

	_, err = client.RTT()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestClose_Idempotent(t *testing.T) {
	client, err := NewClient("nats://localhost:4222", WithCredentials("u", "p"), WithToken("t"))
	require.NoError(t, err)

	require.NoError(t, client.Close(context.Background()))
	require.NoError(t, client.Close(context.Background()))
	assert.Empty(t, client.password)
	assert.Empty(t, client.token)

	err = client.Connect(context.Background())
	assert.ErrorIs(t, err, errors.ErrAlreadyStopped)
}

func TestHealth(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)

	tests := []struct {
		status ConnectionStatus
		want   string
	}{
		{StatusConnected, "healthy"},
		{StatusConnecting, "degraded"},
		{StatusReconnecting, "degraded"},
		{StatusDisconnected, "unhealthy"},
		{StatusCircuitOpen, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			client.setStatus(tt.status)
			h := client.Health()
			assert.Equal(t, tt.want, h.Status)
			assert.Equal(t, "nats", h.Component)
		})
	}
}

func TestMetrics_ConnectionGauge(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	client, err := NewClient("nats://localhost:4222", WithMetrics(registry))
	require.NoError(t, err)

	gauge := registry.CoreMetrics().NATSConnected
	client.setStatus(StatusConnected)
	assert.Equal(t, 1.0, testutil.ToFloat64(gauge))

	client.setStatus(StatusReconnecting)
	assert.Equal(t, 0.0, testutil.ToFloat64(gauge))
}

func TestGetStatus(t *testing.T) {
	client, err := NewClient("nats://localhost:4222")
	require.NoError(t, err)
	client.recordFailure()

	s := client.GetStatus()
	assert.Equal(t, StatusDisconnected, s.Status)
	assert.Equal(t, "disconnected", s.State)
	assert.Equal(t, int32(1), s.FailureCount)
	assert.False(t, s.LastFailureTime.IsZero())
	assert.Zero(t, s.RTT)
}

func TestConnectionStatus_String(t *testing.T) {
	assert.Equal(t, "circuit_open", StatusCircuitOpen.String())
	assert.Equal(t, "unknown", ConnectionStatus(99).String())
}
