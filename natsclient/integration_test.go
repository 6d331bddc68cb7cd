//go:build integration

package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raceant/scull/testutil"
)

func TestIntegration_PublishSubscribe(t *testing.T) {
	ctx := context.Background()
	url := testutil.StartNATS(ctx, t)

	client, err := NewClient(url, WithMaxReconnects(0), WithHealthInterval(0), WithName("scull-test"))
	require.NoError(t, err)
	require.NoError(t, client.Connect(ctx))
	defer client.Close(ctx)

	assert.True(t, client.IsHealthy())
	assert.True(t, client.Health().IsHealthy())

	rtt, err := client.RTT()
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))

	received := make(chan []byte, 1)
	require.NoError(t, client.Subscribe(ctx, "scull.*.readable", func(_ context.Context, data []byte) {
		received <- data
	}))
	require.NoError(t, client.Flush(ctx))

	require.NoError(t, client.Publish(ctx, "scull.scullpipe0.readable", []byte(`{"pipe":"scullpipe0"}`)))

	select {
	case data := <-received:
		assert.JSONEq(t, `{"pipe":"scullpipe0"}`, string(data))
	case <-time.After(5 * time.Second):
		t.Fatal("message not received")
	}

	require.NoError(t, client.Close(ctx))
	assert.Equal(t, StatusDisconnected, client.Status())
}
