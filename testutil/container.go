package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// NATSImage is the server image used by StartNATS.
const NATSImage = "nats:2.11.7-alpine"

// StartNATS runs a throwaway NATS server and returns its client URL. The
// container is terminated when the test ends. Tests are skipped when no
// container runtime is reachable.
func StartNATS(ctx context.Context, t *testing.T) string {
	t.Helper()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        NATSImage,
			ExposedPorts: []string{"4222/tcp", "8222/tcp"},
			Cmd:          []string{"--port", "4222", "--http_port", "8222"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("4222/tcp"),
				wait.ForHTTP("/").WithPort("8222/tcp").WithStartupTimeout(30*time.Second),
			),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("NATS container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "4222")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	return fmt.Sprintf("nats://%s:%s", host, port.Port())
}
