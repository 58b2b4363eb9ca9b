package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRedisGetPutInvalidate(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	r, err := NewRedis(ctx, addr)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	_, ok, err := r.Get(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Put(ctx, 42, sampleEntry("digest-1")))
	got, ok, err := r.Get(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleEntry("digest-1"), got)

	require.NoError(t, r.Invalidate(ctx, 42))
	_, ok, err = r.Get(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewRedisFailsFast(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedis(ctx, "127.0.0.1:1")
	assert.Error(t, err)
}
