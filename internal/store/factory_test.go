package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMemory(t *testing.T) {
	h, err := Open(context.Background(), Config{Driver: "memory"})
	require.NoError(t, err)
	assert.NotNil(t, h.Users)
	assert.NotNil(t, h.Memory)
	assert.NoError(t, h.Close())
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mongo"})
	assert.Error(t, err)
}

func TestPostgresOptions(t *testing.T) {
	o := PostgresOptions(10, 2, "30m")
	assert.Equal(t, 10, o.MaxOpenConns)
	assert.Equal(t, 2, o.MaxIdleConns)
	assert.Equal(t, 30*time.Minute, o.ConnMaxLifetime)
}

func TestMemoryHandlePing(t *testing.T) {
	h, err := Open(context.Background(), Config{Driver: "mem"})
	require.NoError(t, err)
	assert.Nil(t, h.DB)
	assert.NoError(t, h.Ping(context.Background()))
}
