//go:build linux

package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-fs/api"
	"github.com/momentics/hioload-fs/internal/nbio"
	"github.com/momentics/hioload-fs/reactor"
)

func TestRegistryLifecycle(t *testing.T) {
	r, err := reactor.New(8)
	require.NoError(t, err)
	defer r.Close()
	g := NewRegistry(r)

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	defer unix.Close(fds[1])

	raw, err := nbio.NewConn(fds[0])
	require.NoError(t, err)
	c := newConn(raw, "pair", DefaultConfig(), nil, nil)
	assert.Equal(t, api.ConnPendingAccept, c.state)

	require.NoError(t, g.Add(c))
	assert.Equal(t, api.ConnRegistered, c.state)
	assert.Equal(t, 1, g.Len())
	assert.ErrorIs(t, g.Add(c), api.ErrAlreadyExists)

	got, ok := g.Get(fds[0])
	require.True(t, ok)
	assert.Same(t, c, got)

	require.NoError(t, g.Remove(fds[0]))
	assert.Equal(t, api.ConnClosed, c.state)
	assert.Equal(t, 0, g.Len())
	assert.ErrorIs(t, g.Remove(fds[0]), api.ErrNotFound)
	assert.NoError(t, c.close())
}

func TestRegistryCloseAll(t *testing.T) {
	r, err := reactor.New(8)
	require.NoError(t, err)
	defer r.Close()
	g := NewRegistry(r)

	for i := 0; i < 3; i++ {
		fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
		require.NoError(t, err)
		defer unix.Close(fds[1])
		raw, err := nbio.NewConn(fds[0])
		require.NoError(t, err)
		require.NoError(t, g.Add(newConn(raw, "pair", DefaultConfig(), nil, nil)))
	}
	n, err := g.CloseAll()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, g.Len())
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	mutations := []func(*Config){
		func(c *Config) { c.ListenAddr = "" },
		func(c *Config) { c.Backlog = 0 },
		func(c *Config) { c.MaxEvents = -1 },
		func(c *Config) { c.MaxLineLen = 1 },
		func(c *Config) { c.MaxHeaderLines = 0 },
		func(c *Config) { c.ReadBufferSize = 0 },
		func(c *Config) { c.WriteTimeout = -1 },
		func(c *Config) { c.ResponseTimeout = -time.Second },
		func(c *Config) { c.MaxConnections = -2 },
		func(c *Config) { c.LoopCPU = -5 },
	}
	for i, m := range mutations {
		cfg := DefaultConfig()
		m(cfg)
		assert.ErrorIs(t, cfg.Validate(), api.ErrInvalidArgument, "mutation %d", i)
	}
}
