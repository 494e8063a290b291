//go:build linux

package main

import (
	"bytes"
	"context"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-fs/server"
)

func TestRootCmdRequiresTwoArgs(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"8080"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, out.String(), "Usage:")
}

func TestRootCmdRejectsBadPort(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"http", t.TempDir()})
	assert.ErrorContains(t, cmd.Execute(), "invalid port")
}

func TestRootCmdRejectsMissingRoot(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"0", filepath.Join(t.TempDir(), "absent")})
	assert.ErrorContains(t, cmd.Execute(), "chdir")
}

func TestRunServesUntilCancelled(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("hello world\n"), 0o644))

	// Reserve a port, then hand it to the server.
	probe, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	addr := probe.Addr().String()
	require.NoError(t, probe.Close())

	cfg := server.DefaultConfig()
	cfg.ListenAddr = addr
	cfg.Root = root
	quiet := log.New(io.Discard, "", 0)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx, cfg, "", quiet, quiet) }()

	var conn net.Conn
	require.Eventually(t, func() bool {
		conn, err = net.Dial("tcp", addr)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	_, err = io.WriteString(conn, "GET /index.html HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	resp, err := io.ReadAll(conn)
	require.NoError(t, err)
	conn.Close()
	assert.True(t, bytes.HasSuffix(resp, []byte("\r\n\r\nhello world\n")))

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return")
	}
}
