// File: server/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/momentics/hioload-fs/api"
	"github.com/momentics/hioload-fs/internal/linereader"
	"github.com/momentics/hioload-fs/internal/nbio"
	"github.com/momentics/hioload-fs/internal/request"
)

// conn is one accepted client. It carries the partial-parse state that
// survives between readiness notifications and is owned by the event loop.
type conn struct {
	raw    api.RawConn
	peer   string
	state  api.ConnState
	reader *linereader.Reader
	parser *request.Parser
	writer *nbio.Writer
}

func newConn(raw api.RawConn, peer string, cfg *Config, bufs, chunks api.BytePool) *conn {
	return &conn{
		raw:    raw,
		peer:   peer,
		state:  api.ConnPendingAccept,
		reader: linereader.New(raw, cfg.MaxLineLen, bufs),
		parser: request.NewParser(cfg.MaxHeaderLines),
		writer: nbio.NewWriter(raw, cfg.WriteTimeout, chunks),
	}
}

func (c *conn) fd() int { return c.raw.Fd() }

// close releases the buffers and the socket. It is idempotent.
func (c *conn) close() error {
	if c.state == api.ConnClosed {
		return nil
	}
	c.state = api.ConnClosed
	c.reader.Release()
	return c.raw.Close()
}
