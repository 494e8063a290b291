// File: internal/request/parser.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package request decodes the request line of a retrieval request and
// drains the header block that follows it. Headers are never retained.
package request

import (
	"errors"
	"io"
	"strings"

	"github.com/momentics/hioload-fs/api"
)

// DefaultMaxHeaderLines bounds the header block when no limit is configured.
const DefaultMaxHeaderLines = 100

var (
	// ErrMalformedRequest reports a request line that is not exactly
	// method, target and protocol separated by whitespace.
	ErrMalformedRequest = api.NewError(api.ErrCodeMalformedRequest, "malformed request line")

	// ErrTooManyHeaders reports a header block longer than the configured bound.
	ErrTooManyHeaders = api.NewError(api.ErrCodeTooLarge, "too many header lines")
)

// Request is the decoded request line. It lives only until the response
// has been produced.
type Request struct {
	Method string
	Target string
	Proto  string
}

// ParseRequestLine splits line into its three whitespace separated tokens.
func ParseRequestLine(line string) (Request, error) {
	f := strings.Fields(line)
	if len(f) != 3 {
		return Request{}, ErrMalformedRequest
	}
	return Request{Method: f[0], Target: f[1], Proto: f[2]}, nil
}

// LineSource yields logical lines; see linereader.Reader.
type LineSource interface {
	ReadLine() (string, error)
}

type stage int

const (
	stageRequestLine stage = iota
	stageHeaders
	stageDone
)

// Parser resumes request decoding across readiness notifications.
type Parser struct {
	stage      stage
	req        Request
	headers    int
	maxHeaders int
}

// NewParser creates a Parser that accepts at most maxHeaders header lines.
func NewParser(maxHeaders int) *Parser {
	if maxHeaders <= 0 {
		maxHeaders = DefaultMaxHeaderLines
	}
	return &Parser{maxHeaders: maxHeaders}
}

// Done reports whether a complete request has been decoded.
func (p *Parser) Done() bool { return p.stage == stageDone }

// Next consumes as many lines as src has available.
//
// It returns the request once the blank line ending the header block has
// been read. api.ErrWouldBlock means more input is needed; io.EOF on the
// request line means the client sent nothing and should just be closed.
func (p *Parser) Next(src LineSource) (Request, error) {
	if p.stage == stageRequestLine {
		line, err := src.ReadLine()
		if err != nil {
			return Request{}, err
		}
		req, err := ParseRequestLine(line)
		if err != nil {
			p.stage = stageDone
			return Request{}, err
		}
		p.req = req
		p.stage = stageHeaders
	}

	for p.stage == stageHeaders {
		line, err := src.ReadLine()
		switch {
		case errors.Is(err, api.ErrWouldBlock):
			return Request{}, err
		case err != nil && api.CodeOf(err) == api.ErrCodeTooLarge:
			p.stage = stageDone
			return Request{}, err
		case err != nil:
			// A broken or half-closed stream ends the header block; the
			// request line alone is enough to answer.
			p.stage = stageDone
		case line == "":
			p.stage = stageDone
		default:
			p.headers++
			if p.headers > p.maxHeaders {
				p.stage = stageDone
				return Request{}, ErrTooManyHeaders
			}
		}
	}
	return p.req, nil
}

// IsClientGone reports whether err means the client closed before sending
// a request line.
func IsClientGone(err error) bool {
	return errors.Is(err, io.EOF)
}
