// File: internal/responder/responder.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package responder answers a decoded retrieval request with the contents
// of a regular file under the server root, or with an error-class status.
package responder

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/momentics/hioload-fs/api"
	"github.com/momentics/hioload-fs/internal/request"
)

// ContentType is sent for every file regardless of its extension.
const ContentType = "text/plain; charset=iso-8859-1"

// ErrMethodDropped is returned for any method other than GET. No response
// is written; the caller closes the connection.
var ErrMethodDropped = api.NewError(api.ErrCodeNotSupported, "method not serviced")

// ResponseWriter is the sink a response is written to. nbio.Writer
// satisfies it for sockets.
type ResponseWriter interface {
	io.Writer
	io.ReaderFrom
}

// Responder serves files relative to a root directory.
type Responder struct {
	root string
}

// New creates a Responder rooted at root. An empty root means the current
// working directory.
func New(root string) *Responder {
	return &Responder{root: root}
}

// Resolve maps a request target onto a filesystem path below the root.
// The leading slash is stripped and dot segments cannot climb above the root.
func (r *Responder) Resolve(target string) (string, error) {
	if strings.IndexByte(target, 0) >= 0 {
		return "", api.WrapError(api.ErrCodeNotFound, "resolve", api.ErrNotFound).WithContext("target", target)
	}
	rel := strings.TrimPrefix(path.Clean("/"+strings.TrimPrefix(target, "/")), "/")
	if rel == "" {
		rel = "."
	}
	return filepath.Join(r.root, filepath.FromSlash(rel)), nil
}

// Serve writes the full response for req to w. It returns the status that
// was sent (0 when nothing was sent) and the failure that caused an
// error-class status or aborted the transfer.
func (r *Responder) Serve(w ResponseWriter, req request.Request) (int, error) {
	if !strings.EqualFold(req.Method, "GET") {
		return 0, ErrMethodDropped
	}
	name, err := r.Resolve(req.Target)
	if err != nil {
		return WriteError(w, err)
	}

	fi, err := os.Stat(name)
	if err != nil {
		return WriteError(w, lookupError("stat", req.Target, err))
	}
	if !fi.Mode().IsRegular() {
		return WriteError(w, api.WrapError(api.ErrCodeForbidden, "serve", api.ErrForbidden).WithContext("target", req.Target))
	}

	f, err := os.Open(name)
	if err != nil {
		return WriteError(w, lookupError("open", req.Target, err))
	}
	defer f.Close()

	size := fi.Size()
	if err := WritePreamble(w, 200, "OK", size); err != nil {
		return 200, err
	}
	// The body never exceeds the announced length even if the file grows.
	if _, err := w.ReadFrom(io.LimitReader(f, size)); err != nil {
		return 200, err
	}
	return 200, nil
}

// WritePreamble writes the status line and headers followed by the blank
// line terminator.
func WritePreamble(w io.Writer, status int, reason string, length int64) error {
	b := make([]byte, 0, 128)
	b = append(b, "HTTP/1.1 "...)
	b = strconv.AppendInt(b, int64(status), 10)
	b = append(b, ' ')
	b = append(b, reason...)
	b = append(b, "\r\nContent-Type:"...)
	b = append(b, ContentType...)
	b = append(b, "\r\nContent-Length:"...)
	b = strconv.AppendInt(b, length, 10)
	b = append(b, "\r\n\r\n"...)
	_, err := w.Write(b)
	return err
}

// WriteError sends the error-class response matching cause. When cause
// maps to no status nothing is written and 0 is returned.
func WriteError(w io.Writer, cause error) (int, error) {
	status, reason := api.StatusFor(cause)
	if status == 0 {
		return 0, cause
	}
	body := strconv.Itoa(status) + " " + reason + "\n"
	if err := WritePreamble(w, status, reason, int64(len(body))); err != nil {
		return status, err
	}
	if _, err := io.WriteString(w, body); err != nil {
		return status, err
	}
	return status, cause
}

func lookupError(op, target string, err error) error {
	code := api.ErrCodeNotFound
	sentinel := api.ErrNotFound
	if errors.Is(err, fs.ErrPermission) {
		code, sentinel = api.ErrCodeForbidden, api.ErrForbidden
	}
	return api.WrapError(code, op, errors.Join(sentinel, err)).WithContext("target", target)
}
