// Package file backs an IPC endpoint with a regular file. It is mostly
// useful for recording a message stream to disk and replaying it later: one
// process writes frames through an endpoint opened in write mode, another
// opens the file read-only and walks the stream with the raw-mode accessor.
package file

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/sadewadee/saluran/ipc"
)

// Endpoint adapts an on-disk file to the transport contract.
type Endpoint struct {
	f       *os.File
	aborted atomic.Bool
}

// Open opens path for reading, writing, or both. A write-mode endpoint
// creates or truncates the file.
func Open(path string, read, write bool) (*Endpoint, error) {
	var flag int
	switch {
	case read && write:
		flag = os.O_RDWR | os.O_CREATE
	case read:
		flag = os.O_RDONLY
	case write:
		flag = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	default:
		return nil, fmt.Errorf("file: endpoint needs at least one of read or write")
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file: opening endpoint: %w", err)
	}
	return &Endpoint{f: f}, nil
}

// ReadRaw reads up to len(p) bytes from the file. The first read past the
// end of the file aborts the endpoint and reports a clean EOF; subsequent
// calls fail.
func (e *Endpoint) ReadRaw(p []byte) (int, error) {
	if e.aborted.Load() {
		return 0, ipc.ErrClosed
	}
	n, err := e.f.Read(p)
	if n > 0 {
		return n, nil
	}
	if err == io.EOF {
		if e.Abort(ipc.ReasonUserClosed) {
			return 0, io.EOF
		}
		return 0, ipc.ErrClosed
	}
	return n, err
}

// WriteRaw writes all of p to the file.
func (e *Endpoint) WriteRaw(p []byte) error {
	if e.aborted.Load() {
		return ipc.ErrClosed
	}
	if _, err := e.f.Write(p); err != nil {
		return fmt.Errorf("file: writing endpoint: %w", err)
	}
	return nil
}

// Abort closes the file. The first call returns true.
func (e *Endpoint) Abort(reason ipc.Reason) bool {
	if !e.aborted.CompareAndSwap(false, true) {
		return false
	}
	e.f.Close()
	return true
}
