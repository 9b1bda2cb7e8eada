package l2

import (
	"context"
	"fmt"
)

// Listener wraps a Conn with a pooled-buffer receive loop.
type Listener struct {
	conn Conn
}

// NewListener wraps an already-constructed Conn (a *RawConn in production,
// a fake in tests).
func NewListener(conn Conn) *Listener {
	return &Listener{conn: conn}
}

// Recv reads one frame using a pooled buffer. The caller must call Release
// on the returned slice once done with it. ctx is checked before each read;
// unblocking an in-flight read still requires closing the Listener.
func (l *Listener) Recv(ctx context.Context) ([]byte, FrameMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, FrameMeta{}, fmt.Errorf("l2: listener recv: %w", err)
	}

	bufp, ok := framePool.Get().(*[]byte)
	if !ok {
		return nil, FrameMeta{}, ErrPoolType
	}

	n, meta, err := l.conn.ReadFrame(*bufp)
	if err != nil {
		framePool.Put(bufp)
		return nil, FrameMeta{}, fmt.Errorf("l2: read frame: %w", err)
	}

	return (*bufp)[:n], meta, nil
}

// Release returns buf to the pool. Safe to call with any slice previously
// returned by Recv.
func (l *Listener) Release(buf []byte) {
	b := buf[:cap(buf)]
	framePool.Put(&b)
}

// Close closes the underlying Conn.
func (l *Listener) Close() error {
	return l.conn.Close()
}
