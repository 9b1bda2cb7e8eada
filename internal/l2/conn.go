// Package l2 provides the raw-Ethernet transport the steering control
// protocol rides on: one AF_PACKET socket per bridge interface, filtered
// in-kernel to the steering EtherType, with no IP layer involved at all.
package l2

import (
	"errors"
	"sync"

	"github.com/cococorp/steerd/internal/steering"
)

// maxFrameSize bounds a single read: standard Ethernet MTU plus header,
// comfortably larger than any frame this protocol ever builds (a header
// plus one TLV is under 40 bytes).
const maxFrameSize = 1514

var framePool = sync.Pool{
	New: func() any {
		b := make([]byte, maxFrameSize)
		return &b
	},
}

// Sentinel errors.
var (
	ErrSocketClosed = errors.New("l2: socket closed")
	ErrPoolType     = errors.New("l2: packet pool returned unexpected type")
)

// FrameMeta carries the metadata a received frame's source socket address
// gives up for free.
type FrameMeta struct {
	// Src is the sending interface's own hardware address, from the
	// packet socket's link-layer address, not the Ethernet header (which
	// this protocol does not otherwise use — every field the FSM needs
	// travels inside the TLV payload instead).
	Src steering.MAC

	// IfIndex is the receiving interface's index.
	IfIndex int
}

// Conn is the minimal raw-Ethernet send/receive interface the rest of this
// package and internal/steering's FrameSender depend on. Keeping it this
// narrow lets tests substitute an in-memory fake without CAP_NET_RAW.
type Conn interface {
	// ReadFrame reads one frame into buf, already filtered by EtherType at
	// the kernel (see rawsock_linux.go's attached classic BPF program).
	ReadFrame(buf []byte) (n int, meta FrameMeta, err error)

	// WriteFrame sends buf to dst's link-layer address on the bound
	// interface.
	WriteFrame(dst steering.MAC, buf []byte) (n int, err error)

	// Close releases the underlying socket.
	Close() error

	// LocalAddr returns the bound interface's own hardware address.
	LocalAddr() steering.MAC
}
