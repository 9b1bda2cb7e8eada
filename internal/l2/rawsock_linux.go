//go:build linux

package l2

import (
	"fmt"
	"net"
	"sync"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"

	"github.com/cococorp/steerd/internal/steering"
)

// RawConn is an AF_PACKET/SOCK_RAW socket bound to one interface and
// filtered in-kernel to frames carrying steering.EtherType.
type RawConn struct {
	fd      int
	ifIndex int
	local   steering.MAC

	mu     sync.Mutex
	closed bool
}

// NewRawConn opens a raw packet socket on ifName (typically the bridge
// interface the BSSes sit behind), bound and filtered to steering.EtherType.
func NewRawConn(ifName string) (*RawConn, error) {
	iface, err := net.InterfaceByName(ifName)
	if err != nil {
		return nil, fmt.Errorf("l2: lookup interface %s: %w", ifName, err)
	}

	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(steering.EtherType)))
	if err != nil {
		return nil, fmt.Errorf("l2: open AF_PACKET socket: %w", err)
	}

	prog, err := etherTypeFilter(steering.EtherType)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("l2: compile BPF filter: %w", err)
	}
	if err := unix.SetsockoptSockFprog(fd, unix.SOL_SOCKET, unix.SO_ATTACH_FILTER, prog); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("l2: attach BPF filter: %w", err)
	}

	sa := &unix.SockaddrLinklayer{
		Protocol: htons(steering.EtherType),
		Ifindex:  iface.Index,
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("l2: bind to %s: %w", ifName, err)
	}

	var local steering.MAC
	copy(local[:], iface.HardwareAddr)

	return &RawConn{fd: fd, ifIndex: iface.Index, local: local}, nil
}

// htons converts a 16-bit value from host to network byte order. The
// EtherType a packet socket is opened with, and the Protocol field of its
// bind address, are both expected in network byte order regardless of
// host endianness.
func htons(v uint16) uint16 {
	return v<<8&0xff00 | v>>8&0x00ff
}

// etherTypeFilter compiles a four-instruction classic BPF program: load the
// 2-byte EtherType field at its fixed offset in the Ethernet header, accept
// the whole frame if it matches, drop otherwise. Filtering here means every
// other protocol sharing the interface never crosses into userspace for
// this socket at all.
func etherTypeFilter(etherType uint16) (*unix.SockFprog, error) {
	raw, err := bpf.Assemble([]bpf.Instruction{
		bpf.LoadAbsolute{Off: 12, Size: 2},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(etherType), SkipFalse: 1},
		bpf.RetConstant{Val: 0x40000},
		bpf.RetConstant{Val: 0},
	})
	if err != nil {
		return nil, fmt.Errorf("l2: assemble BPF program: %w", err)
	}

	filter := make([]unix.SockFilter, len(raw))
	for i, inst := range raw {
		filter[i] = unix.SockFilter{Code: inst.Op, Jt: inst.Jt, Jf: inst.Jf, K: inst.K}
	}
	return &unix.SockFprog{Len: uint16(len(filter)), Filter: &filter[0]}, nil
}

// ReadFrame reads one already-filtered frame from the socket.
func (c *RawConn) ReadFrame(buf []byte) (int, FrameMeta, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0, FrameMeta{}, ErrSocketClosed
	}

	n, from, err := unix.Recvfrom(c.fd, buf, 0)
	if err != nil {
		return 0, FrameMeta{}, fmt.Errorf("l2: recvfrom: %w", err)
	}

	meta := FrameMeta{IfIndex: c.ifIndex}
	if ll, ok := from.(*unix.SockaddrLinklayer); ok {
		copy(meta.Src[:], ll.Addr[:6])
	}
	return n, meta, nil
}

// WriteFrame sends buf directly to dst's link-layer address on the bound
// interface, bypassing ARP/neighbor resolution entirely (the destination
// is always a peer AP's own interface, not routed).
func (c *RawConn) WriteFrame(dst steering.MAC, buf []byte) (int, error) {
	sa := &unix.SockaddrLinklayer{
		Ifindex: c.ifIndex,
		Halen:   6,
	}
	copy(sa.Addr[:6], dst[:])

	if err := unix.Sendto(c.fd, buf, 0, sa); err != nil {
		return 0, fmt.Errorf("l2: sendto %s: %w", dst, err)
	}
	return len(buf), nil
}

// Close releases the socket. Safe to call more than once.
func (c *RawConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	if err := unix.Close(c.fd); err != nil {
		return fmt.Errorf("l2: close socket: %w", err)
	}
	return nil
}

// LocalAddr returns the bound interface's own hardware address.
func (c *RawConn) LocalAddr() steering.MAC {
	return c.local
}
