// Package hostapdctl implements steering.APStack against a real hostapd
// process, talking to its per-BSS control interface socket the same way
// hostapd_cli does: a pair of unixgram sockets, one command in flight at a
// time, plain-text request/response.
package hostapdctl

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cococorp/steerd/internal/steering"
)

// cmdTimeout bounds how long a single ctrl_iface round trip may take
// before Client gives up and returns an error; hostapd answers these
// commands synchronously and fast, so anything slower means the socket or
// the process behind it is wedged.
const cmdTimeout = 2 * time.Second

// ErrClosed is returned by Client methods called after Close.
var ErrClosed = errors.New("hostapdctl: client closed")

// Client is a synchronous control-interface connection to one hostapd BSS.
// Unlike a full hostapd_cli session, this issues exactly one command at a
// time and never ATTACHes for unsolicited events — the steering coordinator
// only ever needs the four request/response commands APStack exposes.
type Client struct {
	mu        sync.Mutex
	conn      *net.UnixConn
	localPath string
	closed    bool
}

// Dial opens a control-interface connection to bssIface's socket under
// runDir (hostapd's default is /var/run/hostapd). The local endpoint is a
// unixgram socket in os.TempDir, removed on Close.
func Dial(runDir, bssIface string) (*Client, error) {
	remotePath := filepath.Join(runDir, bssIface)
	localPath := filepath.Join(os.TempDir(), fmt.Sprintf("steerd-%s-%d.sock", bssIface, os.Getpid()))
	_ = os.Remove(localPath)

	laddr := &net.UnixAddr{Name: localPath, Net: "unixgram"}
	raddr := &net.UnixAddr{Name: remotePath, Net: "unixgram"}

	conn, err := net.DialUnix("unixgram", laddr, raddr)
	if err != nil {
		return nil, fmt.Errorf("hostapdctl: dial %s: %w", remotePath, err)
	}

	return &Client{conn: conn, localPath: localPath}, nil
}

// Close releases the underlying socket and removes the local endpoint file.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	err := c.conn.Close()
	_ = os.Remove(c.localPath)
	if err != nil {
		return fmt.Errorf("hostapdctl: close: %w", err)
	}
	return nil
}

// command sends cmd and returns hostapd's single-datagram reply, trimmed of
// trailing newline. Every ctrl_iface command this package issues gets back
// either "OK" or "FAIL" (possibly followed by a reason), never a multi-line
// response.
func (c *Client) command(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrClosed
	}

	deadline := time.Now().Add(cmdTimeout)
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return "", fmt.Errorf("hostapdctl: set write deadline: %w", err)
	}
	if _, err := c.conn.Write([]byte(cmd)); err != nil {
		return "", fmt.Errorf("hostapdctl: send %q: %w", cmd, err)
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return "", fmt.Errorf("hostapdctl: set read deadline: %w", err)
	}
	buf := make([]byte, 4096)
	n, err := c.conn.Read(buf)
	if err != nil {
		return "", fmt.Errorf("hostapdctl: read reply to %q: %w", cmd, err)
	}

	return strings.TrimSpace(string(buf[:n])), nil
}

// commandOK issues cmd and turns anything but an "OK" reply into an error.
func (c *Client) commandOK(cmd string) error {
	reply, err := c.command(cmd)
	if err != nil {
		return err
	}
	if reply != "OK" {
		return fmt.Errorf("hostapdctl: %q: unexpected reply %q", cmd, reply)
	}
	return nil
}

// BlacklistAdd implements steering.APStack via hostapd's MAC deny list.
func (c *Client) BlacklistAdd(addr steering.MAC) error {
	return c.commandOK("DENY_ACL ADD_MAC " + addr.String())
}

// BlacklistRemove implements steering.APStack via hostapd's MAC deny list.
func (c *Client) BlacklistRemove(addr steering.MAC) error {
	return c.commandOK("DENY_ACL DEL_MAC " + addr.String())
}

// Disassociate implements steering.APStack with a hard disassociation.
func (c *Client) Disassociate(addr steering.MAC) error {
	return c.commandOK("DISASSOCIATE " + addr.String())
}

// SendBTMRequest implements steering.APStack with an 802.11v BSS Transition
// Management request naming candidateBSSID as the sole preferred neighbor,
// zero transition timeout (leave immediately, no grace period).
func (c *Client) SendBTMRequest(addr, candidateBSSID steering.MAC, candidateChannel uint8) error {
	cmd := fmt.Sprintf("BSS_TM_REQ %s pref=1 neighbor=%s,0,%d,0,0",
		addr.String(), candidateBSSID.String(), candidateChannel)
	return c.commandOK(cmd)
}

var _ steering.APStack = (*Client)(nil)
