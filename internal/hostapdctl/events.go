package hostapdctl

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/cococorp/steerd/internal/steering"
)

// EventHandler receives unsolicited hostapd notifications translated into
// steering's event-ingress vocabulary. Callers normally wire these straight
// to a Coordinator's OnAssociation/OnDisassociation/OnProbeRequest.
type EventHandler struct {
	OnStationConnected    func(addr steering.MAC, supportsBTM bool)
	OnStationDisconnected func(addr steering.MAC)
	OnProbeRequest        func(addr, destBSSID steering.MAC, rssi int)
}

// EventListener subscribes to one BSS's unsolicited hostapd ctrl_iface
// events over a second socket, separate from Client's command socket, the
// same split the real hostapd_cli and wpa_cli tools use: one fd for
// synchronous commands, one ATTACH'd fd for the async stream.
type EventListener struct {
	conn      *net.UnixConn
	localPath string
	handler   EventHandler
	logger    *slog.Logger
}

// statusPattern matches the unsolicited messages this package cares about.
// hostapd prefixes every unsolicited line with its priority in angle
// brackets (e.g. "<3>AP-STA-CONNECTED ..."), which the regexp strips by
// anchoring past it rather than matching it.
var statusPattern = regexp.MustCompile(
	`^(?:<\d+>)?(AP-STA-CONNECTED|AP-STA-DISCONNECTED|RX-PROBE-REQUEST)(.*)$`)

var kvPattern = regexp.MustCompile(`(\w+)=(\S+)`)

// DialEvents opens the ATTACH'd event socket for one BSS and sends the
// ATTACH command that puts hostapd's ctrl_iface into unsolicited-message
// mode for this client.
func DialEvents(runDir, bssIface string, handler EventHandler, logger *slog.Logger) (*EventListener, error) {
	remotePath := filepath.Join(runDir, bssIface)
	localPath := filepath.Join(os.TempDir(), fmt.Sprintf("steerd-%s-events-%d.sock", bssIface, os.Getpid()))
	_ = os.Remove(localPath)

	laddr := &net.UnixAddr{Name: localPath, Net: "unixgram"}
	raddr := &net.UnixAddr{Name: remotePath, Net: "unixgram"}

	conn, err := net.DialUnix("unixgram", laddr, raddr)
	if err != nil {
		return nil, fmt.Errorf("hostapdctl: dial events %s: %w", remotePath, err)
	}

	if _, err := conn.Write([]byte("ATTACH")); err != nil {
		_ = conn.Close()
		_ = os.Remove(localPath)
		return nil, fmt.Errorf("hostapdctl: attach %s: %w", remotePath, err)
	}

	buf := make([]byte, 64)
	n, err := conn.Read(buf)
	if err != nil || strings.TrimSpace(string(buf[:n])) != "OK" {
		_ = conn.Close()
		_ = os.Remove(localPath)
		return nil, fmt.Errorf("hostapdctl: attach %s: unexpected reply", remotePath)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &EventListener{conn: conn, localPath: localPath, handler: handler, logger: logger}, nil
}

// Close detaches and releases the event socket.
func (l *EventListener) Close() error {
	_, _ = l.conn.Write([]byte("DETACH"))
	err := l.conn.Close()
	_ = os.Remove(l.localPath)
	if err != nil {
		return fmt.Errorf("hostapdctl: close events: %w", err)
	}
	return nil
}

// Run reads hostapd's unsolicited message stream until the socket is
// closed (normally by Close, called from the owning goroutine's shutdown
// path). It never returns a non-nil error on an expected close.
func (l *EventListener) Run() error {
	buf := make([]byte, 4096)
	for {
		n, err := l.conn.Read(buf)
		if err != nil {
			if errIsClosed(err) {
				return nil
			}
			return fmt.Errorf("hostapdctl: read event: %w", err)
		}
		l.dispatch(string(buf[:n]))
	}
}

func errIsClosed(err error) bool {
	return strings.Contains(err.Error(), "use of closed network connection")
}

func (l *EventListener) dispatch(line string) {
	m := statusPattern.FindStringSubmatch(line)
	if m == nil {
		return
	}

	event, rest := m[1], m[2]
	fields := parseKV(rest)

	switch event {
	case "AP-STA-CONNECTED":
		addr, ok := parseLeadingMAC(rest)
		if !ok {
			l.logger.Warn("malformed AP-STA-CONNECTED line", slog.String("line", line))
			return
		}
		if l.handler.OnStationConnected != nil {
			l.handler.OnStationConnected(addr, fields["ext_capab"] != "" || fields["btm"] == "1")
		}

	case "AP-STA-DISCONNECTED":
		addr, ok := parseLeadingMAC(rest)
		if !ok {
			l.logger.Warn("malformed AP-STA-DISCONNECTED line", slog.String("line", line))
			return
		}
		if l.handler.OnStationDisconnected != nil {
			l.handler.OnStationDisconnected(addr)
		}

	case "RX-PROBE-REQUEST":
		sa, ok := parseMACField(fields, "sa")
		if !ok {
			l.logger.Warn("malformed RX-PROBE-REQUEST line, missing sa=", slog.String("line", line))
			return
		}
		da, _ := parseMACField(fields, "da")
		rssi := 0
		if v, ok := fields["signal"]; ok {
			if parsed, err := strconv.Atoi(v); err == nil {
				rssi = parsed
			}
		}
		if l.handler.OnProbeRequest != nil {
			l.handler.OnProbeRequest(sa, da, rssi)
		}
	}
}

// parseLeadingMAC extracts the bare MAC address hostapd puts right after
// the event name for AP-STA-CONNECTED/AP-STA-DISCONNECTED, e.g.
// " aa:bb:cc:dd:ee:ff".
func parseLeadingMAC(rest string) (steering.MAC, bool) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return steering.MAC{}, false
	}
	addr, err := steering.ParseMAC(fields[0])
	if err != nil {
		return steering.MAC{}, false
	}
	return addr, true
}

func parseMACField(fields map[string]string, key string) (steering.MAC, bool) {
	v, ok := fields[key]
	if !ok {
		return steering.MAC{}, false
	}
	addr, err := steering.ParseMAC(v)
	if err != nil {
		return steering.MAC{}, false
	}
	return addr, true
}

func parseKV(s string) map[string]string {
	out := make(map[string]string)
	for _, m := range kvPattern.FindAllStringSubmatch(s, -1) {
		out[m[1]] = m[2]
	}
	return out
}
