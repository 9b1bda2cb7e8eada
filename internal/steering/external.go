package steering

// APStack is the narrow set of calls this package needs from the
// surrounding access-point stack: local blacklist control and the two ways
// of moving a STA off this BSS. Everything else about STA and BSS
// management is out of scope; a concrete implementation adapts whatever
// local hostapd-equivalent control surface is available.
type APStack interface {
	// BlacklistAdd rejects further (re)association attempts from addr at
	// this BSS. A no-op is a valid implementation outside force mode.
	BlacklistAdd(addr MAC) error

	// BlacklistRemove reverses BlacklistAdd.
	BlacklistRemove(addr MAC) error

	// Disassociate hard-disconnects addr from this BSS immediately.
	Disassociate(addr MAC) error

	// SendBTMRequest issues an 802.11v BSS Transition Management request
	// steering addr toward candidate (typically the peer BSSID and
	// channel currently winning), with a zero transition timeout (leave
	// now, no grace period).
	SendBTMRequest(addr MAC, candidateBSSID MAC, candidateChannel uint8) error
}
