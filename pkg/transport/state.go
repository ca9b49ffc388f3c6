package transport

// ConnectionState tracks one stream call from dial to close. Once a call is
// torn down, streamCall.setState ignores further transitions.
type ConnectionState int

const (
	StateIdle       ConnectionState = iota
	StateConnecting                 // dialing the access point
	StateConnected                  // socket open, nothing written yet
	StateSent                       // command frame written, awaiting reply
	StateClosed
)

var connectionStateNames = [...]string{"IDLE", "CONNECTING", "CONNECTED", "SENT", "CLOSED"}

func (s ConnectionState) String() string {
	if s < 0 || int(s) >= len(connectionStateNames) {
		return "UNKNOWN"
	}
	return connectionStateNames[s]
}
