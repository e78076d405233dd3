package rudp

import "fmt"

// State is a connection's position in the handshake/teardown lifecycle.
//
//	initiator: CLOSED → SYN_SENT → ESTABLISHED → FIN_SENT → CLOSED
//	responder: LISTEN → SYN_RECEIVED → ESTABLISHED → FIN_RECEIVED → CLOSED
//
// Either role may take the FIN_SENT or FIN_RECEIVED branch depending on who
// closes first.
type State uint8

const (
	StateClosed State = iota
	StateListen
	StateSynSent
	StateSynReceived
	StateEstablished
	StateFinSent
	StateFinReceived
)

var stateNames = [...]string{
	StateClosed:      "CLOSED",
	StateListen:      "LISTEN",
	StateSynSent:     "SYN_SENT",
	StateSynReceived: "SYN_RECEIVED",
	StateEstablished: "ESTABLISHED",
	StateFinSent:     "FIN_SENT",
	StateFinReceived: "FIN_RECEIVED",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}
