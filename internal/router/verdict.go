package router

import "fmt"

// Action is the terminal state a frame reached.
type Action int

const (
	// Dropped means nothing was transmitted for the frame.
	Dropped Action = iota
	// Sent means a frame (forwarded or generated) left the router.
	Sent
	// Queued means the frame waits for ARP resolution of its next hop.
	Queued
	// Absorbed means the frame only updated router state.
	Absorbed
)

func (a Action) String() string {
	switch a {
	case Dropped:
		return "dropped"
	case Sent:
		return "sent"
	case Queued:
		return "queued"
	case Absorbed:
		return "absorbed"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Reasons reported with a Verdict. They double as metric label values.
const (
	ReasonForwarded       = "forward"
	ReasonEchoReply       = "echo_reply"
	ReasonTimeExceeded    = "time_exceeded"
	ReasonDestUnreachable = "dest_unreachable"
	ReasonARPReply        = "arp_reply"
	ReasonARPResolve      = "arp_resolve"
	ReasonARPLearned      = "arp_learned"
	ReasonMalformed       = "malformed"
	ReasonBadChecksum     = "bad_checksum"
	ReasonUnsupported     = "unsupported"
	ReasonICMPNotEcho     = "icmp_not_echo"
)

// Verdict describes what happened to one frame.
type Verdict struct {
	Action    Action
	Reason    string
	Interface int // egress interface for Sent and Queued
}

func (v Verdict) String() string {
	if v.Action == Sent || v.Action == Queued {
		return fmt.Sprintf("%s(%s) dev %d", v.Action, v.Reason, v.Interface)
	}
	return fmt.Sprintf("%s(%s)", v.Action, v.Reason)
}

func dropped(reason string) Verdict {
	return Verdict{Action: Dropped, Reason: reason, Interface: -1}
}
