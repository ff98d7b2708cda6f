package vnc

import "slices"

// pendingState is the progress of a pixel format switch.
type pendingState int

const (
	pendingNone pendingState = iota
	pendingAwaitingFenceAck
	pendingAwaitingUpdateBoundary
)

func (s pendingState) String() string {
	switch s {
	case pendingAwaitingFenceAck:
		return "awaiting fence ack"
	case pendingAwaitingUpdateBoundary:
		return "awaiting update boundary"
	}
	return "none"
}

// formatNegotiator holds the desired wire format and encoding list against
// the active ones and carries at most one format switch at a time.
type formatNegotiator struct {
	desired        PixelFormat
	formatChange   bool
	encodingChange bool
	lastEncodings  []EncodingType

	state     pendingState
	pendingPF PixelFormat
}

// want records a new desired format. While a switch is pending the request is
// coalesced into it; the latest value is renegotiated once it commits.
func (n *formatNegotiator) want(pf, active PixelFormat) {
	n.desired = pf
	n.formatChange = n.state != pendingNone || !pf.Equal(active)
}

// begin moves the desired format into the pending slot.
func (n *formatNegotiator) begin(fenced bool) PixelFormat {
	n.pendingPF = n.desired
	n.formatChange = false
	if fenced {
		n.state = pendingAwaitingFenceAck
	} else {
		n.state = pendingAwaitingUpdateBoundary
	}
	return n.pendingPF
}

// commit finishes the pending switch and returns the format to make active.
// formatChange is left set if the desired format moved on meanwhile.
func (n *formatNegotiator) commit(pf PixelFormat) PixelFormat {
	n.state = pendingNone
	n.pendingPF = PixelFormat{}
	n.formatChange = !n.desired.Equal(pf)
	return pf
}

// encodingsFor returns the list to send, or nil when the server already has it.
func (n *formatNegotiator) encodingsFor(list []EncodingType) []EncodingType {
	if !n.encodingChange && slices.Equal(list, n.lastEncodings) {
		return nil
	}
	n.encodingChange = false
	n.lastEncodings = list
	return list
}

func (n *formatNegotiator) reset() {
	*n = formatNegotiator{}
}
