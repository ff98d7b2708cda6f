package vnc

// updateScheduler keeps at most one FramebufferUpdateRequest in flight.
type updateScheduler struct {
	requestOutstanding bool
	forceFullFrame     bool
	continuous         bool
	firstFrameReceived bool
}

func newUpdateScheduler() updateScheduler {
	return updateScheduler{forceFullFrame: true}
}

// shouldRequest reports whether a request may be issued now. Continuous
// mode needs no explicit requests except a forced full frame.
func (s *updateScheduler) shouldRequest() bool {
	return s.forceFullFrame || (!s.continuous && !s.requestOutstanding)
}

// issue builds the next request for a fb of the given size and marks it outstanding.
func (s *updateScheduler) issue(width, height int) (*FramebufferUpdateRequest, error) {
	if s.requestOutstanding && !s.forceFullFrame {
		return nil, internalErrorf("update request", "request issued while another is outstanding")
	}
	req := &FramebufferUpdateRequest{
		Inc:    1,
		Width:  uint16(width),
		Height: uint16(height),
	}
	if s.forceFullFrame {
		req.Inc = 0
		s.forceFullFrame = false
	}
	s.requestOutstanding = true
	return req, nil
}

// updateStarted is called when the server starts answering the request.
func (s *updateScheduler) updateStarted() {
	s.requestOutstanding = false
}

// updateEnded returns true only for the first completed update of the connection.
func (s *updateScheduler) updateEnded() bool {
	first := !s.firstFrameReceived
	s.firstFrameReceived = true
	return first
}

func (s *updateScheduler) reset() {
	*s = newUpdateScheduler()
}
