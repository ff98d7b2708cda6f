package vnc

// ServerInit is the server's description of the desktop sent during the handshake.
type ServerInit struct {
	FBWidth, FBHeight uint16
	PixelFormat       PixelFormat
	NameLength        uint32
	NameText          []byte
}

// Capabilities is the negotiated state of a session.
// The client side flags are always advertised; the Server fields record
// what the server has shown it actually implements.
type Capabilities struct {
	Width, Height int
	Name          string
	PixelFormat   PixelFormat
	Screens       ScreenSet
	LEDState      uint8

	SupportsLocalCursor           bool
	SupportsDesktopResize         bool
	SupportsExtendedDesktopResize bool
	SupportsDesktopRename         bool
	SupportsLEDState              bool
	SupportsFence                 bool
	SupportsContinuousUpdates     bool

	ServerSupportsFence             bool
	ServerSupportsContinuousUpdates bool
	ServerSupportsQEMUKeyEvent      bool
	// FenceConfirmed is set once the server echoed the capability check.
	FenceConfirmed bool
}

func newCapabilities() Capabilities {
	return Capabilities{
		SupportsLocalCursor:           true,
		SupportsDesktopResize:         true,
		SupportsExtendedDesktopResize: true,
		SupportsDesktopRename:         true,
		SupportsLEDState:              true,
		SupportsFence:                 true,
		SupportsContinuousUpdates:     true,
	}
}

// clone returns a copy that shares no memory with c.
func (c *Capabilities) clone() Capabilities {
	out := *c
	if c.Screens != nil {
		out.Screens = append(ScreenSet(nil), c.Screens...)
	}
	return out
}

// encodings returns the list sent with SetEncodings: pseudo-encodings the
// client is prepared to handle first, then data encodings by preference.
func (c *Capabilities) encodings() []EncodingType {
	var list []EncodingType
	if c.SupportsLocalCursor {
		list = append(list, EncCursorWithAlphaPseudo, EncCursorPseudo, EncXCursorPseudo)
	}
	if c.SupportsDesktopResize {
		list = append(list, EncDesktopSizePseudo)
	}
	if c.SupportsExtendedDesktopResize {
		list = append(list, EncExtendedDesktopSizePseudo)
	}
	if c.SupportsDesktopRename {
		list = append(list, EncDesktopNamePseudo)
	}
	if c.SupportsLEDState {
		list = append(list, EncLEDStatePseudo)
	}
	list = append(list, EncLastRectPseudo)
	if c.SupportsContinuousUpdates {
		list = append(list, EncContinuousUpdatesPseudo)
	}
	if c.SupportsFence {
		list = append(list, EncFencePseudo)
	}
	list = append(list, EncQEMUExtendedKeyEventPseudo)
	for _, enc := range dataEncodings {
		list = append(list, enc.Type())
	}
	return list
}
