package vnc

import (
	"bytes"
	"fmt"
	"image/draw"
	"io"
	"sync"
)

// EncodingType represents a known VNC encoding type.
type EncodingType int32

const (
	EncRaw                        EncodingType = 0
	EncCopyRect                   EncodingType = 1
	EncRRE                        EncodingType = 2
	EncCursorPseudo               EncodingType = -239
	EncXCursorPseudo              EncodingType = -240
	EncDesktopSizePseudo          EncodingType = -223
	EncLastRectPseudo             EncodingType = -224
	EncQEMUExtendedKeyEventPseudo EncodingType = -258
	EncLEDStatePseudo             EncodingType = -261
	EncDesktopNamePseudo          EncodingType = -307
	EncExtendedDesktopSizePseudo  EncodingType = -308
	EncFencePseudo                EncodingType = -312
	EncContinuousUpdatesPseudo    EncodingType = -313
	EncCursorWithAlphaPseudo      EncodingType = -314
)

var encodingNames = map[EncodingType]string{
	EncRaw:                        "Raw",
	EncCopyRect:                   "CopyRect",
	EncRRE:                        "RRE",
	EncCursorPseudo:               "Cursor",
	EncXCursorPseudo:              "XCursor",
	EncDesktopSizePseudo:          "DesktopSize",
	EncLastRectPseudo:             "LastRect",
	EncQEMUExtendedKeyEventPseudo: "QEMUExtendedKeyEvent",
	EncLEDStatePseudo:             "LEDState",
	EncDesktopNamePseudo:          "DesktopName",
	EncExtendedDesktopSizePseudo:  "ExtendedDesktopSize",
	EncFencePseudo:                "Fence",
	EncContinuousUpdatesPseudo:    "ContinuousUpdates",
	EncCursorWithAlphaPseudo:      "CursorWithAlpha",
}

func (e EncodingType) String() string {
	if name, ok := encodingNames[e]; ok {
		return name
	}
	return fmt.Sprintf("EncodingType(%d)", int32(e))
}

// IsPseudo reports whether the encoding carries capability data rather than pixels.
func (e EncodingType) IsPseudo() bool {
	return e < 0
}

var bPool = sync.Pool{
	New: func() interface{} {
		// The Pool's New function should generally only return pointer
		// types, since a pointer can be put into the return interface
		// value without an allocation:
		return new(bytes.Buffer)
	},
}

// Encoding frames the payload of a rectangle on the wire.
// Read consumes exactly the rectangle's payload and returns it unparsed.
type Encoding interface {
	Type() EncodingType
	Read(r io.Reader, pf *PixelFormat, rect *Rectangle) ([]byte, error)
}

// DrawingEncoding is an Encoding whose payload can be painted onto an image.
type DrawingEncoding interface {
	Encoding
	Draw(dst draw.Image, pf *PixelFormat, rect *Rectangle, payload []byte) error
}

// dataEncodings lists the pixel encodings in decreasing preference.
var dataEncodings = []DrawingEncoding{
	&RawEncoding{},
	&CopyRectEncoding{},
	&RREEncoding{},
}

func lookupEncoding(t EncodingType) (DrawingEncoding, bool) {
	for _, enc := range dataEncodings {
		if enc.Type() == t {
			return enc, true
		}
	}
	return nil, false
}

// Limits on what a server may make the client buffer for one rectangle.
const (
	maxRectPayload = 1 << 28
	maxCursorSize  = 256
)

func readN(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
