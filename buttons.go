package vnc

// Button represents a mask of pointer presses/releases.
type Button uint8

// All available button mask components.
const (
	BtnLeft Button = 1 << iota
	BtnMiddle
	BtnRight
	BtnFour
	BtnFive
	BtnSix
	BtnSeven
	BtnEight
	BtnNone Button = 0
)

// Mask combines pressed buttons into a PointerEvent button mask.
func Mask(buttons ...Button) uint8 {
	var m Button
	for _, b := range buttons {
		m |= b
	}
	return uint8(m)
}
