package game

import rl "github.com/gen2brain/raylib-go/raylib"

// groupPalette cycles through distinct colors per group id.
var groupPalette = []rl.Color{
	rl.NewColor(102, 191, 255, 255),
	rl.NewColor(253, 249, 114, 255),
	rl.NewColor(230, 108, 178, 255),
	rl.NewColor(132, 222, 132, 255),
	rl.NewColor(255, 161, 90, 255),
	rl.NewColor(200, 160, 255, 255),
}

// GroupColor returns the render color for a group id.
func GroupColor(group uint32) rl.Color {
	return groupPalette[int(group)%len(groupPalette)]
}

// GroupColorHex returns the palette entry as a hex string for
// trajectory metadata.
func GroupColorHex(group uint32) string {
	c := GroupColor(group)
	const digits = "0123456789abcdef"
	out := make([]byte, 7)
	out[0] = '#'
	for i, b := range []uint8{c.R, c.G, c.B} {
		out[1+i*2] = digits[b>>4]
		out[2+i*2] = digits[b&0xf]
	}
	return string(out)
}
