package vision

import "image/color"

// jet maps a value in [0,1] onto the blue-to-red jet colormap used for
// heatmap rendering.
func jet(v float64) color.RGBA {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	r := clampUnit(1.5 - abs(4*v-3))
	g := clampUnit(1.5 - abs(4*v-2))
	b := clampUnit(1.5 - abs(4*v-1))
	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 255}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
