//go:build linux

package simdriver

// 75% SMPTE bars in BT.601 studio range, left to right.
var bars = [8][3]byte{
	{180, 128, 128}, // white
	{162, 44, 142},  // yellow
	{131, 156, 44},  // cyan
	{112, 72, 58},   // green
	{84, 184, 198},  // magenta
	{65, 100, 212},  // red
	{35, 212, 114},  // blue
	{16, 128, 128},  // black
}

// FillColorBars writes YUYV color bars into buf. A one-pixel luma marker
// scrolls along the bottom row with frame so consecutive frames differ.
func FillColorBars(buf []byte, width, height, frame int) {
	if width < 2 || height < 1 {
		return
	}
	stride := width * 2
	barWidth := max(width/len(bars), 1)

	for y := 0; y < height; y++ {
		row := y * stride
		if row+stride > len(buf) {
			return
		}
		for x := 0; x+1 < width; x += 2 {
			bar := bars[min(x/barWidth, len(bars)-1)]
			off := row + x*2
			buf[off] = bar[0]
			buf[off+1] = bar[1]
			buf[off+2] = bar[0]
			buf[off+3] = bar[2]
		}
	}

	marker := (height-1)*stride + (frame%width)*2
	if marker < len(buf) {
		buf[marker] = 235
	}
}
