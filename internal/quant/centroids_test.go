package quant

import (
	"encoding/binary"
	"testing"
)

func TestEmptyCentroidsDataLayout(t *testing.T) {
	data := emptyCentroidsData(3)
	if len(data) != centroidHeaderSize+3*centroidRecordSize {
		t.Fatalf("got %d bytes, want %d", len(data), centroidHeaderSize+3*centroidRecordSize)
	}
	if got := binary.LittleEndian.Uint32(data[0:4]); got != 3 {
		t.Errorf("header K = %d, want 3", got)
	}
	for _, b := range data[centroidHeaderSize:] {
		if b != 0 {
			t.Fatalf("expected zeroed records, found non-zero byte")
		}
	}
}

// pixelToWorkingSpace/workingSpaceToPixel must round trip an 8-bit sRGB
// pixel through both working spaces within integer rounding error.
func TestPixelWorkingSpaceRoundTrip(t *testing.T) {
	colors := []Pixel{
		{R: 0, G: 0, B: 0, A: 255},
		{R: 255, G: 255, B: 255, A: 255},
		{R: 128, G: 64, B: 200, A: 255},
		{R: 10, G: 200, B: 50, A: 255},
	}
	for _, space := range []ColorSpace{ColorSpaceRGB, ColorSpaceLab} {
		for _, c := range colors {
			wp := pixelToWorkingSpace(c, space)
			got := workingSpaceToPixel(wp, space)
			if absDiff(got.R, c.R) > 1 || absDiff(got.G, c.G) > 1 || absDiff(got.B, c.B) > 1 {
				t.Errorf("%s: round trip %+v -> %+v -> %+v, want within 1", space, c, wp, got)
			}
		}
	}
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
