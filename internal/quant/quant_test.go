//go:build !nogpu

package quant

import "testing"

// testProcessor acquires a real GPU device for integration-style tests,
// skipping gracefully when no adapter is available in the environment —
// mirrors internal/gpu/memory_test.go's testDevice helper.
func testProcessor(t *testing.T) *ImageProcessor {
	t.Helper()
	p, err := New()
	if err != nil {
		t.Skipf("quant: no GPU adapter available in this environment: %v", err)
	}
	return p
}

func checkerboard(w, h int) *Image {
	pixels := make([]Pixel, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/4+y/4)%2 == 0 {
				pixels[y*w+x] = Pixel{R: 20, G: 20, B: 200, A: 255}
			} else {
				pixels[y*w+x] = Pixel{R: 230, G: 200, B: 30, A: 255}
			}
		}
	}
	return &Image{Width: w, Height: h, Pixels: pixels}
}
