package quant

import (
	"image"
	"image/draw"
	"math"
	"testing"

	xdraw "golang.org/x/image/draw"
)

// cpuBilinearResize mirrors resize.wgsl's half-pixel-center bilinear filter
// on the CPU. The tests below check it against x/image/draw on an identity
// scale and check its output size; no test here runs the GPU Resize module.
func cpuBilinearResize(img *Image, dstW, dstH int) []WorkingPixel {
	srcW, srcH := img.Width, img.Height
	src := make([]WorkingPixel, srcW*srcH)
	for i, p := range img.Pixels {
		src[i] = WorkingPixel{X: float32(p.R), Y: float32(p.G), Z: float32(p.B), W: 1}
	}
	sample := func(x, y int) WorkingPixel {
		if x < 0 {
			x = 0
		}
		if x > srcW-1 {
			x = srcW - 1
		}
		if y < 0 {
			y = 0
		}
		if y > srcH-1 {
			y = srcH - 1
		}
		return src[y*srcW+x]
	}
	mix := func(a, b WorkingPixel, t float32) WorkingPixel {
		return WorkingPixel{
			X: a.X + (b.X-a.X)*t,
			Y: a.Y + (b.Y-a.Y)*t,
			Z: a.Z + (b.Z-a.Z)*t,
			W: a.W + (b.W-a.W)*t,
		}
	}

	scaleX := float32(srcW) / float32(dstW)
	scaleY := float32(srcH) / float32(dstH)
	out := make([]WorkingPixel, dstW*dstH)
	for gy := 0; gy < dstH; gy++ {
		for gx := 0; gx < dstW; gx++ {
			sx := (float32(gx)+0.5)*scaleX - 0.5
			sy := (float32(gy)+0.5)*scaleY - 0.5
			x0 := int(math.Floor(float64(sx)))
			y0 := int(math.Floor(float64(sy)))
			fx := sx - float32(x0)
			fy := sy - float32(y0)

			c00, c10 := sample(x0, y0), sample(x0+1, y0)
			c01, c11 := sample(x0, y0+1), sample(x0+1, y0+1)
			top := mix(c00, c10, fx)
			bottom := mix(c01, c11, fx)
			out[gy*dstW+gx] = mix(top, bottom, fy)
		}
	}
	return out
}

func TestCPUBilinearResizeMatchesXImageDrawOnIdentityScale(t *testing.T) {
	img := checkerboard(8, 8)

	got := cpuBilinearResize(img, 8, 8)
	for i, p := range img.Pixels {
		w := got[i]
		if math.Abs(float64(w.X)-float64(p.R)) > 0.01 ||
			math.Abs(float64(w.Y)-float64(p.G)) > 0.01 ||
			math.Abs(float64(w.Z)-float64(p.B)) > 0.01 {
			t.Fatalf("identity-scale resize changed pixel %d: got %+v, want %+v", i, w, p)
		}
	}

	// Cross-check against x/image/draw's bilinear scaler as an independent
	// oracle: an identity-scale draw must reproduce the source exactly too.
	src := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for i, p := range img.Pixels {
		off := i * 4
		src.Pix[off+0], src.Pix[off+1], src.Pix[off+2], src.Pix[off+3] = p.R, p.G, p.B, p.A
	}
	dst := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	for i := range src.Pix {
		if dst.Pix[i] != src.Pix[i] {
			t.Fatalf("x/image/draw identity scale mismatch at byte %d: got %d, want %d", i, dst.Pix[i], src.Pix[i])
		}
	}
}

func TestCPUBilinearResizeHalvesDimensions(t *testing.T) {
	img := checkerboard(16, 16)
	out := cpuBilinearResize(img, 8, 8)
	if len(out) != 64 {
		t.Fatalf("got %d samples, want 64", len(out))
	}
}
