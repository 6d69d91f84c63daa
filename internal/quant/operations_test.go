//go:build !nogpu

package quant

import (
	"testing"
)

// P1: applying find twice with the same palette yields pixel-identical
// results — once a pixel is replaced by its nearest palette entry, a second
// pass finds the same entry again at distance zero.
func TestFindIsIdempotent(t *testing.T) {
	p := testProcessor(t)
	defer p.Close()

	img := checkerboard(16, 16)
	colors := []Pixel{
		{R: 20, G: 20, B: 200, A: 255},
		{R: 230, G: 200, B: 30, A: 255},
	}

	once, err := p.Find(img, colors, ReduceModeReplace)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	twice, err := p.Find(once, colors, ReduceModeReplace)
	if err != nil {
		t.Fatalf("Find (second pass): %v", err)
	}
	for i := range once.Pixels {
		if once.Pixels[i] != twice.Pixels[i] {
			t.Fatalf("pixel %d changed on second find: %+v -> %+v", i, once.Pixels[i], twice.Pixels[i])
		}
	}
}

// P2: every pixel of reduce(K, I, algo, Replace) equals some entry of the
// palette returned alongside it.
func TestReducePixelsAreFromPalette(t *testing.T) {
	p := testProcessor(t)
	defer p.Close()

	img := checkerboard(32, 32)
	for _, algo := range []Algorithm{AlgorithmKmeans, AlgorithmOctree} {
		out, colors, err := p.Reduce(4, img, algo, ReduceModeReplace)
		if err != nil {
			t.Fatalf("Reduce(%s): %v", algo, err)
		}
		set := make(map[Pixel]bool, len(colors))
		for _, c := range colors {
			set[c] = true
		}
		for i, px := range out.Pixels {
			rgbOnly := Pixel{R: px.R, G: px.G, B: px.B, A: px.A}
			if !set[rgbOnly] {
				t.Fatalf("%s: output pixel %d = %+v is not in the returned palette", algo, i, px)
			}
		}
	}
}

// P3: the returned palette never exceeds K entries for either algorithm.
func TestPaletteCardinality(t *testing.T) {
	p := testProcessor(t)
	defer p.Close()

	img := checkerboard(32, 32)
	for _, algo := range []Algorithm{AlgorithmKmeans, AlgorithmOctree} {
		const k = 5
		colors, err := p.Palette(k, img, algo)
		if err != nil {
			t.Fatalf("Palette(%s): %v", algo, err)
		}
		if len(colors) > k {
			t.Fatalf("%s: got %d colors, want <= %d", algo, len(colors), k)
		}
	}
}

// S1: a 2x1 image of two maximally distinct colors quantized to K=2 via
// Kmeans/Replace reproduces the input exactly — each pixel is its own
// cluster.
func TestTwoPixelTwoClusters(t *testing.T) {
	p := testProcessor(t)
	defer p.Close()

	img := &Image{Width: 2, Height: 1, Pixels: []Pixel{
		{R: 255, G: 0, B: 0, A: 255},
		{R: 0, G: 0, B: 255, A: 255},
	}}

	out, _, err := p.Reduce(2, img, AlgorithmKmeans, ReduceModeReplace)
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	for i, px := range out.Pixels {
		if px != img.Pixels[i] {
			t.Fatalf("pixel %d: got %+v, want %+v", i, px, img.Pixels[i])
		}
	}
}

// S4: find on a single dark-gray pixel against a black/white palette picks
// black, since it is nearer in Lab lightness.
func TestFindPicksNearerInLab(t *testing.T) {
	p := testProcessor(t)
	defer p.Close()

	img := &Image{Width: 1, Height: 1, Pixels: []Pixel{{R: 10, G: 20, B: 30, A: 255}}}
	palette := []Pixel{
		{R: 0, G: 0, B: 0, A: 255},
		{R: 255, G: 255, B: 255, A: 255},
	}

	out, err := p.Find(img, palette, ReduceModeReplace)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	want := Pixel{R: 0, G: 0, B: 0, A: 255}
	if out.Pixels[0] != want {
		t.Fatalf("got %+v, want %+v", out.Pixels[0], want)
	}
}

// Dither and Meld must each require at least two palette colors, per
// ReduceMode.RequiresMinimumTwoColors.
func TestFindRejectsSingleColorDitherMeld(t *testing.T) {
	p := testProcessor(t)
	defer p.Close()

	img := checkerboard(8, 8)
	single := []Pixel{{R: 1, G: 2, B: 3, A: 255}}

	for _, mode := range []ReduceMode{ReduceModeDither, ReduceModeMeld} {
		if _, err := p.Find(img, single, mode); err == nil {
			t.Errorf("%s: expected error for single-color palette, got nil", mode)
		}
	}
}
