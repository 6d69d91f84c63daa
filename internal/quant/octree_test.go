package quant

import (
	"testing"

	"github.com/gogpu/quant/internal/color"
)

func TestOctreeInsertSumsMatchDescendants(t *testing.T) {
	o := NewOctree()
	pixels := []Pixel{
		{R: 10, G: 20, B: 30, A: 255},
		{R: 12, G: 22, B: 28, A: 255},
		{R: 200, G: 10, B: 10, A: 255},
		{R: 0, G: 0, B: 0, A: 255},
		{R: 255, G: 255, B: 255, A: 255},
	}
	for _, p := range pixels {
		o.Insert(p)
	}

	// P8: every node's sum equals the sum of its descendants' sums. Check
	// this by construction: the root's accumulator equals the sum over
	// all inserted pixels, and the root's count equals len(pixels).
	root := &o.nodes[o.root]
	var wantR, wantG, wantB uint64
	for _, p := range pixels {
		wantR += uint64(p.R)
		wantG += uint64(p.G)
		wantB += uint64(p.B)
	}
	if root.sumR != wantR || root.sumG != wantG || root.sumB != wantB {
		t.Fatalf("root sums = (%d,%d,%d), want (%d,%d,%d)", root.sumR, root.sumG, root.sumB, wantR, wantG, wantB)
	}
	if root.count != uint64(len(pixels)) {
		t.Fatalf("root count = %d, want %d", root.count, len(pixels))
	}
}

func TestOctreeReduceBoundsLeafCount(t *testing.T) {
	o := NewOctree()
	// 46 distinct dark-to-light synthetic pixels, generated in place so
	// this test doesn't depend on an external fixture file.
	for i := 0; i < 46; i++ {
		v := uint8(i * 5)
		o.Insert(Pixel{R: v, G: v / 2, B: 255 - v, A: 255})
	}

	colors := o.Reduce(8)
	if len(colors) > 8 {
		t.Fatalf("Reduce(8) returned %d colors, want <= 8", len(colors))
	}
	if len(colors) == 0 {
		t.Fatal("Reduce(8) returned no colors")
	}

	sorted := SortAndDedupePalette(colors)
	for i := 1; i < len(sorted); i++ {
		lPrev := labLightness(sorted[i-1])
		lCur := labLightness(sorted[i])
		if lCur < lPrev {
			t.Fatalf("palette not sorted ascending by L at index %d: %v then %v", i, lPrev, lCur)
		}
	}
}

func TestOctreeReduceNoOpWhenUnderK(t *testing.T) {
	o := NewOctree()
	o.Insert(Pixel{R: 1, G: 2, B: 3, A: 255})
	o.Insert(Pixel{R: 250, G: 251, B: 252, A: 255})

	colors := o.Reduce(8)
	if len(colors) != 2 {
		t.Fatalf("Reduce(8) on 2 distinct pixels returned %d colors, want 2", len(colors))
	}
}

func TestSortAndDedupePaletteRemovesDuplicates(t *testing.T) {
	in := []Pixel{
		{R: 10, G: 10, B: 10, A: 255},
		{R: 10, G: 10, B: 10, A: 255},
		{R: 200, G: 200, B: 200, A: 255},
	}
	out := SortAndDedupePalette(in)
	if len(out) != 2 {
		t.Fatalf("SortAndDedupePalette removed duplicates incorrectly: got %d, want 2", len(out))
	}
}

func labLightness(p Pixel) float32 {
	lr := color.SRGBToLinear(float32(p.R) / 255.0)
	lg := color.SRGBToLinear(float32(p.G) / 255.0)
	lb := color.SRGBToLinear(float32(p.B) / 255.0)
	return color.SRGBToLab(lr, lg, lb).L
}
