package main

import (
	"testing"

	"github.com/gogpu/quant/internal/quant"
)

func TestValidateK(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"1", false},
		{"150", false},
		{"abs", true},
		{"0", true},
		{"-5", true},
	}
	for _, tt := range tests {
		_, err := validateK(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateK(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestValidateFilename(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"jog.png", false},
		{"jog.jpg", false},
		{"jog.JPEG", false},
		{"jog.pom", true},
		{".png", true},
	}
	for _, tt := range tests {
		err := validateFilename(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateFilename(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
}

func TestParseHexColors(t *testing.T) {
	colors, err := parsePalette("#ffffff,#000000")
	if err != nil {
		t.Fatalf("parsePalette: %v", err)
	}
	want := []quant.Pixel{
		{R: 0xff, G: 0xff, B: 0xff, A: 255},
		{R: 0x00, G: 0x00, B: 0x00, A: 255},
	}
	if len(colors) != len(want) {
		t.Fatalf("got %d colors, want %d", len(colors), len(want))
	}
	for i := range want {
		if colors[i] != want[i] {
			t.Errorf("colors[%d] = %+v, want %+v", i, colors[i], want[i])
		}
	}
}

func TestValidatePalette(t *testing.T) {
	if _, err := parsePalette("#ffffff,#000000"); err != nil {
		t.Errorf("expected valid hex list to parse, got %v", err)
	}
	if _, err := parsePalette("#ffffff#000000"); err == nil {
		t.Error("expected malformed hex list to be rejected")
	}
	if _, err := parsePalette(""); err == nil {
		t.Error("expected empty palette string to be rejected")
	}
}

func TestPaletteOutputName(t *testing.T) {
	got := paletteOutputName("cat.png", "", 8, quant.AlgorithmKmeans)
	want := "cat-palette-c8-kmeans.png"
	if got != want {
		t.Errorf("paletteOutputName = %q, want %q", got, want)
	}

	got = paletteOutputName("cat.png", "out.png", 8, quant.AlgorithmKmeans)
	if got != "out.png" {
		t.Errorf("paletteOutputName with explicit output = %q, want %q", got, "out.png")
	}
}

func TestReduceOutputName(t *testing.T) {
	got := reduceOutputName("cat.png", "", 8, quant.AlgorithmOctree, quant.ReduceModeDither)
	want := "cat-reduce-c8-octree-dither.png"
	if got != want {
		t.Errorf("reduceOutputName = %q, want %q", got, want)
	}

	got = reduceOutputName("cat.jpg", "", 4, quant.AlgorithmKmeans, quant.ReduceModeReplace)
	want = "cat-reduce-c4-kmeans.jpg"
	if got != want {
		t.Errorf("reduceOutputName (replace mode has no suffix) = %q, want %q", got, want)
	}
}

// P9: parsing a hex list then re-serializing each color with Pixel.Hex
// reproduces the original string, uppercased.
func TestHexRoundTrip(t *testing.T) {
	const in = "#ffffff,#000000,#1a2b3c"
	colors, err := parsePalette(in)
	if err != nil {
		t.Fatalf("parsePalette: %v", err)
	}
	got := paletteHexLine(colors)
	want := "#FFFFFF,#000000,#1A2B3C"
	if got != want {
		t.Errorf("round trip = %q, want %q", got, want)
	}
}

func TestPaletteTileImage(t *testing.T) {
	colors := []quant.Pixel{{R: 1}, {R: 2}, {R: 3}}
	img := paletteTileImage(colors, 10)
	if img.Width != 30 || img.Height != 10 {
		t.Fatalf("got %dx%d, want 30x10", img.Width, img.Height)
	}
	if img.At(5, 5).R != 1 || img.At(15, 5).R != 2 || img.At(25, 5).R != 3 {
		t.Error("tile columns do not map to the expected palette entries")
	}
}
