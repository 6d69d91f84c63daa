package color

import "testing"

// srgbByteToLab converts an 8-bit sRGB triple through the full
// sRGB -> linear -> XYZ -> Lab chain, the same path the ColorConverter
// compute module takes when the working color space is Lab.
func srgbByteToLab(r, g, b uint8) Lab {
	lr := SRGBToLinear(float32(r) / 255.0)
	lg := SRGBToLinear(float32(g) / 255.0)
	lb := SRGBToLinear(float32(b) / 255.0)
	return SRGBToLab(lr, lg, lb)
}

func TestLabRoundTrip(t *testing.T) {
	cases := []struct{ r, g, b uint8 }{
		{0, 0, 0}, {255, 255, 255}, {255, 0, 0}, {0, 255, 0}, {0, 0, 255},
		{128, 64, 192}, {10, 20, 30},
	}
	for _, c := range cases {
		lab := srgbByteToLab(c.r, c.g, c.b)
		r, g, b := LabToSRGB(lab)

		got := F32ToU8(ColorF32{R: LinearToSRGB(r), G: LinearToSRGB(g), B: LinearToSRGB(b), A: 1})
		if got.R != c.r || got.G != c.g || got.B != c.b {
			t.Errorf("round trip (%d,%d,%d) -> %v -> (%d,%d,%d)", c.r, c.g, c.b, lab, got.R, got.G, got.B)
		}
	}
}

// TestCIE94RedOrange checks CIE94([255,0,0], [255,128,0]) in Lab is
// approximately 19.094658, within 0.01.
func TestCIE94RedOrange(t *testing.T) {
	a := srgbByteToLab(255, 0, 0)
	b := srgbByteToLab(255, 128, 0)

	got := CIE94(a, b)
	want := float32(19.094658)
	if !floatNear(got, want, 0.01) {
		t.Errorf("CIE94(red, orange) = %v, want %v +/- 0.01", got, want)
	}
}

// TestCIE2000ExactLabVectors checks an exact Lab pair with no sRGB round
// trip involved.
func TestCIE2000ExactLabVectors(t *testing.T) {
	a := Lab{L: 50, A: 2.6772, B: -79.7751}
	b := Lab{L: 50, A: 0, B: -82.7485}

	got := CIE2000(a, b)
	want := float32(2.0424595)
	if !floatNear(got, want, 0.01) {
		t.Errorf("CIE2000(exact Lab pair) = %v, want %v +/- 0.01", got, want)
	}
}

// TestCIE2000RedOrange checks CIE2000([255,0,0], [255,128,0]) via Lab is
// approximately 21.164806.
func TestCIE2000RedOrange(t *testing.T) {
	a := srgbByteToLab(255, 0, 0)
	b := srgbByteToLab(255, 128, 0)

	got := CIE2000(a, b)
	want := float32(21.164806)
	if !floatNear(got, want, 0.01) {
		t.Errorf("CIE2000(red, orange) = %v, want %v +/- 0.01", got, want)
	}
}

func TestCIE76SquaredMatchesCIE76(t *testing.T) {
	a := Lab{L: 10, A: 20, B: -30}
	b := Lab{L: 15, A: 18, B: -25}

	sq := CIE76Squared(a, b)
	d := CIE76(a, b)
	if !floatNear(d*d, sq, 1e-3) {
		t.Errorf("CIE76^2 = %v, CIE76Squared = %v", d*d, sq)
	}
}

func TestCIE76ZeroForIdenticalColors(t *testing.T) {
	a := Lab{L: 42, A: -5, B: 5}
	if got := CIE76(a, a); got != 0 {
		t.Errorf("CIE76(a, a) = %v, want 0", got)
	}
	if got := CIE94(a, a); got != 0 {
		t.Errorf("CIE94(a, a) = %v, want 0", got)
	}
	if got := CIE2000(a, a); got != 0 {
		t.Errorf("CIE2000(a, a) = %v, want 0", got)
	}
}
