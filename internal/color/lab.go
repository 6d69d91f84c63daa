package color

import "math"

// Lab represents a color in CIE L*a*b* space (D65 white point).
// L is in [0,100]; a and b are unbounded in principle but fall roughly in
// [-128,127] for colors reachable from sRGB.
type Lab struct {
	L, A, B float32
}

// d65 is the CIE standard illuminant D65 white point in XYZ, normalized so
// Y=1 (2 degree observer).
const (
	d65X = 0.95047
	d65Y = 1.00000
	d65Z = 1.08883
)

// sRGBToXYZ converts a linear-light sRGB color (not gamma-encoded) to CIE
// XYZ under the D65 white point, using the standard sRGB primary matrix.
func sRGBToXYZ(r, g, b float32) (x, y, z float32) {
	rf, gf, bf := float64(r), float64(g), float64(b)
	x = float32(0.4124564*rf + 0.3575761*gf + 0.1804375*bf)
	y = float32(0.2126729*rf + 0.7151522*gf + 0.0721750*bf)
	z = float32(0.0193339*rf + 0.1191920*gf + 0.9503041*bf)
	return x, y, z
}

// xyzToSRGB converts CIE XYZ (D65) back to linear-light sRGB via the
// inverse of the matrix used in sRGBToXYZ.
func xyzToSRGB(x, y, z float32) (r, g, b float32) {
	xf, yf, zf := float64(x), float64(y), float64(z)
	r = float32(3.2404542*xf - 1.5371385*yf - 0.4985314*zf)
	g = float32(-0.9692660*xf + 1.8760108*yf + 0.0415560*zf)
	b = float32(0.0556434*xf - 0.2040259*yf + 1.0572252*zf)
	return r, g, b
}

// labF is the nonlinear function CIE uses to go from a XYZ/whitepoint ratio
// to an Lab component, with the standard linear segment near zero.
func labF(t float32) float32 {
	const delta = 6.0 / 29.0
	if t > delta*delta*delta {
		return float32(math.Cbrt(float64(t)))
	}
	return t/(3*delta*delta) + 4.0/29.0
}

// labFInv is the inverse of labF.
func labFInv(t float32) float32 {
	const delta = 6.0 / 29.0
	if t > delta {
		return t * t * t
	}
	return 3 * delta * delta * (t - 4.0/29.0)
}

// SRGBToLab converts a linear-light sRGB color (e.g. the output of
// SRGBToLinear) to CIE L*a*b* (D65), via sRGB -> XYZ(D65) -> Lab.
func SRGBToLab(r, g, b float32) Lab {
	x, y, z := sRGBToXYZ(r, g, b)

	fx := labF(x / d65X)
	fy := labF(y / d65Y)
	fz := labF(z / d65Z)

	return Lab{
		L: 116*fy - 16,
		A: 500 * (fx - fy),
		B: 200 * (fy - fz),
	}
}

// LabToSRGB converts a CIE L*a*b* (D65) color back to linear-light sRGB.
func LabToSRGB(c Lab) (r, g, b float32) {
	fy := (c.L + 16) / 116
	fx := fy + c.A/500
	fz := fy - c.B/200

	x := labFInv(fx) * d65X
	y := labFInv(fy) * d65Y
	z := labFInv(fz) * d65Z

	return xyzToSRGB(x, y, z)
}

// CIE76 returns the Euclidean distance between two Lab colors (the simplest
// ΔE measure, equal to sqrt of the squared-distance used directly inside
// the FindCentroid/ChooseCentroid compute kernels).
func CIE76(a, b Lab) float32 {
	return float32(math.Sqrt(float64(CIE76Squared(a, b))))
}

// CIE76Squared returns the squared Euclidean distance between two Lab
// colors, avoiding the sqrt for callers (like FindCentroid's argmin search)
// that only need relative ordering.
func CIE76Squared(a, b Lab) float32 {
	dl := a.L - b.L
	da := a.A - b.A
	db := a.B - b.B
	return dl*dl + da*da + db*db
}

// CIE94 returns the CIE94 color difference between two Lab colors, using
// the default "graphic arts" application weighting (kL=kC=kH=1, K1=0.045,
// K2=0.015).
func CIE94(a, b Lab) float32 {
	const (
		kL, kC, kH = 1.0, 1.0, 1.0
		k1, k2     = 0.045, 0.015
	)

	c1 := float32(math.Sqrt(float64(a.A*a.A + a.B*a.B)))
	c2 := float32(math.Sqrt(float64(b.A*b.A + b.B*b.B)))

	dL := a.L - b.L
	dC := c1 - c2
	dA := a.A - b.A
	dB := a.B - b.B

	dHSquared := dA*dA + dB*dB - dC*dC
	if dHSquared < 0 {
		dHSquared = 0
	}

	sL := float32(1.0)
	sC := 1 + k1*c1
	sH := 1 + k2*c1

	termL := dL / (kL * sL)
	termC := dC / (kC * sC)
	termH2 := dHSquared / ((kH * sH) * (kH * sH))

	return float32(math.Sqrt(float64(termL*termL + termC*termC + termH2)))
}

// CIE2000 returns the CIEDE2000 color difference between two Lab colors,
// the most perceptually accurate of the three.
func CIE2000(lab1, lab2 Lab) float32 {
	l1, a1, b1 := float64(lab1.L), float64(lab1.A), float64(lab1.B)
	l2, a2, b2 := float64(lab2.L), float64(lab2.A), float64(lab2.B)

	c1 := math.Sqrt(a1*a1 + b1*b1)
	c2 := math.Sqrt(a2*a2 + b2*b2)
	cBar := (c1 + c2) / 2

	cBar7 := math.Pow(cBar, 7)
	const pow25To7 = 6103515625.0 // 25^7
	g := 0.5 * (1 - math.Sqrt(cBar7/(cBar7+pow25To7)))

	a1p := (1 + g) * a1
	a2p := (1 + g) * a2

	c1p := math.Sqrt(a1p*a1p + b1*b1)
	c2p := math.Sqrt(a2p*a2p + b2*b2)

	h1p := hueAngle(a1p, b1)
	h2p := hueAngle(a2p, b2)

	dLp := l2 - l1
	dCp := c2p - c1p

	var dhp float64
	switch {
	case c1p*c2p == 0:
		dhp = 0
	case math.Abs(h2p-h1p) <= 180:
		dhp = h2p - h1p
	case h2p-h1p > 180:
		dhp = h2p - h1p - 360
	default:
		dhp = h2p - h1p + 360
	}
	dHp := 2 * math.Sqrt(c1p*c2p) * math.Sin(radians(dhp)/2)

	lBarP := (l1 + l2) / 2
	cBarP := (c1p + c2p) / 2

	var hBarP float64
	switch {
	case c1p*c2p == 0:
		hBarP = h1p + h2p
	case math.Abs(h1p-h2p) <= 180:
		hBarP = (h1p + h2p) / 2
	case h1p+h2p < 360:
		hBarP = (h1p+h2p+360)/2
	default:
		hBarP = (h1p+h2p-360)/2
	}

	t := 1 - 0.17*math.Cos(radians(hBarP-30)) +
		0.24*math.Cos(radians(2*hBarP)) +
		0.32*math.Cos(radians(3*hBarP+6)) -
		0.20*math.Cos(radians(4*hBarP-63))

	dTheta := 30 * math.Exp(-math.Pow((hBarP-275)/25, 2))
	cBarP7 := math.Pow(cBarP, 7)
	rC := 2 * math.Sqrt(cBarP7/(cBarP7+pow25To7))
	sL := 1 + (0.015*math.Pow(lBarP-50, 2))/math.Sqrt(20+math.Pow(lBarP-50, 2))
	sC := 1 + 0.045*cBarP
	sH := 1 + 0.015*cBarP*t
	rT := -math.Sin(radians(2*dTheta)) * rC

	const kL, kC, kH = 1.0, 1.0, 1.0

	termL := dLp / (kL * sL)
	termC := dCp / (kC * sC)
	termH := dHp / (kH * sH)

	deltaE := math.Sqrt(termL*termL + termC*termC + termH*termH + rT*termC*termH)
	return float32(deltaE)
}

// hueAngle returns atan2(b, a) in degrees, normalized to [0,360).
func hueAngle(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 0
	}
	h := math.Atan2(b, a) * 180 / math.Pi
	if h < 0 {
		h += 360
	}
	return h
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
