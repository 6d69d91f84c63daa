package quant

import "errors"

// Error taxonomy for the quantization engine, grouped by kind rather than
// by concrete type: callers distinguish with errors.Is against the
// sentinels below, and every returned error wraps the most specific one
// that applies via fmt.Errorf("...: %w", ...).
var (
	// ErrInvalidK is returned when K < 1, or K < 2 for Dither/Meld reduce.
	ErrInvalidK = errors.New("quant: invalid K")

	// ErrEmptyPalette is returned when a caller-supplied palette has no
	// entries.
	ErrEmptyPalette = errors.New("quant: palette is empty")

	// ErrIllFormedHex is returned when a palette hex string does not match
	// ^#[0-9a-fA-F]{6}(,#[0-9a-fA-F]{6})*$.
	ErrIllFormedHex = errors.New("quant: ill-formed hex color")

	// ErrUnsupportedExtension is returned for input/output paths whose
	// extension is neither .png nor .jpg/.jpeg.
	ErrUnsupportedExtension = errors.New("quant: unsupported file extension")

	// ErrDeviceUnavailable is returned when no suitable GPU adapter exists.
	ErrDeviceUnavailable = errors.New("quant: no suitable GPU device")

	// ErrResourceLimit is returned when an allocation or row-padding
	// computation exceeds device limits.
	ErrResourceLimit = errors.New("quant: resource limit exceeded")

	// ErrMapFailed is returned when an asynchronous buffer map is rejected
	// or the device disconnects before it completes.
	ErrMapFailed = errors.New("quant: buffer map failed")

	// ErrInternalInvariant is returned for states that should be
	// impossible (e.g. a centroid header K mismatch after read-back) and
	// are treated as fatal, reported with context rather than recovered.
	ErrInternalInvariant = errors.New("quant: internal invariant violated")

	// ErrPaletteTooLarge is returned when a palette-image path resolves to
	// an image of more than 512 pixels.
	ErrPaletteTooLarge = errors.New("quant: palette image has more than 512 pixels")
)
