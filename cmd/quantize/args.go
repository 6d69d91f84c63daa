package main

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"  // register .bmp as a decodable input format
	_ "golang.org/x/image/tiff" // register .tiff as a decodable input format

	"github.com/gogpu/quant/internal/quant"
)

var hexListPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}(,#[0-9a-fA-F]{6})*$`)

// validateK parses a --colorcount flag value, rejecting anything below 1.
func validateK(s string) (int, error) {
	k, err := strconv.Atoi(s)
	if err != nil || k < 1 {
		return 0, fmt.Errorf("k must be an integer higher than 0")
	}
	return k, nil
}

// validateFilename checks that path ends in .png or .jpg/.jpeg, the only
// extensions the CLI reads and writes.
func validateFilename(path string) error {
	ext := strings.ToLower(filepath.Ext(path))
	if len(path) > 4 && (ext == ".png" || ext == ".jpg" || ext == ".jpeg") {
		return nil
	}
	return fmt.Errorf("%w: only .png or .jpg files are supported, got %q", quant.ErrUnsupportedExtension, path)
}

// parsePalette accepts either a "#RRGGBB,#RRGGBB,..." hex list or a path to
// an existing palette image with at most 512 distinct pixels, mirroring
// args.rs's validate_palette.
func parsePalette(s string) ([]quant.Pixel, error) {
	if hexListPattern.MatchString(s) {
		return parseHexColors(s)
	}
	ext := strings.ToLower(filepath.Ext(s))
	if len(s) > 4 && (ext == ".png" || ext == ".jpg" || ext == ".jpeg") {
		if _, err := os.Stat(s); err == nil {
			return parsePaletteImage(s)
		}
	}
	return nil, fmt.Errorf(`palette must be a path to an image file, or "#RRGGBB,#RRGGBB,..."`)
}

func parseHexColors(s string) ([]quant.Pixel, error) {
	parts := strings.Split(s, ",")
	out := make([]quant.Pixel, 0, len(parts))
	for _, part := range parts {
		if len(part) != 7 || part[0] != '#' {
			return nil, fmt.Errorf("%w: %q", quant.ErrIllFormedHex, part)
		}
		r, err1 := strconv.ParseUint(part[1:3], 16, 8)
		g, err2 := strconv.ParseUint(part[3:5], 16, 8)
		b, err3 := strconv.ParseUint(part[5:7], 16, 8)
		if err1 != nil || err2 != nil || err3 != nil {
			return nil, fmt.Errorf("%w: %q", quant.ErrIllFormedHex, part)
		}
		out = append(out, quant.Pixel{R: uint8(r), G: uint8(g), B: uint8(b), A: 255})
	}
	return out, nil
}

func parsePaletteImage(path string) ([]quant.Pixel, error) {
	img, err := loadImage(path)
	if err != nil {
		return nil, err
	}
	pixelCount := img.Width * img.Height
	if pixelCount > 512 {
		return nil, fmt.Errorf("%w: %d pixels", quant.ErrPaletteTooLarge, pixelCount)
	}

	colors := append([]quant.Pixel(nil), img.Pixels...)
	sort.Slice(colors, func(i, j int) bool { return pixelLess(colors[i], colors[j]) })
	deduped := colors[:0]
	for i, c := range colors {
		if i == 0 || c != colors[i-1] {
			deduped = append(deduped, c)
		}
	}
	if len(deduped) < pixelCount {
		return nil, fmt.Errorf("quant: palette image has recurring colors")
	}
	return deduped, nil
}

func pixelLess(a, b quant.Pixel) bool {
	if a.R != b.R {
		return a.R < b.R
	}
	if a.G != b.G {
		return a.G < b.G
	}
	if a.B != b.B {
		return a.B < b.B
	}
	return a.A < b.A
}

// loadImage decodes any format the image package (plus its registered
// jpeg/png decoders) understands into a quant.Image.
func loadImage(path string) (*quant.Image, error) {
	f, err := os.Open(path) //nolint:gosec // CLI path argument, opened intentionally
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %q: %w", path, err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	pixels := make([]quant.Pixel, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			pixels[y*w+x] = quant.Pixel{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(a >> 8)}
		}
	}
	return &quant.Image{Width: w, Height: h, Pixels: pixels}, nil
}

// saveImage encodes img as PNG or JPEG, chosen by path's extension.
func saveImage(path string, img *quant.Image) error {
	f, err := os.Create(path) //nolint:gosec // CLI path argument, created intentionally
	if err != nil {
		return err
	}
	defer f.Close()
	return encodeTo(f, path, img)
}

func encodeTo(w *os.File, path string, img *quant.Image) error {
	rgba := toStdImage(img)
	if strings.EqualFold(filepath.Ext(path), ".jpg") || strings.EqualFold(filepath.Ext(path), ".jpeg") {
		return encodeJPEG(w, rgba)
	}
	return encodePNG(w, rgba)
}

func encodePNG(w *os.File, img image.Image) error {
	return png.Encode(w, img)
}

func encodeJPEG(w *os.File, img image.Image) error {
	return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
}

func toStdImage(img *quant.Image) *image.NRGBA {
	out := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
	for i, p := range img.Pixels {
		off := i * 4
		out.Pix[off+0] = p.R
		out.Pix[off+1] = p.G
		out.Pix[off+2] = p.B
		out.Pix[off+3] = p.A
	}
	return out
}

// paletteTileImage renders colors as a row of size x size squares, mirroring
// save_palette in main.rs.
func paletteTileImage(colors []quant.Pixel, size int) *quant.Image {
	width := len(colors) * size
	pixels := make([]quant.Pixel, width*size)
	for x := 0; x < width; x++ {
		c := colors[x/size]
		for y := 0; y < size; y++ {
			pixels[y*width+x] = c
		}
	}
	return &quant.Image{Width: width, Height: size, Pixels: pixels}
}

// unixMillis renders a millisecond-resolution Unix timestamp the way
// main.rs's "{secs}{millis:03}" formatting does.
func unixMillis(t time.Time) string {
	return fmt.Sprintf("%d%03d", t.Unix(), t.UnixMilli()%1000)
}

// paletteOutputName derives "STEM-palette-cK-ALGO.png" next to input when
// output is empty.
func paletteOutputName(input, output string, k int, algo quant.Algorithm) string {
	if output != "" {
		return output
	}
	dir, stem := splitStem(input)
	name := fmt.Sprintf("%s-palette-c%d-%s.png", stem, k, algo)
	return filepath.Join(dir, name)
}

// reduceOutputName derives "STEM-reduce-cK-ALGO[-MODE].EXT" when output is
// empty.
func reduceOutputName(input, output string, k int, algo quant.Algorithm, mode quant.ReduceMode) string {
	if output != "" {
		return output
	}
	dir, stem := splitStem(input)
	ext := strings.TrimPrefix(filepath.Ext(input), ".")
	modeSuffix := ""
	if mode != quant.ReduceModeReplace {
		modeSuffix = "-" + mode.String()
	}
	name := fmt.Sprintf("%s-reduce-c%d-%s%s.%s", stem, k, algo, modeSuffix, ext)
	return filepath.Join(dir, name)
}

// findOutputName derives "STEM-find-MODE-<unix-ms>.EXT" when output is
// empty, matching find_file in main.rs.
func findOutputName(input, output string, mode quant.ReduceMode, now time.Time) string {
	if output != "" {
		return output
	}
	dir, stem := splitStem(input)
	ext := strings.TrimPrefix(filepath.Ext(input), ".")
	name := fmt.Sprintf("%s-find-%s-%s.%s", stem, mode, unixMillis(now), ext)
	return filepath.Join(dir, name)
}

func splitStem(path string) (dir, stem string) {
	dir = filepath.Dir(path)
	base := filepath.Base(path)
	stem = strings.TrimSuffix(base, filepath.Ext(base))
	return dir, stem
}

// paletteHexLine renders colors as a comma-joined "#RRGGBB" list for the
// palette subcommand's console summary.
func paletteHexLine(colors []quant.Pixel) string {
	var b bytes.Buffer
	for i, c := range colors {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(c.Hex())
	}
	return b.String()
}
