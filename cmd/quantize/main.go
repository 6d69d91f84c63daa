// Command quantize extracts and applies perceptual color palettes from
// images using a GPU-accelerated k-means++ pipeline or a CPU octree
// reducer.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gogpu/quant/internal/quant"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "palette":
		err = runPalette(os.Args[2:])
	case "find":
		err = runFind(os.Args[2:])
	case "reduce":
		err = runReduce(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "quantize: unknown subcommand %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("quantize: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: quantize <palette|find|reduce> [flags]

  palette -colorcount K -input FILE [-output FILE] [-algo kmeans|octree] [-size N] [-memory-budget-mb MB]
  find    -input FILE -palette COLORS [-output FILE] [-mode replace|dither|meld] [-memory-budget-mb MB]
  reduce  -colorcount K -input FILE [-output FILE] [-algo kmeans|octree] [-mode replace|dither|meld] [-memory-budget-mb MB]`)
}

func newProcessor(verbose bool, memoryBudgetMB int) (*quant.ImageProcessor, error) {
	if verbose {
		quant.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	}
	proc, err := quant.New()
	if err != nil {
		return nil, err
	}
	if memoryBudgetMB > 0 {
		if err := proc.SetMemoryBudgetMB(memoryBudgetMB); err != nil {
			proc.Close()
			return nil, err
		}
	}
	return proc, nil
}

func parseAlgo(s string) (quant.Algorithm, error) {
	switch s {
	case "kmeans", "":
		return quant.AlgorithmKmeans, nil
	case "octree":
		return quant.AlgorithmOctree, nil
	default:
		return 0, fmt.Errorf("unknown algo %q (want kmeans or octree)", s)
	}
}

func parseMode(s string) (quant.ReduceMode, error) {
	switch s {
	case "replace", "":
		return quant.ReduceModeReplace, nil
	case "dither":
		return quant.ReduceModeDither, nil
	case "meld":
		return quant.ReduceModeMeld, nil
	default:
		return 0, fmt.Errorf("unknown mode %q (want replace, dither or meld)", s)
	}
}

// kValue is a flag.Value wrapping validateK so a bad -colorcount value
// fails at parse time with the CLI's own message, the Go analogue of
// clap's value_parser validators.
type kValue struct {
	n   int
	set bool
}

func (k *kValue) String() string {
	if !k.set {
		return ""
	}
	return fmt.Sprint(k.n)
}

func (k *kValue) Set(s string) error {
	n, err := validateK(s)
	if err != nil {
		return err
	}
	k.n, k.set = n, true
	return nil
}

// filenameValue is a flag.Value wrapping validateFilename.
type filenameValue struct{ path string }

func (f *filenameValue) String() string { return f.path }

func (f *filenameValue) Set(s string) error {
	if err := validateFilename(s); err != nil {
		return err
	}
	f.path = s
	return nil
}

// paletteValue is a flag.Value wrapping parsePalette.
type paletteValue struct {
	raw    string
	colors []quant.Pixel
}

func (p *paletteValue) String() string { return p.raw }

func (p *paletteValue) Set(s string) error {
	colors, err := parsePalette(s)
	if err != nil {
		return err
	}
	p.raw, p.colors = s, colors
	return nil
}

func runPalette(args []string) error {
	fs := flag.NewFlagSet("palette", flag.ExitOnError)
	var colorCount kValue
	var input filenameValue
	fs.Var(&colorCount, "colorcount", "color count of the generated palette")
	fs.Var(&input, "input", "input image file")
	output := fs.String("output", "", "optional output image file")
	algoName := fs.String("algo", "kmeans", "algorithm to use for palette reduction (kmeans|octree)")
	size := fs.Int("size", 1, "each color is rendered as a size x size square (1-60)")
	verbose := fs.Bool("v", false, "log GPU device and pipeline diagnostics")
	memoryBudgetMB := fs.Int("memory-budget-mb", 0, "GPU texture working-set budget in MB (0 uses the default)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !colorCount.set {
		return fmt.Errorf("-colorcount is required")
	}
	if input.path == "" {
		return fmt.Errorf("-input is required")
	}
	if *size < 1 || *size > 60 {
		return fmt.Errorf("size must be between 1 and 60")
	}
	algo, err := parseAlgo(*algoName)
	if err != nil {
		return err
	}

	img, err := loadImage(input.path)
	if err != nil {
		return err
	}

	proc, err := newProcessor(*verbose, *memoryBudgetMB)
	if err != nil {
		return err
	}
	defer proc.Close()

	colors, err := proc.Palette(colorCount.n, img, algo)
	if err != nil {
		return err
	}

	outPath := paletteOutputName(input.path, *output, colorCount.n, algo)
	if err := saveImage(outPath, paletteTileImage(colors, *size)); err != nil {
		return err
	}

	fmt.Printf("Palette: %s\n", paletteHexLine(colors))
	fmt.Printf("Saved palette tile to %s\n", outPath)
	return nil
}

func runFind(args []string) error {
	fs := flag.NewFlagSet("find", flag.ExitOnError)
	var input filenameValue
	var paletteArg paletteValue
	fs.Var(&input, "input", "input image file")
	output := fs.String("output", "", "optional output image file")
	fs.Var(&paletteArg, "palette", `"#RRGGBB,#RRGGBB,..." or a path to a palette image`)
	modeName := fs.String("mode", "replace", "mix function to apply (replace|dither|meld)")
	verbose := fs.Bool("v", false, "log GPU device and pipeline diagnostics")
	memoryBudgetMB := fs.Int("memory-budget-mb", 0, "GPU texture working-set budget in MB (0 uses the default)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if input.path == "" {
		return fmt.Errorf("-input is required")
	}
	if len(paletteArg.colors) == 0 {
		return fmt.Errorf("-palette is required")
	}
	mode, err := parseMode(*modeName)
	if err != nil {
		return err
	}

	img, err := loadImage(input.path)
	if err != nil {
		return err
	}

	proc, err := newProcessor(*verbose, *memoryBudgetMB)
	if err != nil {
		return err
	}
	defer proc.Close()

	result, err := proc.Find(img, paletteArg.colors, mode)
	if err != nil {
		return err
	}

	outPath := findOutputName(input.path, *output, mode, time.Now())
	if err := saveImage(outPath, result); err != nil {
		return err
	}
	fmt.Printf("Saved to %s\n", outPath)
	return nil
}

func runReduce(args []string) error {
	fs := flag.NewFlagSet("reduce", flag.ExitOnError)
	var colorCount kValue
	var input filenameValue
	fs.Var(&colorCount, "colorcount", "color count of the generated palette")
	fs.Var(&input, "input", "input image file")
	output := fs.String("output", "", "optional output image file")
	algoName := fs.String("algo", "kmeans", "algorithm to use for palette reduction (kmeans|octree)")
	modeName := fs.String("mode", "replace", "mix function to apply (replace|dither|meld)")
	verbose := fs.Bool("v", false, "log GPU device and pipeline diagnostics")
	memoryBudgetMB := fs.Int("memory-budget-mb", 0, "GPU texture working-set budget in MB (0 uses the default)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !colorCount.set {
		return fmt.Errorf("-colorcount is required")
	}
	if input.path == "" {
		return fmt.Errorf("-input is required")
	}
	algo, err := parseAlgo(*algoName)
	if err != nil {
		return err
	}
	mode, err := parseMode(*modeName)
	if err != nil {
		return err
	}

	img, err := loadImage(input.path)
	if err != nil {
		return err
	}

	proc, err := newProcessor(*verbose, *memoryBudgetMB)
	if err != nil {
		return err
	}
	defer proc.Close()

	result, colors, err := proc.Reduce(colorCount.n, img, algo, mode)
	if err != nil {
		return err
	}

	outPath := reduceOutputName(input.path, *output, colorCount.n, algo, mode)
	if err := saveImage(outPath, result); err != nil {
		return err
	}
	fmt.Printf("Palette: %s\n", paletteHexLine(colors))
	fmt.Printf("Saved to %s\n", outPath)
	return nil
}
