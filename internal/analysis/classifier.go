package analysis

import (
	"image"
	"image/color"

	"github.com/rs/zerolog/log"
)

const (
	// AnalysisDPI balances fidelity against render cost; color vs. mono does
	// not need print resolution.
	AnalysisDPI = 72.0

	// chromaTolerance absorbs JPEG artifacts and anti-aliasing: a pixel only
	// counts as chromatic when its channels diverge by more than this.
	chromaTolerance = 12

	MethodRaster    = "raster"
	MethodPageCount = "pagecount"
)

// Doc abstracts an open PDF document for classification.
type Doc interface {
	NumPage() int
	ImageDPI(page int, dpi float64) (image.Image, error)
	Close() error
}

// Opener abstracts opening a PDF path into a Doc, swappable in tests.
type Opener interface {
	Open(path string) (Doc, error)
}

// PageCountFunc is the degraded page-count-only reader used when the
// document cannot be opened for rendering at all.
type PageCountFunc func(path string) (int, error)

// Classifier inspects every page of a PDF and reports the color/mono split.
// It never fails: any error degrades to a safe estimate instead of erroring
// the pipeline.
type Classifier struct {
	opener    Opener
	pageCount PageCountFunc
	dpi       float64
}

// New returns a Classifier backed by go-fitz rendering with a pdfcpu
// page-count fallback.
func New() *Classifier {
	return &Classifier{opener: fitzOpener{}, pageCount: pdfcpuPageCount, dpi: AnalysisDPI}
}

// NewWith builds a Classifier with injected backends, used in tests.
func NewWith(opener Opener, pageCount PageCountFunc) *Classifier {
	return &Classifier{opener: opener, pageCount: pageCount, dpi: AnalysisDPI}
}

// Classify renders each page and scans its pixels for chromatic content.
// A page that fails to render is indeterminate and counted as colored.
// A document that fails to open falls back to a page-count-only reading with
// every page assumed monochrome; if even the count fails, a single mono page
// is reported.
func (c *Classifier) Classify(path string) (PageColorReport, string) {
	doc, err := c.opener.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("pdf open failed; degrading to page count")
		return c.countOnly(path), MethodPageCount
	}
	defer doc.Close()

	total := doc.NumPage()
	if total <= 0 {
		log.Warn().Str("file", path).Msg("pdf reports no pages; degrading to page count")
		return c.countOnly(path), MethodPageCount
	}

	classes := make([]PageClass, 0, total)
	for i := 0; i < total; i++ {
		classes = append(classes, c.classifyPage(doc, i))
	}
	return tally(classes), MethodRaster
}

func (c *Classifier) classifyPage(doc Doc, page int) PageClass {
	img, err := doc.ImageDPI(page, c.dpi)
	if err != nil {
		log.Debug().Err(err).Int("page", page+1).Msg("page render failed; treating as colored")
		return PageIndeterminate
	}
	if hasChromaticPixel(img) {
		return PageColored
	}
	return PageMono
}

func (c *Classifier) countOnly(path string) PageColorReport {
	n, err := c.pageCount(path)
	if err != nil || n <= 0 {
		if err != nil {
			log.Warn().Err(err).Str("file", path).Msg("page count fallback failed; assuming single mono page")
		}
		n = 1
	}
	classes := make([]PageClass, n)
	return tally(classes)
}

// hasChromaticPixel reports whether any pixel's channels diverge beyond the
// tolerance. Pure grayscale content, including anti-aliased black text,
// stays below it; colored text runs and RGB/CMYK images do not.
func hasChromaticPixel(img image.Image) bool {
	if rgba, ok := img.(*image.RGBA); ok {
		for i := 0; i+3 < len(rgba.Pix); i += 4 {
			if chromatic(rgba.Pix[i], rgba.Pix[i+1], rgba.Pix[i+2]) {
				return true
			}
		}
		return false
	}
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			if chromatic(c.R, c.G, c.B) {
				return true
			}
		}
	}
	return false
}

func chromatic(r, g, b uint8) bool {
	return absDiff(r, g) > chromaTolerance ||
		absDiff(r, b) > chromaTolerance ||
		absDiff(g, b) > chromaTolerance
}

func absDiff(a, b uint8) uint8 {
	if a > b {
		return a - b
	}
	return b - a
}
