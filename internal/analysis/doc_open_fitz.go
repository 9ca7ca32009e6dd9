package analysis

import (
	"image"

	fitz "github.com/gen2brain/go-fitz"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// fitzOpener implements Opener using github.com/gen2brain/go-fitz.
type fitzOpener struct{}

func (fitzOpener) Open(path string) (Doc, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return fitzDoc{doc}, nil
}

type fitzDoc struct{ *fitz.Document }

func (d fitzDoc) ImageDPI(page int, dpi float64) (image.Image, error) {
	return d.Document.ImageDPI(page, dpi)
}

// pdfcpuPageCount is the degraded reader: it only needs the page tree, so it
// often survives documents that the renderer rejects.
func pdfcpuPageCount(path string) (int, error) {
	return api.PageCountFile(path)
}
