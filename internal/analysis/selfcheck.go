package analysis

import (
	"fmt"
	"os"
)

// minimalPDF is a one-page blank document. MuPDF repairs the xref table on
// open, so byte-exact offsets are not required here.
var minimalPDF = []byte("%PDF-1.4\n" +
	"1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj\n" +
	"2 0 obj<</Type/Pages/Kids[3 0 R]/Count 1>>endobj\n" +
	"3 0 obj<</Type/Page/Parent 2 0 R/MediaBox[0 0 612 792]>>endobj\n" +
	"trailer<</Size 4/Root 1 0 R>>\n" +
	"%%EOF\n")

// SelfCheck verifies the render stack end to end by classifying a known
// blank document. Used by the status endpoint.
func (c *Classifier) SelfCheck() error {
	tmp, err := os.CreateTemp("", "quotecheck-*.pdf")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(minimalPDF); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	doc, err := c.opener.Open(tmp.Name())
	if err != nil {
		return fmt.Errorf("render engine cannot open documents: %w", err)
	}
	defer doc.Close()
	if doc.NumPage() < 1 {
		return fmt.Errorf("render engine reported %d pages for a one-page document", doc.NumPage())
	}
	if _, err := doc.ImageDPI(0, c.dpi); err != nil {
		return fmt.Errorf("render engine cannot rasterize: %w", err)
	}
	return nil
}
