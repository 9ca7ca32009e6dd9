package analysis

// ColorType is the overall classification of a document.
const (
	ColorTypeColored    = "colored"
	ColorTypeMonochrome = "monochrome"
	ColorTypeMixed      = "mixed"
)

// PageClass is the tri-state verdict for a single page. Indeterminate pages
// are deliberately priced as colored so that analysis failures never
// under-charge the shop.
type PageClass int

const (
	PageMono PageClass = iota
	PageColored
	PageIndeterminate
)

// PageColorReport summarizes the color/mono split of a document.
// ColorPages + MonoPages == TotalPages always holds.
type PageColorReport struct {
	TotalPages int    `json:"total_pages"`
	ColorPages int    `json:"color_pages"`
	MonoPages  int    `json:"mono_pages"`
	ColorType  string `json:"color_type"`
}

// Result is the full outcome of analyzing one document, including download
// metadata filled in by the pipeline.
type Result struct {
	Report     PageColorReport `json:"report"`
	ByteSize   int64           `json:"byte_size"`
	ElapsedMs  int64           `json:"elapsed_ms"`
	Method     string          `json:"method"`
	ArchiveURL string          `json:"archive_url,omitempty"`
}

// tally folds per-page verdicts into a report.
func tally(classes []PageClass) PageColorReport {
	r := PageColorReport{TotalPages: len(classes)}
	for _, c := range classes {
		if c == PageMono {
			r.MonoPages++
		} else {
			r.ColorPages++
		}
	}
	switch {
	case r.MonoPages == 0:
		r.ColorType = ColorTypeColored
	case r.ColorPages == 0:
		r.ColorType = ColorTypeMonochrome
	default:
		r.ColorType = ColorTypeMixed
	}
	return r
}
