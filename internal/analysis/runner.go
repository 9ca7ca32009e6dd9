package analysis

import (
	"context"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/printquote/internal/download"
)

// Progress milestones reported while a document moves through the pipeline.
// ProgressDone is written by the caller together with the terminal status, so
// a poller never sees 100 on a job that is still running.
const (
	ProgressValidated   = 10
	ProgressDownloading = 25
	ProgressDownloaded  = 60
	ProgressDone        = 100
)

// ProgressFunc receives milestone percentages. Implementations must tolerate
// being called from the worker goroutine.
type ProgressFunc func(pct int)

// URLValidator is the pre-flight check applied before any network fetch.
type URLValidator interface {
	Validate(ctx context.Context, raw string) (*url.URL, error)
}

// Fetcher retrieves a remote document into a scoped temporary file.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*download.Result, error)
}

// Archiver retains a copy of the analyzed document and returns its location.
// Archival is best effort and never fails an analysis.
type Archiver interface {
	Archive(ctx context.Context, localPath, ref string) (string, error)
}

// Runner composes URL validation, bounded download and page classification
// into one analysis pass. Both the inline request path and the background
// worker run the same code.
type Runner struct {
	validator  URLValidator
	fetcher    Fetcher
	classifier *Classifier
	archiver   Archiver
}

func NewRunner(v URLValidator, f Fetcher, c *Classifier, a Archiver) *Runner {
	return &Runner{validator: v, fetcher: f, classifier: c, archiver: a}
}

// Run analyzes the document at rawURL. ref identifies the work unit in logs
// and archive keys (job id, or a request id for inline runs). progress may be
// nil. Errors carry pipeline codes; the temporary file is always released
// before returning.
func (r *Runner) Run(ctx context.Context, rawURL, ref string, progress ProgressFunc) (*Result, error) {
	if progress == nil {
		progress = func(int) {}
	}
	start := time.Now()

	u, err := r.validator.Validate(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	progress(ProgressValidated)

	progress(ProgressDownloading)
	fetched, err := r.fetcher.Fetch(ctx, u.String())
	if err != nil {
		return nil, err
	}
	defer fetched.Release()
	progress(ProgressDownloaded)

	report, method := r.classifier.Classify(fetched.Path)

	res := &Result{
		Report:    report,
		ByteSize:  fetched.Bytes,
		ElapsedMs: time.Since(start).Milliseconds(),
		Method:    method,
	}

	if r.archiver != nil {
		loc, aerr := r.archiver.Archive(ctx, fetched.Path, ref)
		if aerr != nil {
			log.Warn().Err(aerr).Str("ref", ref).Msg("archive upload failed; result unaffected")
		} else {
			res.ArchiveURL = loc
		}
	}

	log.Info().Str("ref", ref).Int("pages", report.TotalPages).
		Int("color_pages", report.ColorPages).Str("method", method).
		Int64("elapsed_ms", res.ElapsedMs).Msg("analysis complete")
	return res, nil
}
