package download

import (
    "context"
    "errors"
    "fmt"
    "io"
    "net"
    "net/http"
    "os"
    "strings"
    "syscall"
    "time"

    "github.com/gabriel-vasile/mimetype"
    "github.com/rs/zerolog/log"

    "github.com/local/printquote/internal/pipeline"
    "github.com/local/printquote/internal/safeurl"
)

const tempPattern = "quotedl-*.pdf"

// Options configures the downloader.
type Options struct {
    MaxBytes       int64
    ConnectTimeout time.Duration
    ReadTimeout    time.Duration
    ProbeTimeout   time.Duration
    // AllowPrivateDial disables the dial-time address guard. Only tests that
    // fetch from 127.0.0.1 set this; production always keeps the guard on.
    AllowPrivateDial bool
}

// Downloader streams HTTP bodies into scoped temporary files under a hard
// byte ceiling. Redirects are never followed.
type Downloader struct {
    opts   Options
    client *http.Client
    probe  *http.Client
}

// Result describes a completed download. Release removes the temporary file
// and is safe to call multiple times; every caller must defer it.
type Result struct {
    Path    string
    Bytes   int64
    Elapsed time.Duration
    Release func()
}

// New builds a Downloader. Zero option fields get conservative defaults.
func New(opts Options) *Downloader {
    if opts.MaxBytes <= 0 { opts.MaxBytes = 50 << 20 }
    if opts.ConnectTimeout <= 0 { opts.ConnectTimeout = 5 * time.Second }
    if opts.ReadTimeout <= 0 { opts.ReadTimeout = 2 * time.Minute }
    if opts.ProbeTimeout <= 0 { opts.ProbeTimeout = 5 * time.Second }

    dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
    if !opts.AllowPrivateDial {
        // Last line of defense: the pre-flight resolver check can be raced by
        // DNS rebinding, so the verdict is re-applied on the dialed address.
        dialer.Control = func(network, address string, _ syscall.RawConn) error {
            host, _, err := net.SplitHostPort(address)
            if err != nil { return err }
            if ip := net.ParseIP(host); safeurl.Blocked(ip) {
                return fmt.Errorf("dial to non-public address %s refused", host)
            }
            return nil
        }
    }
    transport := &http.Transport{
        DialContext:           dialer.DialContext,
        TLSHandshakeTimeout:   opts.ConnectTimeout,
        ResponseHeaderTimeout: opts.ReadTimeout,
        Proxy:                 nil, // never route through environment proxies
    }
    noRedirect := func(req *http.Request, via []*http.Request) error {
        return http.ErrUseLastResponse
    }
    return &Downloader{
        opts:   opts,
        client: &http.Client{Transport: transport, CheckRedirect: noRedirect},
        probe:  &http.Client{Transport: transport, CheckRedirect: noRedirect, Timeout: opts.ProbeTimeout},
    }
}

// Probe issues a header-only request to estimate the resource size without
// committing to a download. ok is false when the size is unknown for any
// reason: probes are advisory and never fail a submission.
func (d *Downloader) Probe(ctx context.Context, url string) (size int64, ok bool) {
    req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
    if err != nil { return 0, false }
    resp, err := d.probe.Do(req)
    if err != nil {
        log.Debug().Err(err).Str("url", url).Msg("size probe failed")
        return 0, false
    }
    defer resp.Body.Close()
    if resp.StatusCode != http.StatusOK || resp.ContentLength < 0 {
        return 0, false
    }
    return resp.ContentLength, true
}

// Fetch streams the URL into a fresh temporary file, enforcing the byte
// ceiling both on the declared length and on actual bytes read. The caller
// owns Result.Release; every failure path removes the file before returning.
func (d *Downloader) Fetch(ctx context.Context, url string) (*Result, error) {
    start := time.Now()
    var written int64
    outcome := "ok"
    defer func() {
        log.Info().Str("url", url).Int64("bytes", written).
            Dur("duration", time.Since(start)).Str("outcome", outcome).
            Msg("download finished")
    }()

    ctx, cancel := context.WithTimeout(ctx, d.opts.ReadTimeout)
    defer cancel()

    req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
    if err != nil {
        outcome = "bad_request"
        return nil, pipeline.WrapError(pipeline.CodeDownloadFailed, err)
    }
    resp, err := d.client.Do(req)
    if err != nil {
        outcome = "connect_failed"
        return nil, pipeline.WrapError(pipeline.CodeDownloadFailed, err)
    }
    defer resp.Body.Close()

    // Validate before a single body byte is written anywhere.
    if resp.StatusCode >= 300 && resp.StatusCode < 400 {
        outcome = "redirect_blocked"
        log.Warn().Str("url", url).Int("status", resp.StatusCode).
            Str("location", resp.Header.Get("Location")).Msg("redirect blocked")
        return nil, pipeline.NewError(pipeline.CodeRedirectBlocked, "server responded with %d redirect", resp.StatusCode)
    }
    if resp.StatusCode != http.StatusOK {
        outcome = "http_error"
        return nil, pipeline.NewError(pipeline.CodeDownloadFailed, "unexpected status %d", resp.StatusCode)
    }
    if !contentTypeIsPDF(resp.Header.Get("Content-Type")) {
        outcome = "bad_content_type"
        return nil, pipeline.NewError(pipeline.CodeInvalidContentType, "content-type %q is not a pdf", resp.Header.Get("Content-Type"))
    }
    if resp.ContentLength > d.opts.MaxBytes {
        outcome = "declared_too_large"
        return nil, pipeline.NewError(pipeline.CodeFileTooLarge, "declared size %d exceeds ceiling %d", resp.ContentLength, d.opts.MaxBytes)
    }

    tmp, err := os.CreateTemp("", tempPattern)
    if err != nil {
        outcome = "tempfile_failed"
        return nil, pipeline.WrapError(pipeline.CodeDownloadFailed, err)
    }
    discard := func() {
        tmp.Close()
        os.Remove(tmp.Name())
    }

    // Declared length is never trusted alone: count as we stream and abort
    // the instant the ceiling is crossed.
    written, err = copyCapped(tmp, resp.Body, d.opts.MaxBytes)
    if err != nil {
        discard()
        var pe *pipeline.Error
        if errors.As(err, &pe) {
            outcome = string(pe.Code)
            return nil, pe
        }
        outcome = "read_failed"
        return nil, pipeline.WrapError(pipeline.CodeDownloadFailed, err)
    }
    if err := tmp.Close(); err != nil {
        os.Remove(tmp.Name())
        outcome = "close_failed"
        return nil, pipeline.WrapError(pipeline.CodeDownloadFailed, err)
    }

    // Header said PDF; the payload has to agree.
    mtype, err := mimetype.DetectFile(tmp.Name())
    if err != nil || !mtype.Is("application/pdf") {
        os.Remove(tmp.Name())
        outcome = "bad_signature"
        detected := "unreadable"
        if err == nil { detected = mtype.String() }
        return nil, pipeline.NewError(pipeline.CodeInvalidContentType, "payload is %s, not a pdf", detected)
    }

    released := false
    return &Result{
        Path:    tmp.Name(),
        Bytes:   written,
        Elapsed: time.Since(start),
        Release: func() {
            if released { return }
            released = true
            os.Remove(tmp.Name())
        },
    }, nil
}

func copyCapped(dst io.Writer, src io.Reader, max int64) (int64, error) {
    buf := make([]byte, 32<<10)
    var total int64
    for {
        n, rerr := src.Read(buf)
        if n > 0 {
            total += int64(n)
            if total > max {
                return total, pipeline.NewError(pipeline.CodePayloadTooLarge, "stream exceeded ceiling of %d bytes", max)
            }
            if _, werr := dst.Write(buf[:n]); werr != nil {
                return total, werr
            }
        }
        if rerr == io.EOF {
            return total, nil
        }
        if rerr != nil {
            return total, rerr
        }
    }
}

func contentTypeIsPDF(ct string) bool {
    ct = strings.ToLower(strings.TrimSpace(ct))
    if i := strings.Index(ct, ";"); i >= 0 {
        ct = strings.TrimSpace(ct[:i])
    }
    return ct == "application/pdf" || ct == "application/x-pdf"
}

// CleanupTemps removes stale download temp files older than maxAge. Called
// periodically from the scheduler as completion hygiene; a crashed process
// must not leak multi-megabyte temp files forever.
func CleanupTemps(maxAge time.Duration) {
    dir := os.TempDir()
    entries, err := os.ReadDir(dir)
    if err != nil { return }
    now := time.Now()
    for _, e := range entries {
        if e.IsDir() || !strings.HasPrefix(e.Name(), "quotedl-") {
            continue
        }
        info, err := e.Info()
        if err != nil { continue }
        if now.Sub(info.ModTime()) >= maxAge {
            _ = os.Remove(dir + string(os.PathSeparator) + e.Name())
        }
    }
}
