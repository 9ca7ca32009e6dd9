package statuscheck

import (
    "context"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "time"
)

// Pinger models a dependency that can confirm connectivity.
type Pinger interface {
    Ping(ctx context.Context) error
}

// Checker aggregates health checks for the service's dependencies.
type Checker struct {
    store    Pinger
    archive  Pinger
    tempDir  string
    renderer func() error
}

// Options configures the Checker. Nil dependencies report as not configured.
type Options struct {
    Store    Pinger
    Archive  Pinger
    TempDir  string
    Renderer func() error
}

// Status represents the readiness of a subsystem.
type Status struct {
    OK      bool   `json:"ok"`
    Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
    Store    Status `json:"store"`
    Archive  Status `json:"archive"`
    TempDir  Status `json:"temp_dir"`
    Renderer Status `json:"renderer"`
}

func New(opts Options) *Checker {
    dir := opts.TempDir
    if dir == "" { dir = os.TempDir() }
    return &Checker{store: opts.Store, archive: opts.Archive, tempDir: dir, renderer: opts.Renderer}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
    return Summary{
        Store:    c.checkPinger(ctx, c.store, "job store not configured"),
        Archive:  c.checkPinger(ctx, c.archive, "archive disabled"),
        TempDir:  c.checkTempDir(),
        Renderer: c.checkRenderer(),
    }
}

func (c *Checker) checkPinger(ctx context.Context, p Pinger, missing string) Status {
    if p == nil {
        return Status{OK: false, Message: missing}
    }
    ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
    defer cancel()
    if err := p.Ping(ctx); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Connected"}
}

// checkTempDir verifies downloads have somewhere to land.
func (c *Checker) checkTempDir() Status {
    probe := filepath.Join(c.tempDir, fmt.Sprintf(".quoteprobe-%d", time.Now().UnixNano()))
    if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    _ = os.Remove(probe)
    return Status{OK: true, Message: "Writable"}
}

func (c *Checker) checkRenderer() Status {
    if c.renderer == nil {
        return Status{OK: false, Message: "renderer not configured"}
    }
    if err := c.renderer(); err != nil {
        return Status{OK: false, Message: trimError(err)}
    }
    return Status{OK: true, Message: "Available"}
}

func trimError(err error) string {
    if err == nil {
        return ""
    }
    var netErr interface{ Timeout() bool }
    if errors.As(err, &netErr) && netErr.Timeout() {
        return "timeout"
    }
    msg := err.Error()
    if len(msg) > 120 {
        return msg[:120]
    }
    return msg
}
