package statuscheck

import (
    "context"
    "errors"
    "testing"

    "github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestSummaryAllHealthy(t *testing.T) {
    c := New(Options{
        Store:    fakePinger{},
        Archive:  fakePinger{},
        TempDir:  t.TempDir(),
        Renderer: func() error { return nil },
    })
    sum := c.Summary(context.Background())
    require.True(t, sum.Store.OK)
    require.True(t, sum.Archive.OK)
    require.True(t, sum.TempDir.OK)
    require.True(t, sum.Renderer.OK)
}

func TestSummaryReportsFailures(t *testing.T) {
    c := New(Options{
        Store:    fakePinger{err: errors.New("connection refused")},
        Renderer: func() error { return errors.New("mupdf unavailable") },
    })
    sum := c.Summary(context.Background())
    require.False(t, sum.Store.OK)
    require.Contains(t, sum.Store.Message, "connection refused")
    require.False(t, sum.Archive.OK)
    require.Equal(t, "archive disabled", sum.Archive.Message)
    require.True(t, sum.TempDir.OK)
    require.False(t, sum.Renderer.OK)
}

func TestTrimErrorTruncatesLongMessages(t *testing.T) {
    long := make([]byte, 300)
    for i := range long { long[i] = 'x' }
    require.Len(t, trimError(errors.New(string(long))), 120)
}
