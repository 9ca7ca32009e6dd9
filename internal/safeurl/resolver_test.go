package safeurl

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/local/printquote/internal/pipeline"
)

func staticLookup(ips ...string) LookupFunc {
	return func(ctx context.Context, host string) ([]net.IPAddr, error) {
		var out []net.IPAddr
		for _, s := range ips {
			out = append(out, net.IPAddr{IP: net.ParseIP(s)})
		}
		return out, nil
	}
}

func codeOf(t *testing.T, err error) pipeline.Code {
	t.Helper()
	var pe *pipeline.Error
	require.ErrorAs(t, err, &pe)
	return pe.Code
}

func TestValidateRejectsBadSchemes(t *testing.T) {
	r := NewWithLookup(staticLookup("93.184.216.34"))
	for _, raw := range []string{
		"ftp://example.com/doc.pdf",
		"file:///etc/passwd",
		"gopher://example.com",
		"//example.com/doc.pdf",
		"",
	} {
		_, err := r.Validate(context.Background(), raw)
		require.Error(t, err, raw)
		require.Equal(t, pipeline.CodeInvalidScheme, codeOf(t, err), raw)
	}
}

func TestValidateAllowsPublicHost(t *testing.T) {
	r := NewWithLookup(staticLookup("93.184.216.34", "2606:2800:220:1:248:1893:25c8:1946"))
	u, err := r.Validate(context.Background(), "https://example.com/doc.pdf")
	require.NoError(t, err)
	require.Equal(t, "example.com", u.Hostname())
}

func TestValidateBlocksNonPublicAddresses(t *testing.T) {
	cases := map[string]string{
		"loopback":      "127.0.0.1",
		"loopback v6":   "::1",
		"private 10":    "10.1.2.3",
		"private 172":   "172.16.8.1",
		"private 192":   "192.168.1.1",
		"ula v6":        "fd12:3456::1",
		"link-local":    "169.254.169.254",
		"link-local v6": "fe80::1",
		"multicast":     "224.0.0.1",
		"unspecified":   "0.0.0.0",
		"cgnat":         "100.64.0.1",
		"test-net":      "198.51.100.7",
		"benchmarking":  "198.18.0.1",
		"class e":       "240.0.0.1",
		"v6 docs":       "2001:db8::1",
	}
	for name, ip := range cases {
		r := NewWithLookup(staticLookup(ip))
		_, err := r.Validate(context.Background(), "http://internal.example/doc.pdf")
		require.Error(t, err, name)
		require.Equal(t, pipeline.CodeSSRFBlocked, codeOf(t, err), name)
	}
}

func TestValidateBlocksMixedResolutions(t *testing.T) {
	// One public record does not rescue a hostname that also resolves to a
	// private one: reject-any-match.
	r := NewWithLookup(staticLookup("93.184.216.34", "10.0.0.5"))
	_, err := r.Validate(context.Background(), "http://rebind.example/doc.pdf")
	require.Error(t, err)
	require.Equal(t, pipeline.CodeSSRFBlocked, codeOf(t, err))
}

func TestValidateDNSFailure(t *testing.T) {
	r := NewWithLookup(func(ctx context.Context, host string) ([]net.IPAddr, error) {
		return nil, errors.New("no such host")
	})
	_, err := r.Validate(context.Background(), "http://missing.example/doc.pdf")
	require.Equal(t, pipeline.CodeDNSFailed, codeOf(t, err))

	empty := NewWithLookup(func(ctx context.Context, host string) ([]net.IPAddr, error) {
		return nil, nil
	})
	_, err = empty.Validate(context.Background(), "http://empty.example/doc.pdf")
	require.Equal(t, pipeline.CodeDNSFailed, codeOf(t, err))
}
