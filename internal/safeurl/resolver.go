package safeurl

import (
    "context"
    "net"
    "net/url"
    "strings"

    "github.com/rs/zerolog/log"

    "github.com/local/printquote/internal/pipeline"
)

// LookupFunc resolves a hostname to all of its addresses (A and AAAA).
type LookupFunc func(ctx context.Context, host string) ([]net.IPAddr, error)

// Resolver validates caller-supplied URLs before any network fetch happens.
// A hostname is rejected if any resolved address falls in a private, loopback,
// link-local, reserved or multicast range: the connecting library may pick any
// of the records, so one bad address poisons the whole set.
type Resolver struct {
    lookup LookupFunc
}

// New returns a Resolver backed by the system resolver.
func New() *Resolver {
    return &Resolver{lookup: net.DefaultResolver.LookupIPAddr}
}

// NewWithLookup returns a Resolver with a custom lookup, used in tests.
func NewWithLookup(lookup LookupFunc) *Resolver {
    return &Resolver{lookup: lookup}
}

// Validate checks the URL scheme and vets every resolved address.
// It returns the parsed URL so callers do not parse twice.
func (r *Resolver) Validate(ctx context.Context, raw string) (*url.URL, error) {
    u, err := url.Parse(raw)
    if err != nil {
        return nil, pipeline.NewError(pipeline.CodeInvalidScheme, "unparseable url")
    }
    scheme := strings.ToLower(u.Scheme)
    if scheme != "http" && scheme != "https" {
        return nil, pipeline.NewError(pipeline.CodeInvalidScheme, "scheme %q not allowed", u.Scheme)
    }
    host := u.Hostname()
    if host == "" {
        return nil, pipeline.NewError(pipeline.CodeInvalidScheme, "url has no host")
    }

    addrs, err := r.lookup(ctx, host)
    if err != nil {
        return nil, pipeline.WrapError(pipeline.CodeDNSFailed, err)
    }
    if len(addrs) == 0 {
        return nil, pipeline.NewError(pipeline.CodeDNSFailed, "no addresses for %s", host)
    }
    for _, a := range addrs {
        if reason := BlockReason(a.IP); reason != "" {
            log.Warn().Str("host", host).Str("ip", a.IP.String()).Str("reason", reason).
                Msg("ssrf blocked: refusing to fetch")
            return nil, pipeline.NewError(pipeline.CodeSSRFBlocked, "%s resolves to %s address %s", host, reason, a.IP)
        }
    }
    return u, nil
}

// reservedV4 covers IPv4 ranges that net.IP helpers do not classify:
// CGNAT, IETF protocol assignments, documentation/TEST-NETs, benchmarking
// and class E.
var reservedV4 = []string{
    "100.64.0.0/10",
    "192.0.0.0/24",
    "192.0.2.0/24",
    "198.18.0.0/15",
    "198.51.100.0/24",
    "203.0.113.0/24",
    "240.0.0.0/4",
}

var reservedV6 = []string{
    "100::/64",     // discard-only
    "2001:db8::/32", // documentation
}

var reservedNets []*net.IPNet

func init() {
    for _, cidr := range append(append([]string{}, reservedV4...), reservedV6...) {
        _, n, err := net.ParseCIDR(cidr)
        if err == nil {
            reservedNets = append(reservedNets, n)
        }
    }
}

// BlockReason classifies an address; empty string means the address is
// publicly routable and safe to connect to.
func BlockReason(ip net.IP) string {
    switch {
    case ip == nil:
        return "invalid"
    case ip.IsLoopback():
        return "loopback"
    case ip.IsPrivate():
        return "private"
    case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
        return "link-local"
    case ip.IsMulticast():
        return "multicast"
    case ip.IsUnspecified():
        return "unspecified"
    }
    for _, n := range reservedNets {
        if n.Contains(ip) {
            return "reserved"
        }
    }
    return ""
}

// Blocked reports whether ip must not be dialed. Used as a last line of
// defense at dial time in addition to the pre-flight Validate.
func Blocked(ip net.IP) bool { return BlockReason(ip) != "" }
