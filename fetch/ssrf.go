package fetch

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"syscall"
)

// ErrPrivateAddress is returned by DialControl when the dialled address is
// one IsPrivate rejects.
var ErrPrivateAddress = errors.New("refusing to dial a private address")

// PrivateNetworkDetector is implemented by objects that can tell whether a
// host must never be fetched from.
type PrivateNetworkDetector interface {
	IsPrivate(host string) bool
}

// HostDetector matches hosts against loopback and private address patterns.
// It does not resolve names: a hostname is only rejected when it is a
// localhost name or mentions the service's own domain. Names resolving to
// private addresses are caught at dial time by DialControl.
type HostDetector struct {
	// SelfDomain is the domain the service is reachable under. Empty disables
	// the check.
	SelfDomain string
}

func NewHostDetector(selfDomain string) *HostDetector {
	return &HostDetector{SelfDomain: strings.ToLower(selfDomain)}
}

func (d *HostDetector) IsPrivate(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if host == "" {
		return true
	}

	if d.SelfDomain != "" && strings.Contains(host, d.SelfDomain) {
		return true
	}

	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		var ok bool
		if addr, ok = parseShorthandIPv4(host); !ok {
			return false
		}
	}
	return isPrivateAddr(addr)
}

func isPrivateAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		isSharedAddressSpace(addr)
}

// 100.64.0.0/10, carrier grade NAT.
var sharedAddressSpace = netip.MustParsePrefix("100.64.0.0/10")

func isSharedAddressSpace(addr netip.Addr) bool {
	return addr.Is4() && sharedAddressSpace.Contains(addr)
}

// DialControl is a net.Dialer Control function. It sees the resolved address
// and refuses private ones.
func DialControl(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: unparsable address %q", ErrPrivateAddress, host)
	}
	if isPrivateAddr(addr) {
		return fmt.Errorf("%w: %s", ErrPrivateAddress, addr)
	}
	return nil
}

// parseShorthandIPv4 parses the inet_aton forms netip rejects: one to four
// parts, each decimal, octal (leading 0) or hex (0x), the last part filling
// the remaining bytes. 127.1, 2130706433 and 0x7f.1 are all 127.0.0.1.
func parseShorthandIPv4(s string) (netip.Addr, bool) {
	parts := strings.Split(s, ".")
	if len(parts) > 4 {
		return netip.Addr{}, false
	}

	var ip uint64
	for i, p := range parts {
		v, ok := parseIPv4Part(p)
		if !ok {
			return netip.Addr{}, false
		}
		if i < len(parts)-1 {
			if v > 0xff {
				return netip.Addr{}, false
			}
			ip |= v << (8 * (3 - i))
			continue
		}
		if v >= 1<<(8*(4-i)) {
			return netip.Addr{}, false
		}
		ip |= v
	}
	return netip.AddrFrom4([4]byte{byte(ip >> 24), byte(ip >> 16), byte(ip >> 8), byte(ip)}), true
}

func parseIPv4Part(p string) (uint64, bool) {
	base := 10
	switch {
	case len(p) > 2 && (p[:2] == "0x" || p[:2] == "0X"):
		p, base = p[2:], 16
	case len(p) > 1 && p[0] == '0':
		p, base = p[1:], 8
	}
	if p == "" || strings.ContainsAny(p, "+-_") {
		return 0, false
	}
	v, err := strconv.ParseUint(p, base, 32)
	if err != nil {
		return 0, false
	}
	return v, true
}
