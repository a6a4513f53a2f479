// Package ipaddr holds the IP normalization and masking rules used across
// the tracking engine.
package ipaddr

import "net"

// Normalize parses an address and collapses IPv4-mapped IPv6 forms
// (::ffff:a.b.c.d) to plain IPv4. The IPv6 loopback maps to 127.0.0.1 so a
// single loopback entry on an exclusion list covers both stacks. Returns
// nil for unparseable input.
func Normalize(addr string) net.IP {
	ip := net.ParseIP(addr)
	if ip == nil {
		return nil
	}
	if v4 := ip.To4(); v4 != nil {
		return v4
	}
	if ip.Equal(net.IPv6loopback) {
		return net.IPv4(127, 0, 0, 1).To4()
	}
	return ip
}

// Mask anonymizes an address for storage: the last octet is zeroed for
// IPv4, the last 80 bits for IPv6. Raw addresses are never persisted.
// Returns "" for unparseable input.
func Mask(addr string) string {
	ip := Normalize(addr)
	if ip == nil {
		return ""
	}

	if v4 := ip.To4(); v4 != nil {
		masked := v4.Mask(net.CIDRMask(24, 32))
		return masked.String()
	}

	masked := ip.Mask(net.CIDRMask(48, 128))
	return masked.String()
}
