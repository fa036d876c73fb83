package discovery

import (
	"net"
	"sort"
)

// SortIPsByPreference returns a copy of ips ordered for dialing: private
// and global IPv4, then global and unique-local IPv6, then link-local,
// then loopback.
func SortIPsByPreference(ips []net.IP) []net.IP {
	sorted := make([]net.IP, len(ips))
	copy(sorted, ips)

	sort.SliceStable(sorted, func(i, j int) bool {
		return ipPriority(sorted[i]) < ipPriority(sorted[j])
	})
	return sorted
}

// ipPriority returns the priority of an IP address (lower is better).
func ipPriority(ip net.IP) int {
	ip = ip.To16()
	switch {
	case ip == nil:
		return 99
	case ip.IsLoopback():
		return 80
	case ip.IsMulticast():
		return 90
	case ip.To4() != nil:
		if ip.IsLinkLocalUnicast() {
			return 40
		}
		return 0
	case isUniqueLocal(ip), ip.IsGlobalUnicast():
		return 10
	case ip.IsLinkLocalUnicast():
		// Link-local IPv6 needs a zone, which net.IP cannot carry.
		return 50
	default:
		return 60
	}
}

// isUniqueLocal returns true for fc00::/7.
func isUniqueLocal(ip net.IP) bool {
	ip = ip.To16()
	return ip != nil && ip.To4() == nil && ip[0]&0xfe == 0xfc
}

// FilterIPv6 returns only IPv6 addresses from the slice.
func FilterIPv6(ips []net.IP) []net.IP {
	var result []net.IP
	for _, ip := range ips {
		if ip.To4() == nil && ip.To16() != nil {
			result = append(result, ip)
		}
	}
	return result
}

// FilterIPv4 returns only IPv4 addresses from the slice.
func FilterIPv4(ips []net.IP) []net.IP {
	var result []net.IP
	for _, ip := range ips {
		if ip.To4() != nil {
			result = append(result, ip)
		}
	}
	return result
}
