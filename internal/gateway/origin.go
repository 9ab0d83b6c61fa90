package gateway

import (
	"net"
	"net/url"
	"strings"
)

// OriginAllowed implements the browser origin policy: anything on the
// configured allow list, plus implicit trust for localhost, loopback, and
// RFC 1918 IPv4 origins. A missing Origin header (non-browser client) is
// accepted.
func OriginAllowed(origin string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if strings.EqualFold(origin, a) {
			return true
		}
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	if ip.IsLoopback() {
		return true
	}
	return privateIPv4(ip)
}

func privateIPv4(ip net.IP) bool {
	v4 := ip.To4()
	if v4 == nil {
		return false
	}
	switch {
	case v4[0] == 10:
		return true
	case v4[0] == 172 && v4[1] >= 16 && v4[1] <= 31:
		return true
	case v4[0] == 192 && v4[1] == 168:
		return true
	}
	return false
}

// ClientIP derives the client address from proxy headers, falling back to
// the peer address. header returns a request header value by name. The
// X-Forwarded-For first hop is only trusted when it parses as an IP;
// IPv4-mapped IPv6 forms are normalised.
func ClientIP(header func(string) string, peer string) string {
	if xff := header("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip.String()
		}
	}
	if v := strings.TrimSpace(header("X-Real-IP")); v != "" {
		return stripMapped(v)
	}
	if v := strings.TrimSpace(header("CF-Connecting-IP")); v != "" {
		return stripMapped(v)
	}

	host, _, err := net.SplitHostPort(peer)
	if err != nil {
		host = peer
	}
	return stripMapped(host)
}

func stripMapped(addr string) string {
	return strings.TrimPrefix(addr, "::ffff:")
}
