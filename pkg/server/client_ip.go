package server

import (
	"log/slog"
	"net"
	"strings"
)

// TrustedProxies matches peer addresses against a list of proxy IPs and
// CIDR ranges. A nil *TrustedProxies trusts nothing.
type TrustedProxies struct {
	ips  []net.IP
	nets []*net.IPNet
}

// NewTrustedProxies parses entries as IPs or CIDRs. Invalid entries are
// logged and skipped. It returns nil when no entry is usable.
func NewTrustedProxies(entries []string, logger *slog.Logger) *TrustedProxies {
	tp := &TrustedProxies{}
	for _, raw := range entries {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			_, network, err := net.ParseCIDR(entry)
			if err != nil {
				if logger != nil {
					logger.Warn("invalid trusted proxy cidr", "entry", entry, "error", err)
				}
				continue
			}
			tp.nets = append(tp.nets, network)
			continue
		}
		ip := net.ParseIP(entry)
		if ip == nil {
			if logger != nil {
				logger.Warn("invalid trusted proxy ip", "entry", entry)
			}
			continue
		}
		tp.ips = append(tp.ips, ip)
	}
	if len(tp.ips) == 0 && len(tp.nets) == 0 {
		return nil
	}
	return tp
}

// Contains reports whether ip is a trusted proxy.
func (tp *TrustedProxies) Contains(ip net.IP) bool {
	if tp == nil || ip == nil {
		return false
	}
	for _, candidate := range tp.ips {
		if candidate.Equal(ip) {
			return true
		}
	}
	for _, network := range tp.nets {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the originating client address. Forwarded and
// X-Forwarded-For are consulted only when the peer is a trusted proxy; the
// right-most untrusted hop wins. It returns nil when the peer address is
// unknown.
func (r *Request) ClientIP() net.IP {
	return clientIP(r.remoteAddr, r.header, r.trusted)
}

func clientIP(remoteAddr string, header Header, trusted *TrustedProxies) net.IP {
	remote := parseForwardedIP(remoteAddr)
	if remote == nil {
		return nil
	}
	if !trusted.Contains(remote) {
		return remote
	}

	hops := parseForwardedFor(header.Get("Forwarded"))
	if len(hops) == 0 {
		hops = parseXForwardedFor(header.Get("X-Forwarded-For"))
	}
	if len(hops) == 0 {
		return remote
	}
	for i := len(hops) - 1; i >= 0; i-- {
		if !trusted.Contains(hops[i]) {
			return hops[i]
		}
	}
	return hops[0]
}

func parseForwardedFor(value string) []net.IP {
	if value == "" {
		return nil
	}
	var out []net.IP
	for _, element := range strings.Split(value, ",") {
		for _, pair := range strings.Split(element, ";") {
			name, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || !strings.EqualFold(strings.TrimSpace(name), "for") {
				continue
			}
			if ip := parseForwardedIP(v); ip != nil {
				out = append(out, ip)
			}
		}
	}
	return out
}

func parseXForwardedFor(value string) []net.IP {
	if value == "" {
		return nil
	}
	var out []net.IP
	for _, part := range strings.Split(value, ",") {
		if ip := parseForwardedIP(part); ip != nil {
			out = append(out, ip)
		}
	}
	return out
}

// parseForwardedIP accepts bare IPs, host:port pairs and bracketed IPv6
// with or without a port or zone.
func parseForwardedIP(value string) net.IP {
	host := strings.Trim(strings.TrimSpace(value), "\"")
	if host == "" || strings.EqualFold(host, "unknown") {
		return nil
	}
	if strings.HasPrefix(host, "[") {
		if end := strings.Index(host, "]"); end != -1 {
			host = host[1:end]
		}
	} else if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if zone := strings.Index(host, "%"); zone != -1 {
		host = host[:zone]
	}
	return net.ParseIP(host)
}
