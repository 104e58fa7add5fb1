package ingest

import (
	"net"
	"net/http"
	"strings"
)

// ipHeaders is the priority-ordered list of headers consulted for the real
// client address (CDN first, then generic proxy headers).
var ipHeaders = []string{
	"CF-Connecting-IP",
	"X-Forwarded-For",
	"X-Forwarded",
	"X-Cluster-Client-IP",
	"Client-IP",
	"Forwarded-For",
	"Forwarded",
}

const fallbackIP = "127.0.0.1"

// ClientIP derives the client address from the first header carrying a
// public IP, falling back to the socket address and finally to localhost.
// Private and reserved ranges are rejected so spoofed proxy headers cannot
// smuggle internal addresses into records.
func ClientIP(r *http.Request) string {
	for _, header := range ipHeaders {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}
		// Proxies append; the first entry is the originating client.
		candidate := strings.TrimSpace(strings.Split(value, ",")[0])
		if ip := parsePublicIP(candidate); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := parsePublicIP(host); ip != "" {
		return ip
	}
	return fallbackIP
}

// parsePublicIP returns the normalized address when s is a valid public IP.
func parsePublicIP(s string) string {
	ip := net.ParseIP(s)
	if ip == nil {
		return ""
	}
	if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsMulticast() || ip.IsUnspecified() {
		return ""
	}
	return ip.String()
}
