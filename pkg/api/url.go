package api

import (
	"fmt"
	"net/netip"
	"net/url"
	"strings"
)

type URLPolicy struct {
	// AllowInsecure permits plain http and local network hosts. HTTPS to a
	// public host is always allowed.
	AllowInsecure bool
}

// IsLocalHost reports whether rawURL points at localhost or a loopback IP.
func IsLocalHost(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.Unmap().IsLoopback()
	}
	return false
}

// ValidateBaseURL checks the chat server base URL before any request is made.
func ValidateBaseURL(rawURL string, policy URLPolicy) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if !policy.AllowInsecure {
			return fmt.Errorf("plain http server URL %q requires allow-insecure", rawURL)
		}
	default:
		return fmt.Errorf("unsupported server URL scheme %q", parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return fmt.Errorf("server URL host is required")
	}
	if parsed.RawQuery != "" || parsed.Fragment != "" {
		return fmt.Errorf("server URL must not carry a query or fragment")
	}

	if policy.AllowInsecure {
		return nil
	}

	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return fmt.Errorf("local server %q requires allow-insecure", host)
	}

	// IP literals are checked without DNS lookups
	if addr, err := netip.ParseAddr(host); err == nil {
		if addr.Zone() != "" {
			return fmt.Errorf("zoned IP address %q requires allow-insecure", host)
		}
		addr = addr.Unmap()
		if addr.IsUnspecified() || addr.IsMulticast() {
			return fmt.Errorf("disallowed IP address %q", host)
		}
		if addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast() {
			return fmt.Errorf("local network IP %q requires allow-insecure", host)
		}
	}

	return nil
}
