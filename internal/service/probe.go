package service

import (
	"context"
	"net"
	"net/url"
	"time"
)

// ConnectivityProbe reports whether the network path to the proxy is up, the
// analog of the host environment's online/offline signal.
type ConnectivityProbe interface {
	Online(ctx context.Context) bool
}

// ProbeFunc adapts a function to a ConnectivityProbe.
type ProbeFunc func(ctx context.Context) bool

func (f ProbeFunc) Online(ctx context.Context) bool { return f(ctx) }

// AlwaysOnline never reports offline; refreshes then surface real network
// failures per commodity instead.
var AlwaysOnline = ProbeFunc(func(context.Context) bool { return true })

// DialProbe checks reachability of the proxy host with one TCP dial.
func DialProbe(proxyBaseURL string, timeout time.Duration) ConnectivityProbe {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return ProbeFunc(func(ctx context.Context) bool {
		parsed, err := url.Parse(proxyBaseURL)
		if err != nil || parsed.Host == "" {
			return false
		}
		host := parsed.Host
		if parsed.Port() == "" {
			port := "443"
			if parsed.Scheme == "http" {
				port = "80"
			}
			host = net.JoinHostPort(parsed.Hostname(), port)
		}

		dialer := net.Dialer{Timeout: timeout}
		conn, err := dialer.DialContext(ctx, "tcp", host)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	})
}
