// Package transport provides the HTTP transport used to reach hosted billing
// backends.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// Hosted billing providers front their APIs with CDNs that rate-limit by JA3
// TLS fingerprint, and Go's standard TLS client has a distinctive one. A POS
// register that suddenly gets throttled mid-shift is unacceptable, so this
// transport presents a Chrome fingerprint instead:
//
//  1. uTLS with HelloChrome_Auto for the ClientHello
//  2. ALPN negotiates h2 / http/1.1 naturally
//  3. Go's http2.Transport does the HTTP/2 framing when negotiated
//
// Self-hosted deployments can skip this entirely (see api.Config.PlainTransport).

// NewChromeTransport creates an http.RoundTripper that presents Chrome's TLS
// fingerprint to upstream servers. Supports both HTTP/2 and HTTP/1.1 based on
// ALPN negotiation.
func NewChromeTransport(timeout time.Duration) http.RoundTripper {
	dialer := &net.Dialer{Timeout: timeout}

	h2 := &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialFingerprintTLS(ctx, dialer, network, addr)
		},
	}

	h1 := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialFingerprintTLS(ctx, dialer, network, addr)
		},
		ForceAttemptHTTP2: false,
	}

	return &fingerprintTransport{h2: h2, h1: h1}
}

// fingerprintTransport tries HTTP/2 first and falls back to HTTP/1.1 for
// servers that never negotiated h2.
type fingerprintTransport struct {
	h2 *http2.Transport
	h1 *http.Transport
}

func (t *fingerprintTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	return t.h1.RoundTrip(req)
}

// dialFingerprintTLS establishes a TLS connection with Chrome's ClientHello.
func dialFingerprintTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)
	if err := tlsConn.Handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	return tlsConn, nil
}
