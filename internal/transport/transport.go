// Package transport provides the HTTP transport used for storefront calls.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	utls "github.com/refraction-networking/utls"
	"golang.org/x/net/http2"
)

// =============================================================================
// TLS FINGERPRINT TRANSPORT
// =============================================================================
//
// Storefront CDNs rate limit Go's default TLS fingerprint aggressively, and a
// throttled cart add is a lost sale. This transport presents Chrome's
// fingerprint via uTLS:
//
//   1. https: uTLS with HelloChrome_Auto, ALPN picks h2 or http/1.1
//   2. h2 framing via golang.org/x/net/http2 when negotiated
//   3. hosts that fail h2 are remembered and go straight to HTTP/1.1
//   4. plain http (local stores, test servers) uses a stock HTTP/1.1 transport
//
// =============================================================================

// NewChromeTransport creates an http.RoundTripper that presents Chrome's TLS
// fingerprint to https upstreams.
func NewChromeTransport(timeout time.Duration) http.RoundTripper {
	dialer := &net.Dialer{Timeout: timeout}

	h2Transport := &http2.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
	}

	h1Transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialChromeTLS(ctx, dialer, network, addr)
		},
		ForceAttemptHTTP2: false,
		IdleConnTimeout:   90 * time.Second,
	}

	plain := &http.Transport{
		DialContext:     dialer.DialContext,
		IdleConnTimeout: 90 * time.Second,
	}

	return &chromeTransport{
		h2:    h2Transport,
		h1:    h1Transport,
		plain: plain,
	}
}

// chromeTransport wraps HTTP/2 and HTTP/1.1 transports with Chrome TLS fingerprint.
type chromeTransport struct {
	h2    *http2.Transport
	h1    *http.Transport
	plain *http.Transport

	h1Hosts sync.Map // host -> struct{}: h2 failed once, skip it
}

// RoundTrip implements http.RoundTripper.
func (t *chromeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" {
		return t.plain.RoundTrip(req)
	}

	host := req.URL.Host
	if _, ok := t.h1Hosts.Load(host); ok {
		return t.h1.RoundTrip(req)
	}

	resp, err := t.h2.RoundTrip(req)
	if err == nil {
		return resp, nil
	}

	// A consumed body cannot be replayed on the fallback connection.
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, err
		}
		body, bErr := req.GetBody()
		if bErr != nil {
			return nil, err
		}
		req = req.Clone(req.Context())
		req.Body = body
	}

	t.h1Hosts.Store(host, struct{}{})
	return t.h1.RoundTrip(req)
}

// dialChromeTLS establishes a TLS connection with Chrome's fingerprint.
func dialChromeTLS(ctx context.Context, dialer *net.Dialer, network, addr string) (net.Conn, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}

	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	tlsConn := utls.UClient(conn, &utls.Config{ServerName: host}, utls.HelloChrome_Auto)

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("tls handshake: %w", err)
	}

	return tlsConn, nil
}
