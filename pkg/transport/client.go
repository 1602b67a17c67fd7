// Package transport builds the HTTP clients used to talk to the telephony
// provider.
package transport

import (
	"crypto/tls"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single request when the caller does not.
const DefaultTimeout = 30 * time.Second

// NewHTTPClient returns a client with DNS caching and verified TLS 1.2+.
// A non-positive timeout falls back to DefaultTimeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Transport: NewTransport(),
		Timeout:   timeout,
	}
}

// NewTransport returns the base round tripper shared by provider clients.
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           DialContextWithCache,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 20 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}
}
