package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/dnscache"
	"github.com/rs/zerolog/log"
)

const refreshEvery = 5 * time.Minute

var (
	resolver     *dnscache.Resolver
	resolverOnce sync.Once
)

// Resolver returns the process-wide caching resolver. Long purchase polls hit
// the same provider host many times; the cache keeps that to one lookup per
// refresh interval.
func Resolver() *dnscache.Resolver {
	resolverOnce.Do(func() {
		log.Debug().Dur("ttl", refreshEvery).Msg("Initializing DNS resolver cache")
		resolver = &dnscache.Resolver{}
		go func() {
			ticker := time.NewTicker(refreshEvery)
			defer ticker.Stop()
			for range ticker.C {
				resolver.Refresh(true)
			}
		}()
	})
	return resolver
}

// DialContextWithCache dials address after resolving its host through the
// cache, trying each resolved address in turn.
func DialContextWithCache(ctx context.Context, network, address string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	if net.ParseIP(host) != nil {
		return dialer.DialContext(ctx, network, address)
	}

	ips, err := Resolver().LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, &net.DNSError{Err: "no IP addresses found", Name: host}
	}

	var lastErr error
	for _, ip := range ips {
		conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}
