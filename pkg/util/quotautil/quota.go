// Package quotautil rate limits operations per IP block.
package quotautil

import (
	"net"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

// Quota limits operations per second, per IP block.
type Quota struct {
	ops   rate.Limit
	burst int
	cache *ttlcache.Cache[string, *rate.Limiter]
}

// NewQuota creates a new quota limiter allowing ops operations
// per second with the given burst, tracking at most maxEntries
// IP blocks at a time.
func NewQuota(ops float32, burst, maxEntries int) *Quota {
	q := &Quota{
		ops:   rate.Limit(ops),
		burst: burst,
		cache: ttlcache.New[string, *rate.Limiter](
			ttlcache.WithTTL[string, *rate.Limiter](time.Minute),
			ttlcache.WithCapacity[string, *rate.Limiter](uint64(maxEntries)),
		),
	}
	go q.cache.Start()
	return q
}

// Blocked reports whether the IP block of the address
// has exceeded its quota.
func (q *Quota) Blocked(ip string) bool {
	return !q.limiter(block(ip)).Allow()
}

func (q *Quota) limiter(key string) *rate.Limiter {
	if item := q.cache.Get(key); item != nil {
		return item.Value()
	}
	l := rate.NewLimiter(q.ops, q.burst)
	q.cache.Set(key, l, ttlcache.DefaultTTL)
	return l
}

// block maps an IP to its quota bucket: /24 for IPv4, /48 for IPv6.
func block(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return ip
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}
	return parsed.Mask(net.CIDRMask(48, 128)).String()
}
