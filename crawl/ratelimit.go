package crawl

import (
	"context"
	"net"
	"sync"

	"github.com/fwojciec/siteclone"
	"golang.org/x/time/rate"
)

var _ siteclone.DomainLimiter = (*DomainLimiter)(nil)

// DomainLimiter spaces page loads per site. Hosts sharing a registrable
// domain ("www.x.com", "shop.x.com") share one token bucket, so a site
// that spreads its pages across subdomains is still loaded at the policy
// rate. Different sites never wait on each other.
type DomainLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewDomainLimiter returns a limiter allowing rps page loads per second
// per site with no bursting. A non-positive rps disables limiting.
func NewDomainLimiter(rps float64) *DomainLimiter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &DomainLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    1,
	}
}

// Wait blocks until the site of host may be loaded again. host may carry
// a port. Returns the context error if ctx ends first.
func (d *DomainLimiter) Wait(ctx context.Context, host string) error {
	return d.limiter(siteKey(host)).Wait(ctx)
}

// Sites returns the number of sites a bucket was created for.
func (d *DomainLimiter) Sites() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.limiters)
}

func (d *DomainLimiter) limiter(key string) *rate.Limiter {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.limiters[key]
	if !ok {
		l = rate.NewLimiter(d.limit, d.burst)
		d.limiters[key] = l
	}
	return l
}

func siteKey(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return registrableDomain(host)
}
