package sweep

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strings"
	"sync"
	"time"
)

// ProbeResult is the outcome of checking one address.
type ProbeResult struct {
	Deliverable bool
	Signal      string // bounce signal text when not deliverable
}

// ExternalProber performs the optional reachability check. It is an
// interface so the MX lookup can be disabled (cost/latency) or faked in
// tests.
type ExternalProber interface {
	Probe(ctx context.Context, emailDomain string) ProbeResult
}

var (
	probeEmailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// Domains that never receive real mail: placeholders, typos of the
	// big providers, and disposable-address services.
	knownBadDomains = map[string]bool{
		"example.com": true, "example.org": true, "test.com": true,
		"nowhere.com": true, "noemail.com": true, "invalid.com": true,
		"gmial.com": true, "gamil.com": true, "gmal.com": true,
		"hotnail.com": true, "hotmial.com": true, "yahooo.com": true,
		"mailinator.com": true, "guerrillamail.com": true, "trashmail.com": true,
	}
)

// CheckLocal runs the cheap syntactic heuristic on an email address.
// Deliverable here only means "not obviously bad".
func CheckLocal(email string) ProbeResult {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ProbeResult{Deliverable: false, Signal: "550 empty address"}
	}
	if !probeEmailPattern.MatchString(email) {
		return ProbeResult{Deliverable: false, Signal: "553 malformed address"}
	}
	dom := email[strings.LastIndex(email, "@")+1:]
	if knownBadDomains[dom] {
		return ProbeResult{Deliverable: false, Signal: "550 no such user: known bad domain " + dom}
	}
	if strings.Contains(dom, "..") {
		return ProbeResult{Deliverable: false, Signal: "553 malformed domain"}
	}
	return ProbeResult{Deliverable: true}
}

type mxEntry struct {
	result    ProbeResult
	expiresAt time.Time
}

// MXProber checks MX existence for a domain with a bounded per-lookup
// timeout and a small TTL cache so one sweep doesn't hammer DNS.
type MXProber struct {
	resolver *net.Resolver
	timeout  time.Duration
	ttl      time.Duration

	mu    sync.Mutex
	cache map[string]mxEntry
}

// Cache cap mirrors the sweep batch scale; beyond it old entries are evicted.
const mxCacheMax = 200

// NewMXProber creates an MX prober. timeout bounds each lookup; ttl is the
// cache lifetime for both positive and negative answers.
func NewMXProber(timeout, ttl time.Duration) *MXProber {
	return &MXProber{
		resolver: net.DefaultResolver,
		timeout:  timeout,
		ttl:      ttl,
		cache:    make(map[string]mxEntry),
	}
}

// Probe reports whether the domain can receive mail at all.
func (p *MXProber) Probe(ctx context.Context, emailDomain string) ProbeResult {
	emailDomain = strings.ToLower(strings.TrimSpace(emailDomain))
	now := time.Now()

	p.mu.Lock()
	if e, ok := p.cache[emailDomain]; ok && now.Before(e.expiresAt) {
		p.mu.Unlock()
		return e.result
	}
	p.mu.Unlock()

	res := p.lookup(ctx, emailDomain)

	p.mu.Lock()
	if len(p.cache) >= mxCacheMax {
		p.evictLocked(now)
	}
	p.cache[emailDomain] = mxEntry{result: res, expiresAt: now.Add(p.ttl)}
	p.mu.Unlock()

	return res
}

func (p *MXProber) lookup(ctx context.Context, domain string) ProbeResult {
	lookupCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	mx, err := p.resolver.LookupMX(lookupCtx, domain)
	if err == nil && len(mx) > 0 {
		return ProbeResult{Deliverable: true}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout || dnsErr.IsTemporary {
			return ProbeResult{Deliverable: false, Signal: "451 temporary dns failure for " + domain}
		}
		if dnsErr.IsNotFound {
			// No MX: a bare A record still accepts mail for some domains.
			if addrs, aerr := p.resolver.LookupHost(lookupCtx, domain); aerr == nil && len(addrs) > 0 {
				return ProbeResult{Deliverable: true}
			}
			return ProbeResult{Deliverable: false, Signal: "550 no mail exchanger for " + domain}
		}
	}
	if err != nil {
		return ProbeResult{Deliverable: false, Signal: "451 temporary dns failure for " + domain}
	}
	return ProbeResult{Deliverable: false, Signal: "550 no mail exchanger for " + domain}
}

// evictLocked drops expired entries first, then arbitrary ones until the
// cache is under the cap. Caller holds p.mu.
func (p *MXProber) evictLocked(now time.Time) {
	for d, e := range p.cache {
		if now.After(e.expiresAt) {
			delete(p.cache, d)
		}
	}
	for d := range p.cache {
		if len(p.cache) < mxCacheMax {
			break
		}
		delete(p.cache, d)
	}
}
