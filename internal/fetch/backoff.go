package fetch

import (
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// safetyMargin is added after every rate-limit-derived wait to absorb clock
// skew between this process and the host issuing the rate-limit headers.
const safetyMargin = 100 * time.Millisecond

// rateLimitHeaders holds the IETF draft RateLimit-* triplet, tolerant of
// the "x-" and "rate-limit" spelling variants seen across IIIF providers.
type rateLimitHeaders struct {
	limit, remaining, reset int
	present                 bool
}

func parseRateLimitHeaders(h http.Header) rateLimitHeaders {
	limit, okL := firstIntHeader(h, "RateLimit-Limit", "X-RateLimit-Limit", "X-Rate-Limit-Limit")
	remaining, okR := firstIntHeader(h, "RateLimit-Remaining", "X-RateLimit-Remaining", "X-Rate-Limit-Remaining")
	reset, okS := firstIntHeader(h, "RateLimit-Reset", "X-RateLimit-Reset", "X-Rate-Limit-Reset")
	if !okL || !okR || !okS {
		return rateLimitHeaders{}
	}
	return rateLimitHeaders{limit: limit, remaining: remaining, reset: reset, present: true}
}

func firstIntHeader(h http.Header, names ...string) (int, bool) {
	for _, n := range names {
		if v := h.Get(n); v != "" {
			if iv, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return iv, true
			}
		}
	}
	return 0, false
}

// wait derives a pacing delay from the remaining quota:
// secsPerQuota = reset / (limit - remaining); wait 2*remaining*secsPerQuota
// if quota remains, else secsPerQuota.
func (h rateLimitHeaders) wait() time.Duration {
	denom := h.limit - h.remaining
	if denom <= 0 {
		denom = 1
	}
	secsPerQuota := float64(h.reset) / float64(denom)
	if h.remaining > 0 {
		return time.Duration(2 * float64(h.remaining) * secsPerQuota * float64(time.Second))
	}
	return time.Duration(secsPerQuota * float64(time.Second))
}

// retryAfter parses the Retry-After header, which is either an integer
// number of seconds or an HTTP date.
func retryAfter(h http.Header) (time.Duration, bool) {
	v := h.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

// nextBackoff multiplies prev by a random factor in [1, 2), starting
// from a 500ms floor, capped at 30s — grounded on the pack's exponential
// retry helper.
func nextBackoff(prev time.Duration) time.Duration {
	if prev <= 0 {
		prev = 500 * time.Millisecond
	}
	next := time.Duration(float64(prev) * (1 + rand.Float64()))
	const cap = 30 * time.Second
	if next > cap {
		next = cap
	}
	return next
}
