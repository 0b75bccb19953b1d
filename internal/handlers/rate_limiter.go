package handlers

import (
	"strings"
	"sync"
	"time"
)

type rateLimiter interface {
	Allow(key string) bool
}

// scanThrottle caps how fast one till can fire catalog scans. A stuck or
// misfiring barcode gun repeats the same read many times a second; the
// bucket absorbs a short burst and then holds the till to the refill rate.
type scanThrottle struct {
	burst  float64
	refill time.Duration
	clock  func() time.Time

	mu        sync.Mutex
	tills     map[string]*tillBucket
	nextSweep time.Time
}

type tillBucket struct {
	tokens   float64
	lastScan time.Time
}

// tillIdleAfter is how long a silent till keeps its bucket before the
// sweep drops it.
const tillIdleAfter = 5 * time.Minute

// newScanRateLimiter allows up to limit scans per window from each till,
// smoothed as a token bucket with bursts of the full limit.
func newScanRateLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &scanThrottle{
		burst:     float64(limit),
		refill:    window / time.Duration(limit),
		clock:     clock,
		tills:     make(map[string]*tillBucket),
		nextSweep: clock().Add(tillIdleAfter),
	}
}

func (l *scanThrottle) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "unscoped"
	}
	now := l.clock()

	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.tills[key]
	if !ok {
		bucket = &tillBucket{tokens: l.burst, lastScan: now}
		l.tills[key] = bucket
		l.sweepIdleLocked(now)
	} else {
		earned := float64(now.Sub(bucket.lastScan)) / float64(l.refill)
		bucket.tokens += earned
		if bucket.tokens > l.burst {
			bucket.tokens = l.burst
		}
	}
	bucket.lastScan = now

	if bucket.tokens < 1 {
		return false
	}
	bucket.tokens--
	return true
}

// sweepIdleLocked drops buckets for tills that have not scanned lately so
// short-lived clients do not accumulate. Runs at most once per idle window.
func (l *scanThrottle) sweepIdleLocked(now time.Time) {
	if now.Before(l.nextSweep) {
		return
	}
	for key, bucket := range l.tills {
		if now.Sub(bucket.lastScan) >= tillIdleAfter {
			delete(l.tills, key)
		}
	}
	l.nextSweep = now.Add(tillIdleAfter)
}
