package ratelimit

import (
	"sync"
	"time"
)

type BucketKind string

const (
	BucketIP  BucketKind = "ip"
	BucketKey BucketKind = "key"
)

// Bucket is one counter a request is charged against. For API requests the
// key is the token subject, for webhook deliveries the package id.
type Bucket struct {
	Kind  BucketKind
	Name  string
	Limit int
}

type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   int64
	ResetIn   int64
}

type bucketID struct {
	kind BucketKind
	name string
}

// Limiter counts requests in fixed windows aligned to the unix epoch. All
// counters share the window, so they are dropped together when it rolls.
type Limiter struct {
	windowS int64

	mu          sync.Mutex
	windowStart int64
	counts      map[bucketID]int
}

func New(window time.Duration) *Limiter {
	windowS := int64(window / time.Second)
	if windowS <= 0 {
		windowS = 60
	}
	return &Limiter{
		windowS: windowS,
		counts:  make(map[bucketID]int),
	}
}

// Take charges a request against every bucket with a positive limit. It is
// allowed only if all of them have room; a rejected request charges none.
// The reported limit and remaining count are those of the tightest bucket.
func (l *Limiter) Take(now time.Time, buckets ...Bucket) Result {
	unixNow := now.Unix()
	windowStart := unixNow / l.windowS * l.windowS
	resetAt := windowStart + l.windowS
	result := Result{
		Allowed: true,
		ResetAt: resetAt,
		ResetIn: resetAt - unixNow,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if windowStart != l.windowStart {
		l.windowStart = windowStart
		clear(l.counts)
	}

	tightest := -1
	for i, b := range buckets {
		if b.Limit <= 0 {
			continue
		}
		if l.counts[bucketID{b.Kind, b.Name}] >= b.Limit {
			result.Allowed = false
		}
		if tightest < 0 || l.remaining(b) < l.remaining(buckets[tightest]) {
			tightest = i
		}
	}
	if tightest < 0 {
		return result
	}

	if result.Allowed {
		for _, b := range buckets {
			if b.Limit > 0 {
				l.counts[bucketID{b.Kind, b.Name}]++
			}
		}
	}
	result.Limit = buckets[tightest].Limit
	result.Remaining = max(l.remaining(buckets[tightest]), 0)
	return result
}

func (l *Limiter) remaining(b Bucket) int {
	return b.Limit - l.counts[bucketID{b.Kind, b.Name}]
}
