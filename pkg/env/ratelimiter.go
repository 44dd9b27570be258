package env

import "sync/atomic"

// RateLimiter records per-priority bytes and request counters. It never
// actually throttles: RequestToken always grants the full requested
// amount, and SetBytesPerSecond only records the configured rate for
// reporting. This is documented intent, not an unfinished feature.
type RateLimiter struct {
	bytesPerSecond atomic.Int64

	lowBytes    atomic.Int64
	lowRequests atomic.Int64

	highBytes    atomic.Int64
	highRequests atomic.Int64
}

// NewRateLimiter creates a RateLimiter configured at bytesPerSecond.
func NewRateLimiter(bytesPerSecond int64) *RateLimiter {
	r := &RateLimiter{}
	r.bytesPerSecond.Store(bytesPerSecond)
	return r
}

// RequestToken records bytes requested at the given priority and returns
// it verbatim: there is no throttling in this implementation.
func (r *RateLimiter) RequestToken(bytes int64, prio Priority) int64 {
	switch prio {
	case PriorityHigh:
		r.highBytes.Add(bytes)
		r.highRequests.Add(1)
	default:
		r.lowBytes.Add(bytes)
		r.lowRequests.Add(1)
	}
	return bytes
}

// SetBytesPerSecond records a new configured rate; it is advisory only.
func (r *RateLimiter) SetBytesPerSecond(n int64) {
	r.bytesPerSecond.Store(n)
}

// GetBytesPerSecond returns the configured (not enforced) rate.
func (r *RateLimiter) GetBytesPerSecond() int64 {
	return r.bytesPerSecond.Load()
}

// GetTotalBytesThrough returns the cumulative bytes recorded at prio.
func (r *RateLimiter) GetTotalBytesThrough(prio Priority) int64 {
	if prio == PriorityHigh {
		return r.highBytes.Load()
	}
	return r.lowBytes.Load()
}

// GetTotalRequests returns the cumulative request count at prio.
func (r *RateLimiter) GetTotalRequests(prio Priority) int64 {
	if prio == PriorityHigh {
		return r.highRequests.Load()
	}
	return r.lowRequests.Load()
}
