package ratelimiter

import (
	"sync"
	"time"
)

// bucket is a token bucket for a single identity
type bucket struct {
	tokens     float64
	capacity   float64
	rate       float64
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
	timer      *time.Timer
	identity   string
	parent     *Limiter
}

// Limiter keeps one bucket per identity (IP, email, account). Buckets idle
// for longer than the expiration are dropped.
type Limiter struct {
	buckets    map[string]*bucket
	mu         sync.RWMutex
	rate       float64
	capacity   float64
	expiration time.Duration
	now        func() time.Time
}

// New creates a limiter refilling rate tokens per second up to capacity.
func New(rate float64, capacity float64, expiration time.Duration) *Limiter {
	return &Limiter{
		buckets:    make(map[string]*bucket),
		rate:       rate,
		capacity:   capacity,
		expiration: expiration,
		now:        time.Now,
	}
}

// PerMinute allows n requests per minute with a burst of n.
func PerMinute(n int) *Limiter {
	return New(float64(n)/60, float64(n), time.Hour)
}

func (l *Limiter) drop(identity string, b *bucket) {
	l.mu.Lock()
	if l.buckets[identity] == b {
		delete(l.buckets, identity)
	}
	l.mu.Unlock()
}

func (b *bucket) touch() {
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.parent.expiration, func() {
		b.parent.drop(b.identity, b)
	})
}

func (l *Limiter) bucketFor(identity string) *bucket {
	l.mu.RLock()
	b, exists := l.buckets[identity]
	l.mu.RUnlock()

	if exists {
		b.mu.Lock()
		b.touch()
		b.mu.Unlock()
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if b, exists = l.buckets[identity]; exists {
		b.mu.Lock()
		b.touch()
		b.mu.Unlock()
		return b
	}

	b = &bucket{
		tokens:     l.capacity,
		capacity:   l.capacity,
		rate:       l.rate,
		lastRefill: l.now(),
		now:        l.now,
		identity:   identity,
		parent:     l,
	}
	l.buckets[identity] = b
	b.touch()
	return b
}

func (b *bucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Allow reports whether a request for identity may proceed and consumes a token if so.
func (l *Limiter) Allow(identity string) bool {
	return l.bucketFor(identity).allow()
}

func (l *Limiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets)
}

// Stop cancels all expiration timers.
func (l *Limiter) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, b := range l.buckets {
		b.mu.Lock()
		if b.timer != nil {
			b.timer.Stop()
		}
		b.mu.Unlock()
	}
}
