package ratelimit

import (
	"sync"
	"time"
)

// Limiter 速率限制器
type Limiter interface {
	Allow() bool
	Remaining() int
}

// TokenBucket 令牌桶：突发走容量，稳态走每秒补充
type TokenBucket struct {
	capacity   int
	tokens     int
	refillRate int // 每秒补充的令牌数
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket 创建令牌桶
func NewTokenBucket(capacity, refillRate int) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (tb *TokenBucket) refill() {
	now := time.Now()
	add := int(now.Sub(tb.lastRefill).Seconds()) * tb.refillRate
	if add > 0 {
		tb.tokens += add
		if tb.tokens > tb.capacity {
			tb.tokens = tb.capacity
		}
		tb.lastRefill = now
	}
}

// Allow 取一个令牌
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Remaining 剩余令牌数
func (tb *TokenBucket) Remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return tb.tokens
}

// SlidingWindow 滑动窗口：窗口内最多 limit 次
type SlidingWindow struct {
	limit      int
	windowSize time.Duration
	requests   []time.Time
	mu         sync.Mutex
}

// NewSlidingWindow 创建滑动窗口限制器
func NewSlidingWindow(limit int, windowSize time.Duration) *SlidingWindow {
	return &SlidingWindow{limit: limit, windowSize: windowSize}
}

func (sw *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-sw.windowSize)
	kept := sw.requests[:0]
	for _, req := range sw.requests {
		if req.After(cutoff) {
			kept = append(kept, req)
		}
	}
	sw.requests = kept
}

// Allow 窗口内未满则放行并记录
func (sw *SlidingWindow) Allow() bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	now := time.Now()
	sw.prune(now)
	if len(sw.requests) >= sw.limit {
		return false
	}
	sw.requests = append(sw.requests, now)
	return true
}

// Remaining 窗口内剩余额度
func (sw *SlidingWindow) Remaining() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.prune(time.Now())
	n := sw.limit - len(sw.requests)
	if n < 0 {
		n = 0
	}
	return n
}

// Registry 按名字管理一组限制器
type Registry struct {
	limiters map[string]Limiter
	fallback Limiter
	mu       sync.RWMutex
}

// NewRegistry 创建限制器注册表
func NewRegistry(fallback Limiter) *Registry {
	return &Registry{
		limiters: map[string]Limiter{},
		fallback: fallback,
	}
}

// Register 注册一个命名限制器
func (r *Registry) Register(name string, l Limiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.limiters[name] = l
}

// Allow 按名字取限制器放行；未注册走 fallback，fallback 为 nil 则不限
func (r *Registry) Allow(name string) bool {
	r.mu.RLock()
	l, ok := r.limiters[name]
	r.mu.RUnlock()
	if !ok {
		l = r.fallback
	}
	if l == nil {
		return true
	}
	return l.Allow()
}
