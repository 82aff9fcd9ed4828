package ratelimit

import (
	"testing"
	"time"
)

func TestTokenBucketBurst(t *testing.T) {
	tb := NewTokenBucket(3, 1)
	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Fatalf("第 %d 次请求应在突发容量内放行", i+1)
		}
	}
	if tb.Allow() {
		t.Fatal("令牌耗尽后应拒绝")
	}
	if got := tb.Remaining(); got != 0 {
		t.Fatalf("剩余令牌应为 0, 得到 %d", got)
	}
}

func TestSlidingWindowLimit(t *testing.T) {
	sw := NewSlidingWindow(2, 50*time.Millisecond)
	if !sw.Allow() || !sw.Allow() {
		t.Fatal("窗口内前两次应放行")
	}
	if sw.Allow() {
		t.Fatal("窗口内第三次应拒绝")
	}
	time.Sleep(60 * time.Millisecond)
	if !sw.Allow() {
		t.Fatal("窗口滑过后应重新放行")
	}
}

func TestRegistryFallback(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("orders", NewTokenBucket(1, 1))

	if !r.Allow("orders") {
		t.Fatal("首次应放行")
	}
	if r.Allow("orders") {
		t.Fatal("额度用尽应拒绝")
	}
	// 未注册且无兜底 → 不限
	if !r.Allow("unknown") {
		t.Fatal("未注册端点不应被限制")
	}
}
