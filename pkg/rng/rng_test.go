package rng

import (
	"math"
	"testing"
)

// TestSameSeedSameStream 同种子同序列
func TestSameSeedSameStream(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 100; i++ {
		if a.Uniform(0, 1) != b.Uniform(0, 1) {
			t.Fatalf("第 %d 个样本不一致", i)
		}
	}
}

// TestForkIsDeterministic 同样的派生顺序得到同样的子流
func TestForkIsDeterministic(t *testing.T) {
	a, b := New(7), New(7)
	ca, cb := a.Fork(3), b.Fork(3)
	for i := 0; i < 50; i++ {
		if ca.Normal(0, 1) != cb.Normal(0, 1) {
			t.Fatalf("子流第 %d 个样本不一致", i)
		}
	}
}

// TestForkSaltSeparatesStreams 不同 salt 派生不同的流
func TestForkSaltSeparatesStreams(t *testing.T) {
	parent := New(7)
	c1 := parent.Fork(1)
	parent2 := New(7)
	c2 := parent2.Fork(2)

	same := 0
	for i := 0; i < 20; i++ {
		if c1.Uniform(0, 1) == c2.Uniform(0, 1) {
			same++
		}
	}
	if same == 20 {
		t.Fatal("不同 salt 的子流不应完全相同")
	}
}

// TestPoissonMean 泊松样本均值接近 lambda
func TestPoissonMean(t *testing.T) {
	s := New(1)
	const lambda = 2.5
	const n = 20000
	sum := 0
	for i := 0; i < n; i++ {
		sum += s.Poisson(lambda)
	}
	mean := float64(sum) / n
	if math.Abs(mean-lambda) > 0.1 {
		t.Fatalf("泊松均值偏差过大: %f", mean)
	}
	if s.Poisson(0) != 0 || s.Poisson(-1) != 0 {
		t.Fatal("非正 lambda 应返回 0")
	}
}

// TestUniformIntBounds 含两端的整数均匀分布
func TestUniformIntBounds(t *testing.T) {
	s := New(3)
	seen := map[int]bool{}
	for i := 0; i < 1000; i++ {
		v := s.UniformInt(1, 3)
		if v < 1 || v > 3 {
			t.Fatalf("越界: %d", v)
		}
		seen[v] = true
	}
	if len(seen) != 3 {
		t.Fatalf("1000 个样本应覆盖全部 3 个值, 只见到 %d 个", len(seen))
	}
	if s.UniformInt(5, 5) != 5 {
		t.Fatal("min==max 时应返回 min")
	}
}
