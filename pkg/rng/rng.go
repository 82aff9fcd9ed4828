package rng

import (
	"math"
	"math/rand"
	"sync"
)

// Source 可播种的随机源，贯穿 Clock/NewsGenerator/Agent 的构造过程。
// 每个需要随机性的组件持有自己的 Source（由主种子派生），
// 这样并行的 agent 决策阶段也能保持可复现的回放。
//
// 注意：Source 本身不是并发安全的；Fork 出来的子源各自归属单个 goroutine。
type Source struct {
	mu sync.Mutex
	r  *rand.Rand
}

// New 根据种子创建随机源
func New(seed int64) *Source {
	return &Source{r: rand.New(rand.NewSource(seed))}
}

// Fork 派生一个子源（种子 = 父种子流的下一个值 XOR salt）
// 用于给每个 agent 分配独立的随机流。
func (s *Source) Fork(salt int64) *Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return New(s.r.Int63() ^ salt)
}

// Uniform 均匀分布 [min, max)
func (s *Source) Uniform(min, max float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + s.r.Float64()*(max-min)
}

// UniformInt 均匀整数 [min, max]（含两端）
func (s *Source) UniformInt(min, max int) int {
	if max <= min {
		return min
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return min + s.r.Intn(max-min+1)
}

// Normal 正态分布
func (s *Source) Normal(mean, stddev float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return mean + s.r.NormFloat64()*stddev
}

// LogNormal 对数正态分布
func (s *Source) LogNormal(mu, sigma float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return math.Exp(mu + s.r.NormFloat64()*sigma)
}

// Exponential 指数分布（lambda 为速率参数）
func (s *Source) Exponential(lambda float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.ExpFloat64() / lambda
}

// Poisson 泊松分布（Knuth 算法；lambda 很小时每 tick 只需数次乘法）
func (s *Source) Poisson(lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l := math.Exp(-lambda)
	k := 0
	p := 1.0
	for {
		p *= s.r.Float64()
		if p <= l {
			return k
		}
		k++
	}
}

// Bernoulli 以概率 p 返回 true
func (s *Source) Bernoulli(p float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64() < p
}
