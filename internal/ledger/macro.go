package ledger

import (
	"math"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/rng"
)

// Macro 宏观环境
// 全球/政治类新闻作用在这里，agent 通过快照读取。
type Macro struct {
	sentiment    float64 // 全局情绪 [-1, 1]
	volatilityIdx float64 // 波动率指数（情绪剧烈波动时抬升）
	interestRate float64

	sentimentDecay float64 // 每基准 tick 向 0 回归的速率
}

// NewMacro 创建宏观环境
func NewMacro() *Macro {
	return &Macro{
		interestRate:   0.03,
		sentimentDecay: 0.0001,
	}
}

// Sentiment 全局情绪
func (m *Macro) Sentiment() float64 { return m.sentiment }

// VolatilityIndex 波动率指数
func (m *Macro) VolatilityIndex() float64 { return m.volatilityIdx }

// InterestRate 无风险利率
func (m *Macro) InterestRate() float64 { return m.interestRate }

// ApplyNews 全球/政治新闻推动情绪，幅度同时抬升波动率指数
func (m *Macro) ApplyNews(ev domain.NewsEvent) {
	m.sentiment = clamp1(m.sentiment + ev.Magnitude)
	abs := ev.Magnitude
	if abs < 0 {
		abs = -abs
	}
	m.volatilityIdx += abs * 0.5
	if m.volatilityIdx > 1 {
		m.volatilityIdx = 1
	}
}

// Update 每 tick：情绪与波动率指数指数回归，小幅噪声
func (m *Macro) Update(tickScale float64, r *rng.Source) {
	decay := m.sentimentDecay * tickScale
	if decay > 1 {
		decay = 1
	}
	m.sentiment -= m.sentiment * decay
	m.sentiment = clamp1(m.sentiment + r.Normal(0, 0.0002*math.Sqrt(tickScale)))
	m.volatilityIdx -= m.volatilityIdx * decay
	if m.volatilityIdx < 0 {
		m.volatilityIdx = 0
	}
}

// Reset 归零
func (m *Macro) Reset() {
	m.sentiment = 0
	m.volatilityIdx = 0
}

func clamp1(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
