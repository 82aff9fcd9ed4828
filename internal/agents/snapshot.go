package agents

import (
	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
	"github.com/ProAltro/stock-market-simulator-sub002/internal/ledger"
)

// Snapshot agent 决策输入：上一 tick 结束时的市场只读视图
// 引擎每 tick 构建一次，所有 agent 并行共享，决策期间不得修改。
// 交叉影响读的是上一 tick 的收盘价，品种间没有 tick 内顺序依赖。
type Snapshot struct {
	Tick      uint64
	SimTimeMs int64
	TickScale float64

	Symbols []string

	Prices       map[string]float64
	DayOpen      map[string]float64
	History      map[string][]float64 // 收盘价历史（共享引用，只读）
	Volatility   map[string]float64   // 实现波动率
	SupplyDemand map[string]domain.SupplyDemand

	BestBid map[string]float64 // 0 表示该侧为空
	BestAsk map[string]float64

	CrossEffects map[string][]ledger.CrossEffect

	RecentNews   []domain.NewsEvent // 本 tick 的新闻
	Sentiment    float64            // 全局情绪
	VolIndex     float64            // 波动率指数
	InterestRate float64
}

// Return 品种最近 periods 个 tick 的收益率（历史不足返回 0）
func (s *Snapshot) Return(symbol string, periods int) float64 {
	h := s.History[symbol]
	n := len(h)
	if periods <= 0 || n < periods+1 {
		return 0
	}
	old := h[n-1-periods]
	if old <= 0 {
		return 0
	}
	return (h[n-1] - old) / old
}

// Mid 簿面中间价；单边或空簿时退回标记价
func (s *Snapshot) Mid(symbol string) float64 {
	bb, ba := s.BestBid[symbol], s.BestAsk[symbol]
	if bb > 0 && ba > 0 {
		return (bb + ba) / 2
	}
	return s.Prices[symbol]
}
