package agents

import (
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/rng"
)

// Params agent 共有行为参数，构造时从分布采样
type Params struct {
	RiskAversion  float64 // 风险厌恶 [0.5, 2.0]，越大下单越小
	ReactionSpeed float64 // 反应速度 [0.1, 1.0]，信号到下单的折扣
	NewsWeight    float64 // 新闻敏感度 [0, 1]
	Confidence    float64 // 基础信心 [0.3, 1.0]
	TimeHorizon   int     // 观察窗口（tick 数）
}

// sampleParams 从各自分布采样一套参数
func sampleParams(r *rng.Source) Params {
	return Params{
		RiskAversion:  r.Uniform(0.5, 2.0),
		ReactionSpeed: r.Uniform(0.1, 1.0),
		NewsWeight:    r.Uniform(0.0, 1.0),
		Confidence:    r.Uniform(0.3, 1.0),
		TimeHorizon:   r.UniformInt(20, 400),
	}
}

// Sizing 下单规模的全局约束（来自 agents 配置节）
type Sizing struct {
	BaseCapitalFraction float64 // 单笔资金比例基数
	MaxSpendFraction    float64 // 单笔资金比例硬上限
	MaxOrderSize        int64   // 单笔手数硬上限
}
