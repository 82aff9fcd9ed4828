package ledger

import (
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/config"
)

// DefaultSpecs 内置五品种：能源-建材-农产品的小型交易所
// 交叉影响：钢铁/砖块的生产吃油价，木材与砖块在建材端互替，
// 谷物的运输成本挂钩原油。
func DefaultSpecs() []config.CommoditySpec {
	return []config.CommoditySpec{
		{
			Symbol: "OIL", Name: "Crude Oil", Category: "energy",
			BasePrice: 75.0, Volatility: 0.02,
			Production: 1000, Consumption: 1000, Inventory: 5000,
			CrossEffects: map[string]float64{
				"STEEL": 0.30, // 油价涨推高钢铁成本
				"BRICK": 0.15,
				"GRAIN": 0.10,
			},
		},
		{
			Symbol: "STEEL", Name: "Steel", Category: "industrial",
			BasePrice: 120.0, Volatility: 0.015,
			Production: 800, Consumption: 820, Inventory: 3000,
			CrossEffects: map[string]float64{
				"BRICK": -0.10, // 钢价涨时砖块是替代建材
			},
		},
		{
			Symbol: "WOOD", Name: "Lumber", Category: "construction",
			BasePrice: 45.0, Volatility: 0.025,
			Production: 1200, Consumption: 1150, Inventory: 4000,
			CrossEffects: map[string]float64{
				"BRICK": -0.12,
			},
		},
		{
			Symbol: "BRICK", Name: "Brick", Category: "construction",
			BasePrice: 30.0, Volatility: 0.012,
			Production: 1500, Consumption: 1500, Inventory: 6000,
			CrossEffects: map[string]float64{
				"WOOD": -0.08,
			},
		},
		{
			Symbol: "GRAIN", Name: "Grain", Category: "agriculture",
			BasePrice: 25.0, Volatility: 0.03,
			Production: 2000, Consumption: 1980, Inventory: 8000,
			CrossEffects: map[string]float64{},
		},
	}
}

// DefaultParams market 配置节到账本参数的转换
func DefaultParams(m config.MarketConfig) Params {
	return Params{
		ImpactDampening:     m.ImpactDampening,
		ImbalanceGain:       m.ImbalanceGain,
		PriceFloor:          m.PriceFloor,
		CircuitBreakerLimit: m.CircuitBreakerLimit,
		MaxPriceHistory:     m.MaxPriceHistory,
		FundamentalDecay:    0.001,
		FundamentalNoise:    0.0005,
	}
}
