package ledger

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/config"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/rng"
)

var log = logrus.WithField("component", "ledger")

// CrossEffect 品种间联动：source 的收益按因子传导给 target
type CrossEffect struct {
	Target string
	Factor float64
}

// Ledger 全品种账本 + 宏观环境
// 品种表在构造后不变，遍历一律走排序后的 symbols 保证确定性。
type Ledger struct {
	commodities map[string]*Commodity
	symbols     []string
	cross       map[string][]CrossEffect
	macro       *Macro
	rng         *rng.Source
	params      Params
}

// New 按配置构建账本；specs 为空时用内置默认品种
func New(specs []config.CommoditySpec, params Params, source *rng.Source) (*Ledger, error) {
	if len(specs) == 0 {
		specs = DefaultSpecs()
		log.Infof("未配置商品，使用内置 %d 品种", len(specs))
	}

	l := &Ledger{
		commodities: map[string]*Commodity{},
		cross:       map[string][]CrossEffect{},
		macro:       NewMacro(),
		rng:         source,
		params:      params,
	}
	for _, spec := range specs {
		if _, dup := l.commodities[spec.Symbol]; dup {
			return nil, domain.E(domain.KindValidation, "品种重复: %s", spec.Symbol)
		}
		l.commodities[spec.Symbol] = NewCommodity(
			spec.Symbol, spec.Name, spec.Category,
			spec.BasePrice, spec.Volatility,
			domain.SupplyDemand{
				Production:  spec.Production,
				Consumption: spec.Consumption,
				Inventory:   spec.Inventory,
			},
			params,
		)
		l.symbols = append(l.symbols, spec.Symbol)
	}
	sort.Strings(l.symbols)

	for _, spec := range specs {
		targets := make([]string, 0, len(spec.CrossEffects))
		for t := range spec.CrossEffects {
			targets = append(targets, t)
		}
		sort.Strings(targets)
		for _, t := range targets {
			if _, ok := l.commodities[t]; !ok {
				return nil, domain.E(domain.KindValidation,
					"品种 %s 的交叉影响指向未知品种 %s", spec.Symbol, t)
			}
			l.cross[spec.Symbol] = append(l.cross[spec.Symbol],
				CrossEffect{Target: t, Factor: spec.CrossEffects[t]})
		}
	}
	return l, nil
}

// Symbols 排序后的品种表
func (l *Ledger) Symbols() []string { return l.symbols }

// Get 按代码取品种
func (l *Ledger) Get(symbol string) (*Commodity, error) {
	c, ok := l.commodities[symbol]
	if !ok {
		return nil, domain.E(domain.KindUnknownSymbol, "品种不存在: %s", symbol)
	}
	return c, nil
}

// Has 品种是否存在
func (l *Ledger) Has(symbol string) bool {
	_, ok := l.commodities[symbol]
	return ok
}

// Macro 宏观环境
func (l *Ledger) Macro() *Macro { return l.macro }

// CrossEffects source 品种的联动表
func (l *Ledger) CrossEffects(symbol string) []CrossEffect {
	return l.cross[symbol]
}

// ApplyNews 路由新闻：全局/政治 → 宏观情绪，供给/需求 → 品种基本面
func (l *Ledger) ApplyNews(ev domain.NewsEvent) {
	switch ev.Category {
	case domain.NewsGlobal, domain.NewsPolitical:
		l.macro.ApplyNews(ev)
	case domain.NewsSupply:
		if c, ok := l.commodities[ev.Symbol]; ok {
			c.ApplySupplyShock(ev.Magnitude)
		}
	case domain.NewsDemand:
		if c, ok := l.commodities[ev.Symbol]; ok {
			c.ApplyDemandShock(ev.Magnitude)
		}
	}
}

// UpdateFundamentals 每 tick：宏观 + 全品种基本面演化
func (l *Ledger) UpdateFundamentals(tickScale float64) {
	l.macro.Update(tickScale, l.rng)
	for _, sym := range l.symbols {
		l.commodities[sym].UpdateFundamentals(tickScale, l.rng)
	}
}

// RecordCloses tick 末全品种记收盘价
func (l *Ledger) RecordCloses() {
	for _, sym := range l.symbols {
		l.commodities[sym].RecordClose()
	}
}

// MarkNewDay 日边界处理
func (l *Ledger) MarkNewDay() {
	for _, sym := range l.symbols {
		l.commodities[sym].MarkNewDay()
	}
}

// Reset 全部归位
func (l *Ledger) Reset() {
	for _, sym := range l.symbols {
		l.commodities[sym].Reset()
	}
	l.macro.Reset()
}
