package ledger

import (
	"math"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
	"github.com/ProAltro/stock-market-simulator-sub002/internal/metrics"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/rng"
)

// Params 价格形成参数（全品种共享，来自 market 配置节）
type Params struct {
	ImpactDampening     float64
	ImbalanceGain       float64
	PriceFloor          float64
	CircuitBreakerLimit float64
	MaxPriceHistory     int
	FundamentalDecay    float64 // 基本面向基准值回归的速率
	FundamentalNoise    float64 // 基本面随机游走幅度
}

// Commodity 单品种账本
// 记录市场价、日内开盘价与熔断状态、供需基本面和收盘价历史。
// 只被引擎 tick 循环单线程访问；查询走引擎快照。
type Commodity struct {
	Symbol   string
	Name     string
	Category string

	price      float64
	basePrice  float64
	volatility float64

	dayOpen float64
	broken  bool // 熔断触发后当日锁死，不再接受成交价

	dailyVolume int64

	sd     domain.SupplyDemand
	baseSD domain.SupplyDemand

	history []float64 // 每 tick 收盘价
	params  Params
}

// NewCommodity 创建品种账本
func NewCommodity(symbol, name, category string, basePrice, volatility float64,
	sd domain.SupplyDemand, params Params) *Commodity {
	return &Commodity{
		Symbol:     symbol,
		Name:       name,
		Category:   category,
		price:      basePrice,
		basePrice:  basePrice,
		volatility: volatility,
		dayOpen:    basePrice,
		sd:         sd,
		baseSD:     sd,
		params:     params,
	}
}

// Price 当前标记价
func (c *Commodity) Price() float64 { return c.price }

// DayOpen 当日开盘价
func (c *Commodity) DayOpen() float64 { return c.dayOpen }

// CircuitBroken 当日是否已熔断
func (c *Commodity) CircuitBroken() bool { return c.broken }

// DailyVolume 当日成交量
func (c *Commodity) DailyVolume() int64 { return c.dailyVolume }

// SupplyDemand 当前基本面
func (c *Commodity) SupplyDemand() domain.SupplyDemand { return c.sd }

// Volatility 配置的基础波动率
func (c *Commodity) BaseVolatility() float64 { return c.volatility }

// clamp 熔断区间 + 最低价约束；越过涨跌停才夹回并锁死当日，
// 恰好停在限幅上不算熔断
func (c *Commodity) clamp(p float64) float64 {
	hi := c.dayOpen * (1 + c.params.CircuitBreakerLimit)
	lo := c.dayOpen * (1 - c.params.CircuitBreakerLimit)
	if p > hi {
		p = hi
		c.trip()
	} else if p < lo {
		p = lo
		c.trip()
	}
	if p < c.params.PriceFloor {
		p = c.params.PriceFloor
	}
	return p
}

// trip 触发熔断（当日首次触发才计数）
func (c *Commodity) trip() {
	if !c.broken {
		c.broken = true
		metrics.CircuitBreaks.Add(1)
	}
}

// ApplyTradePrice 成交驱动的标记价更新
// alpha 随成交量的平方根衰减（大单的边际冲击递减），
// 熔断后当日不再移动标记价（撮合照常进行）。
func (c *Commodity) ApplyTradePrice(tradePrice float64, qty int64) {
	c.dailyVolume += qty
	if c.broken {
		return
	}
	q := float64(qty)
	if q < 1 {
		q = 1
	}
	alpha := c.params.ImpactDampening / math.Sqrt(q)
	if alpha > 0.5 {
		alpha = 0.5
	}
	c.price = c.clamp(c.price*(1-alpha) + tradePrice*alpha)
}

// ApplyOrderFlow 订单流不平衡的微调
// imbalance = (bidVol-askVol)/(bidVol+askVol) ∈ [-1,1]
func (c *Commodity) ApplyOrderFlow(bidVol, askVol int64) {
	if c.broken {
		return
	}
	total := bidVol + askVol
	if total <= 0 {
		return
	}
	imb := float64(bidVol-askVol) / float64(total)
	c.price = c.clamp(c.price * (1 + c.params.ImbalanceGain*imb))
}

// ApplySupplyShock 供给类新闻：幅度为正表示供给改善（产量上升）
func (c *Commodity) ApplySupplyShock(magnitude float64) {
	c.sd.Production *= 1 + magnitude
	if c.sd.Production < 0 {
		c.sd.Production = 0
	}
}

// ApplyDemandShock 需求类新闻：幅度为正表示需求走强（消费上升）
func (c *Commodity) ApplyDemandShock(magnitude float64) {
	c.sd.Consumption *= 1 + magnitude
	if c.sd.Consumption < 0 {
		c.sd.Consumption = 0
	}
}

// UpdateFundamentals 每 tick 基本面演化：
// 生产/消费向基准值指数回归，叠加小幅随机游走；
// 库存按净产量累积（不为负）。
func (c *Commodity) UpdateFundamentals(tickScale float64, r *rng.Source) {
	decay := c.params.FundamentalDecay * tickScale
	if decay > 1 {
		decay = 1
	}
	noise := c.params.FundamentalNoise * math.Sqrt(tickScale)

	c.sd.Production += (c.baseSD.Production-c.sd.Production)*decay +
		r.Normal(0, noise*c.baseSD.Production)
	c.sd.Consumption += (c.baseSD.Consumption-c.sd.Consumption)*decay +
		r.Normal(0, noise*c.baseSD.Consumption)
	if c.sd.Production < 0 {
		c.sd.Production = 0
	}
	if c.sd.Consumption < 0 {
		c.sd.Consumption = 0
	}

	c.sd.Inventory += (c.sd.Production - c.sd.Consumption) * tickScale
	if c.sd.Inventory < 0 {
		c.sd.Inventory = 0
	}
}

// RecordClose tick 末记录收盘价
func (c *Commodity) RecordClose() {
	c.history = append(c.history, c.price)
	if c.params.MaxPriceHistory > 0 && len(c.history) > c.params.MaxPriceHistory {
		c.history = c.history[len(c.history)-c.params.MaxPriceHistory:]
	}
}

// History 收盘价历史（升序，只读引用，快照时拷贝）
func (c *Commodity) History() []float64 { return c.history }

// Return 最近 periods 个 tick 的收益率
func (c *Commodity) Return(periods int) float64 {
	n := len(c.history)
	if n < periods+1 || periods <= 0 {
		return 0
	}
	old := c.history[n-1-periods]
	if old <= 0 {
		return 0
	}
	return (c.history[n-1] - old) / old
}

// RealizedVolatility 最近 periods 个 tick 的收益率标准差
func (c *Commodity) RealizedVolatility(periods int) float64 {
	n := len(c.history)
	if periods < 2 || n < periods+1 {
		return c.volatility
	}
	var mean float64
	rets := make([]float64, 0, periods)
	for i := n - periods; i < n; i++ {
		prev := c.history[i-1]
		if prev <= 0 {
			continue
		}
		ret := (c.history[i] - prev) / prev
		rets = append(rets, ret)
		mean += ret
	}
	if len(rets) < 2 {
		return c.volatility
	}
	mean /= float64(len(rets))
	var ss float64
	for _, r := range rets {
		d := r - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(rets)-1))
}

// MarkNewDay 日边界：重置开盘价、熔断标志和日内成交量
func (c *Commodity) MarkNewDay() {
	c.dayOpen = c.price
	c.broken = false
	c.dailyVolume = 0
}

// Reset 回到初始状态
func (c *Commodity) Reset() {
	c.price = c.basePrice
	c.dayOpen = c.basePrice
	c.broken = false
	c.dailyVolume = 0
	c.sd = c.baseSD
	c.history = nil
}
