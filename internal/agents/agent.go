package agents

import (
	"math"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/rng"
)

// Kind 策略类型
type Kind string

const (
	KindSupplyDemand  Kind = "supply_demand"
	KindMomentum      Kind = "momentum"
	KindMeanReversion Kind = "mean_reversion"
	KindNoise         Kind = "noise"
	KindMarketMaker   Kind = "market_maker"
	KindCrossEffects  Kind = "cross_effects"
	KindInventory     Kind = "inventory"
	KindEvent         Kind = "event"
)

// Kinds 固定的创建顺序（种群构造的确定性依赖它）
var Kinds = []Kind{
	KindSupplyDemand, KindMomentum, KindMeanReversion, KindNoise,
	KindMarketMaker, KindCrossEffects, KindInventory, KindEvent,
}

// strategyState 各策略的私有参数，构造时按 Kind 初始化对应字段
type strategyState struct {
	// supply_demand
	imbalanceGain float64 // 失衡 → 公允价偏移
	entryMargin   float64 // 公允价偏离多少才动手

	// momentum / mean_reversion / cross_effects
	threshold  float64
	zThreshold float64

	// noise
	tradeProb  float64
	noiseStd   float64
	marketProb float64 // 直接发市价单的概率

	// market_maker
	baseSpread    float64
	volSpreadGain float64
	inventorySkew float64
	quoteSize     int64
	maxInventory  int64

	// inventory
	targetFraction float64
	rebalanceBand  float64
	cooldownTicks  uint64

	// event
	minMagnitude float64

	sinceAction uint64 // 距上次动作的 tick 数（冷却用）
}

// Agent 市场参与者
// 决策阶段只读快照 + 自身状态；资金与持仓的变更全部发生在
// 撮合后的成交回报阶段，由引擎单线程驱动。
type Agent struct {
	ID   uint64
	Kind Kind

	Cash        float64
	InitialCash float64
	Positions   map[string]*domain.Position

	Params Params
	sizing Sizing
	rng    *rng.Source

	sentiment    float64            // 全局情绪偏置，宏观新闻驱动，随时间衰减
	symSentiment map[string]float64 // 品种情绪，只被定向（供给/需求）新闻推动

	// 挂单占用：买单锁资金、卖单锁持仓，防止超卖/超支
	reservedCash float64
	reservedQty  map[string]int64

	st strategyState
}

// Decide 产出本 tick 的下单意图（0~2 张）
func (a *Agent) Decide(snap *Snapshot) []domain.OrderIntent {
	a.st.sinceAction++
	switch a.Kind {
	case KindSupplyDemand:
		return a.decideSupplyDemand(snap)
	case KindMomentum:
		return a.decideMomentum(snap)
	case KindMeanReversion:
		return a.decideMeanReversion(snap)
	case KindNoise:
		return a.decideNoise(snap)
	case KindMarketMaker:
		return a.decideMarketMaker(snap)
	case KindCrossEffects:
		return a.decideCrossEffects(snap)
	case KindInventory:
		return a.decideInventory(snap)
	case KindEvent:
		return a.decideEvent(snap)
	}
	return nil
}

// availableCash 未被挂单占用的资金
func (a *Agent) availableCash() float64 {
	c := a.Cash - a.reservedCash
	if c < 0 {
		return 0
	}
	return c
}

// maxSpend 单笔预算 = 可用资金 × min(基数/风险厌恶 × 信心, 上限)
func (a *Agent) maxSpend(confidence float64) float64 {
	frac := a.sizing.BaseCapitalFraction / a.Params.RiskAversion * confidence
	if frac > a.sizing.MaxSpendFraction {
		frac = a.sizing.MaxSpendFraction
	}
	return a.availableCash() * frac
}

// buyQty 预算内能买的数量，不超过单笔手数上限
func (a *Agent) buyQty(price, confidence float64) int64 {
	if price <= 0 {
		return 0
	}
	q := int64(math.Floor(a.maxSpend(confidence) / price))
	if a.sizing.MaxOrderSize > 0 && q > a.sizing.MaxOrderSize {
		q = a.sizing.MaxOrderSize
	}
	return q
}

// sellableQty 可卖数量 = 持仓 - 已挂卖单
func (a *Agent) sellableQty(symbol string) int64 {
	pos, ok := a.Positions[symbol]
	if !ok {
		return 0
	}
	q := pos.Quantity - a.reservedQty[symbol]
	if q < 0 {
		return 0
	}
	return q
}

// sellQty 卖出规模：预算折算后再按可卖量截断
func (a *Agent) sellQty(symbol string, price, confidence float64) int64 {
	q := a.buyQty(price, confidence)
	held := a.sellableQty(symbol)
	if q > held {
		q = held
	}
	return q
}

// intent 组装一张限价单意图
func intent(symbol string, side domain.Side, price float64, qty int64) domain.OrderIntent {
	return domain.OrderIntent{
		Symbol: symbol, Side: side, Kind: domain.KindLimit,
		Price: price, Quantity: qty,
	}
}

// ReserveBuy 买单入簿后锁定资金
func (a *Agent) ReserveBuy(price float64, qty int64) {
	a.reservedCash += price * float64(qty)
}

// ReserveSell 卖单入簿后锁定持仓
func (a *Agent) ReserveSell(symbol string, qty int64) {
	a.reservedQty[symbol] += qty
}

// ReleaseBuy 买单撤销/过期时释放剩余资金占用
func (a *Agent) ReleaseBuy(price float64, qty int64) {
	a.reservedCash -= price * float64(qty)
	if a.reservedCash < 0 {
		a.reservedCash = 0
	}
}

// ReleaseSell 卖单撤销/过期时释放剩余持仓占用
func (a *Agent) ReleaseSell(symbol string, qty int64) {
	a.reservedQty[symbol] -= qty
	if a.reservedQty[symbol] < 0 {
		a.reservedQty[symbol] = 0
	}
}

// OnBuyFill 买方成交：扣资金、加仓、更新均价；释放按挂单价锁的资金
func (a *Agent) OnBuyFill(symbol string, qty int64, fillPrice, orderPrice float64) {
	cost := fillPrice * float64(qty)
	a.Cash -= cost
	a.ReleaseBuy(orderPrice, qty)

	pos, ok := a.Positions[symbol]
	if !ok {
		pos = &domain.Position{}
		a.Positions[symbol] = pos
	}
	total := float64(pos.Quantity)*pos.AvgCost + cost
	pos.Quantity += qty
	if pos.Quantity > 0 {
		pos.AvgCost = total / float64(pos.Quantity)
	}
	a.st.sinceAction = 0
}

// OnSellFill 卖方成交：加资金、减仓；释放持仓占用
func (a *Agent) OnSellFill(symbol string, qty int64, fillPrice float64) {
	a.Cash += fillPrice * float64(qty)
	a.ReleaseSell(symbol, qty)

	if pos, ok := a.Positions[symbol]; ok {
		pos.Quantity -= qty
		if pos.Quantity <= 0 {
			pos.Quantity = 0
			pos.AvgCost = 0
		}
	}
	a.st.sinceAction = 0
}

// UpdateBeliefs 新闻驱动的个人情绪偏置
// 宏观（全球/政治）新闻动全局情绪；定向新闻只动目标品种：
// 需求走强利多，供给改善利空。
func (a *Agent) UpdateBeliefs(events []domain.NewsEvent) {
	for _, ev := range events {
		delta := ev.Magnitude * a.Params.NewsWeight * 0.5
		switch ev.Category {
		case domain.NewsDemand:
			a.symSentiment[ev.Symbol] = clamp1(a.symSentiment[ev.Symbol] + delta)
		case domain.NewsSupply:
			a.symSentiment[ev.Symbol] = clamp1(a.symSentiment[ev.Symbol] - delta)
		default:
			a.sentiment = clamp1(a.sentiment + delta)
		}
	}
}

// DecaySentiment 个人情绪向 0 指数回归
func (a *Agent) DecaySentiment(tickScale float64) {
	decay := 0.001 * tickScale
	if decay > 1 {
		decay = 1
	}
	a.sentiment -= a.sentiment * decay
	for sym, s := range a.symSentiment {
		a.symSentiment[sym] = s - s*decay
	}
}

// Sentiment 当前全局个人情绪
func (a *Agent) Sentiment() float64 { return a.sentiment }

// sentimentFor 对某品种的合成情绪 = 全局 + 品种定向
func (a *Agent) sentimentFor(symbol string) float64 {
	return clamp1(a.sentiment + a.symSentiment[symbol])
}

// NetWorth 按给定标记价的净值
func (a *Agent) NetWorth(prices map[string]float64) float64 {
	v := a.Cash
	for sym, pos := range a.Positions {
		v += float64(pos.Quantity) * prices[sym]
	}
	return v
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
