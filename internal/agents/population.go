package agents

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/config"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/rng"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/syncgroup"
)

var log = logrus.WithField("component", "agents")

// TypeStats 按策略类型聚合的运行统计
type TypeStats struct {
	Kind      Kind    `json:"kind"`
	Agents    int     `json:"agents"`
	Orders    uint64  `json:"orders"`
	Fills     uint64  `json:"fills"`
	Volume    int64   `json:"volume"`
	Cash      float64 `json:"cash"`
	Positions float64 `json:"positionsValue"`
	NetWorth  float64 `json:"netWorth"`
}

// Population agent 种群（arena）
// 创建顺序和每-agent 随机流都由主种子决定，
// 并行决策把结果写进按下标预分配的切片，回放完全确定。
type Population struct {
	agents []*Agent
	byID   map[uint64]*Agent

	sizing  Sizing
	workers int

	orders map[Kind]uint64
	fills  map[Kind]uint64
	volume map[Kind]int64
}

// NewPopulation 按配置构建种群
// symbols 用于做市商的初始库存铺底。
func NewPopulation(cfg config.AgentsConfig, master *rng.Source, symbols []string, basePrices map[string]float64, workers int) *Population {
	p := &Population{
		byID: map[uint64]*Agent{},
		sizing: Sizing{BaseCapitalFraction: cfg.BaseCapitalFraction,
			MaxSpendFraction: cfg.MaxSpendFraction, MaxOrderSize: cfg.MaxOrderSize},
		workers: workers,
		orders:  map[Kind]uint64{},
		fills:   map[Kind]uint64{},
		volume:  map[Kind]int64{},
	}

	var id uint64
	for _, kind := range Kinds {
		n := cfg.Counts[string(kind)]
		for i := 0; i < n; i++ {
			id++
			a := newAgent(id, kind, cfg, master.Fork(int64(id)))
			if kind == KindMarketMaker && cfg.SeedMakerInventory {
				seedInventory(a, symbols, basePrices)
			}
			p.agents = append(p.agents, a)
			p.byID[id] = a
		}
	}
	log.Infof("创建 %d 个 agent（%d 种策略）", len(p.agents), len(cfg.Counts))
	return p
}

func newAgent(id uint64, kind Kind, cfg config.AgentsConfig, r *rng.Source) *Agent {
	cash := cfg.InitialCash * r.LogNormal(0, cfg.CashSigma)
	a := &Agent{
		ID:          id,
		Kind:        kind,
		Cash:        cash,
		InitialCash: cash,
		Positions: map[string]*domain.Position{},
		Params:    sampleParams(r),
		sizing: Sizing{BaseCapitalFraction: cfg.BaseCapitalFraction,
			MaxSpendFraction: cfg.MaxSpendFraction, MaxOrderSize: cfg.MaxOrderSize},
		rng:          r,
		symSentiment: map[string]float64{},
		reservedQty:  map[string]int64{},
	}

	switch kind {
	case KindSupplyDemand:
		a.st.imbalanceGain = r.Uniform(0.5, 2.0)
		a.st.entryMargin = r.Uniform(0.002, 0.01)
	case KindMomentum:
		a.st.threshold = r.Uniform(0.002, 0.02)
	case KindMeanReversion:
		a.st.zThreshold = r.Uniform(1.0, 2.5)
	case KindNoise:
		a.st.tradeProb = r.Uniform(0.001, 0.01)
		a.st.noiseStd = r.Uniform(0.001, 0.01)
		a.st.marketProb = cfg.NoiseMarketProb
	case KindMarketMaker:
		a.st.baseSpread = r.Uniform(0.002, 0.01)
		a.st.volSpreadGain = r.Uniform(0.5, 2.0)
		a.st.inventorySkew = r.Uniform(0.2, 1.0)
		a.st.quoteSize = int64(r.UniformInt(5, 20))
		a.st.maxInventory = int64(r.UniformInt(200, 500))
		a.st.cooldownTicks = uint64(r.UniformInt(20, 60))
		// 第 0 个 tick 就要挂出双边报价
		a.st.sinceAction = a.st.cooldownTicks
	case KindCrossEffects:
		a.st.threshold = r.Uniform(0.002, 0.01)
	case KindInventory:
		a.st.targetFraction = r.Uniform(0.05, 0.20)
		a.st.rebalanceBand = r.Uniform(0.02, 0.08)
		a.st.cooldownTicks = uint64(r.UniformInt(200, 1000))
	case KindEvent:
		a.st.minMagnitude = r.Uniform(0.005, 0.02)
	}
	return a
}

// seedInventory 做市商初始库存：每品种半箱货，成本记基准价
func seedInventory(a *Agent, symbols []string, basePrices map[string]float64) {
	qty := a.st.maxInventory / 2
	for _, sym := range symbols {
		a.Positions[sym] = &domain.Position{
			Quantity: qty,
			AvgCost:  basePrices[sym],
		}
	}
}

// Agents 全体（按创建顺序）
func (p *Population) Agents() []*Agent { return p.agents }

// Get 按 ID 取 agent
func (p *Population) Get(id uint64) (*Agent, bool) {
	a, ok := p.byID[id]
	return a, ok
}

// Size 种群规模
func (p *Population) Size() int { return len(p.agents) }

// DecideAll 并行决策：结果按 agent 下标写入，顺序与创建顺序一致
func (p *Population) DecideAll(snap *Snapshot) [][]domain.OrderIntent {
	out := make([][]domain.OrderIntent, len(p.agents))
	syncgroup.ForEachChunk(len(p.agents), p.workers, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = p.agents[i].Decide(snap)
		}
	})
	return out
}

// UpdateBeliefsAll 新闻广播（并行，agent 间无共享写）
func (p *Population) UpdateBeliefsAll(events []domain.NewsEvent) {
	if len(events) == 0 {
		return
	}
	syncgroup.ForEachChunk(len(p.agents), p.workers, func(start, end int) {
		for i := start; i < end; i++ {
			p.agents[i].UpdateBeliefs(events)
		}
	})
}

// DecayAll 每 tick 个人情绪衰减
func (p *Population) DecayAll(tickScale float64) {
	syncgroup.ForEachChunk(len(p.agents), p.workers, func(start, end int) {
		for i := start; i < end; i++ {
			p.agents[i].DecaySentiment(tickScale)
		}
	})
}

// CountOrder 订单入簿后登记（占用资金/持仓 + 统计）
func (p *Population) CountOrder(o *domain.Order) {
	a, ok := p.byID[o.OwnerID]
	if !ok {
		return
	}
	if o.Side == domain.SideBuy {
		a.ReserveBuy(o.Price, o.Quantity)
	} else {
		a.ReserveSell(o.Symbol, o.Quantity)
	}
	p.orders[a.Kind]++
}

// ApplyFill 成交回报：买卖双方各自记账
func (p *Population) ApplyFill(t domain.Trade, buyOrderPrice float64) {
	if buyer, ok := p.byID[t.BuyerID]; ok {
		buyer.OnBuyFill(t.Symbol, t.Quantity, t.Price, buyOrderPrice)
		p.fills[buyer.Kind]++
		p.volume[buyer.Kind] += t.Quantity
	}
	if seller, ok := p.byID[t.SellerID]; ok {
		seller.OnSellFill(t.Symbol, t.Quantity, t.Price)
		p.fills[seller.Kind]++
		p.volume[seller.Kind] += t.Quantity
	}
}

// ReleaseOrder 订单撤销/过期后释放剩余占用
func (p *Population) ReleaseOrder(o *domain.Order) {
	a, ok := p.byID[o.OwnerID]
	if !ok {
		return
	}
	if o.Side == domain.SideBuy {
		a.ReleaseBuy(o.Price, o.Remaining)
	} else {
		a.ReleaseSell(o.Symbol, o.Remaining)
	}
}

// Stats 按类型汇总（prices 用于持仓估值）
func (p *Population) Stats(prices map[string]float64) []TypeStats {
	byKind := map[Kind]*TypeStats{}
	for _, kind := range Kinds {
		byKind[kind] = &TypeStats{Kind: kind}
	}
	for _, a := range p.agents {
		s := byKind[a.Kind]
		s.Agents++
		s.Cash += a.Cash
		for sym, pos := range a.Positions {
			s.Positions += float64(pos.Quantity) * prices[sym]
		}
	}
	out := make([]TypeStats, 0, len(Kinds))
	for _, kind := range Kinds {
		s := byKind[kind]
		if s.Agents == 0 {
			continue
		}
		s.Orders = p.orders[kind]
		s.Fills = p.fills[kind]
		s.Volume = p.volume[kind]
		s.NetWorth = s.Cash + s.Positions
		// 汇总里别带 NaN
		if math.IsNaN(s.NetWorth) {
			s.NetWorth = 0
		}
		out = append(out, *s)
	}
	return out
}
