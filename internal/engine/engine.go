package engine

import (
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/agents"
	"github.com/ProAltro/stock-market-simulator-sub002/internal/candles"
	"github.com/ProAltro/stock-market-simulator-sub002/internal/clock"
	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
	"github.com/ProAltro/stock-market-simulator-sub002/internal/events"
	"github.com/ProAltro/stock-market-simulator-sub002/internal/ledger"
	"github.com/ProAltro/stock-market-simulator-sub002/internal/metrics"
	"github.com/ProAltro/stock-market-simulator-sub002/internal/news"
	"github.com/ProAltro/stock-market-simulator-sub002/internal/orderbook"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/config"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/rng"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/syncgroup"
)

var log = logrus.WithField("component", "engine")

// Callbacks tick 流水线的外发钩子（推流 + 导出）
// 回调在 tick 线程上执行，必须快进快出。
type Callbacks struct {
	OnTrade  func(domain.Trade)
	OnCandle func(symbol, interval string, c domain.Candle)
	OnNews   func(domain.NewsEvent)
	OnTick   func(events.TickCompleted)
}

// Engine 市场引擎：单个 tick 的完整流水线
// 不自带锁，由 Simulation 控制面串行驱动；
// tick 内部的并行（决策、撮合）都在返回前汇合。
type Engine struct {
	cfg  *config.Config
	seed int64

	clock   *clock.Clock
	ledger  *ledger.Ledger
	pop     *agents.Population
	newsGen *news.Generator
	enrich  *news.Enricher
	candles *candles.Aggregator

	symbols []string
	books   map[string]*orderbook.Book

	orderSeq uint64
	tradeSeq uint64
	newsSeen uint64

	recentTrades []domain.Trade

	pendingOrders  []*domain.Order
	pendingCancels []cancelReq

	workers int
	cb      Callbacks
}

type cancelReq struct {
	symbol string
	id     uint64
}

// New 按配置构建引擎；seed=0 时取当前时间并记录下来供回放
func New(cfg *config.Config, cb Callbacks) (*Engine, error) {
	seed := cfg.Sim.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
		log.Infof("未指定种子，使用 %d", seed)
	}

	e := &Engine{cfg: cfg, seed: seed, cb: cb}
	if err := e.build(); err != nil {
		return nil, err
	}
	return e, nil
}

// build 从 (cfg, seed) 重建全部内部状态；Reset 也走这里
func (e *Engine) build() error {
	cfg := e.cfg

	master := rng.New(e.seed)
	// 固定的派生顺序：账本、新闻、种群各占一条独立随机流
	ledgerRng := master.Fork(1)
	newsRng := master.Fork(2)
	popRng := master.Fork(3)

	c, err := clock.New(cfg.Sim.StartDate, cfg.Sim.TicksPerDay)
	if err != nil {
		return err
	}
	c.SetReferenceTicksPerDay(cfg.Sim.TicksPerDay)
	e.clock = c

	l, err := ledger.New(cfg.Commodities, ledger.DefaultParams(cfg.Market), ledgerRng)
	if err != nil {
		return err
	}
	e.ledger = l
	e.symbols = l.Symbols()

	names := map[string]string{}
	basePrices := map[string]float64{}
	for _, sym := range e.symbols {
		com, _ := l.Get(sym)
		names[sym] = com.Name
		basePrices[sym] = com.Price()
	}

	e.newsGen = news.NewGenerator(news.Config{
		Enabled:        cfg.News.Enabled,
		RatePerTick:    cfg.News.RatePerTick,
		SigmaGlobal:    cfg.News.SigmaGlobal,
		SigmaPolitical: cfg.News.SigmaPolitical,
		SigmaSupply:    cfg.News.SigmaSupply,
		SigmaDemand:    cfg.News.SigmaDemand,
		RecentLimit:    cfg.News.RecentLimit,
		HistoryLimit:   cfg.News.HistoryLimit,
	}, newsRng, names)
	e.enrich = news.NewEnricher(cfg.News.Enrichment.URL,
		time.Duration(cfg.News.Enrichment.TimeoutMs)*time.Millisecond,
		e.newsGen.UpdateHeadline)

	agg, err := candles.New(cfg.Candles.Intervals, cfg.Candles.MaxCandles)
	if err != nil {
		return err
	}
	for _, sym := range e.symbols {
		agg.AddSymbol(sym)
	}
	agg.SetOnSealed(func(symbol, interval string, cd domain.Candle) {
		if e.cb.OnCandle != nil {
			e.cb.OnCandle(symbol, interval, cd)
		}
	})
	e.candles = agg

	e.books = map[string]*orderbook.Book{}
	for _, sym := range e.symbols {
		e.books[sym] = orderbook.New(sym, orderbook.Options{
			ExpiryTicks: e.expiryTicks(),
			PriceFloor:  cfg.Market.PriceFloor,
			MarketCap:   cfg.Market.MarketOrderCap,
		})
	}

	workers := cfg.Sim.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	e.workers = workers

	e.pop = agents.NewPopulation(cfg.Agents, popRng, e.symbols, basePrices, workers)

	e.orderSeq = 0
	e.tradeSeq = 0
	e.recentTrades = nil
	e.pendingOrders = nil
	e.pendingCancels = nil
	return nil
}

// expiryTicks 按当前粒度折算订单存活 tick 数
func (e *Engine) expiryTicks() uint64 {
	return uint64(e.cfg.Market.OrderExpiryDays * float64(e.clockTicksPerDay()))
}

func (e *Engine) clockTicksPerDay() int {
	if e.clock != nil {
		return e.clock.TicksPerDay()
	}
	return e.cfg.Sim.TicksPerDay
}

// Seed 本次运行的种子
func (e *Engine) Seed() int64 { return e.seed }

// Clock 时钟
func (e *Engine) Clock() *clock.Clock { return e.clock }

// Ledger 账本
func (e *Engine) Ledger() *ledger.Ledger { return e.ledger }

// Population 种群
func (e *Engine) Population() *agents.Population { return e.pop }

// NewsGen 新闻生成器
func (e *Engine) NewsGen() *news.Generator { return e.newsGen }

// Candles K 线聚合器
func (e *Engine) Candles() *candles.Aggregator { return e.candles }

// Book 按品种取订单簿
func (e *Engine) Book(symbol string) (*orderbook.Book, error) {
	b, ok := e.books[symbol]
	if !ok {
		return nil, domain.E(domain.KindUnknownSymbol, "品种不存在: %s", symbol)
	}
	return b, nil
}

// Symbols 品种表
func (e *Engine) Symbols() []string { return e.symbols }

// SetGranularity populate 切换粒度（日边界调用）
func (e *Engine) SetGranularity(ticksPerDay int) {
	e.clock.SetTicksPerDay(ticksPerDay)
	for _, b := range e.books {
		b.SetExpiryTicks(e.expiryTicks())
	}
}

// SetConfig tick 边界的整体换配（已通过校验）
// 品种表、agent 种群和种子在运行中不可变，换的只有动态参数。
func (e *Engine) SetConfig(cfg *config.Config) {
	e.cfg = cfg
	e.newsGen.SetConfig(news.Config{
		Enabled:        cfg.News.Enabled,
		RatePerTick:    cfg.News.RatePerTick,
		SigmaGlobal:    cfg.News.SigmaGlobal,
		SigmaPolitical: cfg.News.SigmaPolitical,
		SigmaSupply:    cfg.News.SigmaSupply,
		SigmaDemand:    cfg.News.SigmaDemand,
		RecentLimit:    cfg.News.RecentLimit,
		HistoryLimit:   cfg.News.HistoryLimit,
	})
	for _, b := range e.books {
		b.SetExpiryTicks(e.expiryTicks())
	}
}

// Reset 回到初始状态，同一种子可完整复现上一轮
func (e *Engine) Reset() error {
	log.Infof("重置引擎 (seed=%d)", e.seed)
	return e.build()
}

// QueueOrder 外部订单排队，下一 tick 开头入簿
func (e *Engine) QueueOrder(o *domain.Order) {
	e.pendingOrders = append(e.pendingOrders, o)
}

// QueueCancel 排队撤单
func (e *Engine) QueueCancel(symbol string, id uint64) {
	e.pendingCancels = append(e.pendingCancels, cancelReq{symbol: symbol, id: id})
}

// NextOrderID 分配订单号
func (e *Engine) NextOrderID() uint64 {
	e.orderSeq++
	return e.orderSeq
}

// RecentTrades 最近成交（升序）
func (e *Engine) RecentTrades(limit int) []domain.Trade {
	out := e.recentTrades
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	cp := make([]domain.Trade, len(out))
	copy(cp, out)
	return cp
}

// Tick 执行一个完整 tick
func (e *Engine) Tick() error {
	newDay := e.clock.Advance()
	tick := e.clock.Tick()
	simMs := e.clock.SimTimeMs()
	scale := e.clock.TickScale()

	if newDay {
		e.ledger.MarkNewDay()
		log.Debugf("进入第 %d 个模拟日 (%s)", e.clock.Day(), e.clock.DateString())
	}

	// 1. 新闻：生成 → 路由到基本面/宏观 → 广播
	newsEvents := e.newsGen.Generate(tick, simMs, scale)
	for _, ev := range newsEvents {
		e.ledger.ApplyNews(ev)
		if e.enrich != nil {
			e.enrich.EnrichAsync(ev)
		}
		if e.cb.OnNews != nil {
			e.cb.OnNews(ev)
		}
	}
	e.pop.UpdateBeliefsAll(newsEvents)
	e.pop.DecayAll(scale)

	// 2. 基本面演化
	e.ledger.UpdateFundamentals(scale)

	// 3. 快照 + 并行决策
	snap := e.buildSnapshot(tick, simMs, scale, newsEvents)
	decisions := e.pop.DecideAll(snap)

	// 4. 入簿：外部订单在前，agent 意图按 arena 顺序在后
	bidVol := map[string]int64{}
	askVol := map[string]int64{}

	for _, o := range e.pendingOrders {
		e.insertOrder(o, tick, bidVol, askVol, false)
	}
	e.pendingOrders = nil

	for i, batch := range decisions {
		a := e.pop.Agents()[i]
		for _, it := range batch {
			o := &domain.Order{
				ID:        e.NextOrderID(),
				Symbol:    it.Symbol,
				Side:      it.Side,
				Kind:      it.Kind,
				Price:     it.Price,
				Quantity:  it.Quantity,
				OwnerID:   a.ID,
				OwnerType: string(a.Kind),
			}
			e.insertOrder(o, tick, bidVol, askVol, true)
		}
	}

	for _, req := range e.pendingCancels {
		if b, ok := e.books[req.symbol]; ok {
			if o, found := b.Order(req.id); found && !o.Status.Terminal() {
				if err := b.Cancel(req.id); err == nil {
					e.pop.ReleaseOrder(o)
				}
			}
		}
	}
	e.pendingCancels = nil

	// 5. 并行撮合（每品种独立），按品种序合并后统一编号
	tradesBySym := make([][]domain.Trade, len(e.symbols))
	errsBySym := make([]error, len(e.symbols))
	syncgroup.ForEachChunk(len(e.symbols), e.workers, func(start, end int) {
		for i := start; i < end; i++ {
			var local uint64
			tradesBySym[i], errsBySym[i] = e.books[e.symbols[i]].Match(
				tick, simMs, func() uint64 { local++; return local })
		}
	})
	for _, err := range errsBySym {
		if err != nil {
			return err
		}
	}

	tickVolume := map[string]int64{}
	var tickTrades int
	for i, sym := range e.symbols {
		com, _ := e.ledger.Get(sym)
		book := e.books[sym]
		for _, t := range tradesBySym[i] {
			e.tradeSeq++
			t.ID = e.tradeSeq

			// 成交驱动标记价 + 双方记账
			com.ApplyTradePrice(t.Price, t.Quantity)
			buyPrice := t.Price
			if bo, ok := book.Order(t.BuyOrderID); ok {
				buyPrice = bo.Price
			}
			e.pop.ApplyFill(t, buyPrice)

			tickVolume[sym] += t.Quantity
			tickTrades++
			e.recentTrades = append(e.recentTrades, t)
			if e.cb.OnTrade != nil {
				e.cb.OnTrade(t)
			}
		}
		// 订单流不平衡的残余微调
		com.ApplyOrderFlow(bidVol[sym], askVol[sym])
	}
	if max := e.cfg.Market.MaxRecentTrades; max > 0 && len(e.recentTrades) > max {
		e.recentTrades = e.recentTrades[len(e.recentTrades)-max:]
	}

	// 6. 收盘：K 线、价格历史
	for _, sym := range e.symbols {
		com, _ := e.ledger.Get(sym)
		e.candles.OnTick(sym, com.Price(), tickVolume[sym], simMs)
	}
	e.ledger.RecordCloses()

	// 7. 周期性压实 + 释放被撤/过期订单的占用
	if tick%e.cfg.Market.PurgeInterval == 0 {
		for _, sym := range e.symbols {
			e.books[sym].Purge(tick, e.pop.ReleaseOrder)
		}
	}

	metrics.TicksTotal.Add(1)
	metrics.TradesTotal.Add(int64(tickTrades))
	metrics.NewsTotal.Add(int64(len(newsEvents)))

	if e.cb.OnTick != nil {
		prices := map[string]float64{}
		for _, sym := range e.symbols {
			com, _ := e.ledger.Get(sym)
			prices[sym] = com.Price()
		}
		e.cb.OnTick(events.TickCompleted{
			Tick:      tick,
			SimTimeMs: simMs,
			Day:       e.clock.Day(),
			Prices:    prices,
			Trades:    tickTrades,
			News:      len(newsEvents),
		})
	}
	return nil
}

// insertOrder 入簿 + 占用登记 + 订单流计数
func (e *Engine) insertOrder(o *domain.Order, tick uint64, bidVol, askVol map[string]int64, agentOrder bool) {
	b, ok := e.books[o.Symbol]
	if !ok {
		log.Warnf("丢弃未知品种的订单: %s", o.Symbol)
		return
	}
	com, _ := e.ledger.Get(o.Symbol)
	if err := b.Insert(o, com.Price(), tick); err != nil {
		// agent 意图在决策端已自检，走到这里只可能是边界情况
		metrics.OrdersRejected.Add(1)
		log.Debugf("订单被拒 (owner=%d): %v", o.OwnerID, err)
		return
	}
	if agentOrder {
		e.pop.CountOrder(o)
	}
	if o.Side == domain.SideBuy {
		bidVol[o.Symbol] += o.Quantity
	} else {
		askVol[o.Symbol] += o.Quantity
	}
}

// buildSnapshot 上一 tick 收盘状态的只读视图
func (e *Engine) buildSnapshot(tick uint64, simMs int64, scale float64, newsEvents []domain.NewsEvent) *agents.Snapshot {
	snap := &agents.Snapshot{
		Tick:         tick,
		SimTimeMs:    simMs,
		TickScale:    scale,
		Symbols:      e.symbols,
		Prices:       make(map[string]float64, len(e.symbols)),
		DayOpen:      make(map[string]float64, len(e.symbols)),
		History:      make(map[string][]float64, len(e.symbols)),
		Volatility:   make(map[string]float64, len(e.symbols)),
		SupplyDemand: make(map[string]domain.SupplyDemand, len(e.symbols)),
		BestBid:      make(map[string]float64, len(e.symbols)),
		BestAsk:      make(map[string]float64, len(e.symbols)),
		CrossEffects: make(map[string][]ledger.CrossEffect, len(e.symbols)),
		RecentNews:   newsEvents,
		Sentiment:    e.ledger.Macro().Sentiment(),
		VolIndex:     e.ledger.Macro().VolatilityIndex(),
		InterestRate: e.ledger.Macro().InterestRate(),
	}
	for _, sym := range e.symbols {
		com, _ := e.ledger.Get(sym)
		snap.Prices[sym] = com.Price()
		snap.DayOpen[sym] = com.DayOpen()
		snap.History[sym] = com.History()
		snap.Volatility[sym] = com.RealizedVolatility(100)
		snap.SupplyDemand[sym] = com.SupplyDemand()
		if bb, ok := e.books[sym].BestBid(); ok {
			snap.BestBid[sym] = bb
		}
		if ba, ok := e.books[sym].BestAsk(); ok {
			snap.BestAsk[sym] = ba
		}
		snap.CrossEffects[sym] = e.ledger.CrossEffects(sym)
	}
	return snap
}
