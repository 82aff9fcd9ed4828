package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/agents"
	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/config"
)

// State 模拟状态机
// idle → running ⇄ paused → stopped → (reset) → idle
// populate 只能从 idle/stopped 发起，期间拒绝其他控制操作。
type State string

const (
	StateIdle       State = "idle"
	StateRunning    State = "running"
	StatePaused     State = "paused"
	StateStopped    State = "stopped"
	StatePopulating State = "populating"
)

// Simulation 控制面：状态机 + 实时循环 + 配置热换 + 查询入口
// 引擎本体不加锁，所有进入引擎的路径都经过这里的互斥。
type Simulation struct {
	mu      sync.RWMutex
	eng     *Engine
	cfg     *config.Config
	pending *config.Config // 已校验、等 tick 边界生效的新配置

	state  State
	stopCh chan struct{}
	doneCh chan struct{}

	popDone  atomic.Uint64
	popTotal atomic.Uint64
}

// NewSimulation 创建控制面
func NewSimulation(cfg *config.Config, cb Callbacks) (*Simulation, error) {
	eng, err := New(cfg, cb)
	if err != nil {
		return nil, err
	}
	return &Simulation{
		eng:   eng,
		cfg:   cfg,
		state: StateIdle,
	}, nil
}

// State 当前状态
func (s *Simulation) CurrentState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Start 启动实时循环
func (s *Simulation) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle && s.state != StateStopped {
		return domain.E(domain.KindInvalidState, "当前状态 %s 不能 start", s.state)
	}
	s.state = StateRunning
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.runLoop(s.stopCh, s.doneCh,
		time.Duration(s.cfg.Sim.TickRateMs)*time.Millisecond)
	log.Infof("模拟启动 (seed=%d, %d tick/日, %dms/tick)",
		s.eng.Seed(), s.cfg.Sim.TicksPerDay, s.cfg.Sim.TickRateMs)
	return nil
}

// Pause 暂停（循环保留，tick 不再推进）
func (s *Simulation) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return domain.E(domain.KindInvalidState, "当前状态 %s 不能 pause", s.state)
	}
	s.state = StatePaused
	return nil
}

// Resume 恢复
func (s *Simulation) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePaused {
		return domain.E(domain.KindInvalidState, "当前状态 %s 不能 resume", s.state)
	}
	s.state = StateRunning
	return nil
}

// Stop 停止实时循环
func (s *Simulation) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning && s.state != StatePaused {
		s.mu.Unlock()
		return domain.E(domain.KindInvalidState, "当前状态 %s 不能 stop", s.state)
	}
	s.state = StateStopped
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
	log.Info("模拟已停止")
	return nil
}

// Step 单步/多步推进（暂停或未启动时可用）
func (s *Simulation) Step(n int) error {
	if n <= 0 {
		return domain.E(domain.KindValidation, "step 数必须为正数: %d", n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning || s.state == StatePopulating {
		return domain.E(domain.KindInvalidState, "当前状态 %s 不能 step", s.state)
	}
	for i := 0; i < n; i++ {
		s.applyPendingLocked()
		if err := s.eng.Tick(); err != nil {
			s.state = StateStopped
			return err
		}
	}
	return nil
}

// Reset 重置到初始状态（运行中/回填中不可用）
func (s *Simulation) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning || s.state == StatePopulating {
		return domain.E(domain.KindInvalidState, "当前状态 %s 不能 reset", s.state)
	}
	if err := s.eng.Reset(); err != nil {
		return err
	}
	s.state = StateIdle
	return nil
}

// runLoop 实时 tick 循环
func (s *Simulation) runLoop(stopCh <-chan struct{}, doneCh chan<- struct{}, rate time.Duration) {
	defer close(doneCh)
	if rate <= 0 {
		rate = time.Millisecond
	}
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if s.state != StateRunning {
			s.mu.Unlock()
			continue
		}
		s.applyPendingLocked()
		err := s.eng.Tick()
		maxTicks := s.cfg.Sim.MaxTicks
		reached := maxTicks > 0 && s.eng.Clock().Tick() >= maxTicks
		if err != nil {
			log.Errorf("tick 失败，模拟停止: %v", err)
			s.state = StateStopped
		} else if reached {
			log.Infof("到达 max_ticks=%d，模拟停止", maxTicks)
			s.state = StateStopped
		}
		stopped := s.state == StateStopped
		s.mu.Unlock()

		if stopped {
			return
		}
	}
}

// applyPendingLocked tick 边界整体换配（调用方必须持锁）
func (s *Simulation) applyPendingLocked() {
	if s.pending == nil {
		return
	}
	s.cfg = s.pending
	s.eng.SetConfig(s.pending)
	s.pending = nil
	log.Info("新配置已在 tick 边界生效")
}

// ApplyConfigPatch 校验并暂存配置补丁（全有或全无）
// 补丁在下一个 tick 边界生效；引擎空闲时立即生效。
func (s *Simulation) ApplyConfigPatch(patch []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	base := s.cfg
	if s.pending != nil {
		base = s.pending
	}
	next, err := base.MergePatch(patch)
	if err != nil {
		return domain.E(domain.KindValidation, "%v", err)
	}
	s.pending = next
	if s.state == StateIdle || s.state == StateStopped || s.state == StatePaused {
		s.applyPendingLocked()
	}
	return nil
}

// Config 当前生效配置（拷贝）
func (s *Simulation) Config() *config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// Populate 异步历史回填：先粗后细两阶段
// 只能在空白状态（tick=0）发起；结束后回到 idle，实时粒度就位。
func (s *Simulation) Populate(days int) error {
	s.mu.Lock()
	if s.state != StateIdle && s.state != StateStopped {
		s.mu.Unlock()
		return domain.E(domain.KindInvalidState, "当前状态 %s 不能 populate", s.state)
	}
	if days <= 0 {
		days = s.cfg.Populate.Days
	}
	if days <= 0 {
		s.mu.Unlock()
		return domain.E(domain.KindValidation, "回填天数必须为正数: %d", days)
	}
	if s.eng.Clock().Tick() != 0 {
		if err := s.eng.Reset(); err != nil {
			s.mu.Unlock()
			return err
		}
	}

	pc := s.cfg.Populate
	fineDays := pc.FineDays
	if fineDays > days {
		fineDays = days
	}
	coarseDays := days - fineDays
	totalTicks := uint64(coarseDays)*uint64(pc.CoarseTicksPerDay) +
		uint64(fineDays)*uint64(pc.FineTicksPerDay)

	s.state = StatePopulating
	s.popDone.Store(0)
	s.popTotal.Store(totalTicks)
	s.mu.Unlock()

	go s.populateRun(coarseDays, fineDays, pc)
	return nil
}

func (s *Simulation) populateRun(coarseDays, fineDays int, pc config.PopulateConfig) {
	start := time.Now()
	log.Infof("开始回填: %d 天粗粒度(%d tick/日) + %d 天细粒度(%d tick/日)",
		coarseDays, pc.CoarseTicksPerDay, fineDays, pc.FineTicksPerDay)

	phases := []struct {
		days int
		tpd  int
	}{
		{coarseDays, pc.CoarseTicksPerDay},
		{fineDays, pc.FineTicksPerDay},
	}

	for _, ph := range phases {
		if ph.days == 0 {
			continue
		}
		s.mu.Lock()
		s.eng.SetGranularity(ph.tpd)
		s.mu.Unlock()

		ticks := ph.days * ph.tpd
		for i := 0; i < ticks; i++ {
			s.mu.Lock()
			err := s.eng.Tick()
			s.mu.Unlock()
			if err != nil {
				log.Errorf("回填失败: %v", err)
				s.finishPopulate(StateStopped)
				return
			}
			s.popDone.Add(1)
		}
	}

	// 回到实时粒度
	s.mu.Lock()
	s.eng.SetGranularity(s.cfg.Sim.TicksPerDay)
	s.mu.Unlock()

	log.Infof("回填完成: %d tick, 耗时 %s", s.popTotal.Load(), time.Since(start))
	s.finishPopulate(StateIdle)
}

func (s *Simulation) finishPopulate(next State) {
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
}

// PopulateProgress 回填进度 (done, total)
func (s *Simulation) PopulateProgress() (uint64, uint64) {
	return s.popDone.Load(), s.popTotal.Load()
}

// SubmitOrder 外部下单：校验后排队，下一 tick 入簿
func (s *Simulation) SubmitOrder(symbol string, side domain.Side, kind domain.OrderKind,
	price float64, qty int64, clientToken string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.eng.Ledger().Has(symbol) {
		return 0, domain.E(domain.KindUnknownSymbol, "品种不存在: %s", symbol)
	}
	if qty <= 0 {
		return 0, domain.E(domain.KindValidation, "数量必须为正数: %d", qty)
	}
	switch side {
	case domain.SideBuy, domain.SideSell:
	default:
		return 0, domain.E(domain.KindValidation, "未知方向: %s", side)
	}
	switch kind {
	case domain.KindLimit:
		if price <= 0 {
			return 0, domain.E(domain.KindValidation, "限价单价格必须为正数: %f", price)
		}
	case domain.KindMarket:
		price = 0
	default:
		return 0, domain.E(domain.KindValidation, "未知订单类型: %s", kind)
	}

	o := &domain.Order{
		ID:          s.eng.NextOrderID(),
		Symbol:      symbol,
		Side:        side,
		Kind:        kind,
		Price:       price,
		Quantity:    qty,
		OwnerID:     0,
		OwnerType:   "external",
		ClientToken: clientToken,
	}
	s.eng.QueueOrder(o)
	return o.ID, nil
}

// CancelOrder 外部撤单：排队到下一 tick 执行
func (s *Simulation) CancelOrder(symbol string, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.eng.Book(symbol)
	if err != nil {
		return err
	}
	o, ok := b.Order(id)
	if !ok {
		return domain.E(domain.KindValidation, "订单不存在: %d", id)
	}
	if o.Status.Terminal() {
		return domain.E(domain.KindInvalidState, "订单 %d 已是终态 %s", id, o.Status)
	}
	s.eng.QueueCancel(symbol, id)
	return nil
}

// InjectNews 外部注入新闻
func (s *Simulation) InjectNews(ev domain.NewsEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eng.NewsGen().Inject(ev)
}

// StateView state 查询载荷
type StateView struct {
	State        State              `json:"state"`
	Seed         int64              `json:"seed"`
	Tick         uint64             `json:"tick"`
	Day          int                `json:"day"`
	Date         string             `json:"date"`
	SimTimeMs    int64              `json:"simTimeMs"`
	TicksPerDay  int                `json:"ticksPerDay"`
	TickScale    float64            `json:"tickScale"`
	Sentiment    float64            `json:"globalSentiment"`
	VolIndex     float64            `json:"volatilityIndex"`
	InterestRate float64            `json:"interestRate"`
	Prices       map[string]float64 `json:"prices"`
	Agents       int                `json:"agents"`
	PopulateDone uint64             `json:"populateDone,omitempty"`
	PopulateTotal uint64            `json:"populateTotal,omitempty"`
}

// StateSnapshot 控制面状态总览
func (s *Simulation) StateSnapshot() StateView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prices := map[string]float64{}
	for _, sym := range s.eng.Symbols() {
		com, _ := s.eng.Ledger().Get(sym)
		prices[sym] = com.Price()
	}
	c := s.eng.Clock()
	return StateView{
		State:         s.state,
		Seed:          s.eng.Seed(),
		Tick:          c.Tick(),
		Day:           c.Day(),
		Date:          c.DateString(),
		SimTimeMs:     c.SimTimeMs(),
		TicksPerDay:   c.TicksPerDay(),
		TickScale:     c.TickScale(),
		Sentiment:     s.eng.Ledger().Macro().Sentiment(),
		VolIndex:      s.eng.Ledger().Macro().VolatilityIndex(),
		InterestRate:  s.eng.Ledger().Macro().InterestRate(),
		Prices:        prices,
		Agents:        s.eng.Population().Size(),
		PopulateDone:  s.popDone.Load(),
		PopulateTotal: s.popTotal.Load(),
	}
}

// CommodityView 品种查询载荷
type CommodityView struct {
	Symbol        string              `json:"symbol"`
	Name          string              `json:"name"`
	Category      string              `json:"category"`
	Price         float64             `json:"price"`
	DayOpen       float64             `json:"dayOpen"`
	CircuitBroken bool                `json:"circuitBroken"`
	DailyVolume   int64               `json:"dailyVolume"`
	BestBid       float64             `json:"bestBid,omitempty"`
	BestAsk       float64             `json:"bestAsk,omitempty"`
	SupplyDemand  domain.SupplyDemand `json:"supplyDemand"`
}

// Commodities 全品种视图
func (s *Simulation) Commodities() []CommodityView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]CommodityView, 0, len(s.eng.Symbols()))
	for _, sym := range s.eng.Symbols() {
		com, _ := s.eng.Ledger().Get(sym)
		v := CommodityView{
			Symbol:        sym,
			Name:          com.Name,
			Category:      com.Category,
			Price:         com.Price(),
			DayOpen:       com.DayOpen(),
			CircuitBroken: com.CircuitBroken(),
			DailyVolume:   com.DailyVolume(),
			SupplyDemand:  com.SupplyDemand(),
		}
		b, _ := s.eng.Book(sym)
		if bb, ok := b.BestBid(); ok {
			v.BestBid = bb
		}
		if ba, ok := b.BestAsk(); ok {
			v.BestAsk = ba
		}
		out = append(out, v)
	}
	return out
}

// Depth 订单簿深度
func (s *Simulation) Depth(symbol string, levels int) (bids, asks []domain.BookLevel, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := s.eng.Book(symbol)
	if err != nil {
		return nil, nil, err
	}
	bids, asks = b.Depth(s.eng.Clock().Tick(), levels)
	return bids, asks, nil
}

// Candles 已封口 K 线查询
func (s *Simulation) Candles(symbol, interval string, sinceMs int64, limit int) ([]domain.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eng.Candles().Sealed(symbol, interval, sinceMs, limit)
}

// Trades 最近成交
func (s *Simulation) Trades(limit int) []domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eng.RecentTrades(limit)
}

// News 新闻历史
func (s *Simulation) News(category domain.NewsCategory, limit int) []domain.NewsEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eng.NewsGen().History(category, limit)
}

// AgentStats 按策略类型的统计
func (s *Simulation) AgentStats() []agents.TypeStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prices := map[string]float64{}
	for _, sym := range s.eng.Symbols() {
		com, _ := s.eng.Ledger().Get(sym)
		prices[sym] = com.Price()
	}
	return s.eng.Population().Stats(prices)
}

// Symbols 品种表
func (s *Simulation) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eng.Symbols()
}
