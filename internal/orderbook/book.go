package orderbook

import (
	"container/heap"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
)

var log = logrus.WithField("component", "orderbook")

// Book 单品种限价订单簿
// 价格-时间优先：同价位按入簿序号先到先得。
// 撤单/过期采用惰性删除，撮合扫描时跳过并弹出终态订单，
// 每隔 purge 周期由引擎触发一次压实。
//
// Book 不加锁：同一 tick 内不同品种的撮合各自独立并行，
// 单个 Book 始终只被一个 goroutine 访问。
type Book struct {
	symbol string
	bids   *sideHeap
	asks   *sideHeap
	byID   map[uint64]*domain.Order

	seq         uint64 // 入簿序号，FIFO 依据
	expiryTicks uint64 // 订单存活 tick 数
	priceFloor  float64
	marketCap   float64 // 市价单转限价单的越价幅度
}

// Options 订单簿参数
type Options struct {
	ExpiryTicks uint64
	PriceFloor  float64
	MarketCap   float64
}

// New 创建订单簿
func New(symbol string, opts Options) *Book {
	return &Book{
		symbol: symbol,
		bids:   &sideHeap{isBid: true},
		asks:   &sideHeap{isBid: false},
		byID:   map[uint64]*domain.Order{},

		expiryTicks: opts.ExpiryTicks,
		priceFloor:  opts.PriceFloor,
		marketCap:   opts.MarketCap,
	}
}

// Symbol 品种代码
func (b *Book) Symbol() string { return b.symbol }

// SetExpiryTicks 粒度切换时由引擎重算过期时长
func (b *Book) SetExpiryTicks(n uint64) { b.expiryTicks = n }

// Insert 订单入簿
// 市价单在入口转成激进限价单：买单挂在对手价上方 marketCap，
// 卖单挂在对手价下方 marketCap（空簿时以 refPrice 为锚）。
func (b *Book) Insert(o *domain.Order, refPrice float64, tick uint64) error {
	if o.Quantity <= 0 {
		return domain.E(domain.KindValidation, "订单数量必须为正数: %d", o.Quantity)
	}
	if o.Side != domain.SideBuy && o.Side != domain.SideSell {
		return domain.E(domain.KindValidation, "未知方向: %s", o.Side)
	}

	if o.Kind == domain.KindMarket {
		o.Price = b.aggressivePrice(o.Side, refPrice)
	}
	if o.Price < b.priceFloor {
		if o.Kind == domain.KindMarket {
			o.Price = b.priceFloor
		} else {
			return domain.E(domain.KindValidation,
				"价格 %.4f 低于最低价 %.4f", o.Price, b.priceFloor)
		}
	}

	b.seq++
	o.Seq = b.seq
	o.Remaining = o.Quantity
	o.Status = domain.StatusActive
	o.CreatedTick = tick

	b.byID[o.ID] = o
	if o.Side == domain.SideBuy {
		heap.Push(b.bids, o)
	} else {
		heap.Push(b.asks, o)
	}
	return nil
}

func (b *Book) aggressivePrice(side domain.Side, refPrice float64) float64 {
	if side == domain.SideBuy {
		if ask, ok := b.peekPrice(b.asks); ok {
			return ask * (1 + b.marketCap)
		}
		return refPrice * (1 + b.marketCap)
	}
	if bid, ok := b.peekPrice(b.bids); ok {
		return bid * (1 - b.marketCap)
	}
	return refPrice * (1 - b.marketCap)
}

// Cancel 撤单（标记为 cancelled，堆中惰性剔除）
func (b *Book) Cancel(id uint64) error {
	o, ok := b.byID[id]
	if !ok {
		return domain.E(domain.KindValidation, "订单不存在: %d", id)
	}
	if o.Status.Terminal() {
		return domain.E(domain.KindInvalidState, "订单 %d 已是终态 %s", id, o.Status)
	}
	o.Status = domain.StatusCancelled
	return nil
}

// Order 按 ID 查订单（含终态、未压实的）
func (b *Book) Order(id uint64) (*domain.Order, bool) {
	o, ok := b.byID[id]
	return o, ok
}

// stale 是否已超过存活时长
func (b *Book) stale(o *domain.Order, tick uint64) bool {
	return b.expiryTicks > 0 && tick > o.CreatedTick && tick-o.CreatedTick >= b.expiryTicks
}

// expireIfStale 超过存活时长的订单标记为过期
func (b *Book) expireIfStale(o *domain.Order, tick uint64) {
	if b.stale(o, tick) {
		o.Status = domain.StatusExpired
	}
}

// peekActive 弹掉堆顶的终态/过期订单，返回第一个活跃订单
func (b *Book) peekActive(h *sideHeap, tick uint64) *domain.Order {
	for h.Len() > 0 {
		top := h.orders[0]
		b.expireIfStale(top, tick)
		if top.Status.Terminal() {
			heap.Pop(h)
			continue
		}
		return top
	}
	return nil
}

// peekPrice 只读地找第一个活跃价位（不触发过期标记）
func (b *Book) peekPrice(h *sideHeap) (float64, bool) {
	// 堆顶可能是终态订单，顺着堆数组找第一个活跃的最优价
	best := 0.0
	found := false
	for _, o := range h.orders {
		if o.Status.Terminal() {
			continue
		}
		if !found {
			best = o.Price
			found = true
			continue
		}
		if (h.isBid && o.Price > best) || (!h.isBid && o.Price < best) {
			best = o.Price
		}
	}
	return best, found
}

// BestBid 最优买价
func (b *Book) BestBid() (float64, bool) { return b.peekPrice(b.bids) }

// BestAsk 最优卖价
func (b *Book) BestAsk() (float64, bool) { return b.peekPrice(b.asks) }

// Match 撮合到簿面不再交叉为止
// 成交价取被动方（序号小的那一方）的报价。
func (b *Book) Match(tick uint64, simMs int64, nextTradeID func() uint64) ([]domain.Trade, error) {
	var trades []domain.Trade

	for {
		bid := b.peekActive(b.bids, tick)
		ask := b.peekActive(b.asks, tick)
		if bid == nil || ask == nil || bid.Price < ask.Price {
			break
		}

		// 先入簿的一方是被动方，成交价取它的报价
		price := bid.Price
		if ask.Seq < bid.Seq {
			price = ask.Price
		}

		qty := bid.Remaining
		if ask.Remaining < qty {
			qty = ask.Remaining
		}
		if qty <= 0 {
			// 活跃订单剩余量恒为正，走到这里说明簿已被破坏
			return trades, domain.E(domain.KindFatal,
				"%s: 撮合遇到剩余量 %d 的活跃订单", b.symbol, qty)
		}

		trades = append(trades, domain.Trade{
			ID:          nextTradeID(),
			Symbol:      b.symbol,
			Price:       price,
			Quantity:    qty,
			BuyOrderID:  bid.ID,
			SellOrderID: ask.ID,
			BuyerID:     bid.OwnerID,
			SellerID:    ask.OwnerID,
			BuyerType:   bid.OwnerType,
			SellerType:  ask.OwnerType,
			Tick:        tick,
			SimTimeMs:   simMs,
		})

		for _, o := range [2]*domain.Order{bid, ask} {
			o.Remaining -= qty
			if o.Remaining == 0 {
				o.Status = domain.StatusFilled
			} else {
				o.Status = domain.StatusPartial
			}
		}
		if bid.Status == domain.StatusFilled {
			heap.Pop(b.bids)
		}
		if ask.Status == domain.StatusFilled {
			heap.Pop(b.asks)
		}
	}

	// 撮合结束后簿面必须不交叉
	if bb, ok1 := b.BestBid(); ok1 {
		if ba, ok2 := b.BestAsk(); ok2 && bb >= ba {
			return trades, domain.E(domain.KindFatal,
				"%s: 撮合后簿面仍交叉 bid=%.4f ask=%.4f", b.symbol, bb, ba)
		}
	}
	return trades, nil
}

// Purge 压实：重建两侧堆，剔除终态与过期订单
// onRemove 在订单移出索引前回调（引擎用它释放资金/持仓占用）
func (b *Book) Purge(tick uint64, onRemove func(*domain.Order)) {
	for _, h := range [2]*sideHeap{b.bids, b.asks} {
		kept := h.orders[:0]
		for _, o := range h.orders {
			b.expireIfStale(o, tick)
			if o.Status.Terminal() {
				continue
			}
			kept = append(kept, o)
		}
		// 截断后残留的指针置空，帮 GC
		for i := len(kept); i < len(h.orders); i++ {
			h.orders[i] = nil
		}
		h.orders = kept
		heap.Init(h)
	}

	// 已成交订单在撮合时就弹出了堆，索引要单独清
	removed := 0
	for id, o := range b.byID {
		if o.Status.Terminal() {
			if onRemove != nil {
				onRemove(o)
			}
			delete(b.byID, id)
			removed++
		}
	}
	if removed > 0 {
		log.Debugf("%s 压实订单簿, 移除 %d 个终态订单", b.symbol, removed)
	}
}

// Depth 聚合两侧前 levels 个价位
// 过期订单的打标是惰性的，这里按当前 tick 直接排除超龄订单，
// 不等撮合或压实动状态。
func (b *Book) Depth(tick uint64, levels int) (bids, asks []domain.BookLevel) {
	return b.sideDepth(b.bids, tick, levels), b.sideDepth(b.asks, tick, levels)
}

func (b *Book) sideDepth(h *sideHeap, tick uint64, levels int) []domain.BookLevel {
	agg := map[float64]*domain.BookLevel{}
	for _, o := range h.orders {
		if o.Status.Terminal() || b.stale(o, tick) {
			continue
		}
		lv, ok := agg[o.Price]
		if !ok {
			lv = &domain.BookLevel{Price: o.Price}
			agg[o.Price] = lv
		}
		lv.Quantity += o.Remaining
		lv.Orders++
	}
	out := make([]domain.BookLevel, 0, len(agg))
	for _, lv := range agg {
		out = append(out, *lv)
	}
	sort.Slice(out, func(i, j int) bool {
		if h.isBid {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	if levels > 0 && len(out) > levels {
		out = out[:levels]
	}
	return out
}

// ActiveOrders 活跃（含部分成交）订单数
func (b *Book) ActiveOrders() int {
	n := 0
	for _, o := range b.byID {
		if !o.Status.Terminal() {
			n++
		}
	}
	return n
}
