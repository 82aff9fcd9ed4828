package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
	"github.com/ProAltro/stock-market-simulator-sub002/internal/events"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Sim.Seed = 42
	cfg.Sim.TicksPerDay = 288
	cfg.Sim.TickRateMs = 1
	cfg.Sim.Workers = 4
	cfg.Market.PurgeInterval = 50
	cfg.News.RatePerTick = 0.05
	cfg.News.Enrichment.URL = ""
	cfg.Agents.Counts = map[string]int{
		"supply_demand":  4,
		"momentum":       3,
		"mean_reversion": 3,
		"noise":          8,
		"market_maker":   2,
		"cross_effects":  2,
		"inventory":      2,
		"event":          2,
	}
	return cfg
}

// quietConfig 唯一的 agent 是事件型，关掉新闻后它永不出手，
// 簿上只剩外部订单，适合做确定性的撮合断言。
func quietConfig() *config.Config {
	cfg := testConfig()
	cfg.News.Enabled = false
	cfg.Agents.Counts = map[string]int{"event": 1}
	return cfg
}

// TestEngineDeterministicReplay 同一种子重置后逐 tick 完全复现
func TestEngineDeterministicReplay(t *testing.T) {
	cfg := testConfig()

	run := func() ([]map[string]float64, []domain.Trade, int) {
		e, err := New(cfg, Callbacks{})
		require.NoError(t, err)

		var prices []map[string]float64
		newsTotal := 0
		for i := 0; i < 600; i++ {
			require.NoError(t, e.Tick())
			snap := map[string]float64{}
			for _, sym := range e.Symbols() {
				com, _ := e.Ledger().Get(sym)
				snap[sym] = com.Price()
			}
			prices = append(prices, snap)
		}
		newsTotal = len(e.NewsGen().History("", 0))
		return prices, e.RecentTrades(0), newsTotal
	}

	p1, t1, n1 := run()
	p2, t2, n2 := run()

	require.Equal(t, n1, n2, "新闻序列长度应完全一致")
	require.Equal(t, len(t1), len(t2), "成交序列长度应完全一致")
	for i := range t1 {
		require.Equal(t, t1[i], t2[i], "第 %d 笔成交应逐字段一致", i)
	}
	require.Equal(t, p1, p2, "价格轨迹应逐 tick 一致")
}

// TestEngineResetReplays Reset 后同引擎复现同一轨迹
func TestEngineResetReplays(t *testing.T) {
	e, err := New(testConfig(), Callbacks{})
	require.NoError(t, err)

	trace := func() []float64 {
		var out []float64
		for i := 0; i < 300; i++ {
			require.NoError(t, e.Tick())
			com, _ := e.Ledger().Get("OIL")
			out = append(out, com.Price())
		}
		return out
	}

	first := trace()
	require.NoError(t, e.Reset())
	second := trace()
	require.Equal(t, first, second)
}

// TestExternalOrdersMatch 外部买卖单在下一 tick 撮合
func TestExternalOrdersMatch(t *testing.T) {
	e, err := New(quietConfig(), Callbacks{})
	require.NoError(t, err)

	sell := &domain.Order{ID: e.NextOrderID(), Symbol: "OIL", Side: domain.SideSell,
		Kind: domain.KindLimit, Price: 74, Quantity: 10, OwnerType: "external"}
	buy := &domain.Order{ID: e.NextOrderID(), Symbol: "OIL", Side: domain.SideBuy,
		Kind: domain.KindLimit, Price: 74.5, Quantity: 10, OwnerType: "external"}
	e.QueueOrder(sell)
	e.QueueOrder(buy)

	require.NoError(t, e.Tick())

	trades := e.RecentTrades(0)
	require.Len(t, trades, 1)
	// 卖单先入簿，成交价取被动方报价
	require.Equal(t, 74.0, trades[0].Price)
	require.Equal(t, sell.ID, trades[0].SellOrderID)
	require.Equal(t, buy.ID, trades[0].BuyOrderID)
	require.Equal(t, "external", trades[0].BuyerType)
}

// TestExternalOrderMovesMark 成交驱动标记价向成交价靠拢
func TestExternalOrderMovesMark(t *testing.T) {
	e, err := New(quietConfig(), Callbacks{})
	require.NoError(t, err)

	before, _ := e.Ledger().Get("OIL")
	p0 := before.Price()

	e.QueueOrder(&domain.Order{ID: e.NextOrderID(), Symbol: "OIL", Side: domain.SideSell,
		Kind: domain.KindLimit, Price: p0 * 0.95, Quantity: 50, OwnerType: "external"})
	e.QueueOrder(&domain.Order{ID: e.NextOrderID(), Symbol: "OIL", Side: domain.SideBuy,
		Kind: domain.KindLimit, Price: p0 * 0.95, Quantity: 50, OwnerType: "external"})
	require.NoError(t, e.Tick())

	after, _ := e.Ledger().Get("OIL")
	require.Less(t, after.Price(), p0, "低于标记价的成交应把标记价往下拉")
	require.Greater(t, after.Price(), p0*0.95, "冲击衰减下标记价不应一步到位")
}

// TestCancelReleasesOrder 排队撤单在下一 tick 生效
func TestCancelReleasesOrder(t *testing.T) {
	e, err := New(quietConfig(), Callbacks{})
	require.NoError(t, err)

	o := &domain.Order{ID: e.NextOrderID(), Symbol: "OIL", Side: domain.SideBuy,
		Kind: domain.KindLimit, Price: 70, Quantity: 10, OwnerType: "external"}
	e.QueueOrder(o)
	require.NoError(t, e.Tick())

	b, err := e.Book("OIL")
	require.NoError(t, err)
	got, ok := b.Order(o.ID)
	require.True(t, ok)
	require.Equal(t, domain.StatusActive, got.Status)

	e.QueueCancel("OIL", o.ID)
	require.NoError(t, e.Tick())
	require.Equal(t, domain.StatusCancelled, got.Status)
}

// TestTickCallbacksFire 回调逐 tick 触发且汇总字段自洽
func TestTickCallbacksFire(t *testing.T) {
	var ticks []events.TickCompleted
	var trades []domain.Trade
	cb := Callbacks{
		OnTick:  func(ev events.TickCompleted) { ticks = append(ticks, ev) },
		OnTrade: func(tr domain.Trade) { trades = append(trades, tr) },
	}

	e, err := New(testConfig(), cb)
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		require.NoError(t, e.Tick())
	}

	require.Len(t, ticks, 200)
	total := 0
	for i, ev := range ticks {
		require.Equal(t, uint64(i+1), ev.Tick)
		require.Len(t, ev.Prices, len(e.Symbols()))
		total += ev.Trades
	}
	require.Equal(t, len(trades), total, "OnTrade 次数应等于各 tick 汇总之和")
}
