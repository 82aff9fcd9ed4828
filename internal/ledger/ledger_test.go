package ledger

import (
	"math"
	"testing"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/config"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/rng"
)

func testParams() Params {
	return Params{
		ImpactDampening:     0.10,
		ImbalanceGain:       0.0005,
		PriceFloor:          0.01,
		CircuitBreakerLimit: 0.10,
		MaxPriceHistory:     1000,
		FundamentalDecay:    0.01,
		FundamentalNoise:    0, // 测试关掉噪声
	}
}

func testCommodity() *Commodity {
	return NewCommodity("OIL", "Crude Oil", "energy", 100.0, 0.02,
		domain.SupplyDemand{Production: 1000, Consumption: 1000, Inventory: 5000},
		testParams())
}

// TestCircuitBreakerClampsAndLatches 熔断夹到涨停价并锁死当日
func TestCircuitBreakerClampsAndLatches(t *testing.T) {
	c := testCommodity() // 开盘 100，限幅 ±10%

	// 足够多的高价小单把标记价推到涨停
	for i := 0; i < 200; i++ {
		c.ApplyTradePrice(150.0, 1)
	}
	if got := c.Price(); math.Abs(got-110.0) > 1e-9 {
		t.Fatalf("标记价应夹在涨停 110, 实际 %f", got)
	}
	if !c.CircuitBroken() {
		t.Fatal("越过涨停应触发熔断")
	}

	// 熔断后成交价不再移动标记价
	c.ApplyTradePrice(90.0, 100)
	if got := c.Price(); math.Abs(got-110.0) > 1e-9 {
		t.Fatalf("熔断后标记价不应移动, 实际 %f", got)
	}

	// 日边界解除熔断，开盘价重置为当前价
	c.MarkNewDay()
	if c.CircuitBroken() {
		t.Fatal("新的一天应解除熔断")
	}
	if math.Abs(c.DayOpen()-110.0) > 1e-9 {
		t.Fatalf("新开盘价应为 110, 实际 %f", c.DayOpen())
	}
	if c.DailyVolume() != 0 {
		t.Fatalf("日成交量应清零, 实际 %d", c.DailyVolume())
	}
}

// TestBreakerTripsOnlyBeyondLimit 恰好到限幅不熔断，越过才熔断
func TestBreakerTripsOnlyBeyondLimit(t *testing.T) {
	c := testCommodity() // 开盘 100，限幅 ±10%

	if got := c.clamp(110.0); math.Abs(got-110.0) > 1e-9 {
		t.Fatalf("限幅内的价格不应被夹: %f", got)
	}
	if c.CircuitBroken() {
		t.Fatal("恰好停在涨停价不应触发熔断")
	}

	if got := c.clamp(110.01); math.Abs(got-110.0) > 1e-9 {
		t.Fatalf("越过涨停应夹回 110, 实际 %f", got)
	}
	if !c.CircuitBroken() {
		t.Fatal("越过涨停应触发熔断")
	}

	down := testCommodity()
	if got := down.clamp(89.99); math.Abs(got-90.0) > 1e-9 || !down.CircuitBroken() {
		t.Fatalf("越过跌停应夹回 90 并熔断: price=%f broken=%v", got, down.CircuitBroken())
	}
}

// TestImpactDampeningSqrt 大单的每单位冲击小于小单
func TestImpactDampeningSqrt(t *testing.T) {
	small := testCommodity()
	big := testCommodity()

	small.ApplyTradePrice(101.0, 1)
	big.ApplyTradePrice(101.0, 100)

	dSmall := small.Price() - 100.0
	dBig := big.Price() - 100.0
	if dSmall <= 0 || dBig <= 0 {
		t.Fatalf("高于标记价的成交应抬价: small=%f big=%f", dSmall, dBig)
	}
	// alpha = 0.1/sqrt(qty)：单笔 100 手的 alpha 是 1 手的 1/10
	if dBig >= dSmall {
		t.Fatalf("总冲击被平方根抑制, big=%f 应小于 small=%f", dBig, dSmall)
	}
}

// TestPriceFloor 标记价不跌破最低价
func TestPriceFloor(t *testing.T) {
	params := testParams()
	params.CircuitBreakerLimit = 0.999 // 放开熔断只看下限
	c := NewCommodity("X", "X", "", 0.05, 0.02,
		domain.SupplyDemand{Production: 1, Consumption: 1, Inventory: 1}, params)

	for i := 0; i < 500; i++ {
		c.ApplyTradePrice(0.0001, 1)
	}
	if got := c.Price(); got < 0.01 {
		t.Fatalf("价格跌破最低价: %f", got)
	}
}

// TestFundamentalDecay 冲击后的基本面指数回归基准值
func TestFundamentalDecay(t *testing.T) {
	c := testCommodity()
	r := rng.New(1)

	c.ApplySupplyShock(0.5) // 产量 +50%
	if got := c.SupplyDemand().Production; math.Abs(got-1500) > 1e-9 {
		t.Fatalf("冲击后产量应为 1500, 实际 %f", got)
	}

	for i := 0; i < 1000; i++ {
		c.UpdateFundamentals(1.0, r)
	}
	got := c.SupplyDemand().Production
	if math.Abs(got-1000) > 5 {
		t.Fatalf("1000 tick 后产量应回归 1000 附近, 实际 %f", got)
	}
}

// TestNewsRouting 新闻按类别路由到宏观/品种
func TestNewsRouting(t *testing.T) {
	l, err := New(nil, testParams(), rng.New(1))
	if err != nil {
		t.Fatalf("创建账本失败: %v", err)
	}

	l.ApplyNews(domain.NewsEvent{Category: domain.NewsGlobal, Magnitude: 0.3})
	if got := l.Macro().Sentiment(); got != 0.3 {
		t.Fatalf("全局情绪应为 0.3, 实际 %f", got)
	}

	oil, _ := l.Get("OIL")
	before := oil.SupplyDemand().Production
	l.ApplyNews(domain.NewsEvent{Category: domain.NewsSupply, Symbol: "OIL", Magnitude: -0.2})
	after := oil.SupplyDemand().Production
	if math.Abs(after-before*0.8) > 1e-9 {
		t.Fatalf("供给冲击应减产 20%%: %f -> %f", before, after)
	}

	// 情绪钳在 [-1, 1]
	for i := 0; i < 10; i++ {
		l.ApplyNews(domain.NewsEvent{Category: domain.NewsPolitical, Magnitude: 0.9})
	}
	if got := l.Macro().Sentiment(); got > 1.0 {
		t.Fatalf("情绪超出上限: %f", got)
	}
}

// TestUnknownSymbol 未知品种报 unknown_symbol
func TestUnknownSymbol(t *testing.T) {
	l, _ := New(nil, testParams(), rng.New(1))
	_, err := l.Get("URANIUM")
	if !domain.IsKind(err, domain.KindUnknownSymbol) {
		t.Fatalf("应报 unknown_symbol, 实际 %v", err)
	}
}

// TestCrossEffectsTable 默认品种的联动表确定有序
func TestCrossEffectsTable(t *testing.T) {
	l, _ := New(nil, testParams(), rng.New(1))
	ce := l.CrossEffects("OIL")
	if len(ce) != 3 {
		t.Fatalf("OIL 应有 3 条联动, 实际 %d", len(ce))
	}
	// 按目标品种字典序
	if ce[0].Target != "BRICK" || ce[1].Target != "GRAIN" || ce[2].Target != "STEEL" {
		t.Fatalf("联动表顺序错误: %+v", ce)
	}
}

// TestReturnAndVolatility 历史收益率与实现波动率
func TestReturnAndVolatility(t *testing.T) {
	c := testCommodity()
	prices := []float64{100, 101, 102, 103, 104}
	for _, p := range prices {
		c.price = p
		c.RecordClose()
	}

	got := c.Return(4)
	if math.Abs(got-0.04) > 1e-9 {
		t.Fatalf("4 tick 收益率应为 0.04, 实际 %f", got)
	}
	if c.Return(100) != 0 {
		t.Fatal("历史不足时收益率应为 0")
	}
	if v := c.RealizedVolatility(3); v <= 0 {
		t.Fatalf("实现波动率应为正, 实际 %f", v)
	}

	// 历史不足时退回基础波动率
	fresh := testCommodity()
	if v := fresh.RealizedVolatility(10); v != 0.02 {
		t.Fatalf("无历史时应退回基础波动率 0.02, 实际 %f", v)
	}
}

// TestConfigSpecs 配置品种替代默认品种
func TestConfigSpecs(t *testing.T) {
	specs := []config.CommoditySpec{
		{Symbol: "GOLD", Name: "Gold", BasePrice: 2000, Volatility: 0.01,
			Production: 10, Consumption: 10, Inventory: 100},
	}
	l, err := New(specs, testParams(), rng.New(1))
	if err != nil {
		t.Fatalf("创建账本失败: %v", err)
	}
	if len(l.Symbols()) != 1 || l.Symbols()[0] != "GOLD" {
		t.Fatalf("品种表错误: %v", l.Symbols())
	}
}
