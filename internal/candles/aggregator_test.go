package candles

import (
	"testing"
	"testing/quick"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
)

// TestFoldWithinBucket 同一桶内 OHLCV 累积
func TestFoldWithinBucket(t *testing.T) {
	a, err := New([]string{"1m"}, 100)
	if err != nil {
		t.Fatalf("创建聚合器失败: %v", err)
	}
	a.AddSymbol("OIL")

	a.OnTick("OIL", 50.0, 3, 0)
	a.OnTick("OIL", 52.0, 2, 10_000)
	a.OnTick("OIL", 49.0, 1, 20_000)
	a.OnTick("OIL", 51.0, 0, 30_000)

	c, ok := a.Current("OIL", "1m")
	if !ok {
		t.Fatal("应有当前 K 线")
	}
	if c.Open != 50.0 || c.High != 52.0 || c.Low != 49.0 || c.Close != 51.0 {
		t.Fatalf("OHLC 错误: %+v", c)
	}
	if c.Volume != 6 {
		t.Fatalf("成交量应为 6, 实际 %d", c.Volume)
	}
}

// TestSealOnBoundary 跨桶封口、回调、新桶开盘价延续收盘价
func TestSealOnBoundary(t *testing.T) {
	a, _ := New([]string{"1m"}, 100)
	a.AddSymbol("OIL")

	var sealed []domain.Candle
	a.SetOnSealed(func(symbol, interval string, c domain.Candle) {
		if symbol != "OIL" || interval != "1m" {
			t.Fatalf("封口回调参数错误: %s %s", symbol, interval)
		}
		sealed = append(sealed, c)
	})

	a.OnTick("OIL", 50.0, 1, 0)
	a.OnTick("OIL", 55.0, 1, 30_000)
	a.OnTick("OIL", 53.0, 1, 60_000) // 跨入第二分钟

	if len(sealed) != 1 {
		t.Fatalf("应封口 1 根, 实际 %d", len(sealed))
	}
	if sealed[0].Close != 55.0 {
		t.Fatalf("第一根收盘价应为 55, 实际 %f", sealed[0].Close)
	}

	cur, _ := a.Current("OIL", "1m")
	if cur.Open != 55.0 {
		t.Fatalf("新桶开盘价应延续上一根收盘价 55, 实际 %f", cur.Open)
	}
	if cur.OpenTime != 60_000 {
		t.Fatalf("新桶起点应为 60000, 实际 %d", cur.OpenTime)
	}
	// 收盘 53 低于开盘 55，Low 应取两者较小值
	if cur.Low != 53.0 || cur.High != 55.0 {
		t.Fatalf("跨桶首 tick 的高低价错误: %+v", cur)
	}
}

// TestGapAcrossBuckets 粗粒度下跳过多个桶也不留跳空
func TestGapAcrossBuckets(t *testing.T) {
	a, _ := New([]string{"1m"}, 100)
	a.AddSymbol("OIL")

	a.OnTick("OIL", 50.0, 1, 0)
	// 下一个 tick 直接跳到第 10 分钟
	a.OnTick("OIL", 58.0, 1, 600_000)

	cur, _ := a.Current("OIL", "1m")
	if cur.Open != 50.0 {
		t.Fatalf("跳空后的开盘价应延续收盘价 50, 实际 %f", cur.Open)
	}
	if cur.Close != 58.0 {
		t.Fatalf("收盘价应为 58, 实际 %f", cur.Close)
	}
}

// TestSealedQuery since/limit 过滤
func TestSealedQuery(t *testing.T) {
	a, _ := New([]string{"1m"}, 100)
	a.AddSymbol("OIL")

	for i := 0; i < 5; i++ {
		a.OnTick("OIL", 50.0+float64(i), 1, int64(i)*60_000)
	}
	// 封了 4 根（第 5 根还在当前桶）
	all, err := a.Sealed("OIL", "1m", 0, 0)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("应有 4 根已封口, 实际 %d", len(all))
	}

	since, _ := a.Sealed("OIL", "1m", 120_000, 0)
	if len(since) != 2 {
		t.Fatalf("since 过滤后应剩 2 根, 实际 %d", len(since))
	}

	limited, _ := a.Sealed("OIL", "1m", 0, 2)
	if len(limited) != 2 || limited[1].OpenTime != 180_000 {
		t.Fatalf("limit 应取最近 2 根: %+v", limited)
	}

	if _, err := a.Sealed("GOLD", "1m", 0, 0); !domain.IsKind(err, domain.KindUnknownSymbol) {
		t.Fatalf("未知品种应报 unknown_symbol, 实际 %v", err)
	}
	if _, err := a.Sealed("OIL", "7m", 0, 0); !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("未配置粒度应报 validation, 实际 %v", err)
	}
}

// TestCandleInvariants 属性：任意价格序列下 Low <= Open,Close <= High
func TestCandleInvariants(t *testing.T) {
	check := func(raw []uint16) bool {
		if len(raw) == 0 {
			return true
		}
		a, _ := New([]string{"1m"}, 1000)
		a.AddSymbol("X")
		for i, v := range raw {
			price := 1.0 + float64(v)/100.0
			a.OnTick("X", price, 1, int64(i)*20_000)
		}
		sealed, _ := a.Sealed("X", "1m", 0, 0)
		if cur, ok := a.Current("X", "1m"); ok {
			sealed = append(sealed, cur)
		}
		for _, c := range sealed {
			if c.Low > c.Open || c.Low > c.Close || c.High < c.Open || c.High < c.Close {
				return false
			}
		}
		return true
	}
	if err := quick.Check(check, nil); err != nil {
		t.Fatalf("K 线不变量被破坏: %v", err)
	}
}
