package news

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/rng"
)

func testConfig() Config {
	return Config{
		Enabled:        true,
		RatePerTick:    0.5, // 测试用的高 λ，保证有事件产出
		SigmaGlobal:    0.015,
		SigmaPolitical: 0.02,
		SigmaSupply:    0.04,
		SigmaDemand:    0.04,
		RecentLimit:    20,
		HistoryLimit:   1000,
	}
}

func testNames() map[string]string {
	return map[string]string{
		"OIL":   "Crude Oil",
		"STEEL": "Steel",
		"GRAIN": "Grain",
	}
}

// TestDeterministicWithSeed 同种子同序列
func TestDeterministicWithSeed(t *testing.T) {
	run := func() []domain.NewsEvent {
		g := NewGenerator(testConfig(), rng.New(42), testNames())
		var all []domain.NewsEvent
		for tick := uint64(1); tick <= 500; tick++ {
			all = append(all, g.Generate(tick, int64(tick)*1000, 1.0)...)
		}
		return all
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("两次回放事件数不同: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Category != b[i].Category || a[i].Magnitude != b[i].Magnitude ||
			a[i].Symbol != b[i].Symbol || a[i].Headline != b[i].Headline {
			t.Fatalf("第 %d 个事件不一致:\n%+v\n%+v", i, a[i], b[i])
		}
	}
	if len(a) == 0 {
		t.Fatal("500 tick、λ=0.5 下不应没有任何事件")
	}
}

// TestCategoryBinding 供需类事件必须绑定品种，全局类不绑定
func TestCategoryBinding(t *testing.T) {
	g := NewGenerator(testConfig(), rng.New(7), testNames())
	for tick := uint64(1); tick <= 2000; tick++ {
		for _, ev := range g.Generate(tick, 0, 1.0) {
			switch ev.Category {
			case domain.NewsSupply, domain.NewsDemand:
				if _, ok := testNames()[ev.Symbol]; !ok {
					t.Fatalf("供需事件绑定了未知品种: %+v", ev)
				}
			case domain.NewsGlobal, domain.NewsPolitical:
				if ev.Symbol != "" {
					t.Fatalf("全局/政治事件不应绑定品种: %+v", ev)
				}
			}
			if ev.Headline == "" {
				t.Fatalf("事件缺少标题: %+v", ev)
			}
			if ev.Sentiment == domain.SentimentPositive && ev.Magnitude < 0 {
				t.Fatalf("利多事件幅度为负: %+v", ev)
			}
			if ev.Sentiment == domain.SentimentNegative && ev.Magnitude > 0 {
				t.Fatalf("利空事件幅度为正: %+v", ev)
			}
		}
	}
}

// TestInjectedFirst 注入事件在下一 tick 头部消费
func TestInjectedFirst(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false // 只看注入
	g := NewGenerator(cfg, rng.New(1), testNames())

	err := g.Inject(domain.NewsEvent{
		Category:  domain.NewsSupply,
		Sentiment: domain.SentimentNegative,
		Magnitude: -0.05,
		Symbol:    "OIL",
	})
	if err != nil {
		t.Fatalf("注入失败: %v", err)
	}

	out := g.Generate(10, 1000, 1.0)
	if len(out) != 1 {
		t.Fatalf("应消费 1 条注入事件, 实际 %d", len(out))
	}
	ev := out[0]
	if !ev.Injected || ev.Tick != 10 || ev.ID == 0 {
		t.Fatalf("注入事件未正确盖戳: %+v", ev)
	}

	// 队列应已清空
	if out := g.Generate(11, 2000, 1.0); len(out) != 0 {
		t.Fatalf("注入队列应已清空, 实际产出 %d", len(out))
	}
}

// TestInjectValidation 注入校验
func TestInjectValidation(t *testing.T) {
	g := NewGenerator(testConfig(), rng.New(1), testNames())

	err := g.Inject(domain.NewsEvent{Category: domain.NewsSupply,
		Sentiment: domain.SentimentPositive, Symbol: "GOLD"})
	if !domain.IsKind(err, domain.KindUnknownSymbol) {
		t.Fatalf("未知品种应报 unknown_symbol, 实际 %v", err)
	}

	err = g.Inject(domain.NewsEvent{Category: domain.NewsGlobal,
		Sentiment: domain.SentimentPositive, Symbol: "OIL"})
	if !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("全局事件绑定品种应报 validation, 实际 %v", err)
	}

	err = g.Inject(domain.NewsEvent{Category: "weather",
		Sentiment: domain.SentimentPositive})
	if !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("未知类别应报 validation, 实际 %v", err)
	}

	err = g.Inject(domain.NewsEvent{Category: domain.NewsDemand,
		Sentiment: domain.SentimentPositive, Symbol: "OIL", Magnitude: 2.0})
	if !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("幅度越界应报 validation, 实际 %v", err)
	}
}

// TestEnrichmentSuccess 富化成功后替换历史标题
func TestEnrichmentSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"headline":"Enriched headline"}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Enabled = false
	g := NewGenerator(cfg, rng.New(1), testNames())

	var wg sync.WaitGroup
	wg.Add(1)
	e := NewEnricher(srv.URL, time.Second, func(id uint64, headline string) {
		defer wg.Done()
		g.UpdateHeadline(id, headline)
	})

	g.Inject(domain.NewsEvent{Category: domain.NewsSupply,
		Sentiment: domain.SentimentNegative, Magnitude: -0.02, Symbol: "OIL"})
	out := g.Generate(1, 0, 1.0)
	e.EnrichAsync(out[0])
	wg.Wait()

	hist := g.Recent(1)
	if hist[0].Headline != "Enriched headline" {
		t.Fatalf("历史标题未被富化替换: %s", hist[0].Headline)
	}
}

// TestEnrichmentTimeout 富化超时保留模板标题
func TestEnrichmentTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"headline":"too late"}`))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Enabled = false
	g := NewGenerator(cfg, rng.New(1), testNames())

	e := NewEnricher(srv.URL, 50*time.Millisecond, func(id uint64, headline string) {
		t.Error("超时的富化不应回调")
	})

	g.Inject(domain.NewsEvent{Category: domain.NewsSupply,
		Sentiment: domain.SentimentNegative, Magnitude: -0.02, Symbol: "OIL"})
	out := g.Generate(1, 0, 1.0)
	template := out[0].Headline

	e.EnrichAsync(out[0])
	time.Sleep(500 * time.Millisecond)

	hist := g.Recent(1)
	if hist[0].Headline != template {
		t.Fatalf("超时后应保留模板标题 %q, 实际 %q", template, hist[0].Headline)
	}
}

// TestNilEnricherNoop 未配置富化时 EnrichAsync 是空操作
func TestNilEnricherNoop(t *testing.T) {
	var e *Enricher
	e.EnrichAsync(domain.NewsEvent{}) // 不应 panic
}
