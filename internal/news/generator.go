package news

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/rng"
)

var log = logrus.WithField("component", "news")

// Config 新闻生成参数
type Config struct {
	Enabled        bool
	RatePerTick    float64 // 基准粒度下的泊松 λ
	SigmaGlobal    float64
	SigmaPolitical float64
	SigmaSupply    float64
	SigmaDemand    float64
	RecentLimit    int
	HistoryLimit   int
}

// Generator 泊松新闻流
// 每 tick 事件数 ~ Poisson(λ·tickScale)；类别按固定权重抽取：
// 15% 全球、10% 政治、35% 供给、40% 需求。
// Global/Political 作用于全局情绪，Supply/Demand 绑定随机品种。
type Generator struct {
	cfg     Config
	rng     *rng.Source
	symbols []string          // 排序后的品种表，保证回放确定性
	names   map[string]string // symbol -> 展示名

	nextID uint64

	mu       sync.Mutex
	injected []domain.NewsEvent   // API 注入队列，下一 tick 头部消费
	history  []*domain.NewsEvent  // 全量历史（环形截断）
}

// NewGenerator 创建生成器
func NewGenerator(cfg Config, source *rng.Source, names map[string]string) *Generator {
	symbols := make([]string, 0, len(names))
	for s := range names {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return &Generator{
		cfg:     cfg,
		rng:     source,
		symbols: symbols,
		names:   names,
	}
}

// SetConfig 运行期热更新（tick 边界调用）
func (g *Generator) SetConfig(cfg Config) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = cfg
}

// Inject 外部注入事件（API 线程调用，下一 tick 生效）
// 只校验，不盖戳：tick/时间/ID 在消费时统一补
func (g *Generator) Inject(ev domain.NewsEvent) error {
	switch ev.Category {
	case domain.NewsGlobal, domain.NewsPolitical:
		if ev.Symbol != "" {
			return domain.E(domain.KindValidation,
				"%s 类事件不应绑定品种", ev.Category)
		}
	case domain.NewsSupply, domain.NewsDemand:
		if _, ok := g.names[ev.Symbol]; !ok {
			return domain.E(domain.KindUnknownSymbol, "品种不存在: %s", ev.Symbol)
		}
	default:
		return domain.E(domain.KindValidation, "未知新闻类别: %s", ev.Category)
	}
	switch ev.Sentiment {
	case domain.SentimentPositive, domain.SentimentNegative, domain.SentimentNeutral:
	default:
		return domain.E(domain.KindValidation, "未知情绪: %s", ev.Sentiment)
	}
	if ev.Magnitude < -1 || ev.Magnitude > 1 {
		return domain.E(domain.KindValidation, "幅度超出 [-1,1]: %f", ev.Magnitude)
	}
	ev.Injected = true

	g.mu.Lock()
	defer g.mu.Unlock()
	g.injected = append(g.injected, ev)
	return nil
}

// Generate 产出本 tick 的事件（注入的排在随机事件之前）
func (g *Generator) Generate(tick uint64, simMs int64, tickScale float64) []domain.NewsEvent {
	g.mu.Lock()
	queued := g.injected
	g.injected = nil
	cfg := g.cfg
	g.mu.Unlock()

	var out []domain.NewsEvent
	for _, ev := range queued {
		g.stamp(&ev, tick, simMs)
		out = append(out, ev)
	}

	if cfg.Enabled {
		n := g.rng.Poisson(cfg.RatePerTick * tickScale)
		for i := 0; i < n; i++ {
			ev := g.randomEvent(cfg)
			g.stamp(&ev, tick, simMs)
			out = append(out, ev)
		}
	}

	if len(out) > 0 {
		g.record(out)
	}
	return out
}

func (g *Generator) stamp(ev *domain.NewsEvent, tick uint64, simMs int64) {
	g.nextID++
	ev.ID = g.nextID
	ev.Tick = tick
	ev.SimTimeMs = simMs
	if ev.Headline == "" {
		ev.Headline = Headline(ev.Category, ev.Sentiment, g.names[ev.Symbol], g.rng)
	}
}

func (g *Generator) randomEvent(cfg Config) domain.NewsEvent {
	var ev domain.NewsEvent

	// 类别权重：15% 全球、10% 政治、35% 供给、40% 需求
	r := g.rng.Uniform(0, 1)
	var sigma float64
	switch {
	case r < 0.15:
		ev.Category = domain.NewsGlobal
		sigma = cfg.SigmaGlobal
	case r < 0.25:
		ev.Category = domain.NewsPolitical
		sigma = cfg.SigmaPolitical
	case r < 0.60:
		ev.Category = domain.NewsSupply
		sigma = cfg.SigmaSupply
	default:
		ev.Category = domain.NewsDemand
		sigma = cfg.SigmaDemand
	}

	// 情绪：45% 利多、45% 利空、10% 中性
	s := g.rng.Uniform(0, 1)
	mag := g.rng.Normal(0, sigma)
	if mag < 0 {
		mag = -mag
	}
	switch {
	case s < 0.45:
		ev.Sentiment = domain.SentimentPositive
		ev.Magnitude = mag
	case s < 0.90:
		ev.Sentiment = domain.SentimentNegative
		ev.Magnitude = -mag
	default:
		ev.Sentiment = domain.SentimentNeutral
		ev.Magnitude = 0
	}

	if ev.Category == domain.NewsSupply || ev.Category == domain.NewsDemand {
		ev.Symbol = g.symbols[g.rng.UniformInt(0, len(g.symbols)-1)]
	}
	return ev
}

func (g *Generator) record(events []domain.NewsEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := range events {
		ev := events[i]
		g.history = append(g.history, &ev)
	}
	if g.cfg.HistoryLimit > 0 && len(g.history) > g.cfg.HistoryLimit {
		g.history = g.history[len(g.history)-g.cfg.HistoryLimit:]
	}
}

// UpdateHeadline 富化完成后替换历史条目的标题（尽力而为）
func (g *Generator) UpdateHeadline(id uint64, headline string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.history) - 1; i >= 0; i-- {
		if g.history[i].ID == id {
			g.history[i].Headline = headline
			return
		}
	}
}

// Recent 最近 n 条（默认 RecentLimit）
func (g *Generator) Recent(n int) []domain.NewsEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n <= 0 {
		n = g.cfg.RecentLimit
	}
	start := len(g.history) - n
	if start < 0 {
		start = 0
	}
	out := make([]domain.NewsEvent, 0, len(g.history)-start)
	for _, ev := range g.history[start:] {
		out = append(out, *ev)
	}
	return out
}

// History 按时间升序返回历史，可按类别过滤
func (g *Generator) History(category domain.NewsCategory, limit int) []domain.NewsEvent {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.NewsEvent, 0, len(g.history))
	for _, ev := range g.history {
		if category != "" && ev.Category != category {
			continue
		}
		out = append(out, *ev)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Reset 清空历史与注入队列（ID 计数保留，避免复用）
func (g *Generator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.injected = nil
	g.history = nil
	log.Debug("新闻历史已清空")
}
