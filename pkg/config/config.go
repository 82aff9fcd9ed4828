package config

import (
	"fmt"
	"os"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 模拟器完整配置
// 从 yaml 文件加载；运行期补丁通过 MergePatch 产生一份新配置，
// 校验通过后由引擎在下一个 tick 边界整体替换（全有或全无）。
type Config struct {
	Sim        SimConfig       `yaml:"sim"`
	Populate   PopulateConfig  `yaml:"populate"`
	Market     MarketConfig    `yaml:"market"`
	News       NewsConfig      `yaml:"news"`
	Agents     AgentsConfig    `yaml:"agents"`
	Candles    CandlesConfig   `yaml:"candles"`
	Commodities []CommoditySpec `yaml:"commodities"`
	API        APIConfig       `yaml:"api"`
	Export     ExportConfig    `yaml:"export"`
	Log        LogConfig       `yaml:"log"`
}

// SimConfig 时钟与主循环
type SimConfig struct {
	Seed       int64  `yaml:"seed"`          // 主随机种子，0 表示用当前时间
	TicksPerDay int   `yaml:"ticks_per_day"` // 每模拟日 tick 数（实时模式）
	TickRateMs int    `yaml:"tick_rate_ms"`  // 实时模式每 tick 间隔（毫秒）
	MaxTicks   uint64 `yaml:"max_ticks"`     // 运行到多少 tick 自动停止，0 不限
	StartDate  string `yaml:"start_date"`    // 模拟起始日期 YYYY-MM-DD
	AutoStart  bool   `yaml:"auto_start"`    // 进程启动后立即开始模拟
	Workers    int    `yaml:"workers"`       // 并行阶段 worker 数，0 = GOMAXPROCS
}

func (c *SimConfig) Validate() error {
	if c.TicksPerDay <= 0 {
		return fmt.Errorf("sim.ticks_per_day 必须为正数: %d", c.TicksPerDay)
	}
	if c.TickRateMs < 0 {
		return fmt.Errorf("sim.tick_rate_ms 不能为负数: %d", c.TickRateMs)
	}
	if c.StartDate != "" && !validDate(c.StartDate) {
		return fmt.Errorf("sim.start_date 格式必须为 YYYY-MM-DD: %s", c.StartDate)
	}
	return nil
}

// PopulateConfig 历史回填（两阶段：远期粗粒度、近期细粒度）
type PopulateConfig struct {
	Days             int `yaml:"days"`                // 回填天数
	CoarseTicksPerDay int `yaml:"coarse_ticks_per_day"` // 远期每日 tick 数
	FineTicksPerDay  int `yaml:"fine_ticks_per_day"`  // 近期每日 tick 数
	FineDays         int `yaml:"fine_days"`           // 细粒度覆盖最后几天
}

func (c *PopulateConfig) Validate() error {
	if c.Days < 0 {
		return fmt.Errorf("populate.days 不能为负数: %d", c.Days)
	}
	if c.CoarseTicksPerDay <= 0 || c.FineTicksPerDay <= 0 {
		return fmt.Errorf("populate tick 粒度必须为正数: coarse=%d fine=%d",
			c.CoarseTicksPerDay, c.FineTicksPerDay)
	}
	if c.FineDays < 0 || c.FineDays > c.Days {
		return fmt.Errorf("populate.fine_days 超出范围: %d (days=%d)", c.FineDays, c.Days)
	}
	return nil
}

// MarketConfig 价格形成与订单簿参数
type MarketConfig struct {
	ImpactDampening     float64 `yaml:"impact_dampening"`      // 成交价影响系数（Kyle λ 风格）
	ImbalanceGain       float64 `yaml:"imbalance_gain"`        // 订单流不平衡的价格微调系数
	PriceFloor          float64 `yaml:"price_floor"`           // 全局最低价
	CircuitBreakerLimit float64 `yaml:"circuit_breaker_limit"` // 相对开盘价的涨跌停幅度
	OrderExpiryDays     float64 `yaml:"order_expiry_days"`     // 订单存活时长（模拟日）
	PurgeInterval       uint64  `yaml:"purge_interval"`        // 每多少 tick 压实一次订单簿
	MarketOrderCap      float64 `yaml:"market_order_cap"`      // 市价单转激进限价单的越价上限
	MaxPriceHistory     int     `yaml:"max_price_history"`     // 每品种保留的收盘价条数
	MaxRecentTrades     int     `yaml:"max_recent_trades"`     // 最近成交环形缓冲大小
}

func (c *MarketConfig) Validate() error {
	if c.ImpactDampening < 0 {
		return fmt.Errorf("market.impact_dampening 不能为负数: %f", c.ImpactDampening)
	}
	if c.PriceFloor <= 0 {
		return fmt.Errorf("market.price_floor 必须为正数: %f", c.PriceFloor)
	}
	if c.CircuitBreakerLimit <= 0 || c.CircuitBreakerLimit >= 1 {
		return fmt.Errorf("market.circuit_breaker_limit 必须在 (0,1) 内: %f", c.CircuitBreakerLimit)
	}
	if c.OrderExpiryDays <= 0 {
		return fmt.Errorf("market.order_expiry_days 必须为正数: %f", c.OrderExpiryDays)
	}
	if c.PurgeInterval == 0 {
		return fmt.Errorf("market.purge_interval 必须为正数")
	}
	if c.MarketOrderCap <= 0 {
		return fmt.Errorf("market.market_order_cap 必须为正数: %f", c.MarketOrderCap)
	}
	return nil
}

// NewsConfig 新闻生成与富化
type NewsConfig struct {
	Enabled        bool    `yaml:"enabled"`
	RatePerTick    float64 `yaml:"rate_per_tick"`   // 基准 tick 粒度下的泊松 λ
	SigmaGlobal    float64 `yaml:"sigma_global"`    // 全球类事件幅度 σ
	SigmaPolitical float64 `yaml:"sigma_political"` // 政治类事件幅度 σ
	SigmaSupply    float64 `yaml:"sigma_supply"`    // 供给类事件幅度 σ
	SigmaDemand    float64 `yaml:"sigma_demand"`    // 需求类事件幅度 σ
	RecentLimit    int     `yaml:"recent_limit"`    // 快照里暴露的最近新闻条数
	HistoryLimit   int     `yaml:"history_limit"`   // 历史缓冲上限
	Enrichment     EnrichmentConfig `yaml:"enrichment"`
}

// EnrichmentConfig 可选的外部标题富化服务
type EnrichmentConfig struct {
	URL       string `yaml:"url"`        // 为空则禁用
	TimeoutMs int    `yaml:"timeout_ms"` // 超时后保留模板标题
}

func (c *NewsConfig) Validate() error {
	if c.RatePerTick < 0 {
		return fmt.Errorf("news.rate_per_tick 不能为负数: %f", c.RatePerTick)
	}
	for name, sigma := range map[string]float64{
		"sigma_global":    c.SigmaGlobal,
		"sigma_political": c.SigmaPolitical,
		"sigma_supply":    c.SigmaSupply,
		"sigma_demand":    c.SigmaDemand,
	} {
		if sigma < 0 {
			return fmt.Errorf("news.%s 不能为负数: %f", name, sigma)
		}
	}
	if c.Enrichment.URL != "" && c.Enrichment.TimeoutMs <= 0 {
		return fmt.Errorf("news.enrichment.timeout_ms 必须为正数: %d", c.Enrichment.TimeoutMs)
	}
	return nil
}

// AgentsConfig agent 种群
type AgentsConfig struct {
	Counts              map[string]int `yaml:"counts"`                // 每种策略的 agent 数
	InitialCash         float64        `yaml:"initial_cash"`          // 初始资金均值
	CashSigma           float64        `yaml:"cash_sigma"`            // 初始资金对数正态 σ
	BaseCapitalFraction float64        `yaml:"base_capital_fraction"` // 单笔下单资金比例基数
	MaxSpendFraction    float64        `yaml:"max_spend_fraction"`    // 单笔下单资金比例上限
	MaxOrderSize        int64          `yaml:"max_order_size"`        // 单笔下单手数上限
	NoiseMarketProb     float64        `yaml:"noise_market_prob"`     // 噪声交易者发市价单的概率
	SeedMakerInventory  bool           `yaml:"seed_maker_inventory"`  // 做市商初始持仓
}

func (c *AgentsConfig) Validate() error {
	total := 0
	for kind, n := range c.Counts {
		if n < 0 {
			return fmt.Errorf("agents.counts[%s] 不能为负数: %d", kind, n)
		}
		total += n
	}
	if total == 0 {
		return fmt.Errorf("agents.counts 至少需要一个 agent")
	}
	if c.InitialCash <= 0 {
		return fmt.Errorf("agents.initial_cash 必须为正数: %f", c.InitialCash)
	}
	if c.BaseCapitalFraction <= 0 || c.BaseCapitalFraction > 1 {
		return fmt.Errorf("agents.base_capital_fraction 必须在 (0,1] 内: %f", c.BaseCapitalFraction)
	}
	if c.MaxSpendFraction <= 0 || c.MaxSpendFraction > 1 {
		return fmt.Errorf("agents.max_spend_fraction 必须在 (0,1] 内: %f", c.MaxSpendFraction)
	}
	if c.MaxOrderSize <= 0 {
		return fmt.Errorf("agents.max_order_size 必须为正数: %d", c.MaxOrderSize)
	}
	if c.NoiseMarketProb < 0 || c.NoiseMarketProb > 1 {
		return fmt.Errorf("agents.noise_market_prob 必须在 [0,1] 内: %f", c.NoiseMarketProb)
	}
	return nil
}

// CandlesConfig K 线聚合
type CandlesConfig struct {
	Intervals  []string `yaml:"intervals"`   // 如 1m 5m 15m 30m 1h 1d
	MaxCandles int      `yaml:"max_candles"` // 每品种每粒度保留的已封口 K 线数
}

func (c *CandlesConfig) Validate() error {
	if len(c.Intervals) == 0 {
		return fmt.Errorf("candles.intervals 不能为空")
	}
	if c.MaxCandles <= 0 {
		return fmt.Errorf("candles.max_candles 必须为正数: %d", c.MaxCandles)
	}
	return nil
}

// CommoditySpec 单个商品的静态定义
type CommoditySpec struct {
	Symbol      string            `yaml:"symbol"`
	Name        string            `yaml:"name"`
	Category    string            `yaml:"category"`
	BasePrice   float64           `yaml:"base_price"`
	Volatility  float64           `yaml:"volatility"`
	Production  float64           `yaml:"production"`
	Consumption float64           `yaml:"consumption"`
	Inventory   float64           `yaml:"inventory"`
	CrossEffects map[string]float64 `yaml:"cross_effects"` // symbol -> 因子
}

func (c *CommoditySpec) Validate() error {
	if strings.TrimSpace(c.Symbol) == "" {
		return fmt.Errorf("commodity symbol 不能为空")
	}
	if c.BasePrice <= 0 {
		return fmt.Errorf("commodity %s: base_price 必须为正数: %f", c.Symbol, c.BasePrice)
	}
	if c.Volatility < 0 {
		return fmt.Errorf("commodity %s: volatility 不能为负数: %f", c.Symbol, c.Volatility)
	}
	if c.Production < 0 || c.Consumption < 0 || c.Inventory < 0 {
		return fmt.Errorf("commodity %s: 供需基础量不能为负数", c.Symbol)
	}
	return nil
}

// APIConfig REST/WS 服务
type APIConfig struct {
	Listen    string `yaml:"listen"` // 如 :8080
	EnableWS  bool   `yaml:"enable_ws"`
	GinRelease bool  `yaml:"gin_release"`
}

func (c *APIConfig) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("api.listen 不能为空")
	}
	return nil
}

// ExportConfig badger 导出
type ExportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

func (c *ExportConfig) Validate() error {
	if c.Enabled && strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("export.path 启用导出时不能为空")
	}
	return nil
}

// LogConfig 日志
type LogConfig struct {
	Level      string `yaml:"level"`
	OutputFile string `yaml:"output_file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Validate 逐节校验整份配置
func (c *Config) Validate() error {
	if err := c.Sim.Validate(); err != nil {
		return err
	}
	if err := c.Populate.Validate(); err != nil {
		return err
	}
	if err := c.Market.Validate(); err != nil {
		return err
	}
	if err := c.News.Validate(); err != nil {
		return err
	}
	if err := c.Agents.Validate(); err != nil {
		return err
	}
	if err := c.Candles.Validate(); err != nil {
		return err
	}
	seen := make(map[string]bool)
	for i := range c.Commodities {
		spec := &c.Commodities[i]
		if err := spec.Validate(); err != nil {
			return err
		}
		if seen[spec.Symbol] {
			return fmt.Errorf("commodity symbol 重复: %s", spec.Symbol)
		}
		seen[spec.Symbol] = true
	}
	// 交叉影响只能指向已定义的品种
	for i := range c.Commodities {
		for target := range c.Commodities[i].CrossEffects {
			if !seen[target] {
				return fmt.Errorf("commodity %s: cross_effects 指向未定义品种 %s",
					c.Commodities[i].Symbol, target)
			}
		}
	}
	if err := c.API.Validate(); err != nil {
		return err
	}
	if err := c.Export.Validate(); err != nil {
		return err
	}
	return nil
}

// Default 返回内置默认配置（不含商品，商品缺省由 ledger 提供）
func Default() *Config {
	return &Config{
		Sim: SimConfig{
			Seed:        0,
			TicksPerDay: 72000,
			TickRateMs:  50,
			StartDate:   "2024-01-01",
			AutoStart:   false,
		},
		Populate: PopulateConfig{
			Days:              30,
			CoarseTicksPerDay: 576,
			FineTicksPerDay:   1440,
			FineDays:          2,
		},
		Market: MarketConfig{
			ImpactDampening:     0.10,
			ImbalanceGain:       0.0005,
			PriceFloor:          0.01,
			CircuitBreakerLimit: 0.10,
			OrderExpiryDays:     2,
			PurgeInterval:       1000,
			MarketOrderCap:      0.05,
			MaxPriceHistory:     1000,
			MaxRecentTrades:     500,
		},
		News: NewsConfig{
			Enabled:        true,
			RatePerTick:    0.002,
			SigmaGlobal:    0.015,
			SigmaPolitical: 0.02,
			SigmaSupply:    0.04,
			SigmaDemand:    0.04,
			RecentLimit:    20,
			HistoryLimit:   5000,
			Enrichment:     EnrichmentConfig{TimeoutMs: 1500},
		},
		Agents: AgentsConfig{
			Counts: map[string]int{
				"supply_demand":  20,
				"momentum":       15,
				"mean_reversion": 15,
				"noise":          30,
				"market_maker":   5,
				"cross_effects":  10,
				"inventory":      10,
				"event":          10,
			},
			InitialCash:         10000,
			CashSigma:           0.5,
			BaseCapitalFraction: 0.10,
			MaxSpendFraction:    0.05,
			MaxOrderSize:        500,
			NoiseMarketProb:     0.05,
			SeedMakerInventory:  true,
		},
		Candles: CandlesConfig{
			Intervals:  []string{"1m", "5m", "15m", "30m", "1h", "1d"},
			MaxCandles: 500,
		},
		API: APIConfig{
			Listen:   ":8080",
			EnableWS: true,
		},
		Export: ExportConfig{},
		Log: LogConfig{
			Level:      "info",
			OutputFile: "logs/simulator.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
	}
}

// Load 从 yaml 文件加载配置（在默认值基础上覆盖）
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "读取配置文件 %s", path)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, pkgerrors.Wrapf(err, "解析配置文件 %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, pkgerrors.Wrap(err, "配置校验失败")
	}
	return cfg, nil
}

// Clone 深拷贝（yaml 往返）
func (c *Config) Clone() *Config {
	data, err := yaml.Marshal(c)
	if err != nil {
		// Config 全部由可序列化字段组成，到不了这里
		panic(err)
	}
	out := &Config{}
	if err := yaml.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}

// MergePatch 在当前配置的拷贝上应用一段 yaml/json 局部补丁
// 校验失败时返回错误且不产生任何可见变化（全有或全无）。
func (c *Config) MergePatch(patch []byte) (*Config, error) {
	next := c.Clone()
	if err := yaml.Unmarshal(patch, next); err != nil {
		return nil, pkgerrors.Wrap(err, "解析配置补丁")
	}
	if err := next.Validate(); err != nil {
		return nil, pkgerrors.Wrap(err, "配置补丁校验失败")
	}
	return next, nil
}

func validDate(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, ch := range s {
		if i == 4 || i == 7 {
			continue
		}
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}
