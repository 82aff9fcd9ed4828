package candles

import (
	"sort"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
)

// Interval K 线粒度
type Interval struct {
	Name string
	Ms   int64
}

// 支持的粒度表
var intervalTable = map[string]int64{
	"1m":  60_000,
	"5m":  300_000,
	"15m": 900_000,
	"30m": 1_800_000,
	"1h":  3_600_000,
	"4h":  14_400_000,
	"1d":  86_400_000,
}

// ParseInterval 解析粒度名
func ParseInterval(name string) (Interval, error) {
	ms, ok := intervalTable[name]
	if !ok {
		return Interval{}, domain.E(domain.KindValidation, "未知 K 线粒度: %s", name)
	}
	return Interval{Name: name, Ms: ms}, nil
}

// series 单品种单粒度的聚合状态
type series struct {
	interval Interval

	current     domain.Candle
	started     bool
	bucketStart int64

	sealed []domain.Candle // 已封口，按时间升序
	max    int
}

// SealedFunc 封口回调（推流与导出）
type SealedFunc func(symbol string, interval string, c domain.Candle)

// Aggregator 多品种多粒度 OHLCV 聚合器
// 每 tick 喂入品种的最新价和该 tick 成交量；
// 跨过桶边界时封口并回调。新桶的开盘价取上一根的收盘价，
// 这样粗粒度回填中跳过的时间不会在图上留跳空。
type Aggregator struct {
	intervals []Interval
	maxKeep   int
	series    map[string]map[string]*series
	onSealed  SealedFunc
}

// New 创建聚合器
func New(intervalNames []string, maxKeep int) (*Aggregator, error) {
	ivs := make([]Interval, 0, len(intervalNames))
	for _, name := range intervalNames {
		iv, err := ParseInterval(name)
		if err != nil {
			return nil, err
		}
		ivs = append(ivs, iv)
	}
	sort.Slice(ivs, func(i, j int) bool { return ivs[i].Ms < ivs[j].Ms })
	return &Aggregator{
		intervals: ivs,
		maxKeep:   maxKeep,
		series:    map[string]map[string]*series{},
	}, nil
}

// SetOnSealed 注册封口回调
func (a *Aggregator) SetOnSealed(fn SealedFunc) { a.onSealed = fn }

// AddSymbol 注册品种
func (a *Aggregator) AddSymbol(symbol string) {
	if _, ok := a.series[symbol]; ok {
		return
	}
	m := make(map[string]*series, len(a.intervals))
	for _, iv := range a.intervals {
		m[iv.Name] = &series{interval: iv, max: a.maxKeep}
	}
	a.series[symbol] = m
}

// Intervals 配置的粒度名列表（升序）
func (a *Aggregator) Intervals() []string {
	out := make([]string, len(a.intervals))
	for i, iv := range a.intervals {
		out[i] = iv.Name
	}
	return out
}

// OnTick 喂入一个 tick 的最新价与成交量
func (a *Aggregator) OnTick(symbol string, price float64, volume int64, simMs int64) {
	m, ok := a.series[symbol]
	if !ok {
		return
	}
	for _, iv := range a.intervals {
		a.fold(symbol, m[iv.Name], price, volume, simMs)
	}
}

func (a *Aggregator) fold(symbol string, s *series, price float64, volume int64, simMs int64) {
	bucket := (simMs / s.interval.Ms) * s.interval.Ms

	if !s.started {
		s.started = true
		s.bucketStart = bucket
		s.current = domain.Candle{
			OpenTime: bucket,
			Open:     price, High: price, Low: price, Close: price,
			Volume: volume,
		}
		return
	}

	if bucket > s.bucketStart {
		a.seal(symbol, s)
		// 新桶开盘价延续上一根收盘价
		open := s.current.Close
		s.bucketStart = bucket
		s.current = domain.Candle{
			OpenTime: bucket,
			Open:     open,
			High:     maxf(open, price),
			Low:      minf(open, price),
			Close:    price,
			Volume:   volume,
		}
		return
	}

	c := &s.current
	if price > c.High {
		c.High = price
	}
	if price < c.Low {
		c.Low = price
	}
	c.Close = price
	c.Volume += volume
}

func (a *Aggregator) seal(symbol string, s *series) {
	s.sealed = append(s.sealed, s.current)
	if s.max > 0 && len(s.sealed) > s.max {
		s.sealed = s.sealed[len(s.sealed)-s.max:]
	}
	if a.onSealed != nil {
		a.onSealed(symbol, s.interval.Name, s.current)
	}
}

// Sealed 查询已封口 K 线（可按起始时间过滤、限制条数）
func (a *Aggregator) Sealed(symbol, interval string, sinceMs int64, limit int) ([]domain.Candle, error) {
	m, ok := a.series[symbol]
	if !ok {
		return nil, domain.E(domain.KindUnknownSymbol, "品种不存在: %s", symbol)
	}
	s, ok := m[interval]
	if !ok {
		return nil, domain.E(domain.KindValidation, "未配置的 K 线粒度: %s", interval)
	}
	out := s.sealed
	if sinceMs > 0 {
		idx := sort.Search(len(out), func(i int) bool { return out[i].OpenTime >= sinceMs })
		out = out[idx:]
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	// 拷贝一份，调用方可能在锁外持有
	cp := make([]domain.Candle, len(out))
	copy(cp, out)
	return cp, nil
}

// Current 当前未封口的 K 线
func (a *Aggregator) Current(symbol, interval string) (domain.Candle, bool) {
	m, ok := a.series[symbol]
	if !ok {
		return domain.Candle{}, false
	}
	s, ok := m[interval]
	if !ok || !s.started {
		return domain.Candle{}, false
	}
	return s.current, true
}

// Reset 清空全部状态（保留品种与粒度注册）
func (a *Aggregator) Reset() {
	for _, m := range a.series {
		for _, s := range m {
			s.started = false
			s.sealed = nil
			s.current = domain.Candle{}
			s.bucketStart = 0
		}
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
