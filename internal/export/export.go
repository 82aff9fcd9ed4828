package export

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
	"github.com/ProAltro/stock-market-simulator-sub002/internal/engine"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/persistence"
)

var log = logrus.WithField("component", "export")

// Sink 把引擎回调落到持久化存储
// 已封口 K 线按 (品种, 粒度, 开盘时间) 编键，成交和新闻按序号编键，
// key 用零填充保证字典序即时间序。
type Sink struct {
	svc    persistence.Service
	trades persistence.Store
	news   persistence.Store
	// K 线 store 按 品种:粒度 懒创建
	candleStores map[string]persistence.Store
}

// NewSink 基于任意持久化服务创建导出槽
func NewSink(svc persistence.Service) *Sink {
	return &Sink{
		svc:          svc,
		trades:       svc.NewStore("trades"),
		news:         svc.NewStore("news"),
		candleStores: map[string]persistence.Store{},
	}
}

// Wrap 把导出挂到一组引擎回调前面，返回链接后的回调
func (s *Sink) Wrap(next engine.Callbacks) engine.Callbacks {
	return engine.Callbacks{
		OnTrade: func(t domain.Trade) {
			s.writeTrade(t)
			if next.OnTrade != nil {
				next.OnTrade(t)
			}
		},
		OnCandle: func(symbol, interval string, c domain.Candle) {
			s.writeCandle(symbol, interval, c)
			if next.OnCandle != nil {
				next.OnCandle(symbol, interval, c)
			}
		},
		OnNews: func(ev domain.NewsEvent) {
			s.writeNews(ev)
			if next.OnNews != nil {
				next.OnNews(ev)
			}
		},
		OnTick: next.OnTick,
	}
}

func (s *Sink) writeTrade(t domain.Trade) {
	if err := s.trades.Put(fmt.Sprintf("%012d", t.ID), t); err != nil {
		log.Warnf("写成交 %d 失败: %v", t.ID, err)
	}
}

func (s *Sink) writeCandle(symbol, interval string, c domain.Candle) {
	key := symbol + ":" + interval
	store, ok := s.candleStores[key]
	if !ok {
		store = s.svc.NewStore("candles", symbol, interval)
		s.candleStores[key] = store
	}
	if err := store.Put(fmt.Sprintf("%013d", c.OpenTime), c); err != nil {
		log.Warnf("写 K 线 %s/%s 失败: %v", symbol, interval, err)
	}
}

func (s *Sink) writeNews(ev domain.NewsEvent) {
	if err := s.news.Put(fmt.Sprintf("%012d", ev.ID), ev); err != nil {
		log.Warnf("写新闻 %d 失败: %v", ev.ID, err)
	}
}

// Candles 读回某品种某粒度的全部已导出 K 线（按时间序）
func (s *Sink) Candles(symbol, interval string) ([]domain.Candle, error) {
	store := s.svc.NewStore("candles", symbol, interval)
	keys, err := store.Keys()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Candle, 0, len(keys))
	for _, k := range keys {
		var c domain.Candle
		if err := store.Get(k, &c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// Close 关闭底层存储
func (s *Sink) Close() error {
	return s.svc.Close()
}
