package events

import (
	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
)

// Type 事件类型（WS 推流与导出共用）
type Type string

const (
	TypeTrade  Type = "trade"
	TypeCandle Type = "candle"
	TypeNews   Type = "news"
	TypeTick   Type = "tick"
)

// Envelope 推流信封
type Envelope struct {
	Type    Type        `json:"type"`
	Payload interface{} `json:"payload"`
}

// TradeExecuted 成交事件
type TradeExecuted struct {
	Trade domain.Trade `json:"trade"`
}

// CandleSealed K 线封口事件
type CandleSealed struct {
	Symbol   string        `json:"symbol"`
	Interval string        `json:"interval"`
	Candle   domain.Candle `json:"candle"`
}

// NewsPublished 新闻事件
type NewsPublished struct {
	Event domain.NewsEvent `json:"event"`
}

// TickCompleted 每 tick 末尾的汇总事件
type TickCompleted struct {
	Tick      uint64             `json:"tick"`
	SimTimeMs int64              `json:"simTimeMs"`
	Day       int                `json:"day"`
	Prices    map[string]float64 `json:"prices"`
	Trades    int                `json:"trades"`
	News      int                `json:"news"`
}
