package domain

// Side 买卖方向
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderKind 订单类型
type OrderKind string

const (
	KindLimit  OrderKind = "limit"
	KindMarket OrderKind = "market"
)

// OrderStatus 订单生命周期状态
type OrderStatus string

const (
	StatusActive    OrderStatus = "active"
	StatusPartial   OrderStatus = "partial"
	StatusFilled    OrderStatus = "filled"
	StatusCancelled OrderStatus = "cancelled"
	StatusExpired   OrderStatus = "expired"
)

// Terminal 订单是否已到终态（撮合扫描时惰性剔除）
func (s OrderStatus) Terminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusExpired
}

// Order 订单
// OwnerID > 0 为 agent 订单；外部订单 OwnerID = 0 并携带 ClientToken。
// Seq 由订单簿在插入时分配，同价位按 Seq 先到先得。
type Order struct {
	ID          uint64      `json:"id"`
	Seq         uint64      `json:"-"`
	Symbol      string      `json:"symbol"`
	Side        Side        `json:"side"`
	Kind        OrderKind   `json:"kind"`
	Price       float64     `json:"price"`
	Quantity    int64       `json:"quantity"`
	Remaining   int64       `json:"remaining"`
	Status      OrderStatus `json:"status"`
	OwnerID     uint64      `json:"ownerId"`
	OwnerType   string      `json:"ownerType"` // 策略名或 "external"
	ClientToken string      `json:"clientToken,omitempty"`
	CreatedTick uint64      `json:"createdTick"`
}

// Trade 成交记录，价格取被动方（先到簿里那一方）的报价
type Trade struct {
	ID          uint64  `json:"id"`
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	Quantity    int64   `json:"quantity"`
	BuyOrderID  uint64  `json:"buyOrderId"`
	SellOrderID uint64  `json:"sellOrderId"`
	BuyerID     uint64  `json:"buyerId"`
	SellerID    uint64  `json:"sellerId"`
	BuyerType   string  `json:"buyerType"`
	SellerType  string  `json:"sellerType"`
	Tick        uint64  `json:"tick"`
	SimTimeMs   int64   `json:"simTimeMs"`
}

// Candle OHLCV K 线，OpenTime 为桶起点的模拟时间（毫秒）
type Candle struct {
	OpenTime int64   `json:"openTime"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   int64   `json:"volume"`
}

// NewsCategory 新闻类别
type NewsCategory string

const (
	NewsGlobal    NewsCategory = "global"
	NewsPolitical NewsCategory = "political"
	NewsSupply    NewsCategory = "supply"
	NewsDemand    NewsCategory = "demand"
)

// NewsSentiment 情绪方向
type NewsSentiment string

const (
	SentimentPositive NewsSentiment = "positive"
	SentimentNegative NewsSentiment = "negative"
	SentimentNeutral  NewsSentiment = "neutral"
)

// NewsEvent 新闻事件
// Global/Political 不绑定品种（Symbol 为空），作用于全局情绪；
// Supply/Demand 绑定具体品种，作用于其生产/消费基本面。
type NewsEvent struct {
	ID        uint64        `json:"id"`
	Category  NewsCategory  `json:"category"`
	Sentiment NewsSentiment `json:"sentiment"`
	Magnitude float64       `json:"magnitude"` // 有符号幅度，正为利多
	Symbol    string        `json:"symbol,omitempty"`
	Headline  string        `json:"headline"`
	Tick      uint64        `json:"tick"`
	SimTimeMs int64         `json:"simTimeMs"`
	Injected  bool          `json:"injected,omitempty"` // 外部注入的事件
}

// SupplyDemand 品种的基本面状态
type SupplyDemand struct {
	Production  float64 `json:"production"`
	Consumption float64 `json:"consumption"`
	Inventory   float64 `json:"inventory"`
}

// Imbalance 供需失衡度 (production-consumption)/consumption
func (sd SupplyDemand) Imbalance() float64 {
	if sd.Consumption <= 0 {
		return 0
	}
	return (sd.Production - sd.Consumption) / sd.Consumption
}

// OrderIntent agent 决策阶段产出的下单意图，撮合阶段统一入簿
type OrderIntent struct {
	Symbol   string
	Side     Side
	Kind     OrderKind
	Price    float64
	Quantity int64
}

// Position 持仓（数量 + 平均成本）
type Position struct {
	Quantity int64   `json:"quantity"`
	AvgCost  float64 `json:"avgCost"`
}

// BookLevel 订单簿单个价位的聚合深度
type BookLevel struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
	Orders   int     `json:"orders"`
}
