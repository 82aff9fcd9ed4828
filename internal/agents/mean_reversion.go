package agents

import (
	"math"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
)

// decideMeanReversion 均值回归
// 价格相对滚动均值的 z 分数越过阈值时反向开仓，限价朝均值挂。
func (a *Agent) decideMeanReversion(snap *Snapshot) []domain.OrderIntent {
	sym := a.pickSymbol(snap)
	price := snap.Prices[sym]
	if price <= 0 {
		return nil
	}

	mean, std := rollingStats(snap.History[sym], a.Params.TimeHorizon)
	if std <= 0 {
		return nil
	}
	z := (price - mean) / std
	if math.Abs(z) < a.st.zThreshold {
		return nil
	}

	conf := a.Params.Confidence * a.Params.ReactionSpeed *
		math.Min(1, math.Abs(z)/(a.st.zThreshold*2))

	if z < 0 {
		// 价格显著低于均值，买入并朝均值方向挂价
		qty := a.buyQty(price, conf)
		if qty <= 0 {
			return nil
		}
		limit := math.Min(mean, price*(1+0.002))
		return []domain.OrderIntent{intent(sym, domain.SideBuy, limit, qty)}
	}

	qty := a.sellQty(sym, price, conf)
	if qty <= 0 {
		return nil
	}
	limit := math.Max(mean, price*(1-0.002))
	return []domain.OrderIntent{intent(sym, domain.SideSell, limit, qty)}
}

// rollingStats 最近 n 个收盘价的均值与标准差
func rollingStats(history []float64, n int) (mean, std float64) {
	if n < 2 || len(history) < n {
		return 0, 0
	}
	window := history[len(history)-n:]
	for _, p := range window {
		mean += p
	}
	mean /= float64(n)
	var ss float64
	for _, p := range window {
		d := p - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(n-1))
}
