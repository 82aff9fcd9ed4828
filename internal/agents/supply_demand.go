package agents

import (
	"math"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
)

// decideSupplyDemand 基本面交易者
// 用供需失衡推公允价：供过于求压低公允价，供不应求抬高。
// 市价偏离公允价超过入场边际才动手，方向朝公允价回归。
func (a *Agent) decideSupplyDemand(snap *Snapshot) []domain.OrderIntent {
	sym := a.pickSymbol(snap)
	price := snap.Prices[sym]
	if price <= 0 {
		return nil
	}

	imb := snap.SupplyDemand[sym].Imbalance()
	fair := price * (1 - a.st.imbalanceGain*imb)
	edge := (fair - price) / price

	if math.Abs(edge) < a.st.entryMargin {
		return nil
	}

	conf := a.Params.Confidence * a.Params.ReactionSpeed *
		math.Min(1, math.Abs(edge)/(a.st.entryMargin*4))
	// 情绪顺风加一点胆子
	conf *= 1 + 0.2*a.sentimentFor(sym)*sign(edge)
	if conf <= 0 {
		return nil
	}

	if edge > 0 {
		qty := a.buyQty(price, conf)
		if qty <= 0 {
			return nil
		}
		limit := math.Min(fair, price*(1+0.002))
		return []domain.OrderIntent{intent(sym, domain.SideBuy, limit, qty)}
	}

	qty := a.sellQty(sym, price, conf)
	if qty <= 0 {
		return nil
	}
	limit := math.Max(fair, price*(1-0.002))
	return []domain.OrderIntent{intent(sym, domain.SideSell, limit, qty)}
}

// pickSymbol 每 tick 随机盯一个品种
func (a *Agent) pickSymbol(snap *Snapshot) string {
	return snap.Symbols[a.rng.UniformInt(0, len(snap.Symbols)-1)]
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}
