package agents

import (
	"math"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
)

// decideMomentum 趋势跟随
// 观察窗口内的收益率越过阈值就顺势追，信心随趋势强度走。
func (a *Agent) decideMomentum(snap *Snapshot) []domain.OrderIntent {
	sym := a.pickSymbol(snap)
	price := snap.Prices[sym]
	if price <= 0 {
		return nil
	}

	ret := snap.Return(sym, a.Params.TimeHorizon)
	if math.Abs(ret) < a.st.threshold {
		return nil
	}

	conf := a.Params.Confidence * a.Params.ReactionSpeed *
		math.Min(1, math.Abs(ret)/(a.st.threshold*3))

	if ret > 0 {
		qty := a.buyQty(price, conf)
		if qty <= 0 {
			return nil
		}
		return []domain.OrderIntent{
			intent(sym, domain.SideBuy, price*(1+0.002), qty),
		}
	}
	qty := a.sellQty(sym, price, conf)
	if qty <= 0 {
		return nil
	}
	return []domain.OrderIntent{
		intent(sym, domain.SideSell, price*(1-0.002), qty),
	}
}
