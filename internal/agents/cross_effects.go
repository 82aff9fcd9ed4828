package agents

import (
	"math"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
)

// decideCrossEffects 联动交易者
// 盯一个带联动表的品种，把它窗口内的收益按因子折算成
// 目标品种的预期变动，越过阈值就在目标品种上动手。
// 用的是上一 tick 的收盘价，不依赖本 tick 其他品种的撮合结果。
func (a *Agent) decideCrossEffects(snap *Snapshot) []domain.OrderIntent {
	source := a.pickSymbol(snap)
	effects := snap.CrossEffects[source]
	if len(effects) == 0 {
		return nil
	}

	ret := snap.Return(source, a.Params.TimeHorizon)
	if ret == 0 {
		return nil
	}

	for _, ce := range effects {
		expected := ret * ce.Factor
		if math.Abs(expected) < a.st.threshold {
			continue
		}
		price := snap.Prices[ce.Target]
		if price <= 0 {
			continue
		}
		conf := a.Params.Confidence * a.Params.ReactionSpeed *
			math.Min(1, math.Abs(expected)/(a.st.threshold*3))

		if expected > 0 {
			qty := a.buyQty(price, conf)
			if qty <= 0 {
				continue
			}
			return []domain.OrderIntent{
				intent(ce.Target, domain.SideBuy, price*(1+0.002), qty),
			}
		}
		qty := a.sellQty(ce.Target, price, conf)
		if qty <= 0 {
			continue
		}
		return []domain.OrderIntent{
			intent(ce.Target, domain.SideSell, price*(1-0.002), qty),
		}
	}
	return nil
}
