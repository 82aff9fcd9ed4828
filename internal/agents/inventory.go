package agents

import (
	"math"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
)

// decideInventory 组合再平衡
// 每个品种维持净值的目标占比，偏离超过带宽就把缺口最大的
// 品种拉回目标。动作带长冷却，避免来回倒仓。
func (a *Agent) decideInventory(snap *Snapshot) []domain.OrderIntent {
	if a.st.sinceAction < a.st.cooldownTicks {
		return nil
	}

	worth := a.NetWorth(snap.Prices)
	if worth <= 0 {
		return nil
	}

	var worstSym string
	var worstDev float64
	for _, sym := range snap.Symbols {
		price := snap.Prices[sym]
		if price <= 0 {
			continue
		}
		var held int64
		if pos, ok := a.Positions[sym]; ok {
			held = pos.Quantity
		}
		frac := float64(held) * price / worth
		dev := frac - a.st.targetFraction
		if math.Abs(dev) > math.Abs(worstDev) {
			worstDev = dev
			worstSym = sym
		}
	}
	if worstSym == "" || math.Abs(worstDev) < a.st.rebalanceBand {
		return nil
	}

	a.st.sinceAction = 0
	price := snap.Prices[worstSym]
	gapValue := math.Abs(worstDev) * worth
	qty := int64(math.Floor(gapValue / price))
	if qty <= 0 {
		return nil
	}

	if worstDev < 0 {
		// 低配，买进补足（仍受预算上限约束）
		if budget := a.buyQty(price, a.Params.Confidence); budget < qty {
			qty = budget
		}
		if qty <= 0 {
			return nil
		}
		return []domain.OrderIntent{
			intent(worstSym, domain.SideBuy, price*(1+0.002), qty),
		}
	}

	if held := a.sellableQty(worstSym); held < qty {
		qty = held
	}
	if qty <= 0 {
		return nil
	}
	return []domain.OrderIntent{
		intent(worstSym, domain.SideSell, price*(1-0.002), qty),
	}
}
