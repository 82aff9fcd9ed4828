package agents

import (
	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
)

// decideMarketMaker 做市商
// 按冷却周期轮换品种双边报价：价差随实现波动率放宽，
// 报价中心按库存偏斜（多头库存压低中心好出货，反之抬高）。
// sinceAction 初始化为冷却值，保证第 0 个 tick 就有报价。
func (a *Agent) decideMarketMaker(snap *Snapshot) []domain.OrderIntent {
	if a.st.sinceAction < a.st.cooldownTicks {
		return nil
	}
	a.st.sinceAction = 0

	sym := a.pickSymbol(snap)
	mid := snap.Mid(sym)
	if mid <= 0 {
		return nil
	}

	spread := a.st.baseSpread + a.st.volSpreadGain*snap.Volatility[sym]
	if spread > 0.2 {
		spread = 0.2
	}

	var inv int64
	if pos, ok := a.Positions[sym]; ok {
		inv = pos.Quantity
	}
	invRatio := float64(inv) / float64(a.st.maxInventory)
	if invRatio > 1 {
		invRatio = 1
	} else if invRatio < -1 {
		invRatio = -1
	}
	center := mid * (1 - a.st.inventorySkew*invRatio*spread)

	bid := center * (1 - spread/2)
	ask := center * (1 + spread/2)

	var out []domain.OrderIntent

	// 库存到顶就只出不进
	if inv < a.st.maxInventory {
		buyQty := a.st.quoteSize
		if affordable := a.buyQty(bid, 1.0); affordable < buyQty {
			buyQty = affordable
		}
		if buyQty > 0 {
			out = append(out, intent(sym, domain.SideBuy, bid, buyQty))
		}
	}

	sellQty := a.st.quoteSize
	if held := a.sellableQty(sym); held < sellQty {
		sellQty = held
	}
	if sellQty > 0 {
		out = append(out, intent(sym, domain.SideSell, ask, sellQty))
	}
	return out
}
