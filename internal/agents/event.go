package agents

import (
	"math"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
)

// decideEvent 事件驱动
// 只看本 tick 的新闻：需求利多买、供给利多卖（供给上来价要跌），
// 全局/政治新闻按情绪方向挑一个随机品种。幅度太小的直接忽略。
func (a *Agent) decideEvent(snap *Snapshot) []domain.OrderIntent {
	for _, ev := range snap.RecentNews {
		mag := ev.Magnitude * a.Params.NewsWeight
		if math.Abs(mag) < a.st.minMagnitude {
			continue
		}

		var sym string
		var buy bool
		switch ev.Category {
		case domain.NewsDemand:
			sym, buy = ev.Symbol, mag > 0
		case domain.NewsSupply:
			sym, buy = ev.Symbol, mag < 0
		case domain.NewsGlobal, domain.NewsPolitical:
			sym, buy = a.pickSymbol(snap), mag > 0
		default:
			continue
		}

		price := snap.Prices[sym]
		if price <= 0 {
			continue
		}
		conf := a.Params.Confidence * a.Params.ReactionSpeed *
			math.Min(1, math.Abs(mag)/(a.st.minMagnitude*4))

		if buy {
			qty := a.buyQty(price, conf)
			if qty <= 0 {
				continue
			}
			return []domain.OrderIntent{
				intent(sym, domain.SideBuy, price*(1+0.003), qty),
			}
		}
		qty := a.sellQty(sym, price, conf)
		if qty <= 0 {
			continue
		}
		return []domain.OrderIntent{
			intent(sym, domain.SideSell, price*(1-0.003), qty),
		}
	}
	return nil
}
