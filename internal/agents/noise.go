package agents

import (
	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
)

// decideNoise 噪声交易者
// 方向概率 = 0.5 + 情绪偏置×新闻敏感度 + N(0, noiseStd)，
// 以 marketProb 的概率直接发市价单，给簿面供流动性和随机扰动。
func (a *Agent) decideNoise(snap *Snapshot) []domain.OrderIntent {
	p := a.st.tradeProb * snap.TickScale
	if p > 1 {
		p = 1
	}
	if !a.rng.Bernoulli(p) {
		return nil
	}

	sym := a.pickSymbol(snap)
	price := snap.Prices[sym]
	if price <= 0 {
		return nil
	}

	kind := domain.KindLimit
	limit := price * (1 + a.rng.Normal(0, a.st.noiseStd))
	if limit <= 0 {
		return nil
	}
	if a.rng.Bernoulli(a.st.marketProb) {
		// 市价单入簿时才定价，这里不带价格
		kind = domain.KindMarket
		limit = 0
	}
	conf := a.Params.Confidence * a.rng.Uniform(0.2, 1.0)

	buyProb := 0.5 + a.sentimentFor(sym)*a.Params.NewsWeight +
		a.rng.Normal(0, a.st.noiseStd)
	if a.rng.Uniform(0, 1) < buyProb {
		qty := a.buyQty(price, conf)
		if qty <= 0 {
			return nil
		}
		return []domain.OrderIntent{{
			Symbol: sym, Side: domain.SideBuy, Kind: kind,
			Price: limit, Quantity: qty,
		}}
	}
	qty := a.sellQty(sym, price, conf)
	if qty <= 0 {
		return nil
	}
	return []domain.OrderIntent{{
		Symbol: sym, Side: domain.SideSell, Kind: kind,
		Price: limit, Quantity: qty,
	}}
}
