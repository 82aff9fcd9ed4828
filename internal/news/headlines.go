package news

import (
	"fmt"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/rng"
)

// 模板标题库：按类别和情绪分组，%s 处填商品名
// 富化服务不可用时这些模板就是最终标题，所以措辞保持中性可信。

var globalHeadlines = map[domain.NewsSentiment][]string{
	domain.SentimentPositive: {
		"Global manufacturing PMI beats expectations",
		"World Bank raises global growth forecast",
		"Shipping costs fall as trade routes normalize",
		"Consumer confidence hits multi-year high",
	},
	domain.SentimentNegative: {
		"Global recession fears weigh on markets",
		"Freight bottlenecks disrupt world trade",
		"Manufacturing output contracts for third month",
		"Energy costs squeeze industrial production",
	},
	domain.SentimentNeutral: {
		"Central banks hold rates steady",
		"Trade volumes flat in quarterly report",
		"Commodity index little changed this week",
	},
}

var politicalHeadlines = map[domain.NewsSentiment][]string{
	domain.SentimentPositive: {
		"Trade agreement lifts tariff barriers",
		"Infrastructure spending bill passes",
		"Diplomatic breakthrough eases sanctions",
	},
	domain.SentimentNegative: {
		"New tariffs announced on raw materials",
		"Export restrictions rattle commodity traders",
		"Border dispute threatens supply corridors",
		"Regulatory crackdown hits commodity exchanges",
	},
	domain.SentimentNeutral: {
		"Election results leave trade policy unchanged",
		"Ministers meet to discuss commodity quotas",
	},
}

var supplyHeadlines = map[domain.NewsSentiment][]string{
	domain.SentimentPositive: {
		"Record %s output reported by major producers",
		"New %s reserves discovered",
		"%s production capacity expands after investment",
		"Bumper season boosts %s supply",
	},
	domain.SentimentNegative: {
		"%s production halted by severe weather",
		"Strike shuts down major %s facilities",
		"%s shipments delayed by port congestion",
		"Equipment failures curb %s output",
	},
	domain.SentimentNeutral: {
		"%s inventories in line with seasonal norms",
		"%s producers maintain current output targets",
	},
}

var demandHeadlines = map[domain.NewsSentiment][]string{
	domain.SentimentPositive: {
		"Construction boom drives %s demand",
		"Industrial buyers stockpile %s",
		"%s orders surge on export demand",
		"Manufacturers raise %s purchase forecasts",
	},
	domain.SentimentNegative: {
		"%s demand slumps as projects stall",
		"Buyers cancel %s contracts amid slowdown",
		"Weak factory activity cools %s consumption",
	},
	domain.SentimentNeutral: {
		"%s consumption steady quarter over quarter",
		"%s demand outlook unchanged in survey",
	},
}

// Headline 从模板库抽一条标题
func Headline(category domain.NewsCategory, sentiment domain.NewsSentiment, commodityName string, r *rng.Source) string {
	var pool map[domain.NewsSentiment][]string
	switch category {
	case domain.NewsGlobal:
		pool = globalHeadlines
	case domain.NewsPolitical:
		pool = politicalHeadlines
	case domain.NewsSupply:
		pool = supplyHeadlines
	default:
		pool = demandHeadlines
	}
	list := pool[sentiment]
	if len(list) == 0 {
		list = pool[domain.SentimentNeutral]
	}
	tmpl := list[r.UniformInt(0, len(list)-1)]
	if category == domain.NewsSupply || category == domain.NewsDemand {
		return fmt.Sprintf(tmpl, commodityName)
	}
	return tmpl
}
