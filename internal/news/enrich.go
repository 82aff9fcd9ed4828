package news

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	pkgerrors "github.com/pkg/errors"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
)

// Enricher 外部标题富化客户端
// 异步调用，失败或超时都只留日志，模板标题原样保留，
// tick 循环永远不等它。
type Enricher struct {
	client *resty.Client
	url    string
	update func(id uint64, headline string)
}

type enrichRequest struct {
	Category  string  `json:"category"`
	Sentiment string  `json:"sentiment"`
	Symbol    string  `json:"symbol,omitempty"`
	Magnitude float64 `json:"magnitude"`
	Template  string  `json:"template"`
}

type enrichResponse struct {
	Headline string `json:"headline"`
}

// NewEnricher 创建富化客户端；url 为空返回 nil（禁用）
func NewEnricher(url string, timeout time.Duration, update func(id uint64, headline string)) *Enricher {
	if url == "" {
		return nil
	}
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(100 * time.Millisecond)
	return &Enricher{client: client, url: url, update: update}
}

// EnrichAsync 后台富化一个事件
func (e *Enricher) EnrichAsync(ev domain.NewsEvent) {
	if e == nil {
		return
	}
	go func() {
		if err := e.enrich(ev); err != nil {
			log.Debugf("标题富化失败 (id=%d): %v", ev.ID, err)
		}
	}()
}

func (e *Enricher) enrich(ev domain.NewsEvent) error {
	var out enrichResponse
	resp, err := e.client.R().
		SetContext(context.Background()).
		SetBody(enrichRequest{
			Category:  string(ev.Category),
			Sentiment: string(ev.Sentiment),
			Symbol:    ev.Symbol,
			Magnitude: ev.Magnitude,
			Template:  ev.Headline,
		}).
		SetResult(&out).
		Post(e.url)
	if err != nil {
		return domain.E(domain.KindTransientEnrichment, "富化请求失败: %v", err)
	}
	if resp.StatusCode() != 200 {
		return domain.E(domain.KindTransientEnrichment,
			"富化服务返回 %d", resp.StatusCode())
	}
	if out.Headline == "" {
		return pkgerrors.New("富化响应缺少 headline")
	}
	e.update(ev.ID, out.Headline)
	return nil
}
