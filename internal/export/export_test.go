package export

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
	"github.com/ProAltro/stock-market-simulator-sub002/internal/engine"
	"github.com/ProAltro/stock-market-simulator-sub002/pkg/persistence"
)

// TestSinkWritesAndReadsBack 回调落库后能按时间序读回
func TestSinkWritesAndReadsBack(t *testing.T) {
	sink := NewSink(persistence.NewMemoryService())
	cb := sink.Wrap(engine.Callbacks{})

	cb.OnCandle("OIL", "1m", domain.Candle{OpenTime: 60000, Open: 75, High: 76, Low: 74, Close: 75.5, Volume: 12})
	cb.OnCandle("OIL", "1m", domain.Candle{OpenTime: 120000, Open: 75.5, High: 77, Low: 75, Close: 76, Volume: 8})
	cb.OnCandle("OIL", "5m", domain.Candle{OpenTime: 300000, Open: 75, High: 77, Low: 74, Close: 76, Volume: 20})

	got, err := sink.Candles("OIL", "1m")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, int64(60000), got[0].OpenTime)
	require.Equal(t, int64(120000), got[1].OpenTime)

	got5, err := sink.Candles("OIL", "5m")
	require.NoError(t, err)
	require.Len(t, got5, 1, "不同粒度互不串仓")
}

// TestSinkChainsNext 导出之后继续调用下游回调
func TestSinkChainsNext(t *testing.T) {
	var passed []domain.Trade
	sink := NewSink(persistence.NewMemoryService())
	cb := sink.Wrap(engine.Callbacks{
		OnTrade: func(tr domain.Trade) { passed = append(passed, tr) },
	})

	cb.OnTrade(domain.Trade{ID: 1, Symbol: "OIL", Price: 75, Quantity: 3})
	cb.OnTrade(domain.Trade{ID: 2, Symbol: "WOOD", Price: 45, Quantity: 5})

	require.Len(t, passed, 2)

	keys, err := sink.trades.Keys()
	require.NoError(t, err)
	require.Len(t, keys, 2)

	var tr domain.Trade
	require.NoError(t, sink.trades.Get(keys[0], &tr))
	require.Equal(t, uint64(1), tr.ID)
}
