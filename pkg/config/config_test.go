package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sim:
  seed: 99
  ticks_per_day: 1440
market:
  circuit_breaker_limit: 0.2
commodities:
  - symbol: OIL
    name: 原油
    category: energy
    base_price: 80
    volatility: 0.02
    production: 1000
    consumption: 1000
    inventory: 5000
  - symbol: STEEL
    name: 钢材
    category: industrial
    base_price: 120
    volatility: 0.015
    production: 500
    consumption: 480
    inventory: 2000
    cross_effects:
      OIL: 0.3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, int64(99), cfg.Sim.Seed)
	require.Equal(t, 1440, cfg.Sim.TicksPerDay)
	require.Equal(t, 0.2, cfg.Market.CircuitBreakerLimit)
	// 未覆盖的字段保持默认
	require.Equal(t, 0.01, cfg.Market.PriceFloor)
	require.Len(t, cfg.Commodities, 2)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"负的最低价":   "market:\n  price_floor: -1\n",
		"熔断幅度越界":  "market:\n  circuit_breaker_limit: 1.5\n",
		"零粒度":     "sim:\n  ticks_per_day: 0\n",
		"日期格式":    "sim:\n  start_date: 01/01/2024\n",
		"空的K线粒度表": "candles:\n  intervals: []\n",
		"零手数上限":   "agents:\n  max_order_size: 0\n",
		"市价单概率越界": "agents:\n  noise_market_prob: 1.5\n",
	}
	for name, body := range cases {
		path := filepath.Join(dir, name+".yaml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err := Load(path)
		require.Error(t, err, name)
	}
}

func TestValidateCrossEffectTargets(t *testing.T) {
	cfg := Default()
	cfg.Commodities = []CommoditySpec{
		{Symbol: "OIL", BasePrice: 80, Production: 1, Consumption: 1},
		{Symbol: "STEEL", BasePrice: 120, Production: 1, Consumption: 1,
			CrossEffects: map[string]float64{"GOLD": 0.5}},
	}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "GOLD")
}

func TestValidateDuplicateSymbols(t *testing.T) {
	cfg := Default()
	cfg.Commodities = []CommoditySpec{
		{Symbol: "OIL", BasePrice: 80, Production: 1, Consumption: 1},
		{Symbol: "OIL", BasePrice: 90, Production: 1, Consumption: 1},
	}
	require.Error(t, cfg.Validate())
}

func TestMergePatchAllOrNothing(t *testing.T) {
	base := Default()
	floor := base.Market.PriceFloor

	// 非法补丁：返回错误且 base 不变
	_, err := base.MergePatch([]byte("market:\n  price_floor: -3\n"))
	require.Error(t, err)
	require.Equal(t, floor, base.Market.PriceFloor)

	// 合法补丁：产出新配置，base 仍不变
	next, err := base.MergePatch([]byte("news:\n  rate_per_tick: 0.5\nmarket:\n  purge_interval: 77\n"))
	require.NoError(t, err)
	require.Equal(t, 0.5, next.News.RatePerTick)
	require.Equal(t, uint64(77), next.Market.PurgeInterval)
	require.NotEqual(t, next.News.RatePerTick, base.News.RatePerTick)
	// 未触及字段继承
	require.Equal(t, base.Agents.InitialCash, next.Agents.InitialCash)
}

func TestCloneIsDeep(t *testing.T) {
	base := Default()
	cp := base.Clone()
	cp.Agents.Counts["noise"] = 999
	cp.Candles.Intervals[0] = "2m"

	require.NotEqual(t, base.Agents.Counts["noise"], cp.Agents.Counts["noise"])
	require.NotEqual(t, base.Candles.Intervals[0], cp.Candles.Intervals[0])
}
