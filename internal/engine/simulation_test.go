package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
)

func newTestSim(t *testing.T) *Simulation {
	t.Helper()
	s, err := NewSimulation(testConfig(), Callbacks{})
	require.NoError(t, err)
	return s
}

// TestStateTransitions 非法状态迁移一律报 invalid_state
func TestStateTransitions(t *testing.T) {
	s := newTestSim(t)
	require.Equal(t, StateIdle, s.CurrentState())

	// idle 下 pause/resume/stop 都不合法
	require.True(t, domain.IsKind(s.Pause(), domain.KindInvalidState))
	require.True(t, domain.IsKind(s.Resume(), domain.KindInvalidState))
	require.True(t, domain.IsKind(s.Stop(), domain.KindInvalidState))

	require.NoError(t, s.Start())
	require.Equal(t, StateRunning, s.CurrentState())
	require.True(t, domain.IsKind(s.Start(), domain.KindInvalidState))
	require.True(t, domain.IsKind(s.Reset(), domain.KindInvalidState))
	require.True(t, domain.IsKind(s.Step(1), domain.KindInvalidState))

	require.NoError(t, s.Pause())
	require.Equal(t, StatePaused, s.CurrentState())
	require.NoError(t, s.Resume())
	require.NoError(t, s.Stop())
	require.Equal(t, StateStopped, s.CurrentState())

	// stopped 可以重新 start，也可以 reset 回 idle
	require.NoError(t, s.Reset())
	require.Equal(t, StateIdle, s.CurrentState())
}

// TestStepAdvancesTicks step 在空闲/暂停下推进指定 tick 数
func TestStepAdvancesTicks(t *testing.T) {
	s := newTestSim(t)

	require.NoError(t, s.Step(10))
	require.Equal(t, uint64(10), s.StateSnapshot().Tick)

	require.True(t, domain.IsKind(s.Step(0), domain.KindValidation))
	require.True(t, domain.IsKind(s.Step(-3), domain.KindValidation))

	require.NoError(t, s.Step(5))
	require.Equal(t, uint64(15), s.StateSnapshot().Tick)
}

// TestRunLoopAdvances 实时循环推进 tick 并在 stop 后停住
func TestRunLoopAdvances(t *testing.T) {
	s := newTestSim(t)

	require.NoError(t, s.Start())
	require.Eventually(t, func() bool {
		return s.StateSnapshot().Tick > 0
	}, 2*time.Second, 5*time.Millisecond, "运行中 tick 应该在推进")
	require.NoError(t, s.Stop())

	at := s.StateSnapshot().Tick
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, at, s.StateSnapshot().Tick, "stop 之后 tick 不应再动")
}

// TestConfigPatchAtomicity 非法补丁不产生任何可见变化
func TestConfigPatchAtomicity(t *testing.T) {
	s := newTestSim(t)
	before := s.Config()

	err := s.ApplyConfigPatch([]byte("market:\n  price_floor: -1\n"))
	require.Error(t, err)
	require.True(t, domain.IsKind(err, domain.KindValidation))
	require.Equal(t, before.Market.PriceFloor, s.Config().Market.PriceFloor)

	// 合法补丁在空闲状态立即生效
	require.NoError(t, s.ApplyConfigPatch([]byte("news:\n  rate_per_tick: 0.01\n")))
	require.Equal(t, 0.01, s.Config().News.RatePerTick)
	// 未触及的字段保持原值
	require.Equal(t, before.Market.ImpactDampening, s.Config().Market.ImpactDampening)
}

// TestSubmitOrderValidation 外部下单入口的校验
func TestSubmitOrderValidation(t *testing.T) {
	s := newTestSim(t)

	_, err := s.SubmitOrder("GOLD", domain.SideBuy, domain.KindLimit, 50, 10, "")
	require.True(t, domain.IsKind(err, domain.KindUnknownSymbol))

	_, err = s.SubmitOrder("OIL", domain.SideBuy, domain.KindLimit, 50, 0, "")
	require.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = s.SubmitOrder("OIL", domain.SideBuy, domain.KindLimit, 0, 10, "")
	require.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = s.SubmitOrder("OIL", domain.Side("hold"), domain.KindLimit, 50, 10, "")
	require.True(t, domain.IsKind(err, domain.KindValidation))

	id, err := s.SubmitOrder("OIL", domain.SideBuy, domain.KindLimit, 70, 10, "tok-1")
	require.NoError(t, err)
	require.NotZero(t, id)

	require.NoError(t, s.Step(1))
	bids, _, err := s.Depth("OIL", 0)
	require.NoError(t, err)
	found := false
	for _, lv := range bids {
		if lv.Price == 70.0 {
			found = true
		}
	}
	require.True(t, found, "外部限价单应出现在深度里")
}

// TestCancelOrderEntry 撤单入口的校验与排队
func TestCancelOrderEntry(t *testing.T) {
	s := newTestSim(t)

	id, err := s.SubmitOrder("OIL", domain.SideBuy, domain.KindLimit, 60, 5, "")
	require.NoError(t, err)
	require.NoError(t, s.Step(1))

	require.True(t, domain.IsKind(s.CancelOrder("GOLD", id), domain.KindUnknownSymbol))
	require.True(t, domain.IsKind(s.CancelOrder("OIL", 99999), domain.KindValidation))

	require.NoError(t, s.CancelOrder("OIL", id))
	require.NoError(t, s.Step(1))
	require.True(t, domain.IsKind(s.CancelOrder("OIL", id), domain.KindInvalidState))
}

// TestInjectNewsFlows 注入的新闻下一 tick 出现在历史里
func TestInjectNewsFlows(t *testing.T) {
	s := newTestSim(t)

	require.NoError(t, s.InjectNews(domain.NewsEvent{
		Category:  domain.NewsSupply,
		Sentiment: domain.SentimentNegative,
		Magnitude: -0.05,
		Symbol:    "OIL",
	}))
	require.NoError(t, s.Step(1))

	hist := s.News(domain.NewsSupply, 10)
	require.NotEmpty(t, hist)
	injected := false
	for _, ev := range hist {
		if ev.Injected && ev.Symbol == "OIL" {
			injected = true
		}
	}
	require.True(t, injected)
}

// TestPopulateTwoPhase 回填走完两阶段后回到 idle，实时粒度就位
func TestPopulateTwoPhase(t *testing.T) {
	s := newTestSim(t)
	cfg := s.Config()
	// 缩小规模让测试够快
	require.NoError(t, s.ApplyConfigPatch([]byte(
		"populate:\n  days: 4\n  coarse_ticks_per_day: 24\n  fine_ticks_per_day: 48\n  fine_days: 1\n")))

	require.NoError(t, s.Populate(0))
	require.Equal(t, StatePopulating, s.CurrentState())
	require.True(t, domain.IsKind(s.Start(), domain.KindInvalidState), "回填中不能 start")

	require.Eventually(t, func() bool {
		return s.CurrentState() == StateIdle
	}, 10*time.Second, 10*time.Millisecond)

	done, total := s.PopulateProgress()
	require.Equal(t, uint64(3*24+1*48), total)
	require.Equal(t, total, done)

	view := s.StateSnapshot()
	require.Equal(t, uint64(total), view.Tick)
	require.Equal(t, cfg.Sim.TicksPerDay, view.TicksPerDay, "回填结束应切回实时粒度")
	require.Equal(t, 4, view.Day)

	// 回填产出了 K 线与价格历史
	candles, err := s.Candles("OIL", "1d", 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, candles, "回填后应有日线")
}

// TestSimulationDeterminism 同种子两个控制面轨迹一致
func TestSimulationDeterminism(t *testing.T) {
	s1 := newTestSim(t)
	s2 := newTestSim(t)

	require.NoError(t, s1.Step(400))
	require.NoError(t, s2.Step(400))

	v1, v2 := s1.StateSnapshot(), s2.StateSnapshot()
	require.Equal(t, v1.Prices, v2.Prices)
	require.Equal(t, v1.Sentiment, v2.Sentiment)
	require.Equal(t, len(s1.Trades(0)), len(s2.Trades(0)))
}
