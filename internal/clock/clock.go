package clock

import (
	"time"

	"github.com/ProAltro/stock-market-simulator-sub002/internal/domain"
)

// MsPerDay 每模拟日的毫秒数
const MsPerDay int64 = 86400000

// Clock 把离散 tick 映射到模拟日历时间
// ticksPerDay 可在运行期切换（populate 的粗/细两阶段），
// referenceTicksPerDay 固定为实时粒度，用来归一化各种每-tick 概率。
type Clock struct {
	startDate   time.Time // 模拟第 0 天的 00:00 UTC
	ticksPerDay int
	refTicksPerDay int

	totalTicks uint64
	tickInDay  int
	day        int
	simMs      int64 // 自 startDate 起的模拟毫秒
}

// New 创建时钟，startDate 格式 YYYY-MM-DD（空串取 2024-01-01）
func New(startDate string, ticksPerDay int) (*Clock, error) {
	if startDate == "" {
		startDate = "2024-01-01"
	}
	t, err := time.ParseInLocation("2006-01-02", startDate, time.UTC)
	if err != nil {
		return nil, domain.E(domain.KindValidation, "起始日期无效: %s", startDate)
	}
	if ticksPerDay <= 0 {
		return nil, domain.E(domain.KindValidation, "ticksPerDay 必须为正数: %d", ticksPerDay)
	}
	return &Clock{
		startDate:      t,
		ticksPerDay:    ticksPerDay,
		refTicksPerDay: ticksPerDay,
	}, nil
}

// Advance 前进一个 tick，跨日时返回 true
func (c *Clock) Advance() (newDay bool) {
	c.totalTicks++
	c.tickInDay++
	if c.tickInDay >= c.ticksPerDay {
		c.tickInDay = 0
		c.day++
		newDay = true
	}
	c.simMs = int64(c.day)*MsPerDay +
		int64(c.tickInDay)*(MsPerDay/int64(c.ticksPerDay))
	return newDay
}

// SetTicksPerDay 切换当日粒度（只允许在日边界调用，否则时间会回跳）
func (c *Clock) SetTicksPerDay(n int) {
	if n > 0 {
		c.ticksPerDay = n
	}
}

// SetReferenceTicksPerDay 设定概率归一化的基准粒度
func (c *Clock) SetReferenceTicksPerDay(n int) {
	if n > 0 {
		c.refTicksPerDay = n
	}
}

// TickScale 当前 tick 相对基准粒度覆盖的时间倍数
// 粗粒度回填时每个 tick 代表更长的时间，
// 每-tick 概率（新闻 λ、供需扰动）按这个倍数放大。
func (c *Clock) TickScale() float64 {
	return float64(c.refTicksPerDay) / float64(c.ticksPerDay)
}

// Tick 总 tick 计数
func (c *Clock) Tick() uint64 { return c.totalTicks }

// TickInDay 当日第几个 tick
func (c *Clock) TickInDay() int { return c.tickInDay }

// Day 模拟天序号（从 0 起）
func (c *Clock) Day() int { return c.day }

// TicksPerDay 当前粒度
func (c *Clock) TicksPerDay() int { return c.ticksPerDay }

// SimTimeMs 自起始日期的模拟毫秒
func (c *Clock) SimTimeMs() int64 { return c.simMs }

// SimTime 当前模拟时刻（UTC）
func (c *Clock) SimTime() time.Time {
	return c.startDate.Add(time.Duration(c.simMs) * time.Millisecond)
}

// DateString 当前模拟日期 YYYY-MM-DD
func (c *Clock) DateString() string {
	return c.SimTime().Format("2006-01-02")
}

// Reset 归零（保留起始日期与粒度设置）
func (c *Clock) Reset() {
	c.totalTicks = 0
	c.tickInDay = 0
	c.day = 0
	c.simMs = 0
}
