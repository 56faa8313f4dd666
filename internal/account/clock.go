package account

import (
	"sync/atomic"
	"time"
)

// Clock 抽象宿主链的当前时间，单位为 unix 毫秒。
type Clock interface {
	Now() int64
}

// SystemClock 使用本机时间。
type SystemClock struct{}

// Now 返回当前 unix 毫秒时间戳。
func (SystemClock) Now() int64 {
	return time.Now().UnixMilli()
}

// ManualClock 是可手动推进的时钟，用于测试时间窗口。
type ManualClock struct {
	now atomic.Int64
}

// NewManualClock 创建一个停留在指定时刻的时钟。
func NewManualClock(now int64) *ManualClock {
	clock := &ManualClock{}
	clock.now.Store(now)
	return clock
}

// Now 返回当前设定的时刻。
func (c *ManualClock) Now() int64 {
	return c.now.Load()
}

// Set 将时钟设置到指定时刻。
func (c *ManualClock) Set(now int64) {
	c.now.Store(now)
}

// Advance 将时钟前进指定毫秒数。
func (c *ManualClock) Advance(ms int64) {
	c.now.Add(ms)
}
