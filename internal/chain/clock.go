package chain

import (
	"sync/atomic"
)

// Clock 当前区块高度
type Clock interface {
	BlockNumber() uint64
}

// LocalClock 本地区块计数器，由出块任务推进
type LocalClock struct {
	height atomic.Uint64
}

// NewLocalClock 从 start 开始计数
func NewLocalClock(start uint64) *LocalClock {
	c := &LocalClock{}
	c.height.Store(start)
	return c
}

func (c *LocalClock) BlockNumber() uint64 {
	return c.height.Load()
}

// Advance 出一个块，返回新高度
func (c *LocalClock) Advance() uint64 {
	return c.height.Add(1)
}

// AdvanceTo 前进到指定高度，不会回退
func (c *LocalClock) AdvanceTo(height uint64) {
	for {
		current := c.height.Load()
		if height <= current || c.height.CompareAndSwap(current, height) {
			return
		}
	}
}
