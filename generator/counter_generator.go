package generator

import (
	"go.uber.org/atomic"
)

// CounterGenerator hands out consecutive integers. It is safe for
// concurrent use and is shared by workers to derive distinct seeds.
type CounterGenerator struct {
	count *atomic.Int64
}

func NewCounterGenerator(startCount int64) *CounterGenerator {
	return &CounterGenerator{
		count: atomic.NewInt64(startCount - 1),
	}
}

func (self *CounterGenerator) NextInt() int64 {
	return self.count.Inc()
}

func (self *CounterGenerator) LastInt() int64 {
	return self.count.Load()
}

func (self *CounterGenerator) Mean() float64 {
	panic("unsupported operation")
}
