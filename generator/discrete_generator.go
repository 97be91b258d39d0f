package generator

import (
	"github.com/cockroachdb/errors"
)

type Pair struct {
	Weight int
	Value  string
}

// DiscreteGenerator picks one of a fixed set of values with integer
// weights. A draw of x in [1, total] selects the first value whose
// cumulative weight reaches x, so a weight set that sums to 100 maps a
// percentage draw straight to a value.
type DiscreteGenerator struct {
	rnd       *Random
	values    []*Pair
	total     int
	lastValue string
}

func NewDiscreteGenerator(rnd *Random) *DiscreteGenerator {
	return &DiscreteGenerator{
		rnd:    rnd,
		values: make([]*Pair, 0),
	}
}

func (self *DiscreteGenerator) AddValue(weight int, value string) {
	if weight <= 0 {
		return
	}
	self.values = append(self.values, &Pair{
		Weight: weight,
		Value:  value,
	})
	self.total += weight
}

func (self *DiscreteGenerator) Total() int {
	return self.total
}

// Pick maps x in [1, total] to a value.
func (self *DiscreteGenerator) Pick(x int) (string, error) {
	if x < 1 || x > self.total {
		return "", errors.Newf("draw %d out of range [1, %d]", x, self.total)
	}
	for _, p := range self.values {
		if x <= p.Weight {
			return p.Value, nil
		}
		x -= p.Weight
	}
	return "", errors.AssertionFailedf("draw not covered by weights")
}

func (self *DiscreteGenerator) NextString() string {
	if self.total == 0 {
		panic("no values")
	}
	v, err := self.Pick(self.rnd.Int(1, self.total))
	if err != nil {
		panic(err)
	}
	self.lastValue = v
	return v
}

func (self *DiscreteGenerator) LastString() string {
	if len(self.lastValue) == 0 {
		self.lastValue = self.NextString()
	}
	return self.lastValue
}
