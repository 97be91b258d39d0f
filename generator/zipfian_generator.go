package generator

import (
	"math"
)

const (
	ZipfianConstant = float64(0.99)
)

// zetaStatic computes the zeta constant for n items, continuing from a
// sum that already covers st items.
func zetaStatic(st, n int64, theta, initialSum float64) float64 {
	sum := initialSum
	for i := st; i < n; i++ {
		sum += 1 / math.Pow(float64(i+1), theta)
	}
	return sum
}

// ZipfianGenerator draws from [min, max] so that min is the most popular
// value, min+1 the second most popular, and so on. Used to skew the home
// warehouse of transactions.
//
// The algorithm is from "Quickly Generating Billion-Record Synthetic
// Databases", Jim Gray et al, SIGMOD 1994.
type ZipfianGenerator struct {
	*IntegerGeneratorBase
	rnd   *Random
	items int64
	base  int64
	// Computed parameters for generating the distribution.
	alpha, zetan, eta, theta, zeta2theta float64
}

func NewZipfianGenerator(rnd *Random, min, max int64, zipfianConstant float64) *ZipfianGenerator {
	items := max - min + 1
	theta := zipfianConstant
	zetan := zetaStatic(0, items, theta, 0)
	zeta2theta := zetaStatic(0, 2, theta, 0)
	eta := (1 - math.Pow(2.0/float64(items), 1-theta)) / (1 - zeta2theta/zetan)
	return &ZipfianGenerator{
		IntegerGeneratorBase: NewIntegerGeneratorBase(min),
		rnd:                  rnd,
		items:                items,
		base:                 min,
		alpha:                1.0 / (1.0 - theta),
		zetan:                zetan,
		eta:                  eta,
		theta:                theta,
		zeta2theta:           zeta2theta,
	}
}

func NewZipfianGeneratorByInterval(rnd *Random, min, max int64) *ZipfianGenerator {
	return NewZipfianGenerator(rnd, min, max, ZipfianConstant)
}

func (self *ZipfianGenerator) NextInt() int64 {
	u := self.rnd.Float64()
	uz := u * self.zetan
	var ret int64
	switch {
	case uz < 1.0:
		ret = self.base
	case uz < 1.0+math.Pow(0.5, self.theta):
		ret = self.base + 1
	default:
		ret = self.base + int64(float64(self.items)*math.Pow(self.eta*u-self.eta+1.0, self.alpha))
	}
	if ret >= self.base+self.items {
		ret = self.base + self.items - 1
	}
	self.SetLastInt(ret)
	return ret
}

func (self *ZipfianGenerator) Mean() float64 {
	panic("unsupported operation")
}
