package generator

// IntegerGenerator produces a stream of integers following some
// distribution.
type IntegerGenerator interface {
	// NextInt returns the next value and remembers it as the last one.
	NextInt() int64
	LastInt() int64
	Mean() float64
}

// IntegerGeneratorBase keeps the last generated value for embedding
// generators.
type IntegerGeneratorBase struct {
	lastInt int64
}

func NewIntegerGeneratorBase(last int64) *IntegerGeneratorBase {
	return &IntegerGeneratorBase{
		lastInt: last,
	}
}

func (self *IntegerGeneratorBase) SetLastInt(value int64) {
	self.lastInt = value
}

func (self *IntegerGeneratorBase) LastInt() int64 {
	return self.lastInt
}

// ConstantIntegerGenerator always returns the same value. It is what a
// single warehouse run draws home warehouses from.
type ConstantIntegerGenerator struct {
	*IntegerGeneratorBase
	value int64
}

func NewConstantIntegerGenerator(i int64) *ConstantIntegerGenerator {
	return &ConstantIntegerGenerator{
		IntegerGeneratorBase: NewIntegerGeneratorBase(i),
		value:                i,
	}
}

func (self *ConstantIntegerGenerator) NextInt() int64 {
	return self.value
}

func (self *ConstantIntegerGenerator) Mean() float64 {
	return float64(self.value)
}

// UniformIntegerGenerator draws uniformly from [lowerBound, upperBound].
type UniformIntegerGenerator struct {
	*IntegerGeneratorBase
	rnd        *Random
	lowerBound int64
	upperBound int64
}

func NewUniformIntegerGenerator(rnd *Random, lowerBound, upperBound int64) *UniformIntegerGenerator {
	return &UniformIntegerGenerator{
		IntegerGeneratorBase: NewIntegerGeneratorBase(lowerBound),
		rnd:                  rnd,
		lowerBound:           lowerBound,
		upperBound:           upperBound,
	}
}

func (self *UniformIntegerGenerator) NextInt() int64 {
	ret := self.lowerBound + self.rnd.Int63n(self.upperBound-self.lowerBound+1)
	self.SetLastInt(ret)
	return ret
}

func (self *UniformIntegerGenerator) Mean() float64 {
	return float64(self.lowerBound+self.upperBound) / 2.0
}
