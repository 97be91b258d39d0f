package generator

// HotspotIntegerGenerator sends hotOpnFraction of the draws to the first
// hotsetFraction of [lowerBound, upperBound].
type HotspotIntegerGenerator struct {
	*IntegerGeneratorBase
	rnd            *Random
	lowerBound     int64
	upperBound     int64
	hotInterval    int64
	coldInterval   int64
	hotsetFraction float64
	hotOpnFraction float64
}

func checkFraction(value float64) float64 {
	if value < 0.0 || value > 1.0 {
		value = 0.0
	}
	return value
}

func NewHotspotIntegerGenerator(
	rnd *Random, lowerBound, upperBound int64,
	hotsetFraction, hotOpnFraction float64) *HotspotIntegerGenerator {

	hotsetFraction = checkFraction(hotsetFraction)
	hotOpnFraction = checkFraction(hotOpnFraction)
	if lowerBound > upperBound {
		lowerBound, upperBound = upperBound, lowerBound
	}
	interval := upperBound - lowerBound + 1
	hotInterval := int64(float64(interval) * hotsetFraction)
	return &HotspotIntegerGenerator{
		IntegerGeneratorBase: NewIntegerGeneratorBase(lowerBound),
		rnd:                  rnd,
		lowerBound:           lowerBound,
		upperBound:           upperBound,
		hotInterval:          hotInterval,
		coldInterval:         interval - hotInterval,
		hotsetFraction:       hotsetFraction,
		hotOpnFraction:       hotOpnFraction,
	}
}

func (self *HotspotIntegerGenerator) NextInt() int64 {
	var value int64
	if self.hotInterval > 0 && (self.coldInterval == 0 || self.rnd.Float64() < self.hotOpnFraction) {
		value = self.lowerBound + self.rnd.Int63n(self.hotInterval)
	} else {
		value = self.lowerBound + self.hotInterval + self.rnd.Int63n(self.coldInterval)
	}
	self.SetLastInt(value)
	return value
}

func (self *HotspotIntegerGenerator) Mean() float64 {
	return self.hotOpnFraction*(float64(self.lowerBound)+float64(self.hotInterval)/2.0) +
		(1-self.hotOpnFraction)*(float64(self.lowerBound+self.hotInterval)+float64(self.coldInterval)/2.0)
}
