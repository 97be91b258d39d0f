package generator

import (
	"math/rand"

	"github.com/google/uuid"
)

// Constants for the non-uniform random function, keyed by A.
const (
	LastNameA        = 255
	CustomerIDA      = 1023
	ItemIDA          = 8191
	LastNameLoadC    = 250
	LastNameRunC     = 150
	CustomerIDC      = 987
	ItemIDC          = 5987
	CustomersPerDist = 3000
	Items            = 100000
	OriginalMarker   = "ORIGINAL"
)

const characters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var nameTokens = [10]string{
	"BAR", "OUGHT", "ABLE", "PRI", "PRES", "ESE", "ANTI", "CALLY", "ATION", "EING",
}

// Random is the single source of randomness for a worker. It is not safe
// for concurrent use; every goroutine owns its own Random.
type Random struct {
	rnd *rand.Rand
}

func NewRandom(seed int64) *Random {
	return &Random{
		rnd: rand.New(rand.NewSource(seed)),
	}
}

// Int returns a uniform integer in [min, max].
func (self *Random) Int(min, max int) int {
	if max <= min {
		return min
	}
	return min + self.rnd.Intn(max-min+1)
}

// Int63n returns a uniform integer in [0, n).
func (self *Random) Int63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	return self.rnd.Int63n(n)
}

// Float64 returns a uniform float in [0.0, 1.0).
func (self *Random) Float64() float64 {
	return self.rnd.Float64()
}

// Double returns Int(min, max) / divider.
func (self *Random) Double(min, max, divider int) float64 {
	return float64(self.Int(min, max)) / float64(divider)
}

func (self *Random) randomString(minLength, maxLength int, numberOnly bool) string {
	offset := len(characters) - 1
	if numberOnly {
		offset = 9
	}
	length := self.Int(minLength, maxLength)
	b := make([]byte, length)
	for i := range b {
		b[i] = characters[self.Int(0, offset)]
	}
	return string(b)
}

func (self *Random) AlphaString(minLength, maxLength int) string {
	return self.randomString(minLength, maxLength, false)
}

func (self *Random) NumericString(minLength, maxLength int) string {
	return self.randomString(minLength, maxLength, true)
}

// StringWithMarker returns an alpha string that contains "ORIGINAL" at a
// random offset with probability rate percent.
func (self *Random) StringWithMarker(minLength, maxLength, rate int) string {
	length := self.Int(minLength, maxLength)
	b := []byte(self.randomString(length, length, false))
	if self.Int(0, 99) < rate && length >= len(OriginalMarker) {
		start := self.Int(0, length-len(OriginalMarker))
		copy(b[start:], OriginalMarker)
	}
	return string(b)
}

// NURandConstant returns C for a given A. load selects the load time
// constant for last names.
func NURandConstant(a int, load bool) int {
	switch a {
	case LastNameA:
		if load {
			return LastNameLoadC
		}
		return LastNameRunC
	case CustomerIDA:
		return CustomerIDC
	case ItemIDA:
		return ItemIDC
	default:
		return 0
	}
}

// NURand is the TPC-C non-uniform random function.
func (self *Random) NURand(a, min, max int, load bool) int {
	c := NURandConstant(a, load)
	return (((self.Int(0, a) | self.Int(min, max)) + c) % (max - min + 1)) + min
}

func (self *Random) CustomerID() int {
	return self.NURand(CustomerIDA, 1, CustomersPerDist, false)
}

func (self *Random) ItemID() int {
	return self.NURand(ItemIDA, 1, Items, false)
}

func (self *Random) LastNameForLoad() string {
	return LastName(self.NURand(LastNameA, 0, 999, true))
}

func (self *Random) LastNameForRun() string {
	return LastName(self.NURand(LastNameA, 0, 999, false))
}

// UUID draws a version 4 UUID from this source, so history ids are
// reproducible for a given seed.
func (self *Random) UUID() string {
	id, err := uuid.NewRandomFromReader(self.rnd)
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// Permutation returns a shuffled slice of 1..n.
func (self *Random) Permutation(n int) []int {
	ret := make([]int, n)
	for i, v := range self.rnd.Perm(n) {
		ret[i] = v + 1
	}
	return ret
}

// LastName builds a customer last name from the three digits of n.
func LastName(n int) string {
	return nameTokens[n/100] + nameTokens[(n/10)%10] + nameTokens[n%10]
}
