package workload

import (
	"fmt"

	"github.com/hhkbp2/tpccbench/generator"
	"github.com/hhkbp2/tpccbench/store"
	"github.com/hhkbp2/tpccbench/transaction"
)

// Mix is the percentage of each transaction type in a run. The rates must
// add up to 100.
// Properties to control the mix:
//   rate_new_order: percentage of New-Order (default: 45)
//   rate_payment: percentage of Payment (default: 43)
//   rate_order_status: percentage of Order-Status (default: 4)
//   rate_delivery: percentage of Delivery (default: 4)
//   rate_stock_level: percentage of Stock-Level (default: 4)
//   np_only: run New-Order and Payment only, half each (default: false)
type Mix struct {
	NewOrder    int
	Payment     int
	OrderStatus int
	Delivery    int
	StockLevel  int
}

var (
	DefaultMix = Mix{NewOrder: 45, Payment: 43, OrderStatus: 4, Delivery: 4, StockLevel: 4}
	NPOnlyMix  = Mix{NewOrder: 50, Payment: 50}
)

func (self Mix) Rate(t transaction.Type) int {
	switch t {
	case transaction.TypeNewOrder:
		return self.NewOrder
	case transaction.TypePayment:
		return self.Payment
	case transaction.TypeOrderStatus:
		return self.OrderStatus
	case transaction.TypeDelivery:
		return self.Delivery
	case transaction.TypeStockLevel:
		return self.StockLevel
	default:
		return 0
	}
}

func (self Mix) Validate() error {
	sum := 0
	for _, t := range transaction.Types {
		rate := self.Rate(t)
		if rate < 0 {
			return store.NewValidationError("negative rate %d for %s", rate, t)
		}
		sum += rate
	}
	if sum != 100 {
		return store.NewValidationError("transaction rates sum to %d, expected 100", sum)
	}
	return nil
}

// IsNPOnly reports whether only New-Order and Payment are run.
func (self Mix) IsNPOnly() bool {
	return self.OrderStatus == 0 && self.Delivery == 0 && self.StockLevel == 0
}

func (self Mix) String() string {
	return fmt.Sprintf("NO=%d P=%d OS=%d D=%d SL=%d",
		self.NewOrder, self.Payment, self.OrderStatus, self.Delivery, self.StockLevel)
}

// Chooser draws the type of the next transaction from a Mix.
type Chooser struct {
	operationChooser *generator.DiscreteGenerator
}

func NewChooser(rnd *generator.Random, mix Mix) (*Chooser, error) {
	if err := mix.Validate(); err != nil {
		return nil, err
	}
	g := generator.NewDiscreteGenerator(rnd)
	for _, t := range transaction.Types {
		g.AddValue(mix.Rate(t), t.String())
	}
	return &Chooser{operationChooser: g}, nil
}

func (self *Chooser) Next() transaction.Type {
	t, err := transaction.ParseType(self.operationChooser.NextString())
	if err != nil {
		panic(err)
	}
	return t
}

// Pick maps a percentage draw in [1, 100] to a type through the
// cumulative rates, in NO, P, OS, D, SL order.
func (self *Chooser) Pick(x int) (transaction.Type, error) {
	v, err := self.operationChooser.Pick(x)
	if err != nil {
		return 0, err
	}
	return transaction.ParseType(v)
}

// WarehouseChooser builds the home warehouse generator of one worker.
// Properties:
//   warehouse_distribution: uniform, zipfian or hotspot (default: uniform)
func WarehouseChooser(rnd *generator.Random, distribution string, warehouses int) (generator.IntegerGenerator, error) {
	if warehouses <= 1 {
		return generator.NewConstantIntegerGenerator(1), nil
	}
	switch distribution {
	case "", DistributionUniform:
		return generator.NewUniformIntegerGenerator(rnd, 1, int64(warehouses)), nil
	case DistributionZipfian:
		return generator.NewZipfianGeneratorByInterval(rnd, 1, int64(warehouses)), nil
	case DistributionHotspot:
		return generator.NewHotspotIntegerGenerator(rnd, 1, int64(warehouses), hotsetFraction, hotOpnFraction), nil
	default:
		return nil, store.NewValidationError("unknown warehouse distribution %q", distribution)
	}
}

const (
	DistributionUniform = "uniform"
	DistributionZipfian = "zipfian"
	DistributionHotspot = "hotspot"

	hotsetFraction = 0.2
	hotOpnFraction = 0.8
)
