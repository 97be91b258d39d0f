package loader

import (
	"context"

	"github.com/hhkbp2/tpccbench/generator"
	"github.com/hhkbp2/tpccbench/record"
	"github.com/hhkbp2/tpccbench/store"
)

// EmitFunc hands one record to the loader. It blocks while the queue is
// full and fails once the load is cancelled.
type EmitFunc func(r *record.Record) error

// Source enumerates the records to load.
type Source interface {
	Produce(ctx context.Context, emit EmitFunc) error
}

// SyntheticSource generates the initial TPC-C population.
type SyntheticSource struct {
	rnd            *generator.Random
	startWarehouse int
	endWarehouse   int
	skipItems      bool
	useTableIndex  bool
	now            int64
}

type SyntheticOptions struct {
	Seed           int64
	StartWarehouse int
	EndWarehouse   int
	SkipItems      bool
	// UseTableIndex also emits the customer_secondary and order_secondary
	// rows.
	UseTableIndex bool
	// Now is the load timestamp in milliseconds.
	Now int64
}

func NewSyntheticSource(opts SyntheticOptions) *SyntheticSource {
	return &SyntheticSource{
		rnd:            generator.NewRandom(opts.Seed),
		startWarehouse: opts.StartWarehouse,
		endWarehouse:   opts.EndWarehouse,
		skipItems:      opts.SkipItems,
		useTableIndex:  opts.UseTableIndex,
		now:            opts.Now,
	}
}

func (self *SyntheticSource) Produce(ctx context.Context, emit EmitFunc) error {
	if !self.skipItems {
		for i := 1; i <= record.Items; i++ {
			if err := emit(record.GenerateItem(self.rnd, i)); err != nil {
				return err
			}
		}
	}
	for w := self.startWarehouse; w <= self.endWarehouse; w++ {
		if err := self.produceWarehouse(emit, w); err != nil {
			return err
		}
	}
	return nil
}

func (self *SyntheticSource) produceWarehouse(emit EmitFunc, w int) error {
	if err := emit(record.GenerateWarehouse(self.rnd, w)); err != nil {
		return err
	}
	for i := 1; i <= record.StocksPerWarehouse; i++ {
		if err := emit(record.GenerateStock(self.rnd, w, i)); err != nil {
			return err
		}
	}
	for d := 1; d <= record.DistrictsPerWarehouse; d++ {
		if err := emit(record.GenerateDistrict(self.rnd, w, d)); err != nil {
			return err
		}
		if err := self.produceCustomers(emit, w, d); err != nil {
			return err
		}
		if err := self.produceOrders(emit, w, d); err != nil {
			return err
		}
	}
	return nil
}

func (self *SyntheticSource) produceCustomers(emit EmitFunc, w, d int) error {
	for c := 1; c <= record.CustomersPerDistrict; c++ {
		customer := record.GenerateCustomer(self.rnd, w, d, c, self.now)
		customer.BuildIndexColumn()
		if err := emit(customer); err != nil {
			return err
		}
		if self.useTableIndex {
			if err := emit(record.CustomerSecondaryOf(customer)); err != nil {
				return err
			}
		}
		if err := emit(record.GenerateHistory(self.rnd, w, d, c, self.now)); err != nil {
			return err
		}
	}
	return nil
}

func (self *SyntheticSource) produceOrders(emit EmitFunc, w, d int) error {
	// every customer places exactly one order, in shuffled order
	customers := self.rnd.Permutation(record.CustomersPerDistrict)
	for o := 1; o <= record.OrdersPerDistrict; o++ {
		order := record.GenerateOrder(self.rnd, w, d, o, customers[o-1], self.now)
		order.BuildIndexColumn()
		if err := emit(order); err != nil {
			return err
		}
		if self.useTableIndex {
			if err := emit(record.OrderSecondaryOf(order)); err != nil {
				return err
			}
		}
		if o > record.DeliveredOrders {
			if err := emit(record.NewNewOrder(w, d, o)); err != nil {
				return err
			}
		}
		count := order.Values()[record.OrderLineCount]
		for n := 1; n <= orderLineCount(count); n++ {
			if err := emit(record.GenerateOrderLine(self.rnd, w, d, o, n, self.now)); err != nil {
				return err
			}
		}
	}
	return nil
}

func orderLineCount(v store.Value) int {
	if n, ok := v.(store.IntValue); ok {
		return int(n)
	}
	return 0
}
