package transaction

import (
	"context"

	"github.com/hhkbp2/tpccbench/record"
	"github.com/hhkbp2/tpccbench/store"
)

type DeliveryArgs struct {
	WarehouseID int
	CarrierID   int
	Date        int64
}

// DeliveryResult lists the order delivered in each district, zero when
// the district had nothing outstanding.
type DeliveryResult struct {
	Delivered [record.DistrictsPerWarehouse]int
}

// Count returns the number of districts that delivered an order.
func (self *DeliveryResult) Count() int {
	n := 0
	for _, o := range self.Delivered {
		if o != 0 {
			n++
		}
	}
	return n
}

type Delivery struct {
	env    *Env
	Args   DeliveryArgs
	Result DeliveryResult
}

func NewDelivery(env *Env) *Delivery {
	return &Delivery{env: env}
}

func (self *Delivery) Type() Type {
	return TypeDelivery
}

func (self *Delivery) Generate() {
	self.Args = DeliveryArgs{
		WarehouseID: self.env.homeWarehouse(),
		CarrierID:   self.env.Random.Int(1, 10),
		Date:        self.env.now(),
	}
}

func (self *Delivery) Execute(ctx context.Context, s store.Store) (Outcome, error) {
	self.Result = DeliveryResult{}
	return run(ctx, s, self.execute)
}

func (self *Delivery) execute(ctx context.Context, tx store.Transaction) error {
	var result DeliveryResult
	for d := 1; d <= record.DistrictsPerWarehouse; d++ {
		orderID, err := self.deliver(ctx, tx, d)
		if err != nil {
			return err
		}
		result.Delivered[d-1] = orderID
	}
	self.Result = result
	return nil
}

// deliver handles the oldest outstanding order of one district. It
// returns zero when there is none.
func (self *Delivery) deliver(ctx context.Context, tx store.Transaction, districtID int) (int, error) {
	w := self.Args.WarehouseID
	newOrders, err := tx.Scan(ctx, &store.Scan{
		Table:     record.NewOrderTable,
		Partition: record.NewOrderKey(w, districtID),
		Ordering:  store.Asc,
		Limit:     1,
	})
	if err != nil {
		return 0, err
	}
	if len(newOrders) == 0 {
		return 0, nil
	}
	orderID := newOrders[0].Int(record.NewOrderOrderID)
	err = tx.Delete(ctx, record.NewOrderTable, record.NewOrderKey(w, districtID), record.NewOrderClustering(orderID))
	if err != nil {
		return 0, err
	}

	orderKey := record.OrderKey(w, districtID)
	order, err := mustGet(ctx, tx, record.OrderTable, orderKey, record.OrderClustering(orderID))
	if err != nil {
		return 0, err
	}
	err = tx.Put(ctx, record.OrderTable, orderKey, record.OrderClustering(orderID), store.Values{
		record.OrderCarrierID: store.IntValue(self.Args.CarrierID),
	})
	if err != nil {
		return 0, err
	}

	lineKey := record.OrderLineKey(w, districtID)
	lines, err := tx.Scan(ctx, &store.Scan{
		Table:     record.OrderLineTable,
		Partition: lineKey,
		Start:     record.OrderLinePrefix(orderID),
		End:       record.OrderLinePrefix(orderID),
	})
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, line := range lines {
		total += line.Double(record.OrderLineAmount)
		clustering := record.OrderLineClustering(orderID, line.Int(record.OrderLineNumber))
		err = tx.Put(ctx, record.OrderLineTable, lineKey, clustering, store.Values{
			record.OrderLineDeliveryDate: store.DateValue(self.Args.Date),
		})
		if err != nil {
			return 0, err
		}
	}

	customerKey := record.CustomerKey(w, districtID, order.Int(record.OrderCustomerID))
	customer, err := mustGet(ctx, tx, record.CustomerTable, customerKey, nil)
	if err != nil {
		return 0, err
	}
	err = tx.Put(ctx, record.CustomerTable, customerKey, nil, store.Values{
		record.CustomerBalance:     store.DoubleValue(customer.Double(record.CustomerBalance) + total),
		record.CustomerDeliveryCnt: store.IntValue(customer.Int(record.CustomerDeliveryCnt) + 1),
	})
	if err != nil {
		return 0, err
	}
	return orderID, nil
}
