package transaction

import (
	"context"

	"github.com/hhkbp2/tpccbench/record"
	"github.com/hhkbp2/tpccbench/store"
)

type OrderStatusArgs struct {
	WarehouseID int
	DistrictID  int
	ByLastName  bool
	CustomerID  int
	LastName    string
}

// OrderStatusResult is what the terminal would display.
type OrderStatusResult struct {
	CustomerID int
	Balance    float64
	OrderID    int
	// CarrierID is zero while the order is undelivered.
	CarrierID int
	Lines     int
}

// OrderStatus is a read only transaction.
type OrderStatus struct {
	env    *Env
	Args   OrderStatusArgs
	Result OrderStatusResult
}

func NewOrderStatus(env *Env) *OrderStatus {
	return &OrderStatus{env: env}
}

func (self *OrderStatus) Type() Type {
	return TypeOrderStatus
}

func (self *OrderStatus) Generate() {
	rnd := self.env.Random
	self.Args = OrderStatusArgs{
		WarehouseID: self.env.homeWarehouse(),
		DistrictID:  rnd.Int(1, record.DistrictsPerWarehouse),
		ByLastName:  rnd.Int(1, 100) <= byLastNameRate,
		CustomerID:  rnd.CustomerID(),
		LastName:    rnd.LastNameForRun(),
	}
}

func (self *OrderStatus) Execute(ctx context.Context, s store.Store) (Outcome, error) {
	self.Result = OrderStatusResult{}
	return run(ctx, s, self.execute)
}

func (self *OrderStatus) execute(ctx context.Context, tx store.Transaction) error {
	a := &self.Args
	var err error
	customerID := a.CustomerID
	if a.ByLastName {
		customerID, err = self.env.Resolver.CustomerByLastName(ctx, tx, a.WarehouseID, a.DistrictID, a.LastName)
		if err != nil {
			return err
		}
	}
	customer, err := mustGet(ctx, tx, record.CustomerTable,
		record.CustomerKey(a.WarehouseID, a.DistrictID, customerID), nil)
	if err != nil {
		return err
	}
	orderID, err := self.env.Resolver.LastOrder(ctx, tx, a.WarehouseID, a.DistrictID, customerID)
	if err != nil {
		return err
	}
	order, err := mustGet(ctx, tx, record.OrderTable,
		record.OrderKey(a.WarehouseID, a.DistrictID), record.OrderClustering(orderID))
	if err != nil {
		return err
	}
	lines, err := tx.Scan(ctx, &store.Scan{
		Table:     record.OrderLineTable,
		Partition: record.OrderLineKey(a.WarehouseID, a.DistrictID),
		Start:     record.OrderLinePrefix(orderID),
		End:       record.OrderLinePrefix(orderID),
	})
	if err != nil {
		return err
	}
	self.Result = OrderStatusResult{
		CustomerID: customerID,
		Balance:    customer.Double(record.CustomerBalance),
		OrderID:    orderID,
		CarrierID:  order.Int(record.OrderCarrierID),
		Lines:      len(lines),
	}
	return nil
}
