package transaction

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/hhkbp2/tpccbench/record"
	"github.com/hhkbp2/tpccbench/store"
)

const (
	// Percentage of New-Orders that roll back on an unknown item.
	rollbackRate = 1
	// Percentage of lines supplied by a remote warehouse.
	remoteLineRate = 1
	minQuantity    = 1
	maxQuantity    = 10
)

type OrderLineArgs struct {
	ItemID            int
	SupplyWarehouseID int
	Quantity          int
}

type NewOrderArgs struct {
	WarehouseID int
	DistrictID  int
	CustomerID  int
	Lines       []OrderLineArgs
	Date        int64
}

// AllLocal reports whether every line is supplied by the home warehouse.
func (self *NewOrderArgs) AllLocal() bool {
	for _, l := range self.Lines {
		if l.SupplyWarehouseID != self.WarehouseID {
			return false
		}
	}
	return true
}

// NewOrderResult is filled by a committed execution.
type NewOrderResult struct {
	OrderID int
	Total   float64
}

type NewOrder struct {
	env    *Env
	Args   NewOrderArgs
	Result NewOrderResult
}

func NewNewOrder(env *Env) *NewOrder {
	return &NewOrder{env: env}
}

func (self *NewOrder) Type() Type {
	return TypeNewOrder
}

func (self *NewOrder) Generate() {
	rnd := self.env.Random
	w := self.env.homeWarehouse()
	count := rnd.Int(record.MinOrderLines, record.MaxOrderLines)
	rollback := rnd.Int(1, 100) <= rollbackRate
	lines := make([]OrderLineArgs, count)
	for i := range lines {
		supply := w
		if self.env.Warehouses > 1 && rnd.Int(1, 100) <= remoteLineRate {
			supply = self.env.otherWarehouse(w)
		}
		lines[i] = OrderLineArgs{
			ItemID:            rnd.ItemID(),
			SupplyWarehouseID: supply,
			Quantity:          rnd.Int(minQuantity, maxQuantity),
		}
	}
	if rollback {
		lines[count-1].ItemID = record.Items + 1
	}
	self.Args = NewOrderArgs{
		WarehouseID: w,
		DistrictID:  rnd.Int(1, record.DistrictsPerWarehouse),
		CustomerID:  rnd.CustomerID(),
		Lines:       lines,
		Date:        self.env.now(),
	}
}

func (self *NewOrder) Execute(ctx context.Context, s store.Store) (Outcome, error) {
	self.Result = NewOrderResult{}
	return run(ctx, s, self.execute)
}

func (self *NewOrder) execute(ctx context.Context, tx store.Transaction) error {
	a := &self.Args
	warehouse, err := mustGet(ctx, tx, record.WarehouseTable, record.WarehouseKey(a.WarehouseID), nil)
	if err != nil {
		return err
	}
	districtKey := record.DistrictKey(a.WarehouseID, a.DistrictID)
	district, err := mustGet(ctx, tx, record.DistrictTable, districtKey, nil)
	if err != nil {
		return err
	}
	orderID := district.Int(record.DistrictNextOrderID)
	err = tx.Put(ctx, record.DistrictTable, districtKey, nil, store.Values{
		record.DistrictNextOrderID: store.IntValue(orderID + 1),
	})
	if err != nil {
		return err
	}
	customer, err := mustGet(ctx, tx, record.CustomerTable,
		record.CustomerKey(a.WarehouseID, a.DistrictID, a.CustomerID), nil)
	if err != nil {
		return err
	}

	order := record.NewPlacedOrder(a.WarehouseID, a.DistrictID, orderID, a.CustomerID,
		len(a.Lines), a.AllLocal(), a.Date)
	if err := put(ctx, tx, order); err != nil {
		return err
	}
	if err := put(ctx, tx, record.NewNewOrder(a.WarehouseID, a.DistrictID, orderID)); err != nil {
		return err
	}
	err = self.env.Resolver.OnOrderInserted(ctx, tx, a.WarehouseID, a.DistrictID, a.CustomerID, orderID)
	if err != nil {
		return err
	}

	taxes := 1 + warehouse.Double(record.WarehouseTax) + district.Double(record.DistrictTax)
	discount := customer.Double(record.CustomerDiscount)
	total := 0.0
	for i, l := range a.Lines {
		item, err := tx.Get(ctx, record.ItemTable, record.ItemKey(l.ItemID), nil)
		if err != nil {
			return err
		}
		if item == nil {
			return errors.Wrapf(ErrItemNotFound, "item %d", l.ItemID)
		}
		stockKey := record.StockKey(l.SupplyWarehouseID, l.ItemID)
		stock, err := mustGet(ctx, tx, record.StockTable, stockKey, nil)
		if err != nil {
			return err
		}
		remote := stock.Int(record.StockRemoteCnt)
		if l.SupplyWarehouseID != a.WarehouseID {
			remote++
		}
		err = tx.Put(ctx, record.StockTable, stockKey, nil, store.Values{
			record.StockQuantity:  store.IntValue(StockQuantityAfter(stock.Int(record.StockQuantity), l.Quantity)),
			record.StockYtd:       store.DoubleValue(stock.Double(record.StockYtd) + float64(l.Quantity)),
			record.StockOrderCnt:  store.IntValue(stock.Int(record.StockOrderCnt) + 1),
			record.StockRemoteCnt: store.IntValue(remote),
		})
		if err != nil {
			return err
		}
		amount := LineAmount(l.Quantity, item.Double(record.ItemPrice), taxes, discount)
		total += amount
		line := record.NewOrderLine(a.WarehouseID, a.DistrictID, orderID, i+1, l.SupplyWarehouseID,
			amount, l.Quantity, l.ItemID, stock.Text(record.StockDist(a.DistrictID)))
		if err := put(ctx, tx, line); err != nil {
			return err
		}
	}
	self.Result = NewOrderResult{OrderID: orderID, Total: total}
	return nil
}

// StockQuantityAfter applies the TPC-C restocking rule to an order of
// ordered units.
func StockQuantityAfter(quantity, ordered int) int {
	if quantity > ordered+10 {
		return quantity - ordered
	}
	return quantity - ordered + 91
}

// LineAmount prices one order line. taxes is 1 plus the warehouse and
// district tax rates.
func LineAmount(quantity int, price, taxes, discount float64) float64 {
	return float64(quantity) * price * taxes * (1 - discount)
}

func put(ctx context.Context, tx store.Transaction, r *record.Record) error {
	return tx.Put(ctx, r.Table(), r.PartitionKey(), r.ClusteringKey(), r.Values())
}
