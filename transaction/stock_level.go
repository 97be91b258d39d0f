package transaction

import (
	"context"

	"github.com/hhkbp2/tpccbench/record"
	"github.com/hhkbp2/tpccbench/store"
)

const (
	minThreshold = 10
	maxThreshold = 20
	// Number of recent orders examined.
	recentOrders = 20
)

type StockLevelArgs struct {
	WarehouseID int
	DistrictID  int
	Threshold   int
}

type StockLevelResult struct {
	// LowStock counts the distinct recent items below the threshold.
	LowStock int
}

// StockLevel is a read only transaction.
type StockLevel struct {
	env    *Env
	Args   StockLevelArgs
	Result StockLevelResult
}

func NewStockLevel(env *Env) *StockLevel {
	return &StockLevel{env: env}
}

func (self *StockLevel) Type() Type {
	return TypeStockLevel
}

func (self *StockLevel) Generate() {
	rnd := self.env.Random
	self.Args = StockLevelArgs{
		WarehouseID: self.env.homeWarehouse(),
		DistrictID:  rnd.Int(1, record.DistrictsPerWarehouse),
		Threshold:   rnd.Int(minThreshold, maxThreshold),
	}
}

func (self *StockLevel) Execute(ctx context.Context, s store.Store) (Outcome, error) {
	self.Result = StockLevelResult{}
	return run(ctx, s, self.execute)
}

func (self *StockLevel) execute(ctx context.Context, tx store.Transaction) error {
	a := &self.Args
	district, err := mustGet(ctx, tx, record.DistrictTable, record.DistrictKey(a.WarehouseID, a.DistrictID), nil)
	if err != nil {
		return err
	}
	next := district.Int(record.DistrictNextOrderID)
	lines, err := tx.Scan(ctx, &store.Scan{
		Table:     record.OrderLineTable,
		Partition: record.OrderLineKey(a.WarehouseID, a.DistrictID),
		Start:     record.OrderLinePrefix(next - recentOrders),
		End:       record.OrderLinePrefix(next - 1),
	})
	if err != nil {
		return err
	}
	seen := make(map[int]bool, len(lines))
	low := 0
	for _, line := range lines {
		itemID := line.Int(record.OrderLineItemID)
		if seen[itemID] {
			continue
		}
		seen[itemID] = true
		stock, err := mustGet(ctx, tx, record.StockTable, record.StockKey(a.WarehouseID, itemID), nil)
		if err != nil {
			return err
		}
		if stock.Int(record.StockQuantity) < a.Threshold {
			low++
		}
	}
	self.Result = StockLevelResult{LowStock: low}
	return nil
}
