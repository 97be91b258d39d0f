package transaction

import (
	"context"
	"sort"

	"github.com/hhkbp2/tpccbench/record"
	"github.com/hhkbp2/tpccbench/store"
)

// Resolver answers the two secondary lookups of TPC-C: a customer by last
// name and the latest order of a customer.
type Resolver interface {
	// CustomerByLastName returns the customer in the middle of all
	// customers sharing the last name, ordered by first name.
	CustomerByLastName(ctx context.Context, tx store.Transaction, warehouseID, districtID int, last string) (int, error)
	// LastOrder returns the highest order id placed by a customer.
	LastOrder(ctx context.Context, tx store.Transaction, warehouseID, districtID, customerID int) (int, error)
	// OnOrderInserted maintains whatever the lookups need after a new order.
	OnOrderInserted(ctx context.Context, tx store.Transaction, warehouseID, districtID, customerID, orderID int) error
}

// NewResolver returns the table backed resolver when useTableIndex is set,
// the index column one otherwise.
func NewResolver(useTableIndex bool) Resolver {
	if useTableIndex {
		return NewIndexTableResolver()
	}
	return NewIndexColumnResolver()
}

// IndexColumnResolver scans the customer and order tables through their
// derived index columns.
type IndexColumnResolver struct{}

func NewIndexColumnResolver() *IndexColumnResolver {
	return &IndexColumnResolver{}
}

func (self *IndexColumnResolver) CustomerByLastName(
	ctx context.Context, tx store.Transaction, warehouseID, districtID int, last string) (int, error) {

	index := store.TextColumn(record.CustomerIndex, record.CustomerIndexValue(warehouseID, districtID, last))
	rows, err := tx.Scan(ctx, &store.Scan{Table: record.CustomerTable, Index: &index})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, store.NewNotFoundError("customer w=%d d=%d last=%s", warehouseID, districtID, last)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Text(record.CustomerFirst), rows[j].Text(record.CustomerFirst)
		if a != b {
			return a < b
		}
		return rows[i].Int(record.CustomerID) < rows[j].Int(record.CustomerID)
	})
	return rows[middle(len(rows))].Int(record.CustomerID), nil
}

func (self *IndexColumnResolver) LastOrder(
	ctx context.Context, tx store.Transaction, warehouseID, districtID, customerID int) (int, error) {

	index := store.TextColumn(record.OrderIndex, record.OrderIndexValue(warehouseID, districtID, customerID))
	rows, err := tx.Scan(ctx, &store.Scan{Table: record.OrderTable, Index: &index})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, store.NewNotFoundError("order w=%d d=%d c=%d", warehouseID, districtID, customerID)
	}
	latest := 0
	for _, row := range rows {
		if o := row.Int(record.OrderID); o > latest {
			latest = o
		}
	}
	return latest, nil
}

// OnOrderInserted has nothing to do, the order row carries its index column.
func (self *IndexColumnResolver) OnOrderInserted(
	_ context.Context, _ store.Transaction, _, _, _, _ int) error {
	return nil
}

// IndexTableResolver reads the customer_secondary and order_secondary
// tables and keeps the latter up to date.
type IndexTableResolver struct{}

func NewIndexTableResolver() *IndexTableResolver {
	return &IndexTableResolver{}
}

func (self *IndexTableResolver) CustomerByLastName(
	ctx context.Context, tx store.Transaction, warehouseID, districtID int, last string) (int, error) {

	rows, err := tx.Scan(ctx, &store.Scan{
		Table:     record.CustomerSecondaryTable,
		Partition: record.CustomerSecondaryKey(warehouseID, districtID, last),
		Ordering:  store.Asc,
	})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, store.NewNotFoundError("customer_secondary w=%d d=%d last=%s", warehouseID, districtID, last)
	}
	return rows[middle(len(rows))].Int(record.CustomerID), nil
}

func (self *IndexTableResolver) LastOrder(
	ctx context.Context, tx store.Transaction, warehouseID, districtID, customerID int) (int, error) {

	rows, err := tx.Scan(ctx, &store.Scan{
		Table:     record.OrderSecondaryTable,
		Partition: record.OrderSecondaryKey(warehouseID, districtID, customerID),
		Ordering:  store.Desc,
		Limit:     1,
	})
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, store.NewNotFoundError("order_secondary w=%d d=%d c=%d", warehouseID, districtID, customerID)
	}
	return rows[0].Int(record.OrderID), nil
}

func (self *IndexTableResolver) OnOrderInserted(
	ctx context.Context, tx store.Transaction, warehouseID, districtID, customerID, orderID int) error {

	r := record.NewOrderSecondary(warehouseID, districtID, customerID, orderID)
	return tx.Put(ctx, r.Table(), r.PartitionKey(), r.ClusteringKey(), r.Values())
}

// middle is the 0-based position of the ceil(n/2)-th of n sorted matches.
func middle(n int) int {
	return (n+1)/2 - 1
}
