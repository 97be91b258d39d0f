package record

import (
	"fmt"
	"time"

	"github.com/hhkbp2/tpccbench/store"
)

// DateFormat is the layout of dates in CSV files.
const DateFormat = "2006-01-02 15:04:05"

// Record is one row ready to be written: the table, its keys and the
// non-key columns.
type Record struct {
	table      string
	partition  store.Key
	clustering store.Key
	values     store.Values
}

func NewRecord(table string, partition, clustering store.Key, values store.Values) *Record {
	if values == nil {
		values = make(store.Values)
	}
	return &Record{
		table:      table,
		partition:  partition,
		clustering: clustering,
		values:     values,
	}
}

func (self *Record) Table() string {
	return self.table
}

func (self *Record) PartitionKey() store.Key {
	return self.partition
}

// ClusteringKey is nil for tables without one.
func (self *Record) ClusteringKey() store.Key {
	return self.clustering
}

// Values returns the non-key columns.
func (self *Record) Values() store.Values {
	return self.values
}

func (self *Record) String() string {
	return self.table + self.partition.String() + self.clustering.String()
}

// BuildIndexColumn stores the derived lookup column on customer and order
// rows. Other tables are left untouched.
func (self *Record) BuildIndexColumn() {
	switch self.table {
	case CustomerTable:
		w := keyInt(self.partition, CustomerWarehouseID)
		d := keyInt(self.partition, CustomerDistrictID)
		last, _ := self.values[CustomerLast].(store.TextValue)
		self.values[CustomerIndex] = store.TextValue(CustomerIndexValue(w, d, string(last)))
	case OrderTable:
		w := keyInt(self.partition, OrderWarehouseID)
		d := keyInt(self.partition, OrderDistrictID)
		c, _ := self.values[OrderCustomerID].(store.IntValue)
		self.values[OrderIndex] = store.TextValue(OrderIndexValue(w, d, int(c)))
	}
}

func keyInt(key store.Key, name string) int {
	for _, c := range key {
		if c.Name == name {
			if v, ok := c.Value.(store.IntValue); ok {
				return int(v)
			}
		}
	}
	return 0
}

// CustomerIndexValue is the derived c_index column: zero padded warehouse
// and district followed by the last name.
func CustomerIndexValue(warehouseID, districtID int, last string) string {
	return fmt.Sprintf("%05d%03d%s", warehouseID, districtID, last)
}

// OrderIndexValue is the derived o_c_index column.
func OrderIndexValue(warehouseID, districtID, customerID int) string {
	return fmt.Sprintf("%05d%03d%05d", warehouseID, districtID, customerID)
}

const (
	addressStreet1 = "street_1"
	addressStreet2 = "street_2"
	addressCity    = "city"
	addressState   = "state"
	addressZip     = "zip"

	minStreet = 10
	maxStreet = 20
	minCity   = 10
	maxCity   = 20
	stateSize = 2
	zipSize   = 4
)

// Address is the street, city, state and zip column group shared by
// warehouses, districts and customers.
type Address struct {
	Street1 string
	Street2 string
	City    string
	State   string
	Zip     string
}

func (self *Address) putValues(prefix string, values store.Values) {
	values[prefix+addressStreet1] = store.TextValue(self.Street1)
	values[prefix+addressStreet2] = store.TextValue(self.Street2)
	values[prefix+addressCity] = store.TextValue(self.City)
	values[prefix+addressState] = store.TextValue(self.State)
	values[prefix+addressZip] = store.TextValue(self.Zip)
}

// MillisOf converts a time to the stored date representation.
func MillisOf(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

// TimeOf converts a stored date back to a time in UTC.
func TimeOf(millis int64) time.Time {
	return time.Unix(0, millis*int64(time.Millisecond)).UTC()
}

func WarehouseKey(warehouseID int) store.Key {
	return store.NewKey(store.IntColumn(WarehouseID, warehouseID))
}

func DistrictKey(warehouseID, districtID int) store.Key {
	return store.NewKey(
		store.IntColumn(DistrictWarehouseID, warehouseID),
		store.IntColumn(DistrictID, districtID))
}

func CustomerKey(warehouseID, districtID, customerID int) store.Key {
	return store.NewKey(
		store.IntColumn(CustomerWarehouseID, warehouseID),
		store.IntColumn(CustomerDistrictID, districtID),
		store.IntColumn(CustomerID, customerID))
}

func CustomerSecondaryKey(warehouseID, districtID int, last string) store.Key {
	return store.NewKey(
		store.IntColumn(CustomerWarehouseID, warehouseID),
		store.IntColumn(CustomerDistrictID, districtID),
		store.TextColumn(CustomerLast, last))
}

func CustomerSecondaryClustering(first string, customerID int) store.Key {
	return store.NewKey(
		store.TextColumn(CustomerFirst, first),
		store.IntColumn(CustomerID, customerID))
}

func HistoryKey(id string) store.Key {
	return store.NewKey(store.TextColumn(HistoryID, id))
}

func ItemKey(itemID int) store.Key {
	return store.NewKey(store.IntColumn(ItemID, itemID))
}

func StockKey(warehouseID, itemID int) store.Key {
	return store.NewKey(
		store.IntColumn(StockWarehouseID, warehouseID),
		store.IntColumn(StockItemID, itemID))
}

func OrderKey(warehouseID, districtID int) store.Key {
	return store.NewKey(
		store.IntColumn(OrderWarehouseID, warehouseID),
		store.IntColumn(OrderDistrictID, districtID))
}

func OrderClustering(orderID int) store.Key {
	return store.NewKey(store.IntColumn(OrderID, orderID))
}

func NewOrderKey(warehouseID, districtID int) store.Key {
	return store.NewKey(
		store.IntColumn(NewOrderWarehouseID, warehouseID),
		store.IntColumn(NewOrderDistrictID, districtID))
}

func NewOrderClustering(orderID int) store.Key {
	return store.NewKey(store.IntColumn(NewOrderOrderID, orderID))
}

func OrderLineKey(warehouseID, districtID int) store.Key {
	return store.NewKey(
		store.IntColumn(OrderLineWarehouseID, warehouseID),
		store.IntColumn(OrderLineDistrictID, districtID))
}

func OrderLineClustering(orderID, number int) store.Key {
	return store.NewKey(
		store.IntColumn(OrderLineOrderID, orderID),
		store.IntColumn(OrderLineNumber, number))
}

// OrderLinePrefix bounds a scan over all lines of one order.
func OrderLinePrefix(orderID int) store.Key {
	return store.NewKey(store.IntColumn(OrderLineOrderID, orderID))
}

func OrderSecondaryKey(warehouseID, districtID, customerID int) store.Key {
	return store.NewKey(
		store.IntColumn(OrderWarehouseID, warehouseID),
		store.IntColumn(OrderDistrictID, districtID),
		store.IntColumn(OrderCustomerID, customerID))
}

func OrderSecondaryClustering(orderID int) store.Key {
	return store.NewKey(store.IntColumn(OrderID, orderID))
}
