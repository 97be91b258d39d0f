package record

import (
	"github.com/hhkbp2/tpccbench/store"
)

// Table names.
const (
	WarehouseTable         = "warehouse"
	DistrictTable          = "district"
	CustomerTable          = "customer"
	CustomerSecondaryTable = "customer_secondary"
	HistoryTable           = "history"
	ItemTable              = "item"
	StockTable             = "stock"
	OrderTable             = "oorder"
	NewOrderTable          = "new_order"
	OrderLineTable         = "order_line"
	OrderSecondaryTable    = "order_secondary"
)

// Cardinalities fixed by TPC-C.
const (
	DistrictsPerWarehouse = 10
	CustomersPerDistrict  = 3000
	OrdersPerDistrict     = 3000
	Items                 = 100000
	StocksPerWarehouse    = 100000
	MinOrderLines         = 5
	MaxOrderLines         = 15
	// Orders with an id above this one are undelivered at load time.
	DeliveredOrders = 2100
)

const (
	WarehouseID      = "w_id"
	WarehouseName    = "w_name"
	WarehouseStreet1 = "w_street_1"
	WarehouseStreet2 = "w_street_2"
	WarehouseCity    = "w_city"
	WarehouseState   = "w_state"
	WarehouseZip     = "w_zip"
	WarehouseTax     = "w_tax"
	WarehouseYtd     = "w_ytd"
)

const (
	DistrictWarehouseID = "d_w_id"
	DistrictID          = "d_id"
	DistrictName        = "d_name"
	DistrictStreet1     = "d_street_1"
	DistrictStreet2     = "d_street_2"
	DistrictCity        = "d_city"
	DistrictState       = "d_state"
	DistrictZip         = "d_zip"
	DistrictTax         = "d_tax"
	DistrictYtd         = "d_ytd"
	DistrictNextOrderID = "d_next_o_id"
)

const (
	CustomerWarehouseID = "c_w_id"
	CustomerDistrictID  = "c_d_id"
	CustomerID          = "c_id"
	CustomerFirst       = "c_first"
	CustomerMiddle      = "c_middle"
	CustomerLast        = "c_last"
	CustomerDiscount    = "c_discount"
	CustomerCredit      = "c_credit"
	CustomerCreditLim   = "c_credit_lim"
	CustomerBalance     = "c_balance"
	CustomerYtdPayment  = "c_ytd_payment"
	CustomerPaymentCnt  = "c_payment_cnt"
	CustomerDeliveryCnt = "c_delivery_cnt"
	CustomerStreet1     = "c_street_1"
	CustomerStreet2     = "c_street_2"
	CustomerCity        = "c_city"
	CustomerState       = "c_state"
	CustomerZip         = "c_zip"
	CustomerPhone       = "c_phone"
	CustomerSince       = "c_since"
	CustomerData        = "c_data"
	CustomerIndex       = "c_index"
)

const (
	HistoryID                  = "h_id"
	HistoryCustomerID          = "h_c_id"
	HistoryCustomerDistrictID  = "h_c_d_id"
	HistoryCustomerWarehouseID = "h_c_w_id"
	HistoryDistrictID          = "h_d_id"
	HistoryWarehouseID         = "h_w_id"
	HistoryDate                = "h_date"
	HistoryAmount              = "h_amount"
	HistoryData                = "h_data"
)

const (
	ItemID    = "i_id"
	ItemName  = "i_name"
	ItemPrice = "i_price"
	ItemData  = "i_data"
	ItemImID  = "i_im_id"
)

const (
	StockWarehouseID = "s_w_id"
	StockItemID      = "s_i_id"
	StockQuantity    = "s_quantity"
	StockYtd         = "s_ytd"
	StockOrderCnt    = "s_order_cnt"
	StockRemoteCnt   = "s_remote_cnt"
	StockData        = "s_data"
	stockDistPrefix  = "s_dist_"
)

const (
	OrderWarehouseID = "o_w_id"
	OrderDistrictID  = "o_d_id"
	OrderID          = "o_id"
	OrderCustomerID  = "o_c_id"
	OrderCarrierID   = "o_carrier_id"
	OrderLineCount   = "o_ol_cnt"
	OrderAllLocal    = "o_all_local"
	OrderEntryDate   = "o_entry_d"
	OrderIndex       = "o_c_index"
)

const (
	NewOrderWarehouseID = "no_w_id"
	NewOrderDistrictID  = "no_d_id"
	NewOrderOrderID     = "no_o_id"
)

const (
	OrderLineWarehouseID       = "ol_w_id"
	OrderLineDistrictID        = "ol_d_id"
	OrderLineOrderID           = "ol_o_id"
	OrderLineNumber            = "ol_number"
	OrderLineItemID            = "ol_i_id"
	OrderLineSupplyWarehouseID = "ol_supply_w_id"
	OrderLineDeliveryDate      = "ol_delivery_d"
	OrderLineQuantity          = "ol_quantity"
	OrderLineAmount            = "ol_amount"
	OrderLineDistInfo          = "ol_dist_info"
)

// StockDist returns the distribution info column of a district, s_dist_01
// to s_dist_10.
func StockDist(districtID int) string {
	return stockDistPrefix + twoDigits(districtID)
}

func twoDigits(n int) string {
	return string([]byte{byte('0' + n/10%10), byte('0' + n%10)})
}

func intCol(name string) store.ColumnSchema {
	return store.ColumnSchema{Name: name, Type: store.TypeInt}
}

func doubleCol(name string) store.ColumnSchema {
	return store.ColumnSchema{Name: name, Type: store.TypeDouble}
}

func textCol(name string) store.ColumnSchema {
	return store.ColumnSchema{Name: name, Type: store.TypeText}
}

func dateCol(name string) store.ColumnSchema {
	return store.ColumnSchema{Name: name, Type: store.TypeDate}
}

func addressCols(prefix string) []store.ColumnSchema {
	return []store.ColumnSchema{
		textCol(prefix + addressStreet1),
		textCol(prefix + addressStreet2),
		textCol(prefix + addressCity),
		textCol(prefix + addressState),
		textCol(prefix + addressZip),
	}
}

func stockDistCols() []store.ColumnSchema {
	ret := make([]store.ColumnSchema, 0, DistrictsPerWarehouse)
	for d := 1; d <= DistrictsPerWarehouse; d++ {
		ret = append(ret, textCol(StockDist(d)))
	}
	return ret
}

func concatCols(groups ...[]store.ColumnSchema) []store.ColumnSchema {
	ret := make([]store.ColumnSchema, 0)
	for _, g := range groups {
		ret = append(ret, g...)
	}
	return ret
}

var schemas = []*store.TableSchema{
	{
		Name:         WarehouseTable,
		PartitionKey: []store.ColumnSchema{intCol(WarehouseID)},
		Columns: concatCols(
			[]store.ColumnSchema{textCol(WarehouseName)},
			addressCols("w_"),
			[]store.ColumnSchema{doubleCol(WarehouseTax), doubleCol(WarehouseYtd)}),
	},
	{
		Name:         DistrictTable,
		PartitionKey: []store.ColumnSchema{intCol(DistrictWarehouseID), intCol(DistrictID)},
		Columns: concatCols(
			[]store.ColumnSchema{textCol(DistrictName)},
			addressCols("d_"),
			[]store.ColumnSchema{doubleCol(DistrictTax), doubleCol(DistrictYtd), intCol(DistrictNextOrderID)}),
	},
	{
		Name: CustomerTable,
		PartitionKey: []store.ColumnSchema{
			intCol(CustomerWarehouseID), intCol(CustomerDistrictID), intCol(CustomerID),
		},
		Columns: concatCols(
			[]store.ColumnSchema{
				textCol(CustomerFirst), textCol(CustomerMiddle), textCol(CustomerLast),
				doubleCol(CustomerDiscount), textCol(CustomerCredit), doubleCol(CustomerCreditLim),
				doubleCol(CustomerBalance), doubleCol(CustomerYtdPayment),
				intCol(CustomerPaymentCnt), intCol(CustomerDeliveryCnt),
			},
			addressCols("c_"),
			[]store.ColumnSchema{
				textCol(CustomerPhone), dateCol(CustomerSince), textCol(CustomerData), textCol(CustomerIndex),
			}),
		Indexes: []string{CustomerIndex},
	},
	{
		Name: CustomerSecondaryTable,
		PartitionKey: []store.ColumnSchema{
			intCol(CustomerWarehouseID), intCol(CustomerDistrictID), textCol(CustomerLast),
		},
		ClusteringKey: []store.ColumnSchema{textCol(CustomerFirst), intCol(CustomerID)},
	},
	{
		Name:         HistoryTable,
		PartitionKey: []store.ColumnSchema{textCol(HistoryID)},
		Columns: []store.ColumnSchema{
			intCol(HistoryCustomerID), intCol(HistoryCustomerDistrictID), intCol(HistoryCustomerWarehouseID),
			intCol(HistoryDistrictID), intCol(HistoryWarehouseID),
			dateCol(HistoryDate), doubleCol(HistoryAmount), textCol(HistoryData),
		},
	},
	{
		Name:         ItemTable,
		PartitionKey: []store.ColumnSchema{intCol(ItemID)},
		Columns: []store.ColumnSchema{
			textCol(ItemName), doubleCol(ItemPrice), textCol(ItemData), intCol(ItemImID),
		},
	},
	{
		Name:         StockTable,
		PartitionKey: []store.ColumnSchema{intCol(StockWarehouseID), intCol(StockItemID)},
		Columns: concatCols(
			[]store.ColumnSchema{
				intCol(StockQuantity), doubleCol(StockYtd), intCol(StockOrderCnt),
				intCol(StockRemoteCnt), textCol(StockData),
			},
			stockDistCols()),
	},
	{
		Name:          OrderTable,
		PartitionKey:  []store.ColumnSchema{intCol(OrderWarehouseID), intCol(OrderDistrictID)},
		ClusteringKey: []store.ColumnSchema{intCol(OrderID)},
		Columns: []store.ColumnSchema{
			intCol(OrderCustomerID), intCol(OrderCarrierID), intCol(OrderLineCount),
			intCol(OrderAllLocal), dateCol(OrderEntryDate), textCol(OrderIndex),
		},
		Indexes: []string{OrderIndex},
	},
	{
		Name:          NewOrderTable,
		PartitionKey:  []store.ColumnSchema{intCol(NewOrderWarehouseID), intCol(NewOrderDistrictID)},
		ClusteringKey: []store.ColumnSchema{intCol(NewOrderOrderID)},
	},
	{
		Name:          OrderLineTable,
		PartitionKey:  []store.ColumnSchema{intCol(OrderLineWarehouseID), intCol(OrderLineDistrictID)},
		ClusteringKey: []store.ColumnSchema{intCol(OrderLineOrderID), intCol(OrderLineNumber)},
		Columns: []store.ColumnSchema{
			intCol(OrderLineItemID), intCol(OrderLineSupplyWarehouseID), dateCol(OrderLineDeliveryDate),
			intCol(OrderLineQuantity), doubleCol(OrderLineAmount), textCol(OrderLineDistInfo),
		},
	},
	{
		Name: OrderSecondaryTable,
		PartitionKey: []store.ColumnSchema{
			intCol(OrderWarehouseID), intCol(OrderDistrictID), intCol(OrderCustomerID),
		},
		ClusteringKey: []store.ColumnSchema{intCol(OrderID)},
	},
}

// Schemas returns the table definitions of all eleven tables.
func Schemas() []*store.TableSchema {
	return schemas
}

// Schema returns the definition of one table, nil if unknown.
func Schema(table string) *store.TableSchema {
	for _, s := range schemas {
		if s.Name == table {
			return s
		}
	}
	return nil
}
