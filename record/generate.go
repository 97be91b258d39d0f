package record

import (
	"github.com/hhkbp2/tpccbench/generator"
	"github.com/hhkbp2/tpccbench/store"
)

const (
	minWarehouseName = 6
	maxWarehouseName = 10
	minDistrictName  = 6
	maxDistrictName  = 10
	minFirst         = 8
	maxFirst         = 16
	minCustomerData  = 300
	maxCustomerData  = 500
	phoneSize        = 16
	minHistoryData   = 12
	maxHistoryData   = 24
	minItemName      = 14
	maxItemName      = 24
	minItemData      = 26
	maxItemData      = 50
	minStockData     = 26
	maxStockData     = 50
	distInfoSize     = 24
	// Percentage of items and stocks whose data carries the marker.
	originalRate = 10
	// Percentage of customers with bad credit.
	badCreditRate = 10

	BadCredit  = "BC"
	GoodCredit = "GC"
)

func GenerateAddress(rnd *generator.Random) *Address {
	return &Address{
		Street1: rnd.AlphaString(minStreet, maxStreet),
		Street2: rnd.AlphaString(minStreet, maxStreet),
		City:    rnd.AlphaString(minCity, maxCity),
		State:   rnd.AlphaString(stateSize, stateSize),
		Zip:     rnd.NumericString(zipSize, zipSize) + "11111",
	}
}

func GenerateWarehouse(rnd *generator.Random, warehouseID int) *Record {
	values := store.Values{
		WarehouseName: store.TextValue(rnd.AlphaString(minWarehouseName, maxWarehouseName)),
	}
	GenerateAddress(rnd).putValues("w_", values)
	values[WarehouseTax] = store.DoubleValue(rnd.Double(0, 2000, 10000))
	values[WarehouseYtd] = store.DoubleValue(300000.00)
	return NewRecord(WarehouseTable, WarehouseKey(warehouseID), nil, values)
}

func GenerateDistrict(rnd *generator.Random, warehouseID, districtID int) *Record {
	values := store.Values{
		DistrictName: store.TextValue(rnd.AlphaString(minDistrictName, maxDistrictName)),
	}
	GenerateAddress(rnd).putValues("d_", values)
	values[DistrictTax] = store.DoubleValue(rnd.Double(0, 2000, 10000))
	values[DistrictYtd] = store.DoubleValue(30000.00)
	values[DistrictNextOrderID] = store.IntValue(OrdersPerDistrict + 1)
	return NewRecord(DistrictTable, DistrictKey(warehouseID, districtID), nil, values)
}

// GenerateCustomer builds a customer as loaded. The first 1000 customers
// of a district take every last name once, the rest draw theirs
// non-uniformly.
func GenerateCustomer(rnd *generator.Random, warehouseID, districtID, customerID int, now int64) *Record {
	var last string
	if customerID <= 1000 {
		last = generator.LastName(customerID - 1)
	} else {
		last = rnd.LastNameForLoad()
	}
	credit := GoodCredit
	values := store.Values{
		CustomerFirst:    store.TextValue(rnd.AlphaString(minFirst, maxFirst)),
		CustomerMiddle:   store.TextValue("OE"),
		CustomerLast:     store.TextValue(last),
		CustomerDiscount: store.DoubleValue(rnd.Double(0, 5000, 10000)),
	}
	if rnd.Int(0, 99) < badCreditRate {
		credit = BadCredit
	}
	values[CustomerCredit] = store.TextValue(credit)
	values[CustomerCreditLim] = store.DoubleValue(50000.00)
	values[CustomerBalance] = store.DoubleValue(-10.00)
	values[CustomerYtdPayment] = store.DoubleValue(10.00)
	values[CustomerPaymentCnt] = store.IntValue(1)
	values[CustomerDeliveryCnt] = store.IntValue(0)
	GenerateAddress(rnd).putValues("c_", values)
	values[CustomerPhone] = store.TextValue(rnd.NumericString(phoneSize, phoneSize))
	values[CustomerSince] = store.DateValue(now)
	values[CustomerData] = store.TextValue(rnd.AlphaString(minCustomerData, maxCustomerData))
	return NewRecord(CustomerTable, CustomerKey(warehouseID, districtID, customerID), nil, values)
}

// CustomerSecondaryOf derives the last name index row of a customer.
func CustomerSecondaryOf(customer *Record) *Record {
	w := keyInt(customer.partition, CustomerWarehouseID)
	d := keyInt(customer.partition, CustomerDistrictID)
	c := keyInt(customer.partition, CustomerID)
	last, _ := customer.values[CustomerLast].(store.TextValue)
	first, _ := customer.values[CustomerFirst].(store.TextValue)
	return NewCustomerSecondary(w, d, string(last), string(first), c)
}

func NewCustomerSecondary(warehouseID, districtID int, last, first string, customerID int) *Record {
	return NewRecord(CustomerSecondaryTable,
		CustomerSecondaryKey(warehouseID, districtID, last),
		CustomerSecondaryClustering(first, customerID), nil)
}

// GenerateHistory builds the initial history row of a customer.
func GenerateHistory(rnd *generator.Random, warehouseID, districtID, customerID int, now int64) *Record {
	return NewHistory(rnd.UUID(), customerID, districtID, warehouseID, districtID, warehouseID,
		now, 10.00, rnd.AlphaString(minHistoryData, maxHistoryData))
}

func NewHistory(id string, customerID, customerDistrictID, customerWarehouseID,
	districtID, warehouseID int, date int64, amount float64, data string) *Record {

	values := store.Values{
		HistoryCustomerID:          store.IntValue(customerID),
		HistoryCustomerDistrictID:  store.IntValue(customerDistrictID),
		HistoryCustomerWarehouseID: store.IntValue(customerWarehouseID),
		HistoryDistrictID:          store.IntValue(districtID),
		HistoryWarehouseID:         store.IntValue(warehouseID),
		HistoryDate:                store.DateValue(date),
		HistoryAmount:              store.DoubleValue(amount),
		HistoryData:                store.TextValue(data),
	}
	return NewRecord(HistoryTable, HistoryKey(id), nil, values)
}

func GenerateItem(rnd *generator.Random, itemID int) *Record {
	values := store.Values{
		ItemName:  store.TextValue(rnd.AlphaString(minItemName, maxItemName)),
		ItemPrice: store.DoubleValue(rnd.Double(100, 1000, 100)),
		ItemData:  store.TextValue(rnd.StringWithMarker(minItemData, maxItemData, originalRate)),
		ItemImID:  store.IntValue(rnd.Int(1, 10000)),
	}
	return NewRecord(ItemTable, ItemKey(itemID), nil, values)
}

func GenerateStock(rnd *generator.Random, warehouseID, itemID int) *Record {
	values := store.Values{
		StockQuantity:  store.IntValue(rnd.Int(10, 100)),
		StockYtd:       store.DoubleValue(0.00),
		StockOrderCnt:  store.IntValue(0),
		StockRemoteCnt: store.IntValue(0),
		StockData:      store.TextValue(rnd.StringWithMarker(minStockData, maxStockData, originalRate)),
	}
	for d := 1; d <= DistrictsPerWarehouse; d++ {
		values[StockDist(d)] = store.TextValue(rnd.AlphaString(distInfoSize, distInfoSize))
	}
	return NewRecord(StockTable, StockKey(warehouseID, itemID), nil, values)
}

// GenerateOrder builds a loaded order. Orders above DeliveredOrders have
// no carrier yet.
func GenerateOrder(rnd *generator.Random, warehouseID, districtID, orderID, customerID int, now int64) *Record {
	var carrier store.Value
	if orderID <= DeliveredOrders {
		carrier = store.IntValue(rnd.Int(1, 10))
	}
	values := store.Values{
		OrderCustomerID: store.IntValue(customerID),
		OrderCarrierID:  carrier,
		OrderLineCount:  store.IntValue(rnd.Int(MinOrderLines, MaxOrderLines)),
		OrderAllLocal:   store.IntValue(1),
		OrderEntryDate:  store.DateValue(now),
	}
	return NewRecord(OrderTable, OrderKey(warehouseID, districtID), OrderClustering(orderID), values)
}

// NewPlacedOrder builds the order written by a New-Order transaction,
// with its index column set.
func NewPlacedOrder(warehouseID, districtID, orderID, customerID, lineCount int, allLocal bool, date int64) *Record {
	local := 0
	if allLocal {
		local = 1
	}
	values := store.Values{
		OrderCustomerID: store.IntValue(customerID),
		OrderCarrierID:  nil,
		OrderLineCount:  store.IntValue(lineCount),
		OrderAllLocal:   store.IntValue(local),
		OrderEntryDate:  store.DateValue(date),
	}
	r := NewRecord(OrderTable, OrderKey(warehouseID, districtID), OrderClustering(orderID), values)
	r.BuildIndexColumn()
	return r
}

// OrderSecondaryOf derives the customer index row of an order.
func OrderSecondaryOf(order *Record) *Record {
	w := keyInt(order.partition, OrderWarehouseID)
	d := keyInt(order.partition, OrderDistrictID)
	o := keyInt(order.clustering, OrderID)
	c, _ := order.values[OrderCustomerID].(store.IntValue)
	return NewOrderSecondary(w, d, int(c), o)
}

func NewOrderSecondary(warehouseID, districtID, customerID, orderID int) *Record {
	return NewRecord(OrderSecondaryTable,
		OrderSecondaryKey(warehouseID, districtID, customerID),
		OrderSecondaryClustering(orderID), nil)
}

func NewNewOrder(warehouseID, districtID, orderID int) *Record {
	return NewRecord(NewOrderTable, NewOrderKey(warehouseID, districtID), NewOrderClustering(orderID), nil)
}

// GenerateOrderLine builds a loaded order line. Lines of delivered orders
// carry the delivery date and a zero amount, the others no date and a
// random amount.
func GenerateOrderLine(rnd *generator.Random, warehouseID, districtID, orderID, number int, now int64) *Record {
	values := store.Values{
		OrderLineItemID:            store.IntValue(rnd.Int(1, Items)),
		OrderLineSupplyWarehouseID: store.IntValue(warehouseID),
		OrderLineQuantity:          store.IntValue(5),
		OrderLineDistInfo:          store.TextValue(rnd.AlphaString(distInfoSize, distInfoSize)),
	}
	if orderID <= DeliveredOrders {
		values[OrderLineDeliveryDate] = store.DateValue(now)
		values[OrderLineAmount] = store.DoubleValue(0.00)
	} else {
		values[OrderLineDeliveryDate] = nil
		values[OrderLineAmount] = store.DoubleValue(rnd.Double(1, 999999, 100))
	}
	return NewRecord(OrderLineTable, OrderLineKey(warehouseID, districtID),
		OrderLineClustering(orderID, number), values)
}

// NewOrderLine builds the order line written by a New-Order transaction.
func NewOrderLine(warehouseID, districtID, orderID, number, supplyWarehouseID int,
	amount float64, quantity, itemID int, distInfo string) *Record {

	values := store.Values{
		OrderLineItemID:            store.IntValue(itemID),
		OrderLineSupplyWarehouseID: store.IntValue(supplyWarehouseID),
		OrderLineDeliveryDate:      nil,
		OrderLineAmount:            store.DoubleValue(amount),
		OrderLineQuantity:          store.IntValue(quantity),
		OrderLineDistInfo:          store.TextValue(distInfo),
	}
	return NewRecord(OrderLineTable, OrderLineKey(warehouseID, districtID),
		OrderLineClustering(orderID, number), values)
}
