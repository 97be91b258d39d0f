package record

import (
	"strconv"
	"strings"
	"time"

	"github.com/hhkbp2/tpccbench/store"
)

// Headers lists the CSV column order of every loadable table.
var Headers = map[string][]string{
	CustomerTable: {
		"c_w_id", "c_d_id", "c_id", "c_discount", "c_credit", "c_last", "c_first",
		"c_credit_lim", "c_balance", "c_ytd_payment", "c_payment_cnt", "c_delivery_cnt",
		"c_street_1", "c_street_2", "c_city", "c_state", "c_zip", "c_phone", "c_since",
		"c_middle", "c_data",
	},
	CustomerSecondaryTable: {"c_w_id", "c_d_id", "c_last", "c_first", "c_id"},
	DistrictTable: {
		"d_w_id", "d_id", "d_ytd", "d_tax", "d_next_o_id", "d_name",
		"d_street_1", "d_street_2", "d_city", "d_state", "d_zip",
	},
	HistoryTable: {
		"h_c_id", "h_c_d_id", "h_c_w_id", "h_d_id", "h_w_id", "h_date", "h_amount", "h_data",
	},
	ItemTable:     {"i_id", "i_name", "i_price", "i_data", "i_im_id"},
	NewOrderTable: {"no_w_id", "no_d_id", "no_o_id"},
	OrderTable: {
		"o_w_id", "o_d_id", "o_id", "o_c_id", "o_carrier_id", "o_ol_cnt", "o_all_local", "o_entry_d",
	},
	OrderLineTable: {
		"ol_w_id", "ol_d_id", "ol_o_id", "ol_number", "ol_i_id", "ol_delivery_d",
		"ol_amount", "ol_supply_w_id", "ol_quantity", "ol_dist_info",
	},
	OrderSecondaryTable: {"o_w_id", "o_d_id", "o_c_id", "o_id"},
	StockTable: {
		"s_w_id", "s_i_id", "s_quantity", "s_ytd", "s_order_cnt", "s_remote_cnt", "s_data",
		"s_dist_01", "s_dist_02", "s_dist_03", "s_dist_04", "s_dist_05",
		"s_dist_06", "s_dist_07", "s_dist_08", "s_dist_09", "s_dist_10",
	},
	WarehouseTable: {
		"w_id", "w_ytd", "w_tax", "w_name", "w_street_1", "w_street_2", "w_city", "w_state", "w_zip",
	},
}

// LoadOrder is the order in which tables are loaded.
var LoadOrder = []string{
	WarehouseTable,
	ItemTable,
	StockTable,
	DistrictTable,
	CustomerTable,
	CustomerSecondaryTable,
	HistoryTable,
	OrderTable,
	NewOrderTable,
	OrderLineTable,
	OrderSecondaryTable,
}

// FileName returns the CSV file holding a table.
func FileName(table string) string {
	return table + ".csv"
}

// Row is one CSV line keyed by column name.
type Row map[string]string

// IsNull reports whether a field denotes SQL NULL.
func IsNull(field string) bool {
	return field == "" || field == `\N`
}

type rowParser struct {
	table string
	row   Row
	err   error
}

func (self *rowParser) field(name string) string {
	v, ok := self.row[name]
	if !ok && self.err == nil {
		self.err = store.NewValidationError("%s: missing column %s", self.table, name)
	}
	return v
}

func (self *rowParser) int(name string) int {
	s := self.field(name)
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil && self.err == nil {
		self.err = store.NewValidationError("%s: column %s: invalid int %q", self.table, name, s)
	}
	return v
}

func (self *rowParser) intValue(name string) store.Value {
	return store.IntValue(self.int(name))
}

func (self *rowParser) nullableInt(name string) store.Value {
	if IsNull(self.field(name)) {
		return nil
	}
	return self.intValue(name)
}

func (self *rowParser) double(name string) store.Value {
	s := self.field(name)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil && self.err == nil {
		self.err = store.NewValidationError("%s: column %s: invalid double %q", self.table, name, s)
	}
	return store.DoubleValue(v)
}

func (self *rowParser) text(name string) store.Value {
	return store.TextValue(self.field(name))
}

func (self *rowParser) date(name string) store.Value {
	s := self.field(name)
	t, err := time.ParseInLocation(DateFormat, strings.TrimSpace(s), time.UTC)
	if err != nil && self.err == nil {
		self.err = store.NewValidationError("%s: column %s: invalid date %q", self.table, name, s)
	}
	return store.DateValue(MillisOf(t))
}

func (self *rowParser) nullableDate(name string) store.Value {
	if IsNull(self.field(name)) {
		return nil
	}
	return self.date(name)
}

func (self *rowParser) address(prefix string, values store.Values) {
	a := &Address{
		Street1: self.field(prefix + addressStreet1),
		Street2: self.field(prefix + addressStreet2),
		City:    self.field(prefix + addressCity),
		State:   self.field(prefix + addressState),
		Zip:     self.field(prefix + addressZip),
	}
	a.putValues(prefix, values)
}

type parseFunc func(p *rowParser) *Record

var parsers = map[string]parseFunc{
	WarehouseTable: func(p *rowParser) *Record {
		values := store.Values{
			WarehouseName: p.text(WarehouseName),
			WarehouseTax:  p.double(WarehouseTax),
			WarehouseYtd:  p.double(WarehouseYtd),
		}
		p.address("w_", values)
		return NewRecord(WarehouseTable, WarehouseKey(p.int(WarehouseID)), nil, values)
	},
	DistrictTable: func(p *rowParser) *Record {
		values := store.Values{
			DistrictName:        p.text(DistrictName),
			DistrictTax:         p.double(DistrictTax),
			DistrictYtd:         p.double(DistrictYtd),
			DistrictNextOrderID: p.intValue(DistrictNextOrderID),
		}
		p.address("d_", values)
		return NewRecord(DistrictTable,
			DistrictKey(p.int(DistrictWarehouseID), p.int(DistrictID)), nil, values)
	},
	CustomerTable: func(p *rowParser) *Record {
		values := store.Values{
			CustomerFirst:       p.text(CustomerFirst),
			CustomerMiddle:      p.text(CustomerMiddle),
			CustomerLast:        p.text(CustomerLast),
			CustomerDiscount:    p.double(CustomerDiscount),
			CustomerCredit:      p.text(CustomerCredit),
			CustomerCreditLim:   p.double(CustomerCreditLim),
			CustomerBalance:     p.double(CustomerBalance),
			CustomerYtdPayment:  p.double(CustomerYtdPayment),
			CustomerPaymentCnt:  p.intValue(CustomerPaymentCnt),
			CustomerDeliveryCnt: p.intValue(CustomerDeliveryCnt),
			CustomerPhone:       p.text(CustomerPhone),
			CustomerSince:       p.date(CustomerSince),
			CustomerData:        p.text(CustomerData),
		}
		p.address("c_", values)
		return NewRecord(CustomerTable,
			CustomerKey(p.int(CustomerWarehouseID), p.int(CustomerDistrictID), p.int(CustomerID)), nil, values)
	},
	CustomerSecondaryTable: func(p *rowParser) *Record {
		return NewCustomerSecondary(p.int(CustomerWarehouseID), p.int(CustomerDistrictID),
			p.field(CustomerLast), p.field(CustomerFirst), p.int(CustomerID))
	},
	HistoryTable: func(p *rowParser) *Record {
		values := store.Values{
			HistoryCustomerID:          p.intValue(HistoryCustomerID),
			HistoryCustomerDistrictID:  p.intValue(HistoryCustomerDistrictID),
			HistoryCustomerWarehouseID: p.intValue(HistoryCustomerWarehouseID),
			HistoryDistrictID:          p.intValue(HistoryDistrictID),
			HistoryWarehouseID:         p.intValue(HistoryWarehouseID),
			HistoryDate:                p.date(HistoryDate),
			HistoryAmount:              p.double(HistoryAmount),
			HistoryData:                p.text(HistoryData),
		}
		// history rows have no natural key, the id is assigned by the caller
		return NewRecord(HistoryTable, nil, nil, values)
	},
	ItemTable: func(p *rowParser) *Record {
		values := store.Values{
			ItemName:  p.text(ItemName),
			ItemPrice: p.double(ItemPrice),
			ItemData:  p.text(ItemData),
			ItemImID:  p.intValue(ItemImID),
		}
		return NewRecord(ItemTable, ItemKey(p.int(ItemID)), nil, values)
	},
	StockTable: func(p *rowParser) *Record {
		values := store.Values{
			StockQuantity:  p.intValue(StockQuantity),
			StockYtd:       p.double(StockYtd),
			StockOrderCnt:  p.intValue(StockOrderCnt),
			StockRemoteCnt: p.intValue(StockRemoteCnt),
			StockData:      p.text(StockData),
		}
		for d := 1; d <= DistrictsPerWarehouse; d++ {
			values[StockDist(d)] = p.text(StockDist(d))
		}
		return NewRecord(StockTable, StockKey(p.int(StockWarehouseID), p.int(StockItemID)), nil, values)
	},
	OrderTable: func(p *rowParser) *Record {
		values := store.Values{
			OrderCustomerID: p.intValue(OrderCustomerID),
			OrderCarrierID:  p.nullableInt(OrderCarrierID),
			OrderLineCount:  p.intValue(OrderLineCount),
			OrderAllLocal:   p.intValue(OrderAllLocal),
			OrderEntryDate:  p.date(OrderEntryDate),
		}
		return NewRecord(OrderTable, OrderKey(p.int(OrderWarehouseID), p.int(OrderDistrictID)),
			OrderClustering(p.int(OrderID)), values)
	},
	NewOrderTable: func(p *rowParser) *Record {
		return NewNewOrder(p.int(NewOrderWarehouseID), p.int(NewOrderDistrictID), p.int(NewOrderOrderID))
	},
	OrderLineTable: func(p *rowParser) *Record {
		values := store.Values{
			OrderLineItemID:            p.intValue(OrderLineItemID),
			OrderLineSupplyWarehouseID: p.intValue(OrderLineSupplyWarehouseID),
			OrderLineDeliveryDate:      p.nullableDate(OrderLineDeliveryDate),
			OrderLineAmount:            p.double(OrderLineAmount),
			OrderLineQuantity:          p.intValue(OrderLineQuantity),
			OrderLineDistInfo:          p.text(OrderLineDistInfo),
		}
		return NewRecord(OrderLineTable,
			OrderLineKey(p.int(OrderLineWarehouseID), p.int(OrderLineDistrictID)),
			OrderLineClustering(p.int(OrderLineOrderID), p.int(OrderLineNumber)), values)
	},
	OrderSecondaryTable: func(p *rowParser) *Record {
		return NewOrderSecondary(p.int(OrderWarehouseID), p.int(OrderDistrictID),
			p.int(OrderCustomerID), p.int(OrderID))
	},
}

// Parse builds a record of table from a CSV row. A history row gets the id
// passed in historyID since the file carries none. Malformed fields yield a
// ValidationError.
func Parse(table string, row Row, historyID string) (*Record, error) {
	f, ok := parsers[table]
	if !ok {
		return nil, store.NewValidationError("unknown table %s", table)
	}
	p := &rowParser{table: table, row: row}
	r := f(p)
	if p.err != nil {
		return nil, p.err
	}
	if table == HistoryTable {
		r.partition = HistoryKey(historyID)
	}
	return r, nil
}

// RowOf zips a header with the fields of one line.
func RowOf(header []string, fields []string) (Row, error) {
	if len(fields) != len(header) {
		return nil, store.NewValidationError("expected %d fields, got %d", len(header), len(fields))
	}
	row := make(Row, len(header))
	for i, name := range header {
		row[name] = fields[i]
	}
	return row, nil
}
