package transaction

import (
	"context"
	"fmt"

	"github.com/hhkbp2/tpccbench/record"
	"github.com/hhkbp2/tpccbench/store"
)

const (
	// Percentage of payments made to the home warehouse and district.
	homePaymentRate = 85
	// Percentage of customers selected by last name.
	byLastNameRate = 60

	maxCustomerData = 500
	historyNameSize = 10
	historySpacer   = "    "
)

type PaymentArgs struct {
	WarehouseID         int
	DistrictID          int
	CustomerWarehouseID int
	CustomerDistrictID  int
	ByLastName          bool
	CustomerID          int
	LastName            string
	Amount              float64
	HistoryID           string
	Date                int64
}

// PaymentResult is filled by a committed execution.
type PaymentResult struct {
	CustomerID int
	Balance    float64
}

type Payment struct {
	env    *Env
	Args   PaymentArgs
	Result PaymentResult
}

func NewPayment(env *Env) *Payment {
	return &Payment{env: env}
}

func (self *Payment) Type() Type {
	return TypePayment
}

func (self *Payment) Generate() {
	rnd := self.env.Random
	w := self.env.homeWarehouse()
	d := rnd.Int(1, record.DistrictsPerWarehouse)
	cw, cd := w, d
	if self.env.Warehouses > 1 && rnd.Int(1, 100) > homePaymentRate {
		cw = self.env.otherWarehouse(w)
		cd = rnd.Int(1, record.DistrictsPerWarehouse)
	}
	self.Args = PaymentArgs{
		WarehouseID:         w,
		DistrictID:          d,
		CustomerWarehouseID: cw,
		CustomerDistrictID:  cd,
		ByLastName:          rnd.Int(1, 100) <= byLastNameRate,
		CustomerID:          rnd.CustomerID(),
		LastName:            rnd.LastNameForRun(),
		Amount:              rnd.Double(100, 500000, 100),
		HistoryID:           rnd.UUID(),
		Date:                self.env.now(),
	}
}

func (self *Payment) Execute(ctx context.Context, s store.Store) (Outcome, error) {
	self.Result = PaymentResult{}
	return run(ctx, s, self.execute)
}

func (self *Payment) execute(ctx context.Context, tx store.Transaction) error {
	a := &self.Args
	warehouseKey := record.WarehouseKey(a.WarehouseID)
	warehouse, err := mustGet(ctx, tx, record.WarehouseTable, warehouseKey, nil)
	if err != nil {
		return err
	}
	err = tx.Put(ctx, record.WarehouseTable, warehouseKey, nil, store.Values{
		record.WarehouseYtd: store.DoubleValue(warehouse.Double(record.WarehouseYtd) + a.Amount),
	})
	if err != nil {
		return err
	}
	districtKey := record.DistrictKey(a.WarehouseID, a.DistrictID)
	district, err := mustGet(ctx, tx, record.DistrictTable, districtKey, nil)
	if err != nil {
		return err
	}
	err = tx.Put(ctx, record.DistrictTable, districtKey, nil, store.Values{
		record.DistrictYtd: store.DoubleValue(district.Double(record.DistrictYtd) + a.Amount),
	})
	if err != nil {
		return err
	}

	customerID := a.CustomerID
	if a.ByLastName {
		customerID, err = self.env.Resolver.CustomerByLastName(ctx, tx,
			a.CustomerWarehouseID, a.CustomerDistrictID, a.LastName)
		if err != nil {
			return err
		}
	}
	customerKey := record.CustomerKey(a.CustomerWarehouseID, a.CustomerDistrictID, customerID)
	customer, err := mustGet(ctx, tx, record.CustomerTable, customerKey, nil)
	if err != nil {
		return err
	}
	balance := customer.Double(record.CustomerBalance) + a.Amount
	values := store.Values{
		record.CustomerBalance:    store.DoubleValue(balance),
		record.CustomerYtdPayment: store.DoubleValue(customer.Double(record.CustomerYtdPayment) + a.Amount),
		record.CustomerPaymentCnt: store.IntValue(customer.Int(record.CustomerPaymentCnt) + 1),
	}
	if customer.Text(record.CustomerCredit) == record.BadCredit {
		data := fmt.Sprintf("%d %d %d %d %d %7.2f | %s", customerID, a.CustomerDistrictID,
			a.CustomerWarehouseID, a.DistrictID, a.WarehouseID, a.Amount, customer.Text(record.CustomerData))
		values[record.CustomerData] = store.TextValue(truncate(data, maxCustomerData))
	}
	if err := tx.Put(ctx, record.CustomerTable, customerKey, nil, values); err != nil {
		return err
	}

	data := truncate(warehouse.Text(record.WarehouseName), historyNameSize) + historySpacer +
		truncate(district.Text(record.DistrictName), historyNameSize)
	history := record.NewHistory(a.HistoryID, customerID, a.CustomerDistrictID, a.CustomerWarehouseID,
		a.DistrictID, a.WarehouseID, a.Date, a.Amount, data)
	if err := put(ctx, tx, history); err != nil {
		return err
	}
	self.Result = PaymentResult{CustomerID: customerID, Balance: balance}
	return nil
}
