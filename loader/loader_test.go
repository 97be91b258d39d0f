package loader

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hhkbp2/tpccbench/log"
	"github.com/hhkbp2/tpccbench/record"
	"github.com/hhkbp2/tpccbench/store"
	"github.com/stretchr/testify/require"
)

type sliceSource struct {
	records []*record.Record
	err     error
}

func (self *sliceSource) Produce(_ context.Context, emit EmitFunc) error {
	for _, r := range self.records {
		if err := emit(r); err != nil {
			return err
		}
	}
	return self.err
}

// failingStore refuses writes to one table.
type failingStore struct {
	store.Store
	table string
}

func (self *failingStore) Begin(ctx context.Context) (store.Transaction, error) {
	tx, err := self.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTransaction{Transaction: tx, table: self.table}, nil
}

type failingTransaction struct {
	store.Transaction
	table string
}

func (self *failingTransaction) Put(ctx context.Context, table string, p, c store.Key, v store.Values) error {
	if table == self.table {
		return store.WrapStoreError(errors.New("disk full"), "put")
	}
	return self.Transaction.Put(ctx, table, p, c, v)
}

func TestLoaderCountsSuccessAndFailure(t *testing.T) {
	ctx := context.Background()
	records := []*record.Record{
		record.NewNewOrder(1, 1, 2101),
		record.NewNewOrder(1, 1, 2102),
		record.NewOrderSecondary(1, 1, 5, 2101),
		record.NewNewOrder(1, 2, 2101),
	}
	mem := store.NewMemoryStore()
	s := &failingStore{Store: mem, table: record.OrderSecondaryTable}
	l := NewLoader(s, &sliceSource{records: records}, log.NewNop(), Options{
		Threads:   3,
		QueueSize: 1,
	})
	stats, err := l.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, Stats{Queued: 4, Succeeded: 3, Failed: 1}, stats)

	tx, _ := mem.Begin(ctx)
	rows, err := tx.Scan(ctx, &store.Scan{Table: record.NewOrderTable, Partition: record.NewOrderKey(1, 1)})
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestLoaderReturnsProducerError(t *testing.T) {
	boom := errors.New("boom")
	l := NewLoader(store.NewMemoryStore(), &sliceSource{
		records: []*record.Record{record.NewNewOrder(1, 1, 2101)},
		err:     boom,
	}, log.NewNop(), Options{Threads: 1})
	stats, err := l.Run(context.Background())
	require.True(t, errors.Is(err, boom))
	require.Equal(t, int64(1), stats.Succeeded)
}

func TestLoaderOverwrite(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	item := record.NewRecord(record.ItemTable, record.ItemKey(1), nil, store.Values{
		record.ItemPrice: store.DoubleValue(1.5),
	})
	l := NewLoader(mem, &sliceSource{records: []*record.Record{item, item}}, log.NewNop(), Options{
		Threads:   2,
		Overwrite: true,
	})
	stats, err := l.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Queued)
	// two writers of the same row may conflict, every record is accounted for
	require.Equal(t, int64(2), stats.Succeeded+stats.Failed)

	tx, _ := mem.Begin(ctx)
	row, err := tx.Get(ctx, record.ItemTable, record.ItemKey(1), nil)
	require.NoError(t, err)
	require.Equal(t, 1.5, row.Double(record.ItemPrice))
}

func TestLoaderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	records := make([]*record.Record, 0, 10)
	for i := 1; i <= 10; i++ {
		records = append(records, record.NewNewOrder(1, 1, i))
	}
	l := NewLoader(store.NewMemoryStore(), &sliceSource{records: records}, log.NewNop(), Options{
		Threads:   1,
		QueueSize: 1,
	})
	_, err := l.Run(ctx)
	require.Error(t, err)
}

func TestSyntheticSource(t *testing.T) {
	if testing.Short() {
		t.Skip("generates a full warehouse")
	}
	src := NewSyntheticSource(SyntheticOptions{
		Seed:           1,
		StartWarehouse: 2,
		EndWarehouse:   2,
		SkipItems:      true,
		UseTableIndex:  true,
		Now:            time.Now().UnixNano() / int64(time.Millisecond),
	})
	counts := make(map[string]int)
	lines := 0
	customersWithOrder := make(map[string]bool)
	err := src.Produce(context.Background(), func(r *record.Record) error {
		counts[r.Table()]++
		switch r.Table() {
		case record.OrderTable:
			lines += int(r.Values()[record.OrderLineCount].(store.IntValue))
			require.NotNil(t, r.Values()[record.OrderIndex])
			customersWithOrder[r.PartitionKey().Encode()+r.Values()[record.OrderCustomerID].String()] = true
		case record.CustomerTable:
			require.NotNil(t, r.Values()[record.CustomerIndex])
		case record.WarehouseTable:
			require.Equal(t, record.WarehouseKey(2), r.PartitionKey())
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 0, counts[record.ItemTable])
	require.Equal(t, 1, counts[record.WarehouseTable])
	require.Equal(t, record.StocksPerWarehouse, counts[record.StockTable])
	require.Equal(t, 10, counts[record.DistrictTable])
	require.Equal(t, 30000, counts[record.CustomerTable])
	require.Equal(t, 30000, counts[record.CustomerSecondaryTable])
	require.Equal(t, 30000, counts[record.HistoryTable])
	require.Equal(t, 30000, counts[record.OrderTable])
	require.Equal(t, 30000, counts[record.OrderSecondaryTable])
	require.Equal(t, 9000, counts[record.NewOrderTable])
	require.Equal(t, lines, counts[record.OrderLineTable])
	require.Equal(t, 30000, len(customersWithOrder))
}

func writeFile(t *testing.T, dir, name, content string) {
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestCSVLoad(t *testing.T) {
	dir, err := ioutil.TempDir("", "tpcc-csv")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	writeFile(t, dir, "warehouse.csv", "\xEF\xBB\xBF"+
		strings.Join(record.Headers[record.WarehouseTable], ",")+"\n"+
		"1,300000.0,0.1,wname,s1,s2,city,ST,123411111\n")
	writeFile(t, dir, "district.csv",
		"1,1,30000.0,0.05,3001,dname,s1,s2,city,ST,123411111\n"+
			"1,2,30000.0,0.05,3001,dname,s1,s2,city,ST,123411111\n")
	writeFile(t, dir, "oorder.csv",
		"1,1,1,7,3,5,1,2021-06-01 12:30:00\n"+
			"1,1,2101,8,\\N,5,1,2021-06-01 12:30:00\n")
	writeFile(t, dir, "history.csv",
		"1,1,1,1,1,2021-06-01 12:30:00,10.0,hdata\n"+
			"2,1,1,1,1,2021-06-01 12:30:00,10.0,hdata\n")

	ctx := context.Background()
	mem := store.NewMemoryStore()
	l := NewLoader(mem, NewCSVSource(dir, 1, log.NewNop()), log.NewNop(), Options{Threads: 2})
	stats, err := l.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, Stats{Queued: 7, Succeeded: 7}, stats)

	tx, _ := mem.Begin(ctx)
	row, err := tx.Get(ctx, record.WarehouseTable, record.WarehouseKey(1), nil)
	require.NoError(t, err)
	require.Equal(t, "wname", row.Text(record.WarehouseName))
	require.Equal(t, 0.1, row.Double(record.WarehouseTax))

	row, err = tx.Get(ctx, record.OrderTable, record.OrderKey(1, 1), record.OrderClustering(2101))
	require.NoError(t, err)
	require.True(t, row.IsNull(record.OrderCarrierID))
	require.Equal(t, record.OrderIndexValue(1, 1, 8), row.Text(record.OrderIndex))

	index := store.TextColumn(record.OrderIndex, record.OrderIndexValue(1, 1, 7))
	rows, err := tx.Scan(ctx, &store.Scan{Table: record.OrderTable, Index: &index})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 3, rows[0].Int(record.OrderCarrierID))
}

func TestCSVMalformedRow(t *testing.T) {
	dir, err := ioutil.TempDir("", "tpcc-csv")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	writeFile(t, dir, "item.csv", "1,name,not-a-price,data,3\n")

	l := NewLoader(store.NewMemoryStore(), NewCSVSource(dir, 1, log.NewNop()), log.NewNop(), Options{})
	_, err = l.Run(context.Background())
	require.Error(t, err)
	require.True(t, store.IsValidation(err))
}
