package workload

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hhkbp2/tpccbench/generator"
	"github.com/hhkbp2/tpccbench/loader"
	"github.com/hhkbp2/tpccbench/log"
	"github.com/hhkbp2/tpccbench/measurement"
	"github.com/hhkbp2/tpccbench/record"
	"github.com/hhkbp2/tpccbench/store"
	"github.com/hhkbp2/tpccbench/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMixValidate(t *testing.T) {
	require.NoError(t, DefaultMix.Validate())
	require.NoError(t, NPOnlyMix.Validate())
	require.True(t, NPOnlyMix.IsNPOnly())
	require.False(t, DefaultMix.IsNPOnly())

	err := Mix{NewOrder: 50, Payment: 43, OrderStatus: 4, Delivery: 4, StockLevel: 4}.Validate()
	require.True(t, store.IsValidation(err))
	err = Mix{NewOrder: 110, Payment: -10}.Validate()
	require.True(t, store.IsValidation(err))
	require.Equal(t, "NO=45 P=43 OS=4 D=4 SL=4", DefaultMix.String())
}

func TestChooserPick(t *testing.T) {
	c, err := NewChooser(generator.NewRandom(1), DefaultMix)
	require.NoError(t, err)
	cases := []struct {
		x    int
		want transaction.Type
	}{
		{1, transaction.TypeNewOrder},
		{45, transaction.TypeNewOrder},
		{46, transaction.TypePayment},
		{88, transaction.TypePayment},
		{89, transaction.TypeOrderStatus},
		{92, transaction.TypeOrderStatus},
		{93, transaction.TypeDelivery},
		{96, transaction.TypeDelivery},
		{97, transaction.TypeStockLevel},
		{100, transaction.TypeStockLevel},
	}
	for _, tc := range cases {
		got, err := c.Pick(tc.x)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "draw %d", tc.x)
	}
	_, err = c.Pick(101)
	require.Error(t, err)

	_, err = NewChooser(generator.NewRandom(1), Mix{NewOrder: 1})
	require.True(t, store.IsValidation(err))
}

func TestChooserNPOnly(t *testing.T) {
	c, err := NewChooser(generator.NewRandom(3), NPOnlyMix)
	require.NoError(t, err)
	seen := make(map[transaction.Type]int)
	for i := 0; i < 1000; i++ {
		seen[c.Next()]++
	}
	require.Len(t, seen, 2)
	require.True(t, seen[transaction.TypeNewOrder] > 400)
	require.True(t, seen[transaction.TypePayment] > 400)
}

func TestWarehouseChooser(t *testing.T) {
	rnd := generator.NewRandom(5)
	g, err := WarehouseChooser(rnd, DistributionZipfian, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), g.NextInt())

	for _, d := range []string{"", DistributionUniform, DistributionZipfian, DistributionHotspot} {
		g, err := WarehouseChooser(rnd, d, 4)
		require.NoError(t, err)
		for i := 0; i < 200; i++ {
			w := g.NextInt()
			require.True(t, w >= 1 && w <= 4, "%s drew %d", d, w)
		}
	}
	_, err = WarehouseChooser(rnd, "gaussian", 4)
	require.True(t, store.IsValidation(err))
}

func TestReport(t *testing.T) {
	r := Report{Measured: 50, Latency: 100 * time.Millisecond, Window: 10 * time.Second}
	require.Equal(t, 5.0, r.TPS())
	require.Equal(t, 2*time.Millisecond, r.AverageLatency())
	require.Equal(t, 0.0, Report{}.TPS())
	require.Equal(t, time.Duration(0), Report{}.AverageLatency())
}

func TestNewRunnerValidates(t *testing.T) {
	_, err := NewRunner(store.NewMemoryStore(), log.NewNop(), nil, Options{Mix: Mix{NewOrder: 99}, Warehouses: 1})
	require.True(t, store.IsValidation(err))
	_, err = NewRunner(store.NewMemoryStore(), log.NewNop(), nil, Options{Mix: DefaultMix})
	require.True(t, store.IsValidation(err))
}

func loadWarehouse(t *testing.T) *store.MemoryStore {
	s := store.NewMemoryStore()
	source := loader.NewSyntheticSource(loader.SyntheticOptions{
		Seed:           11,
		StartWarehouse: 1,
		EndWarehouse:   1,
		UseTableIndex:  true,
		Now:            time.Now().UnixNano() / int64(time.Millisecond),
	})
	stats, err := loader.NewLoader(s, source, log.NewNop(), loader.Options{Threads: 4}).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(0), stats.Failed)
	return s
}

func TestRunnerTimes(t *testing.T) {
	if testing.Short() {
		t.Skip("loads a full warehouse")
	}
	s := loadWarehouse(t)
	for _, useTableIndex := range []bool{false, true} {
		m := measurement.NewMeasurements(measurement.DefaultOptions())
		r, err := NewRunner(s, log.NewNop(), m, Options{
			Warehouses:    1,
			Mix:           DefaultMix,
			Times:         200,
			Seed:          42,
			UseTableIndex: useTableIndex,
		})
		require.NoError(t, err)
		report, err := r.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, int64(200), report.Committed+report.RolledBack)
		require.Equal(t, int64(0), report.Errored)
		require.Equal(t, report.Committed, report.Measured)
		require.Contains(t, m.GetSummary(), "NewOrder")
	}
}

func TestRunnerTimed(t *testing.T) {
	if testing.Short() {
		t.Skip("loads a full warehouse")
	}
	s := loadWarehouse(t)
	m := measurement.NewMeasurements(measurement.DefaultOptions())
	r, err := NewRunner(s, log.NewNop(), m, Options{
		Threads:        4,
		Warehouses:     1,
		Mix:            DefaultMix,
		RampUp:         100 * time.Millisecond,
		Duration:       400 * time.Millisecond,
		Seed:           42,
		ReportInterval: 100 * time.Millisecond,
	})
	require.NoError(t, err)
	report, err := r.Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.Committed > 0)
	require.True(t, report.Measured <= report.Committed)
	require.Equal(t, int64(0), report.Errored)
	require.True(t, report.Window <= 400*time.Millisecond)
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r, err := NewRunner(store.NewMemoryStore(), log.NewNop(), nil, Options{
		Threads:    2,
		Warehouses: 1,
		Mix:        DefaultMix,
		Duration:   time.Minute,
	})
	require.NoError(t, err)
	report, err := r.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), report.Committed)
}

var errDiskFull = errors.New("disk full")

// flakyStore fails the first conflicts commits with a ConflictError, lets
// the next commit through and fails every later one with failure.
type flakyStore struct {
	store.Store
	mu        sync.Mutex
	conflicts int
	failure   error
	commits   int
	// reads holds the keys each transaction read, in order.
	reads [][]string
}

func (self *flakyStore) Begin(ctx context.Context) (store.Transaction, error) {
	tx, err := self.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	self.reads = append(self.reads, nil)
	return &flakyTransaction{Transaction: tx, store: self, attempt: len(self.reads) - 1}, nil
}

func (self *flakyStore) attempts() [][]string {
	self.mu.Lock()
	defer self.mu.Unlock()
	return append([][]string(nil), self.reads...)
}

type flakyTransaction struct {
	store.Transaction
	store   *flakyStore
	attempt int
}

func (self *flakyTransaction) Get(ctx context.Context, table string, partition, clustering store.Key) (*store.Row, error) {
	self.store.mu.Lock()
	self.store.reads[self.attempt] = append(self.store.reads[self.attempt], table+partition.String()+clustering.String())
	self.store.mu.Unlock()
	return self.Transaction.Get(ctx, table, partition, clustering)
}

func (self *flakyTransaction) Commit(ctx context.Context) error {
	self.store.mu.Lock()
	switch {
	case self.store.conflicts > 0:
		self.store.conflicts--
		self.store.mu.Unlock()
		return store.NewConflictError("write skew on attempt %d", self.attempt)
	case self.store.commits > 0 && self.store.failure != nil:
		self.store.mu.Unlock()
		return self.store.failure
	}
	self.store.commits++
	self.store.mu.Unlock()
	return self.Transaction.Commit(ctx)
}

func loadDistricts(t *testing.T) *store.MemoryStore {
	s := store.NewMemoryStore()
	ctx := context.Background()
	rnd := generator.NewRandom(9)
	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	for d := 1; d <= record.DistrictsPerWarehouse; d++ {
		r := record.GenerateDistrict(rnd, 1, d)
		require.NoError(t, tx.Put(ctx, r.Table(), r.PartitionKey(), r.ClusteringKey(), r.Values()))
	}
	require.NoError(t, tx.Commit(ctx))
	return s
}

func TestRunnerRetriesConflicts(t *testing.T) {
	s := &flakyStore{Store: loadDistricts(t), conflicts: 3, failure: errDiskFull}
	r, err := NewRunner(s, log.NewNop(), nil, Options{
		Threads:    1,
		Warehouses: 1,
		Mix:        Mix{StockLevel: 100},
		Duration:   time.Minute,
		Backoff:    20 * time.Millisecond,
		Seed:       3,
	})
	require.NoError(t, err)

	start := time.Now()
	report, err := r.Run(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, errDiskFull), err.Error())
	require.False(t, store.IsConflict(err))
	require.True(t, time.Since(start) >= 60*time.Millisecond)

	require.Equal(t, int64(3), report.Retried)
	require.Equal(t, int64(1), report.Committed)
	require.Equal(t, int64(1), report.Errored)
	require.Equal(t, 1, s.commits)

	// Three conflicting attempts, the committed retry, then the failed
	// next transaction. Retries replay the same district.
	attempts := s.attempts()
	require.Len(t, attempts, 5)
	require.NotEmpty(t, attempts[0])
	for i := 1; i < 4; i++ {
		require.Equal(t, attempts[0], attempts[i], "attempt %d", i)
	}
}

func TestRunnerTimesStopsOnConflict(t *testing.T) {
	s := &flakyStore{Store: loadDistricts(t), conflicts: 1}
	r, err := NewRunner(s, log.NewNop(), nil, Options{
		Warehouses: 1,
		Mix:        Mix{StockLevel: 100},
		Times:      5,
		Seed:       3,
	})
	require.NoError(t, err)
	report, err := r.Run(context.Background())
	require.True(t, store.IsConflict(err))
	require.Equal(t, int64(1), report.Retried)
	require.Equal(t, int64(0), report.Committed)
	require.Len(t, s.attempts(), 1)
}
