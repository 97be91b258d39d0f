package store

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/hhkbp2/tpccbench/log"
)

// DelayStore wraps another store, sleeps before every operation and
// optionally logs each call. It is used to check the harness itself
// against a store with a known latency.
type DelayStore struct {
	inner          Store
	logger         log.Logger
	verbose        bool
	randomizeDelay bool
	toDelay        time.Duration

	lock sync.Mutex
	rnd  *rand.Rand
}

type DelayOptions struct {
	Delay     time.Duration
	Randomize bool
	Verbose   bool
	Seed      int64
}

func NewDelayStore(inner Store, logger log.Logger, opts DelayOptions) *DelayStore {
	return &DelayStore{
		inner:          inner,
		logger:         logger,
		verbose:        opts.Verbose,
		randomizeDelay: opts.Randomize,
		toDelay:        opts.Delay,
		rnd:            rand.New(rand.NewSource(opts.Seed)),
	}
}

func (self *DelayStore) Delay() {
	if self.toDelay <= 0 {
		return
	}
	d := self.toDelay
	if self.randomizeDelay {
		self.lock.Lock()
		d = time.Duration(self.rnd.Int63n(int64(self.toDelay)))
		self.lock.Unlock()
		if d == 0 {
			return
		}
	}
	time.Sleep(d)
}

func (self *DelayStore) Begin(ctx context.Context) (Transaction, error) {
	self.Delay()
	tx, err := self.inner.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &delayTransaction{store: self, inner: tx}, nil
}

func (self *DelayStore) Close() error {
	return self.inner.Close()
}

func (self *DelayStore) CreateSchema(ctx context.Context, tables []*TableSchema) error {
	if c, ok := self.inner.(SchemaCreator); ok {
		return c.CreateSchema(ctx, tables)
	}
	return nil
}

func (self *DelayStore) trace(msg string, keyAndValues ...interface{}) {
	if self.verbose {
		self.logger.Debug(msg, keyAndValues...)
	}
}

type delayTransaction struct {
	store *DelayStore
	inner Transaction
}

func (self *delayTransaction) Get(ctx context.Context, table string, partition, clustering Key) (*Row, error) {
	self.store.Delay()
	self.store.trace("GET", "table", table, "partition", partition.String(), "clustering", clustering.String())
	return self.inner.Get(ctx, table, partition, clustering)
}

func (self *delayTransaction) Scan(ctx context.Context, scan *Scan) ([]*Row, error) {
	self.store.Delay()
	if scan.Index != nil {
		self.store.trace("SCAN", "table", scan.Table, "index", scan.Index.Name, "value", scan.Index.Value)
	} else {
		self.store.trace("SCAN", "table", scan.Table, "partition", scan.Partition.String(),
			"start", scan.Start.String(), "end", scan.End.String(),
			"ordering", scan.Ordering.String(), "limit", scan.Limit)
	}
	return self.inner.Scan(ctx, scan)
}

func (self *delayTransaction) Put(ctx context.Context, table string, partition, clustering Key, values Values) error {
	self.store.Delay()
	self.store.trace("PUT", "table", table, "partition", partition.String(),
		"clustering", clustering.String(), "values", concatValues(values))
	return self.inner.Put(ctx, table, partition, clustering, values)
}

func (self *delayTransaction) Delete(ctx context.Context, table string, partition, clustering Key) error {
	self.store.Delay()
	self.store.trace("DELETE", "table", table, "partition", partition.String(), "clustering", clustering.String())
	return self.inner.Delete(ctx, table, partition, clustering)
}

func (self *delayTransaction) Commit(ctx context.Context) error {
	self.store.Delay()
	self.store.trace("COMMIT")
	return self.inner.Commit(ctx)
}

func (self *delayTransaction) Abort(ctx context.Context) error {
	self.store.trace("ABORT")
	return self.inner.Abort(ctx)
}

func concatValues(values Values) string {
	parts := make([]string, 0, len(values))
	for k, v := range values {
		if v == nil {
			parts = append(parts, k+"=NULL")
		} else {
			parts = append(parts, k+"="+v.String())
		}
	}
	return strings.Join(parts, ", ")
}
