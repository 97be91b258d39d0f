package loader

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hhkbp2/tpccbench/log"
	"github.com/hhkbp2/tpccbench/record"
	"github.com/hhkbp2/tpccbench/store"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultQueueSize       = 10000
	DefaultMonitorInterval = time.Second
)

type Options struct {
	Threads int
	// Overwrite reads every row before writing it. Otherwise rows are put
	// blindly.
	Overwrite       bool
	QueueSize       int
	MonitorInterval time.Duration
}

// Stats counts what happened to the queued records.
type Stats struct {
	Queued    int64
	Succeeded int64
	Failed    int64
}

// Loader pushes records from a Source through a bounded queue into a store.
// One producer fills the queue, Threads consumers insert one record per
// store transaction.
type Loader struct {
	store  store.Store
	source Source
	logger log.Logger
	opts   Options

	queued    *atomic.Int64
	succeeded *atomic.Int64
	failed    *atomic.Int64
}

func NewLoader(s store.Store, source Source, logger log.Logger, opts Options) *Loader {
	if opts.Threads < 1 {
		opts.Threads = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.MonitorInterval <= 0 {
		opts.MonitorInterval = DefaultMonitorInterval
	}
	return &Loader{
		store:     s,
		source:    source,
		logger:    logger,
		opts:      opts,
		queued:    atomic.NewInt64(0),
		succeeded: atomic.NewInt64(0),
		failed:    atomic.NewInt64(0),
	}
}

func (self *Loader) Stats() Stats {
	return Stats{
		Queued:    self.queued.Load(),
		Succeeded: self.succeeded.Load(),
		Failed:    self.failed.Load(),
	}
}

// Run loads everything the source produces. Per record failures are
// counted, only a producer failure is returned.
func (self *Loader) Run(ctx context.Context) (Stats, error) {
	queue := make(chan *record.Record, self.opts.QueueSize)
	done := make(chan struct{})

	var consumers errgroup.Group
	for i := 0; i < self.opts.Threads; i++ {
		consumers.Go(func() error {
			for r := range queue {
				self.insert(ctx, r)
			}
			return nil
		})
	}

	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		self.monitor(done)
	}()

	emit := func(r *record.Record) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case queue <- r:
			self.queued.Inc()
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	produceErr := self.source.Produce(ctx, emit)
	close(queue)

	consumers.Wait()
	close(done)
	<-monitorDone

	stats := self.Stats()
	self.logger.Info("load finished",
		"queued", stats.Queued, "succeeded", stats.Succeeded, "failed", stats.Failed)
	if produceErr != nil {
		return stats, errors.Wrap(produceErr, "produce records")
	}
	return stats, nil
}

func (self *Loader) monitor(done <-chan struct{}) {
	ticker := time.NewTicker(self.opts.MonitorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			stats := self.Stats()
			self.logger.Info("loading",
				"queued", stats.Queued, "succeeded", stats.Succeeded, "failed", stats.Failed)
		}
	}
}

func (self *Loader) insert(ctx context.Context, r *record.Record) {
	if err := self.write(ctx, r); err != nil {
		self.failed.Inc()
		self.logger.Warn("insert failed", "table", r.Table(), "key", r.String(), "error", err)
		return
	}
	self.succeeded.Inc()
}

func (self *Loader) write(ctx context.Context, r *record.Record) (err error) {
	tx, err := self.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Abort(ctx)
		}
	}()
	if self.opts.Overwrite {
		if _, err = tx.Get(ctx, r.Table(), r.PartitionKey(), r.ClusteringKey()); err != nil {
			return err
		}
	}
	if err = tx.Put(ctx, r.Table(), r.PartitionKey(), r.ClusteringKey(), r.Values()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
