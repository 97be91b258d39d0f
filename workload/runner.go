package workload

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hhkbp2/tpccbench/generator"
	"github.com/hhkbp2/tpccbench/log"
	"github.com/hhkbp2/tpccbench/measurement"
	"github.com/hhkbp2/tpccbench/store"
	"github.com/hhkbp2/tpccbench/transaction"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultReportInterval = time.Second
)

type Options struct {
	Threads    int
	Warehouses int
	Mix        Mix
	// RampUp is excluded from the measurement window that follows it.
	RampUp   time.Duration
	Duration time.Duration
	// Times switches to a serial run of that many transactions, without
	// retries. Zero means a timed run.
	Times int
	// Backoff is the pause before retrying a conflicting transaction.
	Backoff               time.Duration
	Seed                  int64
	UseTableIndex         bool
	WarehouseDistribution string
	ReportInterval        time.Duration
}

// Report summarizes a run. Counters cover the whole run, Measured and
// Latency only the measurement window.
type Report struct {
	Committed  int64
	Retried    int64
	RolledBack int64
	Errored    int64
	Measured   int64
	Latency    time.Duration
	Window     time.Duration
}

// TPS is the committed throughput of the measurement window.
func (self Report) TPS() float64 {
	if self.Window <= 0 {
		return 0
	}
	return float64(self.Measured) / self.Window.Seconds()
}

func (self Report) AverageLatency() time.Duration {
	if self.Measured == 0 {
		return 0
	}
	return self.Latency / time.Duration(self.Measured)
}

// Runner drives TPC-C transactions against a store from Threads workers.
type Runner struct {
	store        store.Store
	logger       log.Logger
	measurements *measurement.Measurements
	opts         Options
	seeds        *generator.CounterGenerator

	committed  *atomic.Int64
	retried    *atomic.Int64
	rolledBack *atomic.Int64
	errored    *atomic.Int64
	measured   *atomic.Int64
	latency    *atomic.Int64
}

func NewRunner(s store.Store, logger log.Logger, measurements *measurement.Measurements, opts Options) (*Runner, error) {
	if err := opts.Mix.Validate(); err != nil {
		return nil, err
	}
	if opts.Warehouses < 1 {
		return nil, store.NewValidationError("warehouses must be at least 1, got %d", opts.Warehouses)
	}
	if opts.Threads < 1 {
		opts.Threads = 1
	}
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = DefaultReportInterval
	}
	if measurements == nil {
		measurements = measurement.NewMeasurements(measurement.DefaultOptions())
	}
	return &Runner{
		store:        s,
		logger:       logger,
		measurements: measurements,
		opts:         opts,
		seeds:        generator.NewCounterGenerator(opts.Seed),
		committed:    atomic.NewInt64(0),
		retried:      atomic.NewInt64(0),
		rolledBack:   atomic.NewInt64(0),
		errored:      atomic.NewInt64(0),
		measured:     atomic.NewInt64(0),
		latency:      atomic.NewInt64(0),
	}, nil
}

// worker is the per goroutine state: its own random source, chooser and
// one reusable profile per transaction type.
type worker struct {
	id       int
	chooser  *Chooser
	profiles map[transaction.Type]transaction.Profile
}

func (self *Runner) newWorker(id int) (*worker, error) {
	rnd := generator.NewRandom(self.seeds.NextInt())
	chooser, err := NewChooser(rnd, self.opts.Mix)
	if err != nil {
		return nil, err
	}
	env := transaction.NewEnv(rnd, self.opts.Warehouses, transaction.NewResolver(self.opts.UseTableIndex))
	env.Warehouse, err = WarehouseChooser(rnd, self.opts.WarehouseDistribution, self.opts.Warehouses)
	if err != nil {
		return nil, err
	}
	profiles := make(map[transaction.Type]transaction.Profile, len(transaction.Types))
	for _, t := range transaction.Types {
		if profiles[t], err = transaction.NewProfile(t, env); err != nil {
			return nil, err
		}
	}
	return &worker{id: id, chooser: chooser, profiles: profiles}, nil
}

func (self *worker) next() transaction.Profile {
	p := self.profiles[self.chooser.Next()]
	p.Generate()
	return p
}

func (self *Runner) Report(window time.Duration) Report {
	return Report{
		Committed:  self.committed.Load(),
		Retried:    self.retried.Load(),
		RolledBack: self.rolledBack.Load(),
		Errored:    self.errored.Load(),
		Measured:   self.measured.Load(),
		Latency:    time.Duration(self.latency.Load()),
		Window:     window,
	}
}

// Run executes the configured workload. A fatal transaction error ends
// the worker that hit it and is returned once every worker is done.
func (self *Runner) Run(ctx context.Context) (Report, error) {
	self.logger.Info("workload starting",
		"threads", self.opts.Threads, "warehouses", self.opts.Warehouses, "mix", self.opts.Mix.String(),
		"table_index", self.opts.UseTableIndex)
	if self.opts.Times > 0 {
		return self.runTimes(ctx)
	}
	return self.runTimed(ctx)
}

// runTimes runs a fixed number of serial transactions and stops at the
// first failure, conflicts included.
func (self *Runner) runTimes(ctx context.Context) (Report, error) {
	w, err := self.newWorker(0)
	if err != nil {
		return Report{}, err
	}
	start := time.Now()
	for i := 0; i < self.opts.Times; i++ {
		if err := ctx.Err(); err != nil {
			return self.Report(time.Since(start)), err
		}
		p := w.next()
		begin := time.Now()
		outcome, err := p.Execute(ctx, self.store)
		if err := self.account(p.Type(), outcome, err, begin, true); err != nil {
			return self.Report(time.Since(start)), err
		}
		if outcome == transaction.Conflict {
			return self.Report(time.Since(start)), err
		}
	}
	return self.Report(time.Since(start)), nil
}

func (self *Runner) runTimed(ctx context.Context) (Report, error) {
	start := time.Now()
	measureFrom := start.Add(self.opts.RampUp)
	end := measureFrom.Add(self.opts.Duration)

	done := make(chan struct{})
	reporterDone := make(chan struct{})
	go func() {
		defer close(reporterDone)
		self.report(done)
	}()

	var workers errgroup.Group
	for i := 0; i < self.opts.Threads; i++ {
		w, err := self.newWorker(i)
		if err != nil {
			close(done)
			<-reporterDone
			return Report{}, err
		}
		workers.Go(func() error {
			return self.work(ctx, w, measureFrom, end)
		})
	}
	err := workers.Wait()
	close(done)
	<-reporterDone

	window := time.Since(measureFrom)
	if window > self.opts.Duration {
		window = self.opts.Duration
	}
	report := self.Report(window)
	self.logger.Info("workload finished",
		"committed", report.Committed, "retried", report.Retried,
		"rolled_back", report.RolledBack, "errored", report.Errored,
		"tps", report.TPS(), "avg_latency", report.AverageLatency())
	return report, err
}

// work loops until the deadline. The deadline is checked before each new
// transaction only, a started one runs to completion.
func (self *Runner) work(ctx context.Context, w *worker, measureFrom, end time.Time) error {
	for {
		if ctx.Err() != nil || !time.Now().Before(end) {
			return nil
		}
		p := w.next()
		begin := time.Now()
		measuring := !begin.Before(measureFrom)
		for {
			outcome, err := p.Execute(ctx, self.store)
			if err := self.account(p.Type(), outcome, err, begin, measuring); err != nil {
				self.logger.Error("transaction failed", "worker", w.id, "type", p.Type().String(), "error", err)
				return err
			}
			if outcome != transaction.Conflict {
				break
			}
			if !self.backoff(ctx) {
				return nil
			}
		}
	}
}

// account updates counters and measurements for one attempt. It returns
// the error for a fatal outcome only.
func (self *Runner) account(t transaction.Type, outcome transaction.Outcome, err error, begin time.Time, measuring bool) error {
	name := t.String()
	switch outcome {
	case transaction.Committed:
		self.committed.Inc()
		if measuring {
			latency := time.Since(begin)
			self.measured.Inc()
			self.latency.Add(int64(latency))
			self.measurements.Measure(name, latency.Microseconds())
		}
		self.measurements.ReportStatus(name, measurement.StatusOK)
	case transaction.Conflict:
		self.retried.Inc()
		self.measurements.ReportStatus(name, measurement.StatusConflict)
		self.logger.Debug("transaction conflict, retrying", "type", name, "error", err)
	case transaction.RolledBack:
		self.rolledBack.Inc()
		self.measurements.ReportStatus(name, measurement.StatusRolledBack)
	default:
		self.errored.Inc()
		self.measurements.ReportStatus(name, measurement.StatusError)
		if err == nil {
			err = errors.Newf("%s failed without error", name)
		}
		return errors.Wrapf(err, "%s", name)
	}
	return nil
}

// backoff sleeps before a retry. It returns false when the run is
// cancelled meanwhile.
func (self *Runner) backoff(ctx context.Context) bool {
	if self.opts.Backoff <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(self.opts.Backoff)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// report logs the transactions committed in every interval until done is
// closed.
func (self *Runner) report(done <-chan struct{}) {
	ticker := time.NewTicker(self.opts.ReportInterval)
	defer ticker.Stop()
	last := int64(0)
	elapsed := 0
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			elapsed++
			current := self.committed.Load()
			self.logger.Info("progress",
				"interval", elapsed, "committed", current-last, "total", current,
				"retried", self.retried.Load(), "latency", self.measurements.GetSummary())
			last = current
		}
	}
}
