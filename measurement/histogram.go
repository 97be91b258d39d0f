package measurement

import (
	"fmt"
	"math"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// OneMeasurementHistogram keeps latencies in 1ms wide buckets.
type OneMeasurementHistogram struct {
	*OneMeasurementBase
	buckets   int64
	histogram []int64
	// Operations above the last bucket.
	histogramOverflow int64
	operations        int64
	// Sum of latencies in us.
	totalLatency int64
	// Sum of squared latencies, for the variance.
	totalSquaredLatency float64
	windowOperations    int64
	windowTotalLatency  int64
	min                 int64
	max                 int64
}

func NewOneMeasurementHistogram(name string, buckets int64) *OneMeasurementHistogram {
	if buckets < 1 {
		buckets = 1
	}
	return &OneMeasurementHistogram{
		OneMeasurementBase: NewOneMeasurementBase(name),
		buckets:            buckets,
		histogram:          make([]int64, buckets),
		min:                -1,
		max:                -1,
	}
}

func (self *OneMeasurementHistogram) Measure(latency int64) {
	self.MeasureLock.Lock()
	defer self.MeasureLock.Unlock()

	// latency reported in us and collected in buckets by ms
	bucket := latency / 1000
	if bucket >= self.buckets {
		self.histogramOverflow++
	} else {
		self.histogram[bucket]++
	}
	self.operations++
	self.totalLatency += latency
	self.totalSquaredLatency += math.Pow(float64(latency), 2.0)
	self.windowOperations++
	self.windowTotalLatency += latency

	if (self.min < 0) || (latency < self.min) {
		self.min = latency
	}
	if (self.max < 0) || (latency > self.max) {
		self.max = latency
	}
}

func (self *OneMeasurementHistogram) GetSummary() string {
	self.MeasureLock.Lock()
	defer self.MeasureLock.Unlock()
	if self.windowOperations == 0 {
		return ""
	}
	report := float64(self.windowTotalLatency) / float64(self.windowOperations)
	self.windowOperations = 0
	self.windowTotalLatency = 0
	return fmt.Sprintf("[%s AverageLatency(us)=%.2f]", self.GetName(), report)
}

func (self *OneMeasurementHistogram) ExportMeasurements(exporter Exporter) error {
	self.MeasureLock.Lock()
	defer self.MeasureLock.Unlock()
	name := self.GetName()
	mean, variance := 0.0, 0.0
	if self.operations > 0 {
		mean = float64(self.totalLatency) / float64(self.operations)
		variance = self.totalSquaredLatency/float64(self.operations) - math.Pow(mean, 2.0)
	}
	writes := []struct {
		measurement string
		v           interface{}
	}{
		{"Operations", self.operations},
		{"AverageLatency(us)", mean},
		{"LatencyVariance(us)", variance},
		{"MinLatency(us)", self.min},
		{"MaxLatency(us)", self.max},
	}
	for _, w := range writes {
		if err := exporter.Write(name, w.measurement, w.v); err != nil {
			return err
		}
	}

	opCounter := int64(0)
	done95th := false
	for i := int64(0); i < self.buckets && self.operations > 0; i++ {
		opCounter += self.histogram[i]
		percentage := float64(opCounter) / float64(self.operations)
		if !done95th && percentage >= 0.95 {
			if err := exporter.Write(name, "95thPercentileLatency(us)", i*1000); err != nil {
				return err
			}
			done95th = true
		}
		if percentage >= 0.99 {
			if err := exporter.Write(name, "99thPercentileLatency(us)", i*1000); err != nil {
				return err
			}
			break
		}
	}
	if err := self.ExportStatusCounts(exporter); err != nil {
		return err
	}
	for i := int64(0); i < self.buckets; i++ {
		if err := exporter.Write(name, fmt.Sprintf("%d", i), self.histogram[i]); err != nil {
			return err
		}
	}
	return exporter.Write(name, fmt.Sprintf(">%d", self.buckets), self.histogramOverflow)
}

// OneMeasurementHdrHistogram keeps latencies in an HdrHistogram.
type OneMeasurementHdrHistogram struct {
	*OneMeasurementBase
	histogram   *hdrhistogram.Histogram
	window      *hdrhistogram.Histogram
	percentiles []int64
}

func NewOneMeasurementHdrHistogram(name string, opts Options) *OneMeasurementHdrHistogram {
	sig := opts.HdrSignificantFigures
	if sig < 1 || sig > 5 {
		sig = 3
	}
	max := opts.HdrMax
	if max < 2 {
		max = DefaultOptions().HdrMax
	}
	return &OneMeasurementHdrHistogram{
		OneMeasurementBase: NewOneMeasurementBase(name),
		histogram:          hdrhistogram.New(1, max, sig),
		window:             hdrhistogram.New(1, max, sig),
		percentiles:        opts.Percentiles,
	}
}

// Measure records a latency in us. Values out of range are clamped.
func (self *OneMeasurementHdrHistogram) Measure(latency int64) {
	self.MeasureLock.Lock()
	defer self.MeasureLock.Unlock()
	if latency < 1 {
		latency = 1
	}
	if latency > self.histogram.HighestTrackableValue() {
		latency = self.histogram.HighestTrackableValue()
	}
	self.histogram.RecordValue(latency)
	self.window.RecordValue(latency)
}

// GetSummary reports the window since the previous call.
func (self *OneMeasurementHdrHistogram) GetSummary() string {
	self.MeasureLock.Lock()
	defer self.MeasureLock.Unlock()
	h := self.window
	if h.TotalCount() == 0 {
		return ""
	}
	format := "[%s: Count=%d, Max=%d, Min=%d, Avg=%.2f, 90=%d, 99=%d, 99.9=%d, 99.99=%d]"
	ret := fmt.Sprintf(format,
		self.GetName(),
		h.TotalCount(),
		h.Max(),
		h.Min(),
		h.Mean(),
		h.ValueAtQuantile(90),
		h.ValueAtQuantile(99),
		h.ValueAtQuantile(99.9),
		h.ValueAtQuantile(99.99))
	h.Reset()
	return ret
}

// Count returns the number of recorded latencies.
func (self *OneMeasurementHdrHistogram) Count() int64 {
	self.MeasureLock.Lock()
	defer self.MeasureLock.Unlock()
	return self.histogram.TotalCount()
}

var (
	suffixes = []string{"th", "st", "nd", "rd", "th", "th", "th", "th", "th", "th"}
)

func ordinal(p int64) string {
	switch p % 100 {
	case 11, 12, 13:
		return fmt.Sprintf("%dth", p)
	default:
		return fmt.Sprintf("%d%s", p, suffixes[p%10])
	}
}

func (self *OneMeasurementHdrHistogram) ExportMeasurements(exporter Exporter) error {
	self.MeasureLock.Lock()
	defer self.MeasureLock.Unlock()
	name := self.GetName()
	h := self.histogram
	if err := exporter.Write(name, "Operations", h.TotalCount()); err != nil {
		return err
	}
	if err := exporter.Write(name, "AverageLatency(us)", h.Mean()); err != nil {
		return err
	}
	if err := exporter.Write(name, "MinLatency(us)", h.Min()); err != nil {
		return err
	}
	if err := exporter.Write(name, "MaxLatency(us)", h.Max()); err != nil {
		return err
	}
	for _, p := range self.percentiles {
		err := exporter.Write(name, ordinal(p)+"PercentileLatency(us)", h.ValueAtQuantile(float64(p)))
		if err != nil {
			return err
		}
	}
	return self.ExportStatusCounts(exporter)
}
