package measurement

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hhkbp2/tpccbench/store"
)

type Type uint8

const (
	TypeHistogram Type = 1 + iota
	TypeHdrHistogram
	TypeHdrHistogramAndHistogram
)

func ParseType(s string) (Type, error) {
	switch s {
	case "histogram":
		return TypeHistogram, nil
	case "hdrhistogram":
		return TypeHdrHistogram, nil
	case "hdrhistogram+histogram":
		return TypeHdrHistogramAndHistogram, nil
	default:
		return 0, store.NewValidationError("unknown measurement type %q", s)
	}
}

// StatusType is the final state of one transaction attempt.
type StatusType uint8

const (
	StatusOK StatusType = 1 + iota
	StatusConflict
	StatusRolledBack
	StatusError
)

func (self StatusType) String() string {
	switch self {
	case StatusOK:
		return "OK"
	case StatusConflict:
		return "CONFLICT"
	case StatusRolledBack:
		return "ROLLED_BACK"
	case StatusError:
		return "ERROR"
	default:
		return "UNKNOWN_STATUS"
	}
}

// Options configure the per operation measurements.
type Options struct {
	Type Type
	// Buckets is the number of 1ms buckets of a plain histogram.
	Buckets int64
	// Percentiles reported by hdr histograms.
	Percentiles []int64
	// HdrMax is the highest trackable latency in microseconds.
	HdrMax int64
	// HdrSignificantFigures is the value precision of hdr histograms, 1 to 5.
	HdrSignificantFigures int
}

func DefaultOptions() Options {
	return Options{
		Type:                  TypeHdrHistogram,
		Buckets:               1000,
		Percentiles:           []int64{50, 90, 95, 99},
		HdrMax:                60 * 1000 * 1000,
		HdrSignificantFigures: 3,
	}
}

// OneMeasurement is a single measured metric, such as NewOrder latency.
type OneMeasurement interface {
	Measure(latency int64)
	GetName() string
	// GetSummary returns a one line summary of the window since the last call.
	GetSummary() string
	ReportStatus(status StatusType)
	ExportMeasurements(exporter Exporter) error
}

type OneMeasurementBase struct {
	Name            string
	MeasureLock     sync.Mutex
	ReturnCodes     map[StatusType]uint32
	ReturnCodesLock sync.Mutex
}

func NewOneMeasurementBase(name string) *OneMeasurementBase {
	return &OneMeasurementBase{
		Name:        name,
		ReturnCodes: make(map[StatusType]uint32),
	}
}

func (self *OneMeasurementBase) GetName() string {
	return self.Name
}

func (self *OneMeasurementBase) ReportStatus(status StatusType) {
	self.ReturnCodesLock.Lock()
	defer self.ReturnCodesLock.Unlock()
	self.ReturnCodes[status]++
}

func (self *OneMeasurementBase) StatusCount(status StatusType) uint32 {
	self.ReturnCodesLock.Lock()
	defer self.ReturnCodesLock.Unlock()
	return self.ReturnCodes[status]
}

func (self *OneMeasurementBase) ExportStatusCounts(exporter Exporter) error {
	self.ReturnCodesLock.Lock()
	statuses := make([]StatusType, 0, len(self.ReturnCodes))
	for status := range self.ReturnCodes {
		statuses = append(statuses, status)
	}
	self.ReturnCodesLock.Unlock()
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
	for _, status := range statuses {
		err := exporter.Write(self.GetName(), fmt.Sprintf("Return=%s", status), self.StatusCount(status))
		if err != nil {
			return err
		}
	}
	return nil
}

// Measurements collects latencies and statuses per operation name.
// It is safe for concurrent use.
type Measurements struct {
	opts         Options
	measurements map[string]OneMeasurement
	lock         sync.RWMutex
}

func NewMeasurements(opts Options) *Measurements {
	return &Measurements{
		opts:         opts,
		measurements: make(map[string]OneMeasurement),
	}
}

func (self *Measurements) construct(name string) OneMeasurement {
	switch self.opts.Type {
	case TypeHistogram:
		return NewOneMeasurementHistogram(name, self.opts.Buckets)
	case TypeHdrHistogramAndHistogram:
		return NewTwoInOneMeasurement(name,
			NewOneMeasurementHdrHistogram("Hdr"+name, self.opts),
			NewOneMeasurementHistogram("Bucket"+name, self.opts.Buckets))
	default:
		return NewOneMeasurementHdrHistogram(name, self.opts)
	}
}

// Measure records one latency in microseconds.
func (self *Measurements) Measure(operation string, latency int64) {
	self.get(operation).Measure(latency)
}

func (self *Measurements) ReportStatus(operation string, status StatusType) {
	self.get(operation).ReportStatus(status)
}

func (self *Measurements) names() []string {
	self.lock.RLock()
	defer self.lock.RUnlock()
	names := make([]string, 0, len(self.measurements))
	for name := range self.measurements {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (self *Measurements) GetSummary() string {
	parts := make([]string, 0)
	for _, name := range self.names() {
		if s := self.get(name).GetSummary(); len(s) > 0 {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

func (self *Measurements) ExportMeasurements(exporter Exporter) error {
	for _, name := range self.names() {
		if err := self.get(name).ExportMeasurements(exporter); err != nil {
			return err
		}
	}
	return nil
}

func (self *Measurements) get(operation string) OneMeasurement {
	self.lock.RLock()
	m, ok := self.measurements[operation]
	self.lock.RUnlock()
	if ok {
		return m
	}
	self.lock.Lock()
	defer self.lock.Unlock()
	if m, ok = self.measurements[operation]; !ok {
		m = self.construct(operation)
		self.measurements[operation] = m
	}
	return m
}

// TwoInOneMeasurement delegates to two measurements.
type TwoInOneMeasurement struct {
	*OneMeasurementBase
	thing1 OneMeasurement
	thing2 OneMeasurement
}

func NewTwoInOneMeasurement(name string, thing1, thing2 OneMeasurement) *TwoInOneMeasurement {
	return &TwoInOneMeasurement{
		OneMeasurementBase: NewOneMeasurementBase(name),
		thing1:             thing1,
		thing2:             thing2,
	}
}

func (self *TwoInOneMeasurement) Measure(latency int64) {
	self.thing1.Measure(latency)
	self.thing2.Measure(latency)
}

func (self *TwoInOneMeasurement) ReportStatus(status StatusType) {
	self.thing1.ReportStatus(status)
}

func (self *TwoInOneMeasurement) GetSummary() string {
	return self.thing1.GetSummary() + " " + self.thing2.GetSummary()
}

func (self *TwoInOneMeasurement) ExportMeasurements(exporter Exporter) error {
	if err := self.thing1.ExportMeasurements(exporter); err != nil {
		return err
	}
	return self.thing2.ExportMeasurements(exporter)
}
