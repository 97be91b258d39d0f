package tpccbench

import (
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"github.com/hhkbp2/tpccbench/loader"
	"github.com/hhkbp2/tpccbench/log"
	"github.com/hhkbp2/tpccbench/measurement"
	"github.com/hhkbp2/tpccbench/store"
	"github.com/hhkbp2/tpccbench/workload"
)

const (
	// The store to benchmark, one of StoreNames().
	PropertyStore        = "store"
	PropertyStoreDefault = "memory"
	// Log level: verbose, debug, info, warn, error or quiet.
	PropertyLogLevel        = "log_level"
	PropertyLogLevelDefault = "info"
	// Seed of every random source. Workers derive their own seeds from it.
	PropertySeed        = "seed"
	PropertySeedDefault = "1"

	// Scale
	// The number of warehouses in the dataset.
	PropertyNumWarehouse        = "num_warehouse"
	PropertyNumWarehouseDefault = "1"
	// Loads the warehouse range [start, end]. Zero end means num_warehouse.
	PropertyStartWarehouse        = "start_warehouse"
	PropertyStartWarehouseDefault = "1"
	PropertyEndWarehouse          = "end_warehouse"
	PropertyEndWarehouseDefault   = "0"
	// Whether to resolve customers and orders through the secondary index
	// tables instead of the index columns.
	PropertyUseTableIndex        = "use_table_index"
	PropertyUseTableIndexDefault = "false"

	// Loader
	// A directory with one CSV file per table. Empty means generating the
	// dataset.
	PropertyDirectory        = "directory"
	PropertyDirectoryDefault = ""
	// The number of goroutines inserting records.
	PropertyLoadThreads        = "load_concurrency"
	PropertyLoadThreadsDefault = "1"
	// Skips the item table, for loading warehouse ranges on several hosts.
	PropertySkipItemLoad        = "skip_item_load"
	PropertySkipItemLoadDefault = "false"
	// Reads every row before writing it.
	PropertyLoadOverwrite        = "load_overwrite"
	PropertyLoadOverwriteDefault = "false"
	// Creates the tables before loading, on stores that support it.
	PropertyCreateSchema        = "create_schema"
	PropertyCreateSchemaDefault = "false"
	// Capacity of the record queue between producer and consumers.
	PropertyLoadQueueSize        = "load_queue_size"
	PropertyLoadQueueSizeDefault = "10000"
	// Loads the dataset before running or opening the shell, into the same
	// store. The memory and basic stores start empty otherwise.
	PropertyPreload        = "preload"
	PropertyPreloadDefault = "false"

	// Workload
	// Transaction mix in percent. The rates must add up to 100.
	PropertyRateNewOrder           = "rate_new_order"
	PropertyRateNewOrderDefault    = "45"
	PropertyRatePayment            = "rate_payment"
	PropertyRatePaymentDefault     = "43"
	PropertyRateOrderStatus        = "rate_order_status"
	PropertyRateOrderStatusDefault = "4"
	PropertyRateDelivery           = "rate_delivery"
	PropertyRateDeliveryDefault    = "4"
	PropertyRateStockLevel         = "rate_stock_level"
	PropertyRateStockLevelDefault  = "4"
	// Runs New-Order and Payment only, half each. Overrides the rates.
	PropertyNPOnly        = "np_only"
	PropertyNPOnlyDefault = "false"
	// The number of worker goroutines.
	PropertyNumThreads        = "num_threads"
	PropertyNumThreadsDefault = "1"
	// Measured run time in seconds, after the ramp up.
	PropertyDuration        = "duration"
	PropertyDurationDefault = "200"
	// Unmeasured warm up time in seconds.
	PropertyRampUpTime        = "ramp_up_time"
	PropertyRampUpTimeDefault = "60"
	// Runs that many serial transactions instead of a timed run.
	PropertyTimes        = "times"
	PropertyTimesDefault = "0"
	// Milliseconds to wait before retrying a conflicting transaction.
	PropertyBackoff        = "backoff"
	PropertyBackoffDefault = "0"
	// Home warehouse distribution: uniform, zipfian or hotspot.
	PropertyWarehouseDistribution        = "warehouse_distribution"
	PropertyWarehouseDistributionDefault = "uniform"
	// Seconds between two progress reports.
	PropertyStatusInterval        = "status_interval"
	PropertyStatusIntervalDefault = "1"

	// Measurement
	// histogram, hdrhistogram or hdrhistogram+histogram.
	PropertyMeasurementType        = "measurement_type"
	PropertyMeasurementTypeDefault = "hdrhistogram"
	// The exporter for the final measurements: text, json or jsonarray.
	PropertyExporter        = "exporter"
	PropertyExporterDefault = "text"
	// If set to the path of a file, measurements are written there instead
	// of stdout.
	PropertyExportFile        = "export_file"
	PropertyExportFileDefault = ""
	// The number of 1ms buckets of a plain histogram.
	PropertyHistogramBuckets        = "histogram.buckets"
	PropertyHistogramBucketsDefault = "1000"
	// Percentile values reported by hdr histograms.
	PropertyPercentiles        = "hdrhistogram.percentiles"
	PropertyPercentilesDefault = "50,90,95,99"

	// Basic store
	// Echo every operation.
	PropertyBasicVerbose        = "basic.verbose"
	PropertyBasicVerboseDefault = "false"
	// Milliseconds to sleep on every operation.
	PropertyBasicSimulateDelay        = "basic.simulate_delay"
	PropertyBasicSimulateDelayDefault = "0"
	// Sleep a random time up to the delay instead.
	PropertyBasicRandomizeDelay        = "basic.randomize_delay"
	PropertyBasicRandomizeDelayDefault = "true"
)

// PropertyDefaults lists every property with a default, for the CLI flags
// and for printing the effective configuration.
var PropertyDefaults = map[string]string{
	PropertyStore:                 PropertyStoreDefault,
	PropertyLogLevel:              PropertyLogLevelDefault,
	PropertySeed:                  PropertySeedDefault,
	PropertyNumWarehouse:          PropertyNumWarehouseDefault,
	PropertyStartWarehouse:        PropertyStartWarehouseDefault,
	PropertyEndWarehouse:          PropertyEndWarehouseDefault,
	PropertyUseTableIndex:         PropertyUseTableIndexDefault,
	PropertyDirectory:             PropertyDirectoryDefault,
	PropertyLoadThreads:           PropertyLoadThreadsDefault,
	PropertySkipItemLoad:          PropertySkipItemLoadDefault,
	PropertyLoadOverwrite:         PropertyLoadOverwriteDefault,
	PropertyCreateSchema:          PropertyCreateSchemaDefault,
	PropertyLoadQueueSize:         PropertyLoadQueueSizeDefault,
	PropertyPreload:               PropertyPreloadDefault,
	PropertyRateNewOrder:          PropertyRateNewOrderDefault,
	PropertyRatePayment:           PropertyRatePaymentDefault,
	PropertyRateOrderStatus:       PropertyRateOrderStatusDefault,
	PropertyRateDelivery:          PropertyRateDeliveryDefault,
	PropertyRateStockLevel:        PropertyRateStockLevelDefault,
	PropertyNPOnly:                PropertyNPOnlyDefault,
	PropertyNumThreads:            PropertyNumThreadsDefault,
	PropertyDuration:              PropertyDurationDefault,
	PropertyRampUpTime:            PropertyRampUpTimeDefault,
	PropertyTimes:                 PropertyTimesDefault,
	PropertyBackoff:               PropertyBackoffDefault,
	PropertyWarehouseDistribution: PropertyWarehouseDistributionDefault,
	PropertyStatusInterval:        PropertyStatusIntervalDefault,
	PropertyMeasurementType:       PropertyMeasurementTypeDefault,
	PropertyExporter:              PropertyExporterDefault,
	PropertyExportFile:            PropertyExportFileDefault,
	PropertyHistogramBuckets:      PropertyHistogramBucketsDefault,
	PropertyPercentiles:           PropertyPercentilesDefault,
	PropertyBasicVerbose:          PropertyBasicVerboseDefault,
	PropertyBasicSimulateDelay:    PropertyBasicSimulateDelayDefault,
	PropertyBasicRandomizeDelay:   PropertyBasicRandomizeDelayDefault,
}

var (
	configValidator *validator.Validate
	trans           ut.Translator
)

func init() {
	configValidator = validator.New()
	uni := ut.New(en.New(), en.New())
	trans, _ = uni.GetTranslator("en")
	_ = enTranslations.RegisterDefaultTranslations(configValidator, trans)
	// Report property names rather than Go field names.
	configValidator.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := field.Tag.Get("property")
		if name == "" {
			return field.Name
		}
		return name
	})
}

// Config is the typed view of Properties shared by the commands.
type Config struct {
	Store    string `property:"store" validate:"required"`
	LogLevel string `property:"log_level" validate:"oneof=verbose debug info warn error quiet"`
	Seed     int64  `property:"seed"`

	NumWarehouse   int  `property:"num_warehouse" validate:"min=1"`
	StartWarehouse int  `property:"start_warehouse" validate:"min=1"`
	EndWarehouse   int  `property:"end_warehouse" validate:"gtefield=StartWarehouse,ltefield=NumWarehouse"`
	UseTableIndex  bool `property:"use_table_index"`

	Directory     string `property:"directory"`
	LoadThreads   int    `property:"load_concurrency" validate:"min=1"`
	SkipItemLoad  bool   `property:"skip_item_load"`
	LoadOverwrite bool   `property:"load_overwrite"`
	CreateSchema  bool   `property:"create_schema"`
	LoadQueueSize int    `property:"load_queue_size" validate:"min=1"`
	Preload       bool   `property:"preload"`

	Mix                   workload.Mix
	NumThreads            int `property:"num_threads" validate:"min=1"`
	Duration              time.Duration
	RampUp                time.Duration
	Times                 int `property:"times" validate:"min=0"`
	Backoff               time.Duration
	WarehouseDistribution string `property:"warehouse_distribution" validate:"oneof=uniform zipfian hotspot"`
	StatusInterval        time.Duration

	Measurement measurement.Options
	Exporter    string `property:"exporter" validate:"required"`
	ExportFile  string `property:"export_file"`
}

// NewConfig parses and validates every known property. Any malformed or
// inconsistent value yields a ValidationError.
func NewConfig(props Properties) (*Config, error) {
	p := &propertyParser{props: props}
	config := &Config{
		Store:                 props.GetDefault(PropertyStore, PropertyStoreDefault),
		LogLevel:              strings.ToLower(props.GetDefault(PropertyLogLevel, PropertyLogLevelDefault)),
		Seed:                  p.int64(PropertySeed),
		NumWarehouse:          p.int(PropertyNumWarehouse),
		StartWarehouse:        p.int(PropertyStartWarehouse),
		EndWarehouse:          p.int(PropertyEndWarehouse),
		UseTableIndex:         p.bool(PropertyUseTableIndex),
		Directory:             props.GetDefault(PropertyDirectory, PropertyDirectoryDefault),
		LoadThreads:           p.int(PropertyLoadThreads),
		SkipItemLoad:          p.bool(PropertySkipItemLoad),
		LoadOverwrite:         p.bool(PropertyLoadOverwrite),
		CreateSchema:          p.bool(PropertyCreateSchema),
		LoadQueueSize:         p.int(PropertyLoadQueueSize),
		Preload:               p.bool(PropertyPreload),
		NumThreads:            p.int(PropertyNumThreads),
		Duration:              p.duration(PropertyDuration, time.Second),
		RampUp:                p.duration(PropertyRampUpTime, time.Second),
		Times:                 p.int(PropertyTimes),
		Backoff:               p.duration(PropertyBackoff, time.Millisecond),
		WarehouseDistribution: props.GetDefault(PropertyWarehouseDistribution, PropertyWarehouseDistributionDefault),
		StatusInterval:        p.duration(PropertyStatusInterval, time.Second),
		Exporter:              props.GetDefault(PropertyExporter, PropertyExporterDefault),
		ExportFile:            props.GetDefault(PropertyExportFile, PropertyExportFileDefault),
	}
	if config.EndWarehouse == 0 {
		config.EndWarehouse = config.NumWarehouse
	}
	if p.bool(PropertyNPOnly) {
		config.Mix = workload.NPOnlyMix
	} else {
		config.Mix = workload.Mix{
			NewOrder:    p.int(PropertyRateNewOrder),
			Payment:     p.int(PropertyRatePayment),
			OrderStatus: p.int(PropertyRateOrderStatus),
			Delivery:    p.int(PropertyRateDelivery),
			StockLevel:  p.int(PropertyRateStockLevel),
		}
	}
	config.Measurement = p.measurement()
	if p.err != nil {
		return nil, p.err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (self *Config) Validate() error {
	if err := configValidator.Struct(self); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(errs))
			for _, msg := range errs.Translate(trans) {
				msgs = append(msgs, msg)
			}
			sort.Strings(msgs)
			return store.NewValidationError("%s", strings.Join(msgs, "; "))
		}
		return store.NewValidationError("%s", err)
	}
	for name, d := range map[string]time.Duration{
		PropertyDuration:       self.Duration,
		PropertyRampUpTime:     self.RampUp,
		PropertyBackoff:        self.Backoff,
		PropertyStatusInterval: self.StatusInterval,
	} {
		if d < 0 {
			return store.NewValidationError("%s must not be negative", name)
		}
	}
	if self.Times == 0 && self.Duration == 0 {
		return store.NewValidationError("either %s or %s must be positive", PropertyDuration, PropertyTimes)
	}
	if _, ok := measurement.Exporters[self.Exporter]; !ok {
		return store.NewValidationError("unsupported measurement exporter %q, valid: %s",
			self.Exporter, strings.Join(measurement.ExporterNames(), ", "))
	}
	return self.Mix.Validate()
}

// LoaderOptions configures the bulk loader.
func (self *Config) LoaderOptions() loader.Options {
	return loader.Options{
		Threads:         self.LoadThreads,
		Overwrite:       self.LoadOverwrite,
		QueueSize:       self.LoadQueueSize,
		MonitorInterval: self.StatusInterval,
	}
}

// SyntheticOptions configures the generated dataset.
func (self *Config) SyntheticOptions() loader.SyntheticOptions {
	return loader.SyntheticOptions{
		Seed:           self.Seed,
		StartWarehouse: self.StartWarehouse,
		EndWarehouse:   self.EndWarehouse,
		SkipItems:      self.SkipItemLoad,
		UseTableIndex:  self.UseTableIndex,
		Now:            time.Now().UnixNano() / int64(time.Millisecond),
	}
}

// RunnerOptions configures the workload runner.
func (self *Config) RunnerOptions() workload.Options {
	return workload.Options{
		Threads:               self.NumThreads,
		Warehouses:            self.NumWarehouse,
		Mix:                   self.Mix,
		RampUp:                self.RampUp,
		Duration:              self.Duration,
		Times:                 self.Times,
		Backoff:               self.Backoff,
		Seed:                  self.Seed,
		UseTableIndex:         self.UseTableIndex,
		WarehouseDistribution: self.WarehouseDistribution,
		ReportInterval:        self.StatusInterval,
	}
}

// Logger builds the logger for the configured level.
func (self *Config) Logger() (log.ZapLogger, error) {
	return log.NewLogger(self.LogLevel)
}

// propertyParser keeps the first parse error so NewConfig reads like a
// plain list of assignments.
type propertyParser struct {
	props Properties
	err   error
}

func (self *propertyParser) keep(err error) {
	if self.err == nil {
		self.err = err
	}
}

func (self *propertyParser) int(key string) int {
	v, err := self.props.GetInt(key)
	self.keep(err)
	return v
}

func (self *propertyParser) int64(key string) int64 {
	v, err := self.props.GetInt64(key)
	self.keep(err)
	return v
}

func (self *propertyParser) bool(key string) bool {
	v, err := self.props.GetBool(key)
	self.keep(err)
	return v
}

func (self *propertyParser) duration(key string, unit time.Duration) time.Duration {
	v, err := self.props.GetDuration(key, unit)
	self.keep(err)
	return v
}

func (self *propertyParser) measurement() measurement.Options {
	opts := measurement.DefaultOptions()
	t, err := measurement.ParseType(self.props.GetDefault(PropertyMeasurementType, PropertyMeasurementTypeDefault))
	self.keep(err)
	opts.Type = t
	opts.Buckets = self.int64(PropertyHistogramBuckets)
	if opts.Buckets < 1 {
		self.keep(store.NewValidationError("%s must be positive", PropertyHistogramBuckets))
	}
	opts.Percentiles = opts.Percentiles[:0:0]
	for _, s := range strings.Split(self.props.GetDefault(PropertyPercentiles, PropertyPercentilesDefault), ",") {
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil || v <= 0 || v > 100 {
			self.keep(store.NewValidationError("invalid %s %q", PropertyPercentiles, s))
			continue
		}
		opts.Percentiles = append(opts.Percentiles, v)
	}
	return opts
}
