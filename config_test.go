package tpccbench

import (
	"bytes"
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/hhkbp2/tpccbench/log"
	"github.com/hhkbp2/tpccbench/measurement"
	"github.com/hhkbp2/tpccbench/store"
	"github.com/hhkbp2/tpccbench/workload"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config, err := NewConfig(NewProperties())
	require.NoError(t, err)
	require.Equal(t, "memory", config.Store)
	require.Equal(t, 1, config.NumWarehouse)
	require.Equal(t, 1, config.EndWarehouse)
	require.Equal(t, workload.DefaultMix, config.Mix)
	require.Equal(t, 200*time.Second, config.Duration)
	require.Equal(t, 60*time.Second, config.RampUp)
	require.Equal(t, time.Duration(0), config.Backoff)
	require.Equal(t, measurement.TypeHdrHistogram, config.Measurement.Type)
	require.Equal(t, []int64{50, 90, 95, 99}, config.Measurement.Percentiles)

	opts := config.RunnerOptions()
	require.Equal(t, 1, opts.Threads)
	require.Equal(t, workload.DistributionUniform, opts.WarehouseDistribution)
	require.Equal(t, 1, config.SyntheticOptions().EndWarehouse)
	require.Equal(t, 1, config.LoaderOptions().Threads)
}

func TestConfigNPOnly(t *testing.T) {
	p := NewProperties()
	p.Add(PropertyNPOnly, "true")
	p.Add(PropertyRateNewOrder, "1")
	config, err := NewConfig(p)
	require.NoError(t, err)
	require.Equal(t, workload.NPOnlyMix, config.Mix)
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name     string
		props    map[string]string
		contains string
	}{
		{"rates", map[string]string{PropertyRatePayment: "42"}, "sum to 99"},
		{"warehouses", map[string]string{PropertyNumWarehouse: "0"}, "num_warehouse"},
		{"threads", map[string]string{PropertyNumThreads: "0"}, "num_threads"},
		{"range", map[string]string{PropertyNumWarehouse: "4", PropertyStartWarehouse: "3", PropertyEndWarehouse: "2"}, "end_warehouse"},
		{"beyond", map[string]string{PropertyNumWarehouse: "4", PropertyEndWarehouse: "5"}, "end_warehouse"},
		{"distribution", map[string]string{PropertyWarehouseDistribution: "gaussian"}, "warehouse_distribution"},
		{"log level", map[string]string{PropertyLogLevel: "loud"}, "log_level"},
		{"exporter", map[string]string{PropertyExporter: "xml"}, "xml"},
		{"measurement", map[string]string{PropertyMeasurementType: "sampled"}, "sampled"},
		{"percentiles", map[string]string{PropertyPercentiles: "50,101"}, "101"},
		{"backoff", map[string]string{PropertyBackoff: "-5"}, PropertyBackoff},
		{"no run length", map[string]string{PropertyDuration: "0"}, PropertyTimes},
		{"malformed", map[string]string{PropertySeed: "x"}, PropertySeed},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := NewConfig(c.props)
			require.Error(t, err)
			require.True(t, store.IsValidation(err), err.Error())
			require.Contains(t, err.Error(), c.contains)
		})
	}
}

func TestConfigWarehouseRange(t *testing.T) {
	p := NewProperties()
	p.Merge(map[string]string{
		PropertyNumWarehouse:   "10",
		PropertyStartWarehouse: "6",
		PropertyEndWarehouse:   "10",
		PropertySkipItemLoad:   "true",
		PropertyLoadThreads:    "4",
		PropertyTimes:          "100",
		PropertyDuration:       "0",
	})
	config, err := NewConfig(p)
	require.NoError(t, err)
	opts := config.SyntheticOptions()
	require.Equal(t, 6, opts.StartWarehouse)
	require.Equal(t, 10, opts.EndWarehouse)
	require.True(t, opts.SkipItems)
	require.Equal(t, 4, config.LoaderOptions().Threads)
	require.Equal(t, 100, config.RunnerOptions().Times)
}

func TestStores(t *testing.T) {
	require.Equal(t, []string{"basic", "memory"}, StoreNames())

	s, err := NewStore("memory", NewProperties(), log.NewNop())
	require.NoError(t, err)
	require.IsType(t, &store.MemoryStore{}, s)

	p := NewProperties()
	p.Add(PropertyBasicSimulateDelay, "2")
	s, err = NewStore("basic", p, log.NewNop())
	require.NoError(t, err)
	require.IsType(t, &store.DelayStore{}, s)

	p.Add(PropertyBasicSimulateDelay, "-2")
	_, err = NewStore("basic", p, log.NewNop())
	require.True(t, store.IsValidation(err))

	_, err = NewStore("nosql", NewProperties(), log.NewNop())
	require.True(t, store.IsValidation(err))
}

func TestCommandLineProperties(t *testing.T) {
	dir, err := ioutil.TempDir("", "tpcc-config")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := writeConfig(t, dir, "tpcc.yaml",
		"num_warehouse: 2\nnum_threads: 8\nbasic:\n  verbose: true\n")
	os.Setenv("TPCC_DURATION", "30")
	defer os.Unsetenv("TPCC_DURATION")

	cl := NewCommandLine(&bytes.Buffer{}, &bytes.Buffer{})
	cmd := cl.Command()
	require.NoError(t, cmd.PersistentFlags().Parse([]string{
		"--config", path,
		"--num-warehouse", "4",
		"--np-only",
		"-p", "mysql.host=db",
		"-p", "times=7",
	}))
	p, err := cl.Properties()
	require.NoError(t, err)
	require.Equal(t, "4", p.Get(PropertyNumWarehouse))
	require.Equal(t, "8", p.Get(PropertyNumThreads))
	require.Equal(t, "true", p.Get(PropertyNPOnly))
	require.Equal(t, "true", p.Get(PropertyBasicVerbose))
	require.Equal(t, "30", p.Get(PropertyDuration))
	require.Equal(t, "7", p.Get(PropertyTimes))
	require.Equal(t, "db", p.Get("mysql.host"))
	require.Equal(t, PropertyRatePaymentDefault, p.Get(PropertyRatePayment))
	require.Equal(t, PropertyHistogramBucketsDefault, p.Get(PropertyHistogramBuckets))

	config, err := NewConfig(p)
	require.NoError(t, err)
	require.Equal(t, workload.NPOnlyMix, config.Mix)
	require.Equal(t, 30*time.Second, config.Duration)

	cl = NewCommandLine(&bytes.Buffer{}, &bytes.Buffer{})
	cmd = cl.Command()
	require.NoError(t, cmd.PersistentFlags().Parse([]string{"-p", "nothing"}))
	_, err = cl.Properties()
	require.True(t, store.IsValidation(err))
}

func TestFlagName(t *testing.T) {
	require.Equal(t, "num-warehouse", FlagName(PropertyNumWarehouse))
	require.Equal(t, "ramp-up-time", FlagName(PropertyRampUpTime))
}
