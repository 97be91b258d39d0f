package measurement

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/hhkbp2/tpccbench/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (self *bufferCloser) Close() error {
	self.closed = true
	return nil
}

func TestTextExporter(t *testing.T) {
	w := &bufferCloser{}
	e, err := NewExporter("text", w)
	require.NoError(t, err)
	require.NoError(t, e.Write("NewOrder", "Operations", 3))
	require.NoError(t, e.Close())
	require.True(t, w.closed)
	require.Equal(t, "[NewOrder], Operations, 3\n", w.String())
}

func TestJSONExporters(t *testing.T) {
	w := &bufferCloser{}
	e, err := NewExporter("json", w)
	require.NoError(t, err)
	require.NoError(t, e.Write("Payment", "Operations", 2))
	require.NoError(t, e.Close())
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(w.Bytes()), &line))
	require.Equal(t, "Payment", line["metric"])
	require.Equal(t, 2.0, line["value"])

	w = &bufferCloser{}
	e, err = NewExporter("jsonarray", w)
	require.NoError(t, err)
	require.NoError(t, e.Write("Payment", "Operations", 2))
	require.NoError(t, e.Write("Payment", "AverageLatency(us)", 1.5))
	require.NoError(t, e.Close())
	var array []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Bytes(), &array))
	require.Len(t, array, 2)
	require.Equal(t, "AverageLatency(us)", array[1]["measurement"])
}

func TestUnknownExporter(t *testing.T) {
	_, err := NewExporter("xml", &bufferCloser{})
	require.True(t, store.IsValidation(err))
	require.Equal(t, []string{"json", "jsonarray", "text"}, ExporterNames())
}

func TestParseType(t *testing.T) {
	typ, err := ParseType("hdrhistogram+histogram")
	require.NoError(t, err)
	require.Equal(t, TypeHdrHistogramAndHistogram, typ)
	_, err = ParseType("raw")
	require.True(t, store.IsValidation(err))
}

func TestHistogram(t *testing.T) {
	h := NewOneMeasurementHistogram("NewOrder", 10)
	for _, us := range []int64{500, 1500, 2500, 20000} {
		h.Measure(us)
	}
	require.Contains(t, h.GetSummary(), "AverageLatency(us)=6125.00")
	require.Equal(t, "", h.GetSummary())

	w := &bufferCloser{}
	e := NewTextExporter(w)
	h.ReportStatus(StatusOK)
	require.NoError(t, h.ExportMeasurements(e))
	require.NoError(t, e.Close())
	out := w.String()
	require.Contains(t, out, "[NewOrder], Operations, 4\n")
	require.Contains(t, out, "[NewOrder], MinLatency(us), 500\n")
	require.Contains(t, out, "[NewOrder], MaxLatency(us), 20000\n")
	require.Contains(t, out, "[NewOrder], Return=OK, 1\n")
	require.Contains(t, out, "[NewOrder], >10, 1\n")
}

func TestHdrHistogram(t *testing.T) {
	opts := DefaultOptions()
	opts.Percentiles = []int64{50, 99}
	h := NewOneMeasurementHdrHistogram("Payment", opts)
	for i := int64(1); i <= 100; i++ {
		h.Measure(i * 100)
	}
	h.Measure(0)
	h.Measure(opts.HdrMax * 10)
	require.Equal(t, int64(102), h.Count())
	require.Contains(t, h.GetSummary(), "Count=102")
	require.Equal(t, "", h.GetSummary())

	w := &bufferCloser{}
	e := NewTextExporter(w)
	h.ReportStatus(StatusConflict)
	h.ReportStatus(StatusConflict)
	require.NoError(t, h.ExportMeasurements(e))
	require.NoError(t, e.Close())
	out := w.String()
	require.Contains(t, out, "[Payment], Operations, 102\n")
	require.Contains(t, out, "50thPercentileLatency(us)")
	require.Contains(t, out, "99thPercentileLatency(us)")
	require.Contains(t, out, "[Payment], Return=CONFLICT, 2\n")
}

func TestOrdinal(t *testing.T) {
	assert.Equal(t, "1st", ordinal(1))
	assert.Equal(t, "2nd", ordinal(2))
	assert.Equal(t, "11th", ordinal(11))
	assert.Equal(t, "99th", ordinal(99))
	assert.Equal(t, "101st", ordinal(101))
}

func TestMeasurementsConcurrent(t *testing.T) {
	opts := DefaultOptions()
	opts.Type = TypeHdrHistogramAndHistogram
	m := NewMeasurements(opts)
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Measure("NewOrder", 1000)
				m.ReportStatus("NewOrder", StatusOK)
				m.Measure("Payment", 2000)
			}
		}()
	}
	wg.Wait()

	summary := m.GetSummary()
	require.True(t, strings.Index(summary, "HdrNewOrder") < strings.Index(summary, "HdrPayment"))

	w := &bufferCloser{}
	e := NewTextExporter(w)
	require.NoError(t, m.ExportMeasurements(e))
	require.NoError(t, e.Close())
	out := w.String()
	require.Contains(t, out, "[HdrNewOrder], Operations, 400\n")
	require.Contains(t, out, "[BucketPayment], Operations, 400\n")
	require.Contains(t, out, "[HdrNewOrder], Return=OK, 400\n")
}
