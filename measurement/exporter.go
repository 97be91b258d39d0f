package measurement

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/hhkbp2/tpccbench/store"
)

// Exporter writes collected measurements in some format, such as
// human readable text or machine readable JSON.
type Exporter interface {
	// Write one measurement. v should be an integer or a float64.
	Write(metric string, measurement string, v interface{}) error
	io.Closer
}

type MakeExporterFunc func(w io.WriteCloser) Exporter

var (
	Exporters map[string]MakeExporterFunc
)

func init() {
	Exporters = map[string]MakeExporterFunc{
		"text": func(w io.WriteCloser) Exporter {
			return NewTextExporter(w)
		},
		"json": func(w io.WriteCloser) Exporter {
			return NewJSONExporter(w)
		},
		"jsonarray": func(w io.WriteCloser) Exporter {
			return NewJSONArrayExporter(w)
		},
	}
}

// ExporterNames lists the registered exporters, sorted.
func ExporterNames() []string {
	names := make([]string, 0, len(Exporters))
	for name := range Exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func NewExporter(name string, w io.WriteCloser) (Exporter, error) {
	f, ok := Exporters[name]
	if !ok {
		return nil, store.NewValidationError("unsupported measurement exporter: %s", name)
	}
	return f(w), nil
}

// TextExporter writes one "[metric], measurement, value" line per call.
type TextExporter struct {
	io.WriteCloser
	buf *bufio.Writer
}

func NewTextExporter(w io.WriteCloser) *TextExporter {
	return &TextExporter{
		WriteCloser: w,
		buf:         bufio.NewWriter(w),
	}
}

func (self *TextExporter) Write(metric string, measurement string, v interface{}) error {
	_, err := fmt.Fprintf(self.buf, "[%s], %s, %v\n", metric, measurement, v)
	return err
}

func (self *TextExporter) Close() error {
	err := self.buf.Flush()
	err2 := self.WriteCloser.Close()
	if err != nil {
		return err
	}
	return err2
}

type jsonMeasurement struct {
	Metric      string      `json:"metric"`
	Measurement string      `json:"measurement"`
	Value       interface{} `json:"value"`
}

// JSONExporter writes one JSON object per line.
type JSONExporter struct {
	io.WriteCloser
	buf *bufio.Writer
}

func NewJSONExporter(w io.WriteCloser) *JSONExporter {
	return &JSONExporter{
		WriteCloser: w,
		buf:         bufio.NewWriter(w),
	}
}

func (self *JSONExporter) Write(metric string, measurement string, v interface{}) error {
	b, err := json.Marshal(&jsonMeasurement{
		Metric:      metric,
		Measurement: measurement,
		Value:       v,
	})
	if err != nil {
		return err
	}
	if _, err = self.buf.Write(b); err != nil {
		return err
	}
	return self.buf.WriteByte('\n')
}

func (self *JSONExporter) Close() error {
	err := self.buf.Flush()
	err2 := self.WriteCloser.Close()
	if err != nil {
		return err
	}
	return err2
}

// JSONArrayExporter writes all measurements as a single JSON array.
type JSONArrayExporter struct {
	io.WriteCloser
	buf        *bufio.Writer
	afterFirst bool
}

func NewJSONArrayExporter(w io.WriteCloser) *JSONArrayExporter {
	object := &JSONArrayExporter{
		WriteCloser: w,
		buf:         bufio.NewWriter(w),
	}
	object.buf.WriteString("[")
	return object
}

func (self *JSONArrayExporter) Write(metric string, measurement string, v interface{}) error {
	b, err := json.Marshal(&jsonMeasurement{
		Metric:      metric,
		Measurement: measurement,
		Value:       v,
	})
	if err != nil {
		return err
	}
	if self.afterFirst {
		if _, err = self.buf.WriteString(","); err != nil {
			return err
		}
	} else {
		self.afterFirst = true
	}
	_, err = self.buf.Write(b)
	return err
}

func (self *JSONArrayExporter) Close() error {
	if _, err := self.buf.WriteString("]"); err != nil {
		return err
	}
	err := self.buf.Flush()
	err2 := self.WriteCloser.Close()
	if err != nil {
		return err
	}
	return err2
}
