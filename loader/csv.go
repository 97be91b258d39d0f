package loader

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/hhkbp2/tpccbench/generator"
	"github.com/hhkbp2/tpccbench/log"
	"github.com/hhkbp2/tpccbench/record"
	"github.com/hhkbp2/tpccbench/store"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVSource reads one file per table from a directory, in load order.
// A missing file is skipped.
type CSVSource struct {
	dir    string
	rnd    *generator.Random
	logger log.Logger
}

func NewCSVSource(dir string, seed int64, logger log.Logger) *CSVSource {
	return &CSVSource{
		dir:    dir,
		rnd:    generator.NewRandom(seed),
		logger: logger,
	}
}

func (self *CSVSource) Produce(ctx context.Context, emit EmitFunc) error {
	for _, table := range record.LoadOrder {
		path := filepath.Join(self.dir, record.FileName(table))
		f, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				self.logger.Warn("csv file not found, skipping", "table", table, "file", path)
				continue
			}
			return errors.Wrapf(err, "open %s", path)
		}
		n, err := self.produceFile(table, f, emit)
		f.Close()
		if err != nil {
			return errors.Wrapf(err, "load %s", path)
		}
		self.logger.Info("csv file queued", "table", table, "rows", n)
	}
	return nil
}

func (self *CSVSource) produceFile(table string, r io.Reader, emit EmitFunc) (int, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && string(prefix) == string(utf8BOM) {
		br.Discard(len(utf8BOM))
	}
	reader := csv.NewReader(br)
	header := record.Headers[table]
	reader.FieldsPerRecord = len(header)
	reader.ReuseRecord = true

	count := 0
	line := 0
	for {
		fields, err := reader.Read()
		if err == io.EOF {
			return count, nil
		}
		line++
		if err != nil {
			return count, store.NewValidationError("line %d: %v", line, err)
		}
		// a leading header row is optional
		if line == 1 && isHeader(header, fields) {
			continue
		}
		row, err := record.RowOf(header, fields)
		if err != nil {
			return count, errors.Wrapf(err, "line %d", line)
		}
		var historyID string
		if table == record.HistoryTable {
			historyID = self.rnd.UUID()
		}
		rec, err := record.Parse(table, row, historyID)
		if err != nil {
			return count, errors.Wrapf(err, "line %d", line)
		}
		rec.BuildIndexColumn()
		if err := emit(rec); err != nil {
			return count, err
		}
		count++
	}
}

func isHeader(header []string, fields []string) bool {
	if len(header) != len(fields) {
		return false
	}
	for i := range header {
		if header[i] != fields[i] {
			return false
		}
	}
	return true
}
