package tpccbench

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hhkbp2/tpccbench/loader"
	"github.com/hhkbp2/tpccbench/log"
	"github.com/hhkbp2/tpccbench/measurement"
	"github.com/hhkbp2/tpccbench/record"
	"github.com/hhkbp2/tpccbench/store"
	"github.com/hhkbp2/tpccbench/workload"
)

// Client is one of the commands of the benchmark, run against a store.
type Client interface {
	Main(ctx context.Context, s store.Store) error
}

type Loader struct {
	config *Config
	logger log.Logger
	out    io.Writer
}

func NewLoader(config *Config, logger log.Logger, out io.Writer) *Loader {
	return &Loader{
		config: config,
		logger: logger,
		out:    out,
	}
}

// Main creates the tables when asked to, then loads the dataset from the
// CSV directory if one is configured, or generates it.
func (self *Loader) Main(ctx context.Context, s store.Store) error {
	if self.config.CreateSchema {
		creator, ok := s.(store.SchemaCreator)
		if !ok {
			self.logger.Warn("store cannot create tables, skipped", "store", self.config.Store)
		} else if err := creator.CreateSchema(ctx, record.Schemas()); err != nil {
			return errors.Wrap(err, "create schema")
		}
	}
	var source loader.Source
	if self.config.Directory != "" {
		source = loader.NewCSVSource(self.config.Directory, self.config.Seed, self.logger)
	} else {
		source = loader.NewSyntheticSource(self.config.SyntheticOptions())
	}
	begin := time.Now()
	stats, err := loader.NewLoader(s, source, self.logger, self.config.LoaderOptions()).Run(ctx)
	fmt.Fprintf(self.out, "[LOAD], Queued, %d\n", stats.Queued)
	fmt.Fprintf(self.out, "[LOAD], Succeeded, %d\n", stats.Succeeded)
	fmt.Fprintf(self.out, "[LOAD], Failed, %d\n", stats.Failed)
	fmt.Fprintf(self.out, "[LOAD], Elapsed(ms), %d\n", time.Since(begin).Milliseconds())
	return err
}

type Runner struct {
	config *Config
	logger log.Logger
	out    io.WriteCloser
}

// NewRunner returns the run command client. The final measurements are
// exported to out, which is closed at the end.
func NewRunner(config *Config, logger log.Logger, out io.WriteCloser) *Runner {
	return &Runner{
		config: config,
		logger: logger,
		out:    out,
	}
}

func (self *Runner) Main(ctx context.Context, s store.Store) error {
	if self.config.Preload {
		if err := NewLoader(self.config, self.logger, io.Discard).Main(ctx, s); err != nil {
			return errors.Wrap(err, "preload")
		}
	}
	measurements := measurement.NewMeasurements(self.config.Measurement)
	runner, err := workload.NewRunner(s, self.logger, measurements, self.config.RunnerOptions())
	if err != nil {
		return err
	}
	self.logger.Info("starting workload",
		"mix", self.config.Mix.String(), "threads", self.config.NumThreads,
		"warehouses", self.config.NumWarehouse)
	report, runErr := runner.Run(ctx)

	exporter, err := measurement.NewExporter(self.config.Exporter, self.out)
	if err != nil {
		return err
	}
	if err := exportReport(exporter, report); err != nil {
		exporter.Close()
		return errors.Wrap(err, "export report")
	}
	if err := measurements.ExportMeasurements(exporter); err != nil {
		exporter.Close()
		return errors.Wrap(err, "export measurements")
	}
	if err := exporter.Close(); err != nil {
		return errors.Wrap(err, "close exporter")
	}
	return runErr
}

func exportReport(exporter measurement.Exporter, report workload.Report) error {
	for _, m := range []struct {
		name  string
		value interface{}
	}{
		{"Committed", report.Committed},
		{"Retried", report.Retried},
		{"RolledBack", report.RolledBack},
		{"Errored", report.Errored},
		{"Window(ms)", report.Window.Milliseconds()},
		{"Throughput(ops/sec)", report.TPS()},
		{"AverageLatency(us)", report.AverageLatency().Microseconds()},
	} {
		if err := exporter.Write("OVERALL", m.name, m.value); err != nil {
			return err
		}
	}
	return nil
}

var (
	regexCmd *regexp.Regexp
)

func init() {
	regexCmd = regexp.MustCompile(`\s+`)
}

// Shell is an interactive client to inspect and patch single rows of any
// table. Every command runs in its own transaction.
type Shell struct {
	logger log.Logger
	in     io.Reader
	out    io.Writer
	table  *store.TableSchema
}

func NewShell(logger log.Logger, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		logger: logger,
		in:     in,
		out:    out,
		table:  record.Schema(record.WarehouseTable),
	}
}

func (self *Shell) println(format string, args ...interface{}) {
	fmt.Fprintf(self.out, format, args...)
	fmt.Fprintln(self.out)
}

func (self *Shell) Main(ctx context.Context, s store.Store) error {
	self.println("TPC-C Command Line Client")
	self.println(`Type "help" for command line help`)
	scanner := bufio.NewScanner(self.in)
	for {
		fmt.Fprint(self.out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := regexCmd.Split(line, -1)
		if parts[0] == "quit" {
			return nil
		}
		begin := time.Now()
		if err := self.execute(ctx, s, parts[0], parts[1:]); err != nil {
			self.println("Error: %s", err)
		}
		self.println("%d ms", time.Since(begin).Milliseconds())
	}
	return scanner.Err()
}

func (self *Shell) execute(ctx context.Context, s store.Store, command string, args []string) error {
	switch command {
	case "help":
		self.help()
		return nil
	case "tables":
		for _, t := range record.Schemas() {
			self.println("%s", t.Name)
		}
		return nil
	case "table":
		switch len(args) {
		case 0:
		case 1:
			t := record.Schema(args[0])
			if t == nil {
				return store.NewValidationError("unknown table %q", args[0])
			}
			self.table = t
		default:
			return store.NewValidationError(`syntax is "table [tablename]"`)
		}
		self.println(`Using table "%s" %s`, self.table.Name, keyUsage(self.table))
		return nil
	case "get":
		partition, clustering, rest, err := parseKey(self.table, args)
		if err != nil {
			return err
		}
		if len(rest) != 0 {
			return store.NewValidationError(`syntax is "get %s"`, keyUsage(self.table))
		}
		return self.transact(ctx, s, func(tx store.Transaction) error {
			row, err := tx.Get(ctx, self.table.Name, partition, clustering)
			if err != nil {
				return err
			}
			if row == nil {
				self.println("0 records")
				return nil
			}
			self.printRow(row)
			return nil
		})
	case "scan":
		scan, err := parseScan(self.table, args)
		if err != nil {
			return err
		}
		return self.transact(ctx, s, func(tx store.Transaction) error {
			rows, err := tx.Scan(ctx, scan)
			if err != nil {
				return err
			}
			self.println("%d records", len(rows))
			for i, row := range rows {
				self.println("Record %d", i)
				self.printRow(row)
				self.println("--------------------------------")
			}
			return nil
		})
	case "put":
		partition, clustering, rest, err := parseKey(self.table, args)
		if err != nil {
			return err
		}
		values, err := parseValues(self.table, rest)
		if err != nil {
			return err
		}
		return self.transact(ctx, s, func(tx store.Transaction) error {
			return tx.Put(ctx, self.table.Name, partition, clustering, values)
		})
	case "delete":
		partition, clustering, rest, err := parseKey(self.table, args)
		if err != nil {
			return err
		}
		if len(rest) != 0 {
			return store.NewValidationError(`syntax is "delete %s"`, keyUsage(self.table))
		}
		return self.transact(ctx, s, func(tx store.Transaction) error {
			return tx.Delete(ctx, self.table.Name, partition, clustering)
		})
	default:
		return store.NewValidationError("unknown command %q", command)
	}
}

func (self *Shell) transact(ctx context.Context, s store.Store, f func(tx store.Transaction) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		tx.Abort(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		tx.Abort(ctx)
		return err
	}
	self.println("Result: OK")
	return nil
}

func (self *Shell) printRow(row *store.Row) {
	for _, c := range self.table.AllColumns() {
		v, ok := row.Get(c.Name)
		if !ok || v == nil {
			self.println("%s=NULL", c.Name)
			continue
		}
		self.println("%s=%s", c.Name, v)
	}
}

func (self *Shell) help() {
	helpFormat := `Commands
  tables - List the tables
  table [tablename] - Get or [set] the table and show its key columns
  get key... - Read a row by its full key
  scan partitionkey... [asc|desc] [limit] - Scan one partition
  put key... name1=value1 [name2=value2 ...] - Insert or update a row
  delete key... - Delete a row
  quit - Quit`
	self.println("%s", helpFormat)
}

// keyUsage renders the key columns a command expects for a table.
func keyUsage(t *store.TableSchema) string {
	names := make([]string, 0, len(t.PartitionKey)+len(t.ClusteringKey))
	for _, c := range t.PartitionKey {
		names = append(names, c.Name)
	}
	for _, c := range t.ClusteringKey {
		names = append(names, c.Name)
	}
	return strings.Join(names, " ")
}

func parseColumns(columns []store.ColumnSchema, args []string) (store.Key, error) {
	key := make(store.Key, 0, len(columns))
	for i, c := range columns {
		v, err := store.ParseValue(c.Type, args[i])
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", c.Name)
		}
		key = append(key, store.Column{Name: c.Name, Value: v})
	}
	return key, nil
}

// parseKey reads the partition and clustering key values in column order
// and returns the arguments that follow them.
func parseKey(t *store.TableSchema, args []string) (store.Key, store.Key, []string, error) {
	n := len(t.PartitionKey) + len(t.ClusteringKey)
	if len(args) < n {
		return nil, nil, nil, store.NewValidationError("expected key %s", keyUsage(t))
	}
	partition, err := parseColumns(t.PartitionKey, args)
	if err != nil {
		return nil, nil, nil, err
	}
	var clustering store.Key
	if len(t.ClusteringKey) > 0 {
		clustering, err = parseColumns(t.ClusteringKey, args[len(t.PartitionKey):])
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return partition, clustering, args[n:], nil
}

func parseScan(t *store.TableSchema, args []string) (*store.Scan, error) {
	if len(args) < len(t.PartitionKey) {
		return nil, store.NewValidationError("expected partition key %s", keyUsage(t))
	}
	partition, err := parseColumns(t.PartitionKey, args)
	if err != nil {
		return nil, err
	}
	scan := &store.Scan{Table: t.Name, Partition: partition}
	for _, arg := range args[len(t.PartitionKey):] {
		switch strings.ToLower(arg) {
		case "asc":
			scan.Ordering = store.Asc
		case "desc":
			scan.Ordering = store.Desc
		default:
			limit, err := strconv.Atoi(arg)
			if err != nil || limit < 0 {
				return nil, store.NewValidationError("invalid scan limit %q", arg)
			}
			scan.Limit = limit
		}
	}
	return scan, nil
}

func parseValues(t *store.TableSchema, args []string) (store.Values, error) {
	if len(args) == 0 && len(t.Columns) > 0 {
		return nil, store.NewValidationError(`syntax is "put %s name1=value1 [name2=value2 ...]"`, keyUsage(t))
	}
	values := make(store.Values, len(args))
	for _, arg := range args {
		nv := strings.SplitN(arg, "=", 2)
		if len(nv) != 2 {
			return nil, store.NewValidationError("invalid name=value %s", arg)
		}
		dataType, ok := t.ColumnType(nv[0])
		if !ok || t.IsKey(nv[0]) {
			return nil, store.NewValidationError("%s is not a value column of %s", nv[0], t.Name)
		}
		if nv[1] == `\N` {
			values[nv[0]] = nil
			continue
		}
		v, err := store.ParseValue(dataType, nv[1])
		if err != nil {
			return nil, errors.Wrapf(err, "column %s", nv[0])
		}
		values[nv[0]] = v
	}
	return values, nil
}

// stdout is handed to exporters, which close their writer when done.
type stdout struct{}

func (stdout) Write(p []byte) (int, error) { return os.Stdout.Write(p) }
func (stdout) Close() error                { return nil }
