package binding

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-sql-driver/mysql"
	"github.com/hhkbp2/tpccbench/log"
	"github.com/hhkbp2/tpccbench/record"
	"github.com/hhkbp2/tpccbench/store"
)

const (
	PropertyMysqlHost                = "mysql.host"
	PropertyMysqlHostDefault         = "127.0.0.1"
	PropertyMysqlPort                = "mysql.port"
	PropertyMysqlPortDefault         = "3306"
	PropertyMysqlDatabase            = "mysql.db"
	PropertyMysqlDatabaseDefault     = "tpcc"
	PropertyMysqlUser                = "mysql.user"
	PropertyMysqlUserDefault         = "root"
	PropertyMysqlPassword            = "mysql.password"
	PropertyMysqlPasswordDefault     = ""
	PropertyMysqlOptions             = "mysql.options"
	PropertyMysqlOptionsDefault      = "charset=utf8mb4"
	PropertyMysqlMaxOpenConns        = "mysql.maxopenconns"
	PropertyMysqlMaxOpenConnsDefault = "64"
)

// MySQL error numbers that mean the transaction lost a lock race.
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

type MysqlOptions struct {
	Host         string
	Port         int
	Database     string
	User         string
	Password     string
	Options      string
	MaxOpenConns int
}

func (self MysqlOptions) DataSourceName() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		self.User, self.Password, self.Host, self.Port, self.Database, self.Options)
}

// MysqlStore serves the TPC-C tables from InnoDB. Every read inside a
// transaction takes row locks with SELECT ... FOR UPDATE, deadlocks and
// lock wait timeouts surface as conflicts.
type MysqlStore struct {
	db     *sql.DB
	logger log.Logger
}

func NewMysqlStore(opts MysqlOptions, logger log.Logger) (*MysqlStore, error) {
	db, err := sql.Open("mysql", opts.DataSourceName())
	if err != nil {
		return nil, store.WrapStoreError(err, "open mysql %s:%d", opts.Host, opts.Port)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
		db.SetMaxIdleConns(opts.MaxOpenConns)
	}
	db.SetConnMaxLifetime(time.Hour)
	logger.Info("mysql store opened", "host", opts.Host, "port", opts.Port, "db", opts.Database)
	return &MysqlStore{db: db, logger: logger}, nil
}

func (self *MysqlStore) Begin(ctx context.Context) (store.Transaction, error) {
	tx, err := self.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mysqlError(err, "begin")
	}
	return &mysqlTransaction{tx: tx}, nil
}

func (self *MysqlStore) Close() error {
	return self.db.Close()
}

func (self *MysqlStore) CreateSchema(ctx context.Context, tables []*store.TableSchema) error {
	for _, t := range tables {
		ddl := mysqlCreateTable(t)
		self.logger.Debug("creating table", "table", t.Name, "ddl", ddl)
		if _, err := self.db.ExecContext(ctx, ddl); err != nil {
			return mysqlError(err, "create table %s", t.Name)
		}
	}
	return nil
}

type mysqlTransaction struct {
	tx *sql.Tx
}

func (self *mysqlTransaction) Get(ctx context.Context, table string, partition, clustering store.Key) (*store.Row, error) {
	schema, err := schemaOf(table)
	if err != nil {
		return nil, err
	}
	query, args := mysqlSelect(schema, partition, clustering)
	rows, err := self.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mysqlError(err, "get %s", table)
	}
	result, err := scanRows(schema, rows)
	if err != nil {
		return nil, mysqlError(err, "get %s", table)
	}
	if len(result) == 0 {
		return nil, nil
	}
	return result[0], nil
}

func (self *mysqlTransaction) Scan(ctx context.Context, scan *store.Scan) ([]*store.Row, error) {
	schema, err := schemaOf(scan.Table)
	if err != nil {
		return nil, err
	}
	query, args := mysqlScan(schema, scan)
	rows, err := self.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mysqlError(err, "scan %s", scan.Table)
	}
	result, err := scanRows(schema, rows)
	if err != nil {
		return nil, mysqlError(err, "scan %s", scan.Table)
	}
	return result, nil
}

func (self *mysqlTransaction) Put(ctx context.Context, table string, partition, clustering store.Key, values store.Values) error {
	schema, err := schemaOf(table)
	if err != nil {
		return err
	}
	query, args := mysqlUpsert(schema, partition, clustering, values)
	if _, err := self.tx.ExecContext(ctx, query, args...); err != nil {
		return mysqlError(err, "put %s %s", table, partition)
	}
	return nil
}

func (self *mysqlTransaction) Delete(ctx context.Context, table string, partition, clustering store.Key) error {
	where, args := keyCondition(partition, clustering)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", table, where)
	if _, err := self.tx.ExecContext(ctx, query, args...); err != nil {
		return mysqlError(err, "delete %s %s", table, partition)
	}
	return nil
}

func (self *mysqlTransaction) Commit(_ context.Context) error {
	if err := self.tx.Commit(); err != nil {
		return mysqlError(err, "commit")
	}
	return nil
}

func (self *mysqlTransaction) Abort(_ context.Context) error {
	if err := self.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return mysqlError(err, "rollback")
	}
	return nil
}

func schemaOf(table string) (*store.TableSchema, error) {
	schema := record.Schema(table)
	if schema == nil {
		return nil, store.NewValidationError("unknown table %q", table)
	}
	return schema, nil
}

// mysqlError classifies a driver error.
func mysqlError(err error, format string, args ...interface{}) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlErrDeadlock, mysqlErrLockWaitTimeout:
			return store.WrapConflictError(err, format, args...)
		}
	}
	return store.WrapStoreError(err, format, args...)
}

func columnNames(columns []store.ColumnSchema) []string {
	names := make([]string, 0, len(columns))
	for _, c := range columns {
		names = append(names, c.Name)
	}
	return names
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// keyCondition is the equality predicate over all given key columns.
func keyCondition(keys ...store.Key) (string, []interface{}) {
	conds := make([]string, 0)
	args := make([]interface{}, 0)
	for _, k := range keys {
		for _, c := range k {
			conds = append(conds, c.Name+" = ?")
			args = append(args, driverValue(c.Value))
		}
	}
	return strings.Join(conds, " AND "), args
}

// boundCondition compares a clustering key prefix as a row value.
func boundCondition(bound store.Key, op string) (string, []interface{}) {
	names := make([]string, 0, len(bound))
	args := make([]interface{}, 0, len(bound))
	for _, c := range bound {
		names = append(names, c.Name)
		args = append(args, driverValue(c.Value))
	}
	if len(bound) == 1 {
		return fmt.Sprintf("%s %s ?", names[0], op), args
	}
	return fmt.Sprintf("(%s) %s (%s)", strings.Join(names, ", "), op, placeholders(len(bound))), args
}

func mysqlSelect(schema *store.TableSchema, partition, clustering store.Key) (string, []interface{}) {
	where, args := keyCondition(partition, clustering)
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s FOR UPDATE",
		strings.Join(columnNames(schema.AllColumns()), ", "), schema.Name, where), args
}

func mysqlScan(schema *store.TableSchema, scan *store.Scan) (string, []interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE ", strings.Join(columnNames(schema.AllColumns()), ", "), schema.Name)
	var args []interface{}
	if scan.Index != nil {
		b.WriteString(scan.Index.Name + " = ?")
		args = append(args, driverValue(scan.Index.Value))
		order := columnNames(append(append([]store.ColumnSchema{}, schema.PartitionKey...), schema.ClusteringKey...))
		fmt.Fprintf(&b, " ORDER BY %s", strings.Join(order, ", "))
	} else {
		where, keyArgs := keyCondition(scan.Partition)
		b.WriteString(where)
		args = append(args, keyArgs...)
		if len(scan.Start) > 0 {
			cond, boundArgs := boundCondition(scan.Start, ">=")
			b.WriteString(" AND " + cond)
			args = append(args, boundArgs...)
		}
		if len(scan.End) > 0 {
			cond, boundArgs := boundCondition(scan.End, "<=")
			b.WriteString(" AND " + cond)
			args = append(args, boundArgs...)
		}
		if len(schema.ClusteringKey) > 0 {
			order := make([]string, 0, len(schema.ClusteringKey))
			for _, c := range schema.ClusteringKey {
				order = append(order, c.Name+" "+scan.Ordering.String())
			}
			fmt.Fprintf(&b, " ORDER BY %s", strings.Join(order, ", "))
		}
	}
	if scan.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", scan.Limit)
	}
	b.WriteString(" FOR UPDATE")
	return b.String(), args
}

// sortedValueNames returns the non-key column names of values in a stable
// order.
func sortedValueNames(values store.Values) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// mysqlUpsert inserts the row or merges the given values into it.
func mysqlUpsert(schema *store.TableSchema, partition, clustering store.Key, values store.Values) (string, []interface{}) {
	columns := make([]string, 0)
	args := make([]interface{}, 0)
	for _, k := range []store.Key{partition, clustering} {
		for _, c := range k {
			columns = append(columns, c.Name)
			args = append(args, driverValue(c.Value))
		}
	}
	updates := make([]string, 0, len(values))
	for _, name := range sortedValueNames(values) {
		if schema.IsKey(name) {
			continue
		}
		columns = append(columns, name)
		args = append(args, driverValue(values[name]))
		updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", name, name))
	}
	if len(updates) == 0 {
		return fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (%s)",
			schema.Name, strings.Join(columns, ", "), placeholders(len(columns))), args
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		schema.Name, strings.Join(columns, ", "), placeholders(len(columns)), strings.Join(updates, ", ")), args
}

func mysqlType(c store.ColumnSchema, key bool) string {
	switch c.Type {
	case store.TypeInt:
		return "INT"
	case store.TypeDouble:
		return "DOUBLE"
	case store.TypeDate:
		return "BIGINT"
	default:
		if key {
			return "VARCHAR(64)"
		}
		return "VARCHAR(512)"
	}
}

func mysqlCreateTable(schema *store.TableSchema) string {
	defs := make([]string, 0)
	keys := make([]string, 0)
	for _, c := range schema.AllColumns() {
		key := schema.IsKey(c.Name) || schema.IsIndexed(c.Name)
		def := fmt.Sprintf("%s %s", c.Name, mysqlType(c, key))
		if schema.IsKey(c.Name) {
			def += " NOT NULL"
			keys = append(keys, c.Name)
		}
		defs = append(defs, def)
	}
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(keys, ", ")))
	for _, index := range schema.Indexes {
		defs = append(defs, fmt.Sprintf("INDEX %s_idx (%s)", index, index))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n) ENGINE=InnoDB",
		schema.Name, strings.Join(defs, ",\n  "))
}

// driverValue converts a typed value to what database drivers accept.
func driverValue(v store.Value) interface{} {
	switch x := v.(type) {
	case nil:
		return nil
	case store.IntValue:
		return int64(x)
	case store.DoubleValue:
		return float64(x)
	case store.TextValue:
		return string(x)
	case store.DateValue:
		return int64(x)
	default:
		return v.String()
	}
}

func scanRows(schema *store.TableSchema, rows *sql.Rows) ([]*store.Row, error) {
	defer rows.Close()
	columns := schema.AllColumns()
	ret := make([]*store.Row, 0)
	for rows.Next() {
		dest := make([]interface{}, len(columns))
		for i, c := range columns {
			switch c.Type {
			case store.TypeInt, store.TypeDate:
				dest[i] = new(sql.NullInt64)
			case store.TypeDouble:
				dest[i] = new(sql.NullFloat64)
			default:
				dest[i] = new(sql.NullString)
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		values := make(store.Values, len(columns))
		for i, c := range columns {
			values[c.Name] = nullableValue(c.Type, dest[i])
		}
		ret = append(ret, store.NewRow(values))
	}
	return ret, rows.Err()
}

func nullableValue(t store.DataType, v interface{}) store.Value {
	switch x := v.(type) {
	case *sql.NullInt64:
		if !x.Valid {
			return nil
		}
		if t == store.TypeDate {
			return store.DateValue(x.Int64)
		}
		return store.IntValue(x.Int64)
	case *sql.NullFloat64:
		if !x.Valid {
			return nil
		}
		return store.DoubleValue(x.Float64)
	case *sql.NullString:
		if !x.Valid {
			return nil
		}
		return store.TextValue(x.String)
	default:
		return nil
	}
}
