package binding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gocql/gocql"
	"github.com/hhkbp2/tpccbench/log"
	"github.com/hhkbp2/tpccbench/store"
)

const (
	PropertyCassandraHosts              = "cassandra.hosts"
	PropertyCassandraHostsDefault       = "127.0.0.1"
	PropertyCassandraKeyspace           = "cassandra.keyspace"
	PropertyCassandraKeyspaceDefault    = "tpcc"
	PropertyCassandraConsistency        = "cassandra.consistency"
	PropertyCassandraConsistencyDefault = "QUORUM"
	PropertyCassandraTimeout            = "cassandra.timeout"
	PropertyCassandraTimeoutDefault     = "5s"
	PropertyCassandraReplication        = "cassandra.replication"
	PropertyCassandraReplicationDefault = "1"
	PropertyCassandraConnections        = "cassandra.connections"
	PropertyCassandraConnectionsDefault = "2"
)

// Statement is one CQL statement with its bound values.
type Statement struct {
	Query  string
	Values []interface{}
}

// Session is the part of a CQL session the store needs.
type Session interface {
	Execute(ctx context.Context, query string, values ...interface{}) error
	ExecuteIter(ctx context.Context, query string, values ...interface{}) ([]map[string]interface{}, error)
	// ExecuteBatch applies the statements atomically as a logged batch.
	ExecuteBatch(ctx context.Context, statements []Statement) error
	Close()
}

type GoCqlSession struct {
	ref         *gocql.Session
	consistency gocql.Consistency
}

type CassandraOptions struct {
	Hosts       []string
	Keyspace    string
	Consistency string
	Timeout     time.Duration
	Connections int
	// Replication is the replication factor used when the keyspace is
	// created.
	Replication int
}

// NewGoCqlSession connects to the cluster. The keyspace is created first
// when it does not exist.
func NewGoCqlSession(opts CassandraOptions) (*GoCqlSession, error) {
	consistency, err := parseConsistency(opts.Consistency)
	if err != nil {
		return nil, err
	}
	cluster := gocql.NewCluster(opts.Hosts...)
	cluster.Timeout = opts.Timeout
	cluster.Consistency = consistency
	if opts.Connections > 0 {
		cluster.NumConns = opts.Connections
	}
	bootstrap, err := cluster.CreateSession()
	if err != nil {
		return nil, store.WrapStoreError(err, "connect to %s", strings.Join(opts.Hosts, ","))
	}
	err = bootstrap.Query(createKeyspace(opts.Keyspace, opts.Replication)).Exec()
	bootstrap.Close()
	if err != nil {
		return nil, store.WrapStoreError(err, "create keyspace %s", opts.Keyspace)
	}

	cluster.Keyspace = opts.Keyspace
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, store.WrapStoreError(err, "connect to keyspace %s", opts.Keyspace)
	}
	return &GoCqlSession{ref: session, consistency: consistency}, nil
}

func (self *GoCqlSession) Execute(ctx context.Context, query string, values ...interface{}) error {
	return self.ref.Query(query, values...).WithContext(ctx).Consistency(self.consistency).Exec()
}

func (self *GoCqlSession) ExecuteIter(ctx context.Context, query string, values ...interface{}) ([]map[string]interface{}, error) {
	iter := self.ref.Query(query, values...).WithContext(ctx).Consistency(self.consistency).Iter()
	rows, err := iter.SliceMap()
	if err != nil {
		iter.Close()
		return nil, err
	}
	return rows, iter.Close()
}

func (self *GoCqlSession) ExecuteBatch(ctx context.Context, statements []Statement) error {
	batch := self.ref.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Cons = self.consistency
	for _, s := range statements {
		batch.Query(s.Query, s.Values...)
	}
	return self.ref.ExecuteBatch(batch)
}

func (self *GoCqlSession) Close() {
	self.ref.Close()
}

func parseConsistency(s string) (gocql.Consistency, error) {
	switch strings.ToUpper(s) {
	case "", "QUORUM":
		return gocql.Quorum, nil
	case "ONE":
		return gocql.One, nil
	case "LOCAL_ONE":
		return gocql.LocalOne, nil
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum, nil
	case "ALL":
		return gocql.All, nil
	default:
		return 0, store.NewValidationError("unsupported consistency %q", s)
	}
}

func createKeyspace(keyspace string, replication int) string {
	if replication < 1 {
		replication = 1
	}
	return fmt.Sprintf("CREATE KEYSPACE IF NOT EXISTS %s WITH replication = "+
		"{'class': 'SimpleStrategy', 'replication_factor': %d}", keyspace, replication)
}

// CassandraStore maps tables onto CQL tables with the same partition and
// clustering keys. Reads go straight to the cluster, writes are buffered in
// the transaction and applied as one logged batch at commit. There is no
// read isolation across transactions.
type CassandraStore struct {
	session Session
	logger  log.Logger
}

func NewCassandraStore(session Session, logger log.Logger) *CassandraStore {
	return &CassandraStore{session: session, logger: logger}
}

func (self *CassandraStore) Begin(_ context.Context) (store.Transaction, error) {
	return &cassandraTransaction{
		session: self.session,
		writes:  make(map[string]*bufferedWrite),
	}, nil
}

func (self *CassandraStore) Close() error {
	self.session.Close()
	return nil
}

func (self *CassandraStore) CreateSchema(ctx context.Context, tables []*store.TableSchema) error {
	for _, t := range tables {
		for _, ddl := range cqlCreateTable(t) {
			self.logger.Debug("creating table", "table", t.Name, "ddl", ddl)
			if err := self.session.Execute(ctx, ddl); err != nil {
				return cassandraError(err, "create table %s", t.Name)
			}
		}
	}
	return nil
}

type bufferedWrite struct {
	table      string
	partition  store.Key
	clustering store.Key
	values     store.Values
	isDelete   bool
	// replace is set on a put that follows a delete of the same row. The
	// committed columns are then hidden and written as nulls.
	replace bool
	order   int
}

type cassandraTransaction struct {
	session Session
	writes  map[string]*bufferedWrite
}

func writeKey(table string, partition, clustering store.Key) string {
	return table + "/" + partition.Encode() + "/" + clustering.Encode()
}

func (self *cassandraTransaction) Get(ctx context.Context, table string, partition, clustering store.Key) (*store.Row, error) {
	schema, err := schemaOf(table)
	if err != nil {
		return nil, err
	}
	w := self.writes[writeKey(table, partition, clustering)]
	if w != nil && w.isDelete {
		return nil, nil
	}
	if w != nil && w.replace {
		return store.NewRow(mergeWrite(nil, w)), nil
	}
	where, args := cqlKeyCondition(partition, clustering)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		strings.Join(columnNames(schema.AllColumns()), ", "), table, where)
	rows, err := self.session.ExecuteIter(ctx, query, args...)
	if err != nil {
		return nil, cassandraError(err, "get %s", table)
	}
	var values store.Values
	if len(rows) > 0 {
		if values, err = cqlValues(schema, rows[0]); err != nil {
			return nil, err
		}
	}
	if w != nil {
		values = mergeWrite(values, w)
	}
	if values == nil {
		return nil, nil
	}
	return store.NewRow(values), nil
}

func (self *cassandraTransaction) Scan(ctx context.Context, scan *store.Scan) ([]*store.Row, error) {
	schema, err := schemaOf(scan.Table)
	if err != nil {
		return nil, err
	}
	query, args := cqlScan(schema, scan)
	rows, err := self.session.ExecuteIter(ctx, query, args...)
	if err != nil {
		return nil, cassandraError(err, "scan %s", scan.Table)
	}
	ret := make([]*store.Row, 0, len(rows))
	for _, r := range rows {
		values, err := cqlValues(schema, r)
		if err != nil {
			return nil, err
		}
		partition, clustering := keysOf(schema, values)
		if w := self.writes[writeKey(scan.Table, partition, clustering)]; w != nil {
			if w.isDelete {
				continue
			}
			if w.replace {
				values = nil
			}
			values = mergeWrite(values, w)
		}
		ret = append(ret, store.NewRow(values))
	}
	return ret, nil
}

func (self *cassandraTransaction) buffer(table string, partition, clustering store.Key, values store.Values, isDelete bool) error {
	if _, err := schemaOf(table); err != nil {
		return err
	}
	key := writeKey(table, partition, clustering)
	w, ok := self.writes[key]
	if !ok || isDelete || w.isDelete {
		order := len(self.writes)
		if ok {
			order = w.order
		}
		w = &bufferedWrite{
			table:      table,
			partition:  partition,
			clustering: clustering,
			values:     make(store.Values),
			isDelete:   isDelete,
			replace:    ok && w.isDelete && !isDelete,
			order:      order,
		}
		self.writes[key] = w
	}
	for k, v := range values {
		w.values[k] = v
	}
	return nil
}

func (self *cassandraTransaction) Put(_ context.Context, table string, partition, clustering store.Key, values store.Values) error {
	return self.buffer(table, partition, clustering, values, false)
}

func (self *cassandraTransaction) Delete(_ context.Context, table string, partition, clustering store.Key) error {
	return self.buffer(table, partition, clustering, nil, true)
}

func (self *cassandraTransaction) Commit(ctx context.Context) error {
	if len(self.writes) == 0 {
		return nil
	}
	writes := make([]*bufferedWrite, len(self.writes))
	for _, w := range self.writes {
		writes[w.order] = w
	}
	statements := make([]Statement, 0, len(writes))
	for _, w := range writes {
		statements = append(statements, cqlWrite(w))
	}
	self.writes = make(map[string]*bufferedWrite)
	if err := self.session.ExecuteBatch(ctx, statements); err != nil {
		return cassandraError(err, "commit batch of %d", len(statements))
	}
	return nil
}

func (self *cassandraTransaction) Abort(_ context.Context) error {
	self.writes = make(map[string]*bufferedWrite)
	return nil
}

// cassandraError classifies a driver error. Timeouts and unavailable
// replicas are retryable.
func cassandraError(err error, format string, args ...interface{}) error {
	var (
		writeTimeout *gocql.RequestErrWriteTimeout
		readTimeout  *gocql.RequestErrReadTimeout
		unavailable  *gocql.RequestErrUnavailable
	)
	if errors.As(err, &writeTimeout) || errors.As(err, &readTimeout) ||
		errors.As(err, &unavailable) || errors.Is(err, gocql.ErrTimeoutNoResponse) {
		return store.WrapConflictError(err, format, args...)
	}
	return store.WrapStoreError(err, format, args...)
}

func mergeWrite(values store.Values, w *bufferedWrite) store.Values {
	ret := make(store.Values)
	for k, v := range values {
		ret[k] = v
	}
	for _, k := range []store.Key{w.partition, w.clustering} {
		for _, c := range k {
			ret[c.Name] = c.Value
		}
	}
	for k, v := range w.values {
		ret[k] = v
	}
	return ret
}

func keysOf(schema *store.TableSchema, values store.Values) (store.Key, store.Key) {
	partition := make(store.Key, 0, len(schema.PartitionKey))
	for _, c := range schema.PartitionKey {
		partition = append(partition, store.Column{Name: c.Name, Value: values[c.Name]})
	}
	var clustering store.Key
	for _, c := range schema.ClusteringKey {
		clustering = append(clustering, store.Column{Name: c.Name, Value: values[c.Name]})
	}
	return partition, clustering
}

// cqlValues converts one SliceMap row into typed values.
func cqlValues(schema *store.TableSchema, row map[string]interface{}) (store.Values, error) {
	values := make(store.Values, len(row))
	for _, c := range schema.AllColumns() {
		raw, ok := row[c.Name]
		if !ok || raw == nil {
			values[c.Name] = nil
			continue
		}
		v, err := cqlValue(c.Type, raw)
		if err != nil {
			return nil, errors.Wrapf(err, "column %s.%s", schema.Name, c.Name)
		}
		values[c.Name] = v
	}
	return values, nil
}

func cqlValue(t store.DataType, raw interface{}) (store.Value, error) {
	switch x := raw.(type) {
	case int:
		if t == store.TypeDate {
			return store.DateValue(x), nil
		}
		return store.IntValue(x), nil
	case int32:
		return store.IntValue(x), nil
	case int64:
		if t == store.TypeDate {
			return store.DateValue(x), nil
		}
		return store.IntValue(x), nil
	case float64:
		return store.DoubleValue(x), nil
	case string:
		return store.TextValue(x), nil
	case time.Time:
		return store.DateValue(x.UnixNano() / int64(time.Millisecond)), nil
	default:
		return nil, store.NewValidationError("unexpected %s value of type %T", t, raw)
	}
}

func cqlType(t store.DataType) string {
	switch t {
	case store.TypeInt:
		return "int"
	case store.TypeDouble:
		return "double"
	case store.TypeDate:
		return "bigint"
	default:
		return "text"
	}
}

// cqlDriverValue narrows ints to the 32 bit CQL int type.
func cqlDriverValue(v store.Value) interface{} {
	switch x := v.(type) {
	case store.IntValue:
		return int32(x)
	default:
		return driverValue(v)
	}
}

func cqlKeyCondition(keys ...store.Key) (string, []interface{}) {
	conds := make([]string, 0)
	args := make([]interface{}, 0)
	for _, k := range keys {
		for _, c := range k {
			conds = append(conds, c.Name+" = ?")
			args = append(args, cqlDriverValue(c.Value))
		}
	}
	return strings.Join(conds, " AND "), args
}

func cqlBound(bound store.Key, op string) (string, []interface{}) {
	names := make([]string, 0, len(bound))
	args := make([]interface{}, 0, len(bound))
	for _, c := range bound {
		names = append(names, c.Name)
		args = append(args, cqlDriverValue(c.Value))
	}
	return fmt.Sprintf("(%s) %s (%s)", strings.Join(names, ", "), op, placeholders(len(bound))), args
}

func cqlScan(schema *store.TableSchema, scan *store.Scan) (string, []interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE ", strings.Join(columnNames(schema.AllColumns()), ", "), schema.Name)
	var args []interface{}
	if scan.Index != nil {
		b.WriteString(scan.Index.Name + " = ?")
		args = append(args, cqlDriverValue(scan.Index.Value))
	} else {
		where, keyArgs := cqlKeyCondition(scan.Partition)
		b.WriteString(where)
		args = append(args, keyArgs...)
		if len(scan.Start) > 0 {
			cond, boundArgs := cqlBound(scan.Start, ">=")
			b.WriteString(" AND " + cond)
			args = append(args, boundArgs...)
		}
		if len(scan.End) > 0 {
			cond, boundArgs := cqlBound(scan.End, "<=")
			b.WriteString(" AND " + cond)
			args = append(args, boundArgs...)
		}
		if len(schema.ClusteringKey) > 0 {
			fmt.Fprintf(&b, " ORDER BY %s %s", schema.ClusteringKey[0].Name, scan.Ordering)
		}
	}
	if scan.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", scan.Limit)
	}
	return b.String(), args
}

func cqlWrite(w *bufferedWrite) Statement {
	if w.isDelete {
		where, args := cqlKeyCondition(w.partition, w.clustering)
		return Statement{Query: fmt.Sprintf("DELETE FROM %s WHERE %s", w.table, where), Values: args}
	}
	schema, _ := schemaOf(w.table)
	columns := make([]string, 0)
	args := make([]interface{}, 0)
	for _, k := range []store.Key{w.partition, w.clustering} {
		for _, c := range k {
			columns = append(columns, c.Name)
			args = append(args, cqlDriverValue(c.Value))
		}
	}
	names := sortedValueNames(w.values)
	if w.replace && schema != nil {
		names = make([]string, 0, len(schema.Columns))
		for _, c := range schema.Columns {
			names = append(names, c.Name)
		}
	}
	for _, name := range names {
		if schema != nil && schema.IsKey(name) {
			continue
		}
		columns = append(columns, name)
		args = append(args, cqlDriverValue(w.values[name]))
	}
	return Statement{
		Query: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			w.table, strings.Join(columns, ", "), placeholders(len(columns))),
		Values: args,
	}
}

func cqlCreateTable(schema *store.TableSchema) []string {
	defs := make([]string, 0)
	for _, c := range schema.AllColumns() {
		defs = append(defs, fmt.Sprintf("%s %s", c.Name, cqlType(c.Type)))
	}
	primary := "(" + strings.Join(columnNames(schema.PartitionKey), ", ") + ")"
	if len(schema.ClusteringKey) > 0 {
		primary += ", " + strings.Join(columnNames(schema.ClusteringKey), ", ")
	}
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", primary))
	ret := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", schema.Name, strings.Join(defs, ", "))}
	for _, index := range schema.Indexes {
		ret = append(ret, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_idx ON %s (%s)", index, schema.Name, index))
	}
	return ret
}
