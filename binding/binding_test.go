package binding

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/gocql/gocql"
	"github.com/hhkbp2/tpccbench"
	"github.com/hhkbp2/tpccbench/log"
	"github.com/hhkbp2/tpccbench/record"
	"github.com/hhkbp2/tpccbench/store"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type SessionMock struct {
	mock.Mock
}

func (self *SessionMock) Execute(_ context.Context, query string, values ...interface{}) error {
	args := self.Called(query, values)
	return args.Error(0)
}

func (self *SessionMock) ExecuteIter(_ context.Context, query string, values ...interface{}) ([]map[string]interface{}, error) {
	args := self.Called(query, values)
	return args.Get(0).([]map[string]interface{}), args.Error(1)
}

func (self *SessionMock) ExecuteBatch(_ context.Context, statements []Statement) error {
	args := self.Called(statements)
	return args.Error(0)
}

func (self *SessionMock) Close() {
	self.Called()
}

func queryOn(table string, where string) interface{} {
	return mock.MatchedBy(func(q string) bool {
		return strings.HasPrefix(q, "SELECT ") && strings.Contains(q, " FROM "+table+" WHERE "+where)
	})
}

func TestMysqlUpsert(t *testing.T) {
	schema := record.Schema(record.DistrictTable)
	query, args := mysqlUpsert(schema, record.DistrictKey(1, 2), nil,
		store.Values{record.DistrictNextOrderID: store.IntValue(3002)})
	require.Equal(t, "INSERT INTO district (d_w_id, d_id, d_next_o_id) VALUES (?, ?, ?) "+
		"ON DUPLICATE KEY UPDATE d_next_o_id = VALUES(d_next_o_id)", query)
	require.Equal(t, []interface{}{int64(1), int64(2), int64(3002)}, args)

	schema = record.Schema(record.NewOrderTable)
	query, _ = mysqlUpsert(schema, record.NewOrderKey(1, 2), record.NewOrderClustering(7), nil)
	require.Equal(t, "INSERT IGNORE INTO new_order (no_w_id, no_d_id, no_o_id) VALUES (?, ?, ?)", query)
}

func TestMysqlScan(t *testing.T) {
	schema := record.Schema(record.OrderLineTable)
	query, args := mysqlScan(schema, &store.Scan{
		Table:     record.OrderLineTable,
		Partition: record.OrderLineKey(1, 2),
		Start:     record.OrderLinePrefix(10),
		End:       record.OrderLinePrefix(29),
	})
	require.True(t, strings.HasSuffix(query, "FROM order_line WHERE ol_w_id = ? AND ol_d_id = ? "+
		"AND ol_o_id >= ? AND ol_o_id <= ? ORDER BY ol_o_id ASC, ol_number ASC FOR UPDATE"), query)
	require.Equal(t, []interface{}{int64(1), int64(2), int64(10), int64(29)}, args)

	query, _ = mysqlScan(schema, &store.Scan{
		Table:     record.OrderLineTable,
		Partition: record.OrderLineKey(1, 2),
		Start:     record.OrderLineClustering(5, 3),
		Ordering:  store.Desc,
		Limit:     1,
	})
	require.True(t, strings.HasSuffix(query,
		"AND (ol_o_id, ol_number) >= (?, ?) ORDER BY ol_o_id DESC, ol_number DESC LIMIT 1 FOR UPDATE"), query)

	index := store.TextColumn(record.CustomerIndex, record.CustomerIndexValue(1, 2, "BARBARBAR"))
	schema = record.Schema(record.CustomerTable)
	query, args = mysqlScan(schema, &store.Scan{Table: record.CustomerTable, Index: &index})
	require.True(t, strings.HasSuffix(query, "WHERE c_index = ? ORDER BY c_w_id, c_d_id, c_id FOR UPDATE"), query)
	require.Len(t, args, 1)
}

func TestMysqlCreateTable(t *testing.T) {
	ddl := mysqlCreateTable(record.Schema(record.OrderTable))
	require.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS oorder (")
	require.Contains(t, ddl, "o_w_id INT NOT NULL")
	require.Contains(t, ddl, "o_entry_d BIGINT")
	require.Contains(t, ddl, "o_c_index VARCHAR(64)")
	require.Contains(t, ddl, "PRIMARY KEY (o_w_id, o_d_id, o_id)")
	require.Contains(t, ddl, "INDEX o_c_index_idx (o_c_index)")
}

func TestMysqlError(t *testing.T) {
	err := mysqlError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"}, "commit")
	require.True(t, store.IsConflict(err))
	err = mysqlError(&mysql.MySQLError{Number: 1205, Message: "Lock wait timeout"}, "get %s", "stock")
	require.True(t, store.IsConflict(err))
	err = mysqlError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, "put")
	require.False(t, store.IsConflict(err))
	require.Error(t, err)
}

func TestNullableValue(t *testing.T) {
	require.Nil(t, nullableValue(store.TypeInt, &sql.NullInt64{}))
	require.Equal(t, store.DateValue(7), nullableValue(store.TypeDate, &sql.NullInt64{Int64: 7, Valid: true}))
	require.Equal(t, store.IntValue(7), nullableValue(store.TypeInt, &sql.NullInt64{Int64: 7, Valid: true}))
	require.Equal(t, store.TextValue("x"), nullableValue(store.TypeText, &sql.NullString{String: "x", Valid: true}))
	require.Nil(t, driverValue(nil))
	require.Equal(t, int64(5), driverValue(store.DateValue(5)))
	require.Equal(t, "x", driverValue(store.TextValue("x")))
}

func TestCassandraTransaction(t *testing.T) {
	session := &SessionMock{}
	session.On("ExecuteIter", queryOn(record.DistrictTable, "d_w_id = ? AND d_id = ?"),
		[]interface{}{int32(1), int32(2)}).
		Return([]map[string]interface{}{{
			record.DistrictWarehouseID: 1,
			record.DistrictID:          2,
			record.DistrictName:        "dist",
			record.DistrictTax:         0.1,
			record.DistrictNextOrderID: 3001,
		}}, nil)
	session.On("ExecuteIter", queryOn(record.NewOrderTable, "no_w_id = ? AND no_d_id = ?"), mock.Anything).
		Return([]map[string]interface{}{
			{record.NewOrderWarehouseID: 1, record.NewOrderDistrictID: 2, record.NewOrderOrderID: 2101},
			{record.NewOrderWarehouseID: 1, record.NewOrderDistrictID: 2, record.NewOrderOrderID: 2102},
		}, nil)
	session.On("ExecuteBatch", mock.Anything).Return(nil).Once()

	ctx := context.Background()
	s := NewCassandraStore(session, log.NewNop())
	tx, err := s.Begin(ctx)
	require.NoError(t, err)

	row, err := tx.Get(ctx, record.DistrictTable, record.DistrictKey(1, 2), nil)
	require.NoError(t, err)
	require.Equal(t, 3001, row.Int(record.DistrictNextOrderID))
	require.Equal(t, "dist", row.Text(record.DistrictName))
	require.True(t, row.IsNull(record.DistrictYtd))

	require.NoError(t, tx.Put(ctx, record.DistrictTable, record.DistrictKey(1, 2), nil,
		store.Values{record.DistrictNextOrderID: store.IntValue(3002)}))
	row, err = tx.Get(ctx, record.DistrictTable, record.DistrictKey(1, 2), nil)
	require.NoError(t, err)
	require.Equal(t, 3002, row.Int(record.DistrictNextOrderID))
	require.Equal(t, 0.1, row.Double(record.DistrictTax))

	require.NoError(t, tx.Delete(ctx, record.NewOrderTable, record.NewOrderKey(1, 2), record.NewOrderClustering(2101)))
	rows, err := tx.Scan(ctx, &store.Scan{Table: record.NewOrderTable, Partition: record.NewOrderKey(1, 2)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 2102, rows[0].Int(record.NewOrderOrderID))

	require.NoError(t, tx.Commit(ctx))
	session.AssertExpectations(t)
	var statements []Statement
	for _, call := range session.Calls {
		if call.Method == "ExecuteBatch" {
			statements = call.Arguments.Get(0).([]Statement)
		}
	}
	require.Len(t, statements, 2)
	require.Equal(t, "INSERT INTO district (d_w_id, d_id, d_next_o_id) VALUES (?, ?, ?)", statements[0].Query)
	require.Equal(t, []interface{}{int32(1), int32(2), int32(3002)}, statements[0].Values)
	require.Equal(t, "DELETE FROM new_order WHERE no_w_id = ? AND no_d_id = ? AND no_o_id = ?", statements[1].Query)
}

func TestCassandraDeleteThenPutReplacesRow(t *testing.T) {
	session := &SessionMock{}
	session.On("ExecuteBatch", mock.Anything).Return(nil).Once()
	ctx := context.Background()
	tx, err := NewCassandraStore(session, log.NewNop()).Begin(ctx)
	require.NoError(t, err)

	partition, clustering := record.OrderKey(1, 2), record.OrderClustering(5)
	require.NoError(t, tx.Delete(ctx, record.OrderTable, partition, clustering))
	require.NoError(t, tx.Put(ctx, record.OrderTable, partition, clustering,
		store.Values{record.OrderCustomerID: store.IntValue(9)}))
	row, err := tx.Get(ctx, record.OrderTable, partition, clustering)
	require.NoError(t, err)
	require.Equal(t, 9, row.Int(record.OrderCustomerID))
	require.Equal(t, 5, row.Int(record.OrderID))
	_, ok := row.Get(record.OrderCarrierID)
	require.False(t, ok)
	require.NoError(t, tx.Commit(ctx))

	session.AssertExpectations(t)
	session.AssertNotCalled(t, "ExecuteIter", mock.Anything, mock.Anything)
	statements := session.Calls[len(session.Calls)-1].Arguments.Get(0).([]Statement)
	require.Len(t, statements, 1)
	query := statements[0].Query
	require.True(t, strings.HasPrefix(query, "INSERT INTO oorder ("), query)
	columns := strings.Split(query[len("INSERT INTO oorder ("):strings.Index(query, ")")], ", ")
	schema := record.Schema(record.OrderTable)
	require.Len(t, columns, len(schema.AllColumns()))
	require.Len(t, statements[0].Values, len(columns))
	for i, name := range columns {
		switch name {
		case record.OrderCustomerID:
			require.Equal(t, int32(9), statements[0].Values[i])
		case record.OrderCarrierID, record.OrderEntryDate:
			require.Nil(t, statements[0].Values[i], name)
		}
	}
}

func TestCassandraCommitTimeoutIsConflict(t *testing.T) {
	session := &SessionMock{}
	session.On("ExecuteBatch", mock.Anything).Return(&gocql.RequestErrWriteTimeout{})
	ctx := context.Background()
	tx, err := NewCassandraStore(session, log.NewNop()).Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Put(ctx, record.NewOrderTable, record.NewOrderKey(1, 1), record.NewOrderClustering(1), nil))
	err = tx.Commit(ctx)
	require.True(t, store.IsConflict(err))
}

func TestCassandraEmptyCommit(t *testing.T) {
	session := &SessionMock{}
	ctx := context.Background()
	tx, err := NewCassandraStore(session, log.NewNop()).Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	session.AssertNotCalled(t, "ExecuteBatch", mock.Anything)
}

func TestCassandraCreateSchema(t *testing.T) {
	session := &SessionMock{}
	session.On("Execute", mock.Anything, mock.Anything).Return(nil)
	s := NewCassandraStore(session, log.NewNop())
	require.NoError(t, s.CreateSchema(context.Background(), []*store.TableSchema{record.Schema(record.CustomerTable)}))
	require.Len(t, session.Calls, 2)
	ddl := session.Calls[0].Arguments.String(0)
	require.Contains(t, ddl, "PRIMARY KEY ((c_w_id, c_d_id, c_id))")
	require.Contains(t, ddl, "c_since bigint")
	require.Equal(t, "CREATE INDEX IF NOT EXISTS c_index_idx ON customer (c_index)", session.Calls[1].Arguments.String(0))

	ddls := cqlCreateTable(record.Schema(record.OrderLineTable))
	require.Contains(t, ddls[0], "PRIMARY KEY ((ol_w_id, ol_d_id), ol_o_id, ol_number)")
}

func TestCassandraOptions(t *testing.T) {
	props := tpccbench.NewProperties()
	props.Add(PropertyCassandraHosts, "10.0.0.1, 10.0.0.2")
	opts, err := cassandraOptionsOf(props)
	require.NoError(t, err)
	require.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, opts.Hosts)
	require.Equal(t, PropertyCassandraKeyspaceDefault, opts.Keyspace)

	props.Add(PropertyCassandraTimeout, "soon")
	_, err = cassandraOptionsOf(props)
	require.True(t, store.IsValidation(err))

	_, err = parseConsistency("SOMETIMES")
	require.True(t, store.IsValidation(err))
}

func TestAddBindings(t *testing.T) {
	AddBindings()
	require.Contains(t, tpccbench.StoreNames(), "mysql")
	require.Contains(t, tpccbench.StoreNames(), "cassandra")
}
