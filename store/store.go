package store

import (
	"context"
)

type Ordering uint8

const (
	Asc Ordering = iota
	Desc
)

func (self Ordering) String() string {
	if self == Desc {
		return "DESC"
	}
	return "ASC"
}

// Scan describes a range read inside one partition, or an equality lookup
// through an indexed column when Index is set.
type Scan struct {
	Table     string
	Partition Key
	// Start and End are inclusive clustering key prefixes. Empty means open.
	Start Key
	End   Key
	// Ordering applies to the clustering key.
	Ordering Ordering
	// Limit of zero means no limit.
	Limit int
	// Index switches the scan to an index lookup over the whole table.
	// Partition, Start and End are ignored in that case.
	Index *Column
}

// Store is a transactional key-value store organized in tables of rows
// identified by a partition key and an optional clustering key.
// Implementations must be safe for concurrent use.
type Store interface {
	Begin(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction is a single unit of work against a Store. A Transaction is
// used by one goroutine only.
type Transaction interface {
	// Get returns nil and no error when the row does not exist.
	Get(ctx context.Context, table string, partition, clustering Key) (*Row, error)
	Scan(ctx context.Context, scan *Scan) ([]*Row, error)
	// Put inserts the row or merges values into the existing one.
	Put(ctx context.Context, table string, partition, clustering Key, values Values) error
	Delete(ctx context.Context, table string, partition, clustering Key) error
	// Commit fails with a ConflictError when the transaction must be retried.
	Commit(ctx context.Context) error
	// Abort is always safe to call, also after a failed Commit.
	Abort(ctx context.Context) error
}

// SchemaCreator is implemented by stores that can create the tables
// they serve.
type SchemaCreator interface {
	CreateSchema(ctx context.Context, tables []*TableSchema) error
}

type ColumnSchema struct {
	Name string
	Type DataType
}

type TableSchema struct {
	Name          string
	PartitionKey  []ColumnSchema
	ClusteringKey []ColumnSchema
	Columns       []ColumnSchema
	// Indexes lists the columns that can be used by index scans.
	Indexes []string
}

// AllColumns returns key columns first, then value columns.
func (self *TableSchema) AllColumns() []ColumnSchema {
	ret := make([]ColumnSchema, 0, len(self.PartitionKey)+len(self.ClusteringKey)+len(self.Columns))
	ret = append(ret, self.PartitionKey...)
	ret = append(ret, self.ClusteringKey...)
	ret = append(ret, self.Columns...)
	return ret
}

func (self *TableSchema) ColumnType(name string) (DataType, bool) {
	for _, c := range self.AllColumns() {
		if c.Name == name {
			return c.Type, true
		}
	}
	return 0, false
}

func (self *TableSchema) IsKey(name string) bool {
	for _, c := range self.PartitionKey {
		if c.Name == name {
			return true
		}
	}
	for _, c := range self.ClusteringKey {
		if c.Name == name {
			return true
		}
	}
	return false
}

func (self *TableSchema) IsIndexed(name string) bool {
	for _, c := range self.Indexes {
		if c == name {
			return true
		}
	}
	return false
}
