package store

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

type memRow struct {
	partition  Key
	clustering Key
	values     Values
	version    uint64
}

type memPartition struct {
	rows map[string]*memRow
	// version changes whenever a row is created in or removed from the
	// partition.
	version uint64
}

type memTable struct {
	partitions map[string]*memPartition
	version    uint64
}

// MemoryStore keeps all tables in process memory. Transactions are
// optimistic: reads are recorded with the version they observed and
// validated at commit time, writes are buffered until then. A failed
// validation surfaces as a ConflictError.
type MemoryStore struct {
	lock   sync.RWMutex
	tables map[string]*memTable
	clock  uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tables: make(map[string]*memTable),
	}
}

func (self *MemoryStore) Begin(_ context.Context) (Transaction, error) {
	return newMemoryTransaction(self), nil
}

func (self *MemoryStore) Close() error {
	return nil
}

// CreateSchema is a no-op, tables are created on first write.
func (self *MemoryStore) CreateSchema(_ context.Context, _ []*TableSchema) error {
	return nil
}

type rowRef struct {
	table      string
	partition  string
	clustering string
}

type partitionRef struct {
	table     string
	partition string
}

type snapshotRow struct {
	ref     rowRef
	row     *memRow
	version uint64
}

// read returns a copy of the committed row and its version.
// An absent row has version zero.
func (self *MemoryStore) read(ref rowRef) (*memRow, uint64) {
	self.lock.RLock()
	defer self.lock.RUnlock()
	t, ok := self.tables[ref.table]
	if !ok {
		return nil, 0
	}
	p, ok := t.partitions[ref.partition]
	if !ok {
		return nil, 0
	}
	r, ok := p.rows[ref.clustering]
	if !ok {
		return nil, 0
	}
	return copyRow(r), r.version
}

func (self *MemoryStore) readPartition(table string, partition string) ([]snapshotRow, uint64) {
	self.lock.RLock()
	defer self.lock.RUnlock()
	t, ok := self.tables[table]
	if !ok {
		return nil, 0
	}
	p, ok := t.partitions[partition]
	if !ok {
		return nil, 0
	}
	ret := make([]snapshotRow, 0, len(p.rows))
	for ck, r := range p.rows {
		ret = append(ret, snapshotRow{
			ref:     rowRef{table: table, partition: partition, clustering: ck},
			row:     copyRow(r),
			version: r.version,
		})
	}
	return ret, p.version
}

func (self *MemoryStore) readIndex(table string, index Column) ([]snapshotRow, uint64) {
	self.lock.RLock()
	defer self.lock.RUnlock()
	t, ok := self.tables[table]
	if !ok {
		return nil, 0
	}
	ret := make([]snapshotRow, 0)
	for pk, p := range t.partitions {
		for ck, r := range p.rows {
			if matchIndex(r.values, index) {
				ret = append(ret, snapshotRow{
					ref:     rowRef{table: table, partition: pk, clustering: ck},
					row:     copyRow(r),
					version: r.version,
				})
			}
		}
	}
	return ret, t.version
}

func (self *MemoryStore) rowVersion(ref rowRef) uint64 {
	t, ok := self.tables[ref.table]
	if !ok {
		return 0
	}
	p, ok := t.partitions[ref.partition]
	if !ok {
		return 0
	}
	r, ok := p.rows[ref.clustering]
	if !ok {
		return 0
	}
	return r.version
}

func (self *MemoryStore) partitionVersion(ref partitionRef) uint64 {
	t, ok := self.tables[ref.table]
	if !ok {
		return 0
	}
	p, ok := t.partitions[ref.partition]
	if !ok {
		return 0
	}
	return p.version
}

func (self *MemoryStore) tableVersion(table string) uint64 {
	t, ok := self.tables[table]
	if !ok {
		return 0
	}
	return t.version
}

// apply must be called with the write lock held.
func (self *MemoryStore) apply(ref rowRef, w *writeOp) {
	self.clock++
	version := self.clock
	t, ok := self.tables[ref.table]
	if !ok {
		t = &memTable{partitions: make(map[string]*memPartition)}
		self.tables[ref.table] = t
	}
	p, ok := t.partitions[ref.partition]
	if !ok {
		p = &memPartition{rows: make(map[string]*memRow)}
		t.partitions[ref.partition] = p
	}
	r, exists := p.rows[ref.clustering]
	if w.delete {
		if exists {
			delete(p.rows, ref.clustering)
			p.version = version
			t.version = version
			if len(p.rows) == 0 {
				delete(t.partitions, ref.partition)
			}
		}
		return
	}
	if !exists {
		r = &memRow{
			partition:  w.partition,
			clustering: w.clustering,
			values:     keyValues(w.partition, w.clustering),
		}
		p.rows[ref.clustering] = r
		p.version = version
		t.version = version
	} else if w.replace {
		r.values = keyValues(w.partition, w.clustering)
	}
	for k, v := range w.values {
		r.values[k] = v
	}
	r.version = version
}

type writeOp struct {
	partition  Key
	clustering Key
	values     Values
	delete     bool
	// replace drops the committed columns, set once the row was deleted
	// earlier in the transaction.
	replace bool
}

type memoryTransaction struct {
	store          *MemoryStore
	reads          map[rowRef]uint64
	partitionReads map[partitionRef]uint64
	tableReads     map[string]uint64
	writes         map[rowRef]*writeOp
	writeOrder     []rowRef
	done           bool
}

func newMemoryTransaction(s *MemoryStore) *memoryTransaction {
	return &memoryTransaction{
		store:          s,
		reads:          make(map[rowRef]uint64),
		partitionReads: make(map[partitionRef]uint64),
		tableReads:     make(map[string]uint64),
		writes:         make(map[rowRef]*writeOp),
	}
}

var errTransactionDone = errors.New("transaction already committed or aborted")

func (self *memoryTransaction) recordRead(ref rowRef, version uint64) {
	if _, ok := self.reads[ref]; !ok {
		self.reads[ref] = version
	}
}

func (self *memoryTransaction) Get(_ context.Context, table string, partition, clustering Key) (*Row, error) {
	if self.done {
		return nil, WrapStoreError(errTransactionDone, "get %s", table)
	}
	ref := rowRef{table: table, partition: partition.Encode(), clustering: clustering.Encode()}
	r, version := self.store.read(ref)
	self.recordRead(ref, version)
	values := overlay(r, self.writes[ref])
	if values == nil {
		return nil, nil
	}
	return NewRow(values), nil
}

func (self *memoryTransaction) Scan(_ context.Context, scan *Scan) ([]*Row, error) {
	if self.done {
		return nil, WrapStoreError(errTransactionDone, "scan %s", scan.Table)
	}
	var snapshot []snapshotRow
	if scan.Index != nil {
		var version uint64
		snapshot, version = self.store.readIndex(scan.Table, *scan.Index)
		if _, ok := self.tableReads[scan.Table]; !ok {
			self.tableReads[scan.Table] = version
		}
	} else {
		partition := scan.Partition.Encode()
		var version uint64
		snapshot, version = self.store.readPartition(scan.Table, partition)
		pref := partitionRef{table: scan.Table, partition: partition}
		if _, ok := self.partitionReads[pref]; !ok {
			self.partitionReads[pref] = version
		}
	}

	type candidate struct {
		clustering Key
		partition  Key
		values     Values
	}
	seen := make(map[rowRef]bool, len(snapshot))
	candidates := make([]candidate, 0, len(snapshot))
	for _, s := range snapshot {
		self.recordRead(s.ref, s.version)
		seen[s.ref] = true
		values := overlay(s.row, self.writes[s.ref])
		if values == nil {
			continue
		}
		candidates = append(candidates, candidate{s.row.clustering, s.row.partition, values})
	}
	partition := scan.Partition.Encode()
	for _, ref := range self.writeOrder {
		if ref.table != scan.Table || seen[ref] {
			continue
		}
		if scan.Index == nil && ref.partition != partition {
			continue
		}
		w := self.writes[ref]
		if w.delete {
			continue
		}
		values := overlay(nil, w)
		if scan.Index != nil && !matchIndex(values, *scan.Index) {
			continue
		}
		candidates = append(candidates, candidate{w.clustering, w.partition, values})
	}

	ret := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		if scan.Index == nil {
			if len(scan.Start) > 0 && c.clustering.ComparePrefix(scan.Start) < 0 {
				continue
			}
			if len(scan.End) > 0 && c.clustering.ComparePrefix(scan.End) > 0 {
				continue
			}
		}
		ret = append(ret, c)
	}
	sort.SliceStable(ret, func(i, j int) bool {
		r := ret[i].partition.Compare(ret[j].partition)
		if r == 0 {
			r = ret[i].clustering.Compare(ret[j].clustering)
		}
		if scan.Ordering == Desc {
			return r > 0
		}
		return r < 0
	})
	if scan.Limit > 0 && len(ret) > scan.Limit {
		ret = ret[:scan.Limit]
	}
	rows := make([]*Row, 0, len(ret))
	for _, c := range ret {
		rows = append(rows, NewRow(c.values))
	}
	return rows, nil
}

func (self *memoryTransaction) write(table string, partition, clustering Key, values Values, isDelete bool) error {
	if self.done {
		return WrapStoreError(errTransactionDone, "write %s", table)
	}
	ref := rowRef{table: table, partition: partition.Encode(), clustering: clustering.Encode()}
	w, ok := self.writes[ref]
	if !ok {
		w = &writeOp{partition: partition, clustering: clustering, values: make(Values)}
		self.writes[ref] = w
		self.writeOrder = append(self.writeOrder, ref)
	}
	if isDelete {
		w.delete = true
		w.replace = true
		w.values = make(Values)
		return nil
	}
	w.delete = false
	for k, v := range values {
		w.values[k] = v
	}
	return nil
}

func (self *memoryTransaction) Put(_ context.Context, table string, partition, clustering Key, values Values) error {
	return self.write(table, partition, clustering, values, false)
}

func (self *memoryTransaction) Delete(_ context.Context, table string, partition, clustering Key) error {
	return self.write(table, partition, clustering, nil, true)
}

func (self *memoryTransaction) Commit(_ context.Context) error {
	if self.done {
		return WrapStoreError(errTransactionDone, "commit")
	}
	self.done = true
	s := self.store
	s.lock.Lock()
	defer s.lock.Unlock()
	for ref, version := range self.reads {
		if s.rowVersion(ref) != version {
			return NewConflictError("row %s%s in %s changed", ref.partition, ref.clustering, ref.table)
		}
	}
	for ref, version := range self.partitionReads {
		if s.partitionVersion(ref) != version {
			return NewConflictError("partition %s in %s changed", ref.partition, ref.table)
		}
	}
	for table, version := range self.tableReads {
		if s.tableVersion(table) != version {
			return NewConflictError("table %s changed", table)
		}
	}
	for _, ref := range self.writeOrder {
		s.apply(ref, self.writes[ref])
	}
	return nil
}

func (self *memoryTransaction) Abort(_ context.Context) error {
	self.done = true
	return nil
}

func copyRow(r *memRow) *memRow {
	return &memRow{
		partition:  r.partition,
		clustering: r.clustering,
		values:     r.values.Copy(),
		version:    r.version,
	}
}

func keyValues(partition, clustering Key) Values {
	ret := make(Values, len(partition)+len(clustering))
	for _, c := range partition {
		ret[c.Name] = c.Value
	}
	for _, c := range clustering {
		ret[c.Name] = c.Value
	}
	return ret
}

// overlay merges a pending write over a committed row. It returns nil
// when the result does not exist.
func overlay(r *memRow, w *writeOp) Values {
	if w == nil {
		if r == nil {
			return nil
		}
		return r.values
	}
	if w.delete {
		return nil
	}
	var ret Values
	if r == nil || w.replace {
		ret = keyValues(w.partition, w.clustering)
	} else {
		ret = r.values.Copy()
	}
	for k, v := range w.values {
		ret[k] = v
	}
	return ret
}

func matchIndex(values Values, index Column) bool {
	v, ok := values[index.Name]
	if !ok || v == nil || index.Value == nil {
		return false
	}
	if v.Type() != index.Value.Type() {
		return false
	}
	return CompareValues(v, index.Value) == 0
}
