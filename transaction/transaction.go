package transaction

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hhkbp2/tpccbench/generator"
	"github.com/hhkbp2/tpccbench/record"
	"github.com/hhkbp2/tpccbench/store"
)

type Type uint8

const (
	TypeNewOrder Type = 1 + iota
	TypePayment
	TypeOrderStatus
	TypeDelivery
	TypeStockLevel
)

// Types lists every transaction type in mix order.
var Types = []Type{TypeNewOrder, TypePayment, TypeOrderStatus, TypeDelivery, TypeStockLevel}

func (self Type) String() string {
	switch self {
	case TypeNewOrder:
		return "NewOrder"
	case TypePayment:
		return "Payment"
	case TypeOrderStatus:
		return "OrderStatus"
	case TypeDelivery:
		return "Delivery"
	case TypeStockLevel:
		return "StockLevel"
	default:
		return "Unknown"
	}
}

func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if strings.EqualFold(t.String(), s) {
			return t, nil
		}
	}
	return 0, store.NewValidationError("unknown transaction type %q", s)
}

// Outcome is the result of one execution attempt.
type Outcome uint8

const (
	Committed Outcome = 1 + iota
	// Conflict attempts can be retried with the same arguments.
	Conflict
	// RolledBack marks the deliberate New-Order rollback.
	RolledBack
	Fatal
)

func (self Outcome) String() string {
	switch self {
	case Committed:
		return "COMMITTED"
	case Conflict:
		return "CONFLICT"
	case RolledBack:
		return "ROLLED_BACK"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ErrItemNotFound is raised by a New-Order whose last line names an item
// that does not exist. It is an expected outcome, not a data error.
var ErrItemNotFound = store.NewNotFoundError("item id out of range, rolling back new order")

// Profile is one TPC-C transaction. Generate draws fresh arguments,
// Execute runs them as a single store transaction and may be called again
// with the same arguments after a Conflict.
type Profile interface {
	Type() Type
	Generate()
	Execute(ctx context.Context, s store.Store) (Outcome, error)
}

// Env holds what the profiles of one worker share.
type Env struct {
	Random     *generator.Random
	Warehouses int
	// Warehouse picks the home warehouse of generated transactions.
	// Uniform over [1, Warehouses] when nil.
	Warehouse generator.IntegerGenerator
	Resolver  Resolver
	// Now returns the transaction timestamp in milliseconds.
	Now func() int64
}

func NewEnv(rnd *generator.Random, warehouses int, resolver Resolver) *Env {
	return &Env{
		Random:     rnd,
		Warehouses: warehouses,
		Resolver:   resolver,
	}
}

func (self *Env) homeWarehouse() int {
	if self.Warehouse != nil {
		return int(self.Warehouse.NextInt())
	}
	return self.Random.Int(1, self.Warehouses)
}

// otherWarehouse draws a warehouse different from w, uniformly.
func (self *Env) otherWarehouse(w int) int {
	other := self.Random.Int(1, self.Warehouses-1)
	if other >= w {
		other++
	}
	return other
}

func (self *Env) now() int64 {
	if self.Now != nil {
		return self.Now()
	}
	return record.MillisOf(time.Now())
}

// NewProfile builds an ungenerated profile of the given type.
func NewProfile(t Type, env *Env) (Profile, error) {
	switch t {
	case TypeNewOrder:
		return NewNewOrder(env), nil
	case TypePayment:
		return NewPayment(env), nil
	case TypeOrderStatus:
		return NewOrderStatus(env), nil
	case TypeDelivery:
		return NewDelivery(env), nil
	case TypeStockLevel:
		return NewStockLevel(env), nil
	default:
		return nil, store.NewValidationError("unknown transaction type %d", t)
	}
}

type txFunc func(ctx context.Context, tx store.Transaction) error

// run executes f in a fresh transaction and commits it. Any failure
// aborts the transaction and is classified into an Outcome.
func run(ctx context.Context, s store.Store, f txFunc) (Outcome, error) {
	tx, err := s.Begin(ctx)
	if err != nil {
		return classify(err), errors.Wrap(err, "begin")
	}
	if err = f(ctx, tx); err == nil {
		if err = tx.Commit(ctx); err == nil {
			return Committed, nil
		}
		err = errors.Wrap(err, "commit")
	}
	tx.Abort(ctx)
	return classify(err), err
}

func classify(err error) Outcome {
	switch {
	case err == nil:
		return Committed
	case errors.Is(err, ErrItemNotFound):
		return RolledBack
	case store.IsConflict(err):
		return Conflict
	default:
		return Fatal
	}
}

// mustGet reads a row the dataset guarantees to exist.
func mustGet(ctx context.Context, tx store.Transaction, table string, partition, clustering store.Key) (*store.Row, error) {
	row, err := tx.Get(ctx, table, partition, clustering)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, store.NewNotFoundError("%s %s%s", table, partition.String(), clustering.String())
	}
	return row, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
