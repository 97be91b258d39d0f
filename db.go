package tpccbench

import (
	"sort"
	"strings"

	"github.com/hhkbp2/tpccbench/log"
	"github.com/hhkbp2/tpccbench/store"
)

// MakeStoreFunc opens a store from the properties that concern it.
// Stores backed by external databases are registered by the binding
// package.
type MakeStoreFunc func(props Properties, logger log.Logger) (store.Store, error)

var (
	Stores map[string]MakeStoreFunc
)

func init() {
	Stores = map[string]MakeStoreFunc{
		"memory": func(_ Properties, _ log.Logger) (store.Store, error) {
			return store.NewMemoryStore(), nil
		},
		"basic": NewBasicStore,
	}
}

// StoreNames lists the registered stores, sorted.
func StoreNames() []string {
	names := make([]string, 0, len(Stores))
	for name := range Stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func NewStore(name string, props Properties, logger log.Logger) (store.Store, error) {
	f, ok := Stores[name]
	if !ok {
		return nil, store.NewValidationError("unsupported store %q, valid: %s",
			name, strings.Join(StoreNames(), ", "))
	}
	return f(props, logger)
}
