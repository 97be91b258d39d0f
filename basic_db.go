package tpccbench

import (
	"time"

	"github.com/hhkbp2/tpccbench/log"
	"github.com/hhkbp2/tpccbench/store"
)

// NewBasicStore returns the in-memory store slowed down by a simulated
// per-operation delay, optionally echoing every operation. It shows how a
// workload behaves against a store with a given latency.
func NewBasicStore(props Properties, logger log.Logger) (store.Store, error) {
	verbose, err := props.GetBool(PropertyBasicVerbose)
	if err != nil {
		return nil, err
	}
	delay, err := props.GetDuration(PropertyBasicSimulateDelay, time.Millisecond)
	if err != nil {
		return nil, err
	}
	if delay < 0 {
		return nil, store.NewValidationError("%s must not be negative", PropertyBasicSimulateDelay)
	}
	randomize, err := props.GetBool(PropertyBasicRandomizeDelay)
	if err != nil {
		return nil, err
	}
	seed, err := props.GetInt64(PropertySeed)
	if err != nil {
		return nil, err
	}
	if verbose {
		OutputProperties(logger, props)
	}
	return store.NewDelayStore(store.NewMemoryStore(), logger, store.DelayOptions{
		Delay:     delay,
		Randomize: randomize,
		Verbose:   verbose,
		Seed:      seed,
	}), nil
}
