package mailbox

import "github.com/quillhq/hyperbox/internal/mailbox/wire"

// Accumulator folds a stream of updates of type U into a derived state of
// type S. It is the plug-in contract behind an accumulator port: the
// accumulator/reducer registries themselves are external collaborators;
// this is just the shape a concrete registry entry must have to be usable
// by Mailbox.OpenAccumPort.
type Accumulator[U, S any] interface {
	// Init returns the starting state before any update has folded in.
	Init() S

	// Fold combines the current state with a new update, returning the
	// next state. Fold must not retain update beyond the call.
	Fold(state S, update U) S
}

// AccumulatorFunc adapts a pair of plain functions to the Accumulator
// interface.
type AccumulatorFunc[U, S any] struct {
	InitFn func() S
	FoldFn func(state S, update U) S
}

// Init implements Accumulator.
func (a AccumulatorFunc[U, S]) Init() S {
	return a.InitFn()
}

// Fold implements Accumulator.
func (a AccumulatorFunc[U, S]) Fold(state S, update U) S {
	return a.FoldFn(state, update)
}

// ReducerSpec is a plug-in descriptor naming a reducer and its parameters.
// It is attached to the port reference returned by OpenAccumPort so that a
// remote peer forwarding through a split port knows which reducer to
// invoke without needing the full Accumulator value, only its name and
// parameters — the actual reducer registry lookup is an external
// collaborator.
type ReducerSpec struct {
	Name   string
	Params Attrs
}

// Reducer combines a batch of raw updates into a single raw update without
// needing to know their concrete Go type. This is what a split port
// invokes once its buffer reaches SplitMaxBufferSize.
type Reducer interface {
	ReduceUpdates(updates []wire.Serialized) (wire.Serialized, error)
}

// ReducerFunc adapts a plain function to the Reducer interface.
type ReducerFunc func(updates []wire.Serialized) (wire.Serialized, error)

// ReduceUpdates implements Reducer.
func (f ReducerFunc) ReduceUpdates(updates []wire.Serialized) (wire.Serialized, error) {
	return f(updates)
}
