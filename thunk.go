// thunk.go — memoized deferred computations.
//
// A thunk stands for a computation that, when forced, yields exactly one
// head-normal value. The memo cell is a three-state machine: unforced,
// forcing, forced. Re-entering a thunk that is already forcing is the
// infinite-recursion detector (the black hole). Evaluation is
// single-threaded, so the cell needs no locking.
package hnix

type thunkState uint8

const (
	stUnforced thunkState = iota
	stForcing
	stForced
)

// Thunk is an opaque handle for a deferred computation. Create thunks with
// (*Interp).newThunk or lift an existing value with (*Interp).valueRef.
type Thunk struct {
	id     int64
	state  thunkState
	value  Value
	err    error
	action func() (Value, error)
}

// ID identifies the thunk in diagnostics.
func (t *Thunk) ID() int64 { return t.id }

// newThunk wraps action in a fresh memoized thunk.
func (ip *Interp) newThunk(action func() (Value, error)) *Thunk {
	ip.nextThunkID++
	return &Thunk{id: ip.nextThunkID, action: action}
}

// valueRef lifts an already-computed head-normal value into a forced thunk,
// short-circuiting the memo machinery.
func (ip *Interp) valueRef(v Value) *Thunk {
	ip.nextThunkID++
	return &Thunk{id: ip.nextThunkID, state: stForced, value: v}
}

// force reduces t to head-normal form. The result (value or failure) is
// memoized: forcing the same thunk again returns the cached outcome without
// re-running the deferred computation. Forcing a thunk that is currently
// being forced fails with InfiniteRecursion.
func (ip *Interp) force(t *Thunk) (Value, error) {
	switch t.state {
	case stForced:
		return t.value, t.err
	case stForcing:
		return Value{}, errInfiniteRecursion(t.id)
	}
	t.state = stForcing
	v, err := t.action()
	t.state = stForced
	t.value, t.err = v, err
	t.action = nil
	return v, err
}

// exprThunk defers evaluation of e under sc. This is the single deferral
// point of the evaluator: wherever laziness is required, children are wrapped
// through here.
func (ip *Interp) exprThunk(e Expr, sc *Scope) *Thunk {
	return ip.newThunk(func() (Value, error) { return ip.eval(e, sc) })
}
