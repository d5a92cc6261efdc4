// attr.go — attribute paths: selector evaluation, Select/HasAttr rules, and
// the alter primitive that all nested set construction goes through.
package hnix

// evalSelector resolves a selector's components to plain names. Dynamic
// components build a string (the same machinery as string literals), are
// normalized, and coerced with their context discarded. When allowDynamic is
// false, any dynamic component fails.
func (ip *Interp) evalSelector(keys []Key, sc *Scope, allowDynamic bool, pos Pos) ([]string, error) {
	out := make([]string, len(keys))
	for i, k := range keys {
		if k.Dyn == nil {
			out[i] = k.Name
			continue
		}
		if !allowDynamic {
			return nil, &EvalError{Kind: ErrDynamicKeyNotAllowed, Pos: pos}
		}
		v, err := ip.eval(k.Dyn, sc)
		if err != nil {
			return nil, err
		}
		nf, err := ip.normalizeValue(v)
		if err != nil {
			return nil, err
		}
		name, _, err := coerceString(nf)
		if err != nil {
			return nil, err
		}
		out[i] = name
	}
	return out, nil
}

// evalSelect walks the attribute path name-by-name, forcing only the thunks
// on the path. A missing attribute falls back to the default when one is
// present, otherwise fails AttrMissing; a non-set along the way is a type
// error regardless of the default.
func (ip *Interp) evalSelect(n *SelectExpr, sc *Scope) (Value, error) {
	path, err := ip.evalSelector(n.Path, sc, true, n.Pos)
	if err != nil {
		return Value{}, err
	}
	cur, err := ip.eval(n.Set, sc)
	if err != nil {
		return Value{}, err
	}
	for _, name := range path {
		if cur.Tag != VTSet {
			return Value{}, errTypef(n.Pos, "attempt to select %s from a %s", name, cur.Tag)
		}
		t, ok := cur.Data.(map[string]*Thunk)[name]
		if !ok {
			if n.Default != nil {
				return ip.eval(n.Default, sc)
			}
			return Value{}, errAttrMissing(path, n.Pos)
		}
		cur, err = ip.force(t)
		if err != nil {
			return Value{}, err
		}
	}
	return cur, nil
}

// evalHasAttr implements `s ? a`. Paths of any other length are rejected.
func (ip *Interp) evalHasAttr(n *HasAttrExpr, sc *Scope) (Value, error) {
	if len(n.Path) != 1 {
		return Value{}, errTypef(n.Pos, "? expects a single attribute name, got a path of length %d", len(n.Path))
	}
	path, err := ip.evalSelector(n.Path, sc, true, n.Pos)
	if err != nil {
		return Value{}, err
	}
	v, err := ip.eval(n.Set, sc)
	if err != nil {
		return Value{}, err
	}
	if v.Tag != VTSet {
		return Value{}, errTypef(n.Pos, "? expects a set, got a %s", v.Tag)
	}
	_, ok := v.Data.(map[string]*Thunk)[path[0]]
	return boolVal(ok), nil
}

// alter performs a functional update of set at path, calling f with the
// current slot (nil when absent) to obtain the replacement (nil for no
// change). Intermediate sets are forced as needed; a missing intermediate is
// treated as empty and only materialized if the recursion produced entries.
// An empty path is the caller's bug.
func (ip *Interp) alter(path []string, set map[string]*Thunk, pos Pos, f func(cur *Thunk) (*Thunk, error)) (map[string]*Thunk, error) {
	if len(path) == 0 {
		panic("alter: empty attribute path")
	}
	return ip.alterAt(path, nil, set, pos, f)
}

// alterAt is alter with the already-walked prefix threaded through for
// NotASet diagnostics.
func (ip *Interp) alterAt(path, prefix []string, set map[string]*Thunk, pos Pos, f func(cur *Thunk) (*Thunk, error)) (map[string]*Thunk, error) {
	name := path[0]
	cur, present := set[name]

	if len(path) == 1 {
		rep, err := f(cur)
		if err != nil {
			return nil, err
		}
		if rep == nil {
			return set, nil
		}
		out := copyAttrs(set)
		out[name] = rep
		return out, nil
	}

	var inner map[string]*Thunk
	if present {
		v, err := ip.force(cur)
		if err != nil {
			return nil, err
		}
		if v.Tag != VTSet {
			return nil, errNotASet(append(append([]string{}, prefix...), name), pos)
		}
		inner = v.Data.(map[string]*Thunk)
	} else {
		inner = map[string]*Thunk{}
	}

	newInner, err := ip.alterAt(path[1:], append(prefix, name), inner, pos, f)
	if err != nil {
		return nil, err
	}
	if !present && len(newInner) == 0 {
		return set, nil
	}
	out := copyAttrs(set)
	out[name] = ip.valueRef(SetVal(newInner))
	return out, nil
}

func copyAttrs(m map[string]*Thunk) map[string]*Thunk {
	out := make(map[string]*Thunk, len(m)+1)
	for k, t := range m {
		out[k] = t
	}
	return out
}
