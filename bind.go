// bind.go — the argument binder and attribute-set construction.
//
// Both share the same fixed-point trick: a scope frame is created first, its
// table is filled in (or patched in afterwards), and every deferred
// right-hand side or default expression closes over the frame. When a thunk
// is eventually forced it sees the completed table — the knot is tied without
// any mutation of already-visible bindings.
package hnix

import "sort"

// bindParams aligns a function's parameter shape against the argument thunk
// and returns the scope to evaluate the body under.
//
// For a set pattern the bound scope is the fixed point of the alignment:
// supplied fields keep their thunks, defaults are deferred under the knot so
// they see every sibling binding, and the self name (when present) binds a
// snapshot of the knot taken before the self injection.
func (ip *Interp) bindParams(p Params, arg *Thunk, def *Scope, pos Pos) (*Scope, error) {
	if !p.SetPattern {
		return def.push(map[string]*Thunk{p.Name: arg}, false), nil
	}

	v, err := ip.force(arg)
	if err != nil {
		return nil, err
	}
	if v.Tag != VTSet {
		return nil, errTypef(pos, "function expects a set argument, got a %s", v.Tag)
	}
	args := v.Data.(map[string]*Thunk)

	declared := make(map[string]bool, len(p.Fields))
	for _, f := range p.Fields {
		declared[f.Name] = true
	}
	if !p.Variadic {
		var extra []string
		for k := range args {
			if !declared[k] {
				extra = append(extra, k)
			}
		}
		if len(extra) > 0 {
			sort.Strings(extra)
			return nil, &EvalError{Kind: ErrUnexpectedArg, Msg: extra[0], Pos: pos}
		}
	}

	tbl := make(map[string]*Thunk, len(args)+len(p.Fields)+1)
	knot := def.push(tbl, false)
	for _, f := range p.Fields {
		if t, ok := args[f.Name]; ok {
			tbl[f.Name] = t
			continue
		}
		if f.Default == nil {
			return nil, &EvalError{Kind: ErrMissingArg, Msg: f.Name, Pos: pos}
		}
		tbl[f.Name] = ip.exprThunk(f.Default, knot)
	}
	if p.Variadic {
		for k, t := range args {
			if !declared[k] {
				tbl[k] = t
			}
		}
	}
	if p.Self != "" {
		snapshot := copyAttrs(tbl)
		tbl[p.Self] = ip.valueRef(SetVal(snapshot))
	}
	return knot, nil
}

// evalBindings processes bindings in source order into an attribute mapping,
// via alter. For a recursive set every right-hand side evaluates under a
// frame whose table is back-patched to the finished mapping; for a plain set
// right-hand sides see only the outer scope.
//
// Dynamic keys always evaluate under the outer scope: a key that named
// itself through the knot could never terminate, and resolving keys before
// the knot exists keeps construction single-pass.
func (ip *Interp) evalBindings(bs []Binding, sc *Scope, rec bool) (map[string]*Thunk, error) {
	frame := &Scope{parent: sc}
	rhsScope := sc
	if rec {
		rhsScope = frame
	}

	acc := map[string]*Thunk{}
	var err error
	for i := range bs {
		b := &bs[i]
		if b.Inherit {
			acc, err = ip.inheritBindings(b, acc, sc, rhsScope)
			if err != nil {
				return nil, err
			}
			continue
		}
		path, serr := ip.evalSelector(b.Path, sc, true, b.Pos)
		if serr != nil {
			return nil, serr
		}
		rhs := ip.exprThunk(b.Value, rhsScope)
		acc, err = ip.alter(path, acc, b.Pos, func(*Thunk) (*Thunk, error) { return rhs, nil })
		if err != nil {
			return nil, err
		}
	}
	frame.table = acc
	return acc, nil
}

// inheritBindings expands an inherit form into ordinary bindings. Names
// inherited from the enclosing scope resolve outside the set under
// construction (so `rec { inherit x; }` cannot capture itself); an explicit
// source set evaluates under the binding scope and each name becomes a
// deferred selection from it.
func (ip *Interp) inheritBindings(b *Binding, acc map[string]*Thunk, outer, rhsScope *Scope) (map[string]*Thunk, error) {
	var err error
	if b.From == nil {
		for _, name := range b.Names {
			t, ok := outer.lookup(name)
			if !ok {
				return nil, errUndefined(name, b.Pos)
			}
			acc, err = ip.alter([]string{name}, acc, b.Pos, func(*Thunk) (*Thunk, error) { return t, nil })
			if err != nil {
				return nil, err
			}
		}
		return acc, nil
	}

	src := ip.exprThunk(b.From, rhsScope)
	for _, name := range b.Names {
		name := name
		sel := ip.newThunk(func() (Value, error) {
			v, ferr := ip.force(src)
			if ferr != nil {
				return Value{}, ferr
			}
			if v.Tag != VTSet {
				return Value{}, errTypef(b.Pos, "inherit source must be a set, got a %s", v.Tag)
			}
			t, ok := v.Data.(map[string]*Thunk)[name]
			if !ok {
				return Value{}, errAttrMissing([]string{name}, b.Pos)
			}
			return ip.force(t)
		})
		acc, err = ip.alter([]string{name}, acc, b.Pos, func(*Thunk) (*Thunk, error) { return sel, nil })
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}
