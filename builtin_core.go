// builtin_core.go — the core builtin catalog.
//
// A builtin is a named one-argument transition on thunks; multi-argument
// builtins are curried at construction. The argument arrives unforced, so a
// builtin chooses what to force. The whole catalog lives in the `builtins`
// attribute set; a handful of names are additionally exposed at the top
// level, mirroring the usual Nix surface.
package hnix

import (
	"fmt"
	"sort"
)

// coreBuiltins builds the base scope table.
func (ip *Interp) coreBuiltins() map[string]*Thunk {
	cat := map[string]Value{
		"toString":     prim1("toString", primToString),
		"import":       prim1("import", primImport),
		"throw":        prim1("throw", primThrow),
		"abort":        prim1("abort", primAbort),
		"tryEval":      prim1("tryEval", primTryEval),
		"seq":          prim2("seq", primSeq),
		"deepSeq":      prim2("deepSeq", primDeepSeq),
		"length":       prim1("length", primLength),
		"head":         prim1("head", primHead),
		"tail":         prim1("tail", primTail),
		"elemAt":       prim2("elemAt", primElemAt),
		"map":          prim2("map", primMap),
		"filter":       prim2("filter", primFilter),
		"attrNames":    prim1("attrNames", primAttrNames),
		"attrValues":   prim1("attrValues", primAttrValues),
		"hasAttr":      prim2("hasAttr", primHasAttr),
		"getAttr":      prim2("getAttr", primGetAttr),
		"removeAttrs":  prim2("removeAttrs", primRemoveAttrs),
		"functionArgs": prim1("functionArgs", primFunctionArgs),
		"typeOf":       prim1("typeOf", primTypeOf),
		"isAttrs":      tagPred("isAttrs", VTSet),
		"isList":       tagPred("isList", VTList),
		"isString":     tagPred("isString", VTStr),
		"isInt":        atomPred("isInt", AInt),
		"isBool":       atomPred("isBool", ABool),
		"isNull":       atomPred("isNull", ANull),
	}
	// isFunction matches user functions and builtins alike.
	cat["isFunction"] = prim1("isFunction", func(ip *Interp, t *Thunk) (*Thunk, error) {
		v, err := ip.force(t)
		if err != nil {
			return nil, err
		}
		return ip.valueRef(boolVal(v.Tag == VTFun || v.Tag == VTBuiltin)), nil
	})

	tbl := map[string]*Thunk{}
	set := map[string]*Thunk{}
	for name, v := range cat {
		t := ip.valueRef(v)
		set[name] = t
	}
	tbl["builtins"] = ip.valueRef(SetVal(set))

	// Top-level surface.
	for _, name := range []string{"toString", "import", "throw", "abort", "map", "removeAttrs"} {
		tbl[name] = set[name]
	}
	return tbl
}

func prim1(name string, f func(ip *Interp, a *Thunk) (*Thunk, error)) Value {
	return BuiltinVal(&Builtin{Name: name, Fn: f})
}

func prim2(name string, f func(ip *Interp, a, b *Thunk) (*Thunk, error)) Value {
	return BuiltinVal(&Builtin{Name: name, Fn: func(ip *Interp, a *Thunk) (*Thunk, error) {
		inner := &Builtin{Name: name + "'", Fn: func(ip *Interp, b *Thunk) (*Thunk, error) {
			return f(ip, a, b)
		}}
		return ip.valueRef(BuiltinVal(inner)), nil
	}})
}

func tagPred(name string, tag ValueTag) Value {
	return prim1(name, func(ip *Interp, t *Thunk) (*Thunk, error) {
		v, err := ip.force(t)
		if err != nil {
			return nil, err
		}
		return ip.valueRef(boolVal(v.Tag == tag)), nil
	})
}

func atomPred(name string, kind AtomKind) Value {
	return prim1(name, func(ip *Interp, t *Thunk) (*Thunk, error) {
		v, err := ip.force(t)
		if err != nil {
			return nil, err
		}
		ok := v.Tag == VTConst && v.Data.(Atom).Kind == kind
		return ip.valueRef(boolVal(ok)), nil
	})
}

/* ===========================
   Implementations
   =========================== */

func primToString(ip *Interp, t *Thunk) (*Thunk, error) {
	nf, err := ip.Normalize(t)
	if err != nil {
		return nil, err
	}
	text, ctx, err := coerceString(nf)
	if err != nil {
		return nil, err
	}
	return ip.valueRef(StrVal(text, ctx)), nil
}

func primImport(ip *Interp, t *Thunk) (*Thunk, error) {
	v, err := ip.force(t)
	if err != nil {
		return nil, err
	}
	switch v.Tag {
	case VTPath:
		return ip.ImportFile(v.Data.(string), ip.currentImporter())
	case VTEnvPath:
		resolved, err := ip.resolveEnvPath(v.Data.(string))
		if err != nil {
			return nil, err
		}
		return ip.ImportFile(resolved, "")
	case VTStr:
		return ip.ImportFile(v.Data.(*StrValue).Text, ip.currentImporter())
	}
	return nil, errTypef(Pos{}, "import expects a path, got a %s", v.Tag)
}

func primThrow(ip *Interp, t *Thunk) (*Thunk, error) {
	msg, err := coerceErrMsg(ip, t)
	if err != nil {
		return nil, err
	}
	return nil, &EvalError{Kind: ErrThrown, Msg: msg}
}

func primAbort(ip *Interp, t *Thunk) (*Thunk, error) {
	msg, err := coerceErrMsg(ip, t)
	if err != nil {
		return nil, err
	}
	return nil, &EvalError{Kind: ErrThrown, Msg: "evaluation aborted: " + msg}
}

func coerceErrMsg(ip *Interp, t *Thunk) (string, error) {
	nf, err := ip.Normalize(t)
	if err != nil {
		return "", err
	}
	text, _, err := coerceString(nf)
	if err != nil {
		return "", err
	}
	return text, nil
}

// primTryEval forces its argument and reifies catchable failures (throws and
// failed assertions) as { success = false; value = false; }. Black holes,
// type errors and every other failure still propagate.
func primTryEval(ip *Interp, t *Thunk) (*Thunk, error) {
	v, err := ip.force(t)
	success := true
	if err != nil {
		if !catchable(err) {
			return nil, err
		}
		success = false
		v = falseVal
	}
	out := map[string]*Thunk{
		"success": ip.valueRef(boolVal(success)),
		"value":   ip.valueRef(v),
	}
	return ip.valueRef(SetVal(out)), nil
}

func primSeq(ip *Interp, a, b *Thunk) (*Thunk, error) {
	if _, err := ip.force(a); err != nil {
		return nil, err
	}
	return b, nil
}

func primDeepSeq(ip *Interp, a, b *Thunk) (*Thunk, error) {
	if _, err := ip.Normalize(a); err != nil {
		return nil, err
	}
	return b, nil
}

func primLength(ip *Interp, t *Thunk) (*Thunk, error) {
	xs, err := forceList(ip, t, "length")
	if err != nil {
		return nil, err
	}
	return ip.valueRef(ConstVal(IntAtom(int64(len(xs))))), nil
}

func primHead(ip *Interp, t *Thunk) (*Thunk, error) {
	xs, err := forceList(ip, t, "head")
	if err != nil {
		return nil, err
	}
	if len(xs) == 0 {
		return nil, &EvalError{Kind: ErrThrown, Msg: "head: empty list"}
	}
	return xs[0], nil
}

func primTail(ip *Interp, t *Thunk) (*Thunk, error) {
	xs, err := forceList(ip, t, "tail")
	if err != nil {
		return nil, err
	}
	if len(xs) == 0 {
		return nil, &EvalError{Kind: ErrThrown, Msg: "tail: empty list"}
	}
	return ip.valueRef(ListVal(xs[1:])), nil
}

func primElemAt(ip *Interp, lt, it *Thunk) (*Thunk, error) {
	xs, err := forceList(ip, lt, "elemAt")
	if err != nil {
		return nil, err
	}
	iv, err := ip.force(it)
	if err != nil {
		return nil, err
	}
	if iv.Tag != VTConst || iv.Data.(Atom).Kind != AInt {
		return nil, errTypef(Pos{}, "elemAt expects an integer index, got a %s", iv.Tag)
	}
	i := iv.Data.(Atom).Int
	if i < 0 || i >= int64(len(xs)) {
		return nil, &EvalError{Kind: ErrThrown, Msg: fmt.Sprintf("elemAt: index %d out of bounds", i)}
	}
	return xs[i], nil
}

// primMap builds the result list lazily: each element is a deferred
// application of f.
func primMap(ip *Interp, ft, lt *Thunk) (*Thunk, error) {
	xs, err := forceList(ip, lt, "map")
	if err != nil {
		return nil, err
	}
	fv, err := ip.force(ft)
	if err != nil {
		return nil, err
	}
	out := make([]*Thunk, len(xs))
	for i, x := range xs {
		x := x
		out[i] = ip.newThunk(func() (Value, error) { return ip.apply(fv, x, Pos{}) })
	}
	return ip.valueRef(ListVal(out)), nil
}

// primFilter is strict in every element: each predicate result is forced.
func primFilter(ip *Interp, ft, lt *Thunk) (*Thunk, error) {
	xs, err := forceList(ip, lt, "filter")
	if err != nil {
		return nil, err
	}
	fv, err := ip.force(ft)
	if err != nil {
		return nil, err
	}
	var out []*Thunk
	for _, x := range xs {
		r, err := ip.apply(fv, x, Pos{})
		if err != nil {
			return nil, err
		}
		keep, ok := asBool(r)
		if !ok {
			return nil, errTypef(Pos{}, "filter predicate must return a boolean, got a %s", r.Tag)
		}
		if keep {
			out = append(out, x)
		}
	}
	return ip.valueRef(ListVal(out)), nil
}

func primAttrNames(ip *Interp, t *Thunk) (*Thunk, error) {
	m, err := forceSet(ip, t, "attrNames")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]*Thunk, len(names))
	for i, k := range names {
		out[i] = ip.valueRef(StrVal(k, nil))
	}
	return ip.valueRef(ListVal(out)), nil
}

func primAttrValues(ip *Interp, t *Thunk) (*Thunk, error) {
	m, err := forceSet(ip, t, "attrValues")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]*Thunk, len(names))
	for i, k := range names {
		out[i] = m[k]
	}
	return ip.valueRef(ListVal(out)), nil
}

func primHasAttr(ip *Interp, nt, st *Thunk) (*Thunk, error) {
	name, err := forceString(ip, nt, "hasAttr")
	if err != nil {
		return nil, err
	}
	m, err := forceSet(ip, st, "hasAttr")
	if err != nil {
		return nil, err
	}
	_, ok := m[name]
	return ip.valueRef(boolVal(ok)), nil
}

func primGetAttr(ip *Interp, nt, st *Thunk) (*Thunk, error) {
	name, err := forceString(ip, nt, "getAttr")
	if err != nil {
		return nil, err
	}
	m, err := forceSet(ip, st, "getAttr")
	if err != nil {
		return nil, err
	}
	t, ok := m[name]
	if !ok {
		return nil, errAttrMissing([]string{name}, Pos{})
	}
	return t, nil
}

func primRemoveAttrs(ip *Interp, st, lt *Thunk) (*Thunk, error) {
	m, err := forceSet(ip, st, "removeAttrs")
	if err != nil {
		return nil, err
	}
	xs, err := forceList(ip, lt, "removeAttrs")
	if err != nil {
		return nil, err
	}
	drop := map[string]bool{}
	for _, x := range xs {
		name, err := forceString(ip, x, "removeAttrs")
		if err != nil {
			return nil, err
		}
		drop[name] = true
	}
	out := make(map[string]*Thunk, len(m))
	for k, t := range m {
		if !drop[k] {
			out[k] = t
		}
	}
	return ip.valueRef(SetVal(out)), nil
}

// primFunctionArgs exposes a function's parameter-set shape as
// { name = hasDefault; ... }.
func primFunctionArgs(ip *Interp, t *Thunk) (*Thunk, error) {
	v, err := ip.force(t)
	if err != nil {
		return nil, err
	}
	if v.Tag != VTFun {
		return nil, errTypef(Pos{}, "functionArgs expects a function, got a %s", v.Tag)
	}
	f := v.Data.(*Fun)
	out := map[string]*Thunk{}
	if f.Params.SetPattern {
		for _, field := range f.Params.Fields {
			out[field.Name] = ip.valueRef(boolVal(field.Default != nil))
		}
	}
	return ip.valueRef(SetVal(out)), nil
}

func primTypeOf(ip *Interp, t *Thunk) (*Thunk, error) {
	v, err := ip.force(t)
	if err != nil {
		return nil, err
	}
	name := ""
	switch v.Tag {
	case VTConst:
		switch v.Data.(Atom).Kind {
		case AInt:
			name = "int"
		case ABool:
			name = "bool"
		case ANull:
			name = "null"
		case AURI:
			name = "string"
		}
	case VTStr:
		name = "string"
	case VTList:
		name = "list"
	case VTSet:
		name = "set"
	case VTFun, VTBuiltin:
		name = "lambda"
	case VTPath, VTEnvPath:
		name = "path"
	}
	return ip.valueRef(StrVal(name, nil)), nil
}

/* ===========================
   Forcing helpers
   =========================== */

func forceList(ip *Interp, t *Thunk, who string) ([]*Thunk, error) {
	v, err := ip.force(t)
	if err != nil {
		return nil, err
	}
	if v.Tag != VTList {
		return nil, errTypef(Pos{}, "%s expects a list, got a %s", who, v.Tag)
	}
	return v.Data.([]*Thunk), nil
}

func forceSet(ip *Interp, t *Thunk, who string) (map[string]*Thunk, error) {
	v, err := ip.force(t)
	if err != nil {
		return nil, err
	}
	if v.Tag != VTSet {
		return nil, errTypef(Pos{}, "%s expects a set, got a %s", who, v.Tag)
	}
	return v.Data.(map[string]*Thunk), nil
}

func forceString(ip *Interp, t *Thunk, who string) (string, error) {
	v, err := ip.force(t)
	if err != nil {
		return "", err
	}
	if v.Tag != VTStr {
		return "", errTypef(Pos{}, "%s expects a string, got a %s", who, v.Tag)
	}
	return v.Data.(*StrValue).Text, nil
}
