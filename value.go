// value.go — the runtime value model.
//
// A Value is a head-normal form: its outermost tag is known but its compound
// slots (list elements, set attributes) still hold unforced thunks. Normal is
// the parallel fully-evaluated tree produced by the normalizer; it shares the
// tag space but every recursive slot holds another Normal.
package hnix

import (
	"fmt"
	"sort"
	"strings"
)

// ValueTag enumerates the head-normal value shapes.
type ValueTag int

const (
	VTConst   ValueTag = iota // Atom
	VTStr                     // *StrValue
	VTList                    // []*Thunk (Value) / []Normal (Normal)
	VTSet                     // map[string]*Thunk (Value) / map[string]Normal (Normal)
	VTFun                     // *Fun (Value) / *NormalFun (Normal)
	VTPath                    // string (literal filesystem path)
	VTEnvPath                 // string (lookup-path name, e.g. "nixpkgs")
	VTBuiltin                 // *Builtin
)

func (t ValueTag) String() string {
	switch t {
	case VTConst:
		return "constant"
	case VTStr:
		return "string"
	case VTList:
		return "list"
	case VTSet:
		return "set"
	case VTFun:
		return "function"
	case VTPath:
		return "path"
	case VTEnvPath:
		return "lookup path"
	case VTBuiltin:
		return "builtin"
	}
	return "unknown"
}

// Context records build-time provenance of a string as an unordered multiset
// of text fragments. Concatenation of strings unions contexts.
type Context map[string]int

// Add inserts one occurrence of frag.
func (c Context) Add(frag string) { c[frag]++ }

// Union folds other into c, returning c.
func (c Context) Union(other Context) Context {
	for frag, n := range other {
		c[frag] += n
	}
	return c
}

// Copy returns an independent multiset with the same contents.
func (c Context) Copy() Context {
	out := make(Context, len(c))
	for frag, n := range c {
		out[frag] = n
	}
	return out
}

// Fragments returns the distinct fragments in sorted order.
func (c Context) Fragments() []string {
	out := make([]string, 0, len(c))
	for frag := range c {
		out = append(out, frag)
	}
	sort.Strings(out)
	return out
}

// StrValue is a string together with its provenance context.
type StrValue struct {
	Text string
	Ctx  Context
}

// Fun is a user function: a parameter shape and a body closed over the
// definition-site scope. Defaults in Params evaluate under the bound scope
// (the knot), never the call site.
type Fun struct {
	Params Params
	Body   Expr
	Env    *Scope
}

// Builtin is an opaque primitive: a named one-argument transition on thunks.
// Multi-argument builtins are curried at construction. The argument arrives
// unforced.
type Builtin struct {
	Name string
	Fn   func(ip *Interp, arg *Thunk) (*Thunk, error)
}

// Value is the universal head-normal carrier. Tag selects the dynamic type
// of Data; see the ValueTag constants.
type Value struct {
	Tag  ValueTag
	Data any
}

func ConstVal(a Atom) Value { return Value{Tag: VTConst, Data: a} }

func StrVal(text string, ctx Context) Value {
	if ctx == nil {
		ctx = Context{}
	}
	return Value{Tag: VTStr, Data: &StrValue{Text: text, Ctx: ctx}}
}

func ListVal(xs []*Thunk) Value            { return Value{Tag: VTList, Data: xs} }
func SetVal(m map[string]*Thunk) Value     { return Value{Tag: VTSet, Data: m} }
func FunVal(f *Fun) Value                  { return Value{Tag: VTFun, Data: f} }
func PathVal(p string) Value               { return Value{Tag: VTPath, Data: p} }
func EnvPathVal(name string) Value         { return Value{Tag: VTEnvPath, Data: name} }
func BuiltinVal(b *Builtin) Value          { return Value{Tag: VTBuiltin, Data: b} }

var (
	trueVal  = ConstVal(BoolAtom(true))
	falseVal = ConstVal(BoolAtom(false))
	nullVal  = ConstVal(NullAtom())
)

func boolVal(b bool) Value {
	if b {
		return trueVal
	}
	return falseVal
}

// String renders a short debug form; the renderer (render.go) produces the
// user-facing representation from normal forms.
func (v Value) String() string {
	switch v.Tag {
	case VTConst:
		return v.Data.(Atom).String()
	case VTStr:
		return fmt.Sprintf("%q", v.Data.(*StrValue).Text)
	case VTList:
		return fmt.Sprintf("<list len=%d>", len(v.Data.([]*Thunk)))
	case VTSet:
		return fmt.Sprintf("<set len=%d>", len(v.Data.(map[string]*Thunk)))
	case VTFun:
		return "<lambda>"
	case VTPath:
		return v.Data.(string)
	case VTEnvPath:
		return "<" + v.Data.(string) + ">"
	case VTBuiltin:
		return "<builtin " + v.Data.(*Builtin).Name + ">"
	}
	return "<unknown>"
}

func (a Atom) String() string {
	switch a.Kind {
	case AInt:
		return fmt.Sprintf("%d", a.Int)
	case ABool:
		if a.Bool {
			return "true"
		}
		return "false"
	case ANull:
		return "null"
	case AURI:
		return a.URI
	}
	return "<atom?>"
}

// atomEqual reports structural equality of two atoms of the same kind.
func atomEqual(a, b Atom) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case AInt:
		return a.Int == b.Int
	case ABool:
		return a.Bool == b.Bool
	case ANull:
		return true
	case AURI:
		return a.URI == b.URI
	}
	return false
}

// atomCompare orders two atoms of the same kind: numeric for ints,
// false < true for bools, lexicographic for URIs. Nulls are equal.
// Returns -1, 0 or 1.
func atomCompare(a, b Atom) int {
	switch a.Kind {
	case AInt:
		switch {
		case a.Int < b.Int:
			return -1
		case a.Int > b.Int:
			return 1
		}
		return 0
	case ABool:
		switch {
		case !a.Bool && b.Bool:
			return -1
		case a.Bool && !b.Bool:
			return 1
		}
		return 0
	case ANull:
		return 0
	case AURI:
		return strings.Compare(a.URI, b.URI)
	}
	return 0
}

// Normal is a fully evaluated tree value: every recursive slot is itself a
// Normal. Produced only by the normalizer.
type Normal struct {
	Tag  ValueTag
	Data any
}

// NormalFun is the normal form of a user function: its parameter-set default
// expressions and its body, both evaluated under the definition-site scope
// and normalized.
type NormalFun struct {
	Params   Params
	Defaults map[string]Normal
	Body     Normal
}

// SortedKeys returns the attribute names of a normal-form set in sorted
// order, the iteration order renderers must use.
func (n Normal) SortedKeys() []string {
	m, ok := n.Data.(map[string]Normal)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
