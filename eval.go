// eval.go — the evaluator: session state and the reduction rule for every
// expression form.
//
// The evaluator is a structurally recursive function from (expression, scope)
// to a head-normal value. Laziness lives in one place: wherever a child must
// stay deferred (list elements, set attributes, function arguments, branches
// not taken), it is wrapped through exprThunk. A rule forces a subresult only
// where it inspects the value's tag.
package hnix

import (
	"fmt"

	"github.com/charmbracelet/log"
)

// Interp is one evaluation session. It owns the base scope (builtins), the
// import cache and the thunk id counter. A session is single-threaded: do not
// share an Interp across goroutines.
type Interp struct {
	base        *Scope
	searchPath  []SearchPathEntry
	imports     map[string]*Thunk
	loadStack   []string
	log         *log.Logger
	nextThunkID int64
}

// Option configures a new session.
type Option func(*Interp)

// WithSearchPath installs lookup-path roots, in the NIX_PATH entry syntax
// ("name=path" or a bare root).
func WithSearchPath(entries []string) Option {
	return func(ip *Interp) {
		for _, e := range entries {
			ip.searchPath = append(ip.searchPath, parseSearchPathEntry(e))
		}
	}
}

// WithTrace attaches a logger that records each file import at debug level.
// Tracing never alters evaluation results.
func WithTrace(l *log.Logger) Option {
	return func(ip *Interp) { ip.log = l }
}

// NewInterp builds a session with the core builtins installed in the base
// scope.
func NewInterp(opts ...Option) *Interp {
	ip := &Interp{imports: map[string]*Thunk{}}
	for _, opt := range opts {
		opt(ip)
	}
	ip.base = (*Scope)(nil).push(ip.coreBuiltins(), false)
	return ip
}

// BaseScope returns the scope holding the builtins. Callers embedding the
// evaluator push their own frames on top of it.
func (ip *Interp) BaseScope() *Scope { return ip.base }

// Thunk defers evaluation of e under the base scope.
func (ip *Interp) Thunk(e Expr) *Thunk { return ip.exprThunk(e, ip.base) }

// Eval reduces e to head-normal form under the base scope.
func (ip *Interp) Eval(e Expr) (Value, error) {
	return ip.force(ip.Thunk(e))
}

// EvalDeep reduces e all the way to a normal-form tree.
func (ip *Interp) EvalDeep(e Expr) (Normal, error) {
	return ip.Normalize(ip.Thunk(e))
}

// EvalSource parses src (named name in diagnostics) and reduces it to
// head-normal form. Parse failures come back with a caret snippet.
func (ip *Interp) EvalSource(name, src string) (Value, error) {
	e, err := Parse(src)
	if err != nil {
		return Value{}, WrapErrorWithName(err, name, src)
	}
	return ip.Eval(e)
}

// Force reduces a thunk to head-normal form.
func (ip *Interp) Force(t *Thunk) (Value, error) { return ip.force(t) }

// ParseThunk parses src and returns a deferred evaluation of it with vars
// (which may be nil) pushed over the base scope. REPLs use this to keep
// session bindings: the thunk for `x = expr` goes into vars, and later lines
// see it.
func (ip *Interp) ParseThunk(name, src string, vars map[string]*Thunk) (*Thunk, error) {
	e, err := Parse(src)
	if err != nil {
		return nil, WrapErrorWithName(err, name, src)
	}
	sc := ip.base
	if vars != nil {
		sc = sc.push(vars, false)
	}
	return ip.exprThunk(e, sc), nil
}

// eval is the rule switch: one case per expression form. It returns the
// head-normal value of e under sc.
func (ip *Interp) eval(e Expr, sc *Scope) (Value, error) {
	switch n := e.(type) {
	case *Sym:
		t, ok := sc.lookup(n.Name)
		if !ok {
			return Value{}, errUndefined(n.Name, n.Pos)
		}
		return ip.force(t)

	case *ConstExpr:
		return ConstVal(n.Atom), nil

	case *StrExpr:
		text, ctx, err := ip.evalStrParts(n.Parts, sc)
		if err != nil {
			return Value{}, err
		}
		return StrVal(text, ctx), nil

	case *PathExpr:
		return PathVal(n.Path), nil

	case *EnvPathExpr:
		return EnvPathVal(n.Name), nil

	case *UnaryExpr:
		return ip.evalUnary(n, sc)

	case *BinaryExpr:
		return ip.evalBinary(n, sc)

	case *ListExpr:
		xs := make([]*Thunk, len(n.Elems))
		for i, el := range n.Elems {
			xs[i] = ip.exprThunk(el, sc)
		}
		return ListVal(xs), nil

	case *SetExpr:
		attrs, err := ip.evalBindings(n.Bindings, sc, n.Rec)
		if err != nil {
			return Value{}, err
		}
		return SetVal(attrs), nil

	case *LetExpr:
		attrs, err := ip.evalBindings(n.Bindings, sc, true)
		if err != nil {
			return Value{}, err
		}
		return ip.eval(n.Body, sc.push(attrs, false))

	case *IfExpr:
		c, err := ip.eval(n.Cond, sc)
		if err != nil {
			return Value{}, err
		}
		b, ok := asBool(c)
		if !ok {
			return Value{}, errTypef(n.Pos, "if condition must be a boolean, got %s", c.Tag)
		}
		if b {
			return ip.eval(n.Then, sc)
		}
		return ip.eval(n.Else, sc)

	case *WithExpr:
		v, err := ip.eval(n.Scope, sc)
		if err != nil {
			return Value{}, err
		}
		if v.Tag != VTSet {
			return Value{}, errTypef(n.Pos, "with scope must be a set, got %s", v.Tag)
		}
		return ip.eval(n.Body, sc.push(v.Data.(map[string]*Thunk), true))

	case *AssertExpr:
		c, err := ip.eval(n.Cond, sc)
		if err != nil {
			return Value{}, err
		}
		b, ok := asBool(c)
		if !ok {
			return Value{}, errTypef(n.Pos, "assert condition must be a boolean, got %s", c.Tag)
		}
		if !b {
			return Value{}, &EvalError{Kind: ErrAssertionFailed, Pos: n.Pos}
		}
		return ip.eval(n.Body, sc)

	case *AppExpr:
		fn, err := ip.eval(n.Fn, sc)
		if err != nil {
			return Value{}, err
		}
		return ip.apply(fn, ip.exprThunk(n.Arg, sc), n.Pos)

	case *AbsExpr:
		return FunVal(&Fun{Params: n.Params, Body: n.Body, Env: sc}), nil

	case *SelectExpr:
		return ip.evalSelect(n, sc)

	case *HasAttrExpr:
		return ip.evalHasAttr(n, sc)
	}
	return Value{}, errTypef(e.Position(), "unhandled expression form %T", e)
}

// apply runs the function-application protocol: user functions go through the
// argument binder; builtins receive the argument thunk unforced.
func (ip *Interp) apply(fn Value, arg *Thunk, pos Pos) (Value, error) {
	switch fn.Tag {
	case VTFun:
		f := fn.Data.(*Fun)
		bound, err := ip.bindParams(f.Params, arg, f.Env, pos)
		if err != nil {
			return Value{}, err
		}
		return ip.eval(f.Body, bound)
	case VTBuiltin:
		b := fn.Data.(*Builtin)
		out, err := b.Fn(ip, arg)
		if err != nil {
			return Value{}, err
		}
		return ip.force(out)
	}
	return Value{}, errTypef(pos, "attempt to call a %s", fn.Tag)
}

func (ip *Interp) evalUnary(n *UnaryExpr, sc *Scope) (Value, error) {
	v, err := ip.eval(n.X, sc)
	if err != nil {
		return Value{}, err
	}
	if v.Tag != VTConst {
		return Value{}, errTypef(n.Pos, "unary %s applied to a %s", n.Op, v.Tag)
	}
	a := v.Data.(Atom)
	switch {
	case n.Op == NNeg && a.Kind == AInt:
		return ConstVal(IntAtom(-a.Int)), nil
	case n.Op == NNot && a.Kind == ABool:
		return boolVal(!a.Bool), nil
	}
	return Value{}, errTypef(n.Pos, "unary %s applied to a %s constant", n.Op, a.Kind)
}

// evalBinary forces both operands and dispatches on the tag pair. Any pair
// outside the table is a type error.
func (ip *Interp) evalBinary(n *BinaryExpr, sc *Scope) (Value, error) {
	l, err := ip.eval(n.L, sc)
	if err != nil {
		return Value{}, err
	}
	r, err := ip.eval(n.R, sc)
	if err != nil {
		return Value{}, err
	}

	switch {
	case l.Tag == VTConst && r.Tag == VTConst:
		return ip.constBinop(n, l.Data.(Atom), r.Data.(Atom))

	case n.Op == NPlus && l.Tag == VTStr && r.Tag == VTStr:
		ls, rs := l.Data.(*StrValue), r.Data.(*StrValue)
		return StrVal(ls.Text+rs.Text, ls.Ctx.Copy().Union(rs.Ctx)), nil

	case n.Op == NUpdate && l.Tag == VTSet && r.Tag == VTSet:
		lm, rm := l.Data.(map[string]*Thunk), r.Data.(map[string]*Thunk)
		out := make(map[string]*Thunk, len(lm)+len(rm))
		for k, t := range lm {
			out[k] = t
		}
		for k, t := range rm {
			out[k] = t
		}
		return SetVal(out), nil

	case n.Op == NConcat && l.Tag == VTList && r.Tag == VTList:
		lx, rx := l.Data.([]*Thunk), r.Data.([]*Thunk)
		out := make([]*Thunk, 0, len(lx)+len(rx))
		out = append(out, lx...)
		out = append(out, rx...)
		return ListVal(out), nil

	case n.Op == NPlus && l.Tag == VTPath && r.Tag == VTPath:
		return PathVal(l.Data.(string) + r.Data.(string)), nil

	case n.Op == NPlus && l.Tag == VTPath && r.Tag == VTStr:
		rs := r.Data.(*StrValue)
		return StrVal(l.Data.(string)+rs.Text, rs.Ctx.Copy()), nil
	}
	return Value{}, errTypef(n.Pos, "operator %s not supported between %s and %s", n.Op, l.Tag, r.Tag)
}

// constBinop handles the Constant/Constant rows of the dispatch table:
// comparisons on same-kind atoms, boolean connectives, integer arithmetic.
func (ip *Interp) constBinop(n *BinaryExpr, a, b Atom) (Value, error) {
	switch n.Op {
	case NEq, NNEq, NLt, NLte, NGt, NGte:
		if a.Kind != b.Kind {
			return Value{}, errTypef(n.Pos, "cannot compare a %s constant with a %s constant", a.Kind, b.Kind)
		}
		c := atomCompare(a, b)
		switch n.Op {
		case NEq:
			return boolVal(atomEqual(a, b)), nil
		case NNEq:
			return boolVal(!atomEqual(a, b)), nil
		case NLt:
			return boolVal(c < 0), nil
		case NLte:
			return boolVal(c <= 0), nil
		case NGt:
			return boolVal(c > 0), nil
		case NGte:
			return boolVal(c >= 0), nil
		}

	case NAnd, NOr, NImpl:
		if a.Kind != ABool || b.Kind != ABool {
			break
		}
		switch n.Op {
		case NAnd:
			return boolVal(a.Bool && b.Bool), nil
		case NOr:
			return boolVal(a.Bool || b.Bool), nil
		case NImpl:
			return boolVal(!a.Bool || b.Bool), nil
		}

	case NPlus, NMinus, NMult, NDiv:
		if a.Kind != AInt || b.Kind != AInt {
			break
		}
		switch n.Op {
		case NPlus:
			return ConstVal(IntAtom(a.Int + b.Int)), nil
		case NMinus:
			return ConstVal(IntAtom(a.Int - b.Int)), nil
		case NMult:
			return ConstVal(IntAtom(a.Int * b.Int)), nil
		case NDiv:
			if b.Int == 0 {
				return Value{}, &EvalError{Kind: ErrDivisionByZero, Pos: n.Pos}
			}
			return ConstVal(IntAtom(a.Int / b.Int)), nil
		}
	}
	return Value{}, errTypef(n.Pos, "operator %s not supported between %s and %s constants", n.Op, a.Kind, b.Kind)
}

// evalStrParts concatenates literal fragments and antiquotations monoidally:
// text with text, context with context. Antiquoted values are normalized and
// coerced to string.
func (ip *Interp) evalStrParts(parts []StrPart, sc *Scope) (string, Context, error) {
	text := ""
	ctx := Context{}
	for _, p := range parts {
		if p.Interp == nil {
			text += p.Lit
			continue
		}
		v, err := ip.eval(p.Interp, sc)
		if err != nil {
			return "", nil, err
		}
		nf, err := ip.normalizeValue(v)
		if err != nil {
			return "", nil, err
		}
		frag, fragCtx, err := coerceString(nf)
		if err != nil {
			return "", nil, err
		}
		text += frag
		ctx.Union(fragCtx)
	}
	return text, ctx, nil
}

// coerceString renders a normal-form value as string text plus context.
// Scalars render naturally, strings keep their context, paths render their
// text; compound values and functions do not coerce.
func coerceString(n Normal) (string, Context, error) {
	switch n.Tag {
	case VTStr:
		s := n.Data.(*StrValue)
		return s.Text, s.Ctx, nil
	case VTConst:
		a := n.Data.(Atom)
		switch a.Kind {
		case AInt:
			return fmt.Sprintf("%d", a.Int), nil, nil
		case ABool:
			if a.Bool {
				return "1", nil, nil
			}
			return "", nil, nil
		case ANull:
			return "", nil, nil
		case AURI:
			return a.URI, nil, nil
		}
	case VTPath:
		return n.Data.(string), nil, nil
	case VTEnvPath:
		return "<" + n.Data.(string) + ">", nil, nil
	}
	return "", nil, errCoercion(n.Tag, "a string")
}

func asBool(v Value) (bool, bool) {
	if v.Tag != VTConst {
		return false, false
	}
	a := v.Data.(Atom)
	if a.Kind != ABool {
		return false, false
	}
	return a.Bool, true
}
