package hnix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, src string) Expr {
	t.Helper()
	e, err := Parse(src)
	require.NoError(t, err, "source: %s", src)
	return e
}

func TestParsePrecedence(t *testing.T) {
	e := parse(t, "1 + 2 * 3")
	add, ok := e.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, NPlus, add.Op)
	mul, ok := add.R.(*BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, NMult, mul.Op)
}

func TestParseRightAssociativity(t *testing.T) {
	// a -> b -> c parses as a -> (b -> c)
	e := parse(t, "a -> b -> c").(*BinaryExpr)
	assert.Equal(t, NImpl, e.Op)
	inner := e.R.(*BinaryExpr)
	assert.Equal(t, NImpl, inner.Op)

	// a // b // c parses as a // (b // c)
	u := parse(t, "a // b // c").(*BinaryExpr)
	assert.Equal(t, NUpdate, u.Op)
	_, ok := u.R.(*BinaryExpr)
	assert.True(t, ok)
}

func TestParseApplicationBindsTighter(t *testing.T) {
	e := parse(t, "f x + 1").(*BinaryExpr)
	assert.Equal(t, NPlus, e.Op)
	_, ok := e.L.(*AppExpr)
	assert.True(t, ok)
}

func TestParseApplicationLeftAssoc(t *testing.T) {
	e := parse(t, "f x y").(*AppExpr)
	inner, ok := e.Fn.(*AppExpr)
	require.True(t, ok)
	assert.Equal(t, "f", inner.Fn.(*Sym).Name)
	assert.Equal(t, "x", inner.Arg.(*Sym).Name)
	assert.Equal(t, "y", e.Arg.(*Sym).Name)
}

func TestParseLambdas(t *testing.T) {
	e := parse(t, "x: x").(*AbsExpr)
	assert.Equal(t, "x", e.Params.Name)
	assert.False(t, e.Params.SetPattern)

	e = parse(t, "{a, b ? 1, ...}@self: a").(*AbsExpr)
	require.True(t, e.Params.SetPattern)
	assert.True(t, e.Params.Variadic)
	assert.Equal(t, "self", e.Params.Self)
	require.Len(t, e.Params.Fields, 2)
	assert.Equal(t, "a", e.Params.Fields[0].Name)
	assert.Nil(t, e.Params.Fields[0].Default)
	assert.NotNil(t, e.Params.Fields[1].Default)

	e = parse(t, "self@{a}: a").(*AbsExpr)
	assert.Equal(t, "self", e.Params.Self)
	assert.False(t, e.Params.Variadic)

	e = parse(t, "{}: 1").(*AbsExpr)
	assert.True(t, e.Params.SetPattern)
	assert.Empty(t, e.Params.Fields)
}

func TestParseSetVsPattern(t *testing.T) {
	_, isSet := parse(t, "{ a = 1; }").(*SetExpr)
	assert.True(t, isSet)
	_, isAbs := parse(t, "{ a }: a").(*AbsExpr)
	assert.True(t, isAbs)
	_, isSet = parse(t, "{}").(*SetExpr)
	assert.True(t, isSet)
}

func TestParseSelect(t *testing.T) {
	e := parse(t, "s.a.b or 3").(*SelectExpr)
	require.Len(t, e.Path, 2)
	assert.Equal(t, "a", e.Path[0].Name)
	assert.Equal(t, "b", e.Path[1].Name)
	require.NotNil(t, e.Default)

	// `or` defaults bind at select level: (s.a or f) x
	app := parse(t, "s.a or f x").(*AppExpr)
	_, ok := app.Fn.(*SelectExpr)
	assert.True(t, ok)
}

func TestParseHasAttr(t *testing.T) {
	e := parse(t, "s ? a").(*HasAttrExpr)
	require.Len(t, e.Path, 1)
	assert.Equal(t, "a", e.Path[0].Name)
}

func TestParseDynamicKeys(t *testing.T) {
	set := parse(t, `{ ${k} = 1; "lit" = 2; "d${y}n" = 3; }`).(*SetExpr)
	require.Len(t, set.Bindings, 3)
	assert.NotNil(t, set.Bindings[0].Path[0].Dyn)
	assert.Equal(t, "lit", set.Bindings[1].Path[0].Name)
	assert.NotNil(t, set.Bindings[2].Path[0].Dyn)
}

func TestParseInherit(t *testing.T) {
	set := parse(t, "{ inherit a b; inherit (s) c; }").(*SetExpr)
	require.Len(t, set.Bindings, 2)
	assert.True(t, set.Bindings[0].Inherit)
	assert.Equal(t, []string{"a", "b"}, set.Bindings[0].Names)
	assert.Nil(t, set.Bindings[0].From)
	assert.NotNil(t, set.Bindings[1].From)
	assert.Equal(t, []string{"c"}, set.Bindings[1].Names)
}

func TestParseLetRecWithAssert(t *testing.T) {
	let := parse(t, "let a = 1; b.c = 2; in a").(*LetExpr)
	require.Len(t, let.Bindings, 2)
	assert.Len(t, let.Bindings[1].Path, 2)

	set := parse(t, "rec { a = 1; }").(*SetExpr)
	assert.True(t, set.Rec)

	w := parse(t, "with s; b").(*WithExpr)
	assert.Equal(t, "s", w.Scope.(*Sym).Name)

	a := parse(t, "assert c; b").(*AssertExpr)
	assert.Equal(t, "c", a.Cond.(*Sym).Name)
}

func TestParseStringParts(t *testing.T) {
	s := parse(t, `"a${x}b"`).(*StrExpr)
	require.Len(t, s.Parts, 3)
	assert.Equal(t, "a", s.Parts[0].Lit)
	assert.NotNil(t, s.Parts[1].Interp)
	assert.Equal(t, "b", s.Parts[2].Lit)
}

func TestParseUnary(t *testing.T) {
	n := parse(t, "-x").(*UnaryExpr)
	assert.Equal(t, NNeg, n.Op)
	b := parse(t, "!x && y").(*BinaryExpr)
	assert.Equal(t, NAnd, b.Op)
	_, ok := b.L.(*UnaryExpr)
	assert.True(t, ok)
}

func TestParseListElementsAreSelectLevel(t *testing.T) {
	l := parse(t, "[ f x ]").(*ListExpr)
	// Two elements, not one application.
	require.Len(t, l.Elems, 2)
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{"let x = 1;", "{ a = ; }", "if x then 1", "(1", "a.b."} {
		_, err := Parse(src)
		require.Error(t, err, "source: %s", src)
	}
}

func TestParseIncomplete(t *testing.T) {
	_, err := Parse("let x = 1;")
	assert.True(t, IsIncomplete(err))
	_, err = Parse("{ a = 1;")
	assert.True(t, IsIncomplete(err))
	_, err = Parse("1 +")
	assert.True(t, IsIncomplete(err))
	_, err = Parse("1 )")
	assert.False(t, IsIncomplete(err))
}
