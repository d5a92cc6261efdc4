package hnix

import (
	"strings"
	"testing"
)

// --- helpers ---------------------------------------------------------------

func evalSrc(t *testing.T, src string) Value {
	t.Helper()
	ip := NewInterp()
	v, err := ip.EvalSource("<test>", src)
	if err != nil {
		t.Fatalf("eval error for %q: %v", src, err)
	}
	return v
}

func deepSrc(t *testing.T, src string) Normal {
	t.Helper()
	ip := NewInterp()
	e, err := Parse(src)
	if err != nil {
		t.Fatalf("parse error for %q: %v", src, err)
	}
	n, err := ip.EvalDeep(e)
	if err != nil {
		t.Fatalf("eval error for %q: %v", src, err)
	}
	return n
}

func evalErr(t *testing.T, src string) *EvalError {
	t.Helper()
	ip := NewInterp()
	e, err := Parse(src)
	if err != nil {
		t.Fatalf("parse error for %q: %v", src, err)
	}
	if _, err = ip.EvalDeep(e); err == nil {
		t.Fatalf("expected eval error for %q", src)
	}
	ee, ok := err.(*EvalError)
	if !ok {
		t.Fatalf("expected *EvalError for %q, got %T: %v", src, err, err)
	}
	return ee
}

func wantInt(t *testing.T, v Value, n int64) {
	t.Helper()
	if v.Tag != VTConst || v.Data.(Atom).Kind != AInt || v.Data.(Atom).Int != n {
		t.Fatalf("want int %d, got %v", n, v)
	}
}

func wantBool(t *testing.T, v Value, b bool) {
	t.Helper()
	if v.Tag != VTConst || v.Data.(Atom).Kind != ABool || v.Data.(Atom).Bool != b {
		t.Fatalf("want bool %v, got %v", b, v)
	}
}

func wantStr(t *testing.T, v Value, s string) {
	t.Helper()
	if v.Tag != VTStr || v.Data.(*StrValue).Text != s {
		t.Fatalf("want str %q, got %v", s, v)
	}
}

// --- scalar & operator rules ----------------------------------------------

func TestArithmetic(t *testing.T) {
	cases := []struct {
		src  string
		want int64
	}{
		{"1 + 2", 3},
		{"10 - 4", 6},
		{"6 * 7", 42},
		{"7 / 2", 3},
		{"-7 / 2", -3},
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"-5 + 5", 0},
	}
	for _, c := range cases {
		wantInt(t, evalSrc(t, c.src), c.want)
	}
}

func TestComparisonsAndLogic(t *testing.T) {
	cases := []struct {
		src  string
		want bool
	}{
		{"1 == 1", true},
		{"1 != 2", true},
		{"1 < 2", true},
		{"2 <= 2", true},
		{"3 > 2", true},
		{"2 >= 3", false},
		{"true && false", false},
		{"true || false", true},
		{"false -> false", true},
		{"true -> false", false},
		{"!false", true},
		{"null == null", true},
		{"true > false", true},
	}
	for _, c := range cases {
		wantBool(t, evalSrc(t, c.src), c.want)
	}
}

func TestDivisionByZero(t *testing.T) {
	ee := evalErr(t, "1 / 0")
	if ee.Kind != ErrDivisionByZero {
		t.Fatalf("want DivisionByZero, got %v", ee)
	}
}

func TestMixedAtomComparisonFails(t *testing.T) {
	ee := evalErr(t, "1 == true")
	if ee.Kind != ErrType {
		t.Fatalf("want TypeError, got %v", ee)
	}
}

func TestCompoundEqualityFails(t *testing.T) {
	ee := evalErr(t, `"a" == "a"`)
	if ee.Kind != ErrType {
		t.Fatalf("string equality must be a type error, got %v", ee)
	}
}

func TestStringConcat(t *testing.T) {
	wantStr(t, evalSrc(t, `"foo" + "bar"`), "foobar")
}

func TestStringInterpolation(t *testing.T) {
	wantStr(t, evalSrc(t, `let x = 2; in "got ${toString (x + 1)} apples"`), "got 3 apples")
	wantStr(t, evalSrc(t, `"a${"b${"c"}"}d"`), "abcd")
}

func TestURILiterals(t *testing.T) {
	v := evalSrc(t, "https://example.org/x")
	if v.Tag != VTConst || v.Data.(Atom).Kind != AURI {
		t.Fatalf("want URI atom, got %v", v)
	}
	wantBool(t, evalSrc(t, "https://a.example < https://b.example"), true)
}

func TestPathOps(t *testing.T) {
	v := evalSrc(t, "./foo + /bar")
	if v.Tag != VTPath || v.Data.(string) != "./foo/bar" {
		t.Fatalf("want path ./foo/bar, got %v", v)
	}
	wantStr(t, evalSrc(t, `./foo + "/bar"`), "./foo/bar")
}

// --- laziness & control ----------------------------------------------------

func TestIf(t *testing.T) {
	wantStr(t, evalSrc(t, `if true then "a" + "b" else "c"`), "ab")
	wantInt(t, evalSrc(t, "if 1 < 2 then 1 else 2"), 1)
}

func TestIfConditionMustBeBool(t *testing.T) {
	ee := evalErr(t, "if 1 then 2 else 3")
	if ee.Kind != ErrType {
		t.Fatalf("want TypeError, got %v", ee)
	}
}

func TestUntakenBranchStaysUnevaluated(t *testing.T) {
	wantInt(t, evalSrc(t, `if true then 1 else (throw "boom")`), 1)
}

func TestListElementsAreLazy(t *testing.T) {
	v := evalSrc(t, `[ 1 (throw "boom") 3 ]`)
	if v.Tag != VTList || len(v.Data.([]*Thunk)) != 3 {
		t.Fatalf("want 3-element list, got %v", v)
	}
}

func TestAssert(t *testing.T) {
	wantInt(t, evalSrc(t, "assert 1 < 2; 5"), 5)
	ee := evalErr(t, "assert 1 > 2; 5")
	if ee.Kind != ErrAssertionFailed {
		t.Fatalf("want AssertionFailed, got %v", ee)
	}
}

// --- let, rec, with ---------------------------------------------------------

func TestLet(t *testing.T) {
	wantInt(t, evalSrc(t, "let x = 1; y = x + 2; in y"), 3)
}

func TestLetIsRecursive(t *testing.T) {
	wantInt(t, evalSrc(t, "let even = n: if n == 0 then 1 else odd (n - 1); odd = n: if n == 0 then 0 else even (n - 1); in even 10"), 1)
}

func TestRecSetKnot(t *testing.T) {
	wantInt(t, evalSrc(t, "(rec { a = 1; b = a + 1; c = b + a; }).c"), 3)
	// Field traversal order does not matter.
	wantInt(t, evalSrc(t, "(rec { c = b + a; b = a + 1; a = 1; }).c"), 3)
}

func TestPlainSetIsNotRecursive(t *testing.T) {
	ee := evalErr(t, "({ a = 1; b = a; }).b")
	if ee.Kind != ErrUndefinedVariable {
		t.Fatalf("want UndefinedVariable, got %v", ee)
	}
}

func TestWith(t *testing.T) {
	wantInt(t, evalSrc(t, "with { a = 1; }; a + 2"), 3)
}

func TestWithRanksBelowLexical(t *testing.T) {
	wantInt(t, evalSrc(t, "let a = 1; in with { a = 99; }; a"), 1)
	// Inner with wins over outer with.
	wantInt(t, evalSrc(t, "with { a = 1; }; with { a = 2; }; a"), 2)
}

func TestUndefinedVariable(t *testing.T) {
	ee := evalErr(t, "nope")
	if ee.Kind != ErrUndefinedVariable || ee.Msg != "nope" {
		t.Fatalf("want UndefinedVariable(nope), got %v", ee)
	}
}

func TestBlackHole(t *testing.T) {
	ee := evalErr(t, "let x = x; in x")
	if ee.Kind != ErrInfiniteRecursion {
		t.Fatalf("want InfiniteRecursion, got %v", ee)
	}
}

// --- functions --------------------------------------------------------------

func TestNamedParam(t *testing.T) {
	wantInt(t, evalSrc(t, "(x: x + 1) 41"), 42)
}

func TestClosureCapturesDefinitionScope(t *testing.T) {
	wantInt(t, evalSrc(t, "let k = 10; f = x: x + k; in let k = 99; in f 1"), 11)
}

func TestParamSetDefaults(t *testing.T) {
	wantInt(t, evalSrc(t, "({x, y ? x + 1}: y) { x = 10; }"), 11)
	wantInt(t, evalSrc(t, "({x, y ? x + 1}: y) { x = 10; y = 5; }"), 5)
}

func TestParamSetSelfAndVariadic(t *testing.T) {
	wantInt(t, evalSrc(t, "({x, ...}@self: self.x) { x = 7; z = 9; }"), 7)
	wantInt(t, evalSrc(t, "({x, ...}@self: self.z) { x = 7; z = 9; }"), 9)
	wantInt(t, evalSrc(t, "(self@{x, ...}: self.z) { x = 7; z = 9; }"), 9)
}

func TestParamSetErrors(t *testing.T) {
	ee := evalErr(t, "({x}: x) { x = 1; y = 2; }")
	if ee.Kind != ErrUnexpectedArg || ee.Msg != "y" {
		t.Fatalf("want UnexpectedArg(y), got %v", ee)
	}
	ee = evalErr(t, "({x, y}: x) { x = 1; }")
	if ee.Kind != ErrMissingArg || ee.Msg != "y" {
		t.Fatalf("want MissingArg(y), got %v", ee)
	}
}

func TestDefaultSeesSelf(t *testing.T) {
	wantInt(t, evalSrc(t, "({x, y ? s.x + 1}@s: y) { x = 4; }"), 5)
}

func TestApplyNonFunction(t *testing.T) {
	ee := evalErr(t, "1 2")
	if ee.Kind != ErrType {
		t.Fatalf("want TypeError, got %v", ee)
	}
}

func TestCurriedApplication(t *testing.T) {
	wantInt(t, evalSrc(t, "(a: b: a + b) 1 2"), 3)
}

// --- determinism ------------------------------------------------------------

func TestDeterminism(t *testing.T) {
	src := `let f = {x, y ? x * 2}: x + y; in toString (f { x = 3; })`
	a := evalSrc(t, src)
	b := evalSrc(t, src)
	if a.Data.(*StrValue).Text != b.Data.(*StrValue).Text {
		t.Fatalf("non-deterministic result: %v vs %v", a, b)
	}
}

func TestRenderingInsertionOrderIrrelevant(t *testing.T) {
	a := RenderNix(deepSrc(t, "{ a = 1; b = 2; }"))
	b := RenderNix(deepSrc(t, "{ b = 2; a = 1; }"))
	if a != b {
		t.Fatalf("rendering depends on insertion order: %q vs %q", a, b)
	}
	if !strings.Contains(a, "a = 1") || !strings.Contains(a, "b = 2") {
		t.Fatalf("unexpected rendering: %q", a)
	}
}
