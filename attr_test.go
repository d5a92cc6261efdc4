package hnix

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSelect(t *testing.T) {
	wantInt(t, evalSrc(t, "{ a = 1; }.a"), 1)
	wantInt(t, evalSrc(t, "{ a.b.c = 41; }.a.b.c + 1"), 42)
	wantInt(t, evalSrc(t, "{ a = 1; }.b or 2"), 2)
	wantInt(t, evalSrc(t, "{ a.b = 1; }.a.c or 2"), 2)
}

func TestSelectMissing(t *testing.T) {
	ee := evalErr(t, "{ a = 1; }.b")
	if ee.Kind != ErrAttrMissing {
		t.Fatalf("want AttrMissing, got %v", ee)
	}
}

func TestSelectThroughNonSet(t *testing.T) {
	ee := evalErr(t, "{ a = 1; }.a.b")
	if ee.Kind != ErrType {
		t.Fatalf("want TypeError, got %v", ee)
	}
}

func TestDynamicKeys(t *testing.T) {
	wantInt(t, evalSrc(t, `let k = "a"; in { ${k} = 1; }.a`), 1)
	wantInt(t, evalSrc(t, `let k = "a"; in { a = 7; }.${k}`), 7)
	wantInt(t, evalSrc(t, `{ "x y" = 3; }."x y"`), 3)
}

func TestHasAttr(t *testing.T) {
	wantBool(t, evalSrc(t, "{ a = 1; } ? a"), true)
	wantBool(t, evalSrc(t, "{ a = 1; } ? b"), false)
}

func TestHasAttrRejectsLongPaths(t *testing.T) {
	ee := evalErr(t, "{ a.b = 1; } ? a.b")
	if ee.Kind != ErrType {
		t.Fatalf("want TypeError for multi-name ? path, got %v", ee)
	}
}

func TestNestedAlterComposes(t *testing.T) {
	got := deepSrc(t, "{ a.b.c = 1; a.b.d = 2; }.a.b")
	want := deepSrc(t, "{ c = 1; d = 2; }")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("nested alter mismatch (-want +got):\n%s", diff)
	}
}

func TestSetUpdate(t *testing.T) {
	got := deepSrc(t, "{ a = 1; b = 2; } // { b = 3; c = 4; }")
	want := deepSrc(t, "{ a = 1; b = 3; c = 4; }")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}
}

func TestSetUpdateIsShallow(t *testing.T) {
	got := deepSrc(t, "{ a.x = 1; } // { a.y = 2; }")
	want := deepSrc(t, "{ a.y = 2; }")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("// must not recurse (-want +got):\n%s", diff)
	}
}

func TestListConcat(t *testing.T) {
	got := deepSrc(t, "[ 1 2 ] ++ [ 3 ]")
	want := deepSrc(t, "[ 1 2 3 ]")
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("concat mismatch (-want +got):\n%s", diff)
	}
}

func TestInherit(t *testing.T) {
	wantInt(t, evalSrc(t, "let x = 1; in { inherit x; }.x"), 1)
	wantInt(t, evalSrc(t, "let s = { a = 5; b = 6; }; in ({ inherit (s) a b; }).b"), 6)
	// A rec set's plain inherit resolves outside the set.
	wantInt(t, evalSrc(t, "let x = 1; in (rec { inherit x; y = x + 1; }).y"), 2)
}

// alter(p, alter(p, s, const v), const v) == alter(p, s, const v)
func TestAlterIdempotence(t *testing.T) {
	ip := NewInterp()
	set := map[string]*Thunk{"q": ip.valueRef(ConstVal(IntAtom(0)))}
	path := []string{"a", "b"}
	ins := func(*Thunk) (*Thunk, error) { return ip.valueRef(ConstVal(IntAtom(9))), nil }

	once, err := ip.alter(path, set, Pos{}, ins)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := ip.alter(path, once, Pos{}, ins)
	if err != nil {
		t.Fatal(err)
	}

	nOnce, err := ip.normalizeValue(SetVal(once))
	if err != nil {
		t.Fatal(err)
	}
	nTwice, err := ip.normalizeValue(SetVal(twice))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(nOnce, nTwice); diff != "" {
		t.Fatalf("alter is not idempotent (-once +twice):\n%s", diff)
	}
}

func TestAlterNoChangeOnNilReplacement(t *testing.T) {
	ip := NewInterp()
	set := map[string]*Thunk{}
	out, err := ip.alter([]string{"a", "b"}, set, Pos{}, func(*Thunk) (*Thunk, error) { return nil, nil })
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 0 {
		t.Fatalf("empty recursion must not materialize intermediates, got %d entries", len(out))
	}
}

func TestAlterThroughNonSet(t *testing.T) {
	ip := NewInterp()
	set := map[string]*Thunk{"a": ip.valueRef(ConstVal(IntAtom(1)))}
	_, err := ip.alter([]string{"a", "b"}, set, Pos{}, func(*Thunk) (*Thunk, error) {
		return ip.valueRef(ConstVal(IntAtom(2))), nil
	})
	ee, ok := err.(*EvalError)
	if !ok || ee.Kind != ErrNotASet {
		t.Fatalf("want NotASet, got %v", err)
	}
}
