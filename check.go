// check.go — the free-variable checker.
//
// A second traversal over the tree that verifies every reachable variable
// reference resolves under some scope, without computing any value. It is a
// deliberately weak lint: operators and applications are not type-checked.
package hnix

// checkFrame is a static stand-in for a scope frame. A wildcard frame
// satisfies every lookup; it models `with`, whose names are not statically
// known.
type checkFrame struct {
	names    map[string]bool
	wildcard bool
}

// Check walks e and reports the first unresolvable variable reference, or
// nil when every Sym is in scope. The base (builtins) scope counts.
func (ip *Interp) Check(e Expr) error {
	var frames []checkFrame
	for sc := ip.base; sc != nil; sc = sc.parent {
		names := make(map[string]bool, len(sc.table))
		for k := range sc.table {
			names[k] = true
		}
		frames = append(frames, checkFrame{names: names})
	}
	return ip.check(e, frames)
}

func (ip *Interp) check(e Expr, frames []checkFrame) error {
	switch n := e.(type) {
	case *Sym:
		for i := len(frames) - 1; i >= 0; i-- {
			if frames[i].wildcard || frames[i].names[n.Name] {
				return nil
			}
		}
		return errUndefined(n.Name, n.Pos)

	case *ConstExpr, *PathExpr, *EnvPathExpr:
		return nil

	case *StrExpr:
		for _, p := range n.Parts {
			if p.Interp != nil {
				if err := ip.check(p.Interp, frames); err != nil {
					return err
				}
			}
		}
		return nil

	case *ListExpr:
		for _, el := range n.Elems {
			if err := ip.check(el, frames); err != nil {
				return err
			}
		}
		return nil

	case *SetExpr:
		return ip.checkBindings(n.Bindings, frames, n.Rec, nil)

	case *LetExpr:
		return ip.checkBindings(n.Bindings, frames, true, n.Body)

	case *IfExpr:
		return ip.checkAll(frames, n.Cond, n.Then, n.Else)

	case *WithExpr:
		if err := ip.check(n.Scope, frames); err != nil {
			return err
		}
		return ip.check(n.Body, pushFrame(frames, checkFrame{wildcard: true}))

	case *AssertExpr:
		return ip.checkAll(frames, n.Cond, n.Body)

	case *AppExpr:
		return ip.checkAll(frames, n.Fn, n.Arg)

	case *AbsExpr:
		names := map[string]bool{}
		for _, name := range n.Params.DeclaredNames() {
			names[name] = true
		}
		inner := pushFrame(frames, checkFrame{names: names})
		// Defaults see every sibling binding, so they check under the
		// same frame as the body.
		for _, f := range n.Params.Fields {
			if f.Default != nil {
				if err := ip.check(f.Default, inner); err != nil {
					return err
				}
			}
		}
		return ip.check(n.Body, inner)

	case *UnaryExpr:
		return ip.check(n.X, frames)

	case *BinaryExpr:
		return ip.checkAll(frames, n.L, n.R)

	case *SelectExpr:
		if err := ip.check(n.Set, frames); err != nil {
			return err
		}
		if err := ip.checkKeys(n.Path, frames); err != nil {
			return err
		}
		if n.Default != nil {
			return ip.check(n.Default, frames)
		}
		return nil

	case *HasAttrExpr:
		if err := ip.check(n.Set, frames); err != nil {
			return err
		}
		return ip.checkKeys(n.Path, frames)
	}
	return nil
}

// checkBindings collects the statically known names a binding block
// introduces, then checks right-hand sides (under the block's frame when rec)
// and the optional body.
func (ip *Interp) checkBindings(bs []Binding, frames []checkFrame, rec bool, body Expr) error {
	names := map[string]bool{}
	for _, b := range bs {
		if b.Inherit {
			for _, name := range b.Names {
				names[name] = true
			}
			continue
		}
		if len(b.Path) > 0 && b.Path[0].Dyn == nil {
			names[b.Path[0].Name] = true
		}
	}
	inner := pushFrame(frames, checkFrame{names: names})
	rhsFrames := frames
	if rec {
		rhsFrames = inner
	}

	for _, b := range bs {
		if b.Inherit {
			if b.From != nil {
				if err := ip.check(b.From, rhsFrames); err != nil {
					return err
				}
				continue
			}
			// Plain inherits resolve in the enclosing scope.
			for _, name := range b.Names {
				if err := ip.check(&Sym{Pos: b.Pos, Name: name}, frames); err != nil {
					return err
				}
			}
			continue
		}
		if err := ip.checkKeys(b.Path, frames); err != nil {
			return err
		}
		if err := ip.check(b.Value, rhsFrames); err != nil {
			return err
		}
	}
	if body != nil {
		return ip.check(body, inner)
	}
	return nil
}

// pushFrame copies on push so sibling traversals can never alias a frame
// slot through a shared backing array.
func pushFrame(frames []checkFrame, f checkFrame) []checkFrame {
	out := make([]checkFrame, len(frames)+1)
	copy(out, frames)
	out[len(frames)] = f
	return out
}

func (ip *Interp) checkKeys(keys []Key, frames []checkFrame) error {
	for _, k := range keys {
		if k.Dyn != nil {
			if err := ip.check(k.Dyn, frames); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ip *Interp) checkAll(frames []checkFrame, es ...Expr) error {
	for _, e := range es {
		if err := ip.check(e, frames); err != nil {
			return err
		}
	}
	return nil
}
