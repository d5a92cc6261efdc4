// normalize.go — deep forcing of head-normal values to normal-form trees.
//
// Normalization forces once, then recurses into every compound slot. Atoms,
// strings, paths and builtins are their own normal forms. A cyclic value
// manifests as an InfiniteRecursion failure when the cycle's thunk is
// re-entered.
package hnix

// Normalize forces t and recursively forces all substructure, yielding a
// cycle-free tree.
func (ip *Interp) Normalize(t *Thunk) (Normal, error) {
	v, err := ip.force(t)
	if err != nil {
		return Normal{}, err
	}
	return ip.normalizeValue(v)
}

func (ip *Interp) normalizeValue(v Value) (Normal, error) {
	switch v.Tag {
	case VTConst, VTStr, VTPath, VTEnvPath, VTBuiltin:
		return Normal{Tag: v.Tag, Data: v.Data}, nil

	case VTList:
		xs := v.Data.([]*Thunk)
		out := make([]Normal, len(xs))
		for i, t := range xs {
			n, err := ip.Normalize(t)
			if err != nil {
				return Normal{}, err
			}
			out[i] = n
		}
		return Normal{Tag: VTList, Data: out}, nil

	case VTSet:
		m := v.Data.(map[string]*Thunk)
		out := make(map[string]Normal, len(m))
		for k, t := range m {
			n, err := ip.Normalize(t)
			if err != nil {
				return Normal{}, err
			}
			out[k] = n
		}
		return Normal{Tag: VTSet, Data: out}, nil

	case VTFun:
		return ip.normalizeFun(v.Data.(*Fun))
	}
	return Normal{}, errTypef(Pos{}, "cannot normalize a %s", v.Tag)
}

// normalizeFun evaluates a function's parameter-set defaults and its body
// under the definition-site scope and normalizes the results. A body that
// demands its own parameters fails UndefinedVariable here; callers that want
// functions opaque must not normalize them.
func (ip *Interp) normalizeFun(f *Fun) (Normal, error) {
	nf := &NormalFun{Params: f.Params}
	if f.Params.SetPattern {
		nf.Defaults = map[string]Normal{}
		for _, field := range f.Params.Fields {
			if field.Default == nil {
				continue
			}
			n, err := ip.Normalize(ip.exprThunk(field.Default, f.Env))
			if err != nil {
				return Normal{}, err
			}
			nf.Defaults[field.Name] = n
		}
	}
	body, err := ip.Normalize(ip.exprThunk(f.Body, f.Env))
	if err != nil {
		return Normal{}, err
	}
	nf.Body = body
	return Normal{Tag: VTFun, Data: nf}, nil
}
