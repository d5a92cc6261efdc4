// render.go — rendering of normal-form values.
//
// Two surfaces: Nix-style source text and JSON. Both iterate set keys in
// sorted order so output is deterministic regardless of construction order.
// List element order is preserved.
package hnix

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// RenderNix renders a normal-form value as Nix-style source text.
func RenderNix(n Normal) string {
	var b strings.Builder
	renderNix(&b, n)
	return b.String()
}

func renderNix(b *strings.Builder, n Normal) {
	switch n.Tag {
	case VTConst:
		b.WriteString(n.Data.(Atom).String())
	case VTStr:
		b.WriteString(strconv.Quote(n.Data.(*StrValue).Text))
	case VTPath:
		b.WriteString(n.Data.(string))
	case VTEnvPath:
		fmt.Fprintf(b, "<%s>", n.Data.(string))
	case VTList:
		b.WriteString("[ ")
		for _, el := range n.Data.([]Normal) {
			renderNix(b, el)
			b.WriteString(" ")
		}
		b.WriteString("]")
	case VTSet:
		m := n.Data.(map[string]Normal)
		b.WriteString("{ ")
		for _, k := range n.SortedKeys() {
			fmt.Fprintf(b, "%s = ", k)
			renderNix(b, m[k])
			b.WriteString("; ")
		}
		b.WriteString("}")
	case VTFun:
		b.WriteString("<lambda>")
	case VTBuiltin:
		fmt.Fprintf(b, "<builtin %s>", n.Data.(*Builtin).Name)
	default:
		b.WriteString("<unknown>")
	}
}

// RenderJSON renders a normal-form value as JSON. String context is dropped;
// functions and builtins do not serialize.
func RenderJSON(n Normal) (string, error) {
	tree, err := jsonTree(n)
	if err != nil {
		return "", err
	}
	out, err := json.Marshal(tree)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func jsonTree(n Normal) (any, error) {
	switch n.Tag {
	case VTConst:
		a := n.Data.(Atom)
		switch a.Kind {
		case AInt:
			return a.Int, nil
		case ABool:
			return a.Bool, nil
		case ANull:
			return nil, nil
		case AURI:
			return a.URI, nil
		}
	case VTStr:
		return n.Data.(*StrValue).Text, nil
	case VTPath:
		return n.Data.(string), nil
	case VTEnvPath:
		return "<" + n.Data.(string) + ">", nil
	case VTList:
		xs := n.Data.([]Normal)
		out := make([]any, len(xs))
		for i, el := range xs {
			t, err := jsonTree(el)
			if err != nil {
				return nil, err
			}
			out[i] = t
		}
		return out, nil
	case VTSet:
		m := n.Data.(map[string]Normal)
		out := make(map[string]any, len(m))
		// json.Marshal emits object keys sorted, matching the renderer's
		// ordering contract.
		for k, v := range m {
			t, err := jsonTree(v)
			if err != nil {
				return nil, err
			}
			out[k] = t
		}
		return out, nil
	}
	return nil, errCoercion(n.Tag, "JSON")
}
