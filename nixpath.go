// nixpath.go — search-path (NIX_PATH) parsing and lookup-path resolution.
//
// A search path is a ':'-separated list of entries, each either a bare root
// directory or "name=path". A lookup path <name/rest> resolves to the first
// match: a prefixed entry whose name equals the first segment, or a bare
// root containing the whole path.
package hnix

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// SearchPathEntry is one parsed element of a search path.
type SearchPathEntry struct {
	Prefix string // "" for a bare root
	Root   string
}

// ParseSearchPath splits a NIX_PATH-style string into entries. Empty
// elements are dropped.
func ParseSearchPath(s string) []SearchPathEntry {
	var out []SearchPathEntry
	for _, part := range strings.Split(s, ":") {
		if part == "" {
			continue
		}
		out = append(out, parseSearchPathEntry(part))
	}
	return out
}

func parseSearchPathEntry(part string) SearchPathEntry {
	if i := strings.Index(part, "="); i >= 0 {
		return SearchPathEntry{Prefix: part[:i], Root: part[i+1:]}
	}
	return SearchPathEntry{Root: part}
}

// resolveEnvPath resolves a lookup-path name such as "nixpkgs/lib" against
// the session's search path. The resolved target must exist.
func (ip *Interp) resolveEnvPath(name string) (string, error) {
	head := name
	rest := ""
	if i := strings.Index(name, "/"); i >= 0 {
		head, rest = name[:i], name[i+1:]
	}

	for _, e := range ip.searchPath {
		var candidate string
		switch {
		case e.Prefix != "" && e.Prefix == head:
			candidate = filepath.Join(e.Root, rest)
		case e.Prefix == "":
			candidate = filepath.Join(e.Root, name)
		default:
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", errors.Errorf("lookup path <%s> not found in search path", name)
}
