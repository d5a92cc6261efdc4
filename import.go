// import.go — file import: resolution, parsing, evaluation, caching, and
// cycle detection.
//
// Resolution tries, in order: an absolute path as-is; the importing file's
// directory; the current working directory; each bare (unprefixed)
// search-path root. A spec
// without an extension is tried with ".nix" appended first, and a resolved
// directory means its default.nix. Successful loads are cached by canonical
// absolute path; the cached entry is the memoized result thunk, so a file is
// parsed and evaluated at most once per session. Failures are never cached.
package hnix

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// ImportFile resolves spec (relative to importer, when given), parses the
// file and returns a thunk of its evaluation under the base scope.
func (ip *Interp) ImportFile(spec, importer string) (*Thunk, error) {
	resolved, err := ip.resolveImport(spec, importer)
	if err != nil {
		return nil, &EvalError{Kind: ErrImportFailed, Msg: spec, Cause: err}
	}

	// Cycle detection runs before the cache: a cached-but-still-forcing
	// entry is exactly the cyclic case, and this gives a readable chain
	// instead of a bare black-hole failure.
	for _, active := range ip.loadStack {
		if active == resolved {
			return nil, &EvalError{
				Kind:  ErrImportFailed,
				Msg:   spec,
				Cause: errors.Errorf("import cycle detected: %s", strings.Join(append(append([]string{}, ip.loadStack...), resolved), " -> ")),
			}
		}
	}
	if t, ok := ip.imports[resolved]; ok {
		return t, nil
	}

	raw, err := os.ReadFile(resolved)
	if err != nil {
		return nil, &EvalError{Kind: ErrImportFailed, Msg: spec, Cause: errors.Wrap(err, "read")}
	}
	src := string(raw)
	e, err := Parse(src)
	if err != nil {
		return nil, &EvalError{Kind: ErrImportFailed, Msg: spec, Cause: WrapErrorWithName(err, resolved, src)}
	}

	if ip.log != nil {
		ip.log.Debug("import", "path", resolved)
	}

	// The result thunk keeps the load stack accurate while the file's body
	// actually runs; memoization guarantees that happens once.
	t := ip.newThunk(func() (Value, error) {
		ip.loadStack = append(ip.loadStack, resolved)
		defer func() { ip.loadStack = ip.loadStack[:len(ip.loadStack)-1] }()
		return ip.eval(e, ip.base)
	})
	ip.imports[resolved] = t
	return t, nil
}

// currentImporter is the file currently being loaded, or "" at top level.
// Relative imports resolve against it.
func (ip *Interp) currentImporter() string {
	if len(ip.loadStack) == 0 {
		return ""
	}
	return ip.loadStack[len(ip.loadStack)-1]
}

func (ip *Interp) resolveImport(spec, importer string) (string, error) {
	var roots []string
	if filepath.IsAbs(spec) {
		roots = []string{""}
	} else {
		if importer != "" {
			roots = append(roots, filepath.Dir(importer))
		}
		cwd, err := os.Getwd()
		if err == nil {
			roots = append(roots, cwd)
		}
		for _, e := range ip.searchPath {
			if e.Prefix == "" {
				roots = append(roots, e.Root)
			}
		}
	}

	for _, root := range roots {
		candidate := spec
		if root != "" {
			candidate = filepath.Join(root, spec)
		}
		if resolved, ok := tryFile(candidate); ok {
			return filepath.Clean(resolved), nil
		}
	}
	return "", errors.Errorf("no such file: %s", spec)
}

// tryFile probes candidate as a Nix source: with a .nix suffix added, as
// given, and as a directory holding default.nix.
func tryFile(candidate string) (string, bool) {
	if !strings.HasSuffix(candidate, ".nix") {
		if st, err := os.Stat(candidate + ".nix"); err == nil && !st.IsDir() {
			return candidate + ".nix", true
		}
	}
	st, err := os.Stat(candidate)
	if err != nil {
		return "", false
	}
	if st.IsDir() {
		dflt := filepath.Join(candidate, "default.nix")
		if st2, err := os.Stat(dflt); err == nil && !st2.IsDir() {
			return dflt, true
		}
		return "", false
	}
	return candidate, true
}
