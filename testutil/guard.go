// Package testutil holds architecture guards shared by package tests.
package testutil

import (
	"fmt"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// Module is the import path prefix of this repository.
const Module = "bandkeeper"

// ImportsByFile parses the non-test .go files directly inside dir and returns
// their import paths keyed by file name. Build tags are not evaluated.
func ImportsByFile(dir string) (map[string][]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	out := make(map[string][]string)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			out[name] = append(out[name], strings.Trim(imp.Path.Value, `"`))
		}
	}
	return out, nil
}

// AssertNoDirectImports fails t when a non-test file in dir imports a path
// matching forbidden.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(path string) bool, reason string) {
	t.Helper()
	files, err := ImportsByFile(dir)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	var viols []string
	for name, imports := range files {
		for _, ip := range imports {
			if forbidden(ip) {
				viols = append(viols, fmt.Sprintf("%s (in %s)", ip, name))
			}
		}
	}
	report(t, "direct import", reason, viols)
}

// AssertNoTransitiveDependency loads pattern with go/packages and fails t when
// any package in its import graph matches forbidden.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	deps, err := Dependencies(pattern)
	if err != nil {
		t.Fatalf("load %s: %v", pattern, err)
	}
	var viols []string
	for _, dep := range deps {
		if forbidden(dep) {
			viols = append(viols, dep)
		}
	}
	report(t, "transitive dependency", reason, viols)
}

// Dependencies returns the sorted import graph of pattern, roots excluded.
func Dependencies(pattern string) ([]string, error) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports | packages.NeedDeps}
	roots, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("no packages match %s", pattern)
	}
	var loadErrs []string
	seen := make(map[string]struct{})
	packages.Visit(roots, nil, func(p *packages.Package) {
		for _, e := range p.Errors {
			loadErrs = append(loadErrs, e.Error())
		}
		seen[p.PkgPath] = struct{}{}
	})
	if len(loadErrs) > 0 {
		return nil, fmt.Errorf("load errors: %s", strings.Join(loadErrs, "; "))
	}
	for _, r := range roots {
		delete(seen, r.PkgPath)
	}
	out := make([]string, 0, len(seen))
	for path := range seen {
		out = append(out, path)
	}
	sort.Strings(out)
	return out, nil
}

// InternalImportForbidden matches any path with an internal/ segment.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/") || strings.HasPrefix(path, "internal/")
}

// ThirdParty matches paths outside the standard library and this module.
func ThirdParty(path string) bool {
	first, _, _ := strings.Cut(path, "/")
	return strings.Contains(first, ".")
}

// Under matches path itself and everything below it.
func Under(prefix string) func(string) bool {
	return func(path string) bool {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
}

type fatalf interface {
	Fatalf(format string, args ...any)
}

func report(t fatalf, what, reason string, viols []string) {
	if len(viols) == 0 {
		return
	}
	sort.Strings(viols)
	t.Fatalf("forbidden %s (%s):\n%s", what, reason, strings.Join(viols, "\n"))
}
