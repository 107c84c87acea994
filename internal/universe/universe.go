// Package universe discovers the type universe a scaffolding run works
// over: the entry module's packages plus the transitive closure of their
// imports, loaded through go/packages. It indexes exported named types in
// stable first-seen order, declared constants in declaration order, and
// constructor functions per result type.
package universe

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"

	"github.com/stubforge/stubforge/internal/descriptor"
)

// Constructor is an exported package-level function producing a value of
// some named type, a pointer to it, or the (T, error) pair.
type Constructor struct {
	// Expr is the qualified callable reference (e.g. "demo.NewParser").
	Expr string

	// Sig carries the parameter and result shapes.
	Sig *descriptor.Signature

	// ResultFullName is the fully qualified name of the constructed type.
	ResultFullName string
}

// PackageInfo identifies one loaded package.
type PackageInfo struct {
	Name string
	Path string
}

// Universe is the discovered type universe. It is immutable after Load
// and safe for concurrent readers.
type Universe struct {
	pkgs  []*packages.Package
	roots []PackageInfo
	types []types.Type

	constsByType map[string][]descriptor.Constant
	ctorsByType  map[string][]Constructor
	byFullName   map[string]types.Type

	failed []string
}

type loadOptions struct {
	dir      string
	excluded []string
	log      *zap.Logger
}

// Option customizes a Load call.
type Option func(*loadOptions)

// WithDir sets the working directory for package resolution.
func WithDir(dir string) Option {
	return func(o *loadOptions) { o.dir = dir }
}

// WithExcludedPaths excludes packages any of whose source files live
// under one of the given file paths.
func WithExcludedPaths(paths []string) Option {
	return func(o *loadOptions) { o.excluded = paths }
}

// WithLogger routes discovery diagnostics to the given logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *loadOptions) { o.log = log }
}

// Load loads the entry pattern and the transitive closure of its imports.
// Packages that fail to load are reported and excluded; they never abort
// the run. Load fails only when nothing at all could be loaded.
func Load(pattern string, opts ...Option) (*Universe, error) {
	o := &loadOptions{log: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	cfg := &packages.Config{
		Mode: packages.NeedName |
			packages.NeedTypes |
			packages.NeedTypesInfo |
			packages.NeedSyntax |
			packages.NeedImports |
			packages.NeedDeps,
		Dir: o.dir,
	}

	roots, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", pattern, err)
	}

	u := &Universe{
		constsByType: make(map[string][]descriptor.Constant),
		ctorsByType:  make(map[string][]Constructor),
		byFullName:   make(map[string]types.Type),
	}

	seen := make(map[string]bool)
	packages.Visit(roots, func(pkg *packages.Package) bool {
		if seen[pkg.PkgPath] {
			return false
		}
		seen[pkg.PkgPath] = true

		if len(pkg.Errors) > 0 {
			for _, e := range pkg.Errors {
				o.log.Warn("package excluded from universe",
					zap.String("package", pkg.PkgPath),
					zap.String("error", e.Msg))
			}
			u.failed = append(u.failed, pkg.PkgPath)
			return true
		}
		if pkg.Types == nil || excludedPackage(pkg, o.excluded) {
			return true
		}
		u.pkgs = append(u.pkgs, pkg)
		return true
	}, nil)

	if len(u.pkgs) == 0 {
		return nil, fmt.Errorf("no loadable packages matched %s", pattern)
	}

	loadable := make(map[string]bool, len(u.pkgs))
	for _, pkg := range u.pkgs {
		loadable[pkg.PkgPath] = true
	}
	for _, pkg := range roots {
		if loadable[pkg.PkgPath] {
			u.roots = append(u.roots, PackageInfo{Name: pkg.Types.Name(), Path: pkg.PkgPath})
		}
	}

	for _, pkg := range u.pkgs {
		u.indexPackage(pkg)
	}
	o.log.Debug("type universe loaded",
		zap.Int("packages", len(u.pkgs)),
		zap.Int("types", len(u.types)),
		zap.Int("failed", len(u.failed)))
	return u, nil
}

// excludedPackage reports whether any of the package's files falls under
// an excluded path.
func excludedPackage(pkg *packages.Package, excluded []string) bool {
	for _, file := range pkg.GoFiles {
		for _, ex := range excluded {
			if ex == "" {
				continue
			}
			if file == ex {
				return true
			}
			if rel, err := filepath.Rel(ex, file); err == nil && rel != ".." && !filepath.IsAbs(rel) && rel[0] != '.' {
				return true
			}
		}
	}
	return false
}

// indexPackage records the package's exported named types, constants and
// constructors. Scope names are sorted by go/types, which keeps the scan
// order stable across runs; constant declaration order is recovered from
// syntax because scopes lose it.
func (u *Universe) indexPackage(pkg *packages.Package) {
	scope := pkg.Types.Scope()
	for _, name := range scope.Names() {
		obj := scope.Lookup(name)
		if !obj.Exported() {
			continue
		}
		switch obj := obj.(type) {
		case *types.TypeName:
			if obj.IsAlias() {
				continue
			}
			t := obj.Type()
			full := types.TypeString(t, nil)
			if _, dup := u.byFullName[full]; dup {
				continue
			}
			u.byFullName[full] = t
			u.types = append(u.types, t)

		case *types.Func:
			u.indexConstructor(pkg, obj)
		}
	}
	u.indexConstants(pkg)
}

// indexConstructor records obj if it looks like a constructor: exported,
// no receiver, first result a named type (or pointer to one) declared in
// the same package, optionally followed by an error.
func (u *Universe) indexConstructor(pkg *packages.Package, fn *types.Func) {
	sig, ok := fn.Type().(*types.Signature)
	if !ok || sig.Recv() != nil {
		return
	}
	results := sig.Results()
	if results.Len() < 1 || results.Len() > 2 {
		return
	}
	if results.Len() == 2 && !isErrorType(results.At(1).Type()) {
		return
	}

	res := results.At(0).Type()
	if ptr, ok := res.(*types.Pointer); ok {
		res = ptr.Elem()
	}
	named, ok := res.(*types.Named)
	if !ok || named.Obj().Pkg() != pkg.Types {
		return
	}

	full := types.TypeString(named, nil)
	u.ctorsByType[full] = append(u.ctorsByType[full], Constructor{
		Expr:           pkg.Types.Name() + "." + fn.Name(),
		Sig:            descriptor.SignatureOf("", fn.Name(), sig),
		ResultFullName: full,
	})
}

// indexConstants walks const declarations in source order, grouping
// exported constants by their declared type.
func (u *Universe) indexConstants(pkg *packages.Package) {
	for _, file := range pkg.Syntax {
		for _, decl := range file.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.CONST {
				continue
			}
			for _, spec := range gen.Specs {
				vspec, ok := spec.(*ast.ValueSpec)
				if !ok {
					continue
				}
				for _, ident := range vspec.Names {
					obj, ok := pkg.TypesInfo.Defs[ident].(*types.Const)
					if !ok || !obj.Exported() {
						continue
					}
					named, ok := obj.Type().(*types.Named)
					if !ok {
						continue
					}
					full := types.TypeString(named, nil)
					u.constsByType[full] = append(u.constsByType[full], descriptor.Constant{
						Name: obj.Name(),
						Expr: pkg.Types.Name() + "." + obj.Name(),
					})
				}
			}
		}
	}
}

// Types returns every indexed named type in stable first-seen order.
func (u *Universe) Types() []types.Type { return u.types }

// EntryPackages lists the packages the load pattern matched directly,
// excluding failed ones. Scaffolding targets come from these; transitive
// imports only contribute implementors, constants and constructors.
func (u *Universe) EntryPackages() []PackageInfo { return u.roots }

// ConstantsOf lists the exported constants declared with the given type,
// in declaration order.
func (u *Universe) ConstantsOf(fullName string) []descriptor.Constant {
	return u.constsByType[fullName]
}

// ConstructorsFor lists the constructor functions producing the type.
func (u *Universe) ConstructorsFor(fullName string) []Constructor {
	return u.ctorsByType[fullName]
}

// Lookup resolves a fully qualified type name to its type, if indexed.
func (u *Universe) Lookup(fullName string) (types.Type, bool) {
	t, ok := u.byFullName[fullName]
	return t, ok
}

// FailedPackages lists packages reported and excluded during discovery.
func (u *Universe) FailedPackages() []string { return u.failed }

func isErrorType(t types.Type) bool {
	named, ok := t.(*types.Named)
	if ok {
		t = named.Underlying()
	}
	iface, ok := t.(*types.Interface)
	if !ok {
		return false
	}
	return iface.NumMethods() == 1 && iface.Method(0).Name() == "Error"
}
