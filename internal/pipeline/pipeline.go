// Package pipeline drives a scaffolding run end to end: discover the
// type universe, build value domains for every exported method of the
// entry packages, enumerate argument combinations, render the scaffold
// files and record the outcome in the catalog.
package pipeline

import (
	"fmt"
	"go/types"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/stubforge/stubforge/internal/annotate"
	"github.com/stubforge/stubforge/internal/combinate"
	"github.com/stubforge/stubforge/internal/descriptor"
	"github.com/stubforge/stubforge/internal/domain"
	"github.com/stubforge/stubforge/internal/emit"
	"github.com/stubforge/stubforge/internal/proxy"
	"github.com/stubforge/stubforge/internal/resolve"
	"github.com/stubforge/stubforge/internal/sampler"
	"github.com/stubforge/stubforge/internal/store"
	"github.com/stubforge/stubforge/internal/universe"
)

// Config parameterizes one run.
type Config struct {
	// Pattern is the entry package pattern (e.g. "./..." or an import
	// path). Matched packages are the scaffolding targets.
	Pattern string

	// Dir is the working directory for package resolution.
	Dir string

	// OutDir receives the generated files. Defaults to Dir.
	OutDir string

	// CatalogPath locates the run catalog database. Empty disables
	// persistence.
	CatalogPath string

	// Exclude lists file paths whose packages are dropped from the
	// universe.
	Exclude []string

	Annotations annotate.Queries
	Log         *zap.Logger
}

// Result summarizes a completed run.
type Result struct {
	RunID   string
	Files   []string
	Tests   int
	Skipped int
}

// Run executes one scaffolding pass.
func Run(cfg Config) (*Result, error) {
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Annotations == nil {
		cfg.Annotations = annotate.Nop{}
	}
	if cfg.OutDir == "" {
		cfg.OutDir = cfg.Dir
	}

	u, err := universe.Load(cfg.Pattern,
		universe.WithDir(cfg.Dir),
		universe.WithExcludedPaths(cfg.Exclude),
		universe.WithLogger(cfg.Log))
	if err != nil {
		return nil, err
	}

	caches := descriptor.NewCaches()
	gen := domain.New(domain.Deps{
		Source:   u,
		Resolver: resolve.New(u, cfg.Annotations, caches, cfg.Log),
		Proxies:  proxy.NewSynthesizer(caches),
		Sampler:  sampler.New(),
		Caches:   caches,
		Log:      cfg.Log,
	})

	var catalog *store.Catalog
	if cfg.CatalogPath != "" {
		catalog, err = store.Open(cfg.CatalogPath)
		if err != nil {
			return nil, err
		}
		defer catalog.Close()
	}

	res := &Result{}
	for _, pkg := range u.EntryPackages() {
		if err := runPackage(cfg, u, gen, caches, catalog, pkg, res); err != nil {
			return nil, err
		}
	}
	cfg.Log.Info("scaffolding complete",
		zap.Int("files", len(res.Files)),
		zap.Int("tests", res.Tests),
		zap.Int("skipped", res.Skipped))
	return res, nil
}

// typeSource is the slice of the loaded universe the package builder
// iterates; *universe.Universe satisfies it.
type typeSource interface {
	Types() []types.Type
}

func runPackage(cfg Config, u typeSource, gen *domain.Generator,
	caches *descriptor.Caches, catalog *store.Catalog,
	pkg universe.PackageInfo, res *Result) error {

	var run *store.Run
	if catalog != nil {
		var err error
		if run, err = catalog.BeginRun(pkg.Path); err != nil {
			return err
		}
	}

	renderer := emit.NewRenderer(nil, cfg.Log)
	file := &emit.File{Package: pkg.Name, ImportPath: pkg.Path}
	if run != nil {
		// The generated header and the catalog carry the same run ID so
		// a file can be traced back to its recorded outcomes.
		file.RunID = run.ID
	}
	mocks := map[string]*mockUse{}
	imports := map[string]bool{}

	b := &builder{
		cfg:     cfg,
		gen:     gen,
		caches:  caches,
		pkg:     pkg,
		mocks:   mocks,
		imports: imports,
	}

	for _, t := range u.Types() {
		named, ok := t.(*types.Named)
		if !ok || named.Obj().Pkg() == nil || named.Obj().Pkg().Path() != pkg.Path {
			continue
		}
		if _, isStruct := named.Underlying().(*types.Struct); !isStruct {
			continue
		}
		full := caches.FullName(named)
		if cfg.Annotations.IsSkipped(full) {
			cfg.Log.Debug("type skipped by annotation", zap.String("type", full))
			continue
		}
		b.addTypeTests(file, catalog, run, named, res)
	}

	if len(file.Tests) == 0 {
		cfg.Log.Debug("no scaffolding targets", zap.String("package", pkg.Path))
		if catalog != nil {
			return catalog.FinishRun(run)
		}
		return nil
	}

	for _, name := range sortedKeys(imports) {
		file.Imports = append(file.Imports, name)
	}
	for _, name := range sortedMockNames(mocks) {
		use := mocks[name]
		file.Mocks = append(file.Mocks, renderer.MockDecl(use.proxy, use.emptySequence))
	}

	src, err := renderer.Render(file)
	if err != nil {
		return fmt.Errorf("emitting scaffold for %s: %w", pkg.Path, err)
	}
	path := filepath.Join(cfg.OutDir, emit.FileName(pkg.Name))
	if err := os.WriteFile(path, src, 0644); err != nil {
		return fmt.Errorf("writing scaffold for %s: %w", pkg.Path, err)
	}
	res.Files = append(res.Files, path)

	if catalog != nil {
		run.Files = 1
		run.Tests = len(file.Tests)
		if err := catalog.FinishRun(run); err != nil {
			return err
		}
	}
	res.RunID = file.RunID
	return nil
}

type mockUse struct {
	proxy         *proxy.ProxyType
	emptySequence bool
}

type builder struct {
	cfg     Config
	gen     *domain.Generator
	caches  *descriptor.Caches
	pkg     universe.PackageInfo
	mocks   map[string]*mockUse
	imports map[string]bool
}

// receiverPlan describes how a type's test receivers are built: the
// cartesian enumeration of its constructor's parameter domains, or one
// fixed literal expression when no constructor is indexed.
type receiverPlan struct {
	ctorExpr string
	domains  []domain.ParameterDomain
	literal  string
}

// render builds the receiver expression from a tuple's leading
// constructor-argument candidates.
func (p *receiverPlan) render(ctorArgs []domain.ValueCandidate) string {
	if p.domains == nil {
		return p.literal
	}
	args := make([]string, len(ctorArgs))
	for i, c := range ctorArgs {
		args[i] = c.Expr
	}
	return p.ctorExpr + "(" + strings.Join(args, ", ") + ")"
}

// head is the first-candidate construction, used for annotated cases.
func (p *receiverPlan) head() string {
	if p.domains == nil {
		return p.literal
	}
	heads := make([]domain.ValueCandidate, len(p.domains))
	for i, d := range p.domains {
		heads[i] = d[0]
	}
	return p.render(heads)
}

// planReceiver prefers enumerating the constructor's parameter domains
// so receiver construction participates in the combination space; a
// type without a usable constructor falls back to the head of its own
// class domain.
func (b *builder) planReceiver(gen *domain.Generator, named *types.Named) (*receiverPlan, error) {
	if expr, params, ok := gen.ReceiverConstructor(named); ok {
		domains := make([]domain.ParameterDomain, len(params))
		for i, p := range params {
			d, err := gen.Domain(p.Type, descriptor.Nullable(p.Type), 1)
			if err != nil {
				domains = nil
				break
			}
			domains[i] = d
		}
		if domains != nil {
			return &receiverPlan{ctorExpr: expr, domains: domains}, nil
		}
	}
	d, err := gen.Domain(types.NewPointer(named), false, 0)
	if err != nil {
		return nil, err
	}
	b.noteImports(d[0])
	return &receiverPlan{literal: d[0].Expr}, nil
}

// addTypeTests emits one test function per exported method of the type
// that has a constructible receiver and non-empty parameter domains.
func (b *builder) addTypeTests(file *emit.File, catalog *store.Catalog,
	run *store.Run, named *types.Named, res *Result) {

	gen := b.gen.WithExclude(named)
	plan, err := b.planReceiver(gen, named)
	if err != nil {
		b.cfg.Log.Debug("type has no constructible receiver",
			zap.String("type", b.caches.FullName(named)))
		return
	}

	mset := types.NewMethodSet(types.NewPointer(named))
	for i := 0; i < mset.Len(); i++ {
		m := mset.At(i).Obj()
		fn, ok := m.(*types.Func)
		if !ok || !fn.Exported() {
			continue
		}
		memberKey := b.caches.FullName(named) + "." + fn.Name()
		if b.cfg.Annotations.IsSkipped(memberKey) {
			continue
		}
		test, outcome := b.buildMethodTest(gen, named, fn, plan, memberKey)
		if test != nil {
			file.Tests = append(file.Tests, *test)
			res.Tests++
		} else {
			res.Skipped++
		}
		if catalog != nil && run != nil {
			outcome.RunID = run.ID
			if err := catalog.RecordMember(outcome); err != nil {
				b.cfg.Log.Warn("catalog write failed", zap.Error(err))
			}
		}
	}
}

func (b *builder) buildMethodTest(gen *domain.Generator, named *types.Named,
	fn *types.Func, plan *receiverPlan, memberKey string) (*emit.Test, store.Member) {

	outcome := store.Member{Receiver: named.Obj().Name(), Method: fn.Name()}
	sig := descriptor.SignatureOf(b.caches.FullName(named), fn.Name(),
		fn.Type().(*types.Signature))

	// Constructor argument domains lead the product so the receiver
	// varies slowest; method parameter domains follow.
	recvArity := len(plan.domains)
	domains := make([]domain.ParameterDomain, 0, recvArity+len(sig.Params))
	dirs := make([]descriptor.Direction, 0, recvArity+len(sig.Params))
	domains = append(domains, plan.domains...)
	for range plan.domains {
		dirs = append(dirs, descriptor.DirNone)
	}
	for i, p := range sig.Params {
		d, err := gen.Domain(p.Type, descriptor.Nullable(p.Type), 0)
		if err != nil {
			outcome.Skipped = true
			outcome.Reason = fmt.Sprintf("parameter %d: %v", i, err)
			return nil, outcome
		}
		domains = append(domains, d)
		dirs = append(dirs, p.Dir)
	}

	product := combinate.New(domains, dirs)
	guard := b.panicGuard(memberKey)
	check := b.returnCheck(sig, memberKey)

	test := &emit.Test{Name: fmt.Sprintf("Test%s_%s", named.Obj().Name(), fn.Name())}
	cursor := product.Cursor()
	for n := 0; ; n++ {
		tuple, ok := cursor.Next()
		if !ok {
			break
		}
		args := make([]string, 0, len(tuple)-recvArity)
		for i, cand := range tuple {
			b.noteImports(cand)
			if i >= recvArity {
				args = append(args, cand.Expr)
			}
		}
		test.Cases = append(test.Cases, emit.Case{
			Name:  fmt.Sprintf("combo_%d", n),
			Recv:  plan.render(tuple[:recvArity]),
			Call:  renderCall(fn.Name(), args, sig, check != ""),
			Check: check,
			Guard: guard,
		})
	}

	for n, args := range b.cfg.Annotations.InvocationArgumentSets(memberKey) {
		test.Cases = append(test.Cases, emit.Case{
			Name:  fmt.Sprintf("annotated_%d", n),
			Recv:  plan.head(),
			Call:  renderCall(fn.Name(), args, sig, check != ""),
			Check: check,
			Guard: guard,
		})
	}

	if len(test.Cases) == 0 {
		outcome.Skipped = true
		outcome.Reason = "empty combination space"
		return nil, outcome
	}
	outcome.Combinations = len(test.Cases)
	return test, outcome
}

func renderCall(method string, args []string, sig *descriptor.Signature, bind bool) string {
	if sig.Variadic && len(args) == len(sig.Params) && len(args) > 0 {
		args = append(args[:len(args)-1:len(args)-1], args[len(args)-1]+"...")
	}
	call := fmt.Sprintf("recv.%s(%s)", method, strings.Join(args, ", "))
	if bind {
		if len(sig.Results) == 1 {
			return "got := " + call
		}
		blanks := make([]string, len(sig.Results))
		for i := range blanks {
			blanks[i] = "_"
		}
		blanks[0] = "got"
		return strings.Join(blanks, ", ") + " := " + call
	}
	return call
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedMockNames(m map[string]*mockUse) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// panicGuard renders the deferred recover. Panics whose message matches
// an allowlisted fragment pass; anything else fails the case.
func (b *builder) panicGuard(memberKey string) string {
	allow := b.cfg.Annotations.ExceptionAllowlist(memberKey)
	if len(allow) == 0 {
		return "defer func() {\n\t\t\tif r := recover(); r != nil {\n\t\t\t\tt.Errorf(\"unexpected panic: %v\", r)\n\t\t\t}\n\t\t}()"
	}
	b.imports["fmt"] = true
	b.imports["strings"] = true
	quoted := make([]string, len(allow))
	for i, a := range allow {
		quoted[i] = fmt.Sprintf("%q", a)
	}
	return fmt.Sprintf("defer func() {\n\t\t\tr := recover()\n\t\t\tif r == nil {\n\t\t\t\treturn\n\t\t\t}\n\t\t\tmsg := fmt.Sprint(r)\n\t\t\tfor _, allowed := range []string{%s} {\n\t\t\t\tif strings.Contains(msg, allowed) {\n\t\t\t\t\treturn\n\t\t\t\t}\n\t\t\t}\n\t\t\tt.Errorf(\"unexpected panic: %%v\", r)\n\t\t}()", strings.Join(quoted, ", "))
}

// returnCheck renders the annotated return predicate over the bound
// first result, when one is declared.
func (b *builder) returnCheck(sig *descriptor.Signature, memberKey string) string {
	pred, ok := b.cfg.Annotations.ReturnPredicate(memberKey)
	if !ok || len(sig.Results) == 0 {
		return ""
	}
	return fmt.Sprintf("if !(%s) {\n\t\t\tt.Errorf(\"return predicate failed: got %%v\", got)\n\t\t}", pred)
}

// noteImports records the packages a candidate makes the generated file
// reference: every declaring package reachable through its type, its
// mentioned constructor-argument types, and the method signatures of
// any mock it materializes.
func (b *builder) noteImports(cand domain.ValueCandidate) {
	if cand.Proxy != nil {
		use, ok := b.mocks[cand.Proxy.Name()]
		if !ok {
			use = &mockUse{proxy: cand.Proxy}
			b.mocks[cand.Proxy.Name()] = use
		}
		use.emptySequence = use.emptySequence || cand.EmptySequence
		for _, sig := range cand.Proxy.Methods() {
			for _, p := range sig.Params {
				b.noteType(p.Type, nil)
			}
			for _, r := range sig.Results {
				b.noteType(r, nil)
			}
		}
	}
	if strings.Contains(cand.Expr, "time.") {
		b.imports["time"] = true
	}
	if cand.Expr == "nil" {
		return
	}
	b.noteType(cand.Type, nil)
	for _, m := range cand.Mentions {
		b.noteType(m, nil)
	}
}

// noteType walks a type's structure and imports every foreign declaring
// package it reaches. Named types recurse through their type arguments
// and, for named func types, the underlying signature the no-op literal
// spells out.
func (b *builder) noteType(t types.Type, seen map[types.Type]bool) {
	if t == nil {
		return
	}
	if seen == nil {
		seen = map[types.Type]bool{}
	}
	if seen[t] {
		return
	}
	seen[t] = true

	switch u := types.Unalias(t).(type) {
	case *types.Named:
		if p := u.Obj().Pkg(); p != nil && p.Path() != b.pkg.Path {
			b.imports[p.Path()] = true
		}
		if args := u.TypeArgs(); args != nil {
			for i := 0; i < args.Len(); i++ {
				b.noteType(args.At(i), seen)
			}
		}
		if sig, ok := u.Underlying().(*types.Signature); ok {
			b.noteType(sig, seen)
		}
	case *types.Pointer:
		b.noteType(u.Elem(), seen)
	case *types.Slice:
		b.noteType(u.Elem(), seen)
	case *types.Array:
		b.noteType(u.Elem(), seen)
	case *types.Map:
		b.noteType(u.Key(), seen)
		b.noteType(u.Elem(), seen)
	case *types.Chan:
		b.noteType(u.Elem(), seen)
	case *types.Signature:
		for i := 0; i < u.Params().Len(); i++ {
			b.noteType(u.Params().At(i).Type(), seen)
		}
		for i := 0; i < u.Results().Len(); i++ {
			b.noteType(u.Results().At(i).Type(), seen)
		}
	}
}
