package domain

import (
	"errors"
	"go/token"
	"go/types"
	"strconv"
	"strings"
	"testing"

	"github.com/stubforge/stubforge/internal/descriptor"
	"github.com/stubforge/stubforge/internal/proxy"
	"github.com/stubforge/stubforge/internal/resolve"
	"github.com/stubforge/stubforge/internal/sampler"
	"github.com/stubforge/stubforge/internal/universe"
)

type fakeInfo struct {
	consts map[string][]descriptor.Constant
	ctors  map[string][]universe.Constructor
}

func (f *fakeInfo) ConstantsOf(name string) []descriptor.Constant { return f.consts[name] }
func (f *fakeInfo) ConstructorsFor(name string) []universe.Constructor {
	return f.ctors[name]
}

type fakeTypes struct{ list []types.Type }

func (f *fakeTypes) Types() []types.Type { return f.list }

func newNamed(pkg *types.Package, name string, underlying types.Type) *types.Named {
	obj := types.NewTypeName(token.NoPos, pkg, name, nil)
	return types.NewNamed(obj, underlying, nil)
}

func newImplementor(pkg *types.Package, name string, methods ...string) *types.Named {
	named := newNamed(pkg, name, types.NewStruct(nil, nil))
	for _, m := range methods {
		recv := types.NewVar(token.NoPos, pkg, "", named)
		sig := types.NewSignatureType(recv, nil, nil, nil, nil, false)
		named.AddMethod(types.NewFunc(token.NoPos, pkg, m, sig))
	}
	return named
}

func newIface(pkg *types.Package, name string, methods ...string) *types.Named {
	var fns []*types.Func
	for _, m := range methods {
		sig := types.NewSignatureType(nil, nil, nil, nil, nil, false)
		fns = append(fns, types.NewFunc(token.NoPos, pkg, m, sig))
	}
	iface := types.NewInterfaceType(fns, nil)
	iface.Complete()
	return newNamed(pkg, name, iface)
}

func newGenerator(info *fakeInfo, universeTypes ...types.Type) *Generator {
	if info == nil {
		info = &fakeInfo{}
	}
	caches := descriptor.NewCaches()
	return New(Deps{
		Source:   info,
		Resolver: resolve.New(&fakeTypes{list: universeTypes}, nil, caches, nil),
		Proxies:  proxy.NewSynthesizer(caches),
		Sampler:  sampler.NewSeeded(7),
		Caches:   caches,
	})
}

func exprs(d ParameterDomain) []string {
	out := make([]string, len(d))
	for i, c := range d {
		out[i] = c.Expr
	}
	return out
}

func TestBoolDomain(t *testing.T) {
	g := newGenerator(nil)
	d, err := g.Domain(types.Typ[types.Bool], false, 0)
	if err != nil {
		t.Fatalf("Domain: %v", err)
	}
	want := []string{"false", "true"}
	if got := exprs(d); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("bool domain = %v, want %v", got, want)
	}
}

func TestNamedIntWithoutMembers(t *testing.T) {
	pkg := types.NewPackage("example.com/demo", "demo")
	level := newNamed(pkg, "Weight", types.Typ[types.Int])
	info := &fakeInfo{consts: map[string][]descriptor.Constant{}}
	g := newGenerator(info)

	d, err := g.Domain(level, false, 0)
	if err != nil {
		t.Fatalf("Domain: %v", err)
	}
	got := exprs(d)
	if got[0] != "0" {
		t.Errorf("first candidate = %q, want 0", got[0])
	}
	if len(got) != 2 {
		t.Fatalf("int domain = %v, want zero plus one random", got)
	}
	if _, perr := strconv.ParseInt(got[1], 10, 64); perr != nil {
		t.Errorf("random candidate %q is not an integer literal", got[1])
	}
}

func TestSizedIntRandomFitsRange(t *testing.T) {
	g := newGenerator(nil)
	for i := 0; i < 50; i++ {
		d, err := g.Domain(types.Typ[types.Int8], false, 0)
		if err != nil {
			t.Fatalf("Domain: %v", err)
		}
		raw := exprs(d)[len(d)-1]
		v, perr := strconv.ParseInt(raw, 10, 64)
		if perr != nil {
			t.Fatalf("candidate %q is not an integer literal", raw)
		}
		if v < -128 || v > 127 {
			t.Fatalf("int8 candidate %d out of range", v)
		}
	}
}

func TestStringDomain(t *testing.T) {
	g := newGenerator(nil)
	d, err := g.Domain(types.Typ[types.String], false, 0)
	if err != nil {
		t.Fatalf("Domain: %v", err)
	}
	got := exprs(d)
	for _, want := range []string{`""`, `" "`, `"\r\n"`} {
		if !d.contains(want) {
			t.Errorf("string domain %v missing %s", got, want)
		}
	}
	if d.contains("nil") {
		t.Errorf("non-nullable string domain must not contain nil: %v", got)
	}
	random := got[len(got)-1]
	if _, perr := strconv.Unquote(random); perr != nil {
		t.Errorf("random candidate %q is not a valid string literal", random)
	}
}

func TestEnumDomainDedupes(t *testing.T) {
	pkg := types.NewPackage("example.com/demo", "demo")
	mode := newNamed(pkg, "Mode", types.Typ[types.Int])
	info := &fakeInfo{consts: map[string][]descriptor.Constant{
		"example.com/demo.Mode": {
			{Name: "ModeOff", Expr: "demo.ModeOff"},
			{Name: "ModeAuto", Expr: "demo.ModeAuto"},
			{Name: "ModeOn", Expr: "demo.ModeOn"},
		},
	}}
	g := newGenerator(info)

	d, err := g.Domain(mode, false, 0)
	if err != nil {
		t.Fatalf("Domain: %v", err)
	}
	if !d.contains("demo.ModeOff") || !d.contains("demo.ModeOn") {
		t.Errorf("enum domain %v missing first/last members", exprs(d))
	}
	if len(d) > 3 {
		t.Errorf("enum domain %v exceeds first+last+random", exprs(d))
	}

	single := newNamed(pkg, "Parity", types.Typ[types.Int])
	info.consts["example.com/demo.Parity"] = []descriptor.Constant{
		{Name: "ParityNone", Expr: "demo.ParityNone"},
	}
	d, err = g.Domain(single, false, 0)
	if err != nil {
		t.Fatalf("Domain: %v", err)
	}
	if len(d) != 1 {
		t.Errorf("single-member enum domain = %v, want exactly one candidate", exprs(d))
	}
}

func TestPointerToBasicIsNilOnly(t *testing.T) {
	g := newGenerator(nil)
	d, err := g.Domain(types.NewPointer(types.Typ[types.String]), true, 0)
	if err != nil {
		t.Fatalf("Domain: %v", err)
	}
	if len(d) != 1 || d[0].Expr != "nil" {
		t.Errorf("*string domain = %v, want [nil]", exprs(d))
	}
}

func TestSliceDomain(t *testing.T) {
	g := newGenerator(nil)
	d, err := g.Domain(types.NewSlice(types.Typ[types.Int]), true, 0)
	if err != nil {
		t.Fatalf("Domain: %v", err)
	}
	got := exprs(d)
	if len(got) != 3 || got[0] != "nil" || got[1] != "[]int{}" {
		t.Fatalf("slice domain = %v", got)
	}
	if !strings.HasPrefix(got[2], "[]int{") || !strings.HasSuffix(got[2], "}") {
		t.Errorf("one-length candidate = %q", got[2])
	}
}

func TestArrayDomainIsZeroLiteralOnly(t *testing.T) {
	g := newGenerator(nil)

	// The byte predeclared alias keeps its spelling in the literal.
	byteT := types.Universe.Lookup("byte").Type()
	d, err := g.Domain(types.NewArray(byteT, 4), false, 0)
	if err != nil {
		t.Fatalf("Domain: %v", err)
	}
	if len(d) != 1 || d[0].Expr != "[4]byte{}" {
		t.Errorf("array domain = %v, want [[4]byte{}]", exprs(d))
	}

	// types.Typ[types.Byte] is the uint8 singleton and renders as such.
	d, err = g.Domain(types.NewArray(types.Typ[types.Uint8], 4), false, 0)
	if err != nil {
		t.Fatalf("Domain: %v", err)
	}
	if len(d) != 1 || d[0].Expr != "[4]uint8{}" {
		t.Errorf("array domain = %v, want [[4]uint8{}]", exprs(d))
	}
}

func TestMapDomain(t *testing.T) {
	g := newGenerator(nil)
	m := types.NewMap(types.Typ[types.String], types.Typ[types.Int])
	d, err := g.Domain(m, true, 0)
	if err != nil {
		t.Fatalf("Domain: %v", err)
	}
	got := exprs(d)
	if got[0] != "nil" || got[1] != "map[string]int{}" {
		t.Fatalf("map domain = %v", got)
	}
	if len(got) != 3 || !strings.HasPrefix(got[2], `map[string]int{"": `) {
		t.Errorf("one-entry candidate = %v", got)
	}
}

func TestFuncDomainNoopLiteral(t *testing.T) {
	g := newGenerator(nil)
	params := types.NewTuple(
		types.NewVar(token.NoPos, nil, "", types.Typ[types.Int]),
		types.NewVar(token.NoPos, nil, "", types.NewPointer(types.Typ[types.String])),
	)
	results := types.NewTuple(types.NewVar(token.NoPos, nil, "", types.Typ[types.Bool]))
	sig := types.NewSignatureType(nil, nil, nil, params, results, false)

	d, err := g.Domain(sig, true, 0)
	if err != nil {
		t.Fatalf("Domain: %v", err)
	}
	want := `func(p0 int, p1 *string) bool { *p1 = ""; return false }`
	if len(d) != 1 || d[0].Expr != want {
		t.Errorf("func domain = %v, want %q", exprs(d), want)
	}
}

func TestInterfaceDomain(t *testing.T) {
	pkg := types.NewPackage("example.com/demo", "demo")
	pinger := newIface(pkg, "Pinger", "Ping")
	impl := newImplementor(pkg, "TCPPinger", "Ping")

	g := newGenerator(nil, impl)
	d, err := g.Domain(pinger, true, 0)
	if err != nil {
		t.Fatalf("Domain: %v", err)
	}
	got := exprs(d)
	if got[0] != "nil" {
		t.Errorf("first candidate = %q, want nil", got[0])
	}
	if !d.contains("&demo.TCPPinger{}") {
		t.Errorf("domain %v missing implementor construction", got)
	}
	var proxyCand *ValueCandidate
	for i := range d {
		if d[i].Proxy != nil {
			proxyCand = &d[i]
		}
	}
	if proxyCand == nil {
		t.Fatalf("domain %v has no proxy candidate", got)
	}
	if proxyCand.Expr != "newMockPinger(nil)" {
		t.Errorf("proxy candidate expr = %q", proxyCand.Expr)
	}
	if proxyCand.EmptySequence {
		t.Errorf("non-iterator interface flagged as sequence-shaped")
	}
}

func TestInterfaceDomainWithConstructor(t *testing.T) {
	pkg := types.NewPackage("example.com/demo", "demo")
	pinger := newIface(pkg, "Pinger", "Ping")
	impl := newImplementor(pkg, "TCPPinger", "Ping")

	info := &fakeInfo{ctors: map[string][]universe.Constructor{
		"example.com/demo.TCPPinger": {{
			Expr: "demo.NewTCPPinger",
			Sig: &descriptor.Signature{
				Name: "NewTCPPinger",
				Params: []descriptor.Param{
					{Name: "addr", Type: types.Typ[types.String]},
				},
				Results: []types.Type{types.NewPointer(impl)},
			},
			ResultFullName: "example.com/demo.TCPPinger",
		}},
	}}
	g := newGenerator(info, impl)

	d, err := g.Domain(pinger, false, 0)
	if err != nil {
		t.Fatalf("Domain: %v", err)
	}
	if !d.contains(`demo.NewTCPPinger("")`) {
		t.Errorf("domain %v missing constructor invocation with head-of-domain argument", exprs(d))
	}
}

func TestClassDomainPicksLowestArityConstructor(t *testing.T) {
	pkg := types.NewPackage("example.com/demo", "demo")
	parser := newNamed(pkg, "Parser", types.NewStruct(nil, nil))

	info := &fakeInfo{ctors: map[string][]universe.Constructor{
		"example.com/demo.Parser": {
			{
				Expr: "demo.NewParserWithMode",
				Sig: &descriptor.Signature{
					Name: "NewParserWithMode",
					Params: []descriptor.Param{
						{Name: "strict", Type: types.Typ[types.Bool]},
						{Name: "depth", Type: types.Typ[types.Int]},
					},
					Results: []types.Type{types.NewPointer(parser)},
				},
			},
			{
				Expr: "demo.NewParser",
				Sig: &descriptor.Signature{
					Name:    "NewParser",
					Results: []types.Type{types.NewPointer(parser)},
				},
			},
		},
	}}
	g := newGenerator(info)

	d, err := g.Domain(types.NewPointer(parser), true, 0)
	if err != nil {
		t.Fatalf("Domain: %v", err)
	}
	got := exprs(d)
	if got[0] != "nil" {
		t.Errorf("first candidate = %q, want nil", got[0])
	}
	if !d.contains("demo.NewParser()") {
		t.Errorf("domain %v did not use the lowest-arity constructor", got)
	}
	if d.contains("demo.NewParserWithMode(false, 0)") {
		t.Errorf("domain %v used a higher-arity constructor", got)
	}
}

func TestClassDomainFallsBackToLiteral(t *testing.T) {
	pkg := types.NewPackage("example.com/demo", "demo")
	cfg := newNamed(pkg, "Config", types.NewStruct(nil, nil))
	g := newGenerator(nil)

	d, err := g.Domain(types.NewPointer(cfg), false, 0)
	if err != nil {
		t.Fatalf("Domain: %v", err)
	}
	if len(d) != 1 || d[0].Expr != "&demo.Config{}" {
		t.Errorf("class domain = %v, want [&demo.Config{}]", exprs(d))
	}
}

// A class with no reachable construction contributes nothing beyond the
// nil member: the domain is {nil} when the position admits it and empty
// otherwise.
func TestClassDomainWithoutConstruction(t *testing.T) {
	pkg := types.NewPackage("example.com/demo", "demo")
	hidden := newNamed(pkg, "tracker", types.NewStruct(nil, nil))
	g := newGenerator(nil)

	d, err := g.Domain(types.NewPointer(hidden), true, 0)
	if err != nil {
		t.Fatalf("Domain: %v", err)
	}
	if len(d) != 1 || d[0].Expr != "nil" {
		t.Errorf("nullable unconstructible class domain = %v, want [nil]", exprs(d))
	}

	if _, err := g.Domain(types.NewPointer(hidden), false, 0); !errors.Is(err, ErrUnsynthesizable) {
		t.Errorf("non-nullable unconstructible class: err = %v, want ErrUnsynthesizable", err)
	}
}

func TestConstructionMentionsForeignArgumentTypes(t *testing.T) {
	demo := types.NewPackage("example.com/demo", "demo")
	other := types.NewPackage("example.com/foreign", "foreign")
	cfg := newNamed(other, "Config", types.NewStruct(nil, nil))
	client := newNamed(demo, "Client", types.NewStruct(nil, nil))

	info := &fakeInfo{ctors: map[string][]universe.Constructor{
		"example.com/demo.Client": {{
			Expr: "demo.NewClient",
			Sig: &descriptor.Signature{
				Name:    "NewClient",
				Params:  []descriptor.Param{{Name: "cfg", Type: cfg}},
				Results: []types.Type{types.NewPointer(client)},
			},
		}},
	}}
	g := newGenerator(info)

	d, err := g.Domain(types.NewPointer(client), false, 0)
	if err != nil {
		t.Fatalf("Domain: %v", err)
	}
	if d[0].Expr != "demo.NewClient(foreign.Config{})" {
		t.Errorf("construction = %q", d[0].Expr)
	}
	found := false
	for _, m := range d[0].Mentions {
		if m == types.Type(cfg) {
			found = true
		}
	}
	if !found {
		t.Errorf("mentions %v missing the constructor argument type", d[0].Mentions)
	}
}

func TestWithExcludeDropsImplementor(t *testing.T) {
	pkg := types.NewPackage("example.com/demo", "demo")
	pinger := newIface(pkg, "Pinger", "Ping")
	impl := newImplementor(pkg, "TCPPinger", "Ping")

	g := newGenerator(nil, impl).WithExclude(impl)
	d, err := g.Domain(pinger, false, 0)
	if err != nil {
		t.Fatalf("Domain: %v", err)
	}
	if d.contains("&demo.TCPPinger{}") {
		t.Errorf("domain %v contains the excluded implementor", exprs(d))
	}
	if len(d) != 1 || d[0].Proxy == nil {
		t.Errorf("domain %v, want proxy only", exprs(d))
	}
}

func TestRecursionLimit(t *testing.T) {
	pkg := types.NewPackage("example.com/demo", "demo")
	pinger := newIface(pkg, "Pinger", "Ping")
	g := newGenerator(nil)

	if _, err := g.Domain(pinger, false, 4); !errors.Is(err, ErrRecursionLimit) {
		t.Errorf("interface at depth limit: err = %v, want ErrRecursionLimit", err)
	}
}

// A constructor whose parameter is the type under construction must
// terminate: each level deepens until either the nil head of the
// nullable domain short-circuits the argument or the depth bound trips.
func TestSelfReferentialConstructionTerminates(t *testing.T) {
	pkg := types.NewPackage("example.com/demo", "demo")
	node := newNamed(pkg, "Node", types.NewStruct(nil, nil))

	info := &fakeInfo{ctors: map[string][]universe.Constructor{
		"example.com/demo.Node": {{
			Expr: "demo.NewNode",
			Sig: &descriptor.Signature{
				Name: "NewNode",
				Params: []descriptor.Param{
					{Name: "parent", Type: types.NewPointer(node)},
				},
				Results: []types.Type{types.NewPointer(node)},
			},
		}},
	}}
	g := newGenerator(info)

	d, err := g.Domain(types.NewPointer(node), true, 0)
	if err != nil {
		t.Fatalf("Domain: %v", err)
	}
	if !d.contains("demo.NewNode(nil)") {
		t.Errorf("self-referential class domain = %v, want nil-fed constructor", exprs(d))
	}
}

func TestUnsynthesizableEmptyInterface(t *testing.T) {
	pkg := types.NewPackage("example.com/demo", "demo")
	marker := newIface(pkg, "Marker")
	g := newGenerator(nil)

	// Non-nullable position, no implementors in the universe: the
	// proxy still answers, so the domain is the mock alone.
	d, err := g.Domain(marker, false, 0)
	if err != nil {
		t.Fatalf("Domain: %v", err)
	}
	if len(d) != 1 || d[0].Proxy == nil {
		t.Errorf("marker interface domain = %v, want proxy only", exprs(d))
	}
}
