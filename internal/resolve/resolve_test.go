package resolve

import (
	"go/token"
	"go/types"
	"testing"

	"github.com/stubforge/stubforge/internal/descriptor"
)

type fakeSource struct {
	list []types.Type
}

func (f *fakeSource) Types() []types.Type { return f.list }

type skipAnnotations map[string]bool

func (s skipAnnotations) IsSkipped(name string) bool             { return s[name] }
func (skipAnnotations) ReturnPredicate(string) (string, bool)    { return "", false }
func (skipAnnotations) ExceptionAllowlist(string) []string       { return nil }
func (skipAnnotations) InvocationArgumentSets(string) [][]string { return nil }

func newNamed(pkg *types.Package, name string, underlying types.Type) *types.Named {
	obj := types.NewTypeName(token.NoPos, pkg, name, nil)
	return types.NewNamed(obj, underlying, nil)
}

// newImplementor builds an exported named struct with a value-receiver
// method for every name in methods.
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

func TestResolveInterfaceImplementors(t *testing.T) {
	pkg := types.NewPackage("example.com/demo", "demo")

	pinger := newIface(pkg, "Pinger", "Ping")
	impl1 := newImplementor(pkg, "TCPPinger", "Ping")
	impl2 := newImplementor(pkg, "UDPPinger", "Ping")
	excluded := newImplementor(pkg, "LoopPinger", "Ping")
	unrelated := newImplementor(pkg, "Counter", "Inc")
	skipped := newImplementor(pkg, "FakePinger", "Ping")
	otherIface := newIface(pkg, "Closer", "Close")

	unexported := newNamed(pkg, "hidden", types.NewStruct(nil, nil))
	recvVar := types.NewVar(token.NoPos, pkg, "", unexported)
	unexported.AddMethod(types.NewFunc(token.NoPos, pkg, "Ping",
		types.NewSignatureType(recvVar, nil, nil, nil, nil, false)))

	src := &fakeSource{list: []types.Type{
		impl1, otherIface, unrelated, excluded, skipped, unexported, impl2,
	}}
	ann := skipAnnotations{"example.com/demo.FakePinger": true}
	r := New(src, ann, descriptor.NewCaches(), nil)

	set := r.Resolve(pinger, excluded)

	want := []string{"example.com/demo.TCPPinger", "example.com/demo.UDPPinger"}
	if len(set.Types) != len(want) {
		t.Fatalf("Resolve returned %d types, want %d: %v", len(set.Types), len(want), set.Types)
	}
	for i, w := range want {
		if got := types.TypeString(set.Types[i], nil); got != w {
			t.Errorf("set[%d] = %s, want %s", i, got, w)
		}
	}
}

func TestResolveIsCached(t *testing.T) {
	pkg := types.NewPackage("example.com/demo", "demo")
	pinger := newIface(pkg, "Pinger", "Ping")
	impl := newImplementor(pkg, "TCPPinger", "Ping")

	r := New(&fakeSource{list: []types.Type{impl}}, nil, descriptor.NewCaches(), nil)

	first := r.Resolve(pinger, nil)
	second := r.Resolve(pinger, nil)
	if first != second {
		t.Errorf("identical Resolve calls returned distinct set instances")
	}

	withExclude := r.Resolve(pinger, impl)
	if withExclude == first {
		t.Errorf("different exclude must produce a different cache entry")
	}
	if len(withExclude.Types) != 0 {
		t.Errorf("exclude not honored: %v", withExclude.Types)
	}
}

func TestResolveStructExtension(t *testing.T) {
	pkg := types.NewPackage("example.com/demo", "demo")

	base := newNamed(pkg, "Conn", types.NewStruct(nil, nil))
	embedded := types.NewField(token.NoPos, pkg, "Conn", base, true)
	derived := newNamed(pkg, "TLSConn", types.NewStruct([]*types.Var{embedded}, []string{""}))

	ptrEmbedded := types.NewField(token.NoPos, pkg, "Conn", types.NewPointer(base), true)
	derivedPtr := newNamed(pkg, "ProxyConn", types.NewStruct([]*types.Var{ptrEmbedded}, []string{""}))

	plain := newNamed(pkg, "Other", types.NewStruct(nil, nil))

	r := New(&fakeSource{list: []types.Type{derived, plain, derivedPtr}}, nil, descriptor.NewCaches(), nil)
	set := r.Resolve(base, nil)

	want := []string{"example.com/demo.TLSConn", "example.com/demo.ProxyConn"}
	if len(set.Types) != len(want) {
		t.Fatalf("Resolve returned %v", set.Types)
	}
	for i, w := range want {
		if got := types.TypeString(set.Types[i], nil); got != w {
			t.Errorf("set[%d] = %s, want %s", i, got, w)
		}
	}
}
