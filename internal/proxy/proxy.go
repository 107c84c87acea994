// Package proxy synthesizes runtime mock implementations of interfaces.
// A synthesized ProxyType is a signature-keyed dispatch table covering
// the target interface and everything it transitively embeds; instances
// route every call through a pluggable hook and fall back to declared
// zero values when the hook declines.
package proxy

import (
	"errors"
	"fmt"
	"go/types"
	"sync"

	"github.com/stubforge/stubforge/internal/descriptor"
)

// ErrRefused is returned when the synthesis target is not an exported,
// fully instantiated interface type. Callers fall back to no mock.
var ErrRefused = errors.New("proxy target must be an exported, non-open-generic interface")

// Hook decides whether and how to answer one proxy call. It receives the
// resolved signature and the ordered argument values (out/ref slots
// already zeroed); it may mutate the slice to publish out/ref updates.
// Returning handled=false leaves the stub on its zero-value fallback.
type Hook func(sig *descriptor.Signature, args []any) (handled bool, result any)

// ProxyType is a synthesized concrete implementation of one interface.
// Construction is memoized by the interface's fully qualified name: the
// same interface always yields the same *ProxyType.
type ProxyType struct {
	target  *types.Named
	name    string
	methods []*descriptor.Signature
	byKey   map[string]*descriptor.Signature
}

// Synthesizer builds and memoizes proxy types. The mutex is held across
// construction so concurrent first requests for one interface block
// rather than race-construct duplicate types.
type Synthesizer struct {
	caches *descriptor.Caches

	mu    sync.Mutex
	built map[string]*ProxyType
}

func NewSynthesizer(caches *descriptor.Caches) *Synthesizer {
	return &Synthesizer{
		caches: caches,
		built:  make(map[string]*ProxyType),
	}
}

// Synthesize returns the proxy type for the given interface, building it
// on first request. Non-interface targets, unexported interfaces and
// open generic interfaces are refused.
func (s *Synthesizer) Synthesize(t types.Type) (*ProxyType, error) {
	named, ok := t.(*types.Named)
	if !ok {
		return nil, fmt.Errorf("%s: %w", types.TypeString(t, nil), ErrRefused)
	}
	if _, isIface := named.Underlying().(*types.Interface); !isIface {
		return nil, fmt.Errorf("%s: %w", types.TypeString(t, nil), ErrRefused)
	}
	if !named.Obj().Exported() {
		return nil, fmt.Errorf("%s: %w", types.TypeString(t, nil), ErrRefused)
	}
	if tp := named.TypeParams(); tp != nil && tp.Len() > 0 {
		if named.TypeArgs() == nil || named.TypeArgs().Len() == 0 {
			return nil, fmt.Errorf("%s: %w", types.TypeString(t, nil), ErrRefused)
		}
	}

	full := s.caches.FullName(named)
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.built[full]; ok {
		return p, nil
	}
	p := build(named, full)
	s.built[full] = p
	return p, nil
}

// build enumerates the transitive interface hierarchy exactly once,
// explicit methods before embedded ones, and keeps the first occurrence
// of every unique signature key.
func build(named *types.Named, full string) *ProxyType {
	p := &ProxyType{
		target: named,
		name:   "mock" + named.Obj().Name(),
		byKey:  make(map[string]*descriptor.Signature),
	}
	visited := make(map[*types.Interface]bool)
	p.collect(full, named.Underlying().(*types.Interface), visited)
	return p
}

func (p *ProxyType) collect(recv string, iface *types.Interface, visited map[*types.Interface]bool) {
	if visited[iface] {
		return
	}
	visited[iface] = true

	for i := 0; i < iface.NumExplicitMethods(); i++ {
		m := iface.ExplicitMethod(i)
		sig := descriptor.SignatureOf(recv, m.Name(), m.Type().(*types.Signature))
		key := sig.Key()
		if _, dup := p.byKey[key]; dup {
			continue
		}
		p.byKey[key] = sig
		p.methods = append(p.methods, sig)
	}

	for i := 0; i < iface.NumEmbeddeds(); i++ {
		embedded := iface.EmbeddedType(i)
		if sub, ok := embedded.Underlying().(*types.Interface); ok {
			p.collect(recv, sub, visited)
		}
	}
}

// Name is the synthesized mock type name (e.g. "mockReader").
func (p *ProxyType) Name() string { return p.name }

// Target is the interface the proxy implements.
func (p *ProxyType) Target() *types.Named { return p.target }

// Methods lists the dispatch table in first-occurrence order.
func (p *ProxyType) Methods() []*descriptor.Signature { return p.methods }

// Signature looks up a table entry by its dedupe key.
func (p *ProxyType) Signature(key string) (*descriptor.Signature, bool) {
	sig, ok := p.byKey[key]
	return sig, ok
}

// Expr renders the construction expression handed to the emission layer.
func (p *ProxyType) Expr() string {
	return "new" + upperFirst(p.name) + "(nil)"
}

// IteratorMethod detects the sequence shape: a parameterless method
// whose single result is a yield-style func (func(func(V) bool) or
// func(func(K, V) bool), the iter.Seq / iter.Seq2 forms). keyValue
// reports the two-argument dictionary shape.
func (p *ProxyType) IteratorMethod() (sig *descriptor.Signature, keyValue bool, ok bool) {
	for _, m := range p.methods {
		if len(m.Params) != 0 || len(m.Results) != 1 {
			continue
		}
		outer, isSig := m.Results[0].Underlying().(*types.Signature)
		if !isSig || outer.Params().Len() != 1 || outer.Results().Len() != 0 {
			continue
		}
		yield, isYield := outer.Params().At(0).Type().Underlying().(*types.Signature)
		if !isYield || yield.Results().Len() != 1 {
			continue
		}
		if b, isBasic := yield.Results().At(0).Type().(*types.Basic); !isBasic || b.Kind() != types.Bool {
			continue
		}
		switch yield.Params().Len() {
		case 1:
			return m, false, true
		case 2:
			return m, true, true
		}
	}
	return nil, false, false
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	if runes[0] >= 'a' && runes[0] <= 'z' {
		runes[0] -= 32
	}
	return string(runes)
}
