// Package domain generates the finite set of representative values for a
// type: the ParameterDomain. Shape categories select the strategy;
// composite shapes recurse through constructor parameters, resolved
// implementors and synthesized proxies, bounded by the recursion depth.
package domain

import (
	"errors"
	"go/types"

	"go.uber.org/zap"

	"github.com/stubforge/stubforge/internal/config"
	"github.com/stubforge/stubforge/internal/descriptor"
	"github.com/stubforge/stubforge/internal/proxy"
	"github.com/stubforge/stubforge/internal/resolve"
	"github.com/stubforge/stubforge/internal/sampler"
	"github.com/stubforge/stubforge/internal/universe"
)

// ErrUnsynthesizable marks a type with no representable candidates.
// The caller drops the member or combination.
var ErrUnsynthesizable = errors.New("no value candidates can be synthesized for type")

// ErrRecursionLimit marks an expansion stopped by the depth bound.
// Treated identically to ErrUnsynthesizable by every caller.
var ErrRecursionLimit = errors.New("recursion depth limit reached")

// ValueCandidate is one representative value: the type it is for, the
// opaque source expression producing it, and the parameter direction it
// was generated under.
type ValueCandidate struct {
	Type types.Type
	Expr string
	Dir  descriptor.Direction

	// Proxy is set when Expr constructs a synthesized mock; the
	// emission layer materializes the mock declaration from it.
	Proxy *proxy.ProxyType

	// EmptySequence marks a proxy candidate whose dispatch hook answers
	// the iterator-obtaining call with an empty sequence.
	EmptySequence bool

	// Mentions lists types the expression references beyond Type
	// itself: constructor argument heads and spliced element values.
	// Import collection walks them.
	Mentions []types.Type
}

// mentionsOf collects the types a spliced head candidate makes the
// surrounding expression reference.
func mentionsOf(c ValueCandidate) []types.Type {
	if c.Expr == "nil" {
		return nil
	}
	return append([]types.Type{c.Type}, c.Mentions...)
}

// ParameterDomain is the ordered, deduplicated candidate list for one
// formal parameter. It is never empty: generation fails instead.
type ParameterDomain []ValueCandidate

func (d ParameterDomain) contains(expr string) bool {
	for _, c := range d {
		if c.Expr == expr {
			return true
		}
	}
	return false
}

func (d ParameterDomain) add(c ValueCandidate) ParameterDomain {
	if d.contains(c.Expr) {
		return d
	}
	return append(d, c)
}

// TypeInfoSource supplies the declared-constant and constructor indexes
// of the discovered universe.
type TypeInfoSource interface {
	descriptor.ConstSource
	ConstructorsFor(fullName string) []universe.Constructor
}

// Deps wires a Generator. Zero fields get safe defaults.
type Deps struct {
	Source    TypeInfoSource
	Resolver  *resolve.Resolver
	Proxies   *proxy.Synthesizer
	Sampler   *sampler.Sampler
	Caches    *descriptor.Caches
	Qualifier types.Qualifier
	Log       *zap.Logger
}

// Generator produces parameter domains. Safe for concurrent use: all
// mutable state lives in the shared caches and the sampler.
type Generator struct {
	src        TypeInfoSource
	resolver   *resolve.Resolver
	proxies    *proxy.Synthesizer
	rnd        *sampler.Sampler
	caches     *descriptor.Caches
	classifier *descriptor.Classifier
	qual       types.Qualifier
	log        *zap.Logger
	exclude    types.Type
}

func New(deps Deps) *Generator {
	if deps.Caches == nil {
		deps.Caches = descriptor.NewCaches()
	}
	if deps.Sampler == nil {
		deps.Sampler = sampler.New()
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Qualifier == nil {
		deps.Qualifier = func(p *types.Package) string { return p.Name() }
	}
	var consts descriptor.ConstSource = descriptor.NoConstants{}
	if deps.Source != nil {
		consts = deps.Source
	}
	return &Generator{
		src:        deps.Source,
		resolver:   deps.Resolver,
		proxies:    deps.Proxies,
		rnd:        deps.Sampler,
		caches:     deps.Caches,
		classifier: descriptor.NewClassifier(deps.Caches, consts),
		qual:       deps.Qualifier,
		log:        deps.Log,
	}
}

// Classifier exposes the shape classifier sharing this generator's
// caches and constant index.
func (g *Generator) Classifier() *descriptor.Classifier { return g.classifier }

// WithExclude returns a generator whose implementor resolution drops
// the given type. Used when scaffolding a type's own members so the
// type under test never doubles as its own interface stand-in.
func (g *Generator) WithExclude(t types.Type) *Generator {
	c := *g
	c.exclude = t
	return &c
}

// Domain builds the representative value set for one formal parameter
// of the given type. nullable adds the nil/default candidate where the
// shape admits one; depth tracks class/interface expansion and stops at
// the configured bound. An error means the domain is empty and the
// caller must drop the member or combination.
func (g *Generator) Domain(t types.Type, nullable bool, depth int) (ParameterDomain, error) {
	t = types.Unalias(t)

	// Pointers to anything but a named struct have no literal
	// construction; nil is their whole domain.
	if _, ok := t.(*types.Pointer); ok {
		if g.classifier.Classify(t) != descriptor.KindClass {
			return ParameterDomain{{Type: t, Expr: "nil"}}, nil
		}
	}

	switch g.classifier.Classify(t) {
	case descriptor.KindBool:
		return g.boolDomain(t), nil
	case descriptor.KindInt:
		return g.intDomain(t), nil
	case descriptor.KindFloat:
		return g.floatDomain(t), nil
	case descriptor.KindChar:
		return g.charDomain(t), nil
	case descriptor.KindString:
		return g.stringDomain(t, nullable), nil
	case descriptor.KindEnum:
		return g.enumDomain(t)
	case descriptor.KindTime:
		return g.timeDomain(t), nil
	case descriptor.KindFunc:
		return g.funcDomain(t), nil
	case descriptor.KindArray:
		return g.arrayDomain(t, nullable, depth)
	case descriptor.KindMap:
		return g.mapDomain(t, nullable, depth)
	case descriptor.KindChan:
		return g.chanDomain(t, nullable), nil
	case descriptor.KindStruct:
		return g.structDomain(t, depth)
	case descriptor.KindInterface:
		return g.interfaceDomain(t, nullable, depth)
	case descriptor.KindClass:
		return g.classDomain(t, nullable, depth)
	default:
		g.log.Debug("no domain strategy for type",
			zap.String("type", types.TypeString(t, nil)))
		return nil, ErrUnsynthesizable
	}
}

func (g *Generator) boolDomain(t types.Type) ParameterDomain {
	d := ParameterDomain{
		{Type: t, Expr: "false"},
		{Type: t, Expr: "true"},
	}
	for _, c := range g.constantsOf(t) {
		d = d.add(ValueCandidate{Type: t, Expr: c.Expr})
	}
	return d
}

func (g *Generator) intDomain(t types.Type) ParameterDomain {
	d := ParameterDomain{{Type: t, Expr: "0"}}
	for _, c := range g.constantsOf(t) {
		d = d.add(ValueCandidate{Type: t, Expr: c.Expr})
	}
	return d.add(ValueCandidate{Type: t, Expr: g.randomIntExpr(t)})
}

func (g *Generator) floatDomain(t types.Type) ParameterDomain {
	d := ParameterDomain{{Type: t, Expr: "0"}}
	for _, c := range g.constantsOf(t) {
		d = d.add(ValueCandidate{Type: t, Expr: c.Expr})
	}
	return d.add(ValueCandidate{Type: t, Expr: g.randomFloatExpr()})
}

func (g *Generator) charDomain(t types.Type) ParameterDomain {
	d := ParameterDomain{{Type: t, Expr: "rune(0)"}}
	for _, c := range g.constantsOf(t) {
		d = d.add(ValueCandidate{Type: t, Expr: c.Expr})
	}
	return d.add(ValueCandidate{Type: t, Expr: g.randomRuneExpr()})
}

func (g *Generator) stringDomain(t types.Type, nullable bool) ParameterDomain {
	var d ParameterDomain
	if nullable {
		d = d.add(ValueCandidate{Type: t, Expr: "nil"})
	}
	d = d.add(ValueCandidate{Type: t, Expr: `""`})
	d = d.add(ValueCandidate{Type: t, Expr: `" "`})
	d = d.add(ValueCandidate{Type: t, Expr: `"\r\n"`})
	d = d.add(ValueCandidate{Type: t, Expr: g.rnd.StringLiteral(config.RandomStringMinLen, config.RandomStringMaxLen)})
	for _, c := range g.constantsOf(t) {
		d = d.add(ValueCandidate{Type: t, Expr: c.Expr})
	}
	return d
}

// enumDomain yields the first and last declared members plus one random
// member, deduplicated: a one-member enum has a domain of size one.
func (g *Generator) enumDomain(t types.Type) (ParameterDomain, error) {
	consts := g.constantsOf(t)
	if len(consts) == 0 {
		return nil, ErrUnsynthesizable
	}
	var d ParameterDomain
	d = d.add(ValueCandidate{Type: t, Expr: consts[0].Expr})
	d = d.add(ValueCandidate{Type: t, Expr: consts[len(consts)-1].Expr})
	d = d.add(ValueCandidate{Type: t, Expr: consts[g.rnd.Pick(len(consts))].Expr})
	return d, nil
}

func (g *Generator) timeDomain(t types.Type) ParameterDomain {
	named, ok := t.(*types.Named)
	if ok && named.Obj().Name() == "Duration" {
		return ParameterDomain{
			{Type: t, Expr: "0"},
			{Type: t, Expr: g.randomDurationExpr()},
		}
	}
	return ParameterDomain{
		{Type: t, Expr: "time.Time{}"},
		{Type: t, Expr: g.randomTimeExpr()},
	}
}

// funcDomain synthesizes one no-op implementation: pointer parameters
// are pre-initialized to their zero values and the result is the zero of
// the declared shape.
func (g *Generator) funcDomain(t types.Type) ParameterDomain {
	sig, ok := t.Underlying().(*types.Signature)
	if !ok {
		return ParameterDomain{{Type: t, Expr: "nil"}}
	}
	return ParameterDomain{{Type: t, Expr: g.noopFuncExpr(sig)}}
}

func (g *Generator) arrayDomain(t types.Type, nullable bool, depth int) (ParameterDomain, error) {
	var elem types.Type
	isSlice := false
	switch u := t.Underlying().(type) {
	case *types.Slice:
		elem = u.Elem()
		isSlice = true
	case *types.Array:
		elem = u.Elem()
	default:
		return nil, ErrUnsynthesizable
	}

	typeStr := types.TypeString(t, g.qual)
	var d ParameterDomain
	if isSlice && nullable {
		d = d.add(ValueCandidate{Type: t, Expr: "nil"})
	}
	d = d.add(ValueCandidate{Type: t, Expr: typeStr + "{}"})

	if !isSlice {
		// Fixed-size arrays are fully zero-initialized; the zero
		// literal is the whole story.
		return d, nil
	}

	if g.classifier.Classify(elem) == descriptor.KindInterface {
		for _, impl := range g.sampledImplementors(elem) {
			expr, mentions, err := g.constructionExpr(impl, depth+1)
			if err != nil {
				continue
			}
			d = d.add(ValueCandidate{Type: t, Expr: typeStr + "{" + expr + "}",
				Mentions: append([]types.Type{impl}, mentions...)})
		}
		return d, nil
	}

	elemDomain, err := g.Domain(elem, descriptor.Nullable(elem), depth+1)
	if err == nil && len(elemDomain) > 0 {
		d = d.add(ValueCandidate{Type: t, Expr: typeStr + "{" + elemDomain[0].Expr + "}",
			Mentions: mentionsOf(elemDomain[0])})
	}
	return d, nil
}

func (g *Generator) mapDomain(t types.Type, nullable bool, depth int) (ParameterDomain, error) {
	m, ok := t.Underlying().(*types.Map)
	if !ok {
		return nil, ErrUnsynthesizable
	}
	typeStr := types.TypeString(t, g.qual)
	var d ParameterDomain
	if nullable {
		d = d.add(ValueCandidate{Type: t, Expr: "nil"})
	}
	d = d.add(ValueCandidate{Type: t, Expr: typeStr + "{}"})

	keyDomain, kerr := g.Domain(m.Key(), false, depth+1)
	valDomain, verr := g.Domain(m.Elem(), descriptor.Nullable(m.Elem()), depth+1)
	if kerr == nil && verr == nil && len(keyDomain) > 0 && len(valDomain) > 0 {
		d = d.add(ValueCandidate{Type: t,
			Expr:     typeStr + "{" + keyDomain[0].Expr + ": " + valDomain[0].Expr + "}",
			Mentions: append(mentionsOf(keyDomain[0]), mentionsOf(valDomain[0])...)})
	}
	return d, nil
}

func (g *Generator) chanDomain(t types.Type, nullable bool) ParameterDomain {
	ch, ok := t.Underlying().(*types.Chan)
	if !ok {
		return ParameterDomain{{Type: t, Expr: "nil"}}
	}
	var d ParameterDomain
	if nullable {
		d = d.add(ValueCandidate{Type: t, Expr: "nil"})
	}
	return d.add(ValueCandidate{Type: t,
		Expr: "make(chan " + types.TypeString(ch.Elem(), g.qual) + ")"})
}

// structDomain: a value aggregate gets a single parameterless
// construction expression.
func (g *Generator) structDomain(t types.Type, depth int) (ParameterDomain, error) {
	if depth >= config.MaxRecursionDepth {
		return nil, ErrRecursionLimit
	}
	return ParameterDomain{{Type: t, Expr: types.TypeString(t, g.qual) + "{}"}}, nil
}

func (g *Generator) interfaceDomain(t types.Type, nullable bool, depth int) (ParameterDomain, error) {
	if depth >= config.MaxRecursionDepth {
		return nil, ErrRecursionLimit
	}
	var d ParameterDomain
	if nullable {
		d = d.add(ValueCandidate{Type: t, Expr: "nil"})
	}

	for _, impl := range g.sampledImplementors(t) {
		expr, mentions, err := g.constructionExpr(impl, depth+1)
		if err != nil {
			continue
		}
		// Carry the implementor's type so consumers can tell which
		// package the expression constructs from.
		d = d.add(ValueCandidate{Type: impl, Expr: expr, Mentions: mentions})
	}

	if p, err := g.synthesizeProxy(t); err == nil {
		_, _, isSeq := p.IteratorMethod()
		d = d.add(ValueCandidate{Type: t, Expr: p.Expr(), Proxy: p, EmptySequence: isSeq})
	}

	if len(d) == 0 {
		return nil, ErrUnsynthesizable
	}
	return d, nil
}

func (g *Generator) classDomain(t types.Type, nullable bool, depth int) (ParameterDomain, error) {
	if depth >= config.MaxRecursionDepth {
		return nil, ErrRecursionLimit
	}
	// The nil member stands on its own in nullable positions: a failed
	// construction leaves {nil} rather than emptying the domain, which
	// is what lets self-referential constructor chains bottom out.
	var d ParameterDomain
	if nullable {
		d = d.add(ValueCandidate{Type: t, Expr: "nil"})
	}
	expr, mentions, err := g.constructionExpr(t, depth)
	if err != nil {
		if len(d) == 0 {
			return nil, err
		}
		return d, nil
	}
	return d.add(ValueCandidate{Type: t, Expr: expr, Mentions: mentions}), nil
}

// sampledImplementors resolves the interface's concrete implementors and
// randomly samples up to the configured count, preserving scan order.
func (g *Generator) sampledImplementors(t types.Type) []types.Type {
	if g.resolver == nil {
		return nil
	}
	set := g.resolver.Resolve(t, g.exclude)
	if len(set.Types) == 0 {
		return nil
	}
	idx := g.rnd.Sample(len(set.Types), config.MaxDerivedSamples)
	out := make([]types.Type, 0, len(idx))
	for _, i := range idx {
		out = append(out, set.Types[i])
	}
	return out
}

func (g *Generator) synthesizeProxy(t types.Type) (*proxy.ProxyType, error) {
	if g.proxies == nil {
		return nil, proxy.ErrRefused
	}
	return g.proxies.Synthesize(t)
}

func (g *Generator) constantsOf(t types.Type) []descriptor.Constant {
	if _, ok := t.(*types.Named); !ok {
		return nil
	}
	var src descriptor.ConstSource = descriptor.NoConstants{}
	if g.src != nil {
		src = g.src
	}
	return src.ConstantsOf(g.caches.FullName(t))
}
