package domain

import (
	"fmt"
	"go/types"
	"strconv"
	"strings"

	"github.com/stubforge/stubforge/internal/descriptor"
)

// constructionExpr renders an expression constructing an instance of a
// class-like type: the lowest-arity non-variadic constructor with each
// argument taken from the head of its parameter domain, or a zero
// struct literal when no constructor is indexed. The mentions slice
// carries the types the rendered arguments reference.
func (g *Generator) constructionExpr(t types.Type, depth int) (string, []types.Type, error) {
	t = types.Unalias(t)
	wantPtr := false
	if ptr, ok := t.(*types.Pointer); ok {
		wantPtr = true
		t = types.Unalias(ptr.Elem())
	}
	named, ok := t.(*types.Named)
	if !ok || !named.Obj().Exported() {
		return "", nil, ErrUnsynthesizable
	}

	if ctor := g.pickConstructor(named, wantPtr); ctor != nil {
		args, mentions, err := g.constructorArgs(ctor.Sig, depth)
		if err != nil {
			return "", nil, err
		}
		return ctor.Expr + "(" + strings.Join(args, ", ") + ")", mentions, nil
	}

	if _, isStruct := named.Underlying().(*types.Struct); isStruct {
		// Address-taken even for value receivers: a *T method set
		// satisfies every interface the value does, never the reverse.
		return "&" + types.TypeString(named, g.qual) + "{}", nil, nil
	}
	return "", nil, ErrUnsynthesizable
}

// ReceiverConstructor reports the constructor selected for building
// test receivers of *named: its call prefix and the parameters whose
// domains the caller enumerates. ok is false when nothing is indexed
// and the receiver falls back to a literal construction.
func (g *Generator) ReceiverConstructor(named *types.Named) (string, []descriptor.Param, bool) {
	ctor := g.pickConstructor(named, true)
	if ctor == nil {
		return "", nil, false
	}
	return ctor.Expr, ctor.Sig.Params, true
}

// pickConstructor selects the indexed constructor with the fewest
// parameters, skipping variadics. When the caller needs a pointer, only
// pointer-returning constructors qualify.
func (g *Generator) pickConstructor(named *types.Named, wantPtr bool) *ctorRef {
	if g.src == nil {
		return nil
	}
	var best *ctorRef
	for _, c := range g.src.ConstructorsFor(g.caches.FullName(named)) {
		if c.Sig == nil || c.Sig.Variadic {
			continue
		}
		if wantPtr && !resultIsPointer(c.Sig) {
			continue
		}
		if best == nil || len(c.Sig.Params) < len(best.Sig.Params) {
			best = &ctorRef{Expr: c.Expr, Sig: c.Sig}
		}
	}
	return best
}

type ctorRef struct {
	Expr string
	Sig  *descriptor.Signature
}

func resultIsPointer(sig *descriptor.Signature) bool {
	if len(sig.Results) == 0 {
		return false
	}
	_, ok := types.Unalias(sig.Results[0]).(*types.Pointer)
	return ok
}

// constructorArgs builds one argument per parameter from the head of its
// domain. Any empty parameter domain empties the whole construction.
func (g *Generator) constructorArgs(sig *descriptor.Signature, depth int) ([]string, []types.Type, error) {
	args := make([]string, 0, len(sig.Params))
	var mentions []types.Type
	for _, p := range sig.Params {
		d, err := g.Domain(p.Type, descriptor.Nullable(p.Type), depth+1)
		if err != nil {
			return nil, nil, fmt.Errorf("constructor argument %s: %w", p.Name, ErrUnsynthesizable)
		}
		args = append(args, d[0].Expr)
		mentions = append(mentions, mentionsOf(d[0])...)
	}
	return args, mentions, nil
}

// noopFuncExpr renders a no-op function literal matching sig: pointer
// parameters are set to the zero of their element type and each result
// is the zero of its declared type.
func (g *Generator) noopFuncExpr(sig *types.Signature) string {
	var b strings.Builder
	b.WriteString("func(")
	for i := 0; i < sig.Params().Len(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "p%d %s", i, types.TypeString(sig.Params().At(i).Type(), g.qual))
	}
	b.WriteString(") ")
	results := sig.Results()
	switch results.Len() {
	case 0:
	case 1:
		b.WriteString(types.TypeString(results.At(0).Type(), g.qual) + " ")
	default:
		b.WriteString("(")
		for i := 0; i < results.Len(); i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(types.TypeString(results.At(i).Type(), g.qual))
		}
		b.WriteString(") ")
	}
	b.WriteString("{")

	var body []string
	for i := 0; i < sig.Params().Len(); i++ {
		if ptr, ok := types.Unalias(sig.Params().At(i).Type()).(*types.Pointer); ok {
			body = append(body, fmt.Sprintf("*p%d = %s", i, descriptor.ZeroExpr(ptr.Elem(), g.qual)))
		}
	}
	if results.Len() > 0 {
		zeros := make([]string, results.Len())
		for i := range zeros {
			zeros[i] = descriptor.ZeroExpr(results.At(i).Type(), g.qual)
		}
		body = append(body, "return "+strings.Join(zeros, ", "))
	}
	if len(body) > 0 {
		b.WriteString(" " + strings.Join(body, "; ") + " ")
	}
	b.WriteString("}")
	return b.String()
}

// randomIntExpr draws a literal that fits the basic kind's range, so the
// emitted source always compiles even for sized and unsigned types.
func (g *Generator) randomIntExpr(t types.Type) string {
	basic, ok := t.Underlying().(*types.Basic)
	if !ok {
		return strconv.FormatInt(int64(g.rnd.IntN(1<<15)), 10)
	}
	switch basic.Kind() {
	case types.Int8:
		return strconv.Itoa(g.rnd.IntN(256) - 128)
	case types.Int16:
		return strconv.Itoa(g.rnd.IntN(1<<16) - 1<<15)
	case types.Uint8:
		return strconv.Itoa(g.rnd.IntN(256))
	case types.Uint16:
		return strconv.Itoa(g.rnd.IntN(1 << 16))
	case types.Uint, types.Uint32, types.Uint64, types.Uintptr:
		return strconv.Itoa(g.rnd.IntN(1 << 31))
	default:
		v := g.rnd.Int() % (1 << 31)
		return strconv.FormatInt(v, 10)
	}
}

func (g *Generator) randomFloatExpr() string {
	return strconv.FormatFloat(g.rnd.Float(), 'g', -1, 64)
}

func (g *Generator) randomRuneExpr() string {
	return strconv.QuoteRune(g.rnd.Rune())
}

func (g *Generator) randomDurationExpr() string {
	return fmt.Sprintf("time.Duration(%d)", g.rnd.IntN(1<<31))
}

func (g *Generator) randomTimeExpr() string {
	return fmt.Sprintf("time.Unix(%d, 0)", g.rnd.IntN(1<<31))
}
