// Package descriptor carries the shape-relevant view of Go type metadata
// used by the scaffolding engine: parameter directions, method signatures,
// declared constants, and the memoization caches shared by the classifier,
// the derived-type resolver and the proxy synthesizer.
package descriptor

import (
	"fmt"
	"go/types"
	"strings"
)

// Direction tags how a formal parameter moves data across a call.
// Go parameters are DirNone by default; pointer parameters discovered in a
// loaded universe are tagged DirRef. DirOut parameters come from
// annotation data and synthetic signatures.
type Direction int

const (
	DirNone Direction = iota
	DirIn
	DirOut
	DirRef
)

func (d Direction) String() string {
	switch d {
	case DirIn:
		return "in"
	case DirOut:
		return "out"
	case DirRef:
		return "ref"
	default:
		return "none"
	}
}

// Param is one formal parameter of a method or constructor.
type Param struct {
	Name string
	Type types.Type
	Dir  Direction
}

// Signature describes one callable member: a method on a class or
// interface, or a package-level constructor function.
type Signature struct {
	// Name is the member name (e.g. "Flush").
	Name string

	// Recv is the fully qualified name of the declaring type, empty for
	// package-level functions.
	Recv string

	Params   []Param
	Results  []types.Type
	Variadic bool
}

// Key returns the signature identity used for dispatch-table dedupe:
// the member name plus the parameter type list. Result types do not
// participate, matching Go's method-set identity rules.
func (s *Signature) Key() string {
	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteByte('(')
	for i, p := range s.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		if p.Dir == DirOut || p.Dir == DirRef {
			b.WriteString(p.Dir.String())
			b.WriteByte(' ')
		}
		b.WriteString(types.TypeString(p.Type, nil))
	}
	b.WriteByte(')')
	return b.String()
}

func (s *Signature) String() string {
	var rets []string
	for _, r := range s.Results {
		rets = append(rets, types.TypeString(r, nil))
	}
	if len(rets) == 0 {
		return s.Key()
	}
	return fmt.Sprintf("%s (%s)", s.Key(), strings.Join(rets, ", "))
}

// SignatureOf converts a go/types method into a Signature. Pointer
// parameters are tagged DirRef; everything else is DirNone.
func SignatureOf(recv string, name string, sig *types.Signature) *Signature {
	out := &Signature{
		Name:     name,
		Recv:     recv,
		Variadic: sig.Variadic(),
	}
	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		p := params.At(i)
		dir := DirNone
		if _, ok := p.Type().(*types.Pointer); ok {
			dir = DirRef
		}
		out.Params = append(out.Params, Param{Name: p.Name(), Type: p.Type(), Dir: dir})
	}
	results := sig.Results()
	for i := 0; i < results.Len(); i++ {
		out.Results = append(out.Results, results.At(i).Type())
	}
	return out
}

// Constant is one declared named constant, in declaration order.
type Constant struct {
	// Name is the unqualified constant name.
	Name string

	// Expr is the qualified reference the emission layer can splice into
	// generated source (e.g. "parser.ModeStrict").
	Expr string
}

// ConstSource answers which named constants are declared for a type,
// keyed by the type's fully qualified name. Declaration order must be
// preserved: the enum first/last domain entries depend on it.
type ConstSource interface {
	ConstantsOf(fullName string) []Constant
}

// NoConstants is a ConstSource with nothing declared.
type NoConstants struct{}

func (NoConstants) ConstantsOf(string) []Constant { return nil }
