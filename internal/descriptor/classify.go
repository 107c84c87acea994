package descriptor

import (
	"go/types"
)

// Kind is the coarse shape category that selects a value-generation
// strategy for a type.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindChar
	KindString
	KindEnum
	KindTime
	KindFunc
	KindArray
	KindMap
	KindChan
	KindStruct    // value aggregate
	KindInterface // interface or abstract
	KindClass     // concrete class (pointer to named struct)
)

var kindNames = map[Kind]string{
	KindInvalid:   "invalid",
	KindBool:      "bool",
	KindInt:       "int",
	KindFloat:     "float",
	KindChar:      "char",
	KindString:    "string",
	KindEnum:      "enum",
	KindTime:      "time",
	KindFunc:      "func",
	KindArray:     "array",
	KindMap:       "map",
	KindChan:      "chan",
	KindStruct:    "struct",
	KindInterface: "interface",
	KindClass:     "class",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// Classifier maps a type to its Kind. Classification is pure over type
// identity and memoized in the shared Caches. Enum detection consults a
// ConstSource: a named basic type with declared constants of that exact
// type is an enum.
type Classifier struct {
	caches *Caches
	consts ConstSource
}

func NewClassifier(caches *Caches, consts ConstSource) *Classifier {
	if consts == nil {
		consts = NoConstants{}
	}
	return &Classifier{caches: caches, consts: consts}
}

func (c *Classifier) Classify(t types.Type) Kind {
	return c.caches.kindFor(t, func() Kind { return c.classify(t) })
}

func (c *Classifier) classify(t types.Type) Kind {
	switch t := t.(type) {
	case *types.Basic:
		return classifyBasic(t)

	case *types.Named:
		return c.classifyNamed(t)

	case *types.Alias:
		return c.classify(types.Unalias(t))

	case *types.Pointer:
		// Pointer to a named struct is the Go rendering of a concrete
		// class; any other pointer classifies as its pointee.
		if named, ok := t.Elem().(*types.Named); ok {
			if _, isStruct := named.Underlying().(*types.Struct); isStruct {
				return KindClass
			}
		}
		return c.classify(t.Elem())

	case *types.Signature:
		return KindFunc

	case *types.Slice, *types.Array:
		return KindArray

	case *types.Map:
		return KindMap

	case *types.Chan:
		return KindChan

	case *types.Struct:
		return KindStruct

	case *types.Interface:
		return KindInterface

	case *types.TypeParam:
		return KindInterface

	default:
		return KindInvalid
	}
}

func (c *Classifier) classifyNamed(t *types.Named) Kind {
	obj := t.Obj()
	if obj.Pkg() != nil && obj.Pkg().Path() == "time" {
		switch obj.Name() {
		case "Time", "Duration":
			return KindTime
		}
	}

	switch under := t.Underlying().(type) {
	case *types.Basic:
		if len(c.consts.ConstantsOf(c.caches.FullName(t))) > 0 {
			return KindEnum
		}
		return classifyBasic(under)

	case *types.Interface:
		return KindInterface

	case *types.Struct:
		return KindStruct

	case *types.Signature:
		return KindFunc

	case *types.Slice, *types.Array:
		return KindArray

	case *types.Map:
		return KindMap

	case *types.Chan:
		return KindChan

	default:
		return c.classify(under)
	}
}

func classifyBasic(t *types.Basic) Kind {
	// byte and rune are distinct *types.Basic instances sharing the
	// uint8/int32 kinds; only a literal rune classifies as a character.
	if t.Name() == "rune" {
		return KindChar
	}
	switch t.Kind() {
	case types.Bool, types.UntypedBool:
		return KindBool
	case types.Int, types.Int8, types.Int16, types.Int32, types.Int64,
		types.Uint, types.Uint8, types.Uint16, types.Uint32, types.Uint64,
		types.Uintptr, types.UntypedInt:
		return KindInt
	case types.Float32, types.Float64, types.UntypedFloat:
		return KindFloat
	case types.String, types.UntypedString:
		return KindString
	case types.UntypedRune:
		return KindChar
	default:
		return KindInvalid
	}
}

// Nullable reports whether t admits a nil value.
func Nullable(t types.Type) bool {
	switch t.Underlying().(type) {
	case *types.Pointer, *types.Interface, *types.Slice, *types.Map,
		*types.Chan, *types.Signature:
		return true
	}
	return false
}
