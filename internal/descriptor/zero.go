package descriptor

import (
	"go/types"
	"time"
)

// ZeroExpr renders the zero-value source expression for a type, suitable
// for splicing into generated test code. qual controls how named types
// are qualified (nil means fully qualified import paths).
func ZeroExpr(t types.Type, qual types.Qualifier) string {
	switch u := t.(type) {
	case *types.Basic:
		return zeroBasicExpr(u)

	case *types.Pointer, *types.Interface, *types.Slice, *types.Map,
		*types.Chan, *types.Signature:
		return "nil"

	case *types.Array:
		return types.TypeString(t, qual) + "{}"

	case *types.Struct:
		return types.TypeString(t, qual) + "{}"

	case *types.Alias:
		return ZeroExpr(types.Unalias(t), qual)

	case *types.Named:
		switch under := u.Underlying().(type) {
		case *types.Struct:
			return types.TypeString(t, qual) + "{}"
		case *types.Basic:
			return types.TypeString(t, qual) + "(" + zeroBasicExpr(under) + ")"
		default:
			return ZeroExpr(under, qual)
		}

	default:
		return "nil"
	}
}

func zeroBasicExpr(t *types.Basic) string {
	if t.Name() == "rune" {
		return "rune(0)"
	}
	switch {
	case t.Info()&types.IsBoolean != 0:
		return "false"
	case t.Info()&types.IsString != 0:
		return `""`
	default:
		return "0"
	}
}

// ZeroValue builds the runtime zero value a proxy stub hands back for an
// unhandled call: false/0/""/nil as applicable, an empty aggregate for
// value-aggregate shapes, and the zero time for time.Time.
func ZeroValue(t types.Type) any {
	if named, ok := t.(*types.Named); ok {
		obj := named.Obj()
		if obj.Pkg() != nil && obj.Pkg().Path() == "time" && obj.Name() == "Time" {
			return time.Time{}
		}
	}

	switch u := t.Underlying().(type) {
	case *types.Basic:
		return zeroBasicValue(u)
	case *types.Struct:
		return map[string]any{}
	case *types.Array:
		return []any{}
	default:
		// Pointers, interfaces, slices, maps, chans, funcs.
		return nil
	}
}

func zeroBasicValue(t *types.Basic) any {
	if t.Name() == "rune" {
		return rune(0)
	}
	switch {
	case t.Info()&types.IsBoolean != 0:
		return false
	case t.Info()&types.IsString != 0:
		return ""
	case t.Info()&types.IsUnsigned != 0:
		return uint64(0)
	case t.Info()&types.IsInteger != 0:
		return int64(0)
	case t.Info()&types.IsFloat != 0:
		return float64(0)
	case t.Info()&types.IsComplex != 0:
		return complex128(0)
	default:
		return nil
	}
}
