package proxy

import (
	"fmt"
	"go/types"

	"github.com/google/uuid"

	"github.com/stubforge/stubforge/internal/descriptor"
)

// Instance is one request-scoped mock object. Instances are never shared
// across scaffolding requests; each carries its own hook and identity.
type Instance struct {
	typ  *ProxyType
	hook Hook
	id   string
}

// New constructs an instance of the proxy type. hook may be nil, which
// behaves as "never handled": every call returns declared zero values.
func (p *ProxyType) New(hook Hook) *Instance {
	return &Instance{typ: p, hook: hook, id: uuid.NewString()}
}

// ID is the instance identity, useful when correlating hook traffic in
// diagnostics.
func (inst *Instance) ID() string { return inst.id }

// Type returns the synthesized type this instance belongs to.
func (inst *Instance) Type() *ProxyType { return inst.typ }

// CallResult carries the outcome of one dispatched call.
type CallResult struct {
	// Results holds one value per declared result, hook-supplied when
	// handled (defensively coerced), declared zero values otherwise.
	Results []any

	// Args holds the post-call argument values. Out and ref slots are
	// zeroed before dispatch and reflect any updates the hook made.
	Args []any
}

// Call dispatches one method invocation through the instance's hook.
//
// The sequence is fixed: arguments are marshalled into an ordered value
// list, every out/ref slot is set to its shape's zero value before the
// hook runs, and the hook (if any) is invoked with the signature and the
// list. A handled result is coerced into the declared return shape; a
// value of the wrong runtime shape is discarded in favor of the declared
// zero value rather than failing the call. Unhandled calls return zero
// values and leave out/ref slots at their pre-dispatch zeros.
func (inst *Instance) Call(key string, args []any) (*CallResult, error) {
	sig, ok := inst.typ.Signature(key)
	if !ok {
		return nil, fmt.Errorf("proxy %s: no method with signature %s", inst.typ.name, key)
	}

	values := make([]any, len(sig.Params))
	copy(values, args)
	for i, p := range sig.Params {
		if p.Dir == descriptor.DirOut || p.Dir == descriptor.DirRef {
			values[i] = descriptor.ZeroValue(deref(p.Type))
		}
	}

	res := &CallResult{Args: values}

	handled := false
	var result any
	if inst.hook != nil {
		handled, result = inst.hook(sig, values)
	}

	if !handled {
		res.Results = zeroResults(sig)
		return res, nil
	}

	res.Results = coerceResults(sig, result)
	return res, nil
}

func zeroResults(sig *descriptor.Signature) []any {
	out := make([]any, len(sig.Results))
	for i, rt := range sig.Results {
		out[i] = descriptor.ZeroValue(rt)
	}
	return out
}

// coerceResults maps the hook's single result value onto the declared
// result list. A multi-result signature accepts a []any of matching
// arity; anything else fills the first slot and zeroes the rest.
func coerceResults(sig *descriptor.Signature, result any) []any {
	out := zeroResults(sig)
	if len(sig.Results) == 0 {
		return out
	}
	if many, ok := result.([]any); ok && len(sig.Results) > 1 && len(many) == len(sig.Results) {
		for i, v := range many {
			out[i] = coerce(v, sig.Results[i])
		}
		return out
	}
	out[0] = coerce(result, sig.Results[0])
	return out
}

// coerce checks a hook-supplied value against the declared shape. Basic
// shapes are checked strictly; composite shapes accept any non-nil value
// since the runtime representation is opaque at this level.
func coerce(v any, t types.Type) any {
	if v == nil {
		return descriptor.ZeroValue(t)
	}
	basic, ok := t.Underlying().(*types.Basic)
	if !ok {
		return v
	}
	if basic.Name() == "rune" {
		if r, ok := v.(rune); ok {
			return r
		}
		return descriptor.ZeroValue(t)
	}
	switch {
	case basic.Info()&types.IsBoolean != 0:
		if b, ok := v.(bool); ok {
			return b
		}
	case basic.Info()&types.IsString != 0:
		if s, ok := v.(string); ok {
			return s
		}
	case basic.Info()&types.IsInteger != 0:
		switch n := v.(type) {
		case int:
			return int64(n)
		case int32:
			return int64(n)
		case int64:
			return n
		case uint64:
			return n
		}
	case basic.Info()&types.IsFloat != 0:
		switch n := v.(type) {
		case float32:
			return float64(n)
		case float64:
			return n
		}
	}
	return descriptor.ZeroValue(t)
}

func deref(t types.Type) types.Type {
	if ptr, ok := t.(*types.Pointer); ok {
		return ptr.Elem()
	}
	return t
}

// EmptySequenceHook answers exactly the iterator-obtaining call of a
// sequence-shaped interface with an empty sequence and declines all
// other calls. Dictionary shapes get an empty key/value pair list; at
// this dispatch level sequences are represented as materialized element
// lists, the emitted source renders real yield-func literals.
func EmptySequenceHook(p *ProxyType) Hook {
	iterSig, keyValue, ok := p.IteratorMethod()
	if !ok {
		return nil
	}
	iterKey := iterSig.Key()
	return func(sig *descriptor.Signature, args []any) (bool, any) {
		if sig.Key() != iterKey {
			return false, nil
		}
		if keyValue {
			return true, [][2]any{}
		}
		return true, []any{}
	}
}
