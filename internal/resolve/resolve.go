// Package resolve finds the concrete implementors of an interface or the
// concrete extensions of a base struct across a discovered type universe.
// Results are memoized per (base, exclude) key for the process lifetime.
package resolve

import (
	"errors"
	"go/types"
	"sync"

	"go.uber.org/zap"

	"github.com/stubforge/stubforge/internal/annotate"
	"github.com/stubforge/stubforge/internal/descriptor"
)

// ErrUnresolvableGeneric marks a generic candidate whose specialization
// against the base type's arguments failed. It is recovered locally: the
// candidate is dropped from the set.
var ErrUnresolvableGeneric = errors.New("generic candidate cannot be closed against base type arguments")

// TypeSource enumerates the full type universe in stable scan order.
type TypeSource interface {
	Types() []types.Type
}

// DerivedTypeSet is the ordered, deduplicated list of concrete types
// derived from one base, in first-seen scan order.
type DerivedTypeSet struct {
	Base  types.Type
	Types []types.Type
}

type setKey struct {
	base    string
	exclude string
}

// Resolver scans a TypeSource for derived types. Safe for concurrent
// use; identical calls return the same cached set instance.
type Resolver struct {
	src    TypeSource
	ann    annotate.Queries
	caches *descriptor.Caches
	log    *zap.Logger

	mu   sync.Mutex
	sets map[setKey]*DerivedTypeSet
}

func New(src TypeSource, ann annotate.Queries, caches *descriptor.Caches, log *zap.Logger) *Resolver {
	if ann == nil {
		ann = annotate.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		src:    src,
		ann:    ann,
		caches: caches,
		log:    log,
		sets:   make(map[setKey]*DerivedTypeSet),
	}
}

// Resolve returns the concrete derived types of base, excluding exclude.
// The scan rejects non-exported, abstract (interface), skip-marked and
// exclude-identical candidates, and drops open generic candidates that
// cannot be closed against the base's type arguments. The mutex is held
// across the scan so concurrent first requests for one key share a
// single construction.
func (r *Resolver) Resolve(base types.Type, exclude types.Type) *DerivedTypeSet {
	key := setKey{base: r.caches.FullName(base)}
	if exclude != nil {
		key.exclude = r.caches.FullName(exclude)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.sets[key]; ok {
		return set
	}
	set := r.scan(base, key.exclude)
	r.sets[key] = set
	return set
}

func (r *Resolver) scan(base types.Type, excludeName string) *DerivedTypeSet {
	set := &DerivedTypeSet{Base: base}
	seen := make(map[string]bool)

	baseIface, _ := base.Underlying().(*types.Interface)

	for _, cand := range r.src.Types() {
		named, ok := cand.(*types.Named)
		if !ok {
			continue
		}
		if !named.Obj().Exported() {
			continue
		}
		if _, abstract := named.Underlying().(*types.Interface); abstract {
			continue
		}

		closed, err := r.closeGeneric(named, base)
		if err != nil {
			r.log.Debug("candidate dropped",
				zap.String("candidate", named.Obj().Name()),
				zap.Error(err))
			continue
		}

		full := r.caches.FullName(closed)
		if full == excludeName || seen[full] {
			continue
		}
		if r.ann.IsSkipped(full) {
			continue
		}

		if baseIface != nil {
			if !r.caches.Implements(closed, baseIface) {
				continue
			}
		} else if !extendsStruct(closed, base) {
			continue
		}

		seen[full] = true
		set.Types = append(set.Types, closed)
	}
	return set
}

// closeGeneric specializes an open generic candidate with the base
// type's arguments. Non-generic candidates pass through untouched.
func (r *Resolver) closeGeneric(cand *types.Named, base types.Type) (types.Type, error) {
	tparams := cand.TypeParams()
	if tparams == nil || tparams.Len() == 0 || cand.TypeArgs() != nil && cand.TypeArgs().Len() > 0 {
		return cand, nil
	}

	baseNamed, ok := base.(*types.Named)
	if !ok || baseNamed.TypeArgs() == nil || baseNamed.TypeArgs().Len() != tparams.Len() {
		return nil, ErrUnresolvableGeneric
	}

	args := make([]types.Type, baseNamed.TypeArgs().Len())
	for i := range args {
		args[i] = baseNamed.TypeArgs().At(i)
	}
	closed, err := types.Instantiate(types.NewContext(), cand, args, true)
	if err != nil {
		return nil, ErrUnresolvableGeneric
	}
	return closed, nil
}

// extendsStruct reports whether cand's underlying struct embeds base
// (by value or by pointer), the Go rendering of subclassing.
func extendsStruct(cand types.Type, base types.Type) bool {
	st, ok := cand.Underlying().(*types.Struct)
	if !ok {
		return false
	}
	for i := 0; i < st.NumFields(); i++ {
		field := st.Field(i)
		if !field.Embedded() {
			continue
		}
		ft := field.Type()
		if ptr, ok := ft.(*types.Pointer); ok {
			ft = ptr.Elem()
		}
		if types.Identical(ft, base) {
			return true
		}
	}
	return false
}
