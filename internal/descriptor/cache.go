package descriptor

import (
	"go/types"
	"sync"
)

// Caches holds the process-lifetime memoization tables shared across the
// engine: shape classification, full-name formatting, and
// implements-interface tests. Entries are populated lazily and never
// evicted. Each table is get-or-create under its own mutex, so concurrent
// first requests for the same key block instead of racing.
//
// Keys rely on go/types canonical identity: within one loaded universe a
// named type is represented by a single *types.Named, and basic types are
// singletons.
type Caches struct {
	kindMu sync.Mutex
	kinds  map[types.Type]Kind

	nameMu    sync.Mutex
	fullNames map[types.Type]string

	implMu     sync.Mutex
	implements map[implKey]bool
}

type implKey struct {
	impl  types.Type
	iface types.Type
}

func NewCaches() *Caches {
	return &Caches{
		kinds:      make(map[types.Type]Kind),
		fullNames:  make(map[types.Type]string),
		implements: make(map[implKey]bool),
	}
}

// FullName returns the fully qualified formatting of t, memoized.
func (c *Caches) FullName(t types.Type) string {
	c.nameMu.Lock()
	defer c.nameMu.Unlock()
	if name, ok := c.fullNames[t]; ok {
		return name
	}
	name := types.TypeString(t, nil)
	c.fullNames[t] = name
	return name
}

// Implements reports whether impl (or *impl) satisfies the interface
// type iface, memoized by the type pair.
func (c *Caches) Implements(impl types.Type, iface *types.Interface) bool {
	c.implMu.Lock()
	defer c.implMu.Unlock()
	key := implKey{impl: impl, iface: iface}
	if ok, seen := c.implements[key]; seen {
		return ok
	}
	ok := types.Implements(impl, iface) || types.Implements(types.NewPointer(impl), iface)
	c.implements[key] = ok
	return ok
}

// kindFor runs build once per type and remembers the result. The kind
// mutex is held across build: a concurrent request for the same type
// waits for the first classification instead of duplicating it.
func (c *Caches) kindFor(t types.Type, build func() Kind) Kind {
	c.kindMu.Lock()
	defer c.kindMu.Unlock()
	if k, ok := c.kinds[t]; ok {
		return k
	}
	k := build()
	c.kinds[t] = k
	return k
}
