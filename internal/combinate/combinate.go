// Package combinate enumerates the cartesian product of parameter
// domains lazily: tuples are materialized one at a time through a
// cursor, and any number of independent cursors can walk the same
// product from the start.
package combinate

import (
	"github.com/stubforge/stubforge/internal/descriptor"
	"github.com/stubforge/stubforge/internal/domain"
)

// Tuple is one argument combination, positionally aligned with the
// product's domains.
type Tuple []domain.ValueCandidate

// Product is an immutable combination space over parameter domains.
// Output-only parameters are collapsed to their first candidate at
// construction: their value never reaches the callee, so varying it
// only multiplies identical invocations.
type Product struct {
	domains []domain.ParameterDomain
	size    int
}

// New builds the product. dirs is positionally aligned with domains;
// a nil dirs leaves every domain intact.
func New(domains []domain.ParameterDomain, dirs []descriptor.Direction) *Product {
	owned := make([]domain.ParameterDomain, len(domains))
	for i, d := range domains {
		if dirs != nil && i < len(dirs) && dirs[i] == descriptor.DirOut && len(d) > 1 {
			d = d[:1]
		}
		owned[i] = d
	}
	size := 1
	for _, d := range owned {
		size *= len(d)
	}
	return &Product{domains: owned, size: size}
}

// Size reports the exact number of tuples the product yields. A product
// over zero domains has size one: the empty tuple, one zero-argument
// invocation. A product holding any empty domain has size zero.
func (p *Product) Size() int { return p.size }

// Cursor starts a fresh walk over the product. Cursors are independent;
// exhausting one does not disturb another.
func (p *Product) Cursor() *Cursor {
	return &Cursor{p: p, idx: make([]int, len(p.domains))}
}

// Cursor is a lazy odometer over a Product. Not safe for concurrent
// use; take one cursor per goroutine instead.
type Cursor struct {
	p    *Product
	idx  []int
	done bool
}

// Next yields the next tuple, or ok=false once the product is
// exhausted. The rightmost position varies fastest. The returned tuple
// is freshly allocated; callers may retain it.
func (c *Cursor) Next() (Tuple, bool) {
	if c.done || c.p.size == 0 {
		return nil, false
	}
	out := make(Tuple, len(c.p.domains))
	for i, d := range c.p.domains {
		out[i] = d[c.idx[i]]
	}
	c.advance()
	return out, true
}

func (c *Cursor) advance() {
	for i := len(c.idx) - 1; i >= 0; i-- {
		c.idx[i]++
		if c.idx[i] < len(c.p.domains[i]) {
			return
		}
		c.idx[i] = 0
	}
	c.done = true
}
