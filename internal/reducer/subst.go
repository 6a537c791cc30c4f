package reducer

import "sentra/internal/typed"

// Substitutions is the deferred identifier-version rewrite map. An edge
// (x, v1) -> v2 means every remaining occurrence of x at version v1 must
// be rewritten to version v2. Edges are chained during construction and
// path-compressed to length 1 by Canonicalize before Apply runs.
type Substitutions struct {
	edges map[typed.CoreIdentifier]map[int]int
}

// NewSubstitutions returns an empty substitution map.
func NewSubstitutions() *Substitutions {
	return &Substitutions{edges: map[typed.CoreIdentifier]map[int]int{}}
}

// Register inserts, for every core-id present in both snapshots whose
// versions differ, the edge from[x] -> (lookup(to[x]) if already
// redirected, else to[x]). The inner lookup collapses a two-hop chain at
// insertion time when the target is itself already redirected.
func (s *Substitutions) Register(from, to map[typed.CoreIdentifier]int) {
	for id, fromVer := range from {
		toVer, ok := to[id]
		if !ok || fromVer == toVer {
			continue
		}
		sub, ok := s.edges[id]
		if !ok {
			sub = map[int]int{}
			s.edges[id] = sub
		}
		target := toVer
		if redirected, ok := sub[toVer]; ok {
			target = redirected
		}
		sub[fromVer] = target
	}
}

// Canonicalize returns a new map where every edge has length 1: for each
// (x, v) in any chain, the result maps x's v to the chain's terminal.
func (s *Substitutions) Canonicalize() *Substitutions {
	out := &Substitutions{edges: map[typed.CoreIdentifier]map[int]int{}}
	for id, sub := range s.edges {
		out.edges[id] = canonicalizeSub(sub)
	}
	return out
}

func canonicalizeSub(sub map[int]int) map[int]int {
	cache := map[int]int{}
	var addToCache func(k int)
	addToCache = func(k int) {
		if _, done := cache[k]; done {
			return
		}
		v, ok := sub[k]
		if !ok {
			return
		}
		addToCache(v)
		if terminal, ok := cache[v]; ok {
			cache[k] = terminal
		} else {
			cache[k] = v
		}
	}
	for k := range sub {
		addToCache(k)
	}
	return cache
}

// rewrite resolves a single identifier's version through the map, leaving
// unknown versions untouched.
func (s *Substitutions) rewrite(id typed.Identifier) typed.Identifier {
	sub, ok := s.edges[id.Core]
	if !ok {
		return id
	}
	if v, ok := sub[id.Version]; ok {
		return id.WithVersion(v)
	}
	return id
}

// Apply folds over f, rewriting every identifier occurrence's version.
func (s *Substitutions) Apply(f typed.Function) typed.Function {
	return typed.RewriteFunction(f, s.rewrite)
}

// Empty reports whether no edges have been registered.
func (s *Substitutions) Empty() bool {
	return len(s.edges) == 0
}
