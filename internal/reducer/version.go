package reducer

import "sentra/internal/typed"

// Versions is the per-identifier SSA version counter: the source of fresh
// names. Version 0 is an identifier's initial occurrence, either a
// function argument or the first time a local is ever defined, and is
// never reissued once a later definition has moved the identifier past
// it.
type Versions struct {
	current map[typed.CoreIdentifier]int
	seen    map[typed.CoreIdentifier]bool
}

// NewVersions returns an empty version map.
func NewVersions() *Versions {
	return &Versions{
		current: make(map[typed.CoreIdentifier]int),
		seen:    make(map[typed.CoreIdentifier]bool),
	}
}

// Current returns the latest version assigned to id (0 if id has never
// been defined, which is also correct for a function argument's initial
// read).
func (v *Versions) Current(id typed.CoreIdentifier) int {
	return v.current[id]
}

// Fresh allocates and returns the next version for id: 0 on the very
// first call for a given id (a brand new local being defined for the
// first time keeps version 0, it is not a reassignment), strictly
// increasing on every subsequent call.
func (v *Versions) Fresh(id typed.CoreIdentifier) int {
	if !v.seen[id] {
		v.seen[id] = true
		v.current[id] = 0
		return 0
	}
	v.current[id]++
	return v.current[id]
}

// MarkArgument registers id as already occupying version 0 without
// consuming a Fresh call: a function's formal parameters are live at
// version 0 from the moment the body starts, even though nothing ever
// explicitly defines them ("a_1=a_0" treats the argument's version 0 as
// already spent). A no-op if id has already been seen, so re-running
// ShallowSSA on a callee whose parameter was just bound by the inliner
// (see inline.go buildCalleeBindings) leaves that binding's version
// untouched.
func (v *Versions) MarkArgument(id typed.CoreIdentifier) {
	if !v.seen[id] {
		v.seen[id] = true
		v.current[id] = 0
	}
}

// BumpAll increments every tracked identifier's version by one, reserving
// a fresh floor before loop-body specialisation, used by the driver's For
// handling.
func (v *Versions) BumpAll() {
	for id := range v.current {
		v.current[id]++
		v.seen[id] = true
	}
}

// Snapshot returns a copy of the current version map, used to record a
// loop-entry floor before a For is skipped over by shallow SSA, and as
// the "before"/"after" arguments to Substitutions.Register.
func (v *Versions) Snapshot() map[typed.CoreIdentifier]int {
	out := make(map[typed.CoreIdentifier]int, len(v.current))
	for k, val := range v.current {
		out[k] = val
	}
	return out
}

// offsetSnapshot returns a copy of snap with every version shifted by
// delta, the "+2" convention reserving room for pre- and post-loop work
// around an unrolled loop.
func offsetSnapshot(snap map[typed.CoreIdentifier]int, delta int) map[typed.CoreIdentifier]int {
	out := make(map[typed.CoreIdentifier]int, len(snap))
	for k, v := range snap {
		out[k] = v + delta
	}
	return out
}
