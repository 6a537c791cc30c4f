// Package typed defines the minimal typed intermediate representation the
// reducer operates over: identifiers, types, expressions, statements,
// functions, and programs. Parsing and type inference produce values of
// these types elsewhere; this package only models them and provides the
// generic fold used to rewrite them.
package typed

import "fmt"

// CoreIdentifierKind distinguishes a user-written name from a synthesised
// return-slot tag.
type CoreIdentifierKind int

const (
	CoreUser CoreIdentifierKind = iota
	CoreCall
)

// CoreIdentifier is a user-written name or a synthesised Call(n) tag used
// for inlined return-value temporaries. The two kinds never collide: user
// source cannot spell a Call(n) identifier.
type CoreIdentifier struct {
	Kind CoreIdentifierKind
	Name string // set when Kind == CoreUser
	Call int    // set when Kind == CoreCall
}

// UserIdentifier builds a core-id for a user-written name.
func UserIdentifier(name string) CoreIdentifier {
	return CoreIdentifier{Kind: CoreUser, Name: name}
}

// CallIdentifier builds a core-id for the i-th return-value temporary.
func CallIdentifier(index int) CoreIdentifier {
	return CoreIdentifier{Kind: CoreCall, Call: index}
}

func (c CoreIdentifier) String() string {
	if c.Kind == CoreCall {
		return fmt.Sprintf("Call(%d)", c.Call)
	}
	return c.Name
}

// Identifier is a (core-id, version) pair, the atomic SSA name.
type Identifier struct {
	Core    CoreIdentifier
	Version int
}

// NewIdentifier returns the version-0 occurrence of name.
func NewIdentifier(name string) Identifier {
	return Identifier{Core: UserIdentifier(name)}
}

// WithVersion returns a copy of id at the given version.
func (id Identifier) WithVersion(v int) Identifier {
	return Identifier{Core: id.Core, Version: v}
}

func (id Identifier) String() string {
	return fmt.Sprintf("%s_%d", id.Core, id.Version)
}
