package domain

import "strings"

// Type is a parsed type expression in head/arguments form. Composite
// heads use the literal Go syntax marker: "[]" for slices, "*" for
// pointers, "map", "chan", "<-chan", "chan<-" and "..." for the obvious
// constructors. Function and struct/interface literal types are kept as
// a raw head with no arguments. Named types use their (possibly
// qualified) identifier as the head.
type Type struct {
	Head string `json:"head"`
	Args []Type `json:"args,omitempty"`
}

// AnyType is the unknown-type sentinel substituted whenever model output
// cannot be parsed as a type expression.
var AnyType = Type{Head: "any"}

// IsAny reports whether the type is the unknown sentinel.
func (t Type) IsAny() bool { return t.Head == "any" && len(t.Args) == 0 }

// String renders the type back to Go syntax.
func (t Type) String() string {
	switch t.Head {
	case "[]":
		return "[]" + arg(t, 0)
	case "*":
		return "*" + arg(t, 0)
	case "...":
		return "..." + arg(t, 0)
	case "map":
		return "map[" + arg(t, 0) + "]" + arg(t, 1)
	case "chan":
		return "chan " + arg(t, 0)
	case "<-chan":
		return "<-chan " + arg(t, 0)
	case "chan<-":
		return "chan<- " + arg(t, 0)
	}
	if len(t.Args) == 0 {
		return t.Head
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return t.Head + "[" + strings.Join(parts, ", ") + "]"
}

func arg(t Type, i int) string {
	if i >= len(t.Args) {
		return ""
	}
	return t.Args[i].String()
}

// HeadName returns the outermost constructor name, with package
// qualifiers stripped.
func (t Type) HeadName() string {
	if i := strings.LastIndex(t.Head, "."); i >= 0 && !strings.ContainsAny(t.Head, "({") {
		return t.Head[i+1:]
	}
	return t.Head
}

// Normalized returns the type with package qualifiers removed and
// interface{} rewritten to any, recursively. Used for accuracy
// comparisons so that aliased imports do not count as mismatches.
func (t Type) Normalized() Type {
	head := t.Head
	if head == "interface{}" {
		head = "any"
	} else if i := strings.LastIndex(head, "."); i >= 0 && !strings.ContainsAny(head, "({") {
		head = head[i+1:]
	}
	args := make([]Type, len(t.Args))
	for i, a := range t.Args {
		args[i] = a.Normalized()
	}
	if len(args) == 0 {
		args = nil
	}
	return Type{Head: head, Args: args}
}

// Equal reports exact structural equality.
func (t Type) Equal(o Type) bool {
	if t.Head != o.Head || len(t.Args) != len(o.Args) {
		return false
	}
	for i := range t.Args {
		if !t.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return true
}
